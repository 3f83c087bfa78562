package replay

import (
	"context"
	"io"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/steerlab/pathtracker/config"
	"github.com/steerlab/pathtracker/control"
	"github.com/steerlab/pathtracker/logging"
	"github.com/steerlab/pathtracker/sensorsync"
	"github.com/steerlab/pathtracker/spatialmath"
	"github.com/steerlab/pathtracker/tracker"
	"github.com/steerlab/pathtracker/trajectory"
)

// Options tune a replay run.
type Options struct {
	// Tail keeps ticking this long after the last event.
	Tail time.Duration
	// Publisher additionally receives every tracker output.
	Publisher tracker.Publisher
	// Output receives every tracker output as JSON lines stamped with the simulated time.
	Output io.Writer
}

// Step is the outcome of one tick.
type Step struct {
	At     time.Time
	Output tracker.Output
}

// Summary describes a finished replay.
type Summary struct {
	Ticks  int
	States map[tracker.State]int
	Steps  []Step

	MeanLinear     float64
	MaxLinear      float64
	MeanAbsAngular float64
	MaxAbsAngular  float64
	FinalProgress  float64
	GoalReached    bool
	// FinalCommand is the command sent when the tracker closed.
	FinalCommand control.Command

	// Waypoints is the last raw path received, Smoothed its smoothing and Track the odometry
	// poses in order.
	Waypoints []r2.Point
	Smoothed  []trajectory.SmoothedPoint
	Path      trajectory.Path
	Track     []spatialmath.Pose2D
}

// Run replays timeline through a tracker configured by cfg. Ticks fire at the configured rate on
// a simulated clock starting at the first event; before each event every tick due at or before
// it runs first. The tracker is closed at the end, emitting its final zero command.
func Run(ctx context.Context, cfg *config.Config, timeline Timeline, opts Options, logger logging.Logger) (*Summary, error) {
	if len(timeline) == 0 {
		return nil, errors.New("nothing to replay")
	}
	// path bursts are not coalesced on the simulated clock
	runCfg := *cfg
	if runCfg.PathSettle > 0 {
		logger.Debugw("ignoring path_settle during replay", "path_settle", runCfg.PathSettle)
		runCfg.PathSettle = 0
	}

	start := timeline[0].At
	mock := clock.NewMock()
	mock.Set(start)

	rec := &recorder{}
	pubs := tracker.MultiPublisher{rec}
	if opts.Publisher != nil {
		pubs = append(pubs, opts.Publisher)
	}
	if opts.Output != nil {
		pubs = append(pubs, tracker.NewJSONPublisher(opts.Output, mock))
	}
	tr, err := tracker.New(tracker.Options{Config: &runCfg, Publisher: pubs, Clock: mock}, logger.Sublogger("tracker"))
	if err != nil {
		return nil, err
	}
	syncer, err := sensorsync.New(runCfg.SyncerConfig(), mock, logger.Sublogger("sync"),
		func(pose spatialmath.Pose2D, cmd spatialmath.Twist) {
			tr.HandleSensorPair(pose, cmd)
		})
	if err != nil {
		return nil, err
	}

	summary := &Summary{States: map[tracker.State]int{}}
	period := runCfg.Period()
	next := start.Add(period)
	tick := func(at time.Time) {
		mock.Set(at)
		out := tr.Tick(ctx)
		summary.Steps = append(summary.Steps, Step{At: at, Output: out})
	}

	for _, event := range timeline {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for !next.After(event.At) {
			tick(next)
			next = next.Add(period)
		}
		if event.At.After(mock.Now()) {
			mock.Set(event.At)
		}
		switch event.Kind {
		case EventPath:
			summary.Waypoints = event.Waypoints
			tr.HandlePath(event.Waypoints)
		case EventOdometry:
			summary.Track = append(summary.Track, event.Pose)
			syncer.AddFirst(event.Stamp, event.Pose)
		case EventUserCommand:
			syncer.AddSecond(event.Stamp, event.Twist)
		}
	}
	end := timeline[len(timeline)-1].At.Add(opts.Tail)
	for !next.After(end) {
		tick(next)
		next = next.Add(period)
	}

	if err := tr.Close(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to stop tracker")
	}
	summary.Path = tr.ActivePath()
	summary.fill(rec)
	return summary, nil
}

func (s *Summary) fill(rec *recorder) {
	s.Ticks = len(s.Steps)
	linear := make(stats.Float64Data, 0, len(s.Steps))
	angular := make(stats.Float64Data, 0, len(s.Steps))
	for _, step := range s.Steps {
		s.States[step.Output.State]++
		linear = append(linear, step.Output.Command.LinearX)
		angular = append(angular, math.Abs(step.Output.Command.AngularZ))
		if step.Output.Target >= 0 {
			s.FinalProgress = step.Output.Progress
		}
		if step.Output.State == tracker.StateGoalReached {
			s.GoalReached = true
		}
	}
	// the stats helpers only fail on empty input, where zero is the right answer
	s.MeanLinear, _ = linear.Mean()
	s.MaxLinear, _ = linear.Max()
	s.MeanAbsAngular, _ = angular.Mean()
	s.MaxAbsAngular, _ = angular.Max()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.commands) > 0 {
		s.FinalCommand = rec.commands[len(rec.commands)-1]
	}
	s.Smoothed = rec.smoothed
}

// recorder keeps what the tracker published.
type recorder struct {
	mu       sync.Mutex
	commands []control.Command
	smoothed []trajectory.SmoothedPoint
}

func (r *recorder) PublishCommand(ctx context.Context, cmd control.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	return nil
}

func (r *recorder) PublishProgress(ctx context.Context, progress float64) error {
	return nil
}

func (r *recorder) PublishShortTermGoal(ctx context.Context, goal trajectory.Point) error {
	return nil
}

func (r *recorder) PublishSmoothedPath(ctx context.Context, path []trajectory.SmoothedPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.smoothed = path
	return nil
}
