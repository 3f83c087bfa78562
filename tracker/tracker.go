// Package tracker runs the fixed-rate control loop that drives a mobile base along the latest
// planned path.
//
// Paths and synchronized odometry arrive on arbitrary goroutines through HandlePath and
// HandleSensorPair. Those calls only stage data; every command is produced by Tick, which acts
// on the latest snapshot of both and never waits for fresh input.
package tracker

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/bep/debounce"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/steerlab/pathtracker/config"
	"github.com/steerlab/pathtracker/control"
	"github.com/steerlab/pathtracker/logging"
	"github.com/steerlab/pathtracker/spatialmath"
	"github.com/steerlab/pathtracker/steering"
	"github.com/steerlab/pathtracker/trajectory"
	"github.com/steerlab/pathtracker/utils"
)

// Logged when the loop starts waiting for a path.
const waitForPathMsg = "Empty planning path, wait for new path"

// Options are the collaborators of a Tracker. Config and Publisher are required; the rest
// default to the cubic spline smoother, the Stanley law and a synthesizer built from Config.
type Options struct {
	Config      *config.Config
	Publisher   Publisher
	Smoother    trajectory.Smoother
	Law         steering.Law
	Synthesizer *control.Synthesizer
	Clock       clock.Clock
}

// Output describes what one tick decided.
type Output struct {
	State   State
	Command control.Command
	// Target is the index of the short-term goal in the active path, or -1 when there is none.
	Target   int
	Goal     trajectory.Point
	Progress float64
	// Distance is the distance from the pose to the path end when a target exists.
	Distance float64
	// Reason explains an AwaitingPath state caused by a failed steering computation.
	Reason error
}

// Tracker is the control loop driver.
type Tracker struct {
	cfg       *config.Config
	publisher Publisher
	smoother  trajectory.Smoother
	law       steering.Law
	synth     *control.Synthesizer
	clock     clock.Clock

	logger       logging.Logger
	ingestLogger logging.Logger
	errLimiter   *rate.Limiter

	buffer   *trajectory.Buffer
	pose     PoseState
	debounce func(func())

	// mu serializes ticks with Start and Close.
	mu        sync.Mutex
	state     State
	failing   bool
	workers   utils.StoppableWorkers
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// New returns a Tracker in the Initializing state. The loop does not run until Start.
func New(opts Options, logger logging.Logger) (*Tracker, error) {
	if opts.Config == nil {
		return nil, errors.New("tracker config is required")
	}
	if opts.Config.Constraints == nil {
		return nil, errors.New("kinematic constraints are required before the loop starts")
	}
	if opts.Publisher == nil {
		return nil, errors.New("tracker publisher is required")
	}
	cfg := opts.Config

	t := &Tracker{
		cfg:          cfg,
		publisher:    opts.Publisher,
		smoother:     opts.Smoother,
		law:          opts.Law,
		synth:        opts.Synthesizer,
		clock:        opts.Clock,
		logger:       logger,
		ingestLogger: logger.Sublogger("ingest"),
		errLimiter:   newErrorLimiter(),
		buffer:       trajectory.NewBuffer(),
	}
	if t.smoother == nil {
		t.smoother = trajectory.CubicSpline{}
	}
	if t.law == nil {
		t.law = &steering.Stanley{
			ReferenceLength: cfg.Controller.ReferenceLength,
			CrosstrackGain:  cfg.Controller.CrosstrackGain,
		}
	}
	if t.synth == nil {
		t.synth = &control.Synthesizer{
			Limits:          cfg.Constraints.Limits(),
			WheelSeparation: cfg.Controller.WheelSeparation,
			SpeedGain:       cfg.Controller.SpeedGain,
			Accel:           control.Proportional,
		}
	}
	if t.clock == nil {
		t.clock = clock.New()
	}
	if cfg.PathSettle > 0 {
		t.debounce = debounce.New(cfg.PathSettle)
	}
	return t, nil
}

// HandlePath ingests a raw waypoint list. The result is staged and picked up by the next tick.
func (t *Tracker) HandlePath(raw []r2.Point) {
	raw = append([]r2.Point(nil), raw...)
	if t.debounce == nil {
		t.ingest(raw)
		return
	}
	t.debounce(func() { t.ingest(raw) })
}

// HandleSensorPair records a synchronized odometry pose and velocity.
func (t *Tracker) HandleSensorPair(pose spatialmath.Pose2D, twist spatialmath.Twist) {
	pose.Theta = spatialmath.NormalizeAngle(pose.Theta)
	t.pose.Update(Sample{Pose: pose, Twist: twist, Stamp: t.clock.Now()})
}

// ActivePath returns the path the loop is currently following.
func (t *Tracker) ActivePath() trajectory.Path {
	return t.buffer.Active()
}

// State returns the state of the last tick.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) ingest(raw []r2.Point) {
	switch {
	case len(raw) == 0:
		t.ingestLogger.Debug("received an empty path")
		t.buffer.Stage(trajectory.Path{})
	case len(raw) < 3:
		// too short to fit a spline: head straight for the first waypoint
		sample, _ := t.pose.Read()
		t.buffer.Stage(trajectory.Path{{
			X:     raw[0].X,
			Y:     raw[0].Y,
			Theta: sample.Pose.BearingTo(raw[0]),
		}})
	default:
		if t.cfg.WaypointOrder == config.WaypointOrderReverse {
			raw = lo.Map(raw, func(_ r2.Point, i int) r2.Point { return raw[len(raw)-1-i] })
		}
		smoothed, err := t.smoother.Smooth(raw, t.cfg.SmoothingStep())
		if err != nil {
			t.ingestLogger.Warnw("failed to smooth path, keeping the current one", "waypoints", len(raw), "error", err)
			return
		}
		t.buffer.Stage(trajectory.PathFromSmoothed(smoothed))
		t.publishErr(t.publisher.PublishSmoothedPath(context.Background(), smoothed))
	}
}

// Tick runs one control step and publishes its outputs. After Close it publishes nothing.
//
// Outputs are published synchronously while the loop lock is held, so a slow Publisher delays
// this tick, the next one and Close. Callers that need a non-blocking tick must wrap their
// publisher in an AsyncPublisher, as the follow command does.
func (t *Tracker) Tick(ctx context.Context) Output {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return Output{State: t.state, Target: -1}
	}

	out := t.step()
	t.transition(out)

	if out.Target >= 0 {
		t.publishErr(t.publisher.PublishProgress(ctx, out.Progress))
		t.publishErr(t.publisher.PublishShortTermGoal(ctx, out.Goal))
	}
	t.publishErr(t.publisher.PublishCommand(ctx, out.Command))
	return out
}

func (t *Tracker) step() Output {
	if t.buffer.Promote() {
		t.logger.Debugw("promoted new path", "points", len(t.buffer.Active()))
	}
	path := t.buffer.Active()
	if len(path) == 0 {
		return Output{State: StateAwaitingPath, Target: -1}
	}
	sample, ok := t.pose.Read()
	if !ok {
		return Output{State: StateAwaitingPose, Target: -1}
	}

	steer, idx, err := t.law.ComputeSteering(sample.Pose, sample.Twist, path)
	if err == nil && (idx < 0 || idx >= len(path)) {
		err = errors.Errorf("target index %d is outside of the path [0, %d)", idx, len(path))
	}
	if err != nil {
		return Output{State: StateAwaitingPath, Target: -1, Reason: err}
	}

	out := Output{
		Target:   idx,
		Goal:     path[idx],
		Progress: Progress(idx, len(path)),
		Distance: sample.Pose.DistanceTo(path.End().Position()),
	}
	if GoalReached(sample.Pose, path.End(), t.cfg.GoalTolerance) {
		out.State = StateGoalReached
		out.Progress = 1
		return out
	}
	out.State = StateTracking
	out.Command = t.synth.Synthesize(steer, sample.Twist.LinearX, t.cfg.Period())
	return out
}

// transition logs entering a state. Staying in a state logs nothing; a steering failure and
// an empty path are separate causes of AwaitingPath and switching between them logs again.
func (t *Tracker) transition(out Output) {
	failing := out.Reason != nil
	if out.State == t.state && failing == t.failing {
		return
	}
	t.state, t.failing = out.State, failing
	switch out.State {
	case StateAwaitingPath:
		if out.Reason != nil {
			t.logger.Warnw("no usable path, holding position", "error", out.Reason)
		} else {
			t.logger.Info(waitForPathMsg)
		}
	case StateAwaitingPose:
		t.logger.Info("waiting for synchronized odometry")
	case StateTracking:
		t.logger.Infow("tracking path", "points", len(t.buffer.Active()))
	case StateGoalReached:
		t.logger.Infof("goal reached! %.2f", out.Distance)
	case StateInitializing:
	}
}

// Start runs Tick once per control period until Close.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("tracker is closed")
	}
	if t.workers != nil {
		return errors.New("tracker is already running")
	}
	period := t.cfg.Period()
	t.logger.Infow("starting control loop", "period", period)
	t.workers = utils.NewStoppableWorkers()
	t.workers.AddTicker(t.clock, period, func(ctx context.Context) {
		t.Tick(ctx)
	})
	return nil
}

// Close stops the loop and publishes a single zero command, whatever state the loop was in.
// Further calls return the result of the first.
func (t *Tracker) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		workers := t.workers
		t.mu.Unlock()
		if workers != nil {
			workers.Stop()
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		t.closed = true
		t.closeErr = t.publisher.PublishCommand(ctx, control.Command{})
		t.logger.Debug("control loop stopped")
	})
	return t.closeErr
}

func (t *Tracker) publishErr(err error) {
	if err != nil && t.errLimiter.Allow() {
		t.logger.Warnw("failed to publish tracker output", "error", err)
	}
}
