package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/steerlab/pathtracker/config"
	"github.com/steerlab/pathtracker/logging"
	"github.com/steerlab/pathtracker/replay"
	"github.com/steerlab/pathtracker/ros"
	"github.com/steerlab/pathtracker/sensorsync"
	"github.com/steerlab/pathtracker/spatialmath"
	"github.com/steerlab/pathtracker/tracker"
)

// maxLineSize bounds a single input message; long paths make large lines.
const maxLineSize = 16 << 20

// inputLine is one message read by the follow command.
type inputLine struct {
	Topic string                 `json:"topic"`
	Data  map[string]interface{} `json:"data"`
}

type follower struct {
	cfg    *config.Config
	clock  clock.Clock
	logger logging.Logger
	tr     *tracker.Tracker
	syncer *sensorsync.Synchronizer[spatialmath.Pose2D, spatialmath.Twist]
}

// FollowAction runs the live control loop until stdin is exhausted or the process is
// interrupted. The robot is always sent a zero command on the way out.
func FollowAction(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(logger.Sync)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.New()
	pub := tracker.NewAsyncPublisher(tracker.NewJSONPublisher(c.App.Writer, clk), logger.Sublogger("publisher"))
	tr, err := tracker.New(tracker.Options{Config: cfg, Publisher: pub, Clock: clk}, logger.Sublogger("tracker"))
	if err != nil {
		return multierr.Combine(err, pub.Close(context.Background()))
	}
	syncer, err := sensorsync.New(cfg.SyncerConfig(), clk, logger.Sublogger("sync"), tr.HandleSensorPair)
	if err != nil {
		return multierr.Combine(err, pub.Close(context.Background()))
	}
	f := &follower{cfg: cfg, clock: clk, logger: logger, tr: tr, syncer: syncer}

	if err := tr.Start(); err != nil {
		return multierr.Combine(err, pub.Close(context.Background()))
	}
	runErr := f.run(ctx, c.App.Reader)

	// ctx may already be done; stopping must still reach the robot
	return multierr.Combine(
		runErr,
		tr.Close(context.Background()),
		pub.Close(context.Background()),
	)
}

func (f *follower) run(ctx context.Context, r io.Reader) error {
	lines := make(chan inputLine)
	readErr := make(chan error, 1)
	utils.PanicCapturingGo(func() {
		readErr <- f.read(ctx, r, lines)
	})

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("interrupted, stopping")
			return nil
		case err := <-readErr:
			if err == nil {
				f.logger.Info("input closed, stopping")
			}
			return err
		case line := <-lines:
			f.handle(line)
		}
	}
}

// read decodes lines from r until EOF. Malformed lines are skipped.
func (f *follower) read(ctx context.Context, r io.Reader, lines chan<- inputLine) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var line inputLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			f.logger.Warnw("skipping malformed input line", "error", err)
			continue
		}
		select {
		case lines <- line:
		case <-ctx.Done():
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "failed to read input")
	}
	return nil
}

func (f *follower) handle(line inputLine) {
	event, err := replay.EventFromMessage(ros.Message{Topic: line.Topic, Recorded: f.clock.Now(), Data: line.Data}, f.cfg.Topics)
	if err != nil {
		f.logger.Warnw("dropping message", "topic", line.Topic, "error", err)
		return
	}
	switch event.Kind {
	case replay.EventPath:
		f.tr.HandlePath(event.Waypoints)
	case replay.EventOdometry:
		f.syncer.AddFirst(event.Stamp, event.Pose)
	case replay.EventUserCommand:
		f.syncer.AddSecond(event.Stamp, event.Twist)
	}
}
