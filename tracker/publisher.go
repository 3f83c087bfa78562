package tracker

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/steerlab/pathtracker/control"
	"github.com/steerlab/pathtracker/logging"
	"github.com/steerlab/pathtracker/trajectory"
	"github.com/steerlab/pathtracker/utils"
)

// Output topics and the frame of the published path data.
const (
	TopicCommand       = "cmd_vel"
	TopicProgress      = "tracking_progress"
	TopicShortTermGoal = "short_term_goal"
	TopicSmoothedPath  = "smooth_path"

	OdomFrame = "odom"
)

// ErrPublisherClosed is returned by publishers used after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// A Publisher delivers the tracker outputs downstream. Consumers treat every output as
// last-value-wins.
type Publisher interface {
	PublishCommand(ctx context.Context, cmd control.Command) error
	PublishProgress(ctx context.Context, progress float64) error
	PublishShortTermGoal(ctx context.Context, goal trajectory.Point) error
	PublishSmoothedPath(ctx context.Context, path []trajectory.SmoothedPoint) error
}

// JSONPublisher writes every output as one JSON object per line.
type JSONPublisher struct {
	mu    sync.Mutex
	enc   *json.Encoder
	clock clock.Clock
}

// Record is a line written by JSONPublisher.
type Record struct {
	Topic string          `json:"topic"`
	Stamp time.Time       `json:"stamp"`
	Frame string          `json:"frame,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// NewJSONPublisher returns a JSONPublisher writing to w and stamping records with clk.
func NewJSONPublisher(w io.Writer, clk clock.Clock) *JSONPublisher {
	if clk == nil {
		clk = clock.New()
	}
	return &JSONPublisher{enc: json.NewEncoder(w), clock: clk}
}

// PublishCommand implements Publisher.
func (p *JSONPublisher) PublishCommand(ctx context.Context, cmd control.Command) error {
	return p.write(TopicCommand, "", cmd)
}

// PublishProgress implements Publisher.
func (p *JSONPublisher) PublishProgress(ctx context.Context, progress float64) error {
	return p.write(TopicProgress, "", progress)
}

// PublishShortTermGoal implements Publisher.
func (p *JSONPublisher) PublishShortTermGoal(ctx context.Context, goal trajectory.Point) error {
	return p.write(TopicShortTermGoal, OdomFrame, goal)
}

// PublishSmoothedPath implements Publisher.
func (p *JSONPublisher) PublishSmoothedPath(ctx context.Context, path []trajectory.SmoothedPoint) error {
	return p.write(TopicSmoothedPath, OdomFrame, path)
}

func (p *JSONPublisher) write(topic, frame string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", topic)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(Record{Topic: topic, Stamp: p.clock.Now(), Frame: frame, Data: raw})
}

// MultiPublisher fans every output out to all of its publishers.
type MultiPublisher []Publisher

// PublishCommand implements Publisher.
func (m MultiPublisher) PublishCommand(ctx context.Context, cmd control.Command) error {
	return m.each(func(p Publisher) error { return p.PublishCommand(ctx, cmd) })
}

// PublishProgress implements Publisher.
func (m MultiPublisher) PublishProgress(ctx context.Context, progress float64) error {
	return m.each(func(p Publisher) error { return p.PublishProgress(ctx, progress) })
}

// PublishShortTermGoal implements Publisher.
func (m MultiPublisher) PublishShortTermGoal(ctx context.Context, goal trajectory.Point) error {
	return m.each(func(p Publisher) error { return p.PublishShortTermGoal(ctx, goal) })
}

// PublishSmoothedPath implements Publisher.
func (m MultiPublisher) PublishSmoothedPath(ctx context.Context, path []trajectory.SmoothedPoint) error {
	return m.each(func(p Publisher) error { return p.PublishSmoothedPath(ctx, path) })
}

func (m MultiPublisher) each(fn func(Publisher) error) error {
	var err error
	for _, p := range m {
		err = multierr.Append(err, fn(p))
	}
	return err
}

// AsyncPublisher decouples the caller from a slow Publisher. Each output kind has a one-slot
// mailbox where a newer value replaces an undelivered older one, and a background worker
// forwards the mailbox contents. Publish calls never block on the wrapped publisher.
type AsyncPublisher struct {
	next    Publisher
	logger  logging.Logger
	limiter *rate.Limiter
	wake    chan struct{}
	workers utils.StoppableWorkers

	mu       sync.Mutex
	closed   bool
	command  *control.Command
	progress *float64
	goal     *trajectory.Point
	smoothed []trajectory.SmoothedPoint
	hasPath  bool
}

// NewAsyncPublisher starts forwarding to next. Close must be called to deliver the last values
// and stop the worker.
func NewAsyncPublisher(next Publisher, logger logging.Logger) *AsyncPublisher {
	ap := &AsyncPublisher{
		next:    next,
		logger:  logger,
		limiter: newErrorLimiter(),
		wake:    make(chan struct{}, 1),
	}
	ap.workers = utils.NewStoppableWorkers(ap.run)
	return ap
}

// PublishCommand implements Publisher.
func (ap *AsyncPublisher) PublishCommand(ctx context.Context, cmd control.Command) error {
	return ap.post(func() { ap.command = &cmd })
}

// PublishProgress implements Publisher.
func (ap *AsyncPublisher) PublishProgress(ctx context.Context, progress float64) error {
	return ap.post(func() { ap.progress = &progress })
}

// PublishShortTermGoal implements Publisher.
func (ap *AsyncPublisher) PublishShortTermGoal(ctx context.Context, goal trajectory.Point) error {
	return ap.post(func() { ap.goal = &goal })
}

// PublishSmoothedPath implements Publisher.
func (ap *AsyncPublisher) PublishSmoothedPath(ctx context.Context, path []trajectory.SmoothedPoint) error {
	return ap.post(func() { ap.smoothed, ap.hasPath = path, true })
}

// Close stops the worker and synchronously delivers whatever is still in the mailboxes.
func (ap *AsyncPublisher) Close(ctx context.Context) error {
	ap.mu.Lock()
	ap.closed = true
	ap.mu.Unlock()
	ap.workers.Stop()
	return ap.flush(ctx)
}

func (ap *AsyncPublisher) post(store func()) error {
	ap.mu.Lock()
	if ap.closed {
		ap.mu.Unlock()
		return ErrPublisherClosed
	}
	store()
	ap.mu.Unlock()

	select {
	case ap.wake <- struct{}{}:
	default:
	}
	return nil
}

func (ap *AsyncPublisher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ap.wake:
		}
		if err := ap.flush(ctx); err != nil && ap.limiter.Allow() {
			ap.logger.Warnw("failed to publish tracker output", "error", err)
		}
	}
}

// flush takes the mailbox contents and forwards them, path data first and the command last.
func (ap *AsyncPublisher) flush(ctx context.Context) error {
	ap.mu.Lock()
	command, progress, goal := ap.command, ap.progress, ap.goal
	smoothed, hasPath := ap.smoothed, ap.hasPath
	ap.command, ap.progress, ap.goal = nil, nil, nil
	ap.smoothed, ap.hasPath = nil, false
	ap.mu.Unlock()

	var err error
	if hasPath {
		err = multierr.Append(err, ap.next.PublishSmoothedPath(ctx, smoothed))
	}
	if goal != nil {
		err = multierr.Append(err, ap.next.PublishShortTermGoal(ctx, *goal))
	}
	if progress != nil {
		err = multierr.Append(err, ap.next.PublishProgress(ctx, *progress))
	}
	if command != nil {
		err = multierr.Append(err, ap.next.PublishCommand(ctx, *command))
	}
	return err
}

// newErrorLimiter allows one publish failure log every few seconds.
func newErrorLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(5*time.Second), 1)
}
