// Package sensorsync pairs messages from two independently published streams by nearest
// timestamp, the way an approximate-time message filter does.
package sensorsync

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/steerlab/pathtracker/logging"
)

// Defaults match the odometry/user command filter of the tracker.
const (
	DefaultQueueSize = 10
	DefaultSlop      = 100 * time.Millisecond
)

// Config configures a Synchronizer.
type Config struct {
	// QueueSize bounds the number of unmatched messages kept per stream.
	QueueSize int
	// Slop is the largest timestamp difference of a pair.
	Slop time.Duration
	// AllowHeaderless stamps messages without a timestamp with their arrival time instead of
	// dropping them.
	AllowHeaderless bool
}

// Validate ensures the config is usable.
func (cfg Config) Validate() error {
	if cfg.QueueSize < 1 {
		return errors.Errorf("queue size must be at least 1, got %d", cfg.QueueSize)
	}
	if cfg.Slop < 0 {
		return errors.Errorf("slop must not be negative, got %v", cfg.Slop)
	}
	return nil
}

type entry[T any] struct {
	stamp time.Time
	msg   T
}

// Synchronizer pairs messages of type A with messages of type B. Each message is used in at most
// one pair and pairs are emitted in the order they are found.
type Synchronizer[A, B any] struct {
	cfg      Config
	clock    clock.Clock
	logger   logging.Logger
	callback func(A, B)

	mu     sync.Mutex
	first  []entry[A]
	second []entry[B]
}

// New returns a Synchronizer that calls callback with every matched pair. The callback runs on
// the goroutine that delivered the completing message and must not block.
func New[A, B any](cfg Config, clk clock.Clock, logger logging.Logger, callback func(A, B)) (*Synchronizer[A, B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Synchronizer[A, B]{
		cfg:      cfg,
		clock:    clk,
		logger:   logger,
		callback: callback,
	}, nil
}

// AddFirst delivers a message of the first stream. A zero stamp marks a headerless message.
func (s *Synchronizer[A, B]) AddFirst(stamp time.Time, msg A) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp, ok := s.resolveStamp(stamp)
	if !ok {
		return
	}
	s.first = appendBounded(s.first, entry[A]{stamp, msg}, s.cfg.QueueSize)
	s.match()
}

// AddSecond delivers a message of the second stream. A zero stamp marks a headerless message.
func (s *Synchronizer[A, B]) AddSecond(stamp time.Time, msg B) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp, ok := s.resolveStamp(stamp)
	if !ok {
		return
	}
	s.second = appendBounded(s.second, entry[B]{stamp, msg}, s.cfg.QueueSize)
	s.match()
}

// Pending returns the number of unmatched messages held for each stream.
func (s *Synchronizer[A, B]) Pending() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.first), len(s.second)
}

func (s *Synchronizer[A, B]) resolveStamp(stamp time.Time) (time.Time, bool) {
	if !stamp.IsZero() {
		return stamp, true
	}
	if !s.cfg.AllowHeaderless {
		s.logger.Debug("dropping headerless message")
		return stamp, false
	}
	return s.clock.Now(), true
}

// match emits the closest pairs within the slop until none is left. Messages older than a
// matched message of the same stream can never pair in order and are discarded with it.
func (s *Synchronizer[A, B]) match() {
	for {
		bestI, bestJ := -1, -1
		var bestDiff time.Duration
		for i, a := range s.first {
			for j, b := range s.second {
				diff := absDuration(a.stamp.Sub(b.stamp))
				if diff > s.cfg.Slop {
					continue
				}
				if bestI < 0 || diff < bestDiff {
					bestI, bestJ, bestDiff = i, j, diff
				}
			}
		}
		if bestI < 0 {
			return
		}

		a, b := s.first[bestI], s.second[bestJ]
		s.first = s.first[bestI+1:]
		s.second = s.second[bestJ+1:]
		if s.callback != nil {
			s.callback(a.msg, b.msg)
		}
	}
}

// appendBounded inserts e keeping the queue ordered by stamp and drops the oldest entries past
// size.
func appendBounded[T any](queue []entry[T], e entry[T], size int) []entry[T] {
	idx := len(queue)
	for idx > 0 && queue[idx-1].stamp.After(e.stamp) {
		idx--
	}
	queue = append(queue, entry[T]{})
	copy(queue[idx+1:], queue[idx:])
	queue[idx] = e
	if len(queue) > size {
		queue = queue[len(queue)-size:]
	}
	return queue
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
