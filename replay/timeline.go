// Package replay drives a tracker offline from recorded inputs on a simulated clock, so a run
// is reproducible tick for tick.
package replay

import (
	"sort"
	"time"

	"github.com/edaniels/gobag/rosbag"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/steerlab/pathtracker/config"
	"github.com/steerlab/pathtracker/ros"
	"github.com/steerlab/pathtracker/spatialmath"
)

// EventKind is the input an Event carries.
type EventKind int

// The replayable inputs.
const (
	EventPath EventKind = iota
	EventOdometry
	EventUserCommand
)

func (k EventKind) String() string {
	switch k {
	case EventPath:
		return "path"
	case EventOdometry:
		return "odometry"
	case EventUserCommand:
		return "user_command"
	default:
		return "unknown"
	}
}

// Event is one recorded input.
type Event struct {
	// At is when the input was received.
	At   time.Time
	Kind EventKind
	// Stamp is the header stamp of the message. It is zero for headerless messages.
	Stamp     time.Time
	Waypoints []r2.Point
	Pose      spatialmath.Pose2D
	Twist     spatialmath.Twist
}

// Timeline is a list of events ordered by arrival.
type Timeline []Event

// Sort orders the events by arrival, keeping the recorded order of simultaneous events.
func (tl Timeline) Sort() {
	sort.SliceStable(tl, func(i, j int) bool {
		return tl[i].At.Before(tl[j].At)
	})
}

// FromBag extracts the path, odometry and user command topics of a bag.
func FromBag(rb *rosbag.RosBag, topics config.TopicsConfig) (Timeline, error) {
	msgs, err := ros.ReadMessages(rb, topics.Path, topics.Odometry, topics.UserCommand)
	if err != nil {
		return nil, err
	}
	timeline := make(Timeline, 0, len(msgs))
	for i, msg := range msgs {
		event, err := EventFromMessage(msg, topics)
		if err != nil {
			return nil, errors.Wrapf(err, "message %d", i)
		}
		timeline = append(timeline, event)
	}
	timeline.Sort()
	return timeline, nil
}

// EventFromMessage converts a message of one of the tracker topics into an event received at
// its record time.
func EventFromMessage(msg ros.Message, topics config.TopicsConfig) (Event, error) {
	event := Event{At: msg.Recorded}
	switch msg.Topic {
	case topics.Path:
		path, err := ros.DecodePath(msg.Data)
		if err != nil {
			return event, err
		}
		event.Kind = EventPath
		event.Stamp = path.Header.Stamp.Time()
		event.Waypoints = path.Waypoints()
	case topics.Odometry:
		odom, err := ros.DecodeOdometry(msg.Data)
		if err != nil {
			return event, err
		}
		event.Kind = EventOdometry
		event.Stamp = odom.Header.Stamp.Time()
		event.Pose = odom.Pose2D()
		event.Twist = odom.Twist2D()
	case topics.UserCommand:
		twist, err := ros.DecodeTwist(msg.Data)
		if err != nil {
			return event, err
		}
		event.Kind = EventUserCommand
		event.Twist = twist.Twist2D()
	default:
		return event, errors.Errorf("unexpected topic %q", msg.Topic)
	}
	return event, nil
}
