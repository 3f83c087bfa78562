package tracker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/steerlab/pathtracker/control"
	"github.com/steerlab/pathtracker/logging"
	"github.com/steerlab/pathtracker/trajectory"
)

func TestJSONPublisher(t *testing.T) {
	var buf bytes.Buffer
	mock := clock.NewMock()
	mock.Set(time.Unix(10, 0))
	pub := NewJSONPublisher(&buf, mock)
	ctx := context.Background()

	test.That(t, pub.PublishCommand(ctx, control.Command{LinearX: 0.5, AngularZ: -0.1}), test.ShouldBeNil)
	test.That(t, pub.PublishProgress(ctx, 0.25), test.ShouldBeNil)
	test.That(t, pub.PublishShortTermGoal(ctx, trajectory.Point{X: 1, Y: 2, Theta: 0.5}), test.ShouldBeNil)
	test.That(t, pub.PublishSmoothedPath(ctx, []trajectory.SmoothedPoint{{Point: trajectory.Point{X: 1}, ArcLength: 1}}), test.ShouldBeNil)

	var records []Record
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var rec Record
		test.That(t, json.Unmarshal(scanner.Bytes(), &rec), test.ShouldBeNil)
		records = append(records, rec)
	}
	test.That(t, records, test.ShouldHaveLength, 4)
	test.That(t, records[0].Topic, test.ShouldEqual, TopicCommand)
	test.That(t, records[0].Stamp.Equal(time.Unix(10, 0)), test.ShouldBeTrue)
	test.That(t, string(records[0].Data), test.ShouldEqual, `{"linear_x":0.5,"angular_z":-0.1}`)
	test.That(t, records[1].Topic, test.ShouldEqual, TopicProgress)
	test.That(t, string(records[1].Data), test.ShouldEqual, `0.25`)
	test.That(t, records[2].Topic, test.ShouldEqual, TopicShortTermGoal)
	test.That(t, records[2].Frame, test.ShouldEqual, OdomFrame)
	test.That(t, string(records[2].Data), test.ShouldEqual, `{"x":1,"y":2,"theta":0.5}`)
	test.That(t, records[3].Topic, test.ShouldEqual, TopicSmoothedPath)
}

func TestMultiPublisher(t *testing.T) {
	first, second := &recordingPublisher{}, &recordingPublisher{}
	second.failNext = errors.New("second is down")
	multi := MultiPublisher{first, second}

	err := multi.PublishCommand(context.Background(), control.Command{LinearX: 1})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "second is down")
	test.That(t, first.Commands(), test.ShouldResemble, []control.Command{{LinearX: 1}})
	test.That(t, second.Commands(), test.ShouldResemble, []control.Command{{LinearX: 1}})

	test.That(t, multi.PublishProgress(context.Background(), 0.5), test.ShouldBeNil)
	test.That(t, first.progress, test.ShouldResemble, []float64{0.5})
}

// blockingPublisher holds every command until released.
type blockingPublisher struct {
	recordingPublisher
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPublisher) PublishCommand(ctx context.Context, cmd control.Command) error {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return b.recordingPublisher.PublishCommand(ctx, cmd)
}

func TestAsyncPublisherLastValueWins(t *testing.T) {
	slow := &blockingPublisher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	pub := NewAsyncPublisher(slow, logging.NewTestLogger(t))
	ctx := context.Background()

	test.That(t, pub.PublishCommand(ctx, control.Command{LinearX: 0.1}), test.ShouldBeNil)
	<-slow.entered

	// the worker is stuck delivering the first command; these never block and coalesce
	for i := 2; i <= 5; i++ {
		test.That(t, pub.PublishCommand(ctx, control.Command{LinearX: 0.1 * float64(i)}), test.ShouldBeNil)
	}
	test.That(t, pub.PublishProgress(ctx, 0.75), test.ShouldBeNil)
	close(slow.release)

	test.That(t, pub.Close(ctx), test.ShouldBeNil)
	commands := slow.Commands()
	test.That(t, commands[0], test.ShouldResemble, control.Command{LinearX: 0.1})
	test.That(t, commands[len(commands)-1], test.ShouldResemble, control.Command{LinearX: 0.5})
	test.That(t, len(commands), test.ShouldBeLessThanOrEqualTo, 3)
	test.That(t, slow.progress, test.ShouldResemble, []float64{0.75})

	test.That(t, pub.PublishCommand(ctx, control.Command{}), test.ShouldBeError, ErrPublisherClosed)
}

func TestAsyncPublisherWithTracker(t *testing.T) {
	rec := &recordingPublisher{}
	pub := NewAsyncPublisher(rec, logging.NewTestLogger(t))
	tr, err := New(Options{Config: testConfig(t), Publisher: pub}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	tr.HandlePath(straightWaypoints(3))
	for i := 0; i < 10; i++ {
		tr.Tick(context.Background())
	}
	test.That(t, tr.Close(context.Background()), test.ShouldBeNil)
	test.That(t, pub.Close(context.Background()), test.ShouldBeNil)

	commands := rec.Commands()
	test.That(t, commands, test.ShouldNotBeEmpty)
	test.That(t, commands[len(commands)-1], test.ShouldResemble, control.Command{})
	test.That(t, rec.smoothed, test.ShouldHaveLength, 1)
}
