package steering

import (
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/steerlab/pathtracker/spatialmath"
	"github.com/steerlab/pathtracker/trajectory"
)

func straightPath(n int) trajectory.Path {
	path := make(trajectory.Path, n)
	for i := range path {
		path[i] = trajectory.Point{X: 0.1 * float64(i)}
	}
	return path
}

func TestStanleyOnPath(t *testing.T) {
	law := NewStanley()
	path := straightPath(30)

	steer, idx, err := law.ComputeSteering(spatialmath.Pose2D{}, spatialmath.Twist{LinearX: 0.5}, path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, steer, test.ShouldAlmostEqual, 0, 1e-12)
	// the reference point sits 0.6m ahead of the pose
	test.That(t, idx, test.ShouldEqual, 6)
}

func TestStanleyCrosstrack(t *testing.T) {
	law := NewStanley()
	path := straightPath(30)
	twist := spatialmath.Twist{LinearX: 0.5}

	// path to the left of the robot: steer left
	steer, _, err := law.ComputeSteering(spatialmath.Pose2D{Y: -0.2}, twist, path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, steer, test.ShouldAlmostEqual, math.Atan2(5*0.2, 0.5))

	// path to the right: steer right
	steer, _, err = law.ComputeSteering(spatialmath.Pose2D{Y: 0.2}, twist, path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, steer, test.ShouldAlmostEqual, -math.Atan2(5*0.2, 0.5))

	// stationary robot off the path gets the full perpendicular correction
	steer, _, err = law.ComputeSteering(spatialmath.Pose2D{Y: -0.2}, spatialmath.Twist{}, path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, steer, test.ShouldAlmostEqual, math.Pi/2)
}

func TestStanleyHeadingError(t *testing.T) {
	law := &Stanley{ReferenceLength: 0, CrosstrackGain: DefaultCrosstrackGain}
	path := trajectory.Path{{X: 0, Y: 0, Theta: 0.3}, {X: 1, Y: 0, Theta: 0.3}}

	steer, idx, err := law.ComputeSteering(spatialmath.Pose2D{Theta: -0.2}, spatialmath.Twist{LinearX: 1}, path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idx, test.ShouldEqual, 0)
	test.That(t, steer, test.ShouldAlmostEqual, 0.5)

	// heading error is wrapped
	path = trajectory.Path{{X: 0, Y: 0, Theta: 3}}
	steer, _, err = law.ComputeSteering(spatialmath.Pose2D{Theta: -3}, spatialmath.Twist{LinearX: 1}, path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, steer, test.ShouldAlmostEqual, 6-2*math.Pi)
}

func TestStanleyTargetIndexInRange(t *testing.T) {
	law := NewStanley()
	path := straightPath(10)
	for _, pose := range []spatialmath.Pose2D{{X: -5}, {X: 50}, {X: 0.3, Y: 3, Theta: 2}} {
		_, idx, err := law.ComputeSteering(pose, spatialmath.Twist{LinearX: 0.3}, path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, idx, test.ShouldBeBetweenOrEqual, 0, len(path)-1)
	}
}

func TestStanleyFailures(t *testing.T) {
	law := NewStanley()
	_, _, err := law.ComputeSteering(spatialmath.Pose2D{}, spatialmath.Twist{}, nil)
	test.That(t, err, test.ShouldBeError, ErrEmptyPath)

	_, _, err = law.ComputeSteering(spatialmath.Pose2D{}, spatialmath.Twist{},
		trajectory.Path{{X: math.NaN(), Y: 0}})
	test.That(t, err, test.ShouldNotBeNil)
}
