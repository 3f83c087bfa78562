// Package spatialmath defines the planar pose and velocity types shared by the tracker and
// the math needed to move between them and their ROS representations.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
)

// Pose2D is a planar robot pose. Theta is a heading in radians wrapped to (-π, π].
type Pose2D struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// NewPose2D returns a pose with its heading wrapped to (-π, π].
func NewPose2D(x, y, theta float64) Pose2D {
	return Pose2D{X: x, Y: y, Theta: NormalizeAngle(theta)}
}

// Point returns the position of the pose.
func (p Pose2D) Point() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// DistanceTo returns the euclidean distance between the pose position and pt.
func (p Pose2D) DistanceTo(pt r2.Point) float64 {
	return pt.Sub(p.Point()).Norm()
}

// BearingTo returns the heading, in radians, of the ray from the pose position to pt.
func (p Pose2D) BearingTo(pt r2.Point) float64 {
	d := pt.Sub(p.Point())
	return math.Atan2(d.Y, d.X)
}

// Twist is the planar velocity of the robot: forward speed in m/s and yaw rate in rad/s.
type Twist struct {
	LinearX  float64 `json:"linear_x"`
	AngularZ float64 `json:"angular_z"`
}

// NormalizeAngle wraps an angle in radians to (-π, π].
func NormalizeAngle(angle float64) float64 {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return angle
	}
	wrapped := math.Mod(angle+math.Pi, 2*math.Pi)
	if wrapped <= 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}
