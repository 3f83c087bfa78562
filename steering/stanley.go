// Package steering contains the lateral control law the tracker uses to steer along a path.
package steering

import (
	"math"

	"github.com/pkg/errors"

	"github.com/steerlab/pathtracker/spatialmath"
	"github.com/steerlab/pathtracker/trajectory"
)

const (
	// DefaultReferenceLength is the distance from the pose origin to the steering reference
	// point, in meters.
	DefaultReferenceLength = 0.6
	// DefaultCrosstrackGain weighs the crosstrack term of the Stanley law.
	DefaultCrosstrackGain = 5.0
)

// ErrEmptyPath is returned when steering is requested against an empty path.
var ErrEmptyPath = errors.New("cannot steer along an empty path")

// Law computes a steering error and the index of the path point used as the tracking
// reference. The returned index is in [0, len(path)).
type Law interface {
	ComputeSteering(pose spatialmath.Pose2D, twist spatialmath.Twist, path trajectory.Path) (float64, int, error)
}

// Stanley is the Stanley lateral controller. The reference point is projected ReferenceLength
// ahead of the pose; the target is the path point nearest to it and the steering error is the
// heading error plus atan2(CrosstrackGain * crosstrack error, speed).
type Stanley struct {
	ReferenceLength float64
	CrosstrackGain  float64
}

// NewStanley returns a Stanley law with the default reference length and gain.
func NewStanley() *Stanley {
	return &Stanley{ReferenceLength: DefaultReferenceLength, CrosstrackGain: DefaultCrosstrackGain}
}

// ComputeSteering implements Law.
func (s *Stanley) ComputeSteering(
	pose spatialmath.Pose2D, twist spatialmath.Twist, path trajectory.Path,
) (float64, int, error) {
	if len(path) == 0 {
		return 0, 0, ErrEmptyPath
	}
	idx, crosstrack := s.TargetIndex(pose, path)
	if idx < 0 {
		return 0, 0, errors.New("no finite path point near the reference point")
	}

	headingErr := spatialmath.NormalizeAngle(path[idx].Theta - pose.Theta)
	crosstrackErr := math.Atan2(s.CrosstrackGain*crosstrack, twist.LinearX)
	steer := headingErr + crosstrackErr
	if math.IsNaN(steer) || math.IsInf(steer, 0) {
		return 0, 0, errors.Errorf("steering error is not finite at target %d", idx)
	}
	return steer, idx, nil
}

// TargetIndex returns the index of the path point nearest to the reference point and the signed
// crosstrack error of the reference point to it, positive when the path lies to the left.
// It returns -1 when no point has a finite distance.
func (s *Stanley) TargetIndex(pose spatialmath.Pose2D, path trajectory.Path) (int, float64) {
	fx := pose.X + s.ReferenceLength*math.Cos(pose.Theta)
	fy := pose.Y + s.ReferenceLength*math.Sin(pose.Theta)

	best, bestDist := -1, math.Inf(1)
	for i, pt := range path {
		d := math.Hypot(fx-pt.X, fy-pt.Y)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return -1, 0
	}

	// project the offset onto the axis perpendicular to the heading
	dx, dy := fx-path[best].X, fy-path[best].Y
	crosstrack := dx*-math.Cos(pose.Theta+math.Pi/2) + dy*-math.Sin(pose.Theta+math.Pi/2)
	return best, crosstrack
}
