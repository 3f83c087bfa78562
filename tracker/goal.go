package tracker

import (
	"github.com/steerlab/pathtracker/spatialmath"
	"github.com/steerlab/pathtracker/trajectory"
)

// Progress is the fraction of the path covered once the target index is reached, clamped to
// (0, 1]. An empty path counts as no progress.
func Progress(targetIndex, pathLength int) float64 {
	if pathLength <= 0 {
		return 0
	}
	if targetIndex < 0 {
		targetIndex = 0
	}
	if targetIndex >= pathLength {
		return 1
	}
	return float64(targetIndex+1) / float64(pathLength)
}

// GoalReached reports whether pose is within tolerance of the path end.
func GoalReached(pose spatialmath.Pose2D, end trajectory.Point, tolerance float64) bool {
	return pose.DistanceTo(end.Position()) <= tolerance
}
