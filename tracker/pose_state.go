package tracker

import (
	"time"

	"go.uber.org/atomic"

	"github.com/steerlab/pathtracker/spatialmath"
)

// Sample is one synchronized odometry and velocity pair. Pose and Twist always come from the
// same pair.
type Sample struct {
	Pose  spatialmath.Pose2D
	Twist spatialmath.Twist
	Stamp time.Time
}

// PoseState holds the latest Sample. Updates swap an immutable snapshot so a reader never sees
// the pose of one pair with the twist of another.
type PoseState struct {
	latest atomic.Pointer[Sample]
}

// Update replaces the current sample.
func (ps *PoseState) Update(sample Sample) {
	ps.latest.Store(&sample)
}

// Read returns the latest sample. It reports false until the first Update.
func (ps *PoseState) Read() (Sample, bool) {
	sample := ps.latest.Load()
	if sample == nil {
		return Sample{}, false
	}
	return *sample, true
}
