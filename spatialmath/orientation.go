package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// YawFromQuaternion returns the rotation about Z, in radians, of a (possibly unnormalized)
// quaternion using the static XYZ convention ROS odometry uses. A zero quaternion yields 0.
func YawFromQuaternion(q quat.Number) float64 {
	norm := quat.Abs(q)
	if norm == 0 {
		return 0
	}
	q = quat.Scale(1/norm, q)
	sinyCosp := 2 * (q.Real*q.Kmag + q.Imag*q.Jmag)
	cosyCosp := 1 - 2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag)
	return NormalizeAngle(math.Atan2(sinyCosp, cosyCosp))
}
