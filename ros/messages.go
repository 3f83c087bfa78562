package ros

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/num/quat"

	"github.com/steerlab/pathtracker/spatialmath"
)

// Time is a ROS timestamp.
type Time struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

// Time converts the stamp. A zero stamp, as sent by headerless messages, converts to the zero
// time.
func (t Time) Time() time.Time {
	if t.Secs == 0 && t.Nsecs == 0 {
		return time.Time{}
	}
	return time.Unix(t.Secs, t.Nsecs)
}

// Header is std_msgs/Header.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Vector3 is geometry_msgs/Vector3 and geometry_msgs/Point.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Yaw returns the heading of the orientation.
func (q Quaternion) Yaw() float64 {
	return spatialmath.YawFromQuaternion(quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z})
}

// Pose is geometry_msgs/Pose.
type Pose struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// Pose2D projects the pose onto the ground plane.
func (p Pose) Pose2D() spatialmath.Pose2D {
	return spatialmath.NewPose2D(p.Position.X, p.Position.Y, p.Orientation.Yaw())
}

// PoseStamped is geometry_msgs/PoseStamped.
type PoseStamped struct {
	Header Header `json:"header"`
	Pose   Pose   `json:"pose"`
}

// PathMessage is nav_msgs/Path, the planned walkable path.
type PathMessage struct {
	Header Header        `json:"header"`
	Poses  []PoseStamped `json:"poses"`
}

// Waypoints returns the positions of the path poses in order.
func (m PathMessage) Waypoints() []r2.Point {
	return lo.Map(m.Poses, func(p PoseStamped, _ int) r2.Point {
		return r2.Point{X: p.Pose.Position.X, Y: p.Pose.Position.Y}
	})
}

// TwistMessage is geometry_msgs/Twist. It carries no header.
type TwistMessage struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// Twist2D keeps the planar components of the twist.
func (m TwistMessage) Twist2D() spatialmath.Twist {
	return spatialmath.Twist{LinearX: m.Linear.X, AngularZ: m.Angular.Z}
}

// PoseWithCovariance is geometry_msgs/PoseWithCovariance.
type PoseWithCovariance struct {
	Pose       Pose      `json:"pose"`
	Covariance []float64 `json:"covariance"`
}

// TwistWithCovariance is geometry_msgs/TwistWithCovariance.
type TwistWithCovariance struct {
	Twist      TwistMessage `json:"twist"`
	Covariance []float64    `json:"covariance"`
}

// OdometryMessage is nav_msgs/Odometry.
type OdometryMessage struct {
	Header       Header              `json:"header"`
	ChildFrameID string              `json:"child_frame_id"`
	Pose         PoseWithCovariance  `json:"pose"`
	Twist        TwistWithCovariance `json:"twist"`
}

// Pose2D returns the planar pose of the odometry.
func (m OdometryMessage) Pose2D() spatialmath.Pose2D {
	return m.Pose.Pose.Pose2D()
}

// Twist2D returns the planar velocity of the odometry.
func (m OdometryMessage) Twist2D() spatialmath.Twist {
	return m.Twist.Twist.Twist2D()
}

// Decode fills out, one of the message types of this package, from the loosely typed form of a
// message. Fields out does not know are ignored.
func Decode(data map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(data); err != nil {
		return errors.Wrapf(err, "failed to decode %T", out)
	}
	return nil
}

// DecodePath decodes a nav_msgs/Path message.
func DecodePath(data map[string]interface{}) (PathMessage, error) {
	var msg PathMessage
	err := Decode(data, &msg)
	return msg, err
}

// DecodeOdometry decodes a nav_msgs/Odometry message.
func DecodeOdometry(data map[string]interface{}) (OdometryMessage, error) {
	var msg OdometryMessage
	err := Decode(data, &msg)
	return msg, err
}

// DecodeTwist decodes a geometry_msgs/Twist message.
func DecodeTwist(data map[string]interface{}) (TwistMessage, error) {
	var msg TwistMessage
	err := Decode(data, &msg)
	return msg, err
}
