package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/steerlab/pathtracker/logging"
	"github.com/steerlab/pathtracker/sensorsync"
)

const minimalConfig = `{"constraints": {"max_linear_velocity": 0.8, "max_angular_velocity": 1.2}}`

func TestFromReaderDefaults(t *testing.T) {
	conf, err := FromReader("somepath", strings.NewReader(minimalConfig))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.ConfigFilePath, test.ShouldEqual, "somepath")
	test.That(t, conf.MapResolution, test.ShouldEqual, DefaultMapResolution)
	test.That(t, conf.CmdFrequency, test.ShouldEqual, DefaultCmdFrequency)
	test.That(t, conf.GoalTolerance, test.ShouldEqual, DefaultGoalTolerance)
	test.That(t, conf.WaypointOrder, test.ShouldEqual, WaypointOrderForward)
	test.That(t, conf.PathSettle, test.ShouldEqual, time.Duration(0))
	test.That(t, conf.Controller, test.ShouldResemble, ControllerConfig{
		SpeedGain:       2.0,
		CrosstrackGain:  5.0,
		ReferenceLength: 0.6,
		WheelSeparation: 0.6,
	})
	test.That(t, conf.Topics, test.ShouldResemble, TopicsConfig{
		Path:        "walkable_path",
		Odometry:    "odom_filtered",
		UserCommand: "user_contributed/cmd_vel",
	})

	limits := conf.Constraints.Limits()
	test.That(t, limits.MaxLinearVelocity, test.ShouldEqual, 0.8)
	test.That(t, limits.MaxAngularVelocity, test.ShouldEqual, 1.2)

	test.That(t, conf.Period(), test.ShouldEqual, 200*time.Millisecond)
	test.That(t, conf.SmoothingStep(), test.ShouldAlmostEqual, 0.1)
	test.That(t, conf.Level(), test.ShouldEqual, logging.INFO)
	test.That(t, conf.SyncerConfig(), test.ShouldResemble, sensorsync.Config{
		QueueSize:       10,
		Slop:            100 * time.Millisecond,
		AllowHeaderless: true,
	})
}

func TestFromReaderFull(t *testing.T) {
	conf, err := FromReader("", strings.NewReader(`{
		"map_resolution": 0.5,
		"cmd_freq": 20,
		"goal_tolerance": 0.3,
		"constraints": {"max_linear_velocity": 1, "max_angular_velocity": 0.5},
		"controller": {"speed_gain": 1.5, "wheel_separation": 0.4},
		"sync": {"queue_size": 4, "slop": 0.05, "allow_headerless": false},
		"path_settle": "250ms",
		"waypoint_order": "reverse",
		"log_level": "debug",
		"topics": {"path": "plan"}
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Period(), test.ShouldEqual, 50*time.Millisecond)
	test.That(t, conf.SmoothingStep(), test.ShouldAlmostEqual, 0.25)
	test.That(t, conf.Controller.SpeedGain, test.ShouldEqual, 1.5)
	test.That(t, conf.Controller.CrosstrackGain, test.ShouldEqual, 5.0)
	test.That(t, conf.Controller.WheelSeparation, test.ShouldEqual, 0.4)
	test.That(t, conf.PathSettle, test.ShouldEqual, 250*time.Millisecond)
	test.That(t, conf.WaypointOrder, test.ShouldEqual, WaypointOrderReverse)
	test.That(t, conf.Level(), test.ShouldEqual, logging.DEBUG)
	test.That(t, conf.Topics.Path, test.ShouldEqual, "plan")
	test.That(t, conf.Topics.Odometry, test.ShouldEqual, DefaultOdometryTopic)
	test.That(t, conf.SyncerConfig(), test.ShouldResemble, sensorsync.Config{
		QueueSize: 4,
		Slop:      50 * time.Millisecond,
	})
}

func TestFromReaderValidate(t *testing.T) {
	_, err := FromReader("somepath", strings.NewReader(""))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "EOF")

	_, err = FromReader("somepath", strings.NewReader(`{}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"constraints" is required`)

	_, err = FromReader("somepath", strings.NewReader(`{"constraints": {"max_angular_velocity": 1}}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"max_linear_velocity" is required`)

	_, err = FromReader("somepath", strings.NewReader(`{"constraints": {"max_linear_velocity": 1}}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"max_angular_velocity" is required`)

	for _, bad := range []string{
		`{"cmd_freq": 500, "constraints": {"max_linear_velocity": 1, "max_angular_velocity": 1}}`,
		`{"cmd_freq": -1, "constraints": {"max_linear_velocity": 1, "max_angular_velocity": 1}}`,
		`{"goal_tolerance": -1, "constraints": {"max_linear_velocity": 1, "max_angular_velocity": 1}}`,
		`{"constraints": {"max_linear_velocity": -1, "max_angular_velocity": 1}}`,
		`{"controller": {"speed_gain": -2}, "constraints": {"max_linear_velocity": 1, "max_angular_velocity": 1}}`,
		`{"sync": {"queue_size": -2}, "constraints": {"max_linear_velocity": 1, "max_angular_velocity": 1}}`,
		`{"waypoint_order": "sideways", "constraints": {"max_linear_velocity": 1, "max_angular_velocity": 1}}`,
		`{"log_level": "loud", "constraints": {"max_linear_velocity": 1, "max_angular_velocity": 1}}`,
		`{"path_settle": "-1s", "constraints": {"max_linear_velocity": 1, "max_angular_velocity": 1}}`,
	} {
		_, err := FromReader("", strings.NewReader(bad))
		test.That(t, err, test.ShouldNotBeNil)
	}

	_, err = FromReader("", strings.NewReader(`{"map_resolutoin": 0.1, `+minimalConfig[1:]))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "map_resolutoin")
}

func TestRead(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)

	t.Setenv("PATHTRACKER_MAX_SPEED", "0.5")
	path := filepath.Join(t.TempDir(), "tracker.json")
	err = os.WriteFile(path, []byte(`{
		"cmd_freq": 10,
		"constraints": {"max_linear_velocity": ${PATHTRACKER_MAX_SPEED}, "max_angular_velocity": 1}
	}`), 0o600)
	test.That(t, err, test.ShouldBeNil)

	conf, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, *conf.Constraints.MaxLinearVelocity, test.ShouldEqual, 0.5)
	test.That(t, conf.Period(), test.ShouldEqual, 100*time.Millisecond)
}

func TestDecodeAttributes(t *testing.T) {
	var limits Constraints
	err := DecodeAttributes(map[string]interface{}{
		"max_linear_velocity":  1,
		"max_angular_velocity": 0.25,
	}, &limits)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, limits.Limits().MaxLinearVelocity, test.ShouldEqual, 1.0)
	test.That(t, limits.Limits().MaxAngularVelocity, test.ShouldEqual, 0.25)

	err = DecodeAttributes(map[string]interface{}{"max_speed": 1}, &limits)
	test.That(t, err, test.ShouldNotBeNil)
}
