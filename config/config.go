// Package config defines the runtime configuration of the path tracker.
package config

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/steerlab/pathtracker/control"
	"github.com/steerlab/pathtracker/logging"
	"github.com/steerlab/pathtracker/sensorsync"
	"github.com/steerlab/pathtracker/steering"
)

// Defaults applied to options left unset.
const (
	DefaultMapResolution = 0.2
	DefaultCmdFrequency  = 5.0
	DefaultGoalTolerance = 0.2

	// MaxCmdFrequency is the fastest supported control loop.
	MaxCmdFrequency = 200.0

	DefaultPathTopic        = "walkable_path"
	DefaultOdometryTopic    = "odom_filtered"
	DefaultUserCommandTopic = "user_contributed/cmd_vel"
)

// WaypointOrder tells which end of a raw path the robot should start from.
type WaypointOrder string

// The known waypoint orders.
const (
	WaypointOrderForward WaypointOrder = "forward"
	WaypointOrderReverse WaypointOrder = "reverse"
)

// A Config describes the configuration of a path tracker. It is read once at startup and
// must not be modified afterwards.
type Config struct {
	ConfigFilePath string `json:"-"`

	MapResolution float64          `json:"map_resolution,omitempty"`
	CmdFrequency  float64          `json:"cmd_freq,omitempty"`
	GoalTolerance float64          `json:"goal_tolerance,omitempty"`
	Constraints   *Constraints     `json:"constraints"`
	Controller    ControllerConfig `json:"controller,omitempty"`
	Sync          SyncConfig       `json:"sync,omitempty"`
	PathSettle    time.Duration    `json:"path_settle,omitempty"`
	WaypointOrder WaypointOrder    `json:"waypoint_order,omitempty"`
	LogLevel      string           `json:"log_level,omitempty"`
	Topics        TopicsConfig     `json:"topics,omitempty"`
}

// Constraints are the kinematic limits of the robot. Both are required.
type Constraints struct {
	MaxLinearVelocity  *float64 `json:"max_linear_velocity"`
	MaxAngularVelocity *float64 `json:"max_angular_velocity"`
}

// ControllerConfig holds the gains and geometry of the control laws.
type ControllerConfig struct {
	SpeedGain       float64 `json:"speed_gain,omitempty"`
	CrosstrackGain  float64 `json:"crosstrack_gain,omitempty"`
	ReferenceLength float64 `json:"reference_length,omitempty"`
	WheelSeparation float64 `json:"wheel_separation,omitempty"`
}

// SyncConfig configures the pairing of odometry with user commands. Slop is in seconds.
type SyncConfig struct {
	QueueSize       int     `json:"queue_size,omitempty"`
	Slop            float64 `json:"slop,omitempty"`
	AllowHeaderless *bool   `json:"allow_headerless,omitempty"`
}

// TopicsConfig names the bag topics read during replay.
type TopicsConfig struct {
	Path        string `json:"path,omitempty"`
	Odometry    string `json:"odometry,omitempty"`
	UserCommand string `json:"user_command,omitempty"`
}

// Validate ensures all parts of the config are valid and fills in defaults.
func (c *Config) Validate(path string) error {
	if err := nonNegative(path, "map_resolution", c.MapResolution); err != nil {
		return err
	}
	if c.MapResolution == 0 {
		c.MapResolution = DefaultMapResolution
	}
	if c.CmdFrequency == 0 {
		c.CmdFrequency = DefaultCmdFrequency
	}
	if c.CmdFrequency < 0 || c.CmdFrequency > MaxCmdFrequency || math.IsNaN(c.CmdFrequency) {
		return utils.NewConfigValidationError(path,
			errors.Errorf("cmd_freq must be in (0, %.0f], got %v", MaxCmdFrequency, c.CmdFrequency))
	}
	if err := nonNegative(path, "goal_tolerance", c.GoalTolerance); err != nil {
		return err
	}
	if c.GoalTolerance == 0 {
		c.GoalTolerance = DefaultGoalTolerance
	}

	if c.Constraints == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "constraints")
	}
	if err := c.Constraints.Validate(joinPath(path, "constraints")); err != nil {
		return err
	}
	if err := c.Controller.Validate(joinPath(path, "controller")); err != nil {
		return err
	}
	if err := c.Sync.Validate(joinPath(path, "sync")); err != nil {
		return err
	}

	if c.PathSettle < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("path_settle must not be negative, got %v", c.PathSettle))
	}
	switch c.WaypointOrder {
	case "":
		c.WaypointOrder = WaypointOrderForward
	case WaypointOrderForward, WaypointOrderReverse:
	default:
		return utils.NewConfigValidationError(path,
			errors.Errorf("waypoint_order must be %q or %q, got %q", WaypointOrderForward, WaypointOrderReverse, c.WaypointOrder))
	}
	if _, err := logging.LevelFromString(c.LogLevel); err != nil {
		return utils.NewConfigValidationError(path, err)
	}

	if c.Topics.Path == "" {
		c.Topics.Path = DefaultPathTopic
	}
	if c.Topics.Odometry == "" {
		c.Topics.Odometry = DefaultOdometryTopic
	}
	if c.Topics.UserCommand == "" {
		c.Topics.UserCommand = DefaultUserCommandTopic
	}
	return nil
}

// Validate ensures both limits are present and non-negative.
func (c *Constraints) Validate(path string) error {
	if c.MaxLinearVelocity == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "max_linear_velocity")
	}
	if c.MaxAngularVelocity == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "max_angular_velocity")
	}
	if err := c.Limits().Validate(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// Limits returns the constraints as control limits. Missing values are zero.
func (c *Constraints) Limits() control.Limits {
	var limits control.Limits
	if c == nil {
		return limits
	}
	if c.MaxLinearVelocity != nil {
		limits.MaxLinearVelocity = *c.MaxLinearVelocity
	}
	if c.MaxAngularVelocity != nil {
		limits.MaxAngularVelocity = *c.MaxAngularVelocity
	}
	return limits
}

// Validate fills in the controller defaults and rejects negative values.
func (c *ControllerConfig) Validate(path string) error {
	for _, field := range []struct {
		name  string
		value *float64
		def   float64
	}{
		{"speed_gain", &c.SpeedGain, control.DefaultSpeedGain},
		{"crosstrack_gain", &c.CrosstrackGain, steering.DefaultCrosstrackGain},
		{"reference_length", &c.ReferenceLength, steering.DefaultReferenceLength},
		{"wheel_separation", &c.WheelSeparation, control.DefaultWheelSeparation},
	} {
		if err := nonNegative(path, field.name, *field.value); err != nil {
			return err
		}
		if *field.value == 0 {
			*field.value = field.def
		}
	}
	return nil
}

// Validate fills in the synchronizer defaults.
func (c *SyncConfig) Validate(path string) error {
	if c.QueueSize < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("queue_size must not be negative, got %d", c.QueueSize))
	}
	if c.QueueSize == 0 {
		c.QueueSize = sensorsync.DefaultQueueSize
	}
	if err := nonNegative(path, "slop", c.Slop); err != nil {
		return err
	}
	if c.Slop == 0 {
		c.Slop = sensorsync.DefaultSlop.Seconds()
	}
	if c.AllowHeaderless == nil {
		allow := true
		c.AllowHeaderless = &allow
	}
	return nil
}

// Period is the duration of one control tick.
func (c *Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.CmdFrequency)
}

// SmoothingStep is the arc-length distance between smoothed path samples.
func (c *Config) SmoothingStep() float64 {
	return c.MapResolution / 2
}

// Level returns the configured log level.
func (c *Config) Level() logging.Level {
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// SyncerConfig converts the sync options for a sensorsync.Synchronizer.
func (c *Config) SyncerConfig() sensorsync.Config {
	allow := c.Sync.AllowHeaderless == nil || *c.Sync.AllowHeaderless
	return sensorsync.Config{
		QueueSize:       c.Sync.QueueSize,
		Slop:            time.Duration(c.Sync.Slop * float64(time.Second)),
		AllowHeaderless: allow,
	}
}

func nonNegative(path, field string, value float64) error {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return utils.NewConfigValidationError(path, errors.Errorf("%s must be a non-negative number, got %v", field, value))
	}
	return nil
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}
