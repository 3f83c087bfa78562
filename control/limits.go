// Package control turns a steering error into a saturated velocity command for a differential
// drive base.
package control

import (
	"math"

	"github.com/pkg/errors"
)

// Limits are the kinematic constraints of the base. They are loaded once and never change.
type Limits struct {
	MaxLinearVelocity  float64 `json:"max_linear_velocity" mapstructure:"max_linear_velocity"`
	MaxAngularVelocity float64 `json:"max_angular_velocity" mapstructure:"max_angular_velocity"`
}

// Validate ensures both limits are finite and non-negative.
func (l Limits) Validate() error {
	if math.IsNaN(l.MaxLinearVelocity) || math.IsInf(l.MaxLinearVelocity, 0) || l.MaxLinearVelocity < 0 {
		return errors.Errorf("max_linear_velocity must be a finite value >= 0, got %v", l.MaxLinearVelocity)
	}
	if math.IsNaN(l.MaxAngularVelocity) || math.IsInf(l.MaxAngularVelocity, 0) || l.MaxAngularVelocity < 0 {
		return errors.Errorf("max_angular_velocity must be a finite value >= 0, got %v", l.MaxAngularVelocity)
	}
	return nil
}

// Command is the velocity sent to the base: forward speed in m/s and yaw rate in rad/s.
type Command struct {
	LinearX  float64 `json:"linear_x"`
	AngularZ float64 `json:"angular_z"`
}

// IsZero reports whether the command stops the base.
func (c Command) IsZero() bool {
	return c.LinearX == 0 && c.AngularZ == 0
}

// Within reports whether the command honors l.
func (c Command) Within(l Limits) bool {
	return c.LinearX >= 0 && c.LinearX <= l.MaxLinearVelocity &&
		math.Abs(c.AngularZ) <= l.MaxAngularVelocity
}
