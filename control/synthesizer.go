package control

import (
	"math"
	"time"
)

const (
	// below this forward speed the base is treated as stationary and no turn is commanded.
	steeringDeadband = 0.1

	// DefaultWheelSeparation is the distance between the drive wheels, in meters.
	DefaultWheelSeparation = 0.6
	// DefaultSpeedGain is the proportional gain of the speed law.
	DefaultSpeedGain = 2.0
)

// Synthesizer converts a steering error and the current speed into a Command that respects the
// base's Limits.
type Synthesizer struct {
	Limits          Limits
	WheelSeparation float64
	SpeedGain       float64
	Accel           AccelerationLaw
}

// NewSynthesizer returns a Synthesizer using the default wheel separation, speed gain and the
// proportional speed law.
func NewSynthesizer(limits Limits) *Synthesizer {
	return &Synthesizer{
		Limits:          limits,
		WheelSeparation: DefaultWheelSeparation,
		SpeedGain:       DefaultSpeedGain,
		Accel:           Proportional,
	}
}

// Synthesize computes the command for steering error e (radians) given the current forward
// speed v over one control period dt. Non-finite inputs produce the zero command.
func (s *Synthesizer) Synthesize(e, v float64, dt time.Duration) Command {
	dtS := dt.Seconds()
	if !finite(e) || !finite(v) || !finite(dtS) {
		return Command{}
	}

	angular := s.angular(e, v, dtS)
	target := s.targetSpeed(e, angular, v)

	accel := s.accelLaw()(target, v, s.SpeedGain)
	linear := clip(v+accel*dtS, s.turnSpeed(angular), s.Limits.MaxLinearVelocity)
	if !finite(linear) {
		return Command{}
	}
	return Command{LinearX: linear, AngularZ: angular}
}

func (s *Synthesizer) angular(e, v, dtS float64) float64 {
	if v <= steeringDeadband {
		return 0
	}
	return clip(e*dtS, -s.Limits.MaxAngularVelocity, s.Limits.MaxAngularVelocity)
}

// targetSpeed holds the current speed unless the error points behind the base, in which case
// the speed is derived from the turn alone.
func (s *Synthesizer) targetSpeed(e, angular, v float64) float64 {
	if math.Abs(e) >= math.Pi/2 {
		return s.turnSpeed(angular)
	}
	return v
}

// turnSpeed is the forward speed needed by the outer wheel to realize the angular command.
func (s *Synthesizer) turnSpeed(angular float64) float64 {
	return math.Abs(angular) * s.WheelSeparation / 2
}

func (s *Synthesizer) accelLaw() AccelerationLaw {
	if s.Accel == nil {
		return Proportional
	}
	return s.Accel
}

// clip bounds x to [lo, hi]. When lo > hi the upper bound wins.
func clip(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
