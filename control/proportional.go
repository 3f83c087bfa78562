package control

// AccelerationLaw computes the acceleration that drives current towards target.
type AccelerationLaw func(target, current, gain float64) float64

// Proportional is the plain P speed law: gain * (target - current).
func Proportional(target, current, gain float64) float64 {
	return gain * (target - current)
}
