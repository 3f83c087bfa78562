package trajectory

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// Smoother turns raw waypoints into an arc-length parameterized path sampled every step meters.
type Smoother interface {
	Smooth(points []r2.Point, step float64) ([]SmoothedPoint, error)
}

// minSplinePoints is the number of distinct waypoints a spline needs.
const minSplinePoints = 3

var (
	// ErrTooFewPoints is returned when fewer than three distinct waypoints are given.
	ErrTooFewPoints = errors.New("at least 3 distinct waypoints are needed to fit a spline")
	// ErrInvalidStep is returned for a non-positive or non-finite sampling step.
	ErrInvalidStep = errors.New("smoothing step must be a positive finite value")
)

// CubicSpline fits natural cubic splines x(s) and y(s) over the cumulative chord length s of
// the waypoints and samples them at a fixed arc-length step. Both ends of the waypoint list are
// always part of the output, and at least as many points as waypoints are returned, repeated
// waypoints included.
type CubicSpline struct{}

// Smooth implements Smoother.
func (CubicSpline) Smooth(points []r2.Point, step float64) ([]SmoothedPoint, error) {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return nil, ErrInvalidStep
	}
	rawCount := len(points)
	points = dropRepeated(points)
	if len(points) < minSplinePoints {
		return nil, ErrTooFewPoints
	}
	for _, pt := range points {
		if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
			return nil, errors.Errorf("waypoint %v is not finite", pt)
		}
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	segments := make([]float64, len(points))
	for i, pt := range points {
		xs[i], ys[i] = pt.X, pt.Y
		if i > 0 {
			segments[i] = pt.Sub(points[i-1]).Norm()
		}
	}
	knots := floats.CumSum(make([]float64, len(points)), segments)
	for i := 1; i < len(knots); i++ {
		if !(knots[i] > knots[i-1]) {
			return nil, errors.Errorf("arc length is not increasing at waypoint %d", i)
		}
	}

	var sx, sy interp.NaturalCubic
	if err := sx.Fit(knots, xs); err != nil {
		return nil, errors.Wrap(err, "fitting x(s)")
	}
	if err := sy.Fit(knots, ys); err != nil {
		return nil, errors.Wrap(err, "fitting y(s)")
	}

	total := knots[len(knots)-1]
	samples := int(math.Ceil(total/step)) + 1
	if samples < rawCount {
		samples = rawCount
	}
	// finite difference step for the second derivative
	h := math.Min(5e-4, total/float64(4*samples))

	out := make([]SmoothedPoint, samples)
	for i := range out {
		s := total * float64(i) / float64(samples-1)
		if i == samples-1 {
			s = total
		}
		dx, dy := sx.PredictDerivative(s), sy.PredictDerivative(s)
		lo, hi := math.Max(s-h, 0), math.Min(s+h, total)
		ddx := (sx.PredictDerivative(hi) - sx.PredictDerivative(lo)) / (hi - lo)
		ddy := (sy.PredictDerivative(hi) - sy.PredictDerivative(lo)) / (hi - lo)

		out[i] = SmoothedPoint{
			Point: Point{
				X:     sx.Predict(s),
				Y:     sy.Predict(s),
				Theta: math.Atan2(dy, dx),
			},
			Curvature: curvature(dx, dy, ddx, ddy),
			ArcLength: s,
		}
	}
	return out, nil
}

func curvature(dx, dy, ddx, ddy float64) float64 {
	denom := math.Pow(dx*dx+dy*dy, 1.5)
	if denom == 0 {
		return 0
	}
	return (ddy*dx - ddx*dy) / denom
}

// dropRepeated removes consecutive duplicate waypoints, which would give zero-length segments.
func dropRepeated(points []r2.Point) []r2.Point {
	out := make([]r2.Point, 0, len(points))
	for i, pt := range points {
		if i > 0 && pt == points[i-1] {
			continue
		}
		out = append(out, pt)
	}
	return out
}
