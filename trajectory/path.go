// Package trajectory holds the smoothed path the tracker follows and the buffer that stages
// and promotes new paths.
package trajectory

import (
	"github.com/golang/geo/r2"
	"github.com/samber/lo"
)

// Point is a pose on a smoothed path. Theta is the path heading at the point.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Position returns the position of the point.
func (p Point) Position() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// Path is an ordered sequence of points from the path start to the path end in arc-length order.
type Path []Point

// Equal reports whether both paths have the same length and bit-identical points.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the path. A nil or empty path clones to an empty, non-nil path.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// End returns the last point of the path. It must not be called on an empty path.
func (p Path) End() Point {
	return p[len(p)-1]
}

// SmoothedPoint is a Point along with the curve data produced by a Smoother. Curvature and
// ArcLength are only used for visualization.
type SmoothedPoint struct {
	Point
	Curvature float64 `json:"curvature"`
	ArcLength float64 `json:"arc_length"`
}

// PathFromSmoothed drops the curve data of smoothed points.
func PathFromSmoothed(points []SmoothedPoint) Path {
	return lo.Map(points, func(pt SmoothedPoint, _ int) Point {
		return pt.Point
	})
}
