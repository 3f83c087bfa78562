// Package viz renders tracker paths and runs to images for inspection.
package viz

import (
	"image/color"
	"io"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/steerlab/pathtracker/spatialmath"
	"github.com/steerlab/pathtracker/trajectory"
)

// Image size of rendered plots.
const (
	Width  = 8 * vg.Inch
	Height = 8 * vg.Inch
)

var (
	waypointColor = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	pathColor     = color.RGBA{R: 30, G: 90, B: 200, A: 255}
	trackColor    = color.RGBA{R: 40, G: 160, B: 60, A: 255}
)

// Scene is what a top-down plot shows. Empty parts are left out.
type Scene struct {
	Title     string
	Waypoints []r2.Point
	Smoothed  []trajectory.SmoothedPoint
	Track     []spatialmath.Pose2D
}

// TopDown plots the raw waypoints, the smoothed path and the robot track in the odom frame.
func TopDown(scene Scene) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = scene.Title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	if len(scene.Smoothed) > 0 {
		pts := make(plotter.XYs, len(scene.Smoothed))
		for i, pt := range scene.Smoothed {
			pts[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = pathColor
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("smoothed path", line)
	}

	if len(scene.Track) > 0 {
		pts := make(plotter.XYs, len(scene.Track))
		for i, pose := range scene.Track {
			pts[i] = plotter.XY{X: pose.X, Y: pose.Y}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = trackColor
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		p.Legend.Add("robot track", line)
	}

	if len(scene.Waypoints) > 0 {
		pts := make(plotter.XYs, len(scene.Waypoints))
		for i, pt := range scene.Waypoints {
			pts[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		scatter.GlyphStyle.Color = waypointColor
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
		p.Legend.Add("waypoints", scatter)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// Curvature plots the curvature of a smoothed path against its arc length.
func Curvature(title string, smoothed []trajectory.SmoothedPoint) (*plot.Plot, error) {
	if len(smoothed) == 0 {
		return nil, errors.New("no smoothed path to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "arc length (m)"
	p.Y.Label.Text = "curvature (1/m)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(smoothed))
	for i, pt := range smoothed {
		pts[i] = plotter.XY{X: pt.ArcLength, Y: pt.Curvature}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = pathColor
	line.Width = vg.Points(1)
	p.Add(line)
	return p, nil
}

// WritePNG encodes p as a PNG image.
func WritePNG(p *plot.Plot, w io.Writer) error {
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write plot")
	}
	return nil
}

// SavePNG writes p to a PNG file.
func SavePNG(p *plot.Plot, path string) error {
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "failed to save plot to %s", path)
	}
	return nil
}
