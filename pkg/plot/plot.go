// Package plot renders clustering results with gonum/plot.
package plot

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/mlcore/pkg/errors"
)

// Size is the width and height of saved figures.
const Size = 5 * vg.Inch

// ClusterScatter holds what is needed to draw a 2D view of a clustering: the
// first two feature columns of every row coloured by cluster, and the
// centroids drawn as crosses.
type ClusterScatter struct {
	Title   string
	XLabel  string
	YLabel  string
	Rows    [][]float64
	Labels  []int
	Centers [][]float64
}

// Plot builds the figure. Rows with a single feature are drawn on y = 0.
func (cs *ClusterScatter) Plot() (*plot.Plot, error) {
	if len(cs.Rows) == 0 {
		return nil, errors.NewInvalidInputError("plot.ClusterScatter", "no rows to plot")
	}
	if len(cs.Labels) != len(cs.Rows) {
		return nil, errors.NewDimensionError("plot.ClusterScatter", len(cs.Rows), len(cs.Labels), 0)
	}

	p := plot.New()
	p.Title.Text = cs.Title
	p.X.Label.Text = cs.XLabel
	p.Y.Label.Text = cs.YLabel
	p.Legend.Top = true

	groups := make([]plotter.XYs, len(cs.Centers))
	for i, row := range cs.Rows {
		k := cs.Labels[i]
		if k < 0 || k >= len(groups) {
			return nil, errors.NewInvalidInputErrorf("plot.ClusterScatter", "label %d of row %d has no centroid", k, i)
		}
		groups[k] = append(groups[k], xy(row))
	}

	for k, pts := range groups {
		if len(pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "cluster %d", k)
		}
		s.Color = plotutil.Color(k)
		s.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("cluster %d", k), s)
	}

	centroids := make(plotter.XYs, len(cs.Centers))
	for k, c := range cs.Centers {
		centroids[k] = xy(c)
	}
	c, err := plotter.NewScatter(centroids)
	if err != nil {
		return nil, errors.Wrap(err, "centroids")
	}
	c.Color = color.RGBA{A: 255}
	c.Shape = draw.CrossGlyph{}
	c.Radius = vg.Points(6)
	p.Add(c)
	p.Legend.Add("centroid", c)

	return p, nil
}

// Save draws the figure and writes it to path. The image format follows the
// file extension (png, svg, pdf, ...).
func (cs *ClusterScatter) Save(path string) error {
	p, err := cs.Plot()
	if err != nil {
		return err
	}
	if err := p.Save(Size, Size, path); err != nil {
		return errors.Wrapf(err, "saving plot to %s", path)
	}
	return nil
}

func xy(v []float64) plotter.XY {
	switch len(v) {
	case 0:
		return plotter.XY{}
	case 1:
		return plotter.XY{X: v[0]}
	default:
		return plotter.XY{X: v[0], Y: v[1]}
	}
}
