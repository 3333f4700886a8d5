// Package export renders cohort runs as PNG, SVG or PDF figures.
package export

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/san-kum/cohortsim/internal/analysis"
	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/dynamo"
)

const (
	DefaultWidth  = 7 * vg.Inch
	DefaultHeight = 4 * vg.Inch
)

var palette = []color.Color{
	color.RGBA{R: 0x1b, G: 0x9e, B: 0x77, A: 0xff},
	color.RGBA{R: 0xd9, G: 0x5f, B: 0x02, A: 0xff},
	color.RGBA{R: 0x75, G: 0x70, B: 0xb3, A: 0xff},
	color.RGBA{R: 0xe7, G: 0x29, B: 0x8a, A: 0xff},
	color.RGBA{R: 0x66, G: 0xa6, B: 0x1e, A: 0xff},
}

// Series is one named line.
type Series struct {
	Name string
	XYs  plotter.XYs
	Dash bool
}

// ResultSeries extracts one state component of a run, multiplied by scale.
func ResultSeries(name string, res *dynamo.Result, index int, scale float64) Series {
	xys := make(plotter.XYs, len(res.Times))
	for i, t := range res.Times {
		xys[i].X = t
		xys[i].Y = res.States[i][index] * scale
	}
	return Series{Name: name, XYs: xys}
}

// LinePlot draws series on shared axes.
func LinePlot(title, xLabel, yLabel string, series ...Series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	for i, s := range series {
		if len(s.XYs) == 0 {
			continue
		}
		line, err := plotter.NewLine(s.XYs)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", s.Name, err)
		}
		line.Color = palette[i%len(palette)]
		line.Width = vg.Points(1.5)
		if s.Dash {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	return p, nil
}

// TrajectoryPlot shows living biomass and dead wood against age.
func TrajectoryPlot(title string, res *dynamo.Result, scale float64) (*plot.Plot, error) {
	dead := ResultSeries("dead wood", res, cohort.DeadWood, scale)
	dead.Dash = true
	return LinePlot(title, "age (years)", "biomass", ResultSeries("living biomass", res, cohort.Biomass, scale), dead)
}

// ComparePlot overlays living biomass of several runs.
func ComparePlot(title string, names []string, results []*dynamo.Result, scale float64) (*plot.Plot, error) {
	if len(names) != len(results) {
		return nil, fmt.Errorf("got %d names for %d runs", len(names), len(results))
	}
	series := make([]Series, len(results))
	for i, res := range results {
		series[i] = ResultSeries(names[i], res, cohort.Biomass, scale)
	}
	return LinePlot(title, "age (years)", "living biomass", series...)
}

// ResponsePlot draws ANPP and biomass mortality against B_AP.
func ResponsePlot(title string, pts []analysis.CurvePoint) (*plot.Plot, error) {
	anpp := make(plotter.XYs, len(pts))
	mbio := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		anpp[i] = plotter.XY{X: pt.Ratio, Y: pt.ANPP}
		mbio[i] = plotter.XY{X: pt.Ratio, Y: pt.BiomassMortality}
	}
	return LinePlot(title, "B_AP", "rate",
		Series{Name: "ANPP", XYs: anpp},
		Series{Name: "M_BIO", XYs: mbio, Dash: true},
	)
}

// SweepPlot draws peak biomass against the swept parameter.
func SweepPlot(title, param string, pts []analysis.SweepPoint, scale float64) (*plot.Plot, error) {
	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i] = plotter.XY{X: pt.Param, Y: pt.PeakBiomass * scale}
	}

	p, err := LinePlot(title, param, "peak living biomass", Series{Name: "peak", XYs: xys})
	if err != nil {
		return nil, err
	}
	if len(xys) > 0 {
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle = draw.GlyphStyle{Color: palette[0], Radius: vg.Points(2.5), Shape: draw.CircleGlyph{}}
		p.Add(sc)
	}
	return p, nil
}

// Save writes p to path; the extension picks the format.
func Save(p *plot.Plot, path string) error {
	return p.Save(DefaultWidth, DefaultHeight, path)
}

// Write renders p in format ("png", "svg", "pdf", ...) to w.
func Write(p *plot.Plot, w io.Writer, format string) error {
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, strings.ToLower(format))
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// FormatOf returns the figure format implied by a file name.
func FormatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
