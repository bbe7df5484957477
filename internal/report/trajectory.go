// Package report charts the trajectory of one landmark across a sequence.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/stereolabel/internal/keypoint"
)

// ErrNoVisiblePoints is returned when a chart would be empty.
var ErrNoVisiblePoints = errors.New("landmark has no visible points")

// FrameNames lists the frames of a sequence.
type FrameNames interface {
	Count() int
	Name(i int) (string, error)
}

// Point is the state of the landmark on one frame.
type Point struct {
	Frame   int
	Name    string
	Present bool
	Pair    keypoint.Pair
}

// Trajectory is the per-frame history of one landmark.
type Trajectory struct {
	ID     int
	Points []Point
}

// Summary counts frames by the landmark's state.
type Summary struct {
	Manual       int
	Interpolated int
	Hidden       int
	Missing      int
}

// channel selects one coordinate of one view.
type channel struct {
	label string
	view  keypoint.View
	v     bool
}

var channels = []channel{
	{"left u", keypoint.Left, false},
	{"left v", keypoint.Left, true},
	{"right u", keypoint.Right, false},
	{"right v", keypoint.Right, true},
}

func (c channel) value(p keypoint.Pair) (float64, bool) {
	r := p.Get(c.view)
	if !r.Visible() {
		return 0, false
	}
	if c.v {
		return float64(r.V), true
	}
	return float64(r.U), true
}

// Collect reads landmark id from every frame of the sequence.
func Collect(frames FrameNames, backend keypoint.Backend, id int) (*Trajectory, error) {
	store := keypoint.NewStore(backend)
	t := &Trajectory{ID: id, Points: make([]Point, 0, frames.Count())}
	for i := 0; i < frames.Count(); i++ {
		name, err := frames.Name(i)
		if err != nil {
			return nil, fmt.Errorf("collect landmark %d: %w", id, err)
		}
		if err := store.LoadFrame(name); err != nil {
			return nil, fmt.Errorf("collect landmark %d: %w", id, err)
		}
		pair, ok := store.Pair(id)
		t.Points = append(t.Points, Point{Frame: i, Name: name, Present: ok, Pair: pair})
	}
	return t, nil
}

// Summary counts the frames in each state. A pair is interpolated if
// either view is.
func (t *Trajectory) Summary() Summary {
	var s Summary
	for _, p := range t.Points {
		switch {
		case !p.Present:
			s.Missing++
		case !p.Pair.Visible():
			s.Hidden++
		case p.Pair.IsAnchor():
			s.Manual++
		default:
			s.Interpolated++
		}
	}
	return s
}

// WritePNG plots the four coordinates against frame index. Visible points
// are joined by a line per channel and manual points are marked with
// glyphs.
func (t *Trajectory) WritePNG(path string) error {
	if s := t.Summary(); s.Manual+s.Interpolated == 0 {
		return fmt.Errorf("plot landmark %d: %w", t.ID, ErrNoVisiblePoints)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Landmark %d trajectory", t.ID)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Pixel"

	for i, c := range channels {
		var all, manual plotter.XYs
		for _, pt := range t.Points {
			if !pt.Present {
				continue
			}
			y, ok := c.value(pt.Pair)
			if !ok {
				continue
			}
			xy := plotter.XY{X: float64(pt.Frame), Y: y}
			all = append(all, xy)
			if !pt.Pair.Get(c.view).IsInterp() {
				manual = append(manual, xy)
			}
		}

		if len(all) > 0 {
			line, err := plotter.NewLine(all)
			if err != nil {
				return err
			}
			line.Color = plotutil.Color(i)
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add(c.label, line)
		}
		if len(manual) > 0 {
			scatter, err := plotter.NewScatter(manual)
			if err != nil {
				return err
			}
			scatter.Color = plotutil.Color(i)
			scatter.Shape = plotutil.Shape(i)
			p.Add(scatter)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(12*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}

// WriteHTML renders the four coordinates as an interactive line chart.
// Frames where a channel has no visible point are left as gaps.
func (t *Trajectory) WriteHTML(w io.Writer) error {
	s := t.Summary()
	if s.Manual+s.Interpolated == 0 {
		return fmt.Errorf("chart landmark %d: %w", t.ID, ErrNoVisiblePoints)
	}

	names := make([]string, len(t.Points))
	for i, pt := range t.Points {
		names[i] = pt.Name
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: fmt.Sprintf("Landmark %d", t.ID), Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Landmark %d trajectory", t.ID),
			Subtitle: fmt.Sprintf("manual=%d interpolated=%d hidden=%d missing=%d",
				s.Manual, s.Interpolated, s.Hidden, s.Missing),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Pixel", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(names)

	for _, c := range channels {
		data := make([]opts.LineData, len(t.Points))
		for i, pt := range t.Points {
			data[i] = opts.LineData{Value: "-"}
			if !pt.Present {
				continue
			}
			y, ok := c.value(pt.Pair)
			if !ok {
				continue
			}
			data[i] = opts.LineData{Value: y}
			if pt.Pair.Get(c.view).IsInterp() {
				data[i].Symbol = "emptyCircle"
			}
		}
		line.AddSeries(c.label, data, charts.WithLineChartOpts(opts.LineChart{
			ShowSymbol:   opts.Bool(true),
			ConnectNulls: opts.Bool(false),
		}))
	}

	return line.Render(w)
}
