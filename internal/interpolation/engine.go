// Package interpolation fills the frames between manually labeled anchors
// of one landmark with interpolated positions.
//
// Anchors are searched outward from a reference frame. The backward pass
// visits the reference frame itself and then earlier frames; the forward
// pass visits later frames. Either pass stops at the first frame where the
// landmark is hidden in one of the views. Frames where the landmark is
// missing or already interpolated are gaps. Left u, left v, right u and
// right v are fit independently over the anchors and rounded half to even.
package interpolation

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/stereolabel/internal/keypoint"
	"github.com/banshee-data/stereolabel/internal/monitoring"
)

// cubicMinAnchors is the anchor count from which the not-a-knot cubic
// spline replaces piecewise linear interpolation.
const cubicMinAnchors = 4

// ErrReferenceRange is returned when the reference frame is not part of
// the sequence.
var ErrReferenceRange = errors.New("reference frame out of range")

// FrameSource is the part of a frame sequence the engine needs.
type FrameSource interface {
	Count() int
	Name(i int) (string, error)
	Resolution() (height, width int)
}

// ResolutionChecker is implemented by frame sources that can verify a
// frame against the sequence resolution. Frames failing the check are
// never classified or written.
type ResolutionChecker interface {
	CheckResolution(i int) error
}

// CheckFrame runs the resolution check of frames on frame i when the
// source provides one.
func CheckFrame(frames FrameSource, i int) error {
	if c, ok := frames.(ResolutionChecker); ok {
		return c.CheckResolution(i)
	}
	return nil
}

// Result describes one interpolation run. A run that found fewer than two
// anchors has no window and writes nothing.
type Result struct {
	RunID     uuid.UUID
	ID        int
	Reference int

	// WindowStart and WindowEnd bound the frames visited by both passes,
	// inclusive. Both are -1 when no frame was collected.
	WindowStart int
	WindowEnd   int

	Anchors     []int
	Written     []int
	OutOfBounds []int
}

// Interpolated reports whether the run had enough anchors to fit.
func (r Result) Interpolated() bool { return len(r.Anchors) >= 2 }

// Engine runs interpolation over a frame sequence.
type Engine struct {
	frames FrameSource
}

// New returns an Engine over frames.
func New(frames FrameSource) *Engine {
	return &Engine{frames: frames}
}

// sample is one frame collected by the anchor search.
type sample struct {
	frame  int
	name   string
	anchor bool
	pair   keypoint.Pair
}

// Interpolate fills the gaps of landmark id around the reference frame and
// persists them through store. The store is left loaded at the reference
// frame.
func (e *Engine) Interpolate(store *keypoint.Store, id, reference int, rectified bool) (res Result, err error) {
	res = Result{RunID: uuid.New(), ID: id, Reference: reference, WindowStart: -1, WindowEnd: -1}
	if reference < 0 || reference >= e.frames.Count() {
		return res, fmt.Errorf("%w: %d not in [0,%d)", ErrReferenceRange, reference, e.frames.Count())
	}
	if id < 0 {
		return res, fmt.Errorf("interpolate: %w: %d", keypoint.ErrInvalidID, id)
	}

	refName, err := e.frames.Name(reference)
	if err != nil {
		return res, fmt.Errorf("interpolate landmark %d: %w", id, err)
	}
	defer func() {
		if rerr := store.LoadFrame(refName); rerr != nil && err == nil {
			err = fmt.Errorf("interpolate landmark %d: restore frame %s: %w", id, refName, rerr)
		}
	}()

	window, err := e.collect(store, id, reference)
	if err != nil {
		return res, fmt.Errorf("interpolate landmark %d: %w", id, err)
	}
	if len(window) > 0 {
		res.WindowStart, res.WindowEnd = window[0].frame, window[len(window)-1].frame
	}
	for _, s := range window {
		if s.anchor {
			res.Anchors = append(res.Anchors, s.frame)
		}
	}
	if len(res.Anchors) < 2 {
		monitoring.L().Info("interpolation skipped",
			zap.String("run_id", res.RunID.String()), zap.Int("id", id),
			zap.Int("reference", reference), zap.Int("anchors", len(res.Anchors)))
		return res, nil
	}

	if err := e.fill(store, id, window, rectified, &res); err != nil {
		return res, fmt.Errorf("interpolate landmark %d: %w", id, err)
	}

	monitoring.L().Info("interpolation run",
		zap.String("run_id", res.RunID.String()), zap.Int("id", id),
		zap.Int("reference", reference), zap.Bool("rectified", rectified),
		zap.Int("window_start", res.WindowStart), zap.Int("window_end", res.WindowEnd),
		zap.Ints("anchors", res.Anchors), zap.Ints("written", res.Written),
		zap.Ints("out_of_bounds", res.OutOfBounds))
	return res, nil
}

// collect runs both passes and returns the visited frames in frame order.
func (e *Engine) collect(store *keypoint.Store, id, reference int) ([]sample, error) {
	var backward []sample
	for i := reference; i >= 0; i-- {
		s, stop, err := e.classify(store, id, i)
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
		backward = append(backward, s)
	}

	window := make([]sample, 0, len(backward))
	for i := len(backward) - 1; i >= 0; i-- {
		window = append(window, backward[i])
	}

	for i := reference + 1; i < e.frames.Count(); i++ {
		s, stop, err := e.classify(store, id, i)
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
		window = append(window, s)
	}
	return window, nil
}

// classify loads frame i and reports whether it holds an anchor, a gap, or
// an occlusion that ends the pass.
func (e *Engine) classify(store *keypoint.Store, id, i int) (s sample, stop bool, err error) {
	name, err := e.frames.Name(i)
	if err != nil {
		return sample{}, false, err
	}
	if err := CheckFrame(e.frames, i); err != nil {
		return sample{}, false, err
	}
	if err := store.LoadFrame(name); err != nil {
		return sample{}, false, err
	}
	s = sample{frame: i, name: name}
	pair, ok := store.Pair(id)
	if !ok {
		return s, false, nil
	}
	if !pair.Visible() {
		return sample{}, true, nil
	}
	s.pair = pair
	s.anchor = pair.IsAnchor()
	return s, false, nil
}

// fill fits the four channels and writes every in-bounds gap strictly
// inside the anchor span.
func (e *Engine) fill(store *keypoint.Store, id int, window []sample, rectified bool, res *Result) error {
	var xs, lu, lv, ru, rv []float64
	for offset, s := range window {
		if !s.anchor {
			continue
		}
		xs = append(xs, float64(offset))
		lu = append(lu, float64(s.pair.Left.U))
		lv = append(lv, float64(s.pair.Left.V))
		ru = append(ru, float64(s.pair.Right.U))
		rv = append(rv, float64(s.pair.Right.V))
	}

	leftU, err := fitChannel(xs, lu)
	if err != nil {
		return fmt.Errorf("fit left u: %w", err)
	}
	leftV, err := fitChannel(xs, lv)
	if err != nil {
		return fmt.Errorf("fit left v: %w", err)
	}
	rightU, err := fitChannel(xs, ru)
	if err != nil {
		return fmt.Errorf("fit right u: %w", err)
	}
	rightV := leftV
	if !rectified {
		if rightV, err = fitChannel(xs, rv); err != nil {
			return fmt.Errorf("fit right v: %w", err)
		}
	}

	height, width := e.frames.Resolution()
	first, last := xs[0], xs[len(xs)-1]
	for offset, s := range window {
		x := float64(offset)
		if s.anchor || x <= first || x >= last {
			continue
		}
		l := keypoint.Interpolated(predict(leftU, x), predict(leftV, x))
		r := keypoint.Interpolated(predict(rightU, x), predict(rightV, x))
		if !inBounds(l, width, height) || !inBounds(r, width, height) {
			res.OutOfBounds = append(res.OutOfBounds, s.frame)
			monitoring.L().Debug("interpolated point out of bounds",
				zap.String("frame", s.name), zap.Int("id", id),
				zap.Stringer("left", l), zap.Stringer("right", r))
			continue
		}
		if err := store.LoadFrame(s.name); err != nil {
			return err
		}
		if err := store.SetPair(id, l, r); err != nil {
			return err
		}
		res.Written = append(res.Written, s.frame)
	}
	return nil
}

func fitChannel(xs, ys []float64) (interp.Predictor, error) {
	if len(xs) >= cubicMinAnchors {
		var c interp.NotAKnotCubic
		if err := c.Fit(xs, ys); err != nil {
			return nil, err
		}
		return &c, nil
	}
	var l interp.PiecewiseLinear
	if err := l.Fit(xs, ys); err != nil {
		return nil, err
	}
	return &l, nil
}

func predict(p interp.Predictor, x float64) int {
	return int(math.RoundToEven(p.Predict(x)))
}

// inBounds accepts coordinates on the far image edge.
func inBounds(r keypoint.Record, width, height int) bool {
	return r.U >= 0 && r.V >= 0 && r.U <= width && r.V <= height
}
