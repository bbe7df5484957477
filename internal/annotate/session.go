// Package annotate drives a labeling session: the current frame and
// landmark, range selection, and dispatch of edits to the keypoint store
// and the interpolation engine.
package annotate

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/banshee-data/stereolabel/internal/interpolation"
	"github.com/banshee-data/stereolabel/internal/keypoint"
	"github.com/banshee-data/stereolabel/internal/monitoring"
)

// ErrFrameRange is returned by Goto for an index outside the sequence.
var ErrFrameRange = errors.New("frame index out of range")

// Session is the state of one annotator working through a sequence. It is
// not safe for concurrent use.
type Session struct {
	frames    interpolation.FrameSource
	store     *keypoint.Store
	engine    *interpolation.Engine
	rectified bool

	frame int
	id    int

	// rangeStart is -1 when no range is active; the range always ends at
	// the current frame.
	rangeStart int
}

// New starts a session at frame 0, landmark 0.
func New(frames interpolation.FrameSource, store *keypoint.Store, rectified bool) (*Session, error) {
	if frames.Count() == 0 {
		return nil, fmt.Errorf("start session: %w", ErrFrameRange)
	}
	s := &Session{
		frames:     frames,
		store:      store,
		engine:     interpolation.New(frames),
		rectified:  rectified,
		rangeStart: -1,
	}
	if err := s.load(0); err != nil {
		return nil, err
	}
	return s, nil
}

// Frame returns the current frame index.
func (s *Session) Frame() int { return s.frame }

// FrameName returns the name of the current frame.
func (s *Session) FrameName() string { return s.store.Frame() }

// ID returns the current landmark ID.
func (s *Session) ID() int { return s.id }

// Store returns the keypoint store the session edits.
func (s *Session) Store() *keypoint.Store { return s.store }

// Goto moves to frame i, extending an active range.
func (s *Session) Goto(i int) error {
	if i < 0 || i >= s.frames.Count() {
		return fmt.Errorf("goto %d: %w: sequence has %d frames", i, ErrFrameRange, s.frames.Count())
	}
	return s.load(i)
}

// NextFrame advances one frame, wrapping to the first.
func (s *Session) NextFrame() error {
	return s.load((s.frame + 1) % s.frames.Count())
}

// PrevFrame steps back one frame, wrapping to the last.
func (s *Session) PrevFrame() error {
	n := s.frames.Count()
	return s.load((s.frame - 1 + n) % n)
}

// NextID selects the next landmark.
func (s *Session) NextID() { s.id++ }

// PrevID selects the previous landmark, stopping at 0.
func (s *Session) PrevID() {
	if s.id > 0 {
		s.id--
	}
}

// SetID selects landmark id.
func (s *Session) SetID(id int) error {
	if id < 0 {
		return fmt.Errorf("select landmark: %w: %d", keypoint.ErrInvalidID, id)
	}
	s.id = id
	return nil
}

// ToggleRange starts a range at the current frame, or clears the active
// one.
func (s *Session) ToggleRange() {
	if s.rangeStart < 0 {
		s.rangeStart = s.frame
		return
	}
	s.rangeStart = -1
}

// Range returns the inclusive bounds of the active range.
func (s *Session) Range() (lo, hi int, ok bool) {
	if s.rangeStart < 0 {
		return 0, 0, false
	}
	lo, hi = s.rangeStart, s.frame
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi, true
}

// Selected returns the current landmark's pair on the current frame.
func (s *Session) Selected() (keypoint.Pair, bool) {
	return s.store.Pair(s.id)
}

// Click labels the current landmark on one view. It does nothing when the
// landmark is already labeled on this frame.
func (s *Session) Click(view keypoint.View, u, v int) error {
	if _, ok := s.Selected(); ok {
		monitoring.L().Debug("click ignored, landmark already labeled",
			zap.String("frame", s.FrameName()), zap.Int("id", s.id))
		return nil
	}
	return s.store.Click(view, s.id, u, v)
}

// Eliminate removes the current landmark from every frame of the active
// range and clears the range, or from the current frame alone.
func (s *Session) Eliminate() error {
	if lo, hi, ok := s.Range(); ok {
		return s.applyRange(lo, hi, "eliminate", s.store.Eliminate)
	}
	if _, ok := s.Selected(); !ok {
		return nil
	}
	return s.store.Eliminate(s.id)
}

// ToggleVisibility steps the visibility of the current landmark on every
// frame of the active range and clears the range, or on the current frame
// alone.
func (s *Session) ToggleVisibility() error {
	if lo, hi, ok := s.Range(); ok {
		return s.applyRange(lo, hi, "toggle visibility", s.store.ToggleVisibility)
	}
	return s.store.ToggleVisibility(s.id)
}

// Interpolate fills the current landmark around the current frame.
func (s *Session) Interpolate() (interpolation.Result, error) {
	return s.engine.Interpolate(s.store, s.id, s.frame, s.rectified)
}

// Status summarises the session for display.
func (s *Session) Status() string {
	frames := fmt.Sprintf("Im: [%d]", s.frame)
	if lo, hi, ok := s.Range(); ok {
		frames = fmt.Sprintf("Im: [%d -> %d]", lo, hi)
	}
	return fmt.Sprintf("%s %s Id: [%d]", frames, s.FrameName(), s.id)
}

func (s *Session) applyRange(lo, hi int, op string, apply func(id int) error) error {
	s.rangeStart = -1
	defer func() {
		if err := s.reload(); err != nil {
			monitoring.L().Error("reload current frame", zap.Int("frame", s.frame), zap.Error(err))
		}
	}()
	for i := lo; i <= hi; i++ {
		name, err := s.frames.Name(i)
		if err != nil {
			return fmt.Errorf("%s landmark %d: %w", op, s.id, err)
		}
		if err := interpolation.CheckFrame(s.frames, i); err != nil {
			return fmt.Errorf("%s landmark %d: %w", op, s.id, err)
		}
		if err := s.store.LoadFrame(name); err != nil {
			return fmt.Errorf("%s landmark %d: %w", op, s.id, err)
		}
		if err := apply(s.id); err != nil {
			return fmt.Errorf("%s landmark %d on frame %s: %w", op, s.id, name, err)
		}
	}
	monitoring.L().Debug("range edit applied",
		zap.String("op", op), zap.Int("id", s.id), zap.Int("from", lo), zap.Int("to", hi))
	return nil
}

func (s *Session) load(i int) error {
	name, err := s.frames.Name(i)
	if err != nil {
		return err
	}
	if err := interpolation.CheckFrame(s.frames, i); err != nil {
		return err
	}
	if err := s.store.LoadFrame(name); err != nil {
		return err
	}
	s.frame = i
	return nil
}

func (s *Session) reload() error {
	return s.load(s.frame)
}
