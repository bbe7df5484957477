package keypoint

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/banshee-data/stereolabel/internal/monitoring"
)

// PendingClick is a single-view click waiting for its counterpart.
type PendingClick struct {
	ID   int
	U, V int
}

// Store holds the keypoints of the active frame. Every mutation is written
// through to the backend, left view first. A Store is not safe for
// concurrent use.
type Store struct {
	backend Backend

	frame  string
	loaded bool
	views  [2]map[int]Record

	pending [2]*PendingClick
}

// NewStore returns a Store with no frame loaded.
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		views:   [2]map[int]Record{{}, {}},
	}
}

// Frame returns the name of the loaded frame, or "" if none is loaded.
func (s *Store) Frame() string { return s.frame }

// LoadFrame replaces the in-memory records with the persisted records of
// the named frame and discards pending clicks. A frame whose two views hold
// different landmark IDs is rejected with a PairingError.
func (s *Store) LoadFrame(name string) error {
	s.frame, s.loaded = "", false
	s.views = [2]map[int]Record{{}, {}}
	s.pending = [2]*PendingClick{}

	var loaded [2]map[int]Record
	for _, view := range Views {
		records, err := s.backend.Load(view, name)
		if err != nil {
			return fmt.Errorf("load frame %s: %w", name, err)
		}
		if records == nil {
			records = map[int]Record{}
		}
		loaded[view] = records
	}

	leftOnly, rightOnly := unpaired(loaded[Left], loaded[Right])
	if len(leftOnly) > 0 || len(rightOnly) > 0 {
		return &PairingError{Frame: name, LeftOnly: leftOnly, RightOnly: rightOnly}
	}

	s.frame, s.loaded = name, true
	s.views = loaded
	monitoring.L().Debug("keypoint frame loaded",
		zap.String("frame", name), zap.Int("landmarks", len(loaded[Left])))
	return nil
}

// Pair returns both records of a landmark. The landmark is either present
// in both views or in neither.
func (s *Store) Pair(id int) (Pair, bool) {
	l, okL := s.views[Left][id]
	r, okR := s.views[Right][id]
	if !okL || !okR {
		return Pair{}, false
	}
	return Pair{Left: l, Right: r}, true
}

// All returns copies of the left and right records of the loaded frame.
func (s *Store) All() (left, right map[int]Record) {
	return copyRecords(s.views[Left]), copyRecords(s.views[Right])
}

// IDs returns the landmark IDs of the loaded frame in ascending order.
func (s *Store) IDs() []int {
	ids := make([]int, 0, len(s.views[Left]))
	for id := range s.views[Left] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SetPair sets both records of a landmark and persists the frame.
func (s *Store) SetPair(id int, left, right Record) error {
	if err := s.checkMutation(id); err != nil {
		return fmt.Errorf("set landmark %d: %w", id, err)
	}
	s.views[Left][id] = left
	s.views[Right][id] = right
	if err := s.persist(); err != nil {
		return fmt.Errorf("set landmark %d: %w", id, err)
	}
	monitoring.L().Debug("keypoint pair set",
		zap.String("frame", s.frame), zap.Int("id", id),
		zap.Stringer("left", left), zap.Stringer("right", right))
	return nil
}

// Click records a manual point on one view. When a click is already
// pending on the other view the two are committed as a pair.
func (s *Store) Click(view View, id, u, v int) error {
	if err := s.checkMutation(id); err != nil {
		return fmt.Errorf("click %s landmark %d: %w", view, id, err)
	}
	s.pending[view] = &PendingClick{ID: id, U: u, V: v}
	_, err := s.TryCommitPending()
	return err
}

// Pending returns the click waiting on a view, if any.
func (s *Store) Pending(view View) (PendingClick, bool) {
	p := s.pending[view]
	if p == nil {
		return PendingClick{}, false
	}
	return *p, true
}

// TryCommitPending commits the pending clicks as a manual pair once both
// views have one, and clears them. It reports whether a pair was written.
// Clicks naming different landmarks are discarded with ErrPendingMismatch
// rather than committed under either ID.
func (s *Store) TryCommitPending() (bool, error) {
	l, r := s.pending[Left], s.pending[Right]
	if l == nil || r == nil {
		return false, nil
	}
	s.pending = [2]*PendingClick{}

	if l.ID != r.ID {
		return false, fmt.Errorf("frame %s: left click for landmark %d, right click for landmark %d: %w",
			s.frame, l.ID, r.ID, ErrPendingMismatch)
	}
	if err := s.SetPair(l.ID, Manual(l.U, l.V), Manual(r.U, r.V)); err != nil {
		return false, err
	}
	return true, nil
}

// Eliminate removes a landmark from both views and persists the frame.
// Removing an absent landmark still rewrites the frame.
func (s *Store) Eliminate(id int) error {
	if err := s.checkMutation(id); err != nil {
		return fmt.Errorf("eliminate landmark %d: %w", id, err)
	}
	delete(s.views[Left], id)
	delete(s.views[Right], id)
	if err := s.persist(); err != nil {
		return fmt.Errorf("eliminate landmark %d: %w", id, err)
	}
	monitoring.L().Debug("keypoint pair eliminated", zap.String("frame", s.frame), zap.Int("id", id))
	return nil
}

// ToggleVisibility steps the visibility state of a landmark. A pair hidden
// in both views is eliminated; anything else, including an unlabeled
// landmark, becomes hidden in both views.
func (s *Store) ToggleVisibility(id int) error {
	if p, ok := s.Pair(id); ok && p.Hidden() {
		return s.Eliminate(id)
	}
	return s.SetPair(id, Hidden(), Hidden())
}

func (s *Store) checkMutation(id int) error {
	if !s.loaded {
		return ErrNoFrame
	}
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	return nil
}

// persist drops unpaired landmarks and writes the left then the right view.
func (s *Store) persist() error {
	leftOnly, rightOnly := unpaired(s.views[Left], s.views[Right])
	for _, id := range leftOnly {
		delete(s.views[Left], id)
	}
	for _, id := range rightOnly {
		delete(s.views[Right], id)
	}
	if n := len(leftOnly) + len(rightOnly); n > 0 {
		monitoring.L().Warn("dropped unpaired landmarks",
			zap.String("frame", s.frame), zap.Ints("left_only", leftOnly), zap.Ints("right_only", rightOnly))
	}

	for _, view := range Views {
		if err := s.backend.Save(view, s.frame, s.views[view]); err != nil {
			return fmt.Errorf("persist %s view of frame %s: %w", view, s.frame, err)
		}
	}
	return nil
}

// unpaired returns the IDs present in only one of the two maps, sorted.
func unpaired(left, right map[int]Record) (leftOnly, rightOnly []int) {
	for id := range left {
		if _, ok := right[id]; !ok {
			leftOnly = append(leftOnly, id)
		}
	}
	for id := range right {
		if _, ok := left[id]; !ok {
			rightOnly = append(rightOnly, id)
		}
	}
	sort.Ints(leftOnly)
	sort.Ints(rightOnly)
	return leftOnly, rightOnly
}

func copyRecords(m map[int]Record) map[int]Record {
	out := make(map[int]Record, len(m))
	for id, r := range m {
		out[id] = r
	}
	return out
}
