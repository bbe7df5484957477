package interpolation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stereolabel/internal/fsutil"
	"github.com/banshee-data/stereolabel/internal/keypoint"
)

type fakeFrames struct {
	n             int
	height, width int
}

func (f fakeFrames) Count() int { return f.n }

func (f fakeFrames) Name(i int) (string, error) {
	if i < 0 || i >= f.n {
		return "", fmt.Errorf("frame %d out of range", i)
	}
	return fmt.Sprintf("f%02d", i), nil
}

func (f fakeFrames) Resolution() (int, int) { return f.height, f.width }

type fixture struct {
	t      *testing.T
	frames fakeFrames
	store  *keypoint.Store
	engine *Engine
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	backend, err := keypoint.NewFileBackend(fsutil.NewMemoryFileSystem(), "/out/l", "/out/r", "")
	require.NoError(t, err)
	frames := fakeFrames{n: n, height: 480, width: 640}
	return &fixture{
		t:      t,
		frames: frames,
		store:  keypoint.NewStore(backend),
		engine: New(frames),
	}
}

func (f *fixture) name(i int) string {
	name, _ := f.frames.Name(i)
	return name
}

func (f *fixture) set(frame, id int, left, right keypoint.Record) {
	f.t.Helper()
	require.NoError(f.t, f.store.LoadFrame(f.name(frame)))
	require.NoError(f.t, f.store.SetPair(id, left, right))
}

func (f *fixture) pair(frame, id int) (keypoint.Pair, bool) {
	f.t.Helper()
	require.NoError(f.t, f.store.LoadFrame(f.name(frame)))
	return f.store.Pair(id)
}

// snapshot returns every frame's records for comparison.
func (f *fixture) snapshot() []map[int]keypoint.Record {
	f.t.Helper()
	var out []map[int]keypoint.Record
	for i := 0; i < f.frames.n; i++ {
		require.NoError(f.t, f.store.LoadFrame(f.name(i)))
		left, right := f.store.All()
		out = append(out, left, right)
	}
	return out
}

func TestInterpolateLinearSpan(t *testing.T) {
	f := newFixture(t, 12)
	const id = 1
	for _, frame := range []int{2, 5, 9} {
		f.set(frame, id, keypoint.Manual(10+3*frame, 20), keypoint.Manual(5+3*frame, 20))
	}

	res, err := f.engine.Interpolate(f.store, id, 5, false)
	require.NoError(t, err)

	assert.True(t, res.Interpolated())
	assert.Equal(t, []int{2, 5, 9}, res.Anchors)
	assert.Equal(t, []int{3, 4, 6, 7, 8}, res.Written)
	assert.Empty(t, res.OutOfBounds)
	assert.Equal(t, 0, res.WindowStart)
	assert.Equal(t, 11, res.WindowEnd)
	assert.Equal(t, f.name(5), f.store.Frame(), "store is restored to the reference frame")

	for frame := 3; frame <= 8; frame++ {
		p, ok := f.pair(frame, id)
		require.True(t, ok, "frame %d", frame)
		if frame == 5 {
			assert.Equal(t, keypoint.Manual(25, 20), p.Left)
			continue
		}
		assert.Equal(t, keypoint.Interpolated(10+3*frame, 20), p.Left, "frame %d", frame)
		assert.Equal(t, keypoint.Interpolated(5+3*frame, 20), p.Right, "frame %d", frame)
	}
	for _, frame := range []int{0, 1, 10, 11} {
		_, ok := f.pair(frame, id)
		assert.False(t, ok, "frame %d is outside the anchor span", frame)
	}
}

func TestInterpolateOcclusionWall(t *testing.T) {
	f := newFixture(t, 10)
	const id = 3
	f.set(1, id, keypoint.Manual(100, 100), keypoint.Manual(90, 100))
	f.set(4, id, keypoint.Manual(130, 100), keypoint.Manual(120, 100))
	f.set(6, id, keypoint.Hidden(), keypoint.Hidden())
	f.set(8, id, keypoint.Manual(300, 100), keypoint.Manual(290, 100))

	res, err := f.engine.Interpolate(f.store, id, 4, false)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 4}, res.Anchors)
	assert.Equal(t, []int{2, 3}, res.Written)
	assert.Equal(t, 5, res.WindowEnd)

	p, ok := f.pair(2, id)
	require.True(t, ok)
	assert.Equal(t, keypoint.Interpolated(110, 100), p.Left)

	_, ok = f.pair(5, id)
	assert.False(t, ok, "frame 5 is past the last anchor")
	_, ok = f.pair(7, id)
	assert.False(t, ok, "frame 7 is behind the occlusion")
	p, _ = f.pair(6, id)
	assert.True(t, p.Hidden())
}

func TestInterpolateHiddenReference(t *testing.T) {
	f := newFixture(t, 10)
	const id = 0
	f.set(1, id, keypoint.Manual(10, 10), keypoint.Manual(10, 10))
	f.set(3, id, keypoint.Manual(1, 1), keypoint.Hidden())
	f.set(5, id, keypoint.Manual(50, 10), keypoint.Manual(40, 10))
	f.set(7, id, keypoint.Manual(70, 10), keypoint.Manual(60, 10))

	res, err := f.engine.Interpolate(f.store, id, 3, false)
	require.NoError(t, err)

	assert.Equal(t, []int{5, 7}, res.Anchors)
	assert.Equal(t, []int{6}, res.Written)
	assert.Equal(t, 4, res.WindowStart)

	_, ok := f.pair(2, id)
	assert.False(t, ok, "backward pass stops at the hidden reference")
	p, _ := f.pair(6, id)
	assert.Equal(t, keypoint.Pair{Left: keypoint.Interpolated(60, 10), Right: keypoint.Interpolated(50, 10)}, p)
}

func TestInterpolateSingleAnchorIsNoOp(t *testing.T) {
	f := newFixture(t, 6)
	f.set(3, 2, keypoint.Manual(10, 10), keypoint.Manual(8, 10))
	before := f.snapshot()

	res, err := f.engine.Interpolate(f.store, 2, 3, false)
	require.NoError(t, err)

	assert.False(t, res.Interpolated())
	assert.Equal(t, []int{3}, res.Anchors)
	assert.Empty(t, res.Written)
	if diff := cmp.Diff(before, f.snapshot()); diff != "" {
		t.Errorf("records changed (-before +after):\n%s", diff)
	}
}

func TestInterpolateInterpolatedPairsAreGaps(t *testing.T) {
	f := newFixture(t, 5)
	f.set(0, 1, keypoint.Manual(0, 0), keypoint.Manual(0, 0))
	f.set(2, 1, keypoint.Interpolated(999, 999), keypoint.Interpolated(999, 999))
	f.set(4, 1, keypoint.Manual(40, 40), keypoint.Manual(40, 40))

	res, err := f.engine.Interpolate(f.store, 1, 0, true)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 4}, res.Anchors)
	assert.Equal(t, []int{1, 2, 3}, res.Written)
	p, _ := f.pair(2, 1)
	assert.Equal(t, keypoint.Interpolated(20, 20), p.Left)
}

func TestInterpolateBoundsRejection(t *testing.T) {
	f := newFixture(t, 5)
	const id = 4
	f.set(0, id, keypoint.Manual(600, 10), keypoint.Manual(600, 10))
	f.set(4, id, keypoint.Manual(720, 10), keypoint.Manual(700, 10))

	res, err := f.engine.Interpolate(f.store, id, 0, false)
	require.NoError(t, err)

	// Left u runs 630, 660, 690: only frame 1 fits inside the 640 wide image.
	assert.Equal(t, []int{1}, res.Written)
	assert.Equal(t, []int{2, 3}, res.OutOfBounds)
	for _, frame := range res.OutOfBounds {
		_, ok := f.pair(frame, id)
		assert.False(t, ok, "frame %d", frame)
	}
}

func TestInterpolateNegativeCoordinateRejected(t *testing.T) {
	f := newFixture(t, 5)
	const id = 2
	f.set(0, id, keypoint.Manual(40, 10), keypoint.Manual(40, 10))
	f.set(4, id, keypoint.Manual(-20, 10), keypoint.Manual(-20, 10))

	res, err := f.engine.Interpolate(f.store, id, 0, false)
	require.NoError(t, err)

	// u runs 25, 10, -5.
	assert.Equal(t, []int{1, 2}, res.Written)
	assert.Equal(t, []int{3}, res.OutOfBounds)
	_, ok := f.pair(3, id)
	assert.False(t, ok)
}

// checkedFrames fails the resolution check on one frame.
type checkedFrames struct {
	fakeFrames
	bad int
}

func (c checkedFrames) CheckResolution(i int) error {
	if i == c.bad {
		return errMismatch
	}
	return nil
}

var errMismatch = errors.New("resolution mismatch")

func TestInterpolateChecksFrameResolution(t *testing.T) {
	f := newFixture(t, 3)
	f.set(0, 0, keypoint.Manual(10, 10), keypoint.Manual(10, 10))
	f.set(2, 0, keypoint.Manual(30, 30), keypoint.Manual(30, 30))

	engine := New(checkedFrames{fakeFrames: f.frames, bad: 1})
	res, err := engine.Interpolate(f.store, 0, 0, false)
	assert.ErrorIs(t, err, errMismatch)
	assert.Empty(t, res.Written)
	_, ok := f.pair(1, 0)
	assert.False(t, ok)

	res, err = New(checkedFrames{fakeFrames: f.frames, bad: -1}).Interpolate(f.store, 0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Written)
}

func TestInterpolateEdgeIsInBounds(t *testing.T) {
	f := newFixture(t, 3)
	f.set(0, 0, keypoint.Manual(640, 480), keypoint.Manual(640, 480))
	f.set(2, 0, keypoint.Manual(640, 480), keypoint.Manual(640, 480))

	res, err := f.engine.Interpolate(f.store, 0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Written)
}

func TestInterpolateRectified(t *testing.T) {
	for _, rectified := range []bool{true, false} {
		t.Run(fmt.Sprintf("rectified=%v", rectified), func(t *testing.T) {
			f := newFixture(t, 3)
			f.set(0, 0, keypoint.Manual(10, 10), keypoint.Manual(5, 50))
			f.set(2, 0, keypoint.Manual(30, 30), keypoint.Manual(25, 70))

			_, err := f.engine.Interpolate(f.store, 0, 0, rectified)
			require.NoError(t, err)

			p, ok := f.pair(1, 0)
			require.True(t, ok)
			assert.Equal(t, keypoint.Interpolated(20, 20), p.Left)
			if rectified {
				assert.Equal(t, keypoint.Interpolated(15, 20), p.Right)
			} else {
				assert.Equal(t, keypoint.Interpolated(15, 60), p.Right)
			}
		})
	}
}

func TestInterpolateRoundsHalfToEven(t *testing.T) {
	f := newFixture(t, 5)
	f.set(0, 0, keypoint.Manual(0, 0), keypoint.Manual(0, 0))
	f.set(4, 0, keypoint.Manual(2, 6), keypoint.Manual(2, 6))

	_, err := f.engine.Interpolate(f.store, 0, 4, false)
	require.NoError(t, err)

	want := map[int]keypoint.Record{
		1: keypoint.Interpolated(0, 2), // 0.5, 1.5
		2: keypoint.Interpolated(1, 3),
		3: keypoint.Interpolated(2, 4), // 1.5, 4.5
	}
	for frame, rec := range want {
		p, ok := f.pair(frame, 0)
		require.True(t, ok)
		assert.Equal(t, rec, p.Left, "frame %d", frame)
	}
}

func TestInterpolateCubicWithFourAnchors(t *testing.T) {
	f := newFixture(t, 5)
	// u = 100 + x^3 is reproduced exactly by a not-a-knot spline through
	// four points; linear interpolation would give 114 at frame 2.
	for _, frame := range []int{0, 1, 3, 4} {
		u := 100 + frame*frame*frame
		f.set(frame, 9, keypoint.Manual(u, 50), keypoint.Manual(u-10, 50))
	}

	res, err := f.engine.Interpolate(f.store, 9, 1, false)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.Written)

	p, ok := f.pair(2, 9)
	require.True(t, ok)
	assert.Equal(t, keypoint.Interpolated(108, 50), p.Left)
	assert.Equal(t, keypoint.Interpolated(98, 50), p.Right)
}

func TestInterpolateIdempotent(t *testing.T) {
	f := newFixture(t, 12)
	for _, frame := range []int{1, 4, 6, 10} {
		f.set(frame, 2, keypoint.Manual(20*frame, 5*frame), keypoint.Manual(20*frame-7, 5*frame+1))
	}

	first, err := f.engine.Interpolate(f.store, 2, 6, false)
	require.NoError(t, err)
	after := f.snapshot()

	second, err := f.engine.Interpolate(f.store, 2, 6, false)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Written, second.Written)
	if diff := cmp.Diff(after, f.snapshot()); diff != "" {
		t.Errorf("second run changed records (-first +second):\n%s", diff)
	}
}

func TestInterpolateOtherLandmarksUntouched(t *testing.T) {
	f := newFixture(t, 3)
	f.set(0, 0, keypoint.Manual(0, 0), keypoint.Manual(0, 0))
	f.set(2, 0, keypoint.Manual(2, 2), keypoint.Manual(2, 2))
	f.set(1, 5, keypoint.Manual(7, 7), keypoint.Manual(6, 7))

	_, err := f.engine.Interpolate(f.store, 0, 0, false)
	require.NoError(t, err)

	p, ok := f.pair(1, 5)
	require.True(t, ok)
	assert.Equal(t, keypoint.Pair{Left: keypoint.Manual(7, 7), Right: keypoint.Manual(6, 7)}, p)
}

func TestInterpolateReferenceRange(t *testing.T) {
	f := newFixture(t, 3)
	_, err := f.engine.Interpolate(f.store, 0, 3, false)
	assert.ErrorIs(t, err, ErrReferenceRange)
	_, err = f.engine.Interpolate(f.store, 0, -1, false)
	assert.ErrorIs(t, err, ErrReferenceRange)
	_, err = f.engine.Interpolate(f.store, -1, 0, false)
	assert.ErrorIs(t, err, keypoint.ErrInvalidID)
}
