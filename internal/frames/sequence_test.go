package frames

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stereolabel/internal/fsutil"
	"github.com/banshee-data/stereolabel/internal/testutil"
)

func TestOpenNaturalOrder(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	testutil.WriteFramePairs(t, mfs, "/seq/left", "/seq/right", 64, 48, "img10", "img2", "img1")
	require.NoError(t, mfs.WriteFile("/seq/left/notes.txt", []byte("x"), 0644))
	require.NoError(t, mfs.WriteFile("/seq/right/notes.txt", []byte("x"), 0644))

	seq, err := Open(mfs, "/seq/left", "/seq/right", ".png")
	require.NoError(t, err)

	assert.Equal(t, 3, seq.Count())
	var names []string
	for i := 0; i < seq.Count(); i++ {
		name, err := seq.Name(i)
		require.NoError(t, err)
		names = append(names, name)
	}
	assert.Equal(t, []string{"img1", "img2", "img10"}, names)

	h, w := seq.Resolution()
	assert.Equal(t, 48, h)
	assert.Equal(t, 64, w)

	l, r, err := seq.Paths(2)
	require.NoError(t, err)
	assert.Equal(t, "/seq/left/img10.png", l)
	assert.Equal(t, "/seq/right/img10.png", r)
}

func TestOpenCountMismatch(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	testutil.WriteFramePairs(t, mfs, "/seq/left", "/seq/right", 8, 8, "a", "b")
	require.NoError(t, mfs.WriteFile("/seq/left/c.png", testutil.PNG(t, 8, 8), 0644))

	_, err := Open(mfs, "/seq/left", "/seq/right", ".png")
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestOpenEmpty(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/seq/left", 0755))
	require.NoError(t, mfs.MkdirAll("/seq/right", 0755))

	_, err := Open(mfs, "/seq/left", "/seq/right", ".png")
	assert.ErrorIs(t, err, ErrEmptySequence)
}

func TestOpenMissingDir(t *testing.T) {
	_, err := Open(fsutil.NewMemoryFileSystem(), "/nope/left", "/nope/right", ".png")
	assert.Error(t, err)
}

func TestNameMismatch(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	img := testutil.PNG(t, 8, 8)
	require.NoError(t, mfs.WriteFile("/seq/left/0001.png", img, 0644))
	require.NoError(t, mfs.WriteFile("/seq/right/0001_r.png", img, 0644))

	seq, err := Open(mfs, "/seq/left", "/seq/right", ".png")
	require.NoError(t, err)

	_, err = seq.Name(0)
	assert.ErrorIs(t, err, ErrNameMismatch)
}

func TestIndexRange(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	testutil.WriteFramePairs(t, mfs, "/seq/left", "/seq/right", 8, 8, "0")

	seq, err := Open(mfs, "/seq/left", "/seq/right", ".png")
	require.NoError(t, err)

	_, err = seq.Name(1)
	assert.ErrorIs(t, err, ErrIndexRange)
	_, err = seq.Name(-1)
	assert.ErrorIs(t, err, ErrIndexRange)
	assert.ErrorIs(t, seq.CheckResolution(5), ErrIndexRange)
}

func TestResolutionMismatch(t *testing.T) {
	t.Run("left and right of first pair", func(t *testing.T) {
		mfs := fsutil.NewMemoryFileSystem()
		require.NoError(t, mfs.WriteFile("/seq/left/0.png", testutil.PNG(t, 8, 8), 0644))
		require.NoError(t, mfs.WriteFile("/seq/right/0.png", testutil.PNG(t, 9, 8), 0644))

		_, err := Open(mfs, "/seq/left", "/seq/right", ".png")
		assert.ErrorIs(t, err, ErrResolutionMismatch)
	})

	t.Run("later frame differs from sequence", func(t *testing.T) {
		mfs := fsutil.NewMemoryFileSystem()
		testutil.WriteFramePairs(t, mfs, "/seq/left", "/seq/right", 8, 8, "0")
		testutil.WriteFramePairs(t, mfs, "/seq/left", "/seq/right", 16, 8, "1")

		seq, err := Open(mfs, "/seq/left", "/seq/right", ".png")
		require.NoError(t, err)

		assert.NoError(t, seq.CheckResolution(0))
		assert.ErrorIs(t, seq.CheckResolution(1), ErrResolutionMismatch)
	})
}

func TestCorruptImage(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/seq/left/0.png", []byte("not an image"), 0644))
	require.NoError(t, mfs.WriteFile("/seq/right/0.png", []byte("not an image"), 0644))

	_, err := Open(mfs, "/seq/left", "/seq/right", ".png")
	assert.Error(t, err)
}
