package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stereolabel/internal/fsutil"
	"github.com/banshee-data/stereolabel/internal/keypoint"
)

type names []string

func (n names) Count() int { return len(n) }

func (n names) Name(i int) (string, error) {
	if i < 0 || i >= len(n) {
		return "", fmt.Errorf("no frame %d", i)
	}
	return n[i], nil
}

func seed(t *testing.T) (names, keypoint.Backend) {
	t.Helper()
	backend, err := keypoint.NewFileBackend(fsutil.NewMemoryFileSystem(), "/l", "/r", "")
	require.NoError(t, err)

	frames := names{"f0", "f1", "f2", "f3", "f4"}
	pairs := map[string]keypoint.Pair{
		"f0": {Left: keypoint.Manual(10, 20), Right: keypoint.Manual(5, 20)},
		"f1": {Left: keypoint.Interpolated(12, 21), Right: keypoint.Interpolated(7, 21)},
		"f2": {Left: keypoint.Manual(14, 22), Right: keypoint.Manual(9, 22)},
		"f3": {Left: keypoint.Hidden(), Right: keypoint.Hidden()},
	}
	for frame, p := range pairs {
		for _, view := range keypoint.Views {
			require.NoError(t, backend.Save(view, frame, map[int]keypoint.Record{1: p.Get(view)}))
		}
	}
	return frames, backend
}

func TestCollect(t *testing.T) {
	frames, backend := seed(t)

	traj, err := Collect(frames, backend, 1)
	require.NoError(t, err)
	require.Len(t, traj.Points, 5)

	assert.True(t, traj.Points[0].Present)
	assert.Equal(t, "f1", traj.Points[1].Name)
	assert.False(t, traj.Points[4].Present)
	assert.Equal(t, Summary{Manual: 2, Interpolated: 1, Hidden: 1, Missing: 1}, traj.Summary())

	other, err := Collect(frames, backend, 2)
	require.NoError(t, err)
	assert.Equal(t, Summary{Missing: 5}, other.Summary())
}

func TestCollectPairingViolation(t *testing.T) {
	frames, backend := seed(t)
	require.NoError(t, backend.Save(keypoint.Left, "f4", map[int]keypoint.Record{1: keypoint.Hidden()}))

	_, err := Collect(frames, backend, 1)
	assert.ErrorIs(t, err, keypoint.ErrPairingViolation)
}

func TestWritePNG(t *testing.T) {
	frames, backend := seed(t)
	traj, err := Collect(frames, backend, 1)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "landmark_1.png")
	require.NoError(t, traj.WritePNG(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestWriteHTML(t *testing.T) {
	frames, backend := seed(t)
	traj, err := Collect(frames, backend, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, traj.WriteHTML(&buf))

	html := buf.String()
	assert.Contains(t, html, "Landmark 1 trajectory")
	assert.Contains(t, html, "left u")
	assert.Contains(t, html, "right v")
	assert.Contains(t, html, "interpolated=1")
}

func TestEmptyTrajectory(t *testing.T) {
	frames, backend := seed(t)
	traj, err := Collect(frames, backend, 9)
	require.NoError(t, err)

	assert.ErrorIs(t, traj.WritePNG(filepath.Join(t.TempDir(), "x.png")), ErrNoVisiblePoints)
	assert.ErrorIs(t, traj.WriteHTML(&bytes.Buffer{}), ErrNoVisiblePoints)
}
