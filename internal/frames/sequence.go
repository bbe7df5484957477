// Package frames enumerates the left/right image pairs of a stereo
// sequence in natural filename order.
package frames

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/banshee-data/stereolabel/internal/fsutil"
)

// Precondition violations. They indicate a mismatched dataset and are not
// recoverable in-process.
var (
	ErrCountMismatch      = errors.New("left and right frame counts differ")
	ErrNameMismatch       = errors.New("left and right frame names differ")
	ErrResolutionMismatch = errors.New("frame resolution differs")
	ErrEmptySequence      = errors.New("no frames found")
	ErrIndexRange         = errors.New("frame index out of range")
)

// Sequence is an ordered list of stereo frame pairs.
type Sequence struct {
	fs     fsutil.FileSystem
	paths  [2][]string
	height int
	width  int
}

// Open lists the files ending in ext in both directories, sorts them
// naturally and probes the resolution from the first pair.
func Open(fsys fsutil.FileSystem, leftDir, rightDir, ext string) (*Sequence, error) {
	left, err := listFrames(fsys, leftDir, ext)
	if err != nil {
		return nil, err
	}
	right, err := listFrames(fsys, rightDir, ext)
	if err != nil {
		return nil, err
	}
	if len(left) != len(right) {
		return nil, fmt.Errorf("%w: %d in %s, %d in %s", ErrCountMismatch, len(left), leftDir, len(right), rightDir)
	}
	if len(left) == 0 {
		return nil, fmt.Errorf("%w: *%s in %s", ErrEmptySequence, ext, leftDir)
	}

	s := &Sequence{fs: fsys, paths: [2][]string{left, right}}
	h, w, err := s.pairResolution(0)
	if err != nil {
		return nil, err
	}
	s.height, s.width = h, w
	return s, nil
}

func listFrames(fsys fsutil.FileSystem, dir, ext string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list frames in %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Slice(paths, func(i, j int) bool { return natural.Less(paths[i], paths[j]) })
	return paths, nil
}

// Count returns the number of frame pairs.
func (s *Sequence) Count() int { return len(s.paths[0]) }

// Resolution returns the height and width shared by every frame.
func (s *Sequence) Resolution() (height, width int) { return s.height, s.width }

// Paths returns the left and right image paths of frame i.
func (s *Sequence) Paths(i int) (left, right string, err error) {
	if err := s.checkIndex(i); err != nil {
		return "", "", err
	}
	return s.paths[0][i], s.paths[1][i], nil
}

// Name returns the filename stem shared by both images of frame i.
func (s *Sequence) Name(i int) (string, error) {
	if err := s.checkIndex(i); err != nil {
		return "", err
	}
	l, r := stem(s.paths[0][i]), stem(s.paths[1][i])
	if l != r {
		return "", fmt.Errorf("frame %d: %w: %q vs %q", i, ErrNameMismatch, l, r)
	}
	return l, nil
}

// CheckResolution decodes the headers of frame i and verifies they match
// the sequence resolution.
func (s *Sequence) CheckResolution(i int) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	h, w, err := s.pairResolution(i)
	if err != nil {
		return err
	}
	if h != s.height || w != s.width {
		return fmt.Errorf("frame %d: %w: %dx%d, sequence is %dx%d", i, ErrResolutionMismatch, w, h, s.width, s.height)
	}
	return nil
}

func (s *Sequence) checkIndex(i int) error {
	if i < 0 || i >= s.Count() {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexRange, i, s.Count())
	}
	return nil
}

// pairResolution probes both images of frame i; they must agree.
func (s *Sequence) pairResolution(i int) (height, width int, err error) {
	lh, lw, err := s.probe(s.paths[0][i])
	if err != nil {
		return 0, 0, err
	}
	rh, rw, err := s.probe(s.paths[1][i])
	if err != nil {
		return 0, 0, err
	}
	if lh != rh || lw != rw {
		return 0, 0, fmt.Errorf("frame %d: %w: left %dx%d, right %dx%d", i, ErrResolutionMismatch, lw, lh, rw, rh)
	}
	return lh, lw, nil
}

func (s *Sequence) probe(path string) (height, width int, err error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode header of %s: %w", path, err)
	}
	return cfg.Height, cfg.Width, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
