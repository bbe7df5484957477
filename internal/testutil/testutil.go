// Package testutil builds stereo sequence fixtures for tests.
package testutil

import (
	"bytes"
	"image"
	"image/png"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/banshee-data/stereolabel/internal/fsutil"
)

// PNG returns an encoded blank grayscale image of the given size.
func PNG(t testing.TB, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WriteFramePairs writes one PNG per stem into both leftDir and rightDir.
func WriteFramePairs(t testing.TB, fsys fsutil.FileSystem, leftDir, rightDir string, width, height int, stems ...string) {
	t.Helper()
	img := PNG(t, width, height)
	for _, dir := range []string{leftDir, rightDir} {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
		for _, stem := range stems {
			path := filepath.Join(dir, stem+".png")
			if err := fsys.WriteFile(path, img, 0o644); err != nil {
				t.Fatalf("write %s: %v", path, err)
			}
		}
	}
}

// Stems returns n frame stems formatted as prefix0, prefix1, ...
func Stems(prefix string, n int) []string {
	stems := make([]string, n)
	for i := range stems {
		stems[i] = prefix + strconv.Itoa(i)
	}
	return stems
}
