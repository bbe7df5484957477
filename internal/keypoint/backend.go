package keypoint

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/banshee-data/stereolabel/internal/fsutil"
)

// Backend persists the records of one view of one frame.
// Load of a frame that was never saved returns an empty map and no error.
type Backend interface {
	Load(view View, frame string) (map[int]Record, error)
	Save(view View, frame string, records map[int]Record) error
}

// DefaultRecordExt is the extension of per-frame record files.
const DefaultRecordExt = ".yaml"

// FileBackend stores each view of each frame as <frame><ext> in that view's
// output directory.
type FileBackend struct {
	fs   fsutil.FileSystem
	dirs [2]string
	ext  string
}

// NewFileBackend creates the output directories if needed. An empty ext
// selects DefaultRecordExt.
func NewFileBackend(fsys fsutil.FileSystem, leftDir, rightDir, ext string) (*FileBackend, error) {
	if ext == "" {
		ext = DefaultRecordExt
	}
	b := &FileBackend{fs: fsys, dirs: [2]string{leftDir, rightDir}, ext: ext}
	for _, dir := range b.dirs {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	return b, nil
}

// Path returns the record file for a view of a frame.
func (b *FileBackend) Path(view View, frame string) string {
	return filepath.Join(b.dirs[view], frame+b.ext)
}

// Load reads a view's records. A missing file is an empty frame.
func (b *FileBackend) Load(view View, frame string) (map[int]Record, error) {
	path := b.Path(view, frame)
	info, err := b.fs.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[int]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, &CorruptStoreError{Frame: frame, View: view, Path: path, Err: errors.New("record path is a directory")}
	}
	data, err := b.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	records, err := DecodeRecords(data)
	if err != nil {
		return nil, &CorruptStoreError{Frame: frame, View: view, Path: path, Err: err}
	}
	return records, nil
}

// Save overwrites a view's record file.
func (b *FileBackend) Save(view View, frame string, records map[int]Record) error {
	data, err := EncodeRecords(records)
	if err != nil {
		return fmt.Errorf("encode %s records for frame %s: %w", view, frame, err)
	}
	path := b.Path(view, frame)
	if err := b.fs.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
