package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/banshee-data/stereolabel/internal/annotate"
	"github.com/banshee-data/stereolabel/internal/config"
	"github.com/banshee-data/stereolabel/internal/frames"
	"github.com/banshee-data/stereolabel/internal/fsutil"
	"github.com/banshee-data/stereolabel/internal/keypoint"
	"github.com/banshee-data/stereolabel/internal/labeldb"
	"github.com/banshee-data/stereolabel/internal/monitoring"
	"github.com/banshee-data/stereolabel/internal/timeutil"
)

// workspace is everything a subcommand needs: the configuration, the
// frame sequence and the configured keypoint backend.
type workspace struct {
	cfg     *config.Config
	seq     *frames.Sequence
	backend keypoint.Backend
	db      *labeldb.Backend
}

var fsys fsutil.FileSystem = fsutil.OSFileSystem{}

func openWorkspace(o *options) (*workspace, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	data := cfg.Data

	seq, err := frames.Open(fsys, data.LeftImageDir(), data.RightImageDir(), data.GetImFormat())
	if err != nil {
		return nil, err
	}
	h, w := seq.Resolution()
	monitoring.L().Debug("sequence opened",
		zap.String("dir", data.GetDir()), zap.Int("frames", seq.Count()),
		zap.Int("height", h), zap.Int("width", w))

	ws := &workspace{cfg: cfg, seq: seq}
	switch data.GetBackend() {
	case config.BackendSQLite:
		db, err := labeldb.Open(data.GetDBPath(), timeutil.RealClock{})
		if err != nil {
			return nil, err
		}
		ws.db, ws.backend = db, db
	default:
		fb, err := openFileBackend(data)
		if err != nil {
			return nil, err
		}
		ws.backend = fb
	}
	return ws, nil
}

func openFileBackend(data config.DataConfig) (*keypoint.FileBackend, error) {
	return keypoint.NewFileBackend(fsys, data.LeftOutputDir(), data.RightOutputDir(), data.GetRecordExt())
}

func (ws *workspace) Close() error {
	if ws.db != nil {
		return ws.db.Close()
	}
	return nil
}

// session starts an annotation session positioned at frame and landmark id.
func (ws *workspace) session(frame, id int) (*annotate.Session, error) {
	s, err := annotate.New(ws.seq, keypoint.NewStore(ws.backend), ws.cfg.Data.GetIsRectified())
	if err != nil {
		return nil, err
	}
	if err := s.Goto(frame); err != nil {
		return nil, err
	}
	if err := s.SetID(id); err != nil {
		return nil, err
	}
	return s, nil
}

// withWorkspace opens the workspace for the duration of fn.
func withWorkspace(o *options, fn func(ws *workspace) error) (err error) {
	ws, err := openWorkspace(o)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close workspace: %w", cerr)
		}
	}()
	return fn(ws)
}
