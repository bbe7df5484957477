// Package labeldb stores keypoint records in a SQLite database. It is an
// alternative to the per-frame YAML files and implements keypoint.Backend.
package labeldb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/maruel/natural"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/stereolabel/internal/keypoint"
	"github.com/banshee-data/stereolabel/internal/monitoring"
	"github.com/banshee-data/stereolabel/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Backend is a keypoint.Backend over a SQLite database.
type Backend struct {
	db    *sql.DB
	path  string
	clock timeutil.Clock
}

var _ keypoint.Backend = (*Backend)(nil)

// Open opens the database at path and migrates it to the latest schema.
// A nil clock uses the wall clock.
func Open(path string, clock timeutil.Clock) (*Backend, error) {
	b, err := OpenNoMigrate(path, clock)
	if err != nil {
		return nil, err
	}
	if err := b.MigrateUp(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// OpenNoMigrate opens the database without touching its schema. The
// migrate subcommands use it.
func OpenNoMigrate(path string, clock timeutil.Clock) (*Backend, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open label database %s: %w", path, err)
	}
	// One connection keeps the pragmas in effect for every statement.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", p, err)
		}
	}
	return &Backend{db: db, path: path, clock: clock}, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Path returns the database file path.
func (b *Backend) Path() string { return b.path }

// Load returns the records of one view of a frame. A frame with no rows is
// empty.
func (b *Backend) Load(view keypoint.View, frame string) (map[int]keypoint.Record, error) {
	rows, err := b.db.Query(
		`SELECT landmark_id, u, v, is_interp, is_visible
		   FROM keypoints
		  WHERE frame = ? AND view = ?`,
		frame, view.String())
	if err != nil {
		return nil, fmt.Errorf("query %s view of frame %s: %w", view, frame, err)
	}
	defer rows.Close()

	records := map[int]keypoint.Record{}
	for rows.Next() {
		var (
			id                int
			u, v              sql.NullInt64
			interp, isVisible bool
		)
		if err := rows.Scan(&id, &u, &v, &interp, &isVisible); err != nil {
			return nil, b.corrupt(view, frame, err)
		}
		switch {
		case !isVisible:
			records[id] = keypoint.Hidden()
		case !u.Valid || !v.Valid:
			return nil, b.corrupt(view, frame, fmt.Errorf("landmark %d: visible without coordinates", id))
		case interp:
			records[id] = keypoint.Interpolated(int(u.Int64), int(v.Int64))
		default:
			records[id] = keypoint.Manual(int(u.Int64), int(v.Int64))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s view of frame %s: %w", view, frame, err)
	}
	return records, nil
}

func (b *Backend) corrupt(view keypoint.View, frame string, err error) error {
	return &keypoint.CorruptStoreError{Frame: frame, View: view, Path: b.path, Err: err}
}

// Save replaces one view of a frame in a single transaction.
func (b *Backend) Save(view keypoint.View, frame string, records map[int]keypoint.Record) (err error) {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save of frame %s: %w", frame, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				monitoring.L().Warn("rollback failed", zap.String("frame", frame), zap.Error(rbErr))
			}
		}
	}()

	if _, err = tx.Exec(`DELETE FROM keypoints WHERE frame = ? AND view = ?`, frame, view.String()); err != nil {
		return fmt.Errorf("clear %s view of frame %s: %w", view, frame, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO keypoints (frame, view, landmark_id, u, v, is_interp, is_visible, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := b.clock.Now().UnixMilli()
	for id, r := range records {
		var u, v sql.NullInt64
		if r.Visible() {
			u = sql.NullInt64{Int64: int64(r.U), Valid: true}
			v = sql.NullInt64{Int64: int64(r.V), Valid: true}
		}
		if _, err = stmt.Exec(frame, view.String(), id, u, v, r.IsInterp(), r.Visible(), now); err != nil {
			return fmt.Errorf("insert landmark %d into %s view of frame %s: %w", id, view, frame, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s view of frame %s: %w", view, frame, err)
	}
	return nil
}

// Frames returns the names of frames with at least one record in view, in
// natural order.
func (b *Backend) Frames(view keypoint.View) ([]string, error) {
	rows, err := b.db.Query(`SELECT DISTINCT frame FROM keypoints WHERE view = ?`, view.String())
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var frames []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(frames, func(i, j int) bool { return natural.Less(frames[i], frames[j]) })
	return frames, nil
}

// UpdatedAt returns when one view of a frame was last saved. The boolean is
// false when the frame has no rows in that view.
func (b *Backend) UpdatedAt(view keypoint.View, frame string) (time.Time, bool, error) {
	var ms sql.NullInt64
	err := b.db.QueryRow(
		`SELECT MAX(updated_at) FROM keypoints WHERE frame = ? AND view = ?`,
		frame, view.String()).Scan(&ms)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query update time of frame %s: %w", frame, err)
	}
	if !ms.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms.Int64), true, nil
}

// Import copies both views of every named frame from src. Frames with no
// records in src are skipped. It returns the number of frames copied.
func (b *Backend) Import(src keypoint.Backend, frames []string) (int, error) {
	copied := 0
	for _, frame := range frames {
		var views [2]map[int]keypoint.Record
		for _, view := range keypoint.Views {
			records, err := src.Load(view, frame)
			if err != nil {
				return copied, fmt.Errorf("import frame %s: %w", frame, err)
			}
			views[view] = records
		}
		if len(views[keypoint.Left]) == 0 && len(views[keypoint.Right]) == 0 {
			continue
		}
		for _, view := range keypoint.Views {
			if err := b.Save(view, frame, views[view]); err != nil {
				return copied, fmt.Errorf("import frame %s: %w", frame, err)
			}
		}
		copied++
	}
	monitoring.L().Info("imported keypoint frames", zap.String("db", b.path), zap.Int("frames", copied))
	return copied, nil
}
