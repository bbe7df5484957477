package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/stereolabel/internal/annotate"
	"github.com/banshee-data/stereolabel/internal/config"
	"github.com/banshee-data/stereolabel/internal/keypoint"
	"github.com/banshee-data/stereolabel/internal/labeldb"
	"github.com/banshee-data/stereolabel/internal/report"
	"github.com/banshee-data/stereolabel/internal/security"
	"github.com/banshee-data/stereolabel/internal/timeutil"
)

// target is the frame and landmark a subcommand acts on.
type target struct {
	frame int
	id    int
}

func (t *target) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&t.frame, "frame", "f", 0, "Frame index")
	cmd.Flags().IntVarP(&t.id, "id", "i", 0, "Landmark ID")
}

func newShowCmd(o *options) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the keypoints of a frame",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(o, func(ws *workspace) error {
				s, err := ws.session(t.frame, t.id)
				if err != nil {
					return err
				}
				printFrame(cmd, s)
				return printSource(cmd, ws, s)
			})
		},
	}
	t.register(cmd)
	return cmd
}

// printSource prints the image pair behind the current frame and, for the
// SQLite backend, when its keypoints were last saved.
func printSource(cmd *cobra.Command, ws *workspace, s *annotate.Session) error {
	out := cmd.OutOrStdout()
	left, right, err := ws.seq.Paths(s.Frame())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "images: %s %s\n", left, right)
	if ws.db == nil {
		return nil
	}
	at, ok, err := ws.db.UpdatedAt(keypoint.Left, s.FrameName())
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(out, "updated: %s\n", at.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintln(out, "updated: never")
	}
	return nil
}

func printFrame(cmd *cobra.Command, s *annotate.Session) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, s.Status())
	for _, id := range s.Store().IDs() {
		p, _ := s.Store().Pair(id)
		marker := " "
		if id == s.ID() {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %4d  left=%-18s right=%s\n", marker, id, p.Left, p.Right)
	}
}

func newLabelCmd(o *options) *cobra.Command {
	var (
		t           target
		left, right []int
	)
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Label a landmark on both views of a frame",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(left) != 2 || len(right) != 2 {
				return errors.New("--left and --right each take u,v")
			}
			return withWorkspace(o, func(ws *workspace) error {
				s, err := ws.session(t.frame, t.id)
				if err != nil {
					return err
				}
				if _, ok := s.Selected(); ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "landmark %d already labeled on frame %s; eliminate it first\n", t.id, s.FrameName())
					return nil
				}
				if err := s.Click(keypoint.Left, left[0], left[1]); err != nil {
					return err
				}
				if err := s.Click(keypoint.Right, right[0], right[1]); err != nil {
					return err
				}
				printFrame(cmd, s)
				return nil
			})
		},
	}
	t.register(cmd)
	cmd.Flags().IntSliceVar(&left, "left", nil, "Left view position as u,v")
	cmd.Flags().IntSliceVar(&right, "right", nil, "Right view position as u,v")
	_ = cmd.MarkFlagRequired("left")
	_ = cmd.MarkFlagRequired("right")
	return cmd
}

// newRangeCmd builds a subcommand that applies op to one frame, or to
// every frame from --frame to --to.
func newRangeCmd(o *options, use, short string, op func(s *annotate.Session) error) *cobra.Command {
	var (
		t  target
		to int
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(o, func(ws *workspace) error {
				s, err := ws.session(t.frame, t.id)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("to") {
					s.ToggleRange()
					if err := s.Goto(to); err != nil {
						return err
					}
				}
				if err := op(s); err != nil {
					return err
				}
				printFrame(cmd, s)
				return nil
			})
		},
	}
	t.register(cmd)
	cmd.Flags().IntVar(&to, "to", 0, "Last frame of a range, inclusive")
	return cmd
}

func newToggleCmd(o *options) *cobra.Command {
	return newRangeCmd(o, "toggle", "Step landmark visibility: visible -> hidden -> removed",
		(*annotate.Session).ToggleVisibility)
}

func newEliminateCmd(o *options) *cobra.Command {
	return newRangeCmd(o, "eliminate", "Remove a landmark from both views",
		(*annotate.Session).Eliminate)
}

func newInterpolateCmd(o *options) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "interpolate",
		Short: "Fill a landmark between its manual anchors around a frame",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(o, func(ws *workspace) error {
				s, err := ws.session(t.frame, t.id)
				if err != nil {
					return err
				}
				res, err := s.Interpolate()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !res.Interpolated() {
					fmt.Fprintf(out, "run %s: %d anchor(s) for landmark %d, nothing to interpolate\n",
						res.RunID, len(res.Anchors), res.ID)
					return nil
				}
				fmt.Fprintf(out, "run %s: landmark %d window [%d, %d]\n", res.RunID, res.ID, res.WindowStart, res.WindowEnd)
				fmt.Fprintf(out, "  anchors:       %v\n", res.Anchors)
				fmt.Fprintf(out, "  written:       %v\n", res.Written)
				fmt.Fprintf(out, "  out of bounds: %v\n", res.OutOfBounds)
				return nil
			})
		},
	}
	t.register(cmd)
	return cmd
}

func newPlotCmd(o *options) *cobra.Command {
	var (
		id       int
		pngPath  string
		htmlPath string
		outDir   string
	)
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Chart a landmark's trajectory across the sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pngPath == "" && htmlPath == "" && outDir == "" {
				return errors.New("one of --png, --html or --out-dir is required")
			}
			return withWorkspace(o, func(ws *workspace) error {
				dataDir := ws.cfg.Data.GetDir()
				if outDir != "" {
					base := chartBaseName(dataDir, id)
					if pngPath == "" {
						pngPath = filepath.Join(outDir, base+".png")
					}
					if htmlPath == "" {
						htmlPath = filepath.Join(outDir, base+".html")
					}
				}
				for _, p := range []string{pngPath, htmlPath} {
					if p == "" {
						continue
					}
					if err := security.ValidateOutputPath(p, dataDir); err != nil {
						return err
					}
				}

				traj, err := report.Collect(ws.seq, ws.backend, id)
				if err != nil {
					return err
				}
				if pngPath != "" {
					if err := traj.WritePNG(pngPath); err != nil {
						return err
					}
				}
				if htmlPath != "" {
					if err := writeHTML(traj, htmlPath); err != nil {
						return err
					}
				}
				sum := traj.Summary()
				fmt.Fprintf(cmd.OutOrStdout(), "landmark %d: manual=%d interpolated=%d hidden=%d missing=%d\n",
					id, sum.Manual, sum.Interpolated, sum.Hidden, sum.Missing)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&id, "id", "i", 0, "Landmark ID")
	cmd.Flags().StringVar(&pngPath, "png", "", "Write a PNG chart to this path")
	cmd.Flags().StringVar(&htmlPath, "html", "", "Write an HTML chart to this path")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Write both charts to this directory under generated names")
	return cmd
}

// chartBaseName names a chart after the dataset directory and landmark.
func chartBaseName(dataDir string, id int) string {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		abs = dataDir
	}
	return security.SanitizeFilename(fmt.Sprintf("%s_landmark_%d", filepath.Base(abs), id))
}

func writeHTML(traj *report.Trajectory, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return traj.WriteHTML(f)
}

func newExportDBCmd(o *options) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "export-db",
		Short: "Copy the YAML keypoint files into a SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(o, func(ws *workspace) error {
				files, err := openFileBackend(ws.cfg.Data)
				if err != nil {
					return err
				}
				if dbPath == "" {
					dbPath = ws.cfg.Data.GetDBPath()
				}
				if err := security.ValidateOutputPath(dbPath, ws.cfg.Data.GetDir()); err != nil {
					return err
				}
				db, err := labeldb.Open(dbPath, timeutil.RealClock{})
				if err != nil {
					return err
				}
				defer db.Close()

				names := make([]string, 0, ws.seq.Count())
				for i := 0; i < ws.seq.Count(); i++ {
					name, err := ws.seq.Name(i)
					if err != nil {
						return err
					}
					names = append(names, name)
				}
				n, err := db.Import(files, names)
				if err != nil {
					return err
				}
				stored, err := db.Frames(keypoint.Left)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d of %d frames to %s (%d labeled frames stored)\n",
					n, len(names), dbPath, len(stored))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Database path (default: db_path from config)")
	return cmd
}

func newMigrateCmd(o *options) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:       "migrate up|down|version",
		Short:     "Manage the SQLite keypoint schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				cfg, err := config.Load(o.configPath)
				if err != nil {
					return err
				}
				dbPath = cfg.Data.GetDBPath()
			}
			db, err := labeldb.OpenNoMigrate(dbPath, nil)
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			switch args[0] {
			case "up":
				if err := db.MigrateUp(); err != nil {
					return err
				}
			case "down":
				if err := db.MigrateDown(); err != nil {
					return err
				}
			}
			v, dirty, err := db.MigrateVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "schema version %d (dirty=%v)\n", v, dirty)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Database path (default: db_path from config)")
	return cmd
}
