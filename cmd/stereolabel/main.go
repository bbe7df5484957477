// Command stereolabel labels corresponding keypoints on stereo image
// sequences and interpolates them between manually labeled frames.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/banshee-data/stereolabel/internal/config"
	"github.com/banshee-data/stereolabel/internal/monitoring"
	"github.com/banshee-data/stereolabel/internal/version"
)

type options struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "stereolabel",
		Short:         "Stereo keypoint labeling and interpolation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := monitoring.NewLogger(o.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			monitoring.SetLogger(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = monitoring.L().Sync()
		},
	}

	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", config.DefaultConfigPath, "Annotator config file")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newShowCmd(o),
		newLabelCmd(o),
		newToggleCmd(o),
		newEliminateCmd(o),
		newInterpolateCmd(o),
		newPlotCmd(o),
		newExportDBCmd(o),
		newMigrateCmd(o),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		monitoring.L().Error("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
