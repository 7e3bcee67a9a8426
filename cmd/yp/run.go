package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/mschirtzinger/yoloprep/internal/index"
	"github.com/mschirtzinger/yoloprep/internal/kaggle"
	"github.com/mschirtzinger/yoloprep/internal/pipeline"
	"github.com/mschirtzinger/yoloprep/internal/ui"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: "data",
	Short:   "Download, index and organize in one pass",
	Long: `Run the whole preparation:

  1. Download and unzip the dataset (skipped if already present)
  2. Create the index from file names if the dataset has none
  3. Copy images into the YOLO layout and write placeholder labels

Examples:
  yp run
  yp run --dataset chiragsaipanuganti/utkface --workers 8`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAll(cmd); err != nil {
			fatal("%s", describeRunError(err))
		}
	},
}

func runAll(cmd *cobra.Command) error {
	force, _ := cmd.Flags().GetBool("force")
	if dataset, _ := cmd.Flags().GetString("dataset"); dataset != "" {
		cfg.Dataset.Slug = dataset
	}

	opts, stop, err := organizeOptions(cmd)
	if err != nil {
		return err
	}
	defer stop()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("%s Preparing %s...\n", ui.RenderAccent("🚀"), cfg.Dataset.Slug)
	start := time.Now()

	res, err := pipeline.New(cfg, logger).Run(ctx, force, opts)
	if err != nil {
		return err
	}
	printOrganizeSummary(res, time.Since(start))
	return nil
}

// describeRunError adds a hint for the failures a first run usually hits.
func describeRunError(err error) string {
	switch {
	case errors.Is(err, kaggle.ErrNoCredentials):
		return fmt.Sprintf("%v\nCreate an API token at https://www.kaggle.com/settings and save it as %s/kaggle.json",
			err, kaggle.DefaultConfigDir())
	case errors.Is(err, index.ErrNoImages):
		return fmt.Sprintf("no valid images found in %s to build the index", cfg.Dataset.ImagesDir())
	default:
		return err.Error()
	}
}

func init() {
	runCmd.Flags().String("dataset", "", "Kaggle dataset slug (owner/name)")
	runCmd.Flags().Bool("force", false, "Download even if the images directory exists")
	addOrganizeFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
