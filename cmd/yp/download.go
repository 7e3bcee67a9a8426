package main

import (
	"errors"
	"fmt"

	"github.com/mschirtzinger/yoloprep/internal/kaggle"
	"github.com/mschirtzinger/yoloprep/internal/pipeline"
	"github.com/mschirtzinger/yoloprep/internal/ui"
	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:     "download",
	GroupID: "data",
	Short:   "Download and unzip the dataset from Kaggle",
	Long: `Download the configured Kaggle dataset into dataset.base_dir and unzip it.

Credentials come from KAGGLE_USERNAME/KAGGLE_KEY or ~/.kaggle/kaggle.json.
The download is skipped when the images directory already exists; pass
--force to fetch it again.

Examples:
  yp download
  yp download --dataset chiragsaipanuganti/utkface --force`,
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		if dataset, _ := cmd.Flags().GetString("dataset"); dataset != "" {
			cfg.Dataset.Slug = dataset
		}

		ctx, cancel := signalContext()
		defer cancel()

		fmt.Printf("%s Downloading %s...\n", ui.RenderAccent("⬇"), cfg.Dataset.Slug)
		res, err := pipeline.New(cfg, logger).Download(ctx, force)
		if err != nil {
			if errors.Is(err, kaggle.ErrNoCredentials) {
				fatal("%v\nCreate an API token at https://www.kaggle.com/settings and save it as %s/kaggle.json",
					err, kaggle.DefaultConfigDir())
			}
			fatal("%v", err)
		}

		if res.Skipped {
			fmt.Printf("%s Images already present in %s (use --force to re-download)\n",
				ui.RenderWarn("⚠"), cfg.Dataset.ImagesDir())
			return
		}
		fmt.Printf("%s Dataset downloaded and unzipped into %s\n", ui.RenderPass("✓"), cfg.Dataset.BaseDir)
		fmt.Printf("   Archive: %s\n", ui.FormatBytes(res.Bytes))
		fmt.Printf("   Files: %d\n", res.FilesTotal)
	},
}

func init() {
	downloadCmd.Flags().String("dataset", "", "Kaggle dataset slug (owner/name)")
	downloadCmd.Flags().Bool("force", false, "Download even if the images directory exists")
	rootCmd.AddCommand(downloadCmd)
}
