package main

import (
	"errors"
	"fmt"

	"github.com/mschirtzinger/yoloprep/internal/index"
	"github.com/mschirtzinger/yoloprep/internal/pipeline"
	"github.com/mschirtzinger/yoloprep/internal/ui"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:     "index",
	GroupID: "data",
	Short:   "Create Train/Validation/Test.csv from image file names",
	Long: `Create the label index when the dataset does not ship one.

Labels are read from the underscore-separated field index.label_field of
each image name (gender in age_gender_race_date.jpg). Records are shuffled
with split.seed and divided 80/10/10 by default.

An existing index directory is left untouched unless --rebuild is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		rebuild, _ := cmd.Flags().GetBool("rebuild")

		res, err := pipeline.New(cfg, logger).Index(rebuild)
		if errors.Is(err, index.ErrNoImages) {
			fatal("no valid images found in %s to build the index", cfg.Dataset.ImagesDir())
		}
		if err != nil {
			fatal("%v", err)
		}

		if !res.Created {
			fmt.Printf("%s Index already exists at %s (use --rebuild to recreate it)\n",
				ui.RenderWarn("⚠"), cfg.Dataset.IndexDir())
			return
		}
		fmt.Printf("%s Index created at %s\n", ui.RenderPass("✓"), cfg.Dataset.IndexDir())
		fmt.Print(ui.Table([]string{"file", "rows"}, [][]string{
			{index.TrainFile, fmt.Sprint(len(res.Splits.Train))},
			{index.ValidationFile, fmt.Sprint(len(res.Splits.Validation))},
			{index.TestFile, fmt.Sprint(len(res.Splits.Test))},
		}))
	},
}

func init() {
	indexCmd.Flags().Bool("rebuild", false, "Overwrite an existing index")
	rootCmd.AddCommand(indexCmd)
}
