package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mschirtzinger/yoloprep/internal/catalog"
	"github.com/mschirtzinger/yoloprep/internal/ui"
	"github.com/mschirtzinger/yoloprep/internal/yolo"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "maint",
	Short:   "Show the last recorded organize run",
	Long: `Display the most recent run from the catalog (output.dir/catalog.db by
default): when it ran, whether it finished, and per-split outcome counts.`,
	Run: func(cmd *cobra.Command, args []string) {
		path := cfg.CatalogPath()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Printf("\n%s No catalog at %s\n", ui.RenderWarn("⚠"), path)
			fmt.Printf("   Run 'yp organize' to create one\n\n")
			return
		}

		db, err := catalog.Open(path)
		if err != nil {
			fatal("%v", err)
		}
		defer db.Close()

		ctx := context.Background()
		run, err := db.LastRun(ctx)
		if errors.Is(err, catalog.ErrNoRuns) {
			fmt.Printf("\n%s No runs recorded yet\n\n", ui.RenderWarn("⚠"))
			return
		}
		if err != nil {
			fatal("%v", err)
		}

		counts, err := db.SplitCounts(ctx, run.ID)
		if err != nil {
			fatal("%v", err)
		}

		status := run.Status
		switch status {
		case catalog.StatusComplete:
			status = ui.RenderPass(status)
		case catalog.StatusFailed:
			status = ui.RenderFail(status)
		default:
			status = ui.RenderWarn(status)
		}

		fmt.Printf("\n%s Last run\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Run: %s\n", run.ID)
		fmt.Printf("Dataset: %s\n", run.Dataset)
		fmt.Printf("Output: %s\n", run.OutputDir)
		fmt.Printf("Started: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
		if run.FinishedAt != nil {
			fmt.Printf("Duration: %v\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
		}
		fmt.Printf("Status: %s\n\n", status)

		rows := make([][]string, 0, len(yolo.Splits))
		for _, s := range yolo.Splits {
			c := counts[string(s)]
			rows = append(rows, []string{
				string(s),
				fmt.Sprint(c[string(yolo.OutcomeCopied)]),
				fmt.Sprint(c[string(yolo.OutcomeUnknownLabel)]),
				fmt.Sprint(c[string(yolo.OutcomeMissingSource)]),
			})
		}
		fmt.Print(ui.Table([]string{"split", "copied", "unknown label", "missing image"}, rows))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
