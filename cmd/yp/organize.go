package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mschirtzinger/yoloprep/internal/logging"
	"github.com/mschirtzinger/yoloprep/internal/pipeline"
	"github.com/mschirtzinger/yoloprep/internal/progress"
	"github.com/mschirtzinger/yoloprep/internal/ui"
	"github.com/mschirtzinger/yoloprep/internal/watch"
	"github.com/mschirtzinger/yoloprep/internal/yolo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var organizeCmd = &cobra.Command{
	Use:     "organize",
	GroupID: "data",
	Short:   "Copy indexed images into the YOLO layout and write labels",
	Long: `Process Train.csv, Validation.csv and Test.csv into output.dir.

For each row the label is mapped through classes.map. Rows with an unknown
label, or whose image cannot be found, are skipped. The image is looked up in
<images>/<Split>/, then at the row's filepath, then directly in <images>/.

Each copied image gets labels/<split>/<name>.txt containing
"<class> 0.5 0.5 1.0 1.0".

Examples:
  yp organize
  yp organize --workers 8 --progress-port 8765
  yp organize --watch`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runOrganize(cmd); err != nil {
			fatal("%v", err)
		}
	},
}

// runOrganize returns instead of exiting so the progress server and signal
// handler are released before the process ends.
func runOrganize(cmd *cobra.Command) error {
	opts, stop, err := organizeOptions(cmd)
	if err != nil {
		return err
	}
	defer stop()

	ctx, cancel := signalContext()
	defer cancel()

	p := pipeline.New(cfg, logger)
	if err := organizeOnce(ctx, p, opts); err != nil {
		return err
	}

	if watchIndex, _ := cmd.Flags().GetBool("watch"); !watchIndex {
		return nil
	}
	w, err := watch.New(cfg.Dataset.IndexDir(), func(ctx context.Context, changed []string) error {
		return organizeOnce(ctx, p, opts)
	}, &watch.Config{Logger: logging.Std(logger, "watch")})
	if err != nil {
		return err
	}
	fmt.Printf("\n%s Watching %s for index changes (Ctrl+C to stop)\n",
		ui.RenderAccent("👀"), cfg.Dataset.IndexDir())
	return w.Run(ctx)
}

// organizeOptions reads the shared organize flags. The returned func stops
// the progress server if one was started.
func organizeOptions(cmd *cobra.Command) (pipeline.OrganizeOptions, func(), error) {
	workers, _ := cmd.Flags().GetInt("workers")
	port, _ := cmd.Flags().GetInt("progress-port")
	noCatalog, _ := cmd.Flags().GetBool("no-catalog")

	opts := pipeline.OrganizeOptions{Workers: workers, SkipCatalog: noCatalog}
	if port <= 0 {
		return opts, func() {}, nil
	}

	server := progress.NewServer(&progress.Config{Port: port, Logger: logging.Std(logger, "progress")})
	if err := server.Start(); err != nil {
		return opts, nil, err
	}
	fmt.Printf("%s Progress stream: ws://%s/ws\n", ui.RenderAccent("📡"), server.Addr())
	opts.Observers = []yolo.Observer{server}

	return opts, func() {
		if err := server.Stop(); err != nil {
			logger.Warn("failed to stop progress server", zap.Error(err))
		}
	}, nil
}

func addOrganizeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("workers", 0, "Concurrent copies (default: organize.workers)")
	cmd.Flags().Int("progress-port", 0, "Serve a websocket progress stream on this port")
	cmd.Flags().Bool("no-catalog", false, "Do not record the run in the catalog")
}

func organizeOnce(ctx context.Context, p *pipeline.Pipeline, opts pipeline.OrganizeOptions) error {
	start := time.Now()
	res, err := p.Organize(ctx, opts)
	if err != nil {
		return err
	}
	printOrganizeSummary(res, time.Since(start))
	return nil
}

func printOrganizeSummary(res *pipeline.OrganizeResult, elapsed time.Duration) {
	rows := make([][]string, 0, len(res.Splits))
	for _, s := range res.Splits {
		if s.Empty {
			rows = append(rows, []string{string(s.Split), ui.RenderWarn("empty index"), "", "", "", ""})
			continue
		}
		rows = append(rows, []string{
			string(s.Split),
			fmt.Sprint(s.Copied),
			fmt.Sprint(s.UnknownLabel),
			fmt.Sprint(s.MissingSource),
			fmt.Sprint(s.Duplicate),
			fmt.Sprint(s.Malformed),
		})
	}

	fmt.Printf("\n%s Data organized in YOLO format in %s (%v)\n\n",
		ui.RenderPass("✓"), cfg.Output.Dir, elapsed.Round(time.Millisecond))
	fmt.Print(ui.Table([]string{"split", "copied", "unknown label", "missing image", "duplicate", "malformed"}, rows))
	fmt.Printf("\n   Dataset file: %s\n", res.DataYAML)
	if res.RunID != "" {
		fmt.Printf("   Run: %s\n", ui.RenderMuted(res.RunID))
	}
}

func init() {
	addOrganizeFlags(organizeCmd)
	organizeCmd.Flags().Bool("watch", false, "Re-run whenever the index CSVs change")
	rootCmd.AddCommand(organizeCmd)
}
