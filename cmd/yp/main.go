package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mschirtzinger/yoloprep/internal/config"
	"github.com/mschirtzinger/yoloprep/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool
	logFile    string

	// Set by PersistentPreRun for every command except `config`.
	cfg       *config.Config
	cfgSource string
	logger    = zap.NewNop()
	flushLogs = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "yp",
	Short: "Prepare image datasets for YOLO object-detection training",
	Long: `yp downloads an image dataset from Kaggle and reorganizes it into the
YOLO layout:

  output_yolo/images/{train,val,test}/
  output_yolo/labels/{train,val,test}/
  output_yolo/data.yaml

When the dataset has no label index, one is inferred from file names
(age_gender_race_date.jpg) and split 80/10/10 into Train.csv,
Validation.csv and Test.csv.

Every label file holds one placeholder box covering the whole image.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if skipConfig(cmd) {
			return
		}
		loaded, source, err := config.Load(configPath)
		if err != nil {
			fatal("%v", err)
		}
		if logFile != "" {
			loaded.Log.File = logFile
		}
		cfg, cfgSource = loaded, source

		logger, flushLogs = logging.New(logging.Options{
			Verbose:    verbose,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		if cfgSource != "" {
			logger.Debug("loaded config", zap.String("path", cfgSource))
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		flushLogs()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "setup", Title: "Setup:"},
		&cobra.Group{ID: "data", Title: "Dataset:"},
		&cobra.Group{ID: "maint", Title: "Maintenance:"},
	)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./yoloprep.toml or ~/.config/yoloprep/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every processed image")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file (rotated)")
}

// skipConfig is true for commands that manage the config file itself.
func skipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == configCmd {
			return true
		}
	}
	return false
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	flushLogs()
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
