package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mschirtzinger/yoloprep/internal/config"
	"github.com/mschirtzinger/yoloprep/internal/kaggle"
	"github.com/mschirtzinger/yoloprep/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Create or inspect the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Long: `Write a TOML config file (./yoloprep.toml unless --config is given).

When run in a terminal, a short form asks for the dataset slug, directories
and class names. Use --yes to accept the defaults without prompting.`,
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")
		force, _ := cmd.Flags().GetBool("force")

		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if _, err := os.Stat(path); err == nil && !force {
			fatal("%s already exists (use --force to overwrite)", path)
		}

		c := config.Default()
		if !yes && ui.IsInteractive() {
			if err := promptConfig(c); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					fmt.Println("Aborted.")
					return
				}
				fatal("%v", err)
			}
		}
		if err := c.Validate(); err != nil {
			fatal("%v", err)
		}

		if err := config.Save(path, c); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		c, source, err := config.Load(configPath)
		if err != nil {
			fatal("%v", err)
		}
		if source == "" {
			source = "built-in defaults"
		}
		fmt.Printf("# source: %s\n", source)
		if err := config.Encode(os.Stdout, c); err != nil {
			fatal("%v", err)
		}
	},
}

func promptConfig(c *config.Config) error {
	names := strings.Join(c.Classes.Names, ",")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Kaggle dataset").
				Description("owner/name").
				Value(&c.Dataset.Slug).
				Validate(func(s string) error {
					_, err := kaggle.ParseSlug(s)
					return err
				}),
			huh.NewInput().
				Title("Download directory").
				Value(&c.Dataset.BaseDir),
			huh.NewInput().
				Title("Output directory").
				Value(&c.Output.Dir),
			huh.NewInput().
				Title("Class names").
				Description("comma separated, in class id order").
				Value(&names),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	c.Classes.Names = nil
	for _, n := range strings.Split(names, ",") {
		if n = strings.TrimSpace(n); n != "" {
			c.Classes.Names = append(c.Classes.Names, n)
		}
	}
	return nil
}

func init() {
	configInitCmd.Flags().Bool("yes", false, "Accept defaults without prompting")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
