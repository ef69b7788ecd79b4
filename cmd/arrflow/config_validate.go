package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arrflow/arrflow/internal/config"
)

var configValidateCmd = &cobra.Command{
	Use:   "config-validate",
	Short: "Load and validate the config file without starting anything",
	RunE:  runConfigValidateCmd,
}

func init() {
	rootCmd.AddCommand(configValidateCmd)
}

func runConfigValidateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("%s: %w", configPath, err)
	}

	fmt.Printf("%s: valid\n", configPath)
	fmt.Printf("  store:           %s\n", cfg.Store.Path)
	fmt.Printf("  scrapers:        %d configured\n", len(cfg.Scrapers))
	fmt.Printf("  debrid provider: %s\n", debridProviderName(cfg))
	fmt.Printf("  symlink roots:   movies=%q series=%q\n", cfg.Symlink.MovieRoot, cfg.Symlink.SeriesRoot)
	fmt.Printf("  subtitles:       %v\n", cfg.Subtitle.Enabled)
	return nil
}

func debridProviderName(cfg *config.Config) string {
	if cfg.Debrid.RealDebrid != nil {
		return "real_debrid"
	}
	return "none"
}
