package main

import (
	"github.com/spf13/cobra"

	"github.com/sailsonlabs/pulse/internal/api"
	"github.com/sailsonlabs/pulse/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Player-feedback intelligence pipeline",
	Long: `Pulse turns raw player feedback into categorized intelligence reports.

Submit a content URL or an exported feedback file; a background pipeline
scrapes the comments, classifies them in batches with a generative model,
and assembles a category-sorted report you can poll for and export.

The pipeline includes:
  - Remote comment scraping (community posts and competitor profiles)
  - Batched classification with configurable model providers
  - Category-sorted report assembly with CSV/XLSX export
  - Per-owner durable history backed by Postgres`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.pulse/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "pulse home directory (default: ~/.pulse)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
