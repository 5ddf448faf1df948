package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sailsonlabs/pulse/internal/api"
	"github.com/sailsonlabs/pulse/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage pulse configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a default config file with all settings documented.

The config is written to ~/.pulse/config.yaml unless --config points
elsewhere. Existing files are never overwritten.

API keys support ${ENV_VAR} placeholders resolved at load time, so the
default file works as-is with GOOGLE_API_KEY and APIFY_TOKEN exported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			h, err := getHome()
			if err != nil {
				return err
			}
			path = h.ConfigPath()
		}

		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		if mgr.FilePath() != "" {
			fmt.Printf("# %s\n", mgr.FilePath())
		} else {
			fmt.Println("# built-in defaults (no config file found)")
		}
		return api.Output(redacted(mgr.Get()))
	},
}

// redacted copies the config with resolved secrets masked.
func redacted(cfg *config.Config) *config.Config {
	out := *cfg
	out.LLMProviders = make(map[string]config.LLMProviderCfg, len(cfg.LLMProviders))
	for name, p := range cfg.LLMProviders {
		if p.APIKey != "" {
			p.APIKey = "***"
		}
		out.LLMProviders[name] = p
	}
	if out.Scraper.Token != "" {
		out.Scraper.Token = "***"
	}
	if out.Database.DSN != "" {
		out.Database.DSN = "***"
	}
	out.Database.Password = "***"
	return &out
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
