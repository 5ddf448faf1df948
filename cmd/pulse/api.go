package main

import (
	"github.com/spf13/cobra"

	"github.com/sailsonlabs/pulse/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Pulse server via HTTP.

These commands require a running server (pulse serve).
Use --server to specify a custom server URL.

Examples:
  pulse api health                    # Check server health
  pulse api tasks submit --url <url>  # Submit an analysis task
  pulse api tasks get <id>            # Poll a task
  pulse api results export <id>       # Download an export file`,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Task submission and polling commands",
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Result history and export commands",
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Usage accounting commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.MetricsEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.MonitorEndpoint{}).Command(getServerURL))

	// Tasks as subcommand group
	for _, ep := range endpoints.TaskCommands() {
		tasksCmd.AddCommand(ep.Command(getServerURL))
	}

	// Results as subcommand group
	for _, ep := range endpoints.ResultCommands() {
		resultsCmd.AddCommand(ep.Command(getServerURL))
	}

	// Usage as subcommand group
	usageCmd.AddCommand((&endpoints.UsageSummaryEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(tasksCmd)
	apiCmd.AddCommand(resultsCmd)
	apiCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(apiCmd)
}
