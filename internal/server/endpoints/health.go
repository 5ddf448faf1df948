package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sailsonlabs/pulse/internal/api"
	"github.com/sailsonlabs/pulse/internal/pgdb"
	"github.com/sailsonlabs/pulse/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "ok"}

	pool := svcctx.PoolFrom(r.Context())
	if pool == nil {
		// Memory-only mode is still a ready server.
		resp.Database = "memory"
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if err := pool.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes Postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:   %s\n", resp.Status)
			if resp.Database != "" {
				fmt.Printf("Database: %s\n", resp.Database)
			}
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server    string         `json:"server"`
	Providers []string       `json:"providers"`
	Scraper   ScraperStatus  `json:"scraper"`
	Queue     QueueStatus    `json:"queue"`
	Database  DatabaseStatus `json:"database"`
}

// ScraperStatus reports whether scraping is usable without exposing
// the token itself.
type ScraperStatus struct {
	TokenConfigured bool `json:"token_configured"`
}

// QueueStatus shows the worker pool's backlog.
type QueueStatus struct {
	Depth int `json:"depth"`
}

// DatabaseStatus shows Postgres container and connection status.
type DatabaseStatus struct {
	Container string `json:"container"`
	Health    string `json:"health"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct {
	// PGManager is set by the server; not part of Services.
	PGManager *pgdb.DockerManager
}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Server:    "running",
		Providers: []string{},
	}

	registry := svcctx.RegistryFrom(r.Context())
	if registry != nil {
		resp.Providers = registry.ListLLM()
	}

	cfgMgr := svcctx.ConfigFrom(r.Context())
	if cfgMgr != nil {
		token := cfgMgr.Get().Scraper.Token
		resp.Scraper.TokenConfigured = token != "" && token != "${APIFY_TOKEN}"
	}

	runner := svcctx.RunnerFrom(r.Context())
	if runner != nil {
		resp.Queue.Depth = runner.QueueDepth()
	}

	if e.PGManager != nil {
		status, err := e.PGManager.Status(r.Context())
		if err != nil {
			resp.Database.Container = "error"
		} else {
			resp.Database.Container = string(status)
		}
	} else {
		resp.Database.Container = "external"
	}

	pool := svcctx.PoolFrom(r.Context())
	switch {
	case pool == nil:
		resp.Database.Health = "memory"
	case pool.Ping(r.Context()) != nil:
		resp.Database.Health = "unhealthy"
	default:
		resp.Database.Health = "healthy"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			fmt.Printf("Server: %s\n", resp.Server)
			fmt.Printf("Database:\n")
			fmt.Printf("  Container: %s\n", resp.Database.Container)
			fmt.Printf("  Health:    %s\n", resp.Database.Health)
			fmt.Printf("Queue depth: %d\n", resp.Queue.Depth)
			fmt.Printf("Scraper token configured: %v\n", resp.Scraper.TokenConfigured)
			fmt.Printf("Providers: %v\n", resp.Providers)
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// ownerFrom extracts the caller identity. An empty owner is an
// anonymous session.
func ownerFrom(r *http.Request) string {
	return r.Header.Get("X-Owner")
}
