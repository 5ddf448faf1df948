// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sailsonlabs/pulse/internal/config"
	"github.com/sailsonlabs/pulse/internal/providers"
	"github.com/sailsonlabs/pulse/internal/results"
	"github.com/sailsonlabs/pulse/internal/tasks"
	"github.com/sailsonlabs/pulse/internal/usage"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Config    *config.Manager
	Logger    *slog.Logger
	Pool      *pgxpool.Pool // nil when running without Postgres
	TaskStore tasks.Store
	Runner    *tasks.Runner
	Pipeline  *tasks.Pipeline
	Registry  *providers.Registry
	Results   results.Store
	Usage     usage.Store
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// PoolFrom extracts the Postgres pool from context.
func PoolFrom(ctx context.Context) *pgxpool.Pool {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pool
	}
	return nil
}

// TaskStoreFrom extracts the task store from context.
func TaskStoreFrom(ctx context.Context) tasks.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.TaskStore
	}
	return nil
}

// RunnerFrom extracts the task runner from context.
func RunnerFrom(ctx context.Context) *tasks.Runner {
	if s := ServicesFrom(ctx); s != nil {
		return s.Runner
	}
	return nil
}

// PipelineFrom extracts the task pipeline from context.
func PipelineFrom(ctx context.Context) *tasks.Pipeline {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pipeline
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// ResultsFrom extracts the result store from context.
func ResultsFrom(ctx context.Context) results.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Results
	}
	return nil
}

// UsageFrom extracts the usage store from context.
func UsageFrom(ctx context.Context) usage.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Usage
	}
	return nil
}
