package endpoints

import (
	"github.com/sailsonlabs/pulse/internal/api"
	"github.com/sailsonlabs/pulse/internal/pgdb"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	PGManager *pgdb.DockerManager
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{PGManager: cfg.PGManager},
		&MetricsEndpoint{},

		// Task endpoints
		&CreateTaskEndpoint{},
		&GetTaskEndpoint{},
		&ListTasksEndpoint{},
		&MonitorEndpoint{},

		// Result endpoints
		&ListResultsEndpoint{},
		&GetResultEndpoint{},
		&ExportEndpoint{},

		// Usage endpoints
		&UsageSummaryEndpoint{},
	}
}

// TaskCommands returns endpoints whose commands group under "tasks".
func TaskCommands() []api.Endpoint {
	return []api.Endpoint{
		&CreateTaskEndpoint{},
		&GetTaskEndpoint{},
		&ListTasksEndpoint{},
	}
}

// ResultCommands returns endpoints whose commands group under "results".
func ResultCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListResultsEndpoint{},
		&GetResultEndpoint{},
		&ExportEndpoint{},
	}
}
