// Package observability wires OpenTelemetry tracing and metrics together
// with structured slog logging for every importsplit mode (CLI, MCP, HTTP).
package observability

import (
	"io"
	"log/slog"
	"time"
)

// AppMode identifies how the binary was launched.
type AppMode string

// Launch modes. The mode becomes the app.mode resource attribute and the
// mode field of every log record.
const (
	ModeCLI   AppMode = "cli"
	ModeMCP   AppMode = "mcp"
	ModeServe AppMode = "serve"
)

const (
	defaultServiceName     = "importsplit"
	defaultShutdownTimeout = 5 * time.Second
)

// Config selects exporters, sampling and log output.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Environment is recorded as deployment.environment when set.
	Environment string
	Mode        AppMode

	// OTLPEndpoint is a gRPC collector address such as "localhost:4317".
	// Empty keeps traces in-process (no-op) and metrics local.
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	OTLPInsecure bool

	// Prometheus exposes metrics on Providers.MetricsHandler instead of
	// discarding them. Ignored when OTLPEndpoint is set.
	Prometheus bool

	// DebugTrace samples every trace regardless of other settings.
	DebugTrace bool
	// SampleRatio in (0, 1] samples root traces by ID; zero samples all.
	SampleRatio float64

	LogLevel slog.Level
	LogJSON  bool
	// LogOutput receives log records. Nil means os.Stderr.
	LogOutput io.Writer

	// ShutdownTimeout bounds the flush done by Providers.Shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the zero-export configuration: no-op traces,
// no-op metrics and info-level text logs on stderr.
func DefaultConfig() Config {
	return Config{
		ServiceName:     defaultServiceName,
		Mode:            ModeCLI,
		LogLevel:        slog.LevelInfo,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}
