// Package mcp serves the import rewrite to MCP clients over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/importsplit/pkg/loader"
	"github.com/Sumatoshi-tech/importsplit/pkg/observability"
	"github.com/Sumatoshi-tech/importsplit/pkg/version"
)

const (
	implementationName = "importsplit"
	opPrefix           = "mcp."
)

// ServerDeps are the collaborators of a Server. Only Loader is required.
type ServerDeps struct {
	Loader  *loader.Loader
	Logger  *slog.Logger
	Metrics *observability.REDMetrics
	// Tracer adds a span per tool call. Sampled calls get a trailing
	// "trace_id=<id>" text content.
	Tracer trace.Tracer
}

// Server is an MCP server with the rewrite tools registered.
type Server struct {
	sdk     *mcpsdk.Server
	loader  *loader.Loader
	logger  *slog.Logger
	metrics *observability.REDMetrics
	tracer  trace.Tracer
	tools   []string
}

// NewServer registers the tools on a new MCP server.
func NewServer(deps ServerDeps) *Server {
	s := &Server{
		sdk:     mcpsdk.NewServer(&mcpsdk.Implementation{Name: implementationName, Version: version.Version}, nil),
		loader:  deps.Loader,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	addTool(s, ToolNameRewrite, rewriteToolDescription, s.handleRewrite)
	addTool(s, ToolNameDiff, diffToolDescription, s.handleDiff)

	return s
}

// ListToolNames returns the registered tool names in sorted order.
func (s *Server) ListToolNames() []string {
	return slices.Sorted(slices.Values(s.tools))
}

// Run serves on stdio until ctx ends or the client goes away.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves a single session on transport.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.sdk.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func addTool[In, Out any](s *Server, name, description string, handler mcpsdk.ToolHandlerFor[In, Out]) {
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{Name: name, Description: description}, observe(s, name, handler))

	s.tools = append(s.tools, name)
}

// observe wraps handler with the server's span, RED metrics and debug log.
func observe[In, Out any](s *Server, name string, handler mcpsdk.ToolHandlerFor[In, Out]) mcpsdk.ToolHandlerFor[In, Out] {
	op := opPrefix + name

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, Out, error) {
		start := time.Now()

		var span trace.Span
		if s.tracer != nil {
			ctx, span = s.tracer.Start(ctx, op,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attribute.String("mcp.tool", name)),
			)
			defer span.End()
		}

		defer s.metrics.TrackInflight(ctx, op)()

		result, output, err := handler(ctx, req, input)

		failed := err != nil || (result != nil && result.IsError)

		status := observability.StatusOK
		if failed {
			status = observability.StatusError
		}

		s.metrics.RecordRequest(ctx, op, status, time.Since(start))
		s.logger.DebugContext(ctx, "tool call", "tool", name, "status", status, "elapsed", time.Since(start))

		if span != nil {
			if failed {
				span.SetStatus(codes.Error, "tool call failed")
			}

			if sc := span.SpanContext(); sc.IsSampled() && result != nil {
				result.Content = append(result.Content, &mcpsdk.TextContent{Text: "trace_id=" + sc.TraceID().String()})
			}
		}

		return result, output, err
	}
}

const (
	rewriteToolDescription = "Rewrite named imports of lodash (or the given target packages) in TypeScript " +
		"or JavaScript source into one `import x = require('pkg/x');` line per member. " +
		"Returns the transformed source and the rewritten declarations."

	diffToolDescription = "Preview the import rewrite as a unified diff without returning the full source."
)
