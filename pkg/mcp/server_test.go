package mcp_test

import (
	"context"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/importsplit/pkg/jsimport"
	"github.com/Sumatoshi-tech/importsplit/pkg/loader"
	"github.com/Sumatoshi-tech/importsplit/pkg/mcp"
	"github.com/Sumatoshi-tech/importsplit/pkg/observability"
	"github.com/Sumatoshi-tech/importsplit/pkg/rewrite"
)

func newServerWith(t *testing.T, deps mcp.ServerDeps) *mcp.Server {
	t.Helper()

	opts := rewrite.DefaultOptions()

	set, err := rewrite.NewSet(jsimport.DialectTypeScript, opts)
	require.NoError(t, err)

	deps.Loader = loader.New(set, opts, loader.Deps{})

	return mcp.NewServer(deps)
}

func newServer(t *testing.T) *mcp.Server {
	t.Helper()

	return newServerWith(t, mcp.ServerDeps{})
}

// connect runs srv over an in-memory transport pair and returns a client
// session that is closed, along with the server, when the test ends.
func connect(t *testing.T, srv *mcp.Server) (context.Context, *mcpsdk.ClientSession) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	clientSide, serverSide := mcpsdk.NewInMemoryTransports()

	served := make(chan error, 1)
	go func() { served <- srv.RunWithTransport(ctx, serverSide) }()

	session, err := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "importsplit-test", Version: "0"}, nil).
		Connect(ctx, clientSide, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-served
	})

	return ctx, session
}

func textOf(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text
}

func TestServer_ListToolNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{mcp.ToolNameDiff, mcp.ToolNameRewrite}, newServer(t).ListToolNames())
}

func TestServer_InMemoryTransport_ToolsList(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, newServer(t))

	toolsResult, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	names := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		names = append(names, tool.Name)
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}

	assert.ElementsMatch(t, []string{"rewrite_imports", "diff_imports"}, names)
}

func TestServer_InMemoryTransport_CallRewrite(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, newServer(t))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameRewrite,
		Arguments: map[string]any{"source": "import { map, filter as f } from 'lodash';\n"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))

	text := textOf(t, result)
	assert.Contains(t, text, `import map = require('lodash/map');`)
	assert.Contains(t, text, `import f = require('lodash/filter');`)
	assert.Contains(t, text, `"changed": true`)
}

func TestServer_InMemoryTransport_CallDiff(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, newServer(t))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: mcp.ToolNameDiff,
		Arguments: map[string]any{
			"source":   "import { map } from 'lodash';\n",
			"filename": "src/app.ts",
		},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))

	text := textOf(t, result)
	assert.Contains(t, text, "--- a/src/app.ts")
	assert.Contains(t, text, "+import map = require('lodash/map');")
}

func TestServer_InMemoryTransport_InvalidDialect(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, newServer(t))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameRewrite,
		Arguments: map[string]any{"source": "import {a} from 'lodash';", "dialect": "flow"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "unknown dialect")
}

func TestServer_TracesAndMeasuresToolCalls(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx, session := connect(t, newServerWith(t, mcp.ServerDeps{Tracer: tp.Tracer("test"), Metrics: red}))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameRewrite,
		Arguments: map[string]any{"source": "import { map } from 'lodash';"},
	})
	require.NoError(t, err)
	require.Len(t, result.Content, 2)

	last, ok := result.Content[1].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, last.Text, "trace_id=")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "mcp.rewrite_imports", spans[0].Name)
	assert.Equal(t, last.Text, "trace_id="+spans[0].SpanContext.TraceID().String())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var requests int64

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, isSum := m.Data.(metricdata.Sum[int64]); isSum && m.Name == "importsplit.requests.total" {
				for _, dp := range sum.DataPoints {
					requests += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(1), requests)
}
