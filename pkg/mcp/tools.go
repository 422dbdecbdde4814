package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/importsplit/pkg/loader"
	"github.com/Sumatoshi-tech/importsplit/pkg/rewrite"
)

// Tool names.
const (
	ToolNameRewrite = "rewrite_imports"
	ToolNameDiff    = "diff_imports"
)

const defaultDiffName = "input.ts"

// RewriteInput is the input schema of both tools.
type RewriteInput struct {
	Source   string   `json:"source"             jsonschema:"TypeScript or JavaScript module source"`
	Dialect  string   `json:"dialect,omitempty"  jsonschema:"typescript, tsx, javascript or auto (default: server setting)"`
	Filename string   `json:"filename,omitempty" jsonschema:"file name used for auto dialect detection and diff headers"`
	Targets  []string `json:"targets,omitempty"  jsonschema:"package names to split (default: lodash)"`
}

// RewriteOutput is the structured output of rewrite_imports.
type RewriteOutput struct {
	Output  string               `json:"output"`
	Dialect string               `json:"dialect"`
	Edits   []loader.EditSummary `json:"edits,omitempty"`
	Changed bool                 `json:"changed"`
}

// DiffOutput is the structured output of diff_imports.
type DiffOutput struct {
	Diff    string `json:"diff"`
	Changed bool   `json:"changed"`
}

func (s *Server) handleRewrite(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input RewriteInput,
) (*mcpsdk.CallToolResult, RewriteOutput, error) {
	resp, err := s.loader.Handle(ctx, toRequest(input))
	if err != nil {
		return errorResult[RewriteOutput](err)
	}

	return jsonResult(RewriteOutput{
		Output:  resp.Output,
		Dialect: resp.Dialect,
		Edits:   resp.Edits,
		Changed: resp.Changed,
	})
}

func (s *Server) handleDiff(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input RewriteInput,
) (*mcpsdk.CallToolResult, DiffOutput, error) {
	resp, err := s.loader.Handle(ctx, toRequest(input))
	if err != nil {
		return errorResult[DiffOutput](err)
	}

	name := input.Filename
	if strings.TrimSpace(name) == "" {
		name = defaultDiffName
	}

	return jsonResult(DiffOutput{
		Diff:    rewrite.UnifiedDiff(name, input.Source, resp.Output),
		Changed: resp.Changed,
	})
}

func toRequest(input RewriteInput) loader.Request {
	return loader.Request{
		Source:   input.Source,
		Dialect:  input.Dialect,
		Filename: input.Filename,
		Targets:  input.Targets,
	}
}

// errorResult builds a CallToolResult with isError set.
func errorResult[Output any](err error) (*mcpsdk.CallToolResult, Output, error) {
	var zero Output

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, zero, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult[Output any](value Output) (*mcpsdk.CallToolResult, Output, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult[Output](fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, value, nil
}
