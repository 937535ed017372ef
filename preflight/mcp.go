package preflight

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/preflight/kit"
)

// RegisterMCP registers the preflight tools on an MCP server.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	e.registerAnalyzeTool(srv)
	e.registerDetectTool(srv)
	e.registerFamiliesTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- analyze ---

type analyzeReq struct {
	Path string `json:"path"`
}

func (e *Engine) registerAnalyzeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "preflight_analyze",
		Description: "Score a document file for upload quality (images, PDF, CSV, XLSX, FHIR JSON, HL7).",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to analyze"},
		}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*analyzeReq)
		d, err := FileDescriptor(r.Path)
		if err != nil {
			return nil, err
		}
		return e.Analyze(ctx, d), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r analyzeReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- detect ---

type detectReq struct {
	Path string `json:"path"`
}

func (e *Engine) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "preflight_detect",
		Description: "Detect which analyzer family a file routes to, without scoring it.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to classify"},
		}, []string{"path"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*detectReq)
		d, err := FileDescriptor(r.Path)
		if err != nil {
			return nil, err
		}
		return map[string]any{"family": string(e.Detect(d))}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r detectReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- families ---

func (e *Engine) registerFamiliesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "preflight_families",
		Description: "List all document families the preflight engine scores.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"families": Families()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// Families returns every family the engine can route to, in routing order.
func Families() []string {
	return []string{
		string(FamilyDICOM), string(FamilyFHIR), string(FamilyHL7),
		string(FamilyLabCSV), string(FamilyLabSheet), string(FamilyLabPDF),
		string(FamilyModality), string(FamilyLabImage), string(FamilyScan),
		string(FamilyUnknown),
	}
}
