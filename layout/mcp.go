package layout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/scrollsync/pinned"
	"github.com/hazyhaar/scrollsync/trigger"
)

// RegisterMCP registers coordinator debugging tools on an MCP server, so
// an agent can inspect a live page session: list triggers and regions,
// read the viewport metric, and request a recomputation pass.
func (c *Coordinator) RegisterMCP(srv *mcp.Server) {
	c.registerStatusTool(srv)
	c.registerTriggersTool(srv)
	c.registerRegionsTool(srv)
	c.registerRecomputeTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
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

// addTool wires a typed handler into the MCP server: decode errors and
// handler errors surface as tool errors, results are JSON text content.
func addTool(srv *mcp.Server, tool *mcp.Tool, handler func(ctx context.Context, args json.RawMessage) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := handler(ctx, req.Params.Arguments)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func (c *Coordinator) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scrollsync_status",
		Description: "Current viewport snapshot and component counters of the coordinator.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	addTool(srv, tool, func(_ context.Context, _ json.RawMessage) (any, error) {
		return map[string]any{
			"page":     c.cfg.Page.ID,
			"viewport": c.Viewport(),
			"stats":    c.Stats(),
		}, nil
	})
}

func (c *Coordinator) registerTriggersTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scrollsync_triggers",
		Description: "List registered scroll triggers with their geometry and state.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Optional: inspect a single trigger"},
		}, nil),
	}
	addTool(srv, tool, func(_ context.Context, args json.RawMessage) (any, error) {
		var req struct {
			ID string `json:"id"`
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &req); err != nil {
				return nil, fmt.Errorf("scrollsync_triggers: unmarshal: %w", err)
			}
		}
		if req.ID != "" {
			in, ok := c.triggers.Inspect(req.ID)
			if !ok {
				return nil, fmt.Errorf("scrollsync_triggers: unknown trigger %q", req.ID)
			}
			return in, nil
		}
		out := []trigger.Info{}
		for in := range c.Triggers() {
			out = append(out, in)
		}
		return out, nil
	})
}

func (c *Coordinator) registerRegionsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scrollsync_regions",
		Description: "List pinned regions with spacer heights and stacking order.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	addTool(srv, tool, func(_ context.Context, _ json.RawMessage) (any, error) {
		out := []pinned.Info{}
		for in := range c.Regions() {
			out = append(out, in)
		}
		return out, nil
	})
}

func (c *Coordinator) registerRecomputeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scrollsync_recompute",
		Description: "Request a trigger-geometry recomputation pass (after a DOM mutation).",
		InputSchema: inputSchema(map[string]any{
			"reason": map[string]any{"type": "string", "description": "Reason logged with the pass"},
		}, nil),
	}
	addTool(srv, tool, func(_ context.Context, args json.RawMessage) (any, error) {
		var req struct {
			Reason string `json:"reason"`
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &req); err != nil {
				return nil, fmt.Errorf("scrollsync_recompute: unmarshal: %w", err)
			}
		}
		if req.Reason == "" {
			req.Reason = "mcp"
		}
		c.RequestRecompute(req.Reason)
		return map[string]string{"status": "queued", "reason": req.Reason}, nil
	})
}
