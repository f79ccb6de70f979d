package telemetry

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// BuildHooks logs session lifecycle, tool discovery and tool outcomes. Tool
// calls that end in an error result log at warn level with the dataset they
// targeted, when the arguments name one.
func BuildHooks(logger zerolog.Logger) *server.Hooks {
	var h server.Hooks

	h.AddOnRegisterSession(func(_ context.Context, s server.ClientSession) {
		logger.Info().Str("session_id", s.SessionID()).Msg("client connected")
	})
	h.AddOnUnregisterSession(func(_ context.Context, s server.ClientSession) {
		logger.Info().Str("session_id", s.SessionID()).Msg("client disconnected")
	})

	h.AddAfterListTools(func(_ context.Context, _ any, _ *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		logger.Debug().Int("visible_tools", len(res.Tools)).Msg("tools listed")
	})

	h.AddBeforeCallTool(func(_ context.Context, id any, req *mcp.CallToolRequest) {
		logger.Debug().Interface("request_id", id).Str("tool", req.Params.Name).Msg("tool call started")
	})
	h.AddAfterCallTool(func(_ context.Context, id any, req *mcp.CallToolRequest, res *mcp.CallToolResult) {
		failed := res != nil && res.IsError
		evt := logger.Info()
		if failed {
			evt = logger.Warn()
		}
		if ds := req.GetString("dataset_id", ""); ds != "" {
			evt = evt.Str("dataset_id", ds)
		}
		evt.Interface("request_id", id).Str("tool", req.Params.Name).Bool("is_error", failed).Msg("tool call finished")
	})

	h.AddOnError(func(_ context.Context, id any, method mcp.MCPMethod, _ any, err error) {
		logger.Error().Err(err).Interface("request_id", id).Str("method", string(method)).Msg("request failed")
	})

	return &h
}
