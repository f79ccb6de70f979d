package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/vinodismyname/mcpsales/pkg/mcperr"
)

// Middleware gates every tool call on a request slot and bounds its runtime.
type Middleware struct {
	ctrl   *Controller
	logger zerolog.Logger
}

// NewMiddleware binds the middleware to ctrl. Busy and timed-out calls are
// logged at warn level.
func NewMiddleware(ctrl *Controller, logger zerolog.Logger) *Middleware {
	return &Middleware{ctrl: ctrl, logger: logger}
}

// ToolMiddleware satisfies server.ToolHandlerMiddleware.
func (m *Middleware) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tool := req.Params.Name
		if err := m.acquire(ctx); err != nil {
			m.logger.Warn().Str("tool", tool).Int("max", m.ctrl.limits.MaxConcurrentRequests).Msg("tool call rejected: server busy")
			return mcperr.Wrapf(mcperr.BusyResource, "%d tool calls already running; retry shortly", m.ctrl.limits.MaxConcurrentRequests), nil
		}
		defer m.ctrl.ReleaseRequest()

		callCtx, cancel := withOptionalTimeout(ctx, m.ctrl.limits.OperationTimeout)
		defer cancel()

		res, err := next(callCtx, req)
		if timedOut(callCtx, res, err) {
			m.logger.Warn().Str("tool", tool).Dur("timeout", m.ctrl.limits.OperationTimeout).Msg("tool call timed out")
			return mcperr.Wrapf(mcperr.Timeout, "%s exceeded %s", tool, m.ctrl.limits.OperationTimeout), nil
		}
		return res, err
	}
}

func (m *Middleware) acquire(ctx context.Context) error {
	waitCtx, cancel := withOptionalTimeout(ctx, m.ctrl.limits.AcquireRequestTimeout)
	defer cancel()
	return m.ctrl.AcquireRequest(waitCtx)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// timedOut is true for handlers that surface the deadline as an error and for
// handlers that gave up silently after it passed.
func timedOut(ctx context.Context, res *mcp.CallToolResult, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return err == nil && res == nil && errors.Is(ctx.Err(), context.DeadlineExceeded)
}
