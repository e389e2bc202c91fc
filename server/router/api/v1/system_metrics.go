package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campfire-chat/campfire/server/internal/observability"
)

// GetSystemMetrics returns a snapshot of relay counters: totals, failures,
// forwarded stream events, and per-agent request counts and latencies.
// GET /api/v1/system/metrics
func (s *APIV1Service) GetSystemMetrics(c echo.Context) error {
	snapshot := observability.GlobalMetrics().Snapshot()
	return c.JSON(http.StatusOK, map[string]any{
		"requestTotal":  snapshot.RequestTotal,
		"requestFailed": snapshot.RequestFailed,
		"streamEvents":  snapshot.StreamEvents,
		"successRate":   snapshot.SuccessRate(),
		"agents":        snapshot.AgentMetrics,
	})
}
