package handlers

import (
	"context"

	"github.com/fasthttp/router"
	xhttp "github.com/azrulhaziq/campaign-gateway/pkg/http"
)

type DispatchRunner interface {
	ProcessDue(ctx context.Context, limit int) (int, error)
}

// DispatchHandler exposes a manual drain trigger, used by operators
// and integration tests instead of waiting for the next tick.
type DispatchHandler struct {
	runner    DispatchRunner
	batchSize int
}

func NewDispatchHandler(runner DispatchRunner, batchSize int) *DispatchHandler {
	return &DispatchHandler{runner: runner, batchSize: batchSize}
}

func RegisterDispatchRoutes(e *router.Group, h *DispatchHandler) {
	e.POST("/dispatch/run", h.Run)
}

func (h *DispatchHandler) Run(ctx *xhttp.RequestCtx) {
	n, err := h.runner.ProcessDue(ctx, h.batchSize)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]int{"processed": n})
}
