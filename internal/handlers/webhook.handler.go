package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/azrulhaziq/campaign-gateway/internal/receipts"
	xhttp "github.com/azrulhaziq/campaign-gateway/pkg/http"
)

type ReceiptPublisher interface {
	Publish(ctx context.Context, r receipts.Receipt) (string, error)
}

// WebhookHandler accepts provider status callbacks and enqueues them.
// The endpoint only validates and publishes; all database work happens
// in the queue consumer.
type WebhookHandler struct {
	publisher ReceiptPublisher
}

func NewWebhookHandler(publisher ReceiptPublisher) *WebhookHandler {
	return &WebhookHandler{publisher: publisher}
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/status", h.ReceiveStatus)
}

func (h *WebhookHandler) ReceiveStatus(ctx *xhttp.RequestCtx) {
	var receipt receipts.Receipt
	if err := readJSON(ctx, &receipt); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	id, err := h.publisher.Publish(ctx, receipt)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusAccepted, map[string]string{"queued": id})
}
