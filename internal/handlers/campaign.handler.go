package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/azrulhaziq/campaign-gateway/internal/repository"
	xhttp "github.com/azrulhaziq/campaign-gateway/pkg/http"
	"github.com/pkg/errors"
)

type CampaignService interface {
	Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	SaveTemplate(ctx context.Context, campaignID int64, body string) (*model.Campaign, error)
	Metrics(ctx context.Context, campaignID int64) (*model.CampaignMetrics, error)
	ExportCSV(ctx context.Context, campaignID int64, w io.Writer) error
}

type SegmentService interface {
	Upsert(ctx context.Context, req model.SegmentUpsertRequest) (*model.Segment, error)
	Get(ctx context.Context, campaignID int64, key string) (*model.Segment, error)
}

type ImportService interface {
	Import(ctx context.Context, campaign *model.Campaign, segment *model.Segment, inputs []model.RecipientInput) (*model.ImportSummary, error)
}

type CampaignHandler struct {
	campaigns CampaignService
	segments  SegmentService
	importer  ImportService
}

func NewCampaignHandler(campaigns CampaignService, segments SegmentService, importer ImportService) *CampaignHandler {
	return &CampaignHandler{
		campaigns: campaigns,
		segments:  segments,
		importer:  importer,
	}
}

func RegisterCampaignRoutes(e *router.Group, h *CampaignHandler) {
	e.POST("/campaigns", h.CreateCampaign)
	e.GET("/campaigns/{id}", h.GetCampaign)
	e.PUT("/campaigns/{id}/template", h.SaveTemplate)
	e.POST("/campaigns/{id}/segments", h.UpsertSegment)
	e.POST("/campaigns/{id}/recipients/import", h.ImportRecipients)
	e.GET("/campaigns/{id}/metrics", h.GetMetrics)
	e.GET("/campaigns/{id}/recipients/export", h.ExportRecipients)
}

type createCampaignRequest struct {
	Name        string     `json:"name"`
	Template    string     `json:"template"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

type saveTemplateRequest struct {
	Template string `json:"template"`
}

type upsertSegmentRequest struct {
	Key               string `json:"key"`
	Name              string `json:"name"`
	Timezone          string `json:"timezone"`
	ThrottlePerMinute int    `json:"throttle_per_minute"`
	JitterSeconds     int    `json:"jitter_seconds"`
	DailyCap          int    `json:"daily_cap"`
	WindowStartHour   *int   `json:"window_start_hour,omitempty"`
	WindowEndHour     *int   `json:"window_end_hour,omitempty"`
}

type importRequest struct {
	SegmentKey string                 `json:"segment_key"`
	Recipients []model.RecipientInput `json:"recipients"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *CampaignHandler) CreateCampaign(ctx *xhttp.RequestCtx) {
	var req createCampaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(ctx, xhttp.StatusBadRequest, "name is required")
		return
	}

	status := model.CampaignStatusDraft
	if req.ScheduledAt != nil {
		status = model.CampaignStatusScheduled
	}
	campaign, err := h.campaigns.Create(ctx, &model.Campaign{
		Name:        req.Name,
		Status:      status,
		Template:    req.Template,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, campaign)
}

func (h *CampaignHandler) GetCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}
	campaign, err := h.campaigns.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, campaign)
}

func (h *CampaignHandler) SaveTemplate(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}
	var req saveTemplateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	campaign, err := h.campaigns.SaveTemplate(ctx, id, req.Template)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, campaign)
}

func (h *CampaignHandler) UpsertSegment(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}
	var req upsertSegmentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	seg, err := h.segments.Upsert(ctx, model.SegmentUpsertRequest{
		CampaignID:        id,
		Key:               req.Key,
		Name:              req.Name,
		Timezone:          req.Timezone,
		ThrottlePerMinute: req.ThrottlePerMinute,
		JitterSeconds:     req.JitterSeconds,
		DailyCap:          req.DailyCap,
		WindowStartHour:   req.WindowStartHour,
		WindowEndHour:     req.WindowEndHour,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, seg)
}

func (h *CampaignHandler) ImportRecipients(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}
	var req importRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.SegmentKey == "" {
		writeError(ctx, xhttp.StatusBadRequest, "segment_key is required")
		return
	}
	if len(req.Recipients) == 0 {
		writeError(ctx, xhttp.StatusBadRequest, "recipients list is empty")
		return
	}

	campaign, err := h.campaigns.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	segment, err := h.segments.Get(ctx, id, req.SegmentKey)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	summary, err := h.importer.Import(ctx, campaign, segment, req.Recipients)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, summary)
}

func (h *CampaignHandler) GetMetrics(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}
	metrics, err := h.campaigns.Metrics(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, metrics)
}

func (h *CampaignHandler) ExportRecipients(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}

	var buf bytes.Buffer
	if err := h.campaigns.ExportCSV(ctx, id, &buf); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.Header.Set("Content-Type", "text/csv; charset=utf-8")
	ctx.Response.Header.Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=campaign-%d-recipients.csv", id))
	ctx.Response.SetStatusCode(xhttp.StatusOK)
	ctx.Response.SetBodyRaw(buf.Bytes())
}

/* -------------------------------- Helpers ----------------------------------- */

func pathID(ctx *xhttp.RequestCtx) (int64, error) {
	raw, _ := ctx.UserValue("id").(string)
	return strconv.ParseInt(raw, 10, 64)
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, repository.ErrCampaignNotFound),
		errors.Is(err, repository.ErrSegmentNotFound),
		errors.Is(err, repository.ErrRecipientNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	default:
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	}
}
