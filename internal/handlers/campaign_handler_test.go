package handlers

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/azrulhaziq/campaign-gateway/internal/receipts"
	"github.com/azrulhaziq/campaign-gateway/internal/repository"
	xhttp "github.com/azrulhaziq/campaign-gateway/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockCampaignService struct {
	mock.Mock
}

func (m *MockCampaignService) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) SaveTemplate(ctx context.Context, campaignID int64, body string) (*model.Campaign, error) {
	args := m.Called(ctx, campaignID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) Metrics(ctx context.Context, campaignID int64) (*model.CampaignMetrics, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CampaignMetrics), args.Error(1)
}

func (m *MockCampaignService) ExportCSV(ctx context.Context, campaignID int64, w io.Writer) error {
	args := m.Called(ctx, campaignID, w)
	if args.Error(0) == nil {
		_, _ = w.Write([]byte("id,phone\n1,+60123456789\n"))
	}
	return args.Error(0)
}

type MockSegmentService struct {
	mock.Mock
}

func (m *MockSegmentService) Upsert(ctx context.Context, req model.SegmentUpsertRequest) (*model.Segment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Segment), args.Error(1)
}

func (m *MockSegmentService) Get(ctx context.Context, campaignID int64, key string) (*model.Segment, error) {
	args := m.Called(ctx, campaignID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Segment), args.Error(1)
}

type MockImportService struct {
	mock.Mock
}

func (m *MockImportService) Import(ctx context.Context, campaign *model.Campaign, segment *model.Segment, inputs []model.RecipientInput) (*model.ImportSummary, error) {
	args := m.Called(ctx, campaign, segment, inputs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImportSummary), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, r receipts.Receipt) (string, error) {
	args := m.Called(ctx, r)
	return args.String(0), args.Error(1)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestCampaignHandler_CreateCampaign(t *testing.T) {
	t.Run("successful creation", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc, new(MockSegmentService), new(MockImportService))

		scheduledAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
		svc.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Campaign) bool {
			return c.Name == "march promo" && c.Status == model.CampaignStatusScheduled
		})).Return(&model.Campaign{ID: 1, Name: "march promo", Status: model.CampaignStatusScheduled, ScheduledAt: &scheduledAt}, nil)

		body, _ := json.Marshal(createCampaignRequest{Name: "march promo", ScheduledAt: &scheduledAt})
		ctx := setupTestContext("POST", "/campaigns", body)
		handler.CreateCampaign(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.Campaign
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, int64(1), response.ID)
		svc.AssertExpectations(t)
	})

	t.Run("missing name", func(t *testing.T) {
		handler := NewCampaignHandler(new(MockCampaignService), new(MockSegmentService), new(MockImportService))

		ctx := setupTestContext("POST", "/campaigns", []byte(`{}`))
		handler.CreateCampaign(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("invalid JSON", func(t *testing.T) {
		handler := NewCampaignHandler(new(MockCampaignService), new(MockSegmentService), new(MockImportService))

		ctx := setupTestContext("POST", "/campaigns", []byte("nope"))
		handler.CreateCampaign(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestCampaignHandler_SaveTemplate(t *testing.T) {
	svc := new(MockCampaignService)
	handler := NewCampaignHandler(svc, new(MockSegmentService), new(MockImportService))

	svc.On("SaveTemplate", mock.Anything, int64(1), "Hi {{nama}}").
		Return(&model.Campaign{ID: 1, Template: "Hi {{nama}}", TemplateVars: []string{"nama"}}, nil)

	body, _ := json.Marshal(saveTemplateRequest{Template: "Hi {{nama}}"})
	ctx := setupTestContext("PUT", "/campaigns/1/template", body)
	ctx.SetUserValue("id", "1")
	handler.SaveTemplate(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response model.Campaign
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, []string{"nama"}, response.TemplateVars)
	svc.AssertExpectations(t)
}

func TestCampaignHandler_UpsertSegment(t *testing.T) {
	t.Run("successful upsert", func(t *testing.T) {
		segments := new(MockSegmentService)
		handler := NewCampaignHandler(new(MockCampaignService), segments, new(MockImportService))

		segments.On("Upsert", mock.Anything, mock.MatchedBy(func(req model.SegmentUpsertRequest) bool {
			return req.CampaignID == 1 && req.Key == "kl-shops" && req.ThrottlePerMinute == 10
		})).Return(&model.Segment{ID: 7, CampaignID: 1, Key: "kl-shops"}, nil)

		body, _ := json.Marshal(upsertSegmentRequest{Key: "kl-shops", Timezone: "Asia/Kuala_Lumpur", ThrottlePerMinute: 10})
		ctx := setupTestContext("POST", "/campaigns/1/segments", body)
		ctx.SetUserValue("id", "1")
		handler.UpsertSegment(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		segments.AssertExpectations(t)
	})

	t.Run("campaign not found", func(t *testing.T) {
		segments := new(MockSegmentService)
		handler := NewCampaignHandler(new(MockCampaignService), segments, new(MockImportService))

		segments.On("Upsert", mock.Anything, mock.Anything).Return(nil, repository.ErrCampaignNotFound)

		body, _ := json.Marshal(upsertSegmentRequest{Key: "kl", ThrottlePerMinute: 10})
		ctx := setupTestContext("POST", "/campaigns/404/segments", body)
		ctx.SetUserValue("id", "404")
		handler.UpsertSegment(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestCampaignHandler_ImportRecipients(t *testing.T) {
	t.Run("successful import", func(t *testing.T) {
		campaigns := new(MockCampaignService)
		segments := new(MockSegmentService)
		importer := new(MockImportService)
		handler := NewCampaignHandler(campaigns, segments, importer)

		campaign := &model.Campaign{ID: 1, Name: "promo"}
		segment := &model.Segment{ID: 7, CampaignID: 1, Key: "kl"}
		campaigns.On("Get", mock.Anything, int64(1)).Return(campaign, nil)
		segments.On("Get", mock.Anything, int64(1), "kl").Return(segment, nil)
		importer.On("Import", mock.Anything, campaign, segment, mock.Anything).
			Return(&model.ImportSummary{Inserted: 2}, nil)

		body, _ := json.Marshal(importRequest{
			SegmentKey: "kl",
			Recipients: []model.RecipientInput{
				{Phone: "+60123456789", Name: "Ali"},
				{Phone: "+60199999999", Name: "Siti"},
			},
		})
		ctx := setupTestContext("POST", "/campaigns/1/recipients/import", body)
		ctx.SetUserValue("id", "1")
		handler.ImportRecipients(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var summary model.ImportSummary
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &summary))
		assert.Equal(t, 2, summary.Inserted)
	})

	t.Run("missing segment key", func(t *testing.T) {
		handler := NewCampaignHandler(new(MockCampaignService), new(MockSegmentService), new(MockImportService))

		body, _ := json.Marshal(importRequest{Recipients: []model.RecipientInput{{Phone: "+60123456789"}}})
		ctx := setupTestContext("POST", "/campaigns/1/recipients/import", body)
		ctx.SetUserValue("id", "1")
		handler.ImportRecipients(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("unknown segment", func(t *testing.T) {
		campaigns := new(MockCampaignService)
		segments := new(MockSegmentService)
		handler := NewCampaignHandler(campaigns, segments, new(MockImportService))

		campaigns.On("Get", mock.Anything, int64(1)).Return(&model.Campaign{ID: 1}, nil)
		segments.On("Get", mock.Anything, int64(1), "nope").Return(nil, repository.ErrSegmentNotFound)

		body, _ := json.Marshal(importRequest{SegmentKey: "nope", Recipients: []model.RecipientInput{{Phone: "+60123456789"}}})
		ctx := setupTestContext("POST", "/campaigns/1/recipients/import", body)
		ctx.SetUserValue("id", "1")
		handler.ImportRecipients(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestCampaignHandler_GetMetrics(t *testing.T) {
	svc := new(MockCampaignService)
	handler := NewCampaignHandler(svc, new(MockSegmentService), new(MockImportService))

	svc.On("Metrics", mock.Anything, int64(1)).
		Return(&model.CampaignMetrics{CampaignID: 1, Total: 10, Sent: 7, Failed: 1}, nil)

	ctx := setupTestContext("GET", "/campaigns/1/metrics", nil)
	ctx.SetUserValue("id", "1")
	handler.GetMetrics(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var metrics model.CampaignMetrics
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &metrics))
	assert.Equal(t, int64(7), metrics.Sent)
}

func TestCampaignHandler_ExportRecipients(t *testing.T) {
	svc := new(MockCampaignService)
	handler := NewCampaignHandler(svc, new(MockSegmentService), new(MockImportService))

	svc.On("ExportCSV", mock.Anything, int64(1), mock.Anything).Return(nil)

	ctx := setupTestContext("GET", "/campaigns/1/recipients/export", nil)
	ctx.SetUserValue("id", "1")
	handler.ExportRecipients(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Header.Peek("Content-Type")), "text/csv")
	assert.Contains(t, string(ctx.Response.Header.Peek("Content-Disposition")), "campaign-1-recipients.csv")
	assert.Contains(t, string(ctx.Response.Body()), "+60123456789")
}

func TestWebhookHandler_ReceiveStatus(t *testing.T) {
	t.Run("queues receipt", func(t *testing.T) {
		publisher := new(MockPublisher)
		handler := NewWebhookHandler(publisher)

		publisher.On("Publish", mock.Anything, mock.MatchedBy(func(r receipts.Receipt) bool {
			return r.RecipientID == 42 && r.Type == model.EventDelivered
		})).Return("1-0", nil)

		ctx := setupTestContext("POST", "/webhooks/status", []byte(`{"recipient_id":42,"type":"delivered"}`))
		handler.ReceiveStatus(ctx)

		assert.Equal(t, 202, ctx.Response.StatusCode())
		publisher.AssertExpectations(t)
	})

	t.Run("invalid receipt", func(t *testing.T) {
		publisher := new(MockPublisher)
		handler := NewWebhookHandler(publisher)

		publisher.On("Publish", mock.Anything, mock.Anything).Return("", receipts.Receipt{}.Validate())

		ctx := setupTestContext("POST", "/webhooks/status", []byte(`{"type":"delivered"}`))
		handler.ReceiveStatus(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestDispatchHandler_Run(t *testing.T) {
	runner := new(MockDispatchRunner)
	handler := NewDispatchHandler(runner, 25)

	runner.On("ProcessDue", mock.Anything, 25).Return(3, nil)

	ctx := setupTestContext("POST", "/dispatch/run", nil)
	handler.Run(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response map[string]int
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, 3, response["processed"])
}

type MockDispatchRunner struct {
	mock.Mock
}

func (m *MockDispatchRunner) ProcessDue(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}
