package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type campaignRepoMock struct {
	mock.Mock
}

func (m *campaignRepoMock) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *campaignRepoMock) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *campaignRepoMock) UpdateTemplate(ctx context.Context, id int64, body string, vars []string) error {
	args := m.Called(ctx, id, body, vars)
	return args.Error(0)
}

type campaignRecipientRepoMock struct {
	mock.Mock
}

func (m *campaignRecipientRepoMock) Metrics(ctx context.Context, campaignID int64) (*model.CampaignMetrics, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CampaignMetrics), args.Error(1)
}

func (m *campaignRecipientRepoMock) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.Recipient, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).([]*model.Recipient), args.Error(1)
}

func TestCampaignService_SaveTemplateExtractsVariables(t *testing.T) {
	campaigns := &campaignRepoMock{}
	campaigns.On("UpdateTemplate", mock.Anything, int64(1),
		"Hi {{nama}}, your {{item}} is ready. See you, {{nama}}!",
		[]string{"nama", "item"}).Return(nil)
	campaigns.On("GetByID", mock.Anything, int64(1)).Return(&model.Campaign{ID: 1}, nil)

	svc := NewCampaignService(campaigns, &campaignRecipientRepoMock{})

	_, err := svc.SaveTemplate(context.Background(), 1, "Hi {{nama}}, your {{item}} is ready. See you, {{nama}}!")
	require.NoError(t, err)
	campaigns.AssertExpectations(t)
}

func TestCampaignService_SaveTemplateEmpty(t *testing.T) {
	svc := NewCampaignService(&campaignRepoMock{}, &campaignRecipientRepoMock{})
	_, err := svc.SaveTemplate(context.Background(), 1, "")
	assert.ErrorIs(t, err, ErrEmptyTemplate)
}

func TestCampaignService_ExportCSV(t *testing.T) {
	campaigns := &campaignRepoMock{}
	campaigns.On("GetByID", mock.Anything, int64(1)).Return(&model.Campaign{ID: 1}, nil)

	sent := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	recipients := &campaignRecipientRepoMock{}
	recipients.On("ListByCampaign", mock.Anything, int64(1)).Return([]*model.Recipient{
		{ID: 1, Phone: "+60123456789", Name: "O'Brien, Jr", Status: model.RecipientStatusSent, SentAt: &sent},
		{ID: 2, Phone: "+60199999999", Name: "Siti", Status: model.RecipientStatusFailed, Error: `timeout, "hard"`},
	}, nil)

	svc := NewCampaignService(campaigns, recipients)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), 1, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,phone,name,status,scheduled_for,sent_at,delivered_at,read_at,replied_at,opt_out_at,error", lines[0])
	// Comma in a name forces quoting.
	assert.Contains(t, lines[1], `"O'Brien, Jr"`)
	assert.Contains(t, lines[1], "2025-03-10T09:00:00Z")
	// Embedded quotes are doubled per RFC 4180.
	assert.Contains(t, lines[2], `"timeout, ""hard"""`)
}

func TestSegmentService_UpsertValidates(t *testing.T) {
	svc := NewSegmentService(&segmentServiceRepoMock{}, &campaignRepoMock{})

	_, err := svc.Upsert(context.Background(), model.SegmentUpsertRequest{CampaignID: 1, Key: "kl", ThrottlePerMinute: 0})
	assert.Error(t, err)

	_, err = svc.Upsert(context.Background(), model.SegmentUpsertRequest{CampaignID: 1, Key: "kl", ThrottlePerMinute: 10, Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}

func TestSegmentService_UpsertPassesThrough(t *testing.T) {
	campaigns := &campaignRepoMock{}
	campaigns.On("GetByID", mock.Anything, int64(1)).Return(&model.Campaign{ID: 1}, nil)

	segments := &segmentServiceRepoMock{}
	segments.On("Upsert", mock.Anything, mock.MatchedBy(func(seg *model.Segment) bool {
		return seg.CampaignID == 1 && seg.Key == "kl" && seg.ThrottlePerMinute == 10
	})).Return(&model.Segment{ID: 7, CampaignID: 1, Key: "kl", ThrottlePerMinute: 10}, nil)

	svc := NewSegmentService(segments, campaigns)

	seg, err := svc.Upsert(context.Background(), model.SegmentUpsertRequest{
		CampaignID:        1,
		Key:               "kl",
		Timezone:          "Asia/Kuala_Lumpur",
		ThrottlePerMinute: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), seg.ID)
	segments.AssertExpectations(t)
}

type segmentServiceRepoMock struct {
	mock.Mock
}

func (m *segmentServiceRepoMock) Upsert(ctx context.Context, seg *model.Segment) (*model.Segment, error) {
	args := m.Called(ctx, seg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Segment), args.Error(1)
}

func (m *segmentServiceRepoMock) GetByCampaignAndKey(ctx context.Context, campaignID int64, key string) (*model.Segment, error) {
	args := m.Called(ctx, campaignID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Segment), args.Error(1)
}
