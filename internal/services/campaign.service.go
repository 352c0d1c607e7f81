package services

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/azrulhaziq/campaign-gateway/internal/template"
	"github.com/pkg/errors"
)

var ErrEmptyTemplate = errors.New("template body is empty")

type CampaignRepository interface {
	Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	UpdateTemplate(ctx context.Context, id int64, body string, vars []string) error
}

type CampaignRecipientRepository interface {
	Metrics(ctx context.Context, campaignID int64) (*model.CampaignMetrics, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]*model.Recipient, error)
}

// CampaignService owns campaign-level operations: template authoring,
// progress metrics and the recipient export.
type CampaignService struct {
	campaignRepo  CampaignRepository
	recipientRepo CampaignRecipientRepository
}

func NewCampaignService(campaignRepo CampaignRepository, recipientRepo CampaignRecipientRepository) *CampaignService {
	return &CampaignService{campaignRepo: campaignRepo, recipientRepo: recipientRepo}
}

func (s *CampaignService) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	return s.campaignRepo.Create(ctx, c)
}

func (s *CampaignService) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	return s.campaignRepo.GetByID(ctx, id)
}

// SaveTemplate stores the body and its extracted placeholder names.
// Variables are derived here, never accepted from the caller, so the
// stored list always matches the body.
func (s *CampaignService) SaveTemplate(ctx context.Context, campaignID int64, body string) (*model.Campaign, error) {
	if body == "" {
		return nil, ErrEmptyTemplate
	}
	vars := template.ExtractVariables(body)
	if err := s.campaignRepo.UpdateTemplate(ctx, campaignID, body, vars); err != nil {
		return nil, err
	}
	return s.campaignRepo.GetByID(ctx, campaignID)
}

func (s *CampaignService) Metrics(ctx context.Context, campaignID int64) (*model.CampaignMetrics, error) {
	if _, err := s.campaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.recipientRepo.Metrics(ctx, campaignID)
}

var exportHeader = []string{
	"id", "phone", "name", "status",
	"scheduled_for", "sent_at", "delivered_at", "read_at", "replied_at", "opt_out_at",
	"error",
}

// ExportCSV streams the campaign's recipients as RFC 4180 CSV.
// Timestamps are RFC 3339 UTC; absent ones are empty cells.
func (s *CampaignService) ExportCSV(ctx context.Context, campaignID int64, w io.Writer) error {
	if _, err := s.campaignRepo.GetByID(ctx, campaignID); err != nil {
		return err
	}
	recipients, err := s.recipientRepo.ListByCampaign(ctx, campaignID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, rec := range recipients {
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Phone,
			rec.Name,
			string(rec.Status),
			formatTime(rec.ScheduledFor),
			formatTime(rec.SentAt),
			formatTime(rec.DeliveredAt),
			formatTime(rec.ReadAt),
			formatTime(rec.RepliedAt),
			formatTime(rec.OptOutAt),
			rec.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
