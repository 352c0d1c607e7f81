package repository

import (
	"context"
	"errors"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/azrulhaziq/campaign-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrRecipientNotFound is returned when a recipient does not exist.
	ErrRecipientNotFound = errors.New("recipient not found")
)

type RecipientRepository struct {
	*pg.DB
}

func NewRecipientRepository(db *pg.DB) *RecipientRepository {
	return &RecipientRepository{db}
}

func (r *RecipientRepository) Create(ctx context.Context, rec *model.Recipient) (*model.Recipient, error) {
	entity := toRecipientEntity(rec)
	if entity.Status == "" {
		entity.Status = string(model.RecipientStatusPending)
	}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toRecipientModel(entity), nil
}

func (r *RecipientRepository) GetByID(ctx context.Context, id int64) (*model.Recipient, error) {
	var entity RecipientEntity
	err := r.Read(ctx).Where("deleted_at IS NULL").First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	return toRecipientModel(&entity), nil
}

// ExistingPhones reports which of the given normalized phones already
// have a recipient in the campaign. One query per import batch.
func (r *RecipientRepository) ExistingPhones(ctx context.Context, campaignID int64, phones []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(phones) == 0 {
		return existing, nil
	}
	var rows []string
	err := r.Read(ctx).Model(&RecipientEntity{}).
		Where("campaign_id = ? AND phone IN ? AND deleted_at IS NULL", campaignID, phones).
		Pluck("phone", &rows).Error
	if err != nil {
		return nil, err
	}
	for _, p := range rows {
		existing[p] = struct{}{}
	}
	return existing, nil
}

// FindDue returns up to limit scheduled recipients whose send instant
// has passed, oldest first, with their campaign preloaded.
func (r *RecipientRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.Recipient, map[int64]*model.Campaign, error) {
	if limit <= 0 {
		limit = 25
	}
	var entities []*RecipientEntity
	err := r.Read(ctx).
		Where("status = ? AND scheduled_for <= ? AND deleted_at IS NULL", string(model.RecipientStatusScheduled), now).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, nil, err
	}

	recipients := toRecipientModels(entities)

	campaigns := make(map[int64]*model.Campaign)
	ids := make([]int64, 0, len(recipients))
	for _, rec := range recipients {
		if _, ok := campaigns[rec.CampaignID]; !ok {
			campaigns[rec.CampaignID] = nil
			ids = append(ids, rec.CampaignID)
		}
	}
	if len(ids) > 0 {
		var campaignEntities []*CampaignEntity
		if err := r.Read(ctx).Where("id IN ?", ids).Find(&campaignEntities).Error; err != nil {
			return nil, nil, err
		}
		for _, ce := range campaignEntities {
			campaigns[ce.ID] = toCampaignModel(ce)
		}
	}

	return recipients, campaigns, nil
}

// FindActiveByPhones returns every PENDING/SCHEDULED recipient across
// all campaigns matching any of the given phone forms. Used by
// opt-out propagation.
func (r *RecipientRepository) FindActiveByPhones(ctx context.Context, phones []string, excludeID int64) ([]*model.Recipient, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	var entities []*RecipientEntity
	err := r.Read(ctx).
		Where("phone IN ? AND status IN ? AND id <> ? AND deleted_at IS NULL",
			phones,
			[]string{string(model.RecipientStatusPending), string(model.RecipientStatusScheduled)},
			excludeID).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toRecipientModels(entities), nil
}

// Update persists status, delivery timestamps and the error column.
func (r *RecipientRepository) Update(ctx context.Context, rec *model.Recipient) error {
	res := r.Write(ctx).Model(&RecipientEntity{}).Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"status":       string(rec.Status),
			"sent_at":      rec.SentAt,
			"delivered_at": rec.DeliveredAt,
			"read_at":      rec.ReadAt,
			"replied_at":   rec.RepliedAt,
			"opt_out_at":   rec.OptOutAt,
			"error":        rec.Error,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecipientNotFound
	}
	return nil
}

// CountRemaining counts PENDING/SCHEDULED recipients of a campaign.
// Zero means the campaign can complete.
func (r *RecipientRepository) CountRemaining(ctx context.Context, campaignID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).Model(&RecipientEntity{}).
		Where("campaign_id = ? AND status IN ? AND deleted_at IS NULL",
			campaignID,
			[]string{string(model.RecipientStatusPending), string(model.RecipientStatusScheduled)}).
		Count(&count).Error
	return count, err
}

func (r *RecipientRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.Recipient, error) {
	var entities []*RecipientEntity
	err := r.Read(ctx).
		Where("campaign_id = ? AND deleted_at IS NULL", campaignID).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toRecipientModels(entities), nil
}

// AppendEvent writes one audit-trail record. Events are never
// updated or deleted.
func (r *RecipientRepository) AppendEvent(ctx context.Context, ev *model.RecipientEvent) (*model.RecipientEvent, error) {
	entity := toRecipientEventEntity(ev)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toRecipientEventModel(entity), nil
}

func (r *RecipientRepository) ListEvents(ctx context.Context, recipientID int64) ([]*model.RecipientEvent, error) {
	var entities []*RecipientEventEntity
	err := r.Read(ctx).
		Where("recipient_id = ?", recipientID).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	events := make([]*model.RecipientEvent, len(entities))
	for i, e := range entities {
		events[i] = toRecipientEventModel(e)
	}
	return events, nil
}

// Metrics aggregates a campaign's recipients by status in one query.
func (r *RecipientRepository) Metrics(ctx context.Context, campaignID int64) (*model.CampaignMetrics, error) {
	m := &model.CampaignMetrics{CampaignID: campaignID}
	err := r.Read(ctx).Model(&RecipientEntity{}).
		Select(`
			COUNT(*) AS total,
			SUM(CASE WHEN status = 'scheduled' THEN 1 ELSE 0 END) AS scheduled,
			SUM(CASE WHEN sent_at IS NOT NULL THEN 1 ELSE 0 END) AS sent,
			SUM(CASE WHEN delivered_at IS NOT NULL THEN 1 ELSE 0 END) AS delivered,
			SUM(CASE WHEN read_at IS NOT NULL THEN 1 ELSE 0 END) AS read,
			SUM(CASE WHEN replied_at IS NOT NULL THEN 1 ELSE 0 END) AS replied,
			SUM(CASE WHEN status = 'opted_out' THEN 1 ELSE 0 END) AS opted_out,
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failed
		`).
		Where("campaign_id = ? AND deleted_at IS NULL", campaignID).
		Scan(m).Error
	if err != nil {
		return nil, err
	}
	return m, nil
}
