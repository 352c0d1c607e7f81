package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/azrulhaziq/campaign-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrCampaignNotFound is returned when a campaign does not exist.
	ErrCampaignNotFound = errors.New("campaign not found")
)

type CampaignRepository struct {
	*pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{db}
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	entity := toCampaignEntity(c)
	if entity.Status == "" {
		entity.Status = string(model.CampaignStatusDraft)
	}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toCampaignModel(entity), nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	var entity CampaignEntity
	if err := r.Read(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return toCampaignModel(&entity), nil
}

// UpdateTemplate stores a campaign's message body together with its
// extracted variable contract.
func (r *CampaignRepository) UpdateTemplate(ctx context.Context, id int64, template string, vars []string) error {
	encoded := ""
	if len(vars) > 0 {
		b, err := json.Marshal(vars)
		if err != nil {
			return err
		}
		encoded = string(b)
	}
	res := r.Write(ctx).Model(&CampaignEntity{}).Where("id = ?", id).
		Updates(map[string]interface{}{"template": template, "template_vars": encoded})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// MarkRunning records the first dispatch for a campaign. A no-op when
// started_at is already set, so concurrent ticks cannot move it.
func (r *CampaignRepository) MarkRunning(ctx context.Context, id int64, startedAt time.Time) error {
	return r.Write(ctx).Model(&CampaignEntity{}).
		Where("id = ? AND started_at IS NULL", id).
		Updates(map[string]interface{}{
			"status":     string(model.CampaignStatusRunning),
			"started_at": startedAt,
		}).Error
}

func (r *CampaignRepository) MarkCompleted(ctx context.Context, id int64, completedAt time.Time) error {
	return r.Write(ctx).Model(&CampaignEntity{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"status":       string(model.CampaignStatusCompleted),
			"completed_at": completedAt,
		}).Error
}
