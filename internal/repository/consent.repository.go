package repository

import (
	"context"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/azrulhaziq/campaign-gateway/pkg/pg"
)

type ConsentRepository struct {
	*pg.DB
}

func NewConsentRepository(db *pg.DB) *ConsentRepository {
	return &ConsentRepository{db}
}

func (r *ConsentRepository) Create(ctx context.Context, c *model.Consent) (*model.Consent, error) {
	entity := toConsentEntity(c)
	if entity.Channel == "" {
		entity.Channel = model.ChannelWhatsApp
	}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toConsentModel(entity), nil
}

func (r *ConsentRepository) FindByCustomerIDs(ctx context.Context, channel string, ids []int64) ([]*model.Consent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var entities []*ConsentEntity
	err := r.Read(ctx).
		Where("channel = ? AND customer_id IN ?", channel, ids).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toConsentModels(entities), nil
}

func (r *ConsentRepository) FindByPhones(ctx context.Context, channel string, phones []string) ([]*model.Consent, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	var entities []*ConsentEntity
	err := r.Read(ctx).
		Where("channel = ? AND phone IN ?", channel, phones).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toConsentModels(entities), nil
}

// SetOptOutByPhones flips matching consents to opted-out. opt_in_at
// is cleared, the two are mutually exclusive.
func (r *ConsentRepository) SetOptOutByPhones(ctx context.Context, channel string, phones []string, ts time.Time) error {
	if len(phones) == 0 {
		return nil
	}
	return r.Write(ctx).Model(&ConsentEntity{}).
		Where("channel = ? AND phone IN ?", channel, phones).
		Updates(map[string]interface{}{"opt_out_at": ts, "opt_in_at": nil}).Error
}
