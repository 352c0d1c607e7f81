package repository

import (
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
)

type ConsentEntity struct {
	ID         int64      `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID *int64     `gorm:"column:customer_id;index"`
	Phone      string     `gorm:"column:phone;index"`
	Channel    string     `gorm:"column:channel;not null;default:whatsapp"`
	OptInAt    *time.Time `gorm:"column:opt_in_at"`
	OptOutAt   *time.Time `gorm:"column:opt_out_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (ConsentEntity) TableName() string { return "consents" }

func toConsentEntity(m *model.Consent) *ConsentEntity {
	if m == nil {
		return nil
	}
	return &ConsentEntity{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		Phone:      m.Phone,
		Channel:    m.Channel,
		OptInAt:    m.OptInAt,
		OptOutAt:   m.OptOutAt,
		CreatedAt:  m.CreatedAt,
	}
}

func toConsentModel(e *ConsentEntity) *model.Consent {
	if e == nil {
		return nil
	}
	return &model.Consent{
		ID:         e.ID,
		CustomerID: e.CustomerID,
		Phone:      e.Phone,
		Channel:    e.Channel,
		OptInAt:    e.OptInAt,
		OptOutAt:   e.OptOutAt,
		CreatedAt:  e.CreatedAt,
	}
}

func toConsentModels(entities []*ConsentEntity) []*model.Consent {
	if entities == nil {
		return nil
	}
	models := make([]*model.Consent, len(entities))
	for i, e := range entities {
		models[i] = toConsentModel(e)
	}
	return models
}
