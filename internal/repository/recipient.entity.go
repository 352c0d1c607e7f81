package repository

import (
	"encoding/json"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
)

type RecipientEntity struct {
	ID         int64  `gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID int64  `gorm:"column:campaign_id;not null;uniqueIndex:idx_recipient_campaign_phone"`
	SegmentID  *int64 `gorm:"column:segment_id;index"`
	CustomerID *int64 `gorm:"column:customer_id;index"`

	Phone     string `gorm:"column:phone;not null;uniqueIndex:idx_recipient_campaign_phone;index"`
	Name      string `gorm:"column:name"`
	Variables string `gorm:"column:variables"` // JSON object

	Status       string     `gorm:"column:status;not null;default:pending;index:idx_recipient_due,priority:1"`
	ScheduledFor *time.Time `gorm:"column:scheduled_for;index:idx_recipient_due,priority:2"`
	SentAt       *time.Time `gorm:"column:sent_at"`
	DeliveredAt  *time.Time `gorm:"column:delivered_at"`
	ReadAt       *time.Time `gorm:"column:read_at"`
	RepliedAt    *time.Time `gorm:"column:replied_at"`
	OptOutAt     *time.Time `gorm:"column:opt_out_at"`
	Error        string     `gorm:"column:error"`

	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt *time.Time `gorm:"column:deleted_at;index"`
}

func (RecipientEntity) TableName() string { return "recipients" }

type RecipientEventEntity struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id"`
	RecipientID int64     `gorm:"column:recipient_id;not null;index"`
	Type        string    `gorm:"column:type;not null"`
	Payload     string    `gorm:"column:payload"` // JSON object
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (RecipientEventEntity) TableName() string { return "recipient_events" }

func toRecipientEntity(m *model.Recipient) *RecipientEntity {
	if m == nil {
		return nil
	}
	vars := ""
	if len(m.Variables) > 0 {
		if b, err := json.Marshal(m.Variables); err == nil {
			vars = string(b)
		}
	}
	return &RecipientEntity{
		ID:           m.ID,
		CampaignID:   m.CampaignID,
		SegmentID:    m.SegmentID,
		CustomerID:   m.CustomerID,
		Phone:        m.Phone,
		Name:         m.Name,
		Variables:    vars,
		Status:       string(m.Status),
		ScheduledFor: m.ScheduledFor,
		SentAt:       m.SentAt,
		DeliveredAt:  m.DeliveredAt,
		ReadAt:       m.ReadAt,
		RepliedAt:    m.RepliedAt,
		OptOutAt:     m.OptOutAt,
		Error:        m.Error,
		CreatedAt:    m.CreatedAt,
	}
}

func toRecipientModel(e *RecipientEntity) *model.Recipient {
	if e == nil {
		return nil
	}
	var vars map[string]string
	if e.Variables != "" {
		_ = json.Unmarshal([]byte(e.Variables), &vars)
	}
	return &model.Recipient{
		ID:           e.ID,
		CampaignID:   e.CampaignID,
		SegmentID:    e.SegmentID,
		CustomerID:   e.CustomerID,
		Phone:        e.Phone,
		Name:         e.Name,
		Variables:    vars,
		Status:       model.RecipientStatus(e.Status),
		ScheduledFor: e.ScheduledFor,
		SentAt:       e.SentAt,
		DeliveredAt:  e.DeliveredAt,
		ReadAt:       e.ReadAt,
		RepliedAt:    e.RepliedAt,
		OptOutAt:     e.OptOutAt,
		Error:        e.Error,
		CreatedAt:    e.CreatedAt,
	}
}

func toRecipientModels(entities []*RecipientEntity) []*model.Recipient {
	if entities == nil {
		return nil
	}
	models := make([]*model.Recipient, len(entities))
	for i, e := range entities {
		models[i] = toRecipientModel(e)
	}
	return models
}

func toRecipientEventEntity(m *model.RecipientEvent) *RecipientEventEntity {
	if m == nil {
		return nil
	}
	payload := ""
	if len(m.Payload) > 0 {
		if b, err := json.Marshal(m.Payload); err == nil {
			payload = string(b)
		}
	}
	return &RecipientEventEntity{
		ID:          m.ID,
		RecipientID: m.RecipientID,
		Type:        string(m.Type),
		Payload:     payload,
		CreatedAt:   m.CreatedAt,
	}
}

func toRecipientEventModel(e *RecipientEventEntity) *model.RecipientEvent {
	if e == nil {
		return nil
	}
	var payload map[string]interface{}
	if e.Payload != "" {
		_ = json.Unmarshal([]byte(e.Payload), &payload)
	}
	return &model.RecipientEvent{
		ID:          e.ID,
		RecipientID: e.RecipientID,
		Type:        model.EventType(e.Type),
		Payload:     payload,
		CreatedAt:   e.CreatedAt,
	}
}
