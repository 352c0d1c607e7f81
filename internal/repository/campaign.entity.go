package repository

import (
	"encoding/json"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
)

type CampaignEntity struct {
	ID           int64      `gorm:"primaryKey;autoIncrement;column:id"`
	Name         string     `gorm:"column:name;not null"`
	Status       string     `gorm:"column:status;not null;default:draft;index"`
	Template     string     `gorm:"column:template"`
	TemplateVars string     `gorm:"column:template_vars"` // JSON array
	ScheduledAt  *time.Time `gorm:"column:scheduled_at"`
	StartedAt    *time.Time `gorm:"column:started_at"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (CampaignEntity) TableName() string { return "campaigns" }

func toCampaignEntity(m *model.Campaign) *CampaignEntity {
	if m == nil {
		return nil
	}
	vars := ""
	if len(m.TemplateVars) > 0 {
		if b, err := json.Marshal(m.TemplateVars); err == nil {
			vars = string(b)
		}
	}
	return &CampaignEntity{
		ID:           m.ID,
		Name:         m.Name,
		Status:       string(m.Status),
		Template:     m.Template,
		TemplateVars: vars,
		ScheduledAt:  m.ScheduledAt,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
		CreatedAt:    m.CreatedAt,
	}
}

func toCampaignModel(e *CampaignEntity) *model.Campaign {
	if e == nil {
		return nil
	}
	var vars []string
	if e.TemplateVars != "" {
		_ = json.Unmarshal([]byte(e.TemplateVars), &vars)
	}
	return &model.Campaign{
		ID:           e.ID,
		Name:         e.Name,
		Status:       model.CampaignStatus(e.Status),
		Template:     e.Template,
		TemplateVars: vars,
		ScheduledAt:  e.ScheduledAt,
		StartedAt:    e.StartedAt,
		CompletedAt:  e.CompletedAt,
		CreatedAt:    e.CreatedAt,
	}
}
