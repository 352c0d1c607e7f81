package model

import "time"

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusCompleted CampaignStatus = "completed"
)

type Campaign struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Status       CampaignStatus `json:"status"`
	Template     string         `json:"template,omitempty"`
	TemplateVars []string       `json:"template_vars,omitempty"`
	ScheduledAt  *time.Time     `json:"scheduled_at,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// CampaignMetrics is a read-only aggregation over a campaign's
// recipients, grouped by status and timestamp presence.
type CampaignMetrics struct {
	CampaignID int64 `json:"campaign_id"`
	Total      int64 `json:"total"`
	Scheduled  int64 `json:"scheduled"`
	Sent       int64 `json:"sent"`
	Delivered  int64 `json:"delivered"`
	Read       int64 `json:"read"`
	Replied    int64 `json:"replied"`
	OptedOut   int64 `json:"opted_out"`
	Failed     int64 `json:"failed"`
}
