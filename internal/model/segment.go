package model

import (
	"errors"
	"time"
)

// Segment is a throttled slice of a campaign's audience. Scheduler
// state (next_send_at, daily quota) lives here and is written back
// once per import batch.
type Segment struct {
	ID         int64  `json:"id"`
	CampaignID int64  `json:"campaign_id"`
	Key        string `json:"key"`
	Name       string `json:"name"`
	Timezone   string `json:"timezone"`

	ThrottlePerMinute int  `json:"throttle_per_minute"`
	JitterSeconds     int  `json:"jitter_seconds"`
	DailyCap          int  `json:"daily_cap"` // 0 = unlimited
	WindowStartHour   *int `json:"window_start_hour,omitempty"`
	WindowEndHour     *int `json:"window_end_hour,omitempty"` // half-open [start, end)

	NextSendAt     *time.Time `json:"next_send_at,omitempty"`
	DailyQuotaDate *time.Time `json:"daily_quota_date,omitempty"`
	DailyQuotaUsed int        `json:"daily_quota_used"`

	CreatedAt time.Time `json:"created_at"`
}

// SegmentUpsertRequest is the input for creating or updating a segment.
type SegmentUpsertRequest struct {
	CampaignID        int64
	Key               string
	Name              string
	Timezone          string
	ThrottlePerMinute int
	JitterSeconds     int
	DailyCap          int
	WindowStartHour   *int
	WindowEndHour     *int
}

func (p SegmentUpsertRequest) Validate() error {
	if p.CampaignID == 0 {
		return errors.New("campaign_id is required")
	}
	if p.Key == "" {
		return errors.New("key is required")
	}
	if p.ThrottlePerMinute < 1 {
		return errors.New("throttle_per_minute must be at least 1")
	}
	if p.JitterSeconds < 0 {
		return errors.New("jitter_seconds cannot be negative")
	}
	if p.DailyCap < 0 {
		return errors.New("daily_cap cannot be negative")
	}
	if p.WindowStartHour != nil && (*p.WindowStartHour < 0 || *p.WindowStartHour > 23) {
		return errors.New("window_start_hour must be between 0 and 23")
	}
	if p.WindowEndHour != nil && (*p.WindowEndHour < 0 || *p.WindowEndHour > 23) {
		return errors.New("window_end_hour must be between 0 and 23")
	}
	if p.WindowStartHour != nil && p.WindowEndHour != nil && *p.WindowStartHour >= *p.WindowEndHour {
		return errors.New("window_start_hour must be before window_end_hour")
	}
	return nil
}
