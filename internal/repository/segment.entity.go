package repository

import (
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
)

type SegmentEntity struct {
	ID         int64  `gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID int64  `gorm:"column:campaign_id;not null;uniqueIndex:idx_segment_campaign_key"`
	Key        string `gorm:"column:key;not null;uniqueIndex:idx_segment_campaign_key"`
	Name       string `gorm:"column:name"`
	Timezone   string `gorm:"column:timezone;not null;default:UTC"`

	ThrottlePerMinute int  `gorm:"column:throttle_per_minute;not null;default:10"`
	JitterSeconds     int  `gorm:"column:jitter_seconds;not null;default:0"`
	DailyCap          int  `gorm:"column:daily_cap;not null;default:0"`
	WindowStartHour   *int `gorm:"column:window_start_hour"`
	WindowEndHour     *int `gorm:"column:window_end_hour"`

	NextSendAt     *time.Time `gorm:"column:next_send_at"`
	DailyQuotaDate *time.Time `gorm:"column:daily_quota_date"`
	DailyQuotaUsed int        `gorm:"column:daily_quota_used;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (SegmentEntity) TableName() string { return "segments" }

func toSegmentEntity(m *model.Segment) *SegmentEntity {
	if m == nil {
		return nil
	}
	return &SegmentEntity{
		ID:                m.ID,
		CampaignID:        m.CampaignID,
		Key:               m.Key,
		Name:              m.Name,
		Timezone:          m.Timezone,
		ThrottlePerMinute: m.ThrottlePerMinute,
		JitterSeconds:     m.JitterSeconds,
		DailyCap:          m.DailyCap,
		WindowStartHour:   m.WindowStartHour,
		WindowEndHour:     m.WindowEndHour,
		NextSendAt:        m.NextSendAt,
		DailyQuotaDate:    m.DailyQuotaDate,
		DailyQuotaUsed:    m.DailyQuotaUsed,
		CreatedAt:         m.CreatedAt,
	}
}

func toSegmentModel(e *SegmentEntity) *model.Segment {
	if e == nil {
		return nil
	}
	return &model.Segment{
		ID:                e.ID,
		CampaignID:        e.CampaignID,
		Key:               e.Key,
		Name:              e.Name,
		Timezone:          e.Timezone,
		ThrottlePerMinute: e.ThrottlePerMinute,
		JitterSeconds:     e.JitterSeconds,
		DailyCap:          e.DailyCap,
		WindowStartHour:   e.WindowStartHour,
		WindowEndHour:     e.WindowEndHour,
		NextSendAt:        e.NextSendAt,
		DailyQuotaDate:    e.DailyQuotaDate,
		DailyQuotaUsed:    e.DailyQuotaUsed,
		CreatedAt:         e.CreatedAt,
	}
}
