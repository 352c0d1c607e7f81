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
	// ErrSegmentNotFound is returned when a segment does not exist.
	ErrSegmentNotFound = errors.New("segment not found")
)

type SegmentRepository struct {
	*pg.DB
}

func NewSegmentRepository(db *pg.DB) *SegmentRepository {
	return &SegmentRepository{db}
}

// Upsert creates the segment or updates its configuration, matched by
// campaign_id + key. Scheduler state columns are never touched here.
func (r *SegmentRepository) Upsert(ctx context.Context, seg *model.Segment) (*model.Segment, error) {
	var existing SegmentEntity
	err := r.Write(ctx).
		Where("campaign_id = ? AND key = ?", seg.CampaignID, seg.Key).
		First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		entity := toSegmentEntity(seg)
		if entity.Timezone == "" {
			entity.Timezone = "UTC"
		}
		if err := r.Write(ctx).Create(entity).Error; err != nil {
			return nil, err
		}
		return toSegmentModel(entity), nil
	}

	updates := map[string]interface{}{
		"name":                seg.Name,
		"timezone":            seg.Timezone,
		"throttle_per_minute": seg.ThrottlePerMinute,
		"jitter_seconds":      seg.JitterSeconds,
		"daily_cap":           seg.DailyCap,
		"window_start_hour":   seg.WindowStartHour,
		"window_end_hour":     seg.WindowEndHour,
	}
	if err := r.Write(ctx).Model(&existing).Updates(updates).Error; err != nil {
		return nil, err
	}
	return r.GetByID(ctx, existing.ID)
}

func (r *SegmentRepository) GetByID(ctx context.Context, id int64) (*model.Segment, error) {
	var entity SegmentEntity
	if err := r.Read(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSegmentNotFound
		}
		return nil, err
	}
	return toSegmentModel(&entity), nil
}

func (r *SegmentRepository) GetByCampaignAndKey(ctx context.Context, campaignID int64, key string) (*model.Segment, error) {
	var entity SegmentEntity
	err := r.Read(ctx).Where("campaign_id = ? AND key = ?", campaignID, key).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSegmentNotFound
		}
		return nil, err
	}
	return toSegmentModel(&entity), nil
}

// UpdateSchedulerState writes back the cursor produced by a completed
// import batch. One write per batch, not one per recipient.
func (r *SegmentRepository) UpdateSchedulerState(ctx context.Context, id int64, nextSendAt, quotaDate time.Time, quotaUsed int) error {
	res := r.Write(ctx).Model(&SegmentEntity{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"next_send_at":     nextSendAt,
			"daily_quota_date": quotaDate,
			"daily_quota_used": quotaUsed,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSegmentNotFound
	}
	return nil
}
