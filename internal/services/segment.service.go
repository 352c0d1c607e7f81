package services

import (
	"context"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/pkg/errors"
)

type SegmentRepository interface {
	Upsert(ctx context.Context, seg *model.Segment) (*model.Segment, error)
	GetByCampaignAndKey(ctx context.Context, campaignID int64, key string) (*model.Segment, error)
}

type SegmentCampaignRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
}

// SegmentService validates and upserts segment pacing configuration.
// Upserting never touches scheduler state; already-assigned slots keep
// their old pacing and only future imports see the new config.
type SegmentService struct {
	segmentRepo  SegmentRepository
	campaignRepo SegmentCampaignRepository
}

func NewSegmentService(segmentRepo SegmentRepository, campaignRepo SegmentCampaignRepository) *SegmentService {
	return &SegmentService{segmentRepo: segmentRepo, campaignRepo: campaignRepo}
}

func (s *SegmentService) Upsert(ctx context.Context, req model.SegmentUpsertRequest) (*model.Segment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return nil, errors.Wrapf(err, "invalid timezone %q", req.Timezone)
		}
	}
	if _, err := s.campaignRepo.GetByID(ctx, req.CampaignID); err != nil {
		return nil, err
	}

	return s.segmentRepo.Upsert(ctx, &model.Segment{
		CampaignID:        req.CampaignID,
		Key:               req.Key,
		Name:              req.Name,
		Timezone:          req.Timezone,
		ThrottlePerMinute: req.ThrottlePerMinute,
		JitterSeconds:     req.JitterSeconds,
		DailyCap:          req.DailyCap,
		WindowStartHour:   req.WindowStartHour,
		WindowEndHour:     req.WindowEndHour,
	})
}

func (s *SegmentService) Get(ctx context.Context, campaignID int64, key string) (*model.Segment, error) {
	return s.segmentRepo.GetByCampaignAndKey(ctx, campaignID, key)
}
