package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/consent"
	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/azrulhaziq/campaign-gateway/internal/phone"
	"github.com/azrulhaziq/campaign-gateway/internal/scheduler"
	"github.com/azrulhaziq/campaign-gateway/pkg/prom"
	"github.com/google/uuid"
)

var (
	ErrNilSegment  = errors.New("segment is required for import")
	ErrNilCampaign = errors.New("campaign is required for import")
)

type ImportRecipientRepository interface {
	ExistingPhones(ctx context.Context, campaignID int64, phones []string) (map[string]struct{}, error)
	Create(ctx context.Context, rec *model.Recipient) (*model.Recipient, error)
	AppendEvent(ctx context.Context, ev *model.RecipientEvent) (*model.RecipientEvent, error)
}

type ImportConsentRepository interface {
	FindByCustomerIDs(ctx context.Context, channel string, ids []int64) ([]*model.Consent, error)
	FindByPhones(ctx context.Context, channel string, phones []string) ([]*model.Consent, error)
}

type ImportSegmentRepository interface {
	UpdateSchedulerState(ctx context.Context, id int64, nextSendAt, quotaDate time.Time, quotaUsed int) error
}

// TxRunner runs a function inside one storage transaction.
type TxRunner interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ImportService validates, deduplicates and schedules incoming
// recipient lists. A whole batch is one transaction: every insert and
// the final segment-state write succeed together or not at all.
type ImportService struct {
	recipientRepo ImportRecipientRepository
	consentRepo   ImportConsentRepository
	segmentRepo   ImportSegmentRepository
	tx            TxRunner
	clock         scheduler.Clock
	rng           *rand.Rand
	countryCode   string
}

func NewImportService(
	recipientRepo ImportRecipientRepository,
	consentRepo ImportConsentRepository,
	segmentRepo ImportSegmentRepository,
	tx TxRunner,
	clock scheduler.Clock,
	rng *rand.Rand,
	countryCode string,
) *ImportService {
	if clock == nil {
		clock = scheduler.SystemClock
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if countryCode == "" {
		countryCode = phone.DefaultCountryCode
	}
	return &ImportService{
		recipientRepo: recipientRepo,
		consentRepo:   consentRepo,
		segmentRepo:   segmentRepo,
		tx:            tx,
		clock:         clock,
		rng:           rng,
		countryCode:   countryCode,
	}
}

// Import processes inputs in order against consent records and the
// segment's scheduler. Validation and consent rejections are reported
// per item; storage errors roll the whole batch back.
func (s *ImportService) Import(ctx context.Context, campaign *model.Campaign, segment *model.Segment, inputs []model.RecipientInput) (*model.ImportSummary, error) {
	if campaign == nil {
		return nil, ErrNilCampaign
	}
	if segment == nil {
		return nil, ErrNilSegment
	}

	resolver, err := s.prefetchConsents(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("prefetch consents: %w", err)
	}

	sched, state, err := scheduler.New(segment, campaign, s.clock, s.rng)
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}

	summary := &model.ImportSummary{}
	batchID := uuid.NewString()
	seen := make(map[string]struct{}, len(inputs))

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.lookupExisting(ctx, campaign.ID, inputs, resolver)
		if err != nil {
			return err
		}

		for _, input := range inputs {
			res := resolver.Resolve(input.CustomerID, input.Phone)

			raw := input.Phone
			if raw == "" && res.Consent != nil {
				raw = res.Consent.Phone
			}
			normalized, ok := phone.Normalize(raw, s.countryCode)
			if !ok {
				summary.Skipped = append(summary.Skipped, skip(input, model.SkipInvalidPhone))
				continue
			}
			if _, dup := seen[normalized]; dup {
				summary.Skipped = append(summary.Skipped, skip(input, model.SkipDuplicatePhone))
				continue
			}
			seen[normalized] = struct{}{}
			if res.Kind == consent.NotFound {
				summary.Skipped = append(summary.Skipped, skip(input, model.SkipConsentMissing))
				continue
			}
			if !res.Consent.OptedIn() {
				summary.Skipped = append(summary.Skipped, skip(input, model.SkipNotOptedIn))
				continue
			}
			if _, dup := existing[normalized]; dup {
				summary.Skipped = append(summary.Skipped, skip(input, model.SkipAlreadyImported))
				continue
			}

			var assignment scheduler.Assignment
			state, assignment = sched.Next(state)

			sendAt := assignment.SendAt
			rec, err := s.recipientRepo.Create(ctx, &model.Recipient{
				CampaignID:   campaign.ID,
				SegmentID:    &segment.ID,
				CustomerID:   input.CustomerID,
				Phone:        normalized,
				Name:         input.Name,
				Variables:    input.Variables,
				Status:       model.RecipientStatusScheduled,
				ScheduledFor: &sendAt,
			})
			if err != nil {
				return fmt.Errorf("create recipient %s: %w", normalized, err)
			}

			_, err = s.recipientRepo.AppendEvent(ctx, &model.RecipientEvent{
				RecipientID: rec.ID,
				Type:        model.EventQueued,
				Payload: map[string]interface{}{
					"batch_id":            batchID,
					"scheduled_for_local": assignment.LocalSendAt.Format("2006-01-02 15:04:05 MST"),
				},
				CreatedAt: s.clock.Now().UTC(),
			})
			if err != nil {
				return fmt.Errorf("append queued event: %w", err)
			}

			summary.Inserted++
		}

		// One state write per batch.
		p := sched.Snapshot(state)
		if err := s.segmentRepo.UpdateSchedulerState(ctx, segment.ID, p.NextSendAt, p.DailyQuotaDate, p.DailyQuotaUsed); err != nil {
			return fmt.Errorf("persist scheduler state: %w", err)
		}

		next := p.NextSendAt
		quotaDate := p.DailyQuotaDate
		updated := *segment
		updated.NextSendAt = &next
		updated.DailyQuotaDate = &quotaDate
		updated.DailyQuotaUsed = p.DailyQuotaUsed
		summary.Segment = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	prom.AddCounter(prom.SystemImport, prom.MetricRecipientsImported, float64(summary.Inserted))
	for _, sk := range summary.Skipped {
		prom.IncCounterVec(prom.SystemImport, prom.MetricRecipientsSkipped, sk.Reason)
	}

	return summary, nil
}

// prefetchConsents bulk-loads every consent record the batch could
// match: two repository queries instead of two per recipient.
func (s *ImportService) prefetchConsents(ctx context.Context, inputs []model.RecipientInput) (*consent.Resolver, error) {
	var customerIDs []int64
	var phones []string
	seenID := make(map[int64]struct{})
	seenPhone := make(map[string]struct{})

	addPhone := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seenPhone[p]; !ok {
			seenPhone[p] = struct{}{}
			phones = append(phones, p)
		}
	}

	for _, input := range inputs {
		if input.CustomerID != nil {
			if _, ok := seenID[*input.CustomerID]; !ok {
				seenID[*input.CustomerID] = struct{}{}
				customerIDs = append(customerIDs, *input.CustomerID)
			}
		}
		addPhone(input.Phone)
		if normalized, ok := phone.Normalize(input.Phone, s.countryCode); ok {
			addPhone(normalized)
		}
	}

	byCustomer, err := s.consentRepo.FindByCustomerIDs(ctx, model.ChannelWhatsApp, customerIDs)
	if err != nil {
		return nil, err
	}
	byPhone, err := s.consentRepo.FindByPhones(ctx, model.ChannelWhatsApp, phones)
	if err != nil {
		return nil, err
	}

	return consent.NewResolver(append(byCustomer, byPhone...), s.countryCode), nil
}

// lookupExisting checks the campaign for phones already imported, one
// query for the whole batch.
func (s *ImportService) lookupExisting(ctx context.Context, campaignID int64, inputs []model.RecipientInput, resolver *consent.Resolver) (map[string]struct{}, error) {
	var phones []string
	seen := make(map[string]struct{})
	for _, input := range inputs {
		raw := input.Phone
		if raw == "" {
			if res := resolver.Resolve(input.CustomerID, ""); res.Consent != nil {
				raw = res.Consent.Phone
			}
		}
		if normalized, ok := phone.Normalize(raw, s.countryCode); ok {
			if _, dup := seen[normalized]; !dup {
				seen[normalized] = struct{}{}
				phones = append(phones, normalized)
			}
		}
	}
	return s.recipientRepo.ExistingPhones(ctx, campaignID, phones)
}

func skip(input model.RecipientInput, reason string) model.SkippedRecipient {
	return model.SkippedRecipient{Input: input, Reason: reason}
}
