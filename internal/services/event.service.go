package services

import (
	"context"
	"fmt"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/azrulhaziq/campaign-gateway/internal/phone"
	"github.com/azrulhaziq/campaign-gateway/pkg/logger"
	"github.com/azrulhaziq/campaign-gateway/pkg/prom"
	"github.com/pkg/errors"
)

var ErrUnknownEventType = errors.New("unknown event type")

type EventRecipientRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Recipient, error)
	Update(ctx context.Context, rec *model.Recipient) error
	AppendEvent(ctx context.Context, ev *model.RecipientEvent) (*model.RecipientEvent, error)
	FindActiveByPhones(ctx context.Context, phones []string, excludeID int64) ([]*model.Recipient, error)
}

type EventConsentRepository interface {
	SetOptOutByPhones(ctx context.Context, channel string, phones []string, ts time.Time) error
}

// EventService applies delivery receipts and inbound signals to a
// recipient's record and audit trail. An opt_out additionally revokes
// the phone's consent and cancels its pending sends in every other
// campaign.
type EventService struct {
	recipientRepo EventRecipientRepository
	consentRepo   EventConsentRepository
	tx            TxRunner
	countryCode   string
}

func NewEventService(recipientRepo EventRecipientRepository, consentRepo EventConsentRepository, tx TxRunner, countryCode string) *EventService {
	if countryCode == "" {
		countryCode = phone.DefaultCountryCode
	}
	return &EventService{
		recipientRepo: recipientRepo,
		consentRepo:   consentRepo,
		tx:            tx,
		countryCode:   countryCode,
	}
}

// Record applies one event at the given instant. The status/timestamp
// mapping is fixed per event type; a delivered receipt stamps
// delivered_at without touching status so a later-arriving read is not
// demoted.
func (s *EventService) Record(ctx context.Context, recipientID int64, eventType model.EventType, ts time.Time, payload map[string]interface{}) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.recipientRepo.GetByID(ctx, recipientID)
		if err != nil {
			return err
		}

		switch eventType {
		case model.EventSent:
			rec.SentAt = &ts
			rec.Status = model.RecipientStatusSent
		case model.EventDelivered:
			rec.DeliveredAt = &ts
		case model.EventRead:
			rec.ReadAt = &ts
			rec.Status = model.RecipientStatusRead
		case model.EventReplied:
			rec.RepliedAt = &ts
			rec.Status = model.RecipientStatusReplied
		case model.EventOptOut:
			rec.OptOutAt = &ts
			rec.Status = model.RecipientStatusOptedOut
		case model.EventError:
			rec.Status = model.RecipientStatusFailed
			if msg, ok := payload["error"].(string); ok {
				rec.Error = msg
			}
		default:
			return errors.Wrap(ErrUnknownEventType, string(eventType))
		}

		if err := s.recipientRepo.Update(ctx, rec); err != nil {
			return fmt.Errorf("update recipient %d: %w", rec.ID, err)
		}
		if _, err := s.recipientRepo.AppendEvent(ctx, &model.RecipientEvent{
			RecipientID: rec.ID,
			Type:        eventType,
			Payload:     payload,
			CreatedAt:   ts,
		}); err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		if eventType == model.EventOptOut {
			return s.propagateOptOut(ctx, rec, ts)
		}
		return nil
	})
}

// propagateOptOut revokes consent for both the stored and the
// re-normalized phone form, then forces every still-pending recipient
// with that phone in other campaigns to opted_out.
func (s *EventService) propagateOptOut(ctx context.Context, rec *model.Recipient, ts time.Time) error {
	phones := []string{rec.Phone}
	if normalized, ok := phone.Normalize(rec.Phone, s.countryCode); ok && normalized != rec.Phone {
		phones = append(phones, normalized)
	}

	if err := s.consentRepo.SetOptOutByPhones(ctx, model.ChannelWhatsApp, phones, ts); err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}

	others, err := s.recipientRepo.FindActiveByPhones(ctx, phones, rec.ID)
	if err != nil {
		return fmt.Errorf("find active recipients: %w", err)
	}

	for _, other := range others {
		other.Status = model.RecipientStatusOptedOut
		other.OptOutAt = &ts
		if err := s.recipientRepo.Update(ctx, other); err != nil {
			return fmt.Errorf("cancel recipient %d: %w", other.ID, err)
		}
		if _, err := s.recipientRepo.AppendEvent(ctx, &model.RecipientEvent{
			RecipientID: other.ID,
			Type:        model.EventOptOut,
			Payload:     map[string]interface{}{"propagated_from": rec.ID},
			CreatedAt:   ts,
		}); err != nil {
			return fmt.Errorf("append propagated event: %w", err)
		}
	}

	if len(others) > 0 {
		prom.AddCounter(prom.SystemDispatch, prom.MetricOptOutsPropagated, float64(len(others)))
		logger.Info("opt-out propagated",
			"phone", rec.Phone,
			"source_recipient", rec.ID,
			"cancelled", len(others))
	}
	return nil
}
