// Package dispatch drains due recipients and hands them to the
// WhatsApp transport. One dispatcher instance runs per deployment; the
// in-flight guard keeps a slow tick from overlapping the next one.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/consent"
	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/azrulhaziq/campaign-gateway/internal/scheduler"
	"github.com/azrulhaziq/campaign-gateway/internal/template"
	"github.com/azrulhaziq/campaign-gateway/pkg/logger"
	"github.com/azrulhaziq/campaign-gateway/pkg/prom"
)

const (
	DefaultInterval  = 15 * time.Second
	DefaultBatchSize = 25
)

// Transport sends one rendered message and returns the provider's
// message id.
type Transport interface {
	Send(ctx context.Context, phone, body string) (string, error)
}

// EventRecorder applies a lifecycle event to a recipient. Satisfied by
// services.EventService.
type EventRecorder interface {
	Record(ctx context.Context, recipientID int64, eventType model.EventType, ts time.Time, payload map[string]interface{}) error
}

type RecipientRepository interface {
	FindDue(ctx context.Context, now time.Time, limit int) ([]*model.Recipient, map[int64]*model.Campaign, error)
	CountRemaining(ctx context.Context, campaignID int64) (int64, error)
}

type CampaignRepository interface {
	MarkRunning(ctx context.Context, id int64, ts time.Time) error
	MarkCompleted(ctx context.Context, id int64, ts time.Time) error
}

type ConsentRepository interface {
	FindByCustomerIDs(ctx context.Context, channel string, ids []int64) ([]*model.Consent, error)
	FindByPhones(ctx context.Context, channel string, phones []string) ([]*model.Consent, error)
}

type Option func(*Dispatcher)

func WithInterval(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.interval = d }
}

func WithBatchSize(n int) Option {
	return func(disp *Dispatcher) { disp.batchSize = n }
}

func WithClock(c scheduler.Clock) Option {
	return func(disp *Dispatcher) { disp.clock = c }
}

type Dispatcher struct {
	recipientRepo RecipientRepository
	campaignRepo  CampaignRepository
	consentRepo   ConsentRepository
	transport     Transport
	events        EventRecorder
	metrics       *ServiceMetrics
	clock         scheduler.Clock
	countryCode   string

	interval  time.Duration
	batchSize int

	inFlight atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewDispatcher(
	recipientRepo RecipientRepository,
	campaignRepo CampaignRepository,
	consentRepo ConsentRepository,
	transport Transport,
	events EventRecorder,
	countryCode string,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		recipientRepo: recipientRepo,
		campaignRepo:  campaignRepo,
		consentRepo:   consentRepo,
		transport:     transport,
		events:        events,
		metrics:       NewServiceMetrics(),
		clock:         scheduler.SystemClock,
		countryCode:   countryCode,
		interval:      DefaultInterval,
		batchSize:     DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start runs the tick loop until Stop is called. A tick that is still
// processing when the next fires is not overlapped; the late tick is
// skipped.
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		logger.Info("dispatcher started", "interval", d.interval.String(), "batch_size", d.batchSize)
		for {
			select {
			case <-ticker.C:
				d.tick(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()

	stats := d.metrics.GetStats()
	logger.Info("dispatcher stopped",
		"total_sent", stats["total_sent"],
		"total_failed", stats["total_failed"],
		"total_skipped", stats["total_skipped"])
}

func (d *Dispatcher) tick(ctx context.Context) {
	if !d.inFlight.CompareAndSwap(false, true) {
		logger.Warn("previous tick still running, skipping")
		return
	}
	defer d.inFlight.Store(false)

	start := time.Now()
	n, err := d.ProcessDue(ctx, d.batchSize)
	prom.ObserveHistogram(prom.SystemDispatch, prom.MetricTickDuration, time.Since(start).Seconds())
	if err != nil {
		logger.Error("dispatch tick failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("dispatch tick done", "processed", n, "took", time.Since(start).String())
	}
}

// ProcessDue sends every recipient whose slot has arrived, oldest
// first, up to limit. Failures are isolated per recipient: a provider
// error records an error event and the loop moves on.
func (d *Dispatcher) ProcessDue(ctx context.Context, limit int) (int, error) {
	now := d.clock.Now().UTC()

	due, campaigns, err := d.recipientRepo.FindDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	resolver, err := d.prefetchConsents(ctx, due)
	if err != nil {
		return 0, err
	}

	touched := make(map[int64]struct{})
	processed := 0

	for _, rec := range due {
		campaign := campaigns[rec.CampaignID]
		if campaign == nil {
			logger.Error("due recipient without campaign", "recipient_id", rec.ID, "campaign_id", rec.CampaignID)
			continue
		}

		if _, ok := touched[rec.CampaignID]; !ok {
			if err := d.campaignRepo.MarkRunning(ctx, campaign.ID, now); err != nil {
				logger.Error("mark campaign running failed", "campaign_id", campaign.ID, "error", err)
			}
			touched[rec.CampaignID] = struct{}{}
		}

		d.dispatchOne(ctx, rec, campaign, resolver, now)
		processed++
	}

	for campaignID := range touched {
		remaining, err := d.recipientRepo.CountRemaining(ctx, campaignID)
		if err != nil {
			logger.Error("count remaining failed", "campaign_id", campaignID, "error", err)
			continue
		}
		if remaining == 0 {
			if err := d.campaignRepo.MarkCompleted(ctx, campaignID, d.clock.Now().UTC()); err != nil {
				logger.Error("mark campaign completed failed", "campaign_id", campaignID, "error", err)
			}
		}
	}

	return processed, nil
}

// dispatchOne re-checks consent, renders the body and invokes the
// transport. A consent revoked after scheduling cancels the send here,
// the last gate before the provider; a consent that went missing or
// was never an opt-in fails the recipient instead.
func (d *Dispatcher) dispatchOne(ctx context.Context, rec *model.Recipient, campaign *model.Campaign, resolver *consent.Resolver, now time.Time) {
	res := resolver.Resolve(rec.CustomerID, rec.Phone)
	if res.Kind != consent.NotFound && res.Consent.OptedOut() {
		d.skipRevoked(ctx, rec, now)
		return
	}
	if res.Kind == consent.NotFound || !res.Consent.OptedIn() {
		d.skipMissingOptIn(ctx, rec, now)
		return
	}

	body := template.Render(campaign.Template, d.templateVars(rec, campaign))

	start := time.Now()
	providerID, err := d.transport.Send(ctx, rec.Phone, body)
	if err != nil {
		d.metrics.RecordFailure()
		prom.IncCounterVec(prom.SystemDispatch, prom.MetricRecipientsProcessed, "failed")
		logger.Error("send failed", "recipient_id", rec.ID, "phone", rec.Phone, "error", err)
		if recErr := d.events.Record(ctx, rec.ID, model.EventError, now, map[string]interface{}{"error": err.Error()}); recErr != nil {
			logger.Error("record error event failed", "recipient_id", rec.ID, "error", recErr)
		}
		return
	}

	d.metrics.RecordSent(time.Since(start))
	prom.IncCounterVec(prom.SystemDispatch, prom.MetricRecipientsProcessed, "sent")
	if recErr := d.events.Record(ctx, rec.ID, model.EventSent, now, map[string]interface{}{"provider_id": providerID, "message": body}); recErr != nil {
		logger.Error("record sent event failed", "recipient_id", rec.ID, "error", recErr)
	}
}

// skipRevoked cancels a scheduled send whose consent was revoked
// between import and dispatch. The opt-out goes through the event
// recorder so the usual mapping applies and the revocation suppresses
// the phone's pending sends in every other campaign too.
func (d *Dispatcher) skipRevoked(ctx context.Context, rec *model.Recipient, now time.Time) {
	d.metrics.RecordSkipped()
	prom.IncCounterVec(prom.SystemDispatch, prom.MetricRecipientsProcessed, "skipped_revoked")

	if err := d.events.Record(ctx, rec.ID, model.EventOptOut, now, map[string]interface{}{"reason": "consent_revoked"}); err != nil {
		logger.Error("record revoked opt-out failed", "recipient_id", rec.ID, "error", err)
	}
}

// skipMissingOptIn fails a recipient whose consent record is gone or
// was never an opt-in.
func (d *Dispatcher) skipMissingOptIn(ctx context.Context, rec *model.Recipient, now time.Time) {
	d.metrics.RecordSkipped()
	prom.IncCounterVec(prom.SystemDispatch, prom.MetricRecipientsProcessed, "skipped_missing_opt_in")

	if err := d.events.Record(ctx, rec.ID, model.EventError, now, map[string]interface{}{"error": "missing_opt_in"}); err != nil {
		logger.Error("record missing opt-in event failed", "recipient_id", rec.ID, "error", err)
	}
}

// templateVars builds the render context: the standard trio first,
// then the recipient's own variables on top.
func (d *Dispatcher) templateVars(rec *model.Recipient, campaign *model.Campaign) map[string]string {
	vars := map[string]string{
		"nama":     rec.Name,
		"phone":    rec.Phone,
		"campaign": campaign.Name,
	}
	for k, v := range rec.Variables {
		vars[k] = v
	}
	return vars
}

// prefetchConsents bulk-loads consent for every distinct customer id
// and phone in the batch: two repository queries instead of two per
// recipient. A recipient whose consent was matched by customer id at
// import time keeps resolving the same way here.
func (d *Dispatcher) prefetchConsents(ctx context.Context, due []*model.Recipient) (*consent.Resolver, error) {
	var customerIDs []int64
	phones := make([]string, 0, len(due))
	seenID := make(map[int64]struct{}, len(due))
	seenPhone := make(map[string]struct{}, len(due))
	for _, rec := range due {
		if rec.CustomerID != nil {
			if _, ok := seenID[*rec.CustomerID]; !ok {
				seenID[*rec.CustomerID] = struct{}{}
				customerIDs = append(customerIDs, *rec.CustomerID)
			}
		}
		if _, ok := seenPhone[rec.Phone]; !ok {
			seenPhone[rec.Phone] = struct{}{}
			phones = append(phones, rec.Phone)
		}
	}

	byCustomer, err := d.consentRepo.FindByCustomerIDs(ctx, model.ChannelWhatsApp, customerIDs)
	if err != nil {
		return nil, err
	}
	byPhone, err := d.consentRepo.FindByPhones(ctx, model.ChannelWhatsApp, phones)
	if err != nil {
		return nil, err
	}
	return consent.NewResolver(append(byCustomer, byPhone...), d.countryCode), nil
}

// Stats exposes cumulative counters for the health report.
func (d *Dispatcher) Stats() map[string]interface{} {
	return d.metrics.GetStats()
}
