package model

import "time"

// RecipientStatus is the delivery lifecycle state of a recipient.
type RecipientStatus string

const (
	RecipientStatusPending   RecipientStatus = "pending"
	RecipientStatusScheduled RecipientStatus = "scheduled"
	RecipientStatusSent      RecipientStatus = "sent"
	RecipientStatusDelivered RecipientStatus = "delivered"
	RecipientStatusRead      RecipientStatus = "read"
	RecipientStatusReplied   RecipientStatus = "replied"
	RecipientStatusOptedOut  RecipientStatus = "opted_out"
	RecipientStatusFailed    RecipientStatus = "failed"
)

// EventType identifies an entry in a recipient's audit trail.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventSent      EventType = "sent"
	EventDelivered EventType = "delivered"
	EventRead      EventType = "read"
	EventReplied   EventType = "replied"
	EventOptOut    EventType = "opt_out"
	EventError     EventType = "error"
)

type Recipient struct {
	ID         int64  `json:"id"`
	CampaignID int64  `json:"campaign_id"`
	SegmentID  *int64 `json:"segment_id,omitempty"`
	CustomerID *int64 `json:"customer_id,omitempty"`

	Phone     string            `json:"phone"` // normalized, unique per campaign
	Name      string            `json:"name,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`

	Status       RecipientStatus `json:"status"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
	DeliveredAt  *time.Time      `json:"delivered_at,omitempty"`
	ReadAt       *time.Time      `json:"read_at,omitempty"`
	RepliedAt    *time.Time      `json:"replied_at,omitempty"`
	OptOutAt     *time.Time      `json:"opt_out_at,omitempty"`
	Error        string          `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// RecipientEvent is an append-only audit record. Immutable once
// written.
type RecipientEvent struct {
	ID          int64                  `json:"id"`
	RecipientID int64                  `json:"recipient_id"`
	Type        EventType              `json:"type"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// RecipientInput is one row of an external recipient list handed to
// the importer.
type RecipientInput struct {
	CustomerID *int64            `json:"customer_id,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	Name       string            `json:"name,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// Skip reasons reported per item by the importer.
const (
	SkipInvalidPhone    = "invalid_phone"
	SkipDuplicatePhone  = "duplicate_phone"
	SkipConsentMissing  = "consent_missing"
	SkipNotOptedIn      = "not_opted_in"
	SkipAlreadyImported = "already_imported"
)

type SkippedRecipient struct {
	Input  RecipientInput `json:"input"`
	Reason string         `json:"reason"`
}

type ImportSummary struct {
	Inserted int                `json:"inserted"`
	Skipped  []SkippedRecipient `json:"skipped"`
	Segment  *Segment           `json:"segment"`
}
