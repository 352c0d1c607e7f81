package model

import "time"

const ChannelWhatsApp = "whatsapp"

// Consent is a channel-scoped opt-in record, matched by customer id
// or by phone. opt_in_at and opt_out_at are mutually exclusive,
// setting one clears the other.
type Consent struct {
	ID         int64      `json:"id"`
	CustomerID *int64     `json:"customer_id,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Channel    string     `json:"channel"`
	OptInAt    *time.Time `json:"opt_in_at,omitempty"`
	OptOutAt   *time.Time `json:"opt_out_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// OptedIn reports whether the consent currently permits sending.
func (c *Consent) OptedIn() bool {
	return c != nil && c.OptInAt != nil && c.OptOutAt == nil
}

// OptedOut reports an explicit opt-out signal.
func (c *Consent) OptedOut() bool {
	return c != nil && c.OptOutAt != nil
}
