// Package consent resolves a recipient to its consent record. The
// precedence is explicit: an exact customer-id match wins, then a
// normalized-phone match, then nothing.
package consent

import (
	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/azrulhaziq/campaign-gateway/internal/phone"
)

type MatchKind int

const (
	NotFound MatchKind = iota
	ByCustomer
	ByPhone
)

// Resolution is the tagged result of a lookup. Consent is nil only
// when Kind is NotFound.
type Resolution struct {
	Kind    MatchKind
	Consent *model.Consent
}

// Resolver answers lookups against a bulk-prefetched set of consent
// records, so a batch costs two repository queries instead of 2N.
type Resolver struct {
	countryCode string
	byCustomer  map[int64]*model.Consent
	byPhone     map[string]*model.Consent
}

func NewResolver(records []*model.Consent, countryCode string) *Resolver {
	r := &Resolver{
		countryCode: countryCode,
		byCustomer:  make(map[int64]*model.Consent, len(records)),
		byPhone:     make(map[string]*model.Consent, len(records)),
	}
	for _, c := range records {
		if c.CustomerID != nil {
			r.byCustomer[*c.CustomerID] = c
		}
		if normalized, ok := phone.Normalize(c.Phone, countryCode); ok {
			if _, exists := r.byPhone[normalized]; !exists {
				r.byPhone[normalized] = c
			}
		}
	}
	return r
}

func (r *Resolver) Resolve(customerID *int64, rawPhone string) Resolution {
	if customerID != nil {
		if c, ok := r.byCustomer[*customerID]; ok {
			return Resolution{Kind: ByCustomer, Consent: c}
		}
	}
	if normalized, ok := phone.Normalize(rawPhone, r.countryCode); ok {
		if c, ok := r.byPhone[normalized]; ok {
			return Resolution{Kind: ByPhone, Consent: c}
		}
	}
	return Resolution{Kind: NotFound}
}
