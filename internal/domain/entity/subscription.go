package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// SubscriptionRecord is a validated entry from the recurring-subscription ledger.
// Amount is optional; a record without one still counts as activity.
type SubscriptionRecord struct {
	CustomerID  CustomerID          `json:"customer_id" validate:"required"`
	Plan        string              `json:"plan"`
	Status      SubscriptionStatus  `json:"status" validate:"required,oneof=active cancelled"`
	Amount      decimal.NullDecimal `json:"amount"`
	Currency    string              `json:"currency,omitempty" validate:"omitempty,alpha,min=3,max=4"`
	StartedAt   time.Time           `json:"started_at" validate:"required"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
	CancelledAt *time.Time          `json:"cancelled_at,omitempty"`
	Display     DisplayMetadata     `json:"-"`
	Position    int                 `json:"-"`
}

// IsActive reports whether the subscription is flagged active in the ledger
func (s *SubscriptionRecord) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// Outranks reports whether s wins the active-subscription tie-break over other:
// later StartedAt first, then the earlier position in the source list.
func (s *SubscriptionRecord) Outranks(other *SubscriptionRecord) bool {
	if other == nil {
		return true
	}
	if !s.StartedAt.Equal(other.StartedAt) {
		return s.StartedAt.After(other.StartedAt)
	}
	return s.Position < other.Position
}
