package entity

import "time"

// LegacyMembershipRecord is an entry from the legacy membership registry
type LegacyMembershipRecord struct {
	CustomerID CustomerID      `json:"customer_id" validate:"required"`
	Plan       string          `json:"plan"`
	CreatedAt  time.Time       `json:"created_at" validate:"required"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
	Source     string          `json:"source,omitempty"`
	Display    DisplayMetadata `json:"-"`
	Position   int             `json:"-"`
}

// ExpiredAt reports whether the membership has an expiry strictly before t
func (l *LegacyMembershipRecord) ExpiredAt(t time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(t)
}
