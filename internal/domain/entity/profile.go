package entity

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnifiedCustomerProfile is the merged financial view of one customer.
// It is derived on every run and never edited by hand.
type UnifiedCustomerProfile struct {
	CustomerID             CustomerID                 `json:"customer_id"`
	RevenueByCurrency      map[string]decimal.Decimal `json:"revenue_by_currency"`
	TotalRevenueNormalized decimal.Decimal            `json:"total_revenue_normalized"`
	TransactionCount       int                        `json:"transaction_count"`
	FirstActivityAt        *time.Time                 `json:"first_activity_at,omitempty"`
	LastActivityAt         *time.Time                 `json:"last_activity_at,omitempty"`
	ActiveSubscription     *SubscriptionRecord        `json:"active_subscription"`
	LegacyMembership       *LegacyMembershipRecord    `json:"legacy_membership"`
	Display                DisplayMetadata            `json:"display"`
	Warnings               []string                   `json:"warnings,omitempty"`
}

// Flagged reports whether the profile carries data-quality warnings
func (p *UnifiedCustomerProfile) Flagged() bool {
	return len(p.Warnings) > 0
}

// Currencies returns the revenue bucket keys in sorted order
func (p *UnifiedCustomerProfile) Currencies() []string {
	currencies := make([]string, 0, len(p.RevenueByCurrency))
	for c := range p.RevenueByCurrency {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	return currencies
}

// EffectivePlan is the plan of the active subscription, falling back to the
// legacy membership plan. The result is upper-cased.
func (p *UnifiedCustomerProfile) EffectivePlan() string {
	if p.ActiveSubscription != nil && p.ActiveSubscription.Plan != "" {
		return strings.ToUpper(p.ActiveSubscription.Plan)
	}
	if p.LegacyMembership != nil {
		return strings.ToUpper(p.LegacyMembership.Plan)
	}
	return ""
}

// EffectiveExpiry is the expiry of the active subscription, falling back to
// the legacy membership expiry.
func (p *UnifiedCustomerProfile) EffectiveExpiry() *time.Time {
	if p.ActiveSubscription != nil {
		return p.ActiveSubscription.ExpiresAt
	}
	if p.LegacyMembership != nil {
		return p.LegacyMembership.ExpiresAt
	}
	return nil
}
