package entity

// CustomerID is the external customer identifier shared by every source.
// Integer identifiers are carried in their base-10 string form.
type CustomerID string

func (id CustomerID) String() string {
	return string(id)
}

// Source names one of the three ledgers feeding a reconciliation run
type Source string

const (
	SourcePayments          Source = "payments"
	SourceSubscriptions     Source = "subscriptions"
	SourceLegacyMemberships Source = "legacy_memberships"
)

// Sources lists every source in display-metadata priority order.
var Sources = []Source{SourcePayments, SourceSubscriptions, SourceLegacyMemberships}

// DisplayMetadata holds best-effort presentation fields for a customer
type DisplayMetadata struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}
