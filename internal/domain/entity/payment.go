package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRecord is a validated one-off payment from the payment ledger
type PaymentRecord struct {
	CustomerID CustomerID      `json:"customer_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency" validate:"required,alpha,min=3,max=4"`
	PaidAt     time.Time       `json:"paid_at" validate:"required"`
	Source     string          `json:"source,omitempty"`
	Method     string          `json:"method,omitempty"`
	Display    DisplayMetadata `json:"-"`

	// Position is the index of the record in its source list.
	Position int `json:"-"`
}

// PaymentStatus values that count as collected revenue
const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusCompleted = "completed"
	PaymentStatusPaid      = "paid"
	PaymentStatusSuccess   = "success"
)

// IsRevenueStatus reports whether a raw payment status means money was collected
func IsRevenueStatus(status string) bool {
	switch status {
	case PaymentStatusSucceeded, PaymentStatusCompleted, PaymentStatusPaid, PaymentStatusSuccess:
		return true
	}
	return false
}
