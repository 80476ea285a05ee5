package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
)

// Payment represents a row of the one-off payment ledger
type Payment struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TelegramID    int64           `gorm:"column:telegram_id;not null;index" json:"telegram_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	Currency      string          `gorm:"size:3;default:'RUB'" json:"currency"`
	Status        *string         `gorm:"size:50" json:"status,omitempty"`
	Source        *string         `gorm:"size:50" json:"source,omitempty"`
	PaymentMethod *string         `gorm:"column:payment_method;size:50" json:"payment_method,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

// ToRawRecord flattens the row for the ingestor
func (p *Payment) ToRawRecord() entity.RawRecord {
	raw := entity.RawRecord{
		"customer_id": strconv.FormatInt(p.TelegramID, 10),
		"amount":      p.Amount,
		"currency":    p.Currency,
		"created_at":  p.CreatedAt,
	}
	if p.PaidAt != nil {
		raw["paid_at"] = *p.PaidAt
	}
	setOptional(raw, "status", p.Status)
	setOptional(raw, "source", p.Source)
	setOptional(raw, "method", p.PaymentMethod)
	return raw
}

// UserSubscription represents a row of the recurring-subscription ledger
type UserSubscription struct {
	ID          int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TelegramID  int64            `gorm:"column:telegram_id;not null;index" json:"telegram_id"`
	Plan        string           `gorm:"size:50;not null" json:"plan"`
	Status      string           `gorm:"size:50;not null" json:"status"`
	Amount      *decimal.Decimal `gorm:"type:numeric(15,2)" json:"amount,omitempty"`
	Currency    *string          `gorm:"size:3" json:"currency,omitempty"`
	StartedAt   time.Time        `gorm:"not null" json:"started_at"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	CancelledAt *time.Time       `json:"cancelled_at,omitempty"`
	Username    *string          `gorm:"size:100" json:"username,omitempty"`
	FirstName   *string          `gorm:"size:100" json:"first_name,omitempty"`
}

// TableName specifies the table name for GORM
func (UserSubscription) TableName() string {
	return "user_subscriptions"
}

// ToRawRecord flattens the row for the ingestor
func (s *UserSubscription) ToRawRecord() entity.RawRecord {
	raw := entity.RawRecord{
		"customer_id": strconv.FormatInt(s.TelegramID, 10),
		"plan":        s.Plan,
		"status":      s.Status,
		"started_at":  s.StartedAt,
	}
	if s.Amount != nil {
		raw["amount"] = *s.Amount
	}
	if s.ExpiresAt != nil {
		raw["expires_at"] = *s.ExpiresAt
	}
	if s.CancelledAt != nil {
		raw["cancelled_at"] = *s.CancelledAt
	}
	setOptional(raw, "currency", s.Currency)
	setOptional(raw, "username", s.Username)
	setOptional(raw, "first_name", s.FirstName)
	return raw
}

// PremiumClient represents a row of the legacy membership registry
type PremiumClient struct {
	TelegramID    int64      `gorm:"column:telegram_id;primaryKey" json:"telegram_id"`
	Plan          string     `gorm:"size:50;not null" json:"plan"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Source        *string    `gorm:"size:50" json:"source,omitempty"`
	PaymentMethod *string    `gorm:"column:payment_method;size:50" json:"payment_method,omitempty"`
	Username      *string    `gorm:"size:100" json:"username,omitempty"`
	FirstName     *string    `gorm:"size:100" json:"first_name,omitempty"`
	CreatedAt     time.Time  `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (PremiumClient) TableName() string {
	return "premium_clients"
}

// ToRawRecord flattens the row for the ingestor
func (c *PremiumClient) ToRawRecord() entity.RawRecord {
	raw := entity.RawRecord{
		"customer_id": strconv.FormatInt(c.TelegramID, 10),
		"plan":        c.Plan,
		"created_at":  c.CreatedAt,
	}
	if c.ExpiresAt != nil {
		raw["expires_at"] = *c.ExpiresAt
	}
	setOptional(raw, "source", c.Source)
	setOptional(raw, "username", c.Username)
	setOptional(raw, "first_name", c.FirstName)
	return raw
}

func setOptional(raw entity.RawRecord, key string, value *string) {
	if value != nil {
		raw[key] = *value
	}
}
