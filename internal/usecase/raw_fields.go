package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
)

// Field aliases accepted from the three ledgers. The first present key wins.
var (
	customerIDKeys  = []string{"customer_id", "customerId", "telegram_id"}
	amountKeys      = []string{"amount"}
	currencyKeys    = []string{"currency"}
	statusKeys      = []string{"status"}
	paidAtKeys      = []string{"timestamp", "paid_at", "paidAt", "created_at", "createdAt"}
	paymentSrcKeys  = []string{"source"}
	methodKeys      = []string{"method", "payment_method"}
	planKeys        = []string{"plan", "tier"}
	startedAtKeys   = []string{"started_at", "startedAt"}
	expiresAtKeys   = []string{"expires_at", "expiresAt"}
	cancelledAtKeys = []string{"cancelled_at", "cancelledAt", "canceled_at"}
	createdAtKeys   = []string{"created_at", "createdAt", "started_at", "startedAt"}
	usernameKeys    = []string{"username", "handle"}
	firstNameKeys   = []string{"first_name", "firstName", "name"}
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

var (
	errNotANumber      = errors.New("not a number")
	errNotFinite       = errors.New("not a finite number")
	errNegative        = errors.New("negative amount")
	errNotAnIdentifier = errors.New("not a usable identifier")
	errNotATimestamp   = errors.New("not a timestamp")
)

// parseCustomerID accepts strings and integral numbers
func parseCustomerID(v interface{}) (entity.CustomerID, error) {
	switch id := v.(type) {
	case string:
		s := strings.TrimSpace(id)
		if s == "" {
			return "", errNotAnIdentifier
		}
		return entity.CustomerID(s), nil
	case json.Number:
		if _, err := id.Int64(); err != nil {
			return "", errNotAnIdentifier
		}
		return entity.CustomerID(id.String()), nil
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) || id != math.Trunc(id) {
			return "", errNotAnIdentifier
		}
		return entity.CustomerID(strconv.FormatFloat(id, 'f', -1, 64)), nil
	case int:
		return entity.CustomerID(strconv.FormatInt(int64(id), 10)), nil
	case int32:
		return entity.CustomerID(strconv.FormatInt(int64(id), 10)), nil
	case int64:
		return entity.CustomerID(strconv.FormatInt(id, 10)), nil
	case uint64:
		return entity.CustomerID(strconv.FormatUint(id, 10)), nil
	case fmt.Stringer:
		return parseCustomerID(id.String())
	default:
		return "", errNotAnIdentifier
	}
}

// parseAmount accepts numbers, numeric strings and decimals; the result is
// finite and non-negative.
func parseAmount(v interface{}) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch a := v.(type) {
	case decimal.Decimal:
		amount = a
	case float64:
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return decimal.Zero, errNotFinite
		}
		amount = decimal.NewFromFloat(a)
	case float32:
		f := float64(a)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, errNotFinite
		}
		amount = decimal.NewFromFloat32(a)
	case int:
		amount = decimal.NewFromInt(int64(a))
	case int64:
		amount = decimal.NewFromInt(a)
	case int32:
		amount = decimal.NewFromInt32(a)
	case json.Number:
		d, err := decimal.NewFromString(a.String())
		if err != nil {
			return decimal.Zero, errNotANumber
		}
		amount = d
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(a))
		if err != nil {
			return decimal.Zero, errNotANumber
		}
		amount = d
	default:
		return decimal.Zero, errNotANumber
	}

	if amount.IsNegative() {
		return decimal.Zero, errNegative
	}
	return amount, nil
}

// parseTimestamp accepts time values and the textual layouts the ledgers emit.
// Results are in UTC.
func parseTimestamp(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, errNotATimestamp
		}
		return t.UTC(), nil
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, errNotATimestamp
		}
		return t.UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", errNotATimestamp, s)
	default:
		return time.Time{}, errNotATimestamp
	}
}

// optionalTimestamp parses an optional timestamp field. An absent field
// yields nil without error.
func optionalTimestamp(raw entity.RawRecord, keys []string) (*time.Time, string, error) {
	v, ok := raw.Lookup(keys...)
	if !ok {
		return nil, "", nil
	}
	t, err := parseTimestamp(v)
	if err != nil {
		return nil, keys[0], err
	}
	return &t, "", nil
}

func displayFrom(raw entity.RawRecord) entity.DisplayMetadata {
	return entity.DisplayMetadata{
		Username:  strings.TrimPrefix(raw.String(usernameKeys...), "@"),
		FirstName: raw.String(firstNameKeys...),
	}
}
