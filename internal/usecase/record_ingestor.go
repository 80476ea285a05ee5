package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/errors"
)

// IngestResult holds the typed records of one source and the rejected rest
type IngestResult[T any] struct {
	Source   entity.Source
	Records  []T
	Rejected []*domainErrors.RecordError
}

// Stats summarizes the result for the snapshot
func (r IngestResult[T]) Stats() entity.SourceStats {
	stats := entity.SourceStats{
		Ingested: len(r.Records),
		Rejected: len(r.Rejected),
	}
	if len(r.Rejected) > 0 {
		stats.Reasons = make(map[string]int)
		for _, rej := range r.Rejected {
			stats.Reasons[string(rej.Reason)]++
		}
	}
	return stats
}

// RecordIngestor validates raw ledger rows and shapes them into typed records.
// It holds no per-run state and is safe for concurrent use.
type RecordIngestor struct {
	validate *validator.Validate
	logger   *zap.Logger
}

// NewRecordIngestor creates a new record ingestor
func NewRecordIngestor(logger *zap.Logger) *RecordIngestor {
	return &RecordIngestor{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// IngestPayments ingests the payment ledger
func (i *RecordIngestor) IngestPayments(raws []entity.RawRecord) IngestResult[entity.PaymentRecord] {
	return i.IngestPaymentsFrom(0, raws)
}

// IngestPaymentsFrom ingests a chunk of the payment ledger whose first row sits
// at offset in the full list. Positions and rejection indexes refer to the
// full list, so chunks folded into one ProfileAccumulator merge like the
// whole list.
func (i *RecordIngestor) IngestPaymentsFrom(offset int, raws []entity.RawRecord) IngestResult[entity.PaymentRecord] {
	return ingestAll(i, entity.SourcePayments, offset, raws, i.IngestPayment)
}

// IngestSubscriptions ingests the subscription ledger
func (i *RecordIngestor) IngestSubscriptions(raws []entity.RawRecord) IngestResult[entity.SubscriptionRecord] {
	return i.IngestSubscriptionsFrom(0, raws)
}

// IngestSubscriptionsFrom is IngestPaymentsFrom for the subscription ledger
func (i *RecordIngestor) IngestSubscriptionsFrom(offset int, raws []entity.RawRecord) IngestResult[entity.SubscriptionRecord] {
	return ingestAll(i, entity.SourceSubscriptions, offset, raws, i.IngestSubscription)
}

// IngestLegacyMemberships ingests the legacy membership registry
func (i *RecordIngestor) IngestLegacyMemberships(raws []entity.RawRecord) IngestResult[entity.LegacyMembershipRecord] {
	return i.IngestLegacyMembershipsFrom(0, raws)
}

// IngestLegacyMembershipsFrom is IngestPaymentsFrom for the legacy registry
func (i *RecordIngestor) IngestLegacyMembershipsFrom(offset int, raws []entity.RawRecord) IngestResult[entity.LegacyMembershipRecord] {
	return ingestAll(i, entity.SourceLegacyMemberships, offset, raws, i.IngestLegacyMembership)
}

func ingestAll[T any](
	i *RecordIngestor,
	source entity.Source,
	offset int,
	raws []entity.RawRecord,
	ingest func(index int, raw entity.RawRecord) (*T, *domainErrors.RecordError),
) IngestResult[T] {
	result := IngestResult[T]{
		Source:  source,
		Records: make([]T, 0, len(raws)),
	}
	for index, raw := range raws {
		rec, rejection := ingest(offset+index, raw)
		if rejection != nil {
			result.Rejected = append(result.Rejected, rejection)
			continue
		}
		result.Records = append(result.Records, *rec)
	}

	if len(result.Rejected) > 0 {
		i.logger.Warn("Rejected malformed records",
			zap.String("source", string(source)),
			zap.Int("rejected", len(result.Rejected)),
			zap.Int("ingested", len(result.Records)))
	}
	return result
}

// IngestPayment shapes one raw payment row
func (i *RecordIngestor) IngestPayment(index int, raw entity.RawRecord) (*entity.PaymentRecord, *domainErrors.RecordError) {
	src := string(entity.SourcePayments)

	id, rejection := requireCustomerID(src, index, raw)
	if rejection != nil {
		return nil, rejection
	}

	v, ok := raw.Lookup(amountKeys...)
	if !ok {
		return nil, domainErrors.NewInvalidAmountError(src, index, amountKeys[0], errors.New("amount is required"))
	}
	amount, err := parseAmount(v)
	if err != nil {
		return nil, domainErrors.NewInvalidAmountError(src, index, amountKeys[0], err)
	}

	v, ok = raw.Lookup(paidAtKeys...)
	if !ok {
		return nil, domainErrors.NewInvalidTimestampError(src, index, paidAtKeys[0], errors.New("timestamp is required"))
	}
	paidAt, err := parseTimestamp(v)
	if err != nil {
		return nil, domainErrors.NewInvalidTimestampError(src, index, paidAtKeys[0], err)
	}

	if status := strings.ToLower(raw.String(statusKeys...)); status != "" && !entity.IsRevenueStatus(status) {
		return nil, domainErrors.NewInvalidStatusError(src, index, statusKeys[0],
			fmt.Errorf("payment status %q is not collected revenue", status))
	}

	rec := &entity.PaymentRecord{
		CustomerID: id,
		Amount:     amount,
		Currency:   entity.NormalizeCurrency(raw.String(currencyKeys...)),
		PaidAt:     paidAt,
		Source:     raw.String(paymentSrcKeys...),
		Method:     raw.String(methodKeys...),
		Display:    displayFrom(raw),
		Position:   index,
	}
	if rejection := i.validateStruct(src, index, rec); rejection != nil {
		return nil, rejection
	}
	return rec, nil
}

// IngestSubscription shapes one raw subscription row
func (i *RecordIngestor) IngestSubscription(index int, raw entity.RawRecord) (*entity.SubscriptionRecord, *domainErrors.RecordError) {
	src := string(entity.SourceSubscriptions)

	id, rejection := requireCustomerID(src, index, raw)
	if rejection != nil {
		return nil, rejection
	}

	var amount decimal.NullDecimal
	if v, ok := raw.Lookup(amountKeys...); ok {
		parsed, err := parseAmount(v)
		if err != nil {
			return nil, domainErrors.NewInvalidAmountError(src, index, amountKeys[0], err)
		}
		amount = decimal.NewNullDecimal(parsed)
	}

	v, ok := raw.Lookup(startedAtKeys...)
	if !ok {
		return nil, domainErrors.NewInvalidTimestampError(src, index, startedAtKeys[0], errors.New("started_at is required"))
	}
	startedAt, err := parseTimestamp(v)
	if err != nil {
		return nil, domainErrors.NewInvalidTimestampError(src, index, startedAtKeys[0], err)
	}
	expiresAt, field, err := optionalTimestamp(raw, expiresAtKeys)
	if err != nil {
		return nil, domainErrors.NewInvalidTimestampError(src, index, field, err)
	}
	cancelledAt, field, err := optionalTimestamp(raw, cancelledAtKeys)
	if err != nil {
		return nil, domainErrors.NewInvalidTimestampError(src, index, field, err)
	}

	currency := entity.NormalizeCurrency(raw.String(currencyKeys...))
	if amount.Valid && currency == "" {
		return nil, domainErrors.NewInvalidCurrencyError(src, index, currencyKeys[0], errors.New("currency is required with an amount"))
	}

	rec := &entity.SubscriptionRecord{
		CustomerID:  id,
		Plan:        raw.String(planKeys...),
		Status:      normalizeSubscriptionStatus(raw.String(statusKeys...)),
		Amount:      amount,
		Currency:    currency,
		StartedAt:   startedAt,
		ExpiresAt:   expiresAt,
		CancelledAt: cancelledAt,
		Display:     displayFrom(raw),
		Position:    index,
	}
	if rejection := i.validateStruct(src, index, rec); rejection != nil {
		return nil, rejection
	}
	return rec, nil
}

// IngestLegacyMembership shapes one raw legacy registry row
func (i *RecordIngestor) IngestLegacyMembership(index int, raw entity.RawRecord) (*entity.LegacyMembershipRecord, *domainErrors.RecordError) {
	src := string(entity.SourceLegacyMemberships)

	id, rejection := requireCustomerID(src, index, raw)
	if rejection != nil {
		return nil, rejection
	}

	v, ok := raw.Lookup(createdAtKeys...)
	if !ok {
		return nil, domainErrors.NewInvalidTimestampError(src, index, createdAtKeys[0], errors.New("created_at is required"))
	}
	createdAt, err := parseTimestamp(v)
	if err != nil {
		return nil, domainErrors.NewInvalidTimestampError(src, index, createdAtKeys[0], err)
	}
	expiresAt, field, err := optionalTimestamp(raw, expiresAtKeys)
	if err != nil {
		return nil, domainErrors.NewInvalidTimestampError(src, index, field, err)
	}

	rec := &entity.LegacyMembershipRecord{
		CustomerID: id,
		Plan:       raw.String(planKeys...),
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
		Source:     raw.String(paymentSrcKeys...),
		Display:    displayFrom(raw),
		Position:   index,
	}
	if rejection := i.validateStruct(src, index, rec); rejection != nil {
		return nil, rejection
	}
	return rec, nil
}

func requireCustomerID(src string, index int, raw entity.RawRecord) (entity.CustomerID, *domainErrors.RecordError) {
	v, ok := raw.Lookup(customerIDKeys...)
	if !ok {
		return "", domainErrors.NewMissingIdentifierError(src, index, customerIDKeys[0], nil)
	}
	id, err := parseCustomerID(v)
	if err != nil {
		return "", domainErrors.NewMissingIdentifierError(src, index, customerIDKeys[0], err)
	}
	return id, nil
}

func normalizeSubscriptionStatus(status string) entity.SubscriptionStatus {
	s := strings.ToLower(status)
	if s == "canceled" {
		s = string(entity.SubscriptionStatusCancelled)
	}
	return entity.SubscriptionStatus(s)
}

// validateStruct runs the struct tags of a shaped record and maps the first
// failing field to a rejection reason.
func (i *RecordIngestor) validateStruct(src string, index int, rec interface{}) *domainErrors.RecordError {
	err := i.validate.Struct(rec)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domainErrors.NewMissingIdentifierError(src, index, "", err)
	}

	fe := fieldErrs[0]
	switch fe.Field() {
	case "CustomerID":
		return domainErrors.NewMissingIdentifierError(src, index, "customer_id", fe)
	case "Currency":
		return domainErrors.NewInvalidCurrencyError(src, index, "currency", fe)
	case "Status":
		return domainErrors.NewInvalidStatusError(src, index, "status", fe)
	case "PaidAt", "StartedAt", "CreatedAt":
		return domainErrors.NewInvalidTimestampError(src, index, strings.ToLower(fe.Field()), fe)
	default:
		return domainErrors.NewInvalidAmountError(src, index, fe.Field(), fe)
	}
}
