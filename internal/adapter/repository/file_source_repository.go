package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/errors"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/repository"
)

// FileSourcePaths locates the JSON exports of the three ledgers
type FileSourcePaths struct {
	Payments          string
	Subscriptions     string
	LegacyMemberships string
}

type fileSourceRepository struct {
	paths  FileSourcePaths
	logger *zap.Logger
}

// NewFileSourceRepository creates a source repository reading JSON array
// exports. An empty path yields an empty source.
func NewFileSourceRepository(paths FileSourcePaths, logger *zap.Logger) repository.SourceRepository {
	return &fileSourceRepository{
		paths:  paths,
		logger: logger,
	}
}

func (r *fileSourceRepository) FetchPayments(ctx context.Context) ([]entity.RawRecord, error) {
	return r.read(ctx, entity.SourcePayments, r.paths.Payments)
}

func (r *fileSourceRepository) FetchSubscriptions(ctx context.Context) ([]entity.RawRecord, error) {
	return r.read(ctx, entity.SourceSubscriptions, r.paths.Subscriptions)
}

func (r *fileSourceRepository) FetchLegacyMemberships(ctx context.Context) ([]entity.RawRecord, error) {
	return r.read(ctx, entity.SourceLegacyMemberships, r.paths.LegacyMemberships)
}

func (r *fileSourceRepository) read(ctx context.Context, source entity.Source, path string) ([]entity.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return []entity.RawRecord{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", source, domainErrors.ErrUnreadableSource, err)
	}

	records, err := DecodeRawRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", source, domainErrors.ErrUnreadableSource, err)
	}

	r.logger.Debug("Loaded source file",
		zap.String("source", string(source)),
		zap.String("path", path),
		zap.Int("records", len(records)))
	return records, nil
}

// DecodeRawRecords parses a JSON array of objects. Numbers are kept as
// json.Number so amounts and identifiers keep their exact text.
func DecodeRawRecords(data []byte) ([]entity.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var records []entity.RawRecord
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after the record array")
	}
	if records == nil {
		records = []entity.RawRecord{}
	}
	return records, nil
}
