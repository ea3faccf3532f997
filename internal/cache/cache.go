package cache

import (
	"context"
	"time"

	"partspos/backend/internal/domain"
)

type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.ComplianceReport, bool, error)
	Set(ctx context.Context, key string, value *domain.ComplianceReport, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.ComplianceReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.ComplianceReport, _ time.Duration) error {
	return nil
}
