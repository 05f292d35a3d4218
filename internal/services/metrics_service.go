// Package services – MetricsService
//
// Thin wrapper over the latency aggregates kept in request_metrics. These
// numbers report on the pipeline; they never feed back into decisions.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/shiftdesk/go-schedule-backend/internal/repo"
)

// MetricsService reports request-processing latency aggregates.
type MetricsService struct {
	// DB is the GORM handle used for reads.
	DB *gorm.DB
}

// NewMetricsService constructs a MetricsService.
func NewMetricsService(db *gorm.DB) *MetricsService {
	return &MetricsService{DB: db}
}

// Summarize returns counts, approval rate, and latency averages, optionally
// limited to requests created in the trailing window.
func (s *MetricsService) Summarize(ctx context.Context, window time.Duration) (*repo.MetricsSummary, error) {
	var since *time.Time
	if window > 0 {
		t := time.Now().UTC().Add(-window)
		since = &t
	}
	return repo.SummarizeMetrics(ctx, s.DB, since)
}
