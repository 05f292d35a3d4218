// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file covers the write-once RequestMetrics timestamps,
// the append-only audit log, and the latency aggregates reported to admins.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shiftdesk/go-schedule-backend/internal/domain"
)

// CreateRequestMetrics inserts the metrics row for a freshly created request.
func CreateRequestMetrics(ctx context.Context, db *gorm.DB, m *domain.RequestMetrics) error {
	return db.WithContext(ctx).Create(m).Error
}

// SetMetricsTimestamp sets one of the nullable timestamp columns
// (parsed_at, validated_at, approved_at, rejected_at) at most once: the
// update is a no-op when the column already holds a value.
func SetMetricsTimestamp(ctx context.Context, db *gorm.DB, requestID, column string, at time.Time) error {
	return db.WithContext(ctx).Model(&domain.RequestMetrics{}).
		Where("request_id = ? AND "+column+" IS NULL", requestID).
		Update(column, at).Error
}

// AppendAudit writes one append-only audit entry. Core components never read
// these rows back.
func AppendAudit(ctx context.Context, db *gorm.DB, action string, meta domain.JSONMap) error {
	return db.WithContext(ctx).Create(&domain.AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		Meta:      meta,
		Timestamp: time.Now().UTC(),
	}).Error
}

// MetricsSummary aggregates request counts and latency averages for the
// admin metrics report.
type MetricsSummary struct {
	TotalRequests         int64   `json:"total_requests"`
	ApprovalRate          float64 `json:"approval_rate"`
	AverageProcessingTime float64 `json:"average_processing_time"`
	ParseTimeAvg          float64 `json:"parse_time_avg"`
	ValidationTimeAvg     float64 `json:"validation_time_avg"`
	ApprovalLatencyAvg    float64 `json:"approval_latency_avg"`
}

// SummarizeMetrics computes the aggregate latency report, optionally limited
// to requests created at or after since. Averages are in seconds; SQLite's
// julianday arithmetic keeps the math in SQL.
func SummarizeMetrics(ctx context.Context, db *gorm.DB, since *time.Time) (*MetricsSummary, error) {
	base := db.WithContext(ctx).Model(&domain.ScheduleRequest{})
	if since != nil {
		base = base.Where("schedule_requests.created_at >= ?", *since)
	}

	var total, approved int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", domain.StatusApproved).
		Count(&approved).Error; err != nil {
		return nil, err
	}

	avg := func(startCol, endCol string) (float64, error) {
		q := db.WithContext(ctx).Model(&domain.RequestMetrics{}).
			Joins("JOIN schedule_requests ON schedule_requests.id = request_metrics.request_id").
			Where(endCol + " IS NOT NULL")
		if since != nil {
			q = q.Where("schedule_requests.created_at >= ?", *since)
		}
		var row struct{ Avg *float64 }
		err := q.Select("AVG((julianday(" + endCol + ") - julianday(" + startCol + ")) * 86400.0) AS avg").
			Scan(&row).Error
		if err != nil || row.Avg == nil {
			return 0, err
		}
		return *row.Avg, nil
	}

	out := &MetricsSummary{TotalRequests: total}
	if total > 0 {
		out.ApprovalRate = float64(approved) / float64(total)
	}
	var err error
	if out.AverageProcessingTime, err = avg("submitted_at", "validated_at"); err != nil {
		return nil, err
	}
	if out.ParseTimeAvg, err = avg("submitted_at", "parsed_at"); err != nil {
		return nil, err
	}
	if out.ValidationTimeAvg, err = avg("parsed_at", "validated_at"); err != nil {
		return nil, err
	}
	if out.ApprovalLatencyAvg, err = avg("validated_at", "approved_at"); err != nil {
		return nil, err
	}
	return out, nil
}
