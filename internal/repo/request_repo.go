// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ScheduleRequest model. The fingerprint unique index is the single source
// of truth for "first writer wins": CreateRequest surfaces the constraint
// violation as ErrDuplicate so the service layer can resolve it into an
// idempotent hit instead of an error.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shiftdesk/go-schedule-backend/internal/domain"
)

// CreateRequest inserts a schedule request row. Returns ErrDuplicate on a
// fingerprint collision; callers re-fetch the winner by fingerprint.
func CreateRequest(ctx context.Context, db *gorm.DB, r *domain.ScheduleRequest) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetRequest fetches a request by ID, or ErrNotFound.
func GetRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ScheduleRequest, error) {
	var r domain.ScheduleRequest
	if err := db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRequestByFingerprint returns the request matching fingerprint, or nil
// when none exists.
func GetRequestByFingerprint(ctx context.Context, db *gorm.DB, fingerprint string) (*domain.ScheduleRequest, error) {
	var r domain.ScheduleRequest
	err := db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequestsForEmployee returns requests where the employee is the
// requester or the swap partner, newest first.
func ListRequestsForEmployee(ctx context.Context, db *gorm.DB, employeeID string) ([]domain.ScheduleRequest, error) {
	var out []domain.ScheduleRequest
	err := db.WithContext(ctx).
		Where("requester_employee_id = ? OR partner_employee_id = ?", employeeID, employeeID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListAllRequests returns every request, newest first (admin view).
func ListAllRequests(ctx context.Context, db *gorm.DB) ([]domain.ScheduleRequest, error) {
	var out []domain.ScheduleRequest
	err := db.WithContext(ctx).Order("created_at desc").Find(&out).Error
	return out, err
}

// ListRequestsByStatus returns requests in any of the given statuses, oldest
// first (approval queues act on the oldest work first).
func ListRequestsByStatus(ctx context.Context, db *gorm.DB, statuses ...domain.RequestStatus) ([]domain.ScheduleRequest, error) {
	var out []domain.ScheduleRequest
	err := db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListPartnerPending returns pending_partner requests awaiting the given
// partner's consent.
func ListPartnerPending(ctx context.Context, db *gorm.DB, partnerID string) ([]domain.ScheduleRequest, error) {
	var out []domain.ScheduleRequest
	err := db.WithContext(ctx).
		Where("status = ? AND partner_employee_id = ?", domain.StatusPendingPartner, partnerID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// UpdateStatusIf flips the request's status to next only when its current
// status is one of from, as a single conditional UPDATE so exactly one
// concurrent caller wins. Reports whether this caller won.
func UpdateStatusIf(ctx context.Context, db *gorm.DB, id string, next domain.RequestStatus, from ...domain.RequestStatus) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.ScheduleRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindPendingFillByCoverageShift returns the pending_fill request whose
// coverage shift is shiftID, or nil when there is none.
func FindPendingFillByCoverageShift(ctx context.Context, db *gorm.DB, shiftID string) (*domain.ScheduleRequest, error) {
	var r domain.ScheduleRequest
	err := db.WithContext(ctx).
		Where("coverage_shift_id = ? AND status = ?", shiftID, domain.StatusPendingFill).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// EnsureExtractionVersion lazily creates the extraction version row keyed by
// version string. Idempotent: a concurrent duplicate insert is absorbed.
func EnsureExtractionVersion(ctx context.Context, db *gorm.DB, version, modelUsed, promptTemplate string) error {
	err := db.WithContext(ctx).Create(&domain.ExtractionVersion{
		Version:        version,
		ModelUsed:      modelUsed,
		PromptTemplate: promptTemplate,
		CreatedAt:      time.Now().UTC(),
	}).Error
	if err != nil && !isDuplicate(err) {
		return err
	}
	return nil
}
