// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Shift
// model. Slots are identified by (date, type); that pair is unique at the
// storage layer, so "first match" lookups are exact.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shiftdesk/go-schedule-backend/internal/domain"
)

// CreateShift inserts a new shift row with a generated UUID. Returns
// ErrDuplicate when the (date, type) slot already exists.
func CreateShift(ctx context.Context, db *gorm.DB, s *domain.Shift) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetShift fetches a shift by ID, or ErrNotFound.
func GetShift(ctx context.Context, db *gorm.DB, id string) (*domain.Shift, error) {
	var s domain.Shift
	if err := db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetShiftBySlot fetches the shift occupying (date, type), or nil when the
// slot has no row yet. A missing slot is not an error: targets need not
// pre-exist.
func GetShiftBySlot(ctx context.Context, db *gorm.DB, date domain.Date, typ domain.ShiftType) (*domain.Shift, error) {
	var s domain.Shift
	err := db.WithContext(ctx).Where("date = ? AND type = ?", date, typ).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetAssignedShiftBySlot fetches the shift at (date, type) only when it is
// assigned to employeeID; nil when no such row exists.
func GetAssignedShiftBySlot(ctx context.Context, db *gorm.DB, date domain.Date, typ domain.ShiftType, employeeID string) (*domain.Shift, error) {
	var s domain.Shift
	err := db.WithContext(ctx).
		Where("date = ? AND type = ? AND assigned_employee_id = ?", date, typ, employeeID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListShiftsInRange returns shifts with from <= date <= to, optionally
// restricted to one assignee, ordered by date then type.
func ListShiftsInRange(ctx context.Context, db *gorm.DB, from, to domain.Date, employeeID string) ([]domain.Shift, error) {
	q := db.WithContext(ctx).Where("date >= ? AND date <= ?", from, to)
	if employeeID != "" {
		q = q.Where("assigned_employee_id = ?", employeeID)
	}
	var out []domain.Shift
	err := q.Order("date asc, type asc").Find(&out).Error
	return out, err
}

// ListShiftsForEmployeeOn returns the shifts assigned to employeeID on the
// given date. Used to infer a missing shift type during normalization.
func ListShiftsForEmployeeOn(ctx context.Context, db *gorm.DB, employeeID string, date domain.Date) ([]domain.Shift, error) {
	var out []domain.Shift
	err := db.WithContext(ctx).
		Where("assigned_employee_id = ? AND date = ?", employeeID, date).
		Order("type asc").
		Find(&out).Error
	return out, err
}

// CountShiftsInWeek counts slots assigned to employeeID within the inclusive
// [weekStart, weekEnd] range. Feeds the candidate workload display.
func CountShiftsInWeek(ctx context.Context, db *gorm.DB, employeeID string, weekStart, weekEnd domain.Date) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Shift{}).
		Where("assigned_employee_id = ? AND date >= ? AND date <= ?", employeeID, weekStart, weekEnd).
		Count(&n).Error
	return n, err
}

// SetShiftAssignee overwrites the shift's assigned employee (last write wins;
// the admin is an authority at this layer). Returns ErrNotFound when the
// shift does not exist.
func SetShiftAssignee(ctx context.Context, db *gorm.DB, shiftID string, employeeID *string) error {
	res := db.WithContext(ctx).Model(&domain.Shift{}).
		Where("id = ?", shiftID).
		Update("assigned_employee_id", employeeID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
