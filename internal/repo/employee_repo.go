// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Employee
// model, including the case-insensitive name resolution used by the rule
// engine (zero, one, or many matches is a first-class outcome).
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shiftdesk/go-schedule-backend/internal/domain"
)

// CreateEmployee inserts a new employee row with a generated UUID.
func CreateEmployee(ctx context.Context, db *gorm.DB, e *domain.Employee) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(e).Error
}

// GetEmployee fetches an employee by ID, or ErrNotFound.
func GetEmployee(ctx context.Context, db *gorm.DB, id string) (*domain.Employee, error) {
	var e domain.Employee
	if err := db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEmployees returns all employees ordered by full name.
func ListEmployees(ctx context.Context, db *gorm.DB) ([]domain.Employee, error) {
	var out []domain.Employee
	err := db.WithContext(ctx).Order("full_name asc").Find(&out).Error
	return out, err
}

// FindEmployeesByName resolves employees by first-and-last, first-only, or
// last-only name, whichever is supplied. Matching is case-insensitive so
// "john"/"doe" finds "John"/"Doe". Returns zero, one, or many rows; callers
// decide how to treat ambiguity. Both names blank returns no rows.
func FindEmployeesByName(ctx context.Context, db *gorm.DB, first, last string) ([]domain.Employee, error) {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	if first == "" && last == "" {
		return nil, nil
	}

	q := db.WithContext(ctx).Model(&domain.Employee{})
	switch {
	case first != "" && last != "":
		q = q.Where("LOWER(first_name) = LOWER(?) AND LOWER(last_name) = LOWER(?)", first, last)
	case first != "":
		q = q.Where("LOWER(first_name) = LOWER(?)", first)
	default:
		q = q.Where("LOWER(last_name) = LOWER(?)", last)
	}

	var out []domain.Employee
	err := q.Find(&out).Error
	return out, err
}

// FindEmployeesByIDs returns the employees matching the given IDs, in no
// particular order. Missing IDs are silently absent from the result.
func FindEmployeesByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Employee
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// CountEmployeesByExactName counts employees with the given first/last name,
// excluding excludeID when non-empty. Used for duplicate-name detection in
// admin CRUD.
func CountEmployeesByExactName(ctx context.Context, db *gorm.DB, first, last, excludeID string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Employee{}).
		Where("LOWER(first_name) = LOWER(?) AND LOWER(last_name) = LOWER(?)", first, last)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// UpdateEmployee persists mutable attribute changes for an existing employee.
// Returns ErrNotFound when the row does not exist.
func UpdateEmployee(ctx context.Context, db *gorm.DB, e *domain.Employee) error {
	res := db.WithContext(ctx).Model(&domain.Employee{}).Where("id = ?", e.ID).
		Select("FirstName", "LastName", "FullName", "Role", "Certifications", "Skills", "Availability", "UpdatedAt").
		Updates(e)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEmployee removes an employee row. Returns ErrNotFound when absent.
func DeleteEmployee(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Delete(&domain.Employee{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
