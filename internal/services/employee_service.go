// Package services – EmployeeService
//
// This file implements admin employee administration: list, create, update,
// delete, with duplicate-name detection. Name collisions are refused because
// the rule engine resolves requests by name; two employees with the same
// first/last pair would make every one of their requests ambiguous.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/shiftdesk/go-schedule-backend/internal/domain"
	"github.com/shiftdesk/go-schedule-backend/internal/repo"
)

// EmployeeService provides admin CRUD over employees.
type EmployeeService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// TitleLocale selects the casing rules used to normalize display names.
	TitleLocale language.Tag
}

// NewEmployeeService constructs an EmployeeService.
func NewEmployeeService(db *gorm.DB) *EmployeeService {
	return &EmployeeService{DB: db}
}

// List returns all employees ordered by full name.
func (s *EmployeeService) List(ctx context.Context) ([]domain.Employee, error) {
	return repo.ListEmployees(ctx, s.DB)
}

// Get fetches one employee.
func (s *EmployeeService) Get(ctx context.Context, id string) (*domain.Employee, error) {
	e, err := repo.GetEmployee(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return nil, err
	}
	return e, nil
}

// Create inserts a new employee after checking the name is unique. Names are
// trimmed and title-cased so "john doe" and "John Doe" store identically.
func (s *EmployeeService) Create(ctx context.Context, e *domain.Employee) error {
	s.normalizeName(e)
	if e.Role == "" {
		e.Role = domain.RoleEmployee
	}
	if err := s.checkNameFree(ctx, e.FirstName, e.LastName, ""); err != nil {
		return err
	}
	if err := repo.CreateEmployee(ctx, s.DB, e); err != nil {
		return err
	}
	log.Info().Str("employee_id", e.ID).Str("full_name", e.FullName).Msg("employee created")
	return nil
}

// Update persists attribute changes, re-checking name uniqueness when the
// name changed.
func (s *EmployeeService) Update(ctx context.Context, e *domain.Employee) error {
	s.normalizeName(e)
	if err := s.checkNameFree(ctx, e.FirstName, e.LastName, e.ID); err != nil {
		return err
	}
	if err := repo.UpdateEmployee(ctx, s.DB, e); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrEmployeeNotFound
		}
		return err
	}
	return nil
}

// Delete removes an employee.
func (s *EmployeeService) Delete(ctx context.Context, id string) error {
	if err := repo.DeleteEmployee(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrEmployeeNotFound
		}
		return err
	}
	return nil
}

// TitleLocaleOrDefault returns the configured title-casing locale, falling
// back to English.
func (s *EmployeeService) TitleLocaleOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

func (s *EmployeeService) normalizeName(e *domain.Employee) {
	titleCaser := cases.Title(s.TitleLocaleOrDefault())
	e.FirstName = titleCaser.String(strings.TrimSpace(e.FirstName))
	e.LastName = titleCaser.String(strings.TrimSpace(e.LastName))
}

func (s *EmployeeService) checkNameFree(ctx context.Context, first, last, excludeID string) error {
	n, err := repo.CountEmployeesByExactName(ctx, s.DB, first, last, excludeID)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicateEmployeeName
	}
	return nil
}
