// Package services – ExtractionService
//
// This file implements ExtractionService, which turns raw input (free text via
// the extraction provider, or structured form fields) into a fully-defaulted
// ValidatedExtraction. Two modes share one defaulting path: strict raises on
// any unresolved ambiguity and is used for final submission; lenient collects
// needs-input items and never raises, so interactive preview and final
// submission always agree once the missing fields are filled in.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/shiftdesk/go-schedule-backend/internal/apperr"
	"github.com/shiftdesk/go-schedule-backend/internal/domain"
	"github.com/shiftdesk/go-schedule-backend/internal/llm"
	"github.com/shiftdesk/go-schedule-backend/internal/orgtime"
	"github.com/shiftdesk/go-schedule-backend/internal/repo"
)

// ExtractionService coordinates the extraction provider and the shared
// normalization rules.
type ExtractionService struct {
	// DB is the GORM handle used for shift-type inference lookups.
	DB *gorm.DB
	// Provider is the configured extraction provider.
	Provider llm.Provider
	// Clock supplies org-timezone "today" and window semantics.
	Clock orgtime.Clock
}

// NewExtractionService constructs an ExtractionService.
func NewExtractionService(db *gorm.DB, p llm.Provider, clock orgtime.Clock) *ExtractionService {
	return &ExtractionService{DB: db, Provider: p, Clock: clock}
}

// Extract invokes the provider on free text and returns the draft plus its
// serialized form for the audit trail. The requester-context hint includes a
// stable employee ID only for local providers; hosted providers receive a
// name-only cue.
func (s *ExtractionService) Extract(ctx context.Context, text string, actor *domain.Employee) (*domain.ParsedExtraction, string, error) {
	draft, err := s.Provider.Parse(ctx, text, s.requesterHint(actor), s.Clock.Today())
	if err != nil {
		return nil, "", err
	}
	raw, _ := json.Marshal(draft)
	return draft, string(raw), nil
}

// requesterHint builds the disambiguation cue passed back to the provider.
func (s *ExtractionService) requesterHint(actor *domain.Employee) string {
	if actor == nil {
		return ""
	}
	if s.Provider.Hosted() {
		return fmt.Sprintf("The requester's name is %s.", actor.FullName)
	}
	return fmt.Sprintf("The requester is %s (employee id %s).", actor.FullName, actor.ID)
}

// EnsureVersion lazily records the provider's extraction version.
func (s *ExtractionService) EnsureVersion(ctx context.Context) error {
	return repo.EnsureExtractionVersion(ctx, s.DB,
		s.Provider.ExtractionVersion(), s.Provider.ModelName(), llm.PromptTemplateName)
}

// Normalize converts a draft into a validated extraction. In strict mode any
// unresolved field is a VALIDATION_ERROR; in lenient mode it becomes a
// needs-input item and the validated result is nil. Dates outside the
// scheduling window are discarded to unknown first, never rejected outright.
func (s *ExtractionService) Normalize(ctx context.Context, draft domain.ParsedExtraction, actor *domain.Employee, strict bool) (*domain.ValidatedExtraction, []domain.NeedsInput, error) {
	d := draft
	d.CurrentShiftDate = s.Clock.ClampToWindow(d.CurrentShiftDate)
	d.TargetDate = s.Clock.ClampToWindow(d.TargetDate)
	d.PartnerShiftDate = s.Clock.ClampToWindow(d.PartnerShiftDate)

	if strings.TrimSpace(d.EmployeeFirstName) == "" && strings.TrimSpace(deref(d.EmployeeLastName)) == "" {
		if strict {
			return nil, nil, apperr.New(apperr.CodeValidationError,
				"Please tell us whose shift this request is about.",
				"requester name missing from draft", 422)
		}
		if actor != nil {
			last := actor.LastName
			d.EmployeeFirstName = actor.FirstName
			d.EmployeeLastName = &last
		}
	}

	action := domain.ActionMove
	if d.RequestedAction != nil {
		action = *d.RequestedAction
	}

	targetDate := d.TargetDate
	if targetDate == nil && action == domain.ActionCover && d.CurrentShiftDate != nil {
		targetDate = d.CurrentShiftDate
	}
	if targetDate == nil {
		if strict {
			return nil, nil, apperr.New(apperr.CodeValidationError,
				"What date is this request for? Please include a date within the next 30 days.",
				"target date unresolved after defaulting", 422)
		}
		return nil, []domain.NeedsInput{{
			Field:  "target_date",
			Prompt: "What date is this request for?",
		}}, nil
	}

	targetType := d.TargetShiftType
	if targetType == nil {
		t, need, err := s.inferShiftType(ctx, d, *targetDate, strict)
		if err != nil {
			return nil, nil, err
		}
		if need != nil {
			return nil, []domain.NeedsInput{*need}, nil
		}
		targetType = t
	}

	v := &domain.ValidatedExtraction{
		EmployeeFirstName: strings.TrimSpace(d.EmployeeFirstName),
		EmployeeLastName:  d.EmployeeLastName,
		CurrentShiftDate:  d.CurrentShiftDate,
		CurrentShiftType:  d.CurrentShiftType,
		TargetDate:        *targetDate,
		TargetShiftType:   *targetType,
		RequestedAction:   action,
		Reason:            d.Reason,
		PartnerFirstName:  d.PartnerFirstName,
		PartnerLastName:   d.PartnerLastName,
		PartnerShiftDate:  d.PartnerShiftDate,
		PartnerShiftType:  d.PartnerShiftType,
	}

	switch action {
	case domain.ActionSwap:
		if v.PartnerShiftDate == nil {
			pd := v.TargetDate
			v.PartnerShiftDate = &pd
		}
		if v.PartnerShiftType == nil {
			pt := v.TargetShiftType
			v.PartnerShiftType = &pt
		}
	case domain.ActionCover:
		cd := v.TargetDate
		v.CurrentShiftDate = &cd
		if v.CurrentShiftType == nil {
			ct := v.TargetShiftType
			v.CurrentShiftType = &ct
		}
	}
	return v, nil, nil
}

// inferShiftType resolves a missing target shift type from the requester's
// own assignments on the target date. Exactly one assigned shift adopts its
// type; zero or many is unresolvable and, in lenient mode, becomes a prompt.
func (s *ExtractionService) inferShiftType(ctx context.Context, d domain.ParsedExtraction, date domain.Date, strict bool) (*domain.ShiftType, *domain.NeedsInput, error) {
	ambiguous := &domain.NeedsInput{
		Field:   "target_shift_type",
		Prompt:  fmt.Sprintf("Which shift on %s do you mean?", date),
		Options: []string{string(domain.ShiftMorning), string(domain.ShiftNight)},
	}

	matches, err := repo.FindEmployeesByName(ctx, s.DB, d.EmployeeFirstName, deref(d.EmployeeLastName))
	if err != nil {
		return nil, nil, err
	}
	if len(matches) != 1 {
		if strict {
			return nil, nil, apperr.New(apperr.CodeValidationError,
				"Please specify morning or night for this request.",
				"shift type unresolvable: requester identity not unique", 422)
		}
		return nil, ambiguous, nil
	}

	shifts, err := repo.ListShiftsForEmployeeOn(ctx, s.DB, matches[0].ID, date)
	if err != nil {
		return nil, nil, err
	}
	switch len(shifts) {
	case 1:
		t := shifts[0].Type
		return &t, nil, nil
	case 0:
		if strict {
			return nil, nil, apperr.New(apperr.CodeValidationError,
				fmt.Sprintf("No shift found for you on %s. Please pick a different date or specify the shift.", date),
				"shift type unresolvable: no assigned shift on target date", 422)
		}
		return nil, &domain.NeedsInput{
			Field:  "target_date",
			Prompt: fmt.Sprintf("You have no shift on %s. Pick a different date or specify the shift type.", date),
		}, nil
	default:
		if strict {
			return nil, nil, apperr.New(apperr.CodeValidationError,
				fmt.Sprintf("You have more than one shift on %s. Please specify morning or night.", date),
				"shift type unresolvable: multiple assigned shifts on target date", 422)
		}
		return nil, ambiguous, nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
