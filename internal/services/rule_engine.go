// Package services – RuleEngine
//
// This file implements the deterministic rule engine: given a fully-defaulted
// validated extraction it checks skills, certifications, and slot conflicts
// against committed shift assignments and returns the outcome as data. Rule
// violations are never raised as errors; the request is still persisted with
// status rejected. The engine is read-only with respect to Shift and Employee
// and never mutates state.
package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/shiftdesk/go-schedule-backend/internal/apperr"
	"github.com/shiftdesk/go-schedule-backend/internal/domain"
	"github.com/shiftdesk/go-schedule-backend/internal/repo"
)

// maxSuggestions caps the alternative-employee list returned on a conflict.
const maxSuggestions = 3

// Suggestion is one alternative employee offered when a slot conflicts.
type Suggestion struct {
	EmployeeID string `json:"employee_id"`
	FullName   string `json:"full_name"`
}

// RuleResult is the rule engine's verdict. Valid is true iff ErrorCodes is
// empty. Requester and Partner carry the resolved identities (when
// resolution succeeded) so the lifecycle engine can record normalized
// references without re-deriving them.
type RuleResult struct {
	Valid       bool           `json:"valid"`
	ErrorCodes  []apperr.Code  `json:"error_codes"`
	Reason      string         `json:"reason,omitempty"`
	Suggestions []Suggestion   `json:"suggestions"`
	Details     domain.JSONMap `json:"details,omitempty"`

	Requester *domain.Employee `json:"-"`
	Partner   *domain.Employee `json:"-"`
}

func (r *RuleResult) addCode(code apperr.Code, reason string) {
	for _, c := range r.ErrorCodes {
		if c == code {
			return
		}
	}
	r.ErrorCodes = append(r.ErrorCodes, code)
	if r.Reason == "" {
		r.Reason = reason
	} else {
		r.Reason += "; " + reason
	}
}

// RuleEngine validates normalized extractions against business rules.
type RuleEngine struct {
	// DB is the GORM handle used for read-only lookups.
	DB *gorm.DB
}

// NewRuleEngine constructs a RuleEngine.
func NewRuleEngine(db *gorm.DB) *RuleEngine {
	return &RuleEngine{DB: db}
}

// ResolveEmployee resolves an employee by name with first-class ambiguity:
// zero matches yields RULE_EMPLOYEE_NOT_FOUND, two or more yields
// RULE_EMPLOYEE_AMBIGUOUS, exactly one resolves. The returned code is empty
// on success.
func (e *RuleEngine) ResolveEmployee(ctx context.Context, first, last string) (*domain.Employee, apperr.Code, error) {
	matches, err := repo.FindEmployeesByName(ctx, e.DB, first, last)
	if err != nil {
		return nil, apperr.CodeDBError, err
	}
	switch len(matches) {
	case 0:
		return nil, apperr.CodeRuleEmployeeNotFound, nil
	case 1:
		return &matches[0], "", nil
	default:
		return nil, apperr.CodeRuleEmployeeAmbiguous, nil
	}
}

// Validate runs the full rule check for a validated extraction. Move and
// cover requests validate the requester against the target slot; swap
// requests run both one-sided checks (partner into the requester's current
// slot, requester into the partner's slot) and accumulate every violation
// rather than short-circuiting.
func (e *RuleEngine) Validate(ctx context.Context, v domain.ValidatedExtraction) (*RuleResult, error) {
	res := &RuleResult{Suggestions: []Suggestion{}, Details: domain.JSONMap{}}

	requester, code, err := e.ResolveEmployee(ctx, v.EmployeeFirstName, deref(v.EmployeeLastName))
	if err != nil {
		return nil, err
	}
	if code != "" {
		res.addCode(code, fmt.Sprintf("requester %q could not be resolved", v.RequesterName()))
	} else {
		res.Requester = requester
		res.Details["requester_employee_id"] = requester.ID
	}

	switch v.RequestedAction {
	case domain.ActionSwap:
		if err := e.validateSwap(ctx, v, res); err != nil {
			return nil, err
		}
	default:
		if err := e.validateMoveOrCover(ctx, v, res); err != nil {
			return nil, err
		}
	}

	res.Valid = len(res.ErrorCodes) == 0
	return res, nil
}

// validateMoveOrCover checks the requester against the target slot. The
// conflict check is suppressed when the requester already owns the exact
// slot: asking to be covered on one's own shift is not a conflict with
// oneself.
func (e *RuleEngine) validateMoveOrCover(ctx context.Context, v domain.ValidatedExtraction, res *RuleResult) error {
	if res.Requester == nil {
		return nil
	}
	conflict, err := e.checkSide(ctx, res, res.Requester, v.TargetDate, v.TargetShiftType, "")
	if err != nil {
		return err
	}
	if conflict != nil {
		if err := e.suggestAlternatives(ctx, res, conflict); err != nil {
			return err
		}
	}
	return nil
}

// validateSwap runs both one-sided validations and accumulates their errors.
// Only a conflict on the requester's incoming slot (side B) generates
// suggestions; the partner's incoming slot is the requester's own shift and
// a conflict there leaves nobody extra uncovered.
func (e *RuleEngine) validateSwap(ctx context.Context, v domain.ValidatedExtraction, res *RuleResult) error {
	partnerName := v.PartnerName()
	if partnerName == "" {
		res.addCode(apperr.CodeRuleEmployeeNotFound, "swap requires a named partner")
	} else {
		partner, code, err := e.ResolveEmployee(ctx, deref(v.PartnerFirstName), deref(v.PartnerLastName))
		if err != nil {
			return err
		}
		if code != "" {
			res.addCode(code, fmt.Sprintf("partner %q could not be resolved", partnerName))
		} else {
			res.Partner = partner
			res.Details["partner_employee_id"] = partner.ID
		}
	}
	if res.Requester == nil || res.Partner == nil {
		return nil
	}

	// Side A: partner inherits the requester's current slot.
	if v.CurrentShiftDate != nil && v.CurrentShiftType != nil {
		if _, err := e.checkSide(ctx, res, res.Partner, *v.CurrentShiftDate, *v.CurrentShiftType, res.Requester.ID); err != nil {
			return err
		}
	}

	// Side B: requester inherits the partner's slot.
	pd, pt := v.PartnerSlot()
	conflict, err := e.checkSide(ctx, res, res.Requester, pd, pt, res.Partner.ID)
	if err != nil {
		return err
	}
	if conflict != nil {
		if err := e.suggestAlternatives(ctx, res, conflict); err != nil {
			return err
		}
	}
	return nil
}

// checkSide validates one employee against one slot: certification expiry,
// skill containment, and conflict with the incumbent assignee. A missing
// shift row means the slot is unconstrained and always passes. The subject
// and allowedIncumbent never conflict with themselves. Returns the
// conflicting shift when one exists.
func (e *RuleEngine) checkSide(ctx context.Context, res *RuleResult, subject *domain.Employee, date domain.Date, typ domain.ShiftType, allowedIncumbent string) (*domain.Shift, error) {
	if subject.Certifications.Expired {
		res.addCode(apperr.CodeRuleCertExpired, fmt.Sprintf("%s has an expired certification", subject.FullName))
	}

	shift, err := repo.GetShiftBySlot(ctx, e.DB, date, typ)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, nil
	}

	if !subject.Skills.Contains(shift.RequiredSkills) {
		res.addCode(apperr.CodeRuleSkillMismatch,
			fmt.Sprintf("%s lacks required skills for %s %s", subject.FullName, date, typ))
	}

	if shift.AssignedEmployeeID != nil {
		holder := *shift.AssignedEmployeeID
		if holder != subject.ID && holder != allowedIncumbent {
			res.addCode(apperr.CodeRuleConflict,
				fmt.Sprintf("slot %s %s is already assigned", date, typ))
			return shift, nil
		}
	}
	return nil, nil
}

// suggestAlternatives fills up to maxSuggestions alternative employees for a
// conflicting slot, excluding the current incumbent.
func (e *RuleEngine) suggestAlternatives(ctx context.Context, res *RuleResult, conflict *domain.Shift) error {
	all, err := repo.ListEmployees(ctx, e.DB)
	if err != nil {
		return err
	}
	for _, emp := range all {
		if conflict.AssignedEmployeeID != nil && emp.ID == *conflict.AssignedEmployeeID {
			continue
		}
		res.Suggestions = append(res.Suggestions, Suggestion{EmployeeID: emp.ID, FullName: emp.FullName})
		if len(res.Suggestions) == maxSuggestions {
			break
		}
	}
	return nil
}

// Candidate is one employee eligible to take a shift, with the workload
// count shown in the admin fill UI.
type Candidate struct {
	EmployeeID     string `json:"employee_id"`
	FullName       string `json:"full_name"`
	ShiftsThisWeek int64  `json:"shifts_this_week"`
}

// EligibleCandidates lists employees who could take the given shift: skills
// satisfied, certification current, and not already holding the slot. Each
// candidate carries the number of slots assigned to them in the
// Monday-anchored week containing the shift date.
func (e *RuleEngine) EligibleCandidates(ctx context.Context, shift *domain.Shift) ([]Candidate, error) {
	all, err := repo.ListEmployees(ctx, e.DB)
	if err != nil {
		return nil, err
	}
	weekStart, weekEnd := mondayWeek(shift.Date)

	out := make([]Candidate, 0, len(all))
	for _, emp := range all {
		if emp.Certifications.Expired {
			continue
		}
		if !emp.Skills.Contains(shift.RequiredSkills) {
			continue
		}
		if shift.AssignedEmployeeID != nil && emp.ID == *shift.AssignedEmployeeID {
			continue
		}
		n, err := repo.CountShiftsInWeek(ctx, e.DB, emp.ID, weekStart, weekEnd)
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{EmployeeID: emp.ID, FullName: emp.FullName, ShiftsThisWeek: n})
	}
	return out, nil
}

// mondayWeek returns the inclusive [Monday, Sunday] range of the week
// containing d.
func mondayWeek(d domain.Date) (domain.Date, domain.Date) {
	offset := (int(d.Weekday()) + 6) % 7
	start := d.AddDays(-offset)
	return start, start.AddDays(6)
}
