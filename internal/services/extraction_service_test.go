package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shiftdesk/go-schedule-backend/internal/apperr"
	"github.com/shiftdesk/go-schedule-backend/internal/domain"
	"github.com/shiftdesk/go-schedule-backend/internal/orgtime"
)

func newExtraction(t *testing.T, provider *stubProvider) (*ExtractionService, *stubProvider) {
	t.Helper()
	if provider == nil {
		provider = &stubProvider{}
	}
	return NewExtractionService(newTestDB(t), provider, fixedClock(t)), provider
}

func TestRequesterHint_HostedGetsNoStableID(t *testing.T) {
	actor := &domain.Employee{ID: "emp-42", FirstName: "Alex", LastName: "Johnson", FullName: "Alex Johnson"}

	local, lp := newExtraction(t, &stubProvider{hosted: false})
	if _, _, err := local.Extract(context.Background(), "move me", actor); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(lp.lastHint, "emp-42") {
		t.Fatalf("local hint should carry the employee id, got %q", lp.lastHint)
	}

	hosted, hp := newExtraction(t, &stubProvider{hosted: true})
	if _, _, err := hosted.Extract(context.Background(), "move me", actor); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if strings.Contains(hp.lastHint, "emp-42") {
		t.Fatalf("hosted hint must not carry stable ids, got %q", hp.lastHint)
	}
	if !strings.Contains(hp.lastHint, "Alex Johnson") {
		t.Fatalf("hosted hint should still name the requester, got %q", hp.lastHint)
	}
}

func TestNormalize_StrictMissingRequester(t *testing.T) {
	s, _ := newExtraction(t, nil)
	_, _, err := s.Normalize(context.Background(), domain.ParsedExtraction{
		TargetDate:      datep(domain.NewDate(2026, time.June, 5)),
		TargetShiftType: typep(domain.ShiftMorning),
	}, nil, true)
	ae, ok := apperr.As(err)
	if !ok || ae.Code != apperr.CodeValidationError || ae.Status != 422 {
		t.Fatalf("expected 422 VALIDATION_ERROR, got %v", err)
	}
}

func TestNormalize_LenientAutofillsRequesterFromActor(t *testing.T) {
	s, _ := newExtraction(t, nil)
	actor := &domain.Employee{FirstName: "Alex", LastName: "Johnson"}

	v, needs, err := s.Normalize(context.Background(), domain.ParsedExtraction{
		TargetDate:      datep(domain.NewDate(2026, time.June, 5)),
		TargetShiftType: typep(domain.ShiftMorning),
	}, actor, false)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(needs) != 0 || v == nil {
		t.Fatalf("expected complete result, needs=%v", needs)
	}
	if v.EmployeeFirstName != "Alex" || deref(v.EmployeeLastName) != "Johnson" {
		t.Fatalf("requester not autofilled: %+v", v)
	}
	if v.RequestedAction != domain.ActionMove {
		t.Fatalf("missing action should default to move, got %s", v.RequestedAction)
	}
}

func TestNormalize_MissingTargetDate(t *testing.T) {
	s, _ := newExtraction(t, nil)
	draft := domain.ParsedExtraction{
		EmployeeFirstName: "Alex",
		TargetShiftType:   typep(domain.ShiftMorning),
	}

	// strict → 422
	_, _, err := s.Normalize(context.Background(), draft, nil, true)
	if ae, ok := apperr.As(err); !ok || ae.Status != 422 {
		t.Fatalf("strict missing date should 422, got %v", err)
	}

	// lenient → needs-input prompt, no error
	v, needs, err := s.Normalize(context.Background(), draft, nil, false)
	if err != nil {
		t.Fatalf("lenient Normalize: %v", err)
	}
	if v != nil || len(needs) != 1 || needs[0].Field != "target_date" {
		t.Fatalf("expected target_date prompt, got v=%v needs=%v", v, needs)
	}
}

func TestNormalize_CoverDefaultsTargetFromCurrent(t *testing.T) {
	s, _ := newExtraction(t, nil)
	cur := domain.NewDate(2026, time.June, 4)

	v, needs, err := s.Normalize(context.Background(), domain.ParsedExtraction{
		EmployeeFirstName: "Alex",
		CurrentShiftDate:  datep(cur),
		CurrentShiftType:  typep(domain.ShiftNight),
		TargetShiftType:   typep(domain.ShiftNight),
		RequestedAction:   actp(domain.ActionCover),
	}, nil, true)
	if err != nil || len(needs) != 0 {
		t.Fatalf("Normalize: err=%v needs=%v", err, needs)
	}
	if !v.TargetDate.Equal(cur) {
		t.Fatalf("cover target should copy current date, got %s", v.TargetDate)
	}
	if v.CurrentShiftDate == nil || !v.CurrentShiftDate.Equal(cur) {
		t.Fatalf("cover must carry current date, got %v", v.CurrentShiftDate)
	}
}

func TestNormalize_SwapDefaultsPartnerSlotFromTarget(t *testing.T) {
	s, _ := newExtraction(t, nil)
	tgt := domain.NewDate(2026, time.June, 6)

	v, _, err := s.Normalize(context.Background(), domain.ParsedExtraction{
		EmployeeFirstName: "Alex",
		TargetDate:        datep(tgt),
		TargetShiftType:   typep(domain.ShiftNight),
		PartnerFirstName:  strp("John"),
		RequestedAction:   actp(domain.ActionSwap),
	}, nil, true)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	pd, pt := v.PartnerSlot()
	if !pd.Equal(tgt) || pt != domain.ShiftNight {
		t.Fatalf("partner slot should default from target, got %s %s", pd, pt)
	}
	if v.PartnerShiftDate == nil || v.PartnerShiftType == nil {
		t.Fatalf("swap defaults should materialize partner fields")
	}
}

func TestNormalize_OutOfWindowDateClampsToUnknown(t *testing.T) {
	s, _ := newExtraction(t, nil)
	far := domain.NewDate(2026, time.August, 1) // beyond today+30

	// The date is discarded, so lenient mode asks for one instead of erroring.
	v, needs, err := s.Normalize(context.Background(), domain.ParsedExtraction{
		EmployeeFirstName: "Alex",
		TargetDate:        datep(far),
		TargetShiftType:   typep(domain.ShiftMorning),
	}, nil, false)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if v != nil || len(needs) != 1 || needs[0].Field != "target_date" {
		t.Fatalf("out-of-window date should prompt for target_date, got v=%v needs=%v", v, needs)
	}
}

func TestNormalize_InferShiftType(t *testing.T) {
	provider := &stubProvider{}
	db := newTestDB(t)
	clock, err := orgtime.NewFixed("UTC", testNow)
	if err != nil {
		t.Fatalf("clock: %v", err)
	}
	s := NewExtractionService(db, provider, clock)
	emp := mkEmployee(t, db, "John", "Doe")
	date := domain.NewDate(2026, time.June, 5)
	mkShift(t, db, date, domain.ShiftNight, &emp.ID)

	draft := domain.ParsedExtraction{
		EmployeeFirstName: "John",
		EmployeeLastName:  strp("Doe"),
		TargetDate:        datep(date),
	}

	// One assigned shift on the date: its type is adopted.
	v, needs, err := s.Normalize(context.Background(), draft, nil, true)
	if err != nil || len(needs) != 0 {
		t.Fatalf("Normalize: err=%v needs=%v", err, needs)
	}
	if v.TargetShiftType != domain.ShiftNight {
		t.Fatalf("inferred type = %s, want night", v.TargetShiftType)
	}

	// Two assigned shifts: strict errors, lenient offers both options.
	mkShift(t, db, date, domain.ShiftMorning, &emp.ID)
	if _, _, err := s.Normalize(context.Background(), draft, nil, true); err == nil {
		t.Fatalf("two shifts on date should be unresolvable in strict mode")
	}
	_, needs, err = s.Normalize(context.Background(), draft, nil, false)
	if err != nil {
		t.Fatalf("lenient Normalize: %v", err)
	}
	if len(needs) != 1 || needs[0].Field != "target_shift_type" || len(needs[0].Options) != 2 {
		t.Fatalf("expected shift-type prompt with options, got %v", needs)
	}

	// No assigned shift: lenient redirects to the date.
	empty := domain.ParsedExtraction{
		EmployeeFirstName: "John",
		EmployeeLastName:  strp("Doe"),
		TargetDate:        datep(domain.NewDate(2026, time.June, 10)),
	}
	_, needs, err = s.Normalize(context.Background(), empty, nil, false)
	if err != nil {
		t.Fatalf("lenient Normalize: %v", err)
	}
	if len(needs) != 1 || needs[0].Field != "target_date" {
		t.Fatalf("no shift on date should prompt for target_date, got %v", needs)
	}
}
