package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shiftdesk/go-schedule-backend/internal/apperr"
	"github.com/shiftdesk/go-schedule-backend/internal/domain"
	"github.com/shiftdesk/go-schedule-backend/internal/repo"
)

func TestFingerprint_Deterministic_CaseInsensitive(t *testing.T) {
	base := domain.ValidatedExtraction{
		EmployeeFirstName: "Alex",
		EmployeeLastName:  strp("Johnson"),
		TargetDate:        domain.NewDate(2026, time.June, 5),
		TargetShiftType:   domain.ShiftMorning,
		RequestedAction:   domain.ActionMove,
	}
	fp := Fingerprint(base)
	if fp != Fingerprint(base) {
		t.Fatalf("fingerprint must be deterministic")
	}

	shouted := base
	shouted.EmployeeFirstName = "ALEX"
	shouted.EmployeeLastName = strp("JOHNSON")
	if Fingerprint(shouted) != fp {
		t.Fatalf("name casing must not change the fingerprint")
	}

	// The reason text is not semantically significant.
	withReason := base
	withReason.Reason = strp("doctor appointment")
	if Fingerprint(withReason) != fp {
		t.Fatalf("reason must not change the fingerprint")
	}

	other := base
	other.TargetShiftType = domain.ShiftNight
	if Fingerprint(other) == fp {
		t.Fatalf("different slot must change the fingerprint")
	}
}

func TestFingerprint_SwapIncludesPartnerSide(t *testing.T) {
	swap := domain.ValidatedExtraction{
		EmployeeFirstName: "Alex",
		TargetDate:        domain.NewDate(2026, time.June, 5),
		TargetShiftType:   domain.ShiftMorning,
		RequestedAction:   domain.ActionSwap,
		PartnerFirstName:  strp("John"),
		PartnerShiftDate:  datep(domain.NewDate(2026, time.June, 6)),
		PartnerShiftType:  typep(domain.ShiftNight),
	}
	fp := Fingerprint(swap)

	otherPartner := swap
	otherPartner.PartnerFirstName = strp("Maria")
	if Fingerprint(otherPartner) == fp {
		t.Fatalf("partner identity must participate in swap fingerprints")
	}

	otherSlot := swap
	otherSlot.PartnerShiftType = typep(domain.ShiftMorning)
	if Fingerprint(otherSlot) == fp {
		t.Fatalf("partner slot must participate in swap fingerprints")
	}
}

func TestSubmit_StructuredMoveHappyPath(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	actor := mkEmployee(t, db, "Alex", "Johnson")

	out, err := s.Submit(context.Background(), actor, SubmitInput{Structured: &domain.ParsedExtraction{
		EmployeeFirstName: "Alex",
		EmployeeLastName:  strp("Johnson"),
		TargetDate:        datep(domain.NewDate(2026, time.June, 5)),
		TargetShiftType:   typep(domain.ShiftMorning),
	}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Status != domain.StatusPendingAdmin {
		t.Fatalf("valid move should await admin, got %s", out.Status)
	}
	if out.IdempotentHit {
		t.Fatalf("first submission must not be an idempotent hit")
	}
	if out.ApprovalID == nil || *out.ApprovalID != out.RequestID {
		t.Fatalf("awaiting requests should expose an approval id")
	}
	if out.ExtractionVersion != "stub-v1" {
		t.Fatalf("extraction version = %q", out.ExtractionVersion)
	}
	if !strings.Contains(out.Summary, "Alex Johnson") {
		t.Fatalf("summary should name the requester, got %q", out.Summary)
	}

	// The row is persisted with a metrics record and audit entry.
	stored, err := repo.GetRequest(context.Background(), db, out.RequestID)
	if err != nil {
		t.Fatalf("stored request: %v", err)
	}
	if stored.RequesterID != actor.ID {
		t.Fatalf("requester id = %s, want %s", stored.RequesterID, actor.ID)
	}
	var m domain.RequestMetrics
	if err := db.First(&m, "request_id = ?", out.RequestID).Error; err != nil {
		t.Fatalf("metrics row: %v", err)
	}
	if m.ParsedAt == nil || m.ValidatedAt == nil {
		t.Fatalf("pipeline timestamps should be set: %+v", m)
	}
}

func TestSubmit_SecondIdenticalSubmissionIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	actor := mkEmployee(t, db, "Alex", "Johnson")
	in := SubmitInput{Structured: &domain.ParsedExtraction{
		EmployeeFirstName: "Alex",
		EmployeeLastName:  strp("Johnson"),
		TargetDate:        datep(domain.NewDate(2026, time.June, 5)),
		TargetShiftType:   typep(domain.ShiftMorning),
	}}

	first, err := s.Submit(context.Background(), actor, in)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	second, err := s.Submit(context.Background(), actor, in)
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if !second.IdempotentHit {
		t.Fatalf("second submission should be an idempotent hit")
	}
	if second.RequestID != first.RequestID {
		t.Fatalf("idempotent hit must return the original row")
	}

	var n int64
	if err := db.Model(&domain.ScheduleRequest{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("exactly one row should exist, got %d", n)
	}
}

func TestSubmit_ConcurrentDuplicatesCollapseToOneRow(t *testing.T) {
	db := newTestDB(t)
	// One connection keeps sqlite happy under parallel writers; the submit
	// goroutines still interleave freely above the driver, so losers travel
	// the insert-collision re-fetch path rather than the pre-check.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	s := newScheduler(t, db, nil)
	actor := mkEmployee(t, db, "Alex", "Johnson")
	in := SubmitInput{Structured: &domain.ParsedExtraction{
		EmployeeFirstName: "Alex",
		EmployeeLastName:  strp("Johnson"),
		TargetDate:        datep(domain.NewDate(2026, time.June, 5)),
		TargetShiftType:   typep(domain.ShiftMorning),
	}}

	const workers = 8
	results := make([]*SubmitResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Submit(context.Background(), actor, in)
		}(i)
	}
	wg.Wait()

	misses := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("submit %d: %v", i, errs[i])
		}
		if results[i].RequestID != results[0].RequestID {
			t.Fatalf("all submissions must share one request id")
		}
		if !results[i].IdempotentHit {
			misses++
		}
	}
	if misses != 1 {
		t.Fatalf("exactly one submission may report a fresh persist, got %d", misses)
	}

	var n int64
	if err := db.Model(&domain.ScheduleRequest{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("exactly one row should exist, got %d", n)
	}
}

func TestSubmit_RuleViolationStillPersistsAsRejected(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	actor := mkEmployee(t, db, "Sam", "Lee", func(e *domain.Employee) {
		e.Certifications = domain.Certifications{Expired: true}
	})

	out, err := s.Submit(context.Background(), actor, SubmitInput{Structured: &domain.ParsedExtraction{
		EmployeeFirstName: "Sam",
		EmployeeLastName:  strp("Lee"),
		TargetDate:        datep(domain.NewDate(2026, time.June, 5)),
		TargetShiftType:   typep(domain.ShiftMorning),
	}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Status != domain.StatusRejected {
		t.Fatalf("invalid request should persist as rejected, got %s", out.Status)
	}
	if out.Validation == nil || out.Validation.Valid {
		t.Fatalf("verdict should carry the violation")
	}
	if out.ApprovalID != nil {
		t.Fatalf("rejected requests have no approval id")
	}
}

func TestSubmit_SwapGoesToPartnerConsent(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	actor := mkEmployee(t, db, "Alex", "Johnson")
	partner := mkEmployee(t, db, "John", "Doe")
	cur := domain.NewDate(2026, time.June, 4)
	tgt := domain.NewDate(2026, time.June, 6)
	mkShift(t, db, cur, domain.ShiftMorning, &actor.ID)
	mkShift(t, db, tgt, domain.ShiftNight, &partner.ID)

	out, err := s.Submit(context.Background(), actor, SubmitInput{Structured: &domain.ParsedExtraction{
		EmployeeFirstName: "Alex",
		EmployeeLastName:  strp("Johnson"),
		CurrentShiftDate:  datep(cur),
		CurrentShiftType:  typep(domain.ShiftMorning),
		TargetDate:        datep(tgt),
		TargetShiftType:   typep(domain.ShiftNight),
		PartnerFirstName:  strp("John"),
		PartnerLastName:   strp("Doe"),
		RequestedAction:   actp(domain.ActionSwap),
	}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Status != domain.StatusPendingPartner {
		t.Fatalf("swap should await partner consent, got %s", out.Status)
	}
	// Not in the admin queue yet, so there is nothing to approve.
	if out.ApprovalID != nil {
		t.Fatalf("no approval handle before partner consent, got %v", *out.ApprovalID)
	}

	stored, _ := repo.GetRequest(context.Background(), db, out.RequestID)
	if stored.PartnerID == nil || *stored.PartnerID != partner.ID {
		t.Fatalf("partner reference should be normalized")
	}
	if stored.RequesterShiftID == nil || stored.PartnerShiftID == nil {
		t.Fatalf("both shift references should resolve, got %+v", stored)
	}
}

func TestSubmit_CoverWithResolvableShiftGoesToPendingFill(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	actor := mkEmployee(t, db, "John", "Doe")
	date := domain.NewDate(2026, time.June, 5)
	sh := mkShift(t, db, date, domain.ShiftMorning, &actor.ID)

	out, err := s.Submit(context.Background(), actor, SubmitInput{Structured: &domain.ParsedExtraction{
		EmployeeFirstName: "John",
		EmployeeLastName:  strp("Doe"),
		CurrentShiftDate:  datep(date),
		CurrentShiftType:  typep(domain.ShiftMorning),
		TargetDate:        datep(date),
		TargetShiftType:   typep(domain.ShiftMorning),
		RequestedAction:   actp(domain.ActionCover),
	}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Status != domain.StatusPendingFill {
		t.Fatalf("resolvable cover should open a fill, got %s", out.Status)
	}
	// Fills are claimed by volunteers, not approved by admins.
	if out.ApprovalID != nil {
		t.Fatalf("no approval handle while the fill is open, got %v", *out.ApprovalID)
	}
	stored, _ := repo.GetRequest(context.Background(), db, out.RequestID)
	if stored.CoverageShiftID == nil || *stored.CoverageShiftID != sh.ID {
		t.Fatalf("coverage shift should be referenced")
	}
}

func TestSubmit_CoverWithoutOwnShiftGoesToAdmin(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	actor := mkEmployee(t, db, "John", "Doe")
	date := domain.NewDate(2026, time.June, 5)

	out, err := s.Submit(context.Background(), actor, SubmitInput{Structured: &domain.ParsedExtraction{
		EmployeeFirstName: "John",
		EmployeeLastName:  strp("Doe"),
		TargetDate:        datep(date),
		TargetShiftType:   typep(domain.ShiftMorning),
		RequestedAction:   actp(domain.ActionCover),
	}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Status != domain.StatusPendingAdmin {
		t.Fatalf("unresolvable cover should fall back to admin, got %s", out.Status)
	}
}

func TestSubmit_RefusesRequestsForOthers(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	actor := mkEmployee(t, db, "Alex", "Johnson")
	mkEmployee(t, db, "John", "Doe")

	_, err := s.Submit(context.Background(), actor, SubmitInput{Structured: &domain.ParsedExtraction{
		EmployeeFirstName: "John",
		EmployeeLastName:  strp("Doe"),
		TargetDate:        datep(domain.NewDate(2026, time.June, 5)),
		TargetShiftType:   typep(domain.ShiftMorning),
	}})
	ae, ok := apperr.As(err)
	if !ok || ae.Status != 403 {
		t.Fatalf("expected 403 for another employee's request, got %v", err)
	}
}

func TestSubmit_AdminMaySubmitForOthers(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	admin := mkEmployee(t, db, "Priya", "Smith", func(e *domain.Employee) { e.Role = domain.RoleAdmin })
	emp := mkEmployee(t, db, "John", "Doe")

	out, err := s.Submit(context.Background(), admin, SubmitInput{Structured: &domain.ParsedExtraction{
		EmployeeFirstName: "John",
		EmployeeLastName:  strp("Doe"),
		TargetDate:        datep(domain.NewDate(2026, time.June, 5)),
		TargetShiftType:   typep(domain.ShiftMorning),
	}})
	if err != nil {
		t.Fatalf("admin Submit: %v", err)
	}
	stored, _ := repo.GetRequest(context.Background(), db, out.RequestID)
	if stored.RequesterID != emp.ID {
		t.Fatalf("requester should resolve to the named employee, got %s", stored.RequesterID)
	}
}

func TestSubmit_EmptyInputRefused(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	actor := mkEmployee(t, db, "Alex", "Johnson")

	_, err := s.Submit(context.Background(), actor, SubmitInput{})
	if ae, ok := apperr.As(err); !ok || ae.Status != 422 {
		t.Fatalf("empty submission should 422, got %v", err)
	}
}

func TestPreview_IncompleteDraftCollectsNeedsInput(t *testing.T) {
	db := newTestDB(t)
	provider := &stubProvider{draft: &domain.ParsedExtraction{
		EmployeeFirstName: "Alex",
	}}
	s := newScheduler(t, db, provider)
	actor := mkEmployee(t, db, "Alex", "Johnson")

	out, err := s.Preview(context.Background(), actor, SubmitInput{Text: "I need a change"})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if out.Validated != nil || len(out.NeedsInput) == 0 {
		t.Fatalf("incomplete draft should need input, got %+v", out)
	}

	// Nothing persisted.
	var n int64
	db.Model(&domain.ScheduleRequest{}).Count(&n)
	if n != 0 {
		t.Fatalf("preview must not persist, found %d rows", n)
	}
}

func TestPreview_CompleteDraftCarriesVerdictAndSummary(t *testing.T) {
	db := newTestDB(t)
	provider := &stubProvider{draft: &domain.ParsedExtraction{
		EmployeeFirstName: "Alex",
		EmployeeLastName:  strp("Johnson"),
		TargetDate:        datep(domain.NewDate(2026, time.June, 5)),
		TargetShiftType:   typep(domain.ShiftMorning),
	}}
	s := newScheduler(t, db, provider)
	actor := mkEmployee(t, db, "Alex", "Johnson")

	out, err := s.Preview(context.Background(), actor, SubmitInput{Text: "move me to friday morning"})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if out.Validated == nil || out.Validation == nil || !out.Validation.Valid {
		t.Fatalf("complete draft should validate, got %+v", out)
	}
	if out.Summary == "" {
		t.Fatalf("preview should carry a summary")
	}
}

func TestSummary_PerAction(t *testing.T) {
	move := domain.ValidatedExtraction{
		EmployeeFirstName: "Alex", EmployeeLastName: strp("Johnson"),
		TargetDate: domain.NewDate(2026, time.June, 5), TargetShiftType: domain.ShiftMorning,
		RequestedAction: domain.ActionMove,
	}
	if got := Summary(move); !strings.Contains(got, "move") || !strings.Contains(got, "2026-06-05 morning") {
		t.Errorf("move summary = %q", got)
	}

	cover := move
	cover.RequestedAction = domain.ActionCover
	if got := Summary(cover); !strings.Contains(got, "coverage") {
		t.Errorf("cover summary = %q", got)
	}

	swap := move
	swap.RequestedAction = domain.ActionSwap
	swap.PartnerFirstName = strp("John")
	swap.PartnerLastName = strp("Doe")
	swap.CurrentShiftDate = datep(domain.NewDate(2026, time.June, 4))
	swap.CurrentShiftType = typep(domain.ShiftNight)
	got := Summary(swap)
	if !strings.Contains(got, "swap") || !strings.Contains(got, "John Doe") || !strings.Contains(got, "2026-06-04 night") {
		t.Errorf("swap summary = %q", got)
	}
}

func TestListRequests_VisibilityAndUrgencyOrdering(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	alex := mkEmployee(t, db, "Alex", "Johnson")
	john := mkEmployee(t, db, "John", "Doe")
	admin := mkEmployee(t, db, "Priya", "Smith", func(e *domain.Employee) { e.Role = domain.RoleAdmin })

	submit := func(actor *domain.Employee, first, last string, date domain.Date) *SubmitResult {
		out, err := s.Submit(context.Background(), actor, SubmitInput{Structured: &domain.ParsedExtraction{
			EmployeeFirstName: first,
			EmployeeLastName:  strp(last),
			TargetDate:        datep(date),
			TargetShiftType:   typep(domain.ShiftMorning),
		}})
		if err != nil {
			t.Fatalf("submit for %s: %v", first, err)
		}
		return out
	}

	// Alex: one far-out request, one urgent (tomorrow).
	far := submit(alex, "Alex", "Johnson", domain.NewDate(2026, time.June, 20))
	urgent := submit(alex, "Alex", "Johnson", domain.NewDate(2026, time.June, 2))
	// John's request is invisible to Alex.
	submit(john, "John", "Doe", domain.NewDate(2026, time.June, 10))

	mine, err := s.ListRequests(context.Background(), alex)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("alex should see 2 requests, got %d", len(mine))
	}
	if mine[0].ID != urgent.RequestID || !mine[0].Urgent {
		t.Fatalf("urgent request should sort first, got %+v", mine[0])
	}
	if mine[1].ID != far.RequestID || mine[1].Urgent {
		t.Fatalf("far request should sort after, got %+v", mine[1])
	}

	all, err := s.ListRequests(context.Background(), admin)
	if err != nil {
		t.Fatalf("ListRequests admin: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("admin should see all 3 requests, got %d", len(all))
	}
}

func TestGetRequest_VisibilityIsNotFoundForOthers(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	alex := mkEmployee(t, db, "Alex", "Johnson")
	john := mkEmployee(t, db, "John", "Doe")

	out, err := s.Submit(context.Background(), alex, SubmitInput{Structured: &domain.ParsedExtraction{
		EmployeeFirstName: "Alex",
		EmployeeLastName:  strp("Johnson"),
		TargetDate:        datep(domain.NewDate(2026, time.June, 5)),
		TargetShiftType:   typep(domain.ShiftMorning),
	}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := s.GetRequest(context.Background(), alex, out.RequestID); err != nil {
		t.Fatalf("owner should see the request: %v", err)
	}
	if _, err := s.GetRequest(context.Background(), john, out.RequestID); err != ErrRequestNotFound {
		t.Fatalf("strangers should get not-found, got %v", err)
	}
	if _, err := s.GetRequest(context.Background(), alex, "missing"); err != ErrRequestNotFound {
		t.Fatalf("missing id should be not-found, got %v", err)
	}
}

func TestListShifts_ResolvesAssigneeNames(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	emp := mkEmployee(t, db, "John", "Doe")
	from := domain.NewDate(2026, time.June, 1)
	to := domain.NewDate(2026, time.June, 7)
	mkShift(t, db, domain.NewDate(2026, time.June, 3), domain.ShiftMorning, &emp.ID)
	mkShift(t, db, domain.NewDate(2026, time.June, 4), domain.ShiftNight, nil)

	out, err := s.ListShifts(context.Background(), from, to, "")
	if err != nil {
		t.Fatalf("ListShifts: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("shifts = %d", len(out))
	}
	var named, unnamed int
	for _, v := range out {
		if v.AssignedEmployeeName == "John Doe" {
			named++
		}
		if v.AssignedEmployeeID == nil && v.AssignedEmployeeName == "" {
			unnamed++
		}
	}
	if named != 1 || unnamed != 1 {
		t.Fatalf("name resolution wrong: %+v", out)
	}
}

func TestCreateShift_DuplicateSlotRefused(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	date := domain.NewDate(2026, time.June, 5)

	if err := s.CreateShift(context.Background(), &domain.Shift{Date: date, Type: domain.ShiftMorning}); err != nil {
		t.Fatalf("CreateShift: %v", err)
	}
	err := s.CreateShift(context.Background(), &domain.Shift{Date: date, Type: domain.ShiftMorning})
	if err != ErrSlotTaken {
		t.Fatalf("duplicate slot should be ErrSlotTaken, got %v", err)
	}
}

func TestAssignShift_ResolvesPendingFill(t *testing.T) {
	db := newTestDB(t)
	s := newScheduler(t, db, nil)
	owner := mkEmployee(t, db, "John", "Doe")
	sub := mkEmployee(t, db, "Maria", "Garcia")
	date := domain.NewDate(2026, time.June, 5)
	sh := mkShift(t, db, date, domain.ShiftMorning, &owner.ID)

	out, err := s.Submit(context.Background(), owner, SubmitInput{Structured: &domain.ParsedExtraction{
		EmployeeFirstName: "John",
		EmployeeLastName:  strp("Doe"),
		TargetDate:        datep(date),
		TargetShiftType:   typep(domain.ShiftMorning),
		RequestedAction:   actp(domain.ActionCover),
	}})
	if err != nil || out.Status != domain.StatusPendingFill {
		t.Fatalf("cover submit: status=%v err=%v", out, err)
	}

	approvedID, err := s.AssignShift(context.Background(), sh.ID, &sub.ID)
	if err != nil {
		t.Fatalf("AssignShift: %v", err)
	}
	if approvedID == nil || *approvedID != out.RequestID {
		t.Fatalf("pending_fill should auto-approve, got %v", approvedID)
	}

	stored, _ := repo.GetRequest(context.Background(), db, out.RequestID)
	if stored.Status != domain.StatusApproved {
		t.Fatalf("request status = %s, want approved", stored.Status)
	}
	shift, _ := repo.GetShift(context.Background(), db, sh.ID)
	if shift.AssignedEmployeeID == nil || *shift.AssignedEmployeeID != sub.ID {
		t.Fatalf("shift assignee = %v, want %s", shift.AssignedEmployeeID, sub.ID)
	}

	// Unassigning never touches request state.
	if _, err := s.AssignShift(context.Background(), sh.ID, nil); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if _, err := s.AssignShift(context.Background(), "missing", &sub.ID); err != ErrShiftNotFound {
		t.Fatalf("missing shift should be ErrShiftNotFound, got %v", err)
	}
}
