package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shiftdesk/go-schedule-backend/internal/domain"
	"github.com/shiftdesk/go-schedule-backend/internal/llm"
	"github.com/shiftdesk/go-schedule-backend/internal/orgtime"
	"github.com/shiftdesk/go-schedule-backend/internal/repo"
)

var svcDBSeq int

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	svcDBSeq++
	dsn := fmt.Sprintf("file:svcdb%d?mode=memory&cache=shared", svcDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Employee{}, &domain.Shift{}, &domain.ScheduleRequest{},
		&domain.RequestMetrics{}, &domain.AuditLog{}, &domain.ExtractionVersion{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// testNow is the pinned instant every service test evaluates "today" against.
var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t *testing.T) orgtime.Clock {
	t.Helper()
	c, err := orgtime.NewFixed("UTC", testNow)
	if err != nil {
		t.Fatalf("clock: %v", err)
	}
	return c
}

func mkEmployee(t *testing.T, db *gorm.DB, first, last string, mut ...func(*domain.Employee)) *domain.Employee {
	t.Helper()
	e := &domain.Employee{FirstName: first, LastName: last, Role: domain.RoleEmployee}
	for _, m := range mut {
		m(e)
	}
	if err := repo.CreateEmployee(context.Background(), db, e); err != nil {
		t.Fatalf("create employee %s %s: %v", first, last, err)
	}
	return e
}

func mkShift(t *testing.T, db *gorm.DB, date domain.Date, typ domain.ShiftType, assignee *string, mut ...func(*domain.Shift)) *domain.Shift {
	t.Helper()
	sh := &domain.Shift{Date: date, Type: typ, AssignedEmployeeID: assignee}
	for _, m := range mut {
		m(sh)
	}
	if err := repo.CreateShift(context.Background(), db, sh); err != nil {
		t.Fatalf("create shift %s %s: %v", date, typ, err)
	}
	return sh
}

func strp(s string) *string                          { return &s }
func datep(d domain.Date) *domain.Date               { return &d }
func typep(t domain.ShiftType) *domain.ShiftType     { return &t }
func actp(a domain.RequestedAction) *domain.RequestedAction { return &a }

// stubProvider is a canned extraction provider. It records the last
// requester-context hint it was given.
type stubProvider struct {
	draft    *domain.ParsedExtraction
	err      error
	hosted   bool
	lastHint string
}

func (p *stubProvider) Parse(_ context.Context, _, requesterContext string, _ domain.Date) (*domain.ParsedExtraction, error) {
	p.lastHint = requesterContext
	if p.err != nil {
		return nil, p.err
	}
	if p.draft != nil {
		return p.draft, nil
	}
	return &domain.ParsedExtraction{}, nil
}
func (p *stubProvider) HealthCheck(context.Context) llm.HealthStatus {
	return llm.HealthStatus{Status: "ok"}
}
func (p *stubProvider) Name() string              { return "stub" }
func (p *stubProvider) ModelName() string         { return "stub-model" }
func (p *stubProvider) ExtractionVersion() string { return "stub-v1" }
func (p *stubProvider) Hosted() bool              { return p.hosted }

// newScheduler wires the full service stack over one test database.
func newScheduler(t *testing.T, db *gorm.DB, provider llm.Provider) *SchedulerService {
	t.Helper()
	if provider == nil {
		provider = &stubProvider{}
	}
	clock := fixedClock(t)
	return NewSchedulerService(db, NewExtractionService(db, provider, clock), NewRuleEngine(db), clock)
}
