// Schedule request HTTP handlers.
//
// This file exposes REST endpoints for shift-change requests:
//   - POST /schedule/preview   (lenient normalization, nothing persisted)
//   - POST /schedule/requests  (strict submission)
//   - GET  /schedule/requests  (listing, urgent first)
//   - GET  /schedule/requests/{id}
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. The acting employee comes from
// the Identity middleware; handlers never read identity headers themselves.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shiftdesk/go-schedule-backend/internal/domain"
	"github.com/shiftdesk/go-schedule-backend/internal/http/middleware"
	"github.com/shiftdesk/go-schedule-backend/internal/repo"
	"github.com/shiftdesk/go-schedule-backend/internal/services"
	"github.com/shiftdesk/go-schedule-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SchedulerService defines the request lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SchedulerService interface {
	// Preview runs lenient normalization plus, when complete, rule validation.
	Preview(ctx context.Context, actor *domain.Employee, in services.SubmitInput) (*services.PreviewResult, error)
	// Submit runs the strict path and persists at most one row per fingerprint.
	Submit(ctx context.Context, actor *domain.Employee, in services.SubmitInput) (*services.SubmitResult, error)
	// ListRequests returns the requests visible to actor, urgent first.
	ListRequests(ctx context.Context, actor *domain.Employee) ([]services.RequestView, error)
	// GetRequest fetches one request visible to actor.
	GetRequest(ctx context.Context, actor *domain.Employee, id string) (*domain.ScheduleRequest, error)
}

// PartnerService defines swap-partner consent operations.
type PartnerService interface {
	// ListPending returns swap requests awaiting actor's consent.
	ListPending(ctx context.Context, actor *domain.Employee) ([]domain.ScheduleRequest, error)
	// Accept moves pending_partner to pending_admin.
	Accept(ctx context.Context, actor *domain.Employee, requestID string) (*domain.ScheduleRequest, error)
	// Reject moves pending_partner to partner_rejected.
	Reject(ctx context.Context, actor *domain.Employee, requestID string) (*domain.ScheduleRequest, error)
}

// ApprovalService defines admin review operations.
type ApprovalService interface {
	// ListPending returns admin-actionable requests, oldest first.
	ListPending(ctx context.Context) ([]domain.ScheduleRequest, error)
	// Approve flips to approved and applies shift mutations.
	Approve(ctx context.Context, actor *domain.Employee, requestID string) (*domain.ScheduleRequest, error)
	// Reject flips to rejected.
	Reject(ctx context.Context, actor *domain.Employee, requestID string) (*domain.ScheduleRequest, error)
}

// ShiftService defines shift board and assignment operations.
type ShiftService interface {
	// ListShifts returns the board for [from, to] with assignee names.
	ListShifts(ctx context.Context, from, to domain.Date, employeeID string) ([]services.ShiftView, error)
	// CreateShift adds a row for a free slot.
	CreateShift(ctx context.Context, sh *domain.Shift) error
	// ListCandidates returns employees eligible to take the shift.
	ListCandidates(ctx context.Context, shiftID string) ([]services.Candidate, error)
	// AssignShift sets the assignee, auto-approving a matching pending_fill.
	AssignShift(ctx context.Context, shiftID string, employeeID *string) (*string, error)
}

// EmployeeService defines admin employee CRUD.
type EmployeeService interface {
	List(ctx context.Context) ([]domain.Employee, error)
	Get(ctx context.Context, id string) (*domain.Employee, error)
	Create(ctx context.Context, e *domain.Employee) error
	Update(ctx context.Context, e *domain.Employee) error
	Delete(ctx context.Context, id string) error
}

// MetricsService defines the latency reporting operation.
type MetricsService interface {
	// Summarize aggregates counts, approval rate, and latency averages over
	// the trailing window (zero means all time).
	Summarize(ctx context.Context, window time.Duration) (*repo.MetricsSummary, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for schedule requests, shifts, partner
// consent, admin approvals, and employee administration. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	scheduler SchedulerService
	partner   PartnerService
	approval  ApprovalService
	shifts    ShiftService
	employees EmployeeService
	metrics   MetricsService
}

// New constructs a Handlers instance bound to the given services.
func New(scheduler SchedulerService, partner PartnerService, approval ApprovalService, shifts ShiftService, employees EmployeeService, metrics MetricsService) *Handlers {
	return &Handlers{
		scheduler: scheduler,
		partner:   partner,
		approval:  approval,
		shifts:    shifts,
		employees: employees,
		metrics:   metrics,
	}
}

//
// DTOs
//

// SubmitScheduleRequest is the unified JSON payload for preview and
// submission: free text for the extraction provider, or structured form
// fields, or both (structured wins).
type SubmitScheduleRequest struct {
	// Text is the natural-language request, e.g. "swap my Friday night with Priya".
	Text string `json:"text"`
	// Structured carries pre-filled form fields, bypassing extraction.
	Structured *domain.ParsedExtraction `json:"structured"`
}

// PreviewSchedule handles POST /schedule/preview.
//
// Runs the lenient normalization path: incomplete drafts come back with
// needs-input prompts instead of errors, complete ones with a fresh rule
// verdict. Nothing is persisted.
func (h *Handlers) PreviewSchedule(c *gin.Context) {
	var req SubmitScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON payload")
		return
	}
	out, err := h.scheduler.Preview(c.Request.Context(), middleware.Actor(c), services.SubmitInput{
		Text:       req.Text,
		Structured: req.Structured,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// SubmitSchedule handles POST /schedule/requests.
//
// Runs the strict path end to end. A repeated submission of the same
// normalized request returns the original row with idempotent_hit=true and
// status 200; a fresh submission returns 201.
func (h *Handlers) SubmitSchedule(c *gin.Context) {
	var req SubmitScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON payload")
		return
	}
	out, err := h.scheduler.Submit(c.Request.Context(), middleware.Actor(c), services.SubmitInput{
		Text:       req.Text,
		Structured: req.Structured,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	out.CorrelationID = c.Writer.Header().Get("X-Request-ID")
	status := http.StatusCreated
	if out.IdempotentHit {
		status = http.StatusOK
	}
	ok(c, status, out)
}

// ListScheduleRequests handles GET /schedule/requests.
//
// An optional ?limit=N caps the page after urgency ordering; total always
// reflects the full visible set.
func (h *Handlers) ListScheduleRequests(c *gin.Context) {
	out, err := h.scheduler.ListRequests(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		failErr(c, err)
		return
	}
	total := len(out)
	if limit := utils.AtoiDefault(c.Query("limit"), 0); limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	ok(c, http.StatusOK, gin.H{"requests": out, "total": total})
}

// GetScheduleRequest handles GET /schedule/requests/:id.
func (h *Handlers) GetScheduleRequest(c *gin.Context) {
	out, err := h.scheduler.GetRequest(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}
