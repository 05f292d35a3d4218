// Package services – SchedulerService
//
// This file implements the request lifecycle engine: it normalizes a
// submission (free text or structured fields), validates it with the rule
// engine, computes the content fingerprint, resolves the initial status, and
// persists the request exactly once per fingerprint even under concurrent
// identical submissions. The fingerprint unique index is the single source of
// truth for "first writer wins"; a constraint violation during insert is an
// expected control-flow branch resolved into an idempotent hit, never an
// error.
//
// Observability: Submit is OpenTelemetry-instrumented; spans carry the
// resolved action, status, and idempotency outcome.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shiftdesk/go-schedule-backend/internal/apperr"
	"github.com/shiftdesk/go-schedule-backend/internal/domain"
	"github.com/shiftdesk/go-schedule-backend/internal/orgtime"
	"github.com/shiftdesk/go-schedule-backend/internal/repo"
)

// SchedulerService owns request submission, preview, listing, and the shift
// board operations.
type SchedulerService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Extraction normalizes raw input into validated extractions.
	Extraction *ExtractionService
	// Rules is the deterministic rule engine.
	Rules *RuleEngine
	// Clock supplies org-timezone semantics (window, urgency).
	Clock orgtime.Clock
}

// NewSchedulerService constructs a SchedulerService.
func NewSchedulerService(db *gorm.DB, ex *ExtractionService, rules *RuleEngine, clock orgtime.Clock) *SchedulerService {
	return &SchedulerService{DB: db, Extraction: ex, Rules: rules, Clock: clock}
}

// SubmitInput is one submission: either free text for the extraction
// provider, or an already-structured draft from form fields. Exactly one
// should be set; structured wins when both are.
type SubmitInput struct {
	Text       string                   `json:"text"`
	Structured *domain.ParsedExtraction `json:"structured"`
}

// SubmitResult is the outward-facing record produced per submission.
type SubmitResult struct {
	RequestID         string                  `json:"request_id"`
	Status            domain.RequestStatus    `json:"status"`
	ExtractionVersion string                  `json:"extraction_version"`
	Parsed            domain.ParsedExtraction `json:"parsed"`
	Validation        *RuleResult             `json:"validation"`
	ApprovalID        *string                 `json:"approval_id,omitempty"`
	CorrelationID     string                  `json:"correlation_id,omitempty"`
	IdempotentHit     bool                    `json:"idempotent_hit"`
	Summary           string                  `json:"summary"`
}

// PreviewResult is the lenient-path outcome: either a complete validated
// extraction with a fresh rule verdict, or the list of fields still needed.
type PreviewResult struct {
	Parsed     domain.ParsedExtraction     `json:"parsed"`
	Validated  *domain.ValidatedExtraction `json:"validated,omitempty"`
	NeedsInput []domain.NeedsInput         `json:"needs_input"`
	Validation *RuleResult                 `json:"validation,omitempty"`
	Summary    string                      `json:"summary,omitempty"`
}

// fingerprintPayload is the canonical shape hashed for idempotency. Only
// semantically significant fields participate; names are lowercased and
// trimmed so cosmetic differences collapse.
type fingerprintPayload struct {
	Requester   string `json:"requester"`
	Action      string `json:"action"`
	TargetDate  string `json:"target_date"`
	TargetType  string `json:"target_type"`
	Partner     string `json:"partner,omitempty"`
	CurrentDate string `json:"current_date,omitempty"`
	CurrentType string `json:"current_type,omitempty"`
	PartnerDate string `json:"partner_date,omitempty"`
	PartnerType string `json:"partner_type,omitempty"`
}

// Fingerprint computes the stable content hash of a validated extraction.
// Two submissions normalizing to the same fingerprint are the same logical
// request.
func Fingerprint(v domain.ValidatedExtraction) string {
	p := fingerprintPayload{
		Requester:  strings.ToLower(v.RequesterName()),
		Action:     string(v.RequestedAction),
		TargetDate: v.TargetDate.String(),
		TargetType: string(v.TargetShiftType),
	}
	if v.RequestedAction == domain.ActionSwap {
		p.Partner = strings.ToLower(v.PartnerName())
		if v.CurrentShiftDate != nil {
			p.CurrentDate = v.CurrentShiftDate.String()
		}
		if v.CurrentShiftType != nil {
			p.CurrentType = string(*v.CurrentShiftType)
		}
		pd, pt := v.PartnerSlot()
		p.PartnerDate = pd.String()
		p.PartnerType = string(pt)
	}
	b, _ := json.Marshal(p)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Preview runs the lenient normalization path and, when the draft is already
// complete, a fresh rule validation. Nothing is persisted.
func (s *SchedulerService) Preview(ctx context.Context, actor *domain.Employee, in SubmitInput) (*PreviewResult, error) {
	draft, _, err := s.resolveDraft(ctx, actor, in)
	if err != nil {
		return nil, err
	}

	validated, needs, err := s.Extraction.Normalize(ctx, *draft, actor, false)
	if err != nil {
		return nil, err
	}
	out := &PreviewResult{Parsed: *draft, NeedsInput: needs}
	if validated == nil {
		return out, nil
	}

	verdict, err := s.Rules.Validate(ctx, *validated)
	if err != nil {
		return nil, err
	}
	out.Validated = validated
	out.Validation = verdict
	out.Summary = Summary(*validated)
	return out, nil
}

// Submit runs the strict path end to end: extract, normalize, authorize,
// validate, fingerprint, persist-once. Rule violations still persist the
// request (status rejected); extraction and validation failures persist
// nothing.
func (s *SchedulerService) Submit(ctx context.Context, actor *domain.Employee, in SubmitInput) (*SubmitResult, error) {
	ctx, span := otel.Tracer("services.scheduler").Start(ctx, "SchedulerService.Submit",
		trace.WithAttributes(attribute.Bool("submission.structured", in.Structured != nil)))
	defer span.End()

	submittedAt := time.Now().UTC()

	draft, rawText, err := s.resolveDraft(ctx, actor, in)
	if err != nil {
		return nil, err
	}
	parsedAt := time.Now().UTC()

	rawExtraction, _ := json.Marshal(draft)
	if err := s.Extraction.EnsureVersion(ctx); err != nil {
		return nil, err
	}
	version := s.Extraction.Provider.ExtractionVersion()

	validated, _, err := s.Extraction.Normalize(ctx, *draft, actor, true)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(actor, *validated); err != nil {
		return nil, err
	}

	verdict, err := s.Rules.Validate(ctx, *validated)
	if err != nil {
		return nil, err
	}
	validatedAt := time.Now().UTC()

	fp := Fingerprint(*validated)
	span.SetAttributes(attribute.String("request.action", string(validated.RequestedAction)))

	if existing, err := repo.GetRequestByFingerprint(ctx, s.DB, fp); err != nil {
		return nil, err
	} else if existing != nil {
		span.SetAttributes(attribute.Bool("request.idempotent_hit", true))
		return s.buildResult(existing, *draft, verdict, version, true), nil
	}

	req := &domain.ScheduleRequest{
		RawText:           rawText,
		ExtractedData:     *draft,
		RawExtraction:     string(rawExtraction),
		Validated:         *validated,
		ExtractionVersion: version,
		Fingerprint:       fp,
		RequesterID:       actor.ID,
	}
	if verdict.Requester != nil {
		req.RequesterID = verdict.Requester.ID
	}
	if verdict.Partner != nil {
		req.PartnerID = &verdict.Partner.ID
	}
	if err := s.resolveShiftRefs(ctx, req, *validated, verdict); err != nil {
		return nil, err
	}
	req.Status = initialStatus(*validated, verdict.Valid, req.CoverageShiftID != nil)

	if err := repo.CreateRequest(ctx, s.DB, req); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost the insert race against an identical concurrent
			// submission; the winner's row is the record.
			winner, ferr := repo.GetRequestByFingerprint(ctx, s.DB, fp)
			if ferr != nil || winner == nil {
				return nil, apperr.New(apperr.CodeDBError,
					"Something went wrong saving the request.",
					fmt.Sprintf("fingerprint winner re-fetch failed: %v", ferr), 500)
			}
			span.SetAttributes(attribute.Bool("request.idempotent_hit", true))
			return s.buildResult(winner, *draft, verdict, version, true), nil
		}
		return nil, err
	}

	s.recordSubmission(ctx, req, submittedAt, parsedAt, validatedAt)
	span.SetAttributes(attribute.String("request.status", string(req.Status)))

	log.Info().
		Str("request_id", req.ID).
		Str("action", string(validated.RequestedAction)).
		Str("status", string(req.Status)).
		Bool("valid", verdict.Valid).
		Msg("schedule request created")

	return s.buildResult(req, *draft, verdict, version, false), nil
}

// resolveDraft produces the draft extraction from either input form, plus
// the raw text stored for audit.
func (s *SchedulerService) resolveDraft(ctx context.Context, actor *domain.Employee, in SubmitInput) (*domain.ParsedExtraction, string, error) {
	if in.Structured != nil {
		raw, _ := json.Marshal(in.Structured)
		return in.Structured, string(raw), nil
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, "", apperr.New(apperr.CodeValidationError,
			"Please describe the shift change you need, or fill in the form fields.",
			"submission had neither text nor structured fields", 422)
	}
	draft, _, err := s.Extraction.Extract(ctx, text, actor)
	if err != nil {
		return nil, "", err
	}
	return draft, text, nil
}

// authorize enforces that a non-admin caller only submits requests whose
// resolved requester identity is their own. The check runs against the
// validated (post-default) extraction, not the raw draft.
func (s *SchedulerService) authorize(actor *domain.Employee, v domain.ValidatedExtraction) error {
	if actor == nil {
		return apperr.New(apperr.CodeValidationError,
			"Sign in before submitting a request.", "no acting identity", 401)
	}
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	if sameName(v.EmployeeFirstName, actor.FirstName) &&
		(deref(v.EmployeeLastName) == "" || sameName(deref(v.EmployeeLastName), actor.LastName)) {
		return nil
	}
	if sameName(v.RequesterName(), actor.FullName) {
		return nil
	}
	return apperr.New(apperr.CodeValidationError,
		"You can only submit requests for your own shifts.",
		fmt.Sprintf("requester %q does not match caller %q", v.RequesterName(), actor.FullName), 403)
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// resolveShiftRefs records best-effort normalized shift references. They aid
// approval-time mutations and the admin UI but are never re-derived for
// authorization decisions.
func (s *SchedulerService) resolveShiftRefs(ctx context.Context, req *domain.ScheduleRequest, v domain.ValidatedExtraction, verdict *RuleResult) error {
	if verdict.Requester == nil {
		return nil
	}
	switch v.RequestedAction {
	case domain.ActionSwap:
		if v.CurrentShiftDate != nil && v.CurrentShiftType != nil {
			own, err := repo.GetAssignedShiftBySlot(ctx, s.DB, *v.CurrentShiftDate, *v.CurrentShiftType, verdict.Requester.ID)
			if err != nil {
				return err
			}
			if own != nil {
				req.RequesterShiftID = &own.ID
			}
		}
		if verdict.Partner != nil {
			pd, pt := v.PartnerSlot()
			theirs, err := repo.GetAssignedShiftBySlot(ctx, s.DB, pd, pt, verdict.Partner.ID)
			if err != nil {
				return err
			}
			if theirs != nil {
				req.PartnerShiftID = &theirs.ID
			}
		}
	case domain.ActionCover:
		own, err := repo.GetAssignedShiftBySlot(ctx, s.DB, v.TargetDate, v.TargetShiftType, verdict.Requester.ID)
		if err != nil {
			return err
		}
		if own != nil {
			req.CoverageShiftID = &own.ID
		}
	default:
		if v.CurrentShiftDate != nil && v.CurrentShiftType != nil {
			own, err := repo.GetAssignedShiftBySlot(ctx, s.DB, *v.CurrentShiftDate, *v.CurrentShiftType, verdict.Requester.ID)
			if err != nil {
				return err
			}
			if own != nil {
				req.RequesterShiftID = &own.ID
			}
		}
	}
	return nil
}

// initialStatus is the pure status-resolution table for a fresh request.
func initialStatus(v domain.ValidatedExtraction, valid, coverageResolvable bool) domain.RequestStatus {
	switch {
	case !valid:
		return domain.StatusRejected
	case v.RequestedAction == domain.ActionSwap:
		return domain.StatusPendingPartner
	case v.RequestedAction == domain.ActionCover && coverageResolvable:
		return domain.StatusPendingFill
	default:
		return domain.StatusPendingAdmin
	}
}

// recordSubmission writes metrics timestamps and the audit entry. These are
// observability writes; failures are logged, never surfaced.
func (s *SchedulerService) recordSubmission(ctx context.Context, req *domain.ScheduleRequest, submittedAt, parsedAt, validatedAt time.Time) {
	if err := repo.CreateRequestMetrics(ctx, s.DB, &domain.RequestMetrics{
		RequestID:   req.ID,
		SubmittedAt: submittedAt,
	}); err != nil {
		log.Warn().Err(err).Str("request_id", req.ID).Msg("request metrics insert failed")
		return
	}
	_ = repo.SetMetricsTimestamp(ctx, s.DB, req.ID, "parsed_at", parsedAt)
	_ = repo.SetMetricsTimestamp(ctx, s.DB, req.ID, "validated_at", validatedAt)
	if req.Status == domain.StatusRejected {
		_ = repo.SetMetricsTimestamp(ctx, s.DB, req.ID, "rejected_at", validatedAt)
	}
	if err := repo.AppendAudit(ctx, s.DB, "request_submitted", domain.JSONMap{
		"request_id": req.ID,
		"action":     string(req.Validated.RequestedAction),
		"status":     string(req.Status),
	}); err != nil {
		log.Warn().Err(err).Str("request_id", req.ID).Msg("audit append failed")
	}
}

func (s *SchedulerService) buildResult(req *domain.ScheduleRequest, draft domain.ParsedExtraction, verdict *RuleResult, version string, idempotent bool) *SubmitResult {
	out := &SubmitResult{
		RequestID:         req.ID,
		Status:            req.Status,
		ExtractionVersion: version,
		Parsed:            draft,
		Validation:        verdict,
		IdempotentHit:     idempotent,
		Summary:           Summary(req.Validated),
	}
	// Only requests sitting in the admin queue expose an approval handle;
	// pending_partner and pending_fill wait on someone else first.
	if req.Status.AdminDecidable() {
		id := req.ID
		out.ApprovalID = &id
	}
	return out
}

// Summary renders the deterministic one-line description of a validated
// request. It derives purely from the validated extraction, never from the
// free text.
func Summary(v domain.ValidatedExtraction) string {
	slot := fmt.Sprintf("%s %s", v.TargetDate, v.TargetShiftType)
	switch v.RequestedAction {
	case domain.ActionSwap:
		pd, pt := v.PartnerSlot()
		own := slot
		if v.CurrentShiftDate != nil && v.CurrentShiftType != nil {
			own = fmt.Sprintf("%s %s", *v.CurrentShiftDate, *v.CurrentShiftType)
		}
		return fmt.Sprintf("%s requests to swap their %s shift with %s's %s %s shift",
			v.RequesterName(), own, v.PartnerName(), pd, pt)
	case domain.ActionCover:
		return fmt.Sprintf("%s requests coverage for their %s shift", v.RequesterName(), slot)
	default:
		return fmt.Sprintf("%s requests to move to the %s shift", v.RequesterName(), slot)
	}
}

// RequestView is one request row enriched for listings.
type RequestView struct {
	domain.ScheduleRequest
	Urgent  bool   `json:"urgent"`
	Summary string `json:"summary"`
}

// ListRequests returns the requests visible to actor: admins see all,
// employees see requests where they are the requester or the swap partner.
// Urgent requests (slot within 48h) sort first, then newest first.
func (s *SchedulerService) ListRequests(ctx context.Context, actor *domain.Employee) ([]RequestView, error) {
	var (
		rows []domain.ScheduleRequest
		err  error
	)
	if actor.Role == domain.RoleAdmin {
		rows, err = repo.ListAllRequests(ctx, s.DB)
	} else {
		rows, err = repo.ListRequestsForEmployee(ctx, s.DB, actor.ID)
	}
	if err != nil {
		return nil, err
	}

	out := make([]RequestView, 0, len(rows))
	for _, r := range rows {
		out = append(out, RequestView{
			ScheduleRequest: r,
			Urgent:          r.Status.AwaitingAction() && s.Clock.Urgent(r.Validated.TargetDate),
			Summary:         Summary(r.Validated),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Urgent != out[j].Urgent {
			return out[i].Urgent
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetRequest fetches one request visible to actor.
func (s *SchedulerService) GetRequest(ctx context.Context, actor *domain.Employee, id string) (*domain.ScheduleRequest, error) {
	req, err := repo.GetRequest(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if actor.Role != domain.RoleAdmin && req.RequesterID != actor.ID &&
		(req.PartnerID == nil || *req.PartnerID != actor.ID) {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// ShiftView is one shift row enriched with the assignee's name for the board.
type ShiftView struct {
	domain.Shift
	AssignedEmployeeName string `json:"assigned_employee_name,omitempty"`
}

// ListShifts returns the shift board for [from, to], optionally filtered to
// one assignee, with assignee names resolved.
func (s *SchedulerService) ListShifts(ctx context.Context, from, to domain.Date, employeeID string) ([]ShiftView, error) {
	shifts, err := repo.ListShiftsInRange(ctx, s.DB, from, to, employeeID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(shifts))
	for _, sh := range shifts {
		if sh.AssignedEmployeeID != nil {
			ids = append(ids, *sh.AssignedEmployeeID)
		}
	}
	emps, err := repo.FindEmployeesByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(emps))
	for _, e := range emps {
		names[e.ID] = e.FullName
	}

	out := make([]ShiftView, 0, len(shifts))
	for _, sh := range shifts {
		view := ShiftView{Shift: sh}
		if sh.AssignedEmployeeID != nil {
			view.AssignedEmployeeName = names[*sh.AssignedEmployeeID]
		}
		out = append(out, view)
	}
	return out, nil
}

// CreateShift adds a new shift row for a free slot.
func (s *SchedulerService) CreateShift(ctx context.Context, sh *domain.Shift) error {
	if err := repo.CreateShift(ctx, s.DB, sh); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return ErrSlotTaken
		}
		return err
	}
	return nil
}

// ListCandidates returns the employees eligible to take the given shift.
func (s *SchedulerService) ListCandidates(ctx context.Context, shiftID string) ([]Candidate, error) {
	shift, err := repo.GetShift(ctx, s.DB, shiftID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrShiftNotFound
		}
		return nil, err
	}
	return s.Rules.EligibleCandidates(ctx, shift)
}

// AssignShift sets a shift's assignee (last write wins; the admin is the
// authority here). When the shift is the coverage target of a pending_fill
// request, that request transitions to approved inside the same transaction.
// Returns the ID of the auto-approved request, if any.
func (s *SchedulerService) AssignShift(ctx context.Context, shiftID string, employeeID *string) (*string, error) {
	var approvedID *string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.SetShiftAssignee(ctx, tx, shiftID, employeeID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrShiftNotFound
			}
			return err
		}
		if employeeID == nil {
			return nil
		}
		fill, err := repo.FindPendingFillByCoverageShift(ctx, tx, shiftID)
		if err != nil || fill == nil {
			return err
		}
		won, err := repo.UpdateStatusIf(ctx, tx, fill.ID, domain.StatusApproved, domain.StatusPendingFill)
		if err != nil {
			return err
		}
		if won {
			approvedID = &fill.ID
			_ = repo.SetMetricsTimestamp(ctx, tx, fill.ID, "approved_at", time.Now().UTC())
			if err := repo.AppendAudit(ctx, tx, "fill_assigned", domain.JSONMap{
				"request_id":  fill.ID,
				"shift_id":    shiftID,
				"employee_id": *employeeID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approvedID, nil
}
