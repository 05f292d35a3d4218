// Package services – PartnerService
//
// This file implements the swap-partner consent step. A swap request rests in
// pending_partner until the named partner accepts (moving it on to admin
// review) or rejects it. Only the request's resolved partner identity may
// act; any other status short-circuits with ErrNotPending and leaves the row
// untouched. The conditional status update makes concurrent duplicate answers
// resolve first-wins.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/shiftdesk/go-schedule-backend/internal/domain"
	"github.com/shiftdesk/go-schedule-backend/internal/repo"
)

// PartnerService handles partner consent on swap requests.
type PartnerService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewPartnerService constructs a PartnerService.
func NewPartnerService(db *gorm.DB) *PartnerService {
	return &PartnerService{DB: db}
}

// ListPending returns the swap requests awaiting actor's consent, oldest
// first.
func (s *PartnerService) ListPending(ctx context.Context, actor *domain.Employee) ([]domain.ScheduleRequest, error) {
	return repo.ListPartnerPending(ctx, s.DB, actor.ID)
}

// Accept records the partner's consent: pending_partner becomes
// pending_admin.
func (s *PartnerService) Accept(ctx context.Context, actor *domain.Employee, requestID string) (*domain.ScheduleRequest, error) {
	return s.respond(ctx, actor, requestID, domain.PartnerAccept)
}

// Reject records the partner's refusal: pending_partner becomes
// partner_rejected (terminal).
func (s *PartnerService) Reject(ctx context.Context, actor *domain.Employee, requestID string) (*domain.ScheduleRequest, error) {
	return s.respond(ctx, actor, requestID, domain.PartnerReject)
}

func (s *PartnerService) respond(ctx context.Context, actor *domain.Employee, requestID string, action domain.TransitionAction) (*domain.ScheduleRequest, error) {
	req, err := repo.GetRequest(ctx, s.DB, requestID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if req.PartnerID == nil || *req.PartnerID != actor.ID {
		return nil, ErrWrongActor
	}

	next, ok := domain.Transition(req.Status, action)
	if !ok {
		return nil, ErrNotPending
	}
	won, err := repo.UpdateStatusIf(ctx, s.DB, req.ID, next, domain.StatusPendingPartner)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrNotPending
	}
	req.Status = next

	if next == domain.StatusPartnerRejected {
		_ = repo.SetMetricsTimestamp(ctx, s.DB, req.ID, "rejected_at", time.Now().UTC())
	}
	if err := repo.AppendAudit(ctx, s.DB, "partner_"+actionName(action), domain.JSONMap{
		"request_id": req.ID,
		"partner_id": actor.ID,
		"status":     string(next),
	}); err != nil {
		log.Warn().Err(err).Str("request_id", req.ID).Msg("audit append failed")
	}

	log.Info().
		Str("request_id", req.ID).
		Str("partner_id", actor.ID).
		Str("status", string(next)).
		Msg("partner consent recorded")
	return req, nil
}

func actionName(a domain.TransitionAction) string {
	if a == domain.PartnerAccept {
		return "accepted"
	}
	return "rejected"
}
