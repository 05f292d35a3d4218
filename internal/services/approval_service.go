// Package services – ApprovalService
//
// This file implements admin approval and rejection. The status flip is a
// single conditional update over the admin-actionable statuses, so exactly
// one concurrent caller wins and the rest observe "not pending". Approval
// also performs the shift mutation the request implies (swap cross-assign,
// move/cover assign-or-create) inside the same transaction as the flip, so
// the mutation happens exactly once.
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

// ApprovalService handles the admin review queue.
type ApprovalService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewApprovalService constructs an ApprovalService.
func NewApprovalService(db *gorm.DB) *ApprovalService {
	return &ApprovalService{DB: db}
}

// ListPending returns requests an admin may act on, oldest first.
func (s *ApprovalService) ListPending(ctx context.Context) ([]domain.ScheduleRequest, error) {
	return repo.ListRequestsByStatus(ctx, s.DB, domain.AdminActionable()...)
}

// Approve flips the request to approved and applies its shift mutations.
// A request that is not admin-actionable returns ErrNotPending with the
// stored state untouched.
func (s *ApprovalService) Approve(ctx context.Context, actor *domain.Employee, requestID string) (*domain.ScheduleRequest, error) {
	return s.decide(ctx, actor, requestID, domain.StatusApproved)
}

// Reject flips the request to rejected. No shift state changes.
func (s *ApprovalService) Reject(ctx context.Context, actor *domain.Employee, requestID string) (*domain.ScheduleRequest, error) {
	return s.decide(ctx, actor, requestID, domain.StatusRejected)
}

func (s *ApprovalService) decide(ctx context.Context, actor *domain.Employee, requestID string, next domain.RequestStatus) (*domain.ScheduleRequest, error) {
	var req *domain.ScheduleRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = repo.GetRequest(ctx, tx, requestID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrRequestNotFound
			}
			return err
		}

		won, err := repo.UpdateStatusIf(ctx, tx, req.ID, next, domain.AdminActionable()...)
		if err != nil {
			return err
		}
		if !won {
			return ErrNotPending
		}
		req.Status = next

		if next == domain.StatusApproved {
			if err := s.applyShiftMutations(ctx, tx, req); err != nil {
				return err
			}
			_ = repo.SetMetricsTimestamp(ctx, tx, req.ID, "approved_at", time.Now().UTC())
		} else {
			_ = repo.SetMetricsTimestamp(ctx, tx, req.ID, "rejected_at", time.Now().UTC())
		}

		return repo.AppendAudit(ctx, tx, "admin_"+string(next), domain.JSONMap{
			"request_id": req.ID,
			"admin_id":   actor.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("request_id", req.ID).
		Str("admin_id", actor.ID).
		Str("status", string(next)).
		Msg("admin decision recorded")
	return req, nil
}

// applyShiftMutations performs the assignment changes an approved request
// implies. Target shift rows that do not exist yet are created on the fly;
// missing normalized references degrade to slot lookups.
func (s *ApprovalService) applyShiftMutations(ctx context.Context, tx *gorm.DB, req *domain.ScheduleRequest) error {
	v := req.Validated
	switch v.RequestedAction {
	case domain.ActionSwap:
		if req.PartnerID == nil {
			return nil
		}
		// Side A: the requester's current slot goes to the partner. The row
		// may not exist yet; assignSlot creates it so the partner is never
		// left uncovered by a half-applied swap.
		if v.CurrentShiftDate != nil && v.CurrentShiftType != nil {
			if err := s.assignSlot(ctx, tx, req.RequesterShiftID, *v.CurrentShiftDate, *v.CurrentShiftType, *req.PartnerID); err != nil {
				return err
			}
		} else if req.RequesterShiftID != nil {
			if err := repo.SetShiftAssignee(ctx, tx, *req.RequesterShiftID, req.PartnerID); err != nil {
				return err
			}
		}
		// Side B: the partner's slot goes to the requester.
		pd, pt := v.PartnerSlot()
		return s.assignSlot(ctx, tx, req.PartnerShiftID, pd, pt, req.RequesterID)
	default:
		return s.assignSlot(ctx, tx, nil, v.TargetDate, v.TargetShiftType, req.RequesterID)
	}
}

// assignSlot assigns employeeID to the shift identified by shiftID when
// known, else by slot, creating the row when the slot has none yet.
func (s *ApprovalService) assignSlot(ctx context.Context, tx *gorm.DB, shiftID *string, date domain.Date, typ domain.ShiftType, employeeID string) error {
	if shiftID != nil {
		return repo.SetShiftAssignee(ctx, tx, *shiftID, &employeeID)
	}
	shift, err := repo.GetShiftBySlot(ctx, tx, date, typ)
	if err != nil {
		return err
	}
	if shift == nil {
		return repo.CreateShift(ctx, tx, &domain.Shift{
			Date:               date,
			Type:               typ,
			AssignedEmployeeID: &employeeID,
		})
	}
	return repo.SetShiftAssignee(ctx, tx, shift.ID, &employeeID)
}
