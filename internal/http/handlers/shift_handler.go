// Shift board HTTP handlers.
//
// This file exposes REST endpoints for shifts:
//   - GET  /shifts                 (board by date range, assignee names)
//   - POST /shifts                 (admin: create a slot)
//   - GET  /shifts/{id}/candidates (admin: eligible employees + workload)
//   - PUT  /shifts/{id}/assignee   (admin: assign/unassign, resolves pending_fill)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shiftdesk/go-schedule-backend/internal/domain"
)

// CreateShiftRequest is the JSON payload for creating a shift slot.
type CreateShiftRequest struct {
	// Date of the slot, "YYYY-MM-DD".
	Date domain.Date `json:"date" binding:"required"`
	// Type is "morning" or "night".
	Type string `json:"type" binding:"required"`
	// RequiredSkills lists skill tags an assignee must hold.
	RequiredSkills []string `json:"required_skills"`
	// AssignedEmployeeID optionally seeds the initial assignee.
	AssignedEmployeeID *string `json:"assigned_employee_id"`
}

// AssignShiftRequest is the JSON payload for (re)assigning a shift.
// A null employee_id clears the assignment.
type AssignShiftRequest struct {
	EmployeeID *string `json:"employee_id"`
}

// ListShifts handles GET /shifts?from=YYYY-MM-DD&to=YYYY-MM-DD&employee_id=...
func (h *Handlers) ListShifts(c *gin.Context) {
	from, err := domain.ParseDate(c.DefaultQuery("from", ""))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "from must be a YYYY-MM-DD date")
		return
	}
	to, err := domain.ParseDate(c.DefaultQuery("to", ""))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "to must be a YYYY-MM-DD date")
		return
	}
	if to.Before(from) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "to must not precede from")
		return
	}
	out, err := h.shifts.ListShifts(c.Request.Context(), from, to, strings.TrimSpace(c.Query("employee_id")))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"shifts": out, "total": len(out)})
}

// CreateShift handles POST /shifts (admin only).
func (h *Handlers) CreateShift(c *gin.Context) {
	var req CreateShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON payload")
		return
	}
	typ, err := domain.ParseShiftType(req.Type)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type must be morning or night")
		return
	}
	sh := &domain.Shift{
		Date:               req.Date,
		Type:               typ,
		RequiredSkills:     domain.SkillSet{Skills: req.RequiredSkills},
		AssignedEmployeeID: req.AssignedEmployeeID,
	}
	if err := h.shifts.CreateShift(c.Request.Context(), sh); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, sh)
}

// ListShiftCandidates handles GET /shifts/:id/candidates (admin only).
func (h *Handlers) ListShiftCandidates(c *gin.Context) {
	out, err := h.shifts.ListCandidates(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"candidates": out, "total": len(out)})
}

// AssignShift handles PUT /shifts/:id/assignee (admin only).
//
// Last write wins; when the shift is the coverage target of a pending_fill
// request, that request is approved in the same transaction and its ID is
// echoed back.
func (h *Handlers) AssignShift(c *gin.Context) {
	var req AssignShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON payload")
		return
	}
	approvedID, err := h.shifts.AssignShift(c.Request.Context(), c.Param("id"), req.EmployeeID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"shift_id":            c.Param("id"),
		"assigned_employee":   req.EmployeeID,
		"approved_request_id": approvedID,
	})
}
