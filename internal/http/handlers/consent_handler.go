// Partner consent and admin approval HTTP handlers.
//
// This file exposes the two review surfaces of the request lifecycle:
//   - GET  /partner/requests            (swaps awaiting my consent)
//   - POST /partner/requests/{id}/accept
//   - POST /partner/requests/{id}/reject
//   - GET  /approvals                   (admin queue, oldest first)
//   - POST /approvals/{id}/approve
//   - POST /approvals/{id}/reject
//
// Both surfaces resolve concurrent duplicate actions first-wins: the loser
// receives a 409 APPROVAL_NOT_PENDING envelope and no state changes.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shiftdesk/go-schedule-backend/internal/http/middleware"
)

// ListPartnerRequests handles GET /partner/requests.
func (h *Handlers) ListPartnerRequests(c *gin.Context) {
	out, err := h.partner.ListPending(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"requests": out, "total": len(out)})
}

// AcceptPartnerRequest handles POST /partner/requests/:id/accept.
func (h *Handlers) AcceptPartnerRequest(c *gin.Context) {
	out, err := h.partner.Accept(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// RejectPartnerRequest handles POST /partner/requests/:id/reject.
func (h *Handlers) RejectPartnerRequest(c *gin.Context) {
	out, err := h.partner.Reject(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// ListApprovals handles GET /approvals (admin only).
func (h *Handlers) ListApprovals(c *gin.Context) {
	out, err := h.approval.ListPending(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"requests": out, "total": len(out)})
}

// ApproveRequest handles POST /approvals/:id/approve (admin only).
func (h *Handlers) ApproveRequest(c *gin.Context) {
	out, err := h.approval.Approve(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// RejectRequest handles POST /approvals/:id/reject (admin only).
func (h *Handlers) RejectRequest(c *gin.Context) {
	out, err := h.approval.Reject(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}
