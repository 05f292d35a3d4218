// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the identity boundary: every API request names its
// acting employee via the X-Employee-ID header, and Identity() resolves that
// header into a full Employee record before any handler runs. Handlers and
// services consume the resolved identity only; they never read the header
// themselves. RequireAdmin() layers the role check for admin-only routes.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shiftdesk/go-schedule-backend/internal/domain"
	"github.com/shiftdesk/go-schedule-backend/internal/repo"
)

const (
	// employeeIDHeader carries the acting employee's ID.
	employeeIDHeader = "X-Employee-ID"
	// ctxKeyEmployeeID stores the acting employee's ID for logging and
	// rate-limit keying.
	ctxKeyEmployeeID = "employeeID"
	// ctxKeyActor stores the resolved *domain.Employee.
	ctxKeyActor = "actor"
)

// Identity resolves the X-Employee-ID header into the acting Employee and
// aborts with 401 when the header is missing or names no known employee.
func Identity(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(employeeIDHeader))
		if id == "" {
			abortIdentity(c, http.StatusUnauthorized, "missing_identity",
				"X-Employee-ID header is required")
			return
		}
		emp, err := repo.GetEmployee(c.Request.Context(), db, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				abortIdentity(c, http.StatusUnauthorized, "unknown_identity",
					"no employee matches the supplied identity")
				return
			}
			abortIdentity(c, http.StatusInternalServerError, "identity_lookup_failed",
				"could not resolve the acting identity")
			return
		}
		c.Set(ctxKeyEmployeeID, emp.ID)
		c.Set(ctxKeyActor, emp)
		c.Next()
	}
}

// RequireAdmin aborts with 403 unless the resolved actor is an admin. Must be
// installed after Identity().
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor(c)
		if actor == nil || actor.Role != domain.RoleAdmin {
			abortIdentity(c, http.StatusForbidden, "admin_required",
				"this operation requires an admin")
			return
		}
		c.Next()
	}
}

// Actor returns the resolved acting employee, or nil when Identity() did not
// run.
func Actor(c *gin.Context) *domain.Employee {
	if v, ok := c.Get(ctxKeyActor); ok {
		if emp, ok := v.(*domain.Employee); ok {
			return emp
		}
	}
	return nil
}

func abortIdentity(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       code,
		"message":    message,
	})
}
