// Employee administration HTTP handlers.
//
// This file exposes admin CRUD over employees:
//   - GET    /employees
//   - GET    /employees/{id}
//   - POST   /employees        (admin)
//   - PUT    /employees/{id}   (admin)
//   - DELETE /employees/{id}   (admin)
//
// Name collisions are refused with EMPLOYEE_DUPLICATE_NAME because request
// validation resolves employees by name.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shiftdesk/go-schedule-backend/internal/domain"
)

// EmployeeRequest is the JSON payload for creating or updating an employee.
type EmployeeRequest struct {
	FirstName      string         `json:"first_name" binding:"required,min=1,max=255"`
	LastName       string         `json:"last_name" binding:"required,min=1,max=255"`
	Role           string         `json:"role"`
	Certifications *bool          `json:"certifications_expired"`
	Skills         []string       `json:"skills"`
	Availability   map[string]any `json:"availability"`
}

func (r EmployeeRequest) toDomain(id string) (*domain.Employee, bool) {
	role := domain.RoleEmployee
	switch r.Role {
	case "", string(domain.RoleEmployee):
	case string(domain.RoleAdmin):
		role = domain.RoleAdmin
	default:
		return nil, false
	}
	e := &domain.Employee{
		ID:           id,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Role:         role,
		Skills:       domain.SkillSet{Skills: r.Skills},
		Availability: domain.JSONMap(r.Availability),
	}
	if r.Certifications != nil {
		e.Certifications = domain.Certifications{Expired: *r.Certifications}
	}
	return e, true
}

// ListEmployees handles GET /employees.
func (h *Handlers) ListEmployees(c *gin.Context) {
	out, err := h.employees.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"employees": out, "total": len(out)})
}

// GetEmployee handles GET /employees/:id.
func (h *Handlers) GetEmployee(c *gin.Context) {
	out, err := h.employees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// CreateEmployee handles POST /employees (admin only).
func (h *Handlers) CreateEmployee(c *gin.Context) {
	var req EmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "first_name and last_name are required")
		return
	}
	e, okRole := req.toDomain("")
	if !okRole {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "role must be employee or admin")
		return
	}
	if err := h.employees.Create(c.Request.Context(), e); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, e)
}

// UpdateEmployee handles PUT /employees/:id (admin only).
func (h *Handlers) UpdateEmployee(c *gin.Context) {
	var req EmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "first_name and last_name are required")
		return
	}
	e, okRole := req.toDomain(c.Param("id"))
	if !okRole {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "role must be employee or admin")
		return
	}
	if err := h.employees.Update(c.Request.Context(), e); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, e)
}

// DeleteEmployee handles DELETE /employees/:id (admin only).
func (h *Handlers) DeleteEmployee(c *gin.Context) {
	if err := h.employees.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
