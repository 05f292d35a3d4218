package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/shiftdesk/go-schedule-backend/internal/domain"
	"github.com/shiftdesk/go-schedule-backend/internal/repo"
)

var identDBSeq atomic.Int64

func newIdentityDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:identity%d?mode=memory&cache=shared", identDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Employee{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func identityRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity(db))
	r.GET("/whoami", func(c *gin.Context) {
		actor := Actor(c)
		if actor == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no actor"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "name": actor.FullName, "role": actor.Role})
	})
	admin := r.Group("/admin", RequireAdmin())
	admin.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func seedIdentity(t *testing.T, db *gorm.DB, first, last string, role domain.EmployeeRole) *domain.Employee {
	t.Helper()
	e := &domain.Employee{FirstName: first, LastName: last, Role: role}
	if err := repo.CreateEmployee(context.Background(), db, e); err != nil {
		t.Fatalf("seed employee: %v", err)
	}
	return e
}

func TestIdentity_MissingHeader(t *testing.T) {
	r := identityRouter(t, newIdentityDB(t))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "missing_identity") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestIdentity_UnknownEmployee(t *testing.T) {
	r := identityRouter(t, newIdentityDB(t))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Employee-ID", "ghost")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unknown_identity") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestIdentity_ResolvesActor(t *testing.T) {
	db := newIdentityDB(t)
	emp := seedIdentity(t, db, "Alex", "Johnson", domain.RoleEmployee)
	r := identityRouter(t, db)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Employee-ID", "  "+emp.ID+"  ") // header value is trimmed
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Alex Johnson") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestRequireAdmin_GatesByRole(t *testing.T) {
	db := newIdentityDB(t)
	emp := seedIdentity(t, db, "Alex", "Johnson", domain.RoleEmployee)
	admin := seedIdentity(t, db, "Priya", "Smith", domain.RoleAdmin)
	r := identityRouter(t, db)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("X-Employee-ID", emp.ID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("employee status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "admin_required") {
		t.Fatalf("body = %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("X-Employee-ID", admin.ID)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("admin status = %d", w.Code)
	}
}

func TestRequireAdmin_WithoutIdentityRefuses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// Misconfigured route: RequireAdmin without Identity must fail closed.
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestActor_NilWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if Actor(c) != nil {
		t.Fatalf("actor should be nil before Identity runs")
	}
	c.Set(ctxKeyActor, "not an employee")
	if Actor(c) != nil {
		t.Fatalf("actor should be nil for a mistyped context value")
	}
}
