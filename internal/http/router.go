// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, identity resolution, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/shiftdesk/go-schedule-backend/internal/config"
	"github.com/shiftdesk/go-schedule-backend/internal/http/handlers"
	"github.com/shiftdesk/go-schedule-backend/internal/http/middleware"
	"github.com/shiftdesk/go-schedule-backend/internal/llm"
	"github.com/shiftdesk/go-schedule-backend/internal/orgtime"
	"github.com/shiftdesk/go-schedule-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health and metrics endpoints, and then mounts
// the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per employee/IP)
//  8. CORS and Security headers
//  9. Identity resolution on the API group only (health/metrics stay open)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, provider llm.Provider, clock orgtime.Clock, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction. The X-Employee-ID identity header
	// is masked by the logger's built-in set.
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// Response compression; /metrics negotiates its own encoding via promhttp.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per employee/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByEmployeeOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Employee-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Employee-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health, including the extraction provider's reachability.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"provider": gin.H{
				"name":   provider.Name(),
				"model":  provider.ModelName(),
				"health": provider.HealthCheck(c.Request.Context()),
			},
		})
	})

	// Dependency injection: services ← db/provider/clock
	rules := services.NewRuleEngine(db)
	extraction := services.NewExtractionService(db, provider, clock)
	scheduler := services.NewSchedulerService(db, extraction, rules, clock)
	partner := services.NewPartnerService(db)
	approval := services.NewApprovalService(db)
	employees := services.NewEmployeeService(db)
	metrics := services.NewMetricsService(db)
	h := handlers.New(scheduler, partner, approval, scheduler, employees, metrics)

	// Public API: every route below requires a resolved acting employee.
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	api.Use(middleware.Identity(db))
	{
		// Schedule requests
		api.POST("/schedule/preview", h.PreviewSchedule)
		api.POST("/schedule/requests", h.SubmitSchedule)
		api.GET("/schedule/requests", h.ListScheduleRequests)
		api.GET("/schedule/requests/:id", h.GetScheduleRequest)

		// Partner consent
		api.GET("/partner/requests", h.ListPartnerRequests)
		api.POST("/partner/requests/:id/accept", h.AcceptPartnerRequest)
		api.POST("/partner/requests/:id/reject", h.RejectPartnerRequest)

		// Shift board
		api.GET("/shifts", h.ListShifts)
		api.GET("/employees", h.ListEmployees)
		api.GET("/employees/:id", h.GetEmployee)

		// Admin surface
		admin := api.Group("")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/approvals", h.ListApprovals)
			admin.POST("/approvals/:id/approve", h.ApproveRequest)
			admin.POST("/approvals/:id/reject", h.RejectRequest)

			admin.POST("/shifts", h.CreateShift)
			admin.GET("/shifts/:id/candidates", h.ListShiftCandidates)
			admin.PUT("/shifts/:id/assignee", h.AssignShift)

			admin.POST("/employees", h.CreateEmployee)
			admin.PUT("/employees/:id", h.UpdateEmployee)
			admin.DELETE("/employees/:id", h.DeleteEmployee)

			admin.GET("/reports/metrics", h.MetricsReport)
		}
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
