// Reporting HTTP handlers.
//
// GET /reports/metrics (admin) returns request counts, approval rate, and
// pipeline latency averages derived from the write-once request_metrics
// timestamps. An optional ?window=72h limits the report to recent requests.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// MetricsReport handles GET /reports/metrics (admin only).
func (h *Handlers) MetricsReport(c *gin.Context) {
	var window time.Duration
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "window must be a positive duration like 72h")
			return
		}
		window = d
	}
	out, err := h.metrics.Summarize(c.Request.Context(), window)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}
