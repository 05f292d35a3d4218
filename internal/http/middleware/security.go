// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, which hardens every response of the
// scheduling API with a conservative header set. The API serves JSON only and
// normally sits behind a reverse proxy, so there is no CSP here; HSTS is
// opt-in and only emitted when the request actually arrived over HTTPS.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures the headers emitted by SecurityHeaders.
//
// EnableHSTS must only be turned on when traffic is HTTPS end-to-end,
// including the hop between the proxy and this process; it is never emitted
// for plain-HTTP requests regardless. HSTSMaxAge defaults to 180 days when
// unset. NoStore adds Cache-Control: no-store for deployments where schedule
// and employee payloads must not be cached. EnablePolicy adds the browser
// feature policies; they are inert for non-browser clients.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

// SecurityHeaders returns a middleware adding a production security-header
// posture to each response.
//
// Always set: X-Content-Type-Options: nosniff, X-Frame-Options: DENY,
// Referrer-Policy: no-referrer. With EnablePolicy: Permissions-Policy and
// X-Permitted-Cross-Domain-Policies: none. With NoStore: Cache-Control:
// no-store plus the legacy Pragma/Expires pair. With EnableHSTS and an HTTPS
// request: Strict-Transport-Security with includeSubDomains and preload.
//
// When a correlation ID is already on the response, it is appended to
// Access-Control-Expose-Headers so browser clients can read it back and
// quote it in support requests.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hstsValue := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hstsValue)
		}

		if rid := h.Get(requestIDHeader); rid != "" {
			appendExposedHeader(h, requestIDHeader)
		}

		c.Next()
	}
}

// appendExposedHeader adds name to Access-Control-Expose-Headers without
// clobbering values other middleware (CORS) already put there.
func appendExposedHeader(h http.Header, name string) {
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	switch {
	case cur == "":
		h.Set(hdr, name)
	case !strings.Contains(cur, name):
		h.Set(hdr, cur+", "+name)
	}
}

// isHTTPS reports whether the request used HTTPS directly (r.TLS != nil) or
// arrived through a proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
