package security

import (
	"fmt"
	"net/http"
)

// HeadersConfig holds security headers configuration
type HeadersConfig struct {
	CSP string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	CrossOriginResource string
	// CacheControl is applied to every response; balances are per user and
	// must not be stored by shared caches.
	CacheControl string
}

// DefaultHeadersConfig returns headers suited to a JSON API that never
// serves documents.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "no-referrer",
		CrossOriginResource:   "same-origin",
		CacheControl:          "no-store",
	}
}

// HeadersMiddleware applies security headers to responses
type HeadersMiddleware struct {
	config HeadersConfig
	hsts   string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{config: config}
	if config.HSTSMaxAge > 0 {
		h.hsts = fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			h.hsts += "; includeSubDomains"
		}
	}
	return h
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		set := func(k, v string) {
			if v != "" {
				headers.Set(k, v)
			}
		}
		set("Content-Security-Policy", h.config.CSP)
		set("X-Frame-Options", h.config.XFrameOptions)
		set("X-Content-Type-Options", h.config.XContentTypeOptions)
		set("Referrer-Policy", h.config.ReferrerPolicy)
		set("Cross-Origin-Resource-Policy", h.config.CrossOriginResource)
		set("Cache-Control", h.config.CacheControl)

		// HSTS only means something over TLS.
		if r.TLS != nil {
			set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}
