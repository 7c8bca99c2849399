package httpmiddleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists the browser front-ends allowed to call the API.
type CORSConfig struct {
	// Origins allowed to call the API. Empty or "*" allows any origin.
	Origins []string
	// Credentials lets browsers attach cookies to cross-origin calls. The
	// request origin is then echoed instead of "*".
	Credentials bool
	// MaxAge is how long browsers may cache a preflight. Zero means ten
	// minutes.
	MaxAge time.Duration
}

// The POS API surface is fixed, so methods and headers are not configurable.
var (
	corsMethods       = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	corsAllowHeaders  = []string{"Authorization", "Content-Type", RequestIDHeader}
	corsExposeHeaders = []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
)

type corsPolicy struct {
	any         bool
	origins     map[string]string // lowercase -> configured
	credentials bool
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		any:         len(cfg.Origins) == 0 || slices.Contains(cfg.Origins, "*"),
		origins:     make(map[string]string, len(cfg.Origins)),
		credentials: cfg.Credentials,
		maxAge:      strconv.Itoa(int((10 * time.Minute).Seconds())),
	}
	for _, o := range cfg.Origins {
		p.origins[strings.ToLower(o)] = o
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(int(cfg.MaxAge.Seconds()))
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when it may not call the API.
func (p *corsPolicy) allowOrigin(origin string) string {
	if o, ok := p.origins[strings.ToLower(origin)]; ok {
		return o
	}
	if !p.any {
		return ""
	}
	if p.credentials {
		return origin
	}
	return "*"
}

// allowHeaders reports whether every header named in an
// Access-Control-Request-Headers value is allowed.
func allowHeaders(requested string) bool {
	for h := range strings.SplitSeq(requested, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if !slices.ContainsFunc(corsAllowHeaders, func(a string) bool { return strings.EqualFold(a, h) }) {
			return false
		}
	}
	return true
}

// CORS answers preflights for the POS front-ends and tags their actual
// requests. A preflight from an unknown origin, or asking for a method or
// header the API does not use, is refused with 403.
func CORS(cfg CORSConfig) Middleware {
	p := newCORSPolicy(cfg)
	methods := strings.Join(corsMethods, ", ")
	headers := strings.Join(corsAllowHeaders, ", ")
	expose := strings.Join(corsExposeHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allow := p.allowOrigin(origin)

			method := r.Header.Get("Access-Control-Request-Method")
			if r.Method == http.MethodOptions && method != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if allow == "" || !slices.Contains(corsMethods, method) ||
					!allowHeaders(r.Header.Get("Access-Control-Request-Headers")) {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				h.Set("Access-Control-Allow-Origin", allow)
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", p.maxAge)
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allow != "" {
				h.Set("Access-Control-Allow-Origin", allow)
				h.Set("Access-Control-Expose-Headers", expose)
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
