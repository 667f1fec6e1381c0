package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy lists what browsers on AllowedOrigins may do. "*" allows any
// origin. ExposedHeaders are readable by scripts on the response, which is
// how a client sees Retry-After on a lock timeout.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type corsHeaders struct {
	methods string
	headers string
	exposed string
	maxAge  string
}

// WithCORS returns nil (no middleware) when no origin is allowed.
func WithCORS(p CORSPolicy) Middleware {
	origins := trimAll(p.AllowedOrigins)
	if len(origins) == 0 {
		return nil
	}
	h := corsHeaders{
		methods: strings.Join(trimAll(p.AllowedMethods), ", "),
		headers: strings.Join(trimAll(p.AllowedHeaders), ", "),
		exposed: strings.Join(trimAll(p.ExposedHeaders), ", "),
	}
	if p.MaxAge > 0 {
		h.maxAge = strconv.Itoa(int(p.MaxAge.Seconds()))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allow := allowedOrigin(origin, origins, p.AllowCredentials)
			if allow == "" {
				next.ServeHTTP(w, r)
				return
			}

			out := w.Header()
			out.Set("Access-Control-Allow-Origin", allow)
			out.Add("Vary", "Origin")
			if p.AllowCredentials {
				out.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.preflight(out)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if h.exposed != "" {
				out.Set("Access-Control-Expose-Headers", h.exposed)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (c corsHeaders) preflight(out http.Header) {
	if c.methods != "" {
		out.Set("Access-Control-Allow-Methods", c.methods)
	}
	if c.headers != "" {
		out.Set("Access-Control-Allow-Headers", c.headers)
	}
	if c.maxAge != "" {
		out.Set("Access-Control-Max-Age", c.maxAge)
	}
	out.Add("Vary", "Access-Control-Request-Method")
	out.Add("Vary", "Access-Control-Request-Headers")
}

// allowedOrigin returns the value for Access-Control-Allow-Origin, or "" when
// origin is not allowed. Credentials forbid a literal "*".
func allowedOrigin(origin string, allowed []string, credentials bool) string {
	if origin == "" {
		return ""
	}
	for _, a := range allowed {
		switch {
		case a == "*" && credentials:
			return origin
		case a == "*":
			return "*"
		case strings.EqualFold(a, origin):
			return origin
		}
	}
	return ""
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
