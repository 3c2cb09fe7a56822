package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/tokyotraffic/tokyotraffic/internal/api/models"
)

// ContentSecurityPolicy builds the page policy. Scripts and styles may load
// from the origins of the given library URLs; images may also come from the
// map tile servers.
func ContentSecurityPolicy(libraryURLs ...string) string {
	origins := make([]string, 0, len(libraryURLs))
	seen := map[string]bool{}
	for _, raw := range libraryURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		origin := u.Scheme + "://" + u.Host
		if !seen[origin] {
			seen[origin] = true
			origins = append(origins, origin)
		}
	}
	libs := strings.Join(append([]string{"'self'"}, origins...), " ")

	return strings.Join([]string{
		"default-src 'self'",
		"script-src " + libs,
		// fallback charts position segments with style attributes
		"style-src " + libs + " 'unsafe-inline'",
		"img-src " + libs + " data: https://*.tile.openstreetmap.org",
		"connect-src 'self'",
		"frame-ancestors 'none'",
	}, "; ")
}

// SecurityHeaders adds standard security headers to all HTTP responses,
// using csp as the Content-Security-Policy.
func SecurityHeaders(csp string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Content-Security-Policy", csp)
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "geolocation=(), camera=(), microphone=()")

			next.ServeHTTP(w, r)
		})
	}
}

// RequireTLS rejects plain HTTP requests when enabled. It checks the
// X-Forwarded-Proto header set by load balancers; requests without the
// header are direct connections and pass.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			proto := r.Header.Get("X-Forwarded-Proto")
			if proto != "" && proto != "https" {
				problem := models.NewForbidden(GetRequestID(r.Context()), "This endpoint requires HTTPS")
				problem.Title = "TLS required"
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
