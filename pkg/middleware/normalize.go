package middleware

import (
	"net/http"
	"strings"
)

// Normalize standardizes request fields coming through proxies (Vercel/Cloudflare):
// trims whitespace around the path, collapses duplicate slashes, and restores
// scheme/host from the first value of the forwarding headers.
func Normalize() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := strings.TrimSpace(r.URL.Path)
			for strings.Contains(p, "//") {
				p = strings.ReplaceAll(p, "//", "/")
			}
			if p == "" {
				p = "/"
			}
			r.URL.Path = p

			if proto := firstForwarded(r.Header.Get("X-Forwarded-Proto")); proto != "" {
				r.URL.Scheme = proto
			}
			if host := firstForwarded(r.Header.Get("X-Forwarded-Host")); host != "" {
				r.Host = host
			}
			next.ServeHTTP(w, r)
		})
	}
}

// firstForwarded returns the client-most entry of a comma separated forwarding header.
func firstForwarded(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
