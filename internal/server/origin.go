package server

import (
	"net/http"
	"net/url"
	"strings"
)

// originAllowed reports whether a websocket upgrade from origin may
// proceed. Without an allow list only same-host pages are accepted, as
// gorilla's default check does. Requests without an Origin header come
// from non-browser clients and are accepted.
func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(allowed) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, a := range allowed {
		switch {
		case a == "*":
			return true
		case strings.EqualFold(origin, a):
			return true
		case strings.HasPrefix(a, "*."):
			// *.example.com matches sub.example.com, not evilexample.com.
			if u, err := url.Parse(origin); err == nil && strings.HasSuffix(strings.ToLower(u.Hostname()), strings.ToLower(a[1:])) {
				return true
			}
		}
	}
	return false
}
