package server

import (
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may talk to the relay.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) *originPolicy {
	p := &originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			p.allowAll = true
			continue
		}
		if n, ok := normalizeOrigin(o); ok {
			p.allowed[n] = struct{}{}
		}
	}
	return p
}

// normalizeOrigin lowercases scheme and host and drops default ports, so
// "HTTP://Example.com:80" and "http://example.com" compare equal.
func normalizeOrigin(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.User != nil {
		return "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host, true
}

// check reports whether a request may proceed and returns its normalized
// origin. Requests without an Origin header come from non-browser clients and
// are always accepted, as are same-host requests from the served web client.
func (p *originPolicy) check(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Origin"))
	if header == "" {
		return "", true
	}
	n, ok := normalizeOrigin(header)
	if !ok {
		return "", false
	}
	if p.allowAll || sameHost(n, r.Host) {
		return n, true
	}
	_, ok = p.allowed[n]
	return n, ok
}

// sameHost reports whether a normalized origin names the host[:port] the
// request was sent to. Schemes are not compared: behind a TLS-terminating
// proxy the browser says https while the relay sees plain http.
func sameHost(origin, requestHost string) bool {
	scheme, originHost, ok := strings.Cut(origin, "://")
	requestHost = strings.TrimSpace(requestHost)
	if !ok || requestHost == "" {
		return false
	}
	n, ok := normalizeOrigin(scheme + "://" + requestHost)
	if !ok {
		return false
	}
	_, host, _ := strings.Cut(n, "://")
	return host == originHost
}

// checkOrigin adapts the policy to websocket.Upgrader.CheckOrigin.
func (p *originPolicy) checkOrigin(r *http.Request) bool {
	_, ok := p.check(r)
	return ok
}

func (s *Server) originMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return s.withOriginPolicy(next.ServeHTTP)
	}
}

func (s *Server) withOriginPolicy(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin, ok := s.origins.check(r)
		if !ok {
			s.log.Warn("origin rejected", "origin", r.Header.Get("Origin"), "path", r.URL.Path)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if origin == "" {
			next(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			if requestHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers")); requestHeaders != "" {
				w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
			}
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}
