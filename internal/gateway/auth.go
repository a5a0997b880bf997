package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Authorize checks the provided ConnectAuth against the gateway token.
func Authorize(serverToken string, clientAuth *ConnectAuth) AuthResult {
	if serverToken == "" {
		return AuthResult{OK: false, Reason: "server token not configured"}
	}
	if clientAuth == nil || clientAuth.Token == "" {
		return AuthResult{OK: false, Reason: "token required"}
	}
	if !safeEqual(clientAuth.Token, serverToken) {
		return AuthResult{OK: false, Reason: "token_mismatch"}
	}
	return AuthResult{OK: true}
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// safeEqual performs a constant-time string comparison. It avoids an early
// return on length mismatch so the secret's length does not leak via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// Requests without an Origin (non-browser clients) are allowed; browser
// origins must appear in the allowed list.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}

func isOriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 1000
)

// authRateLimiter tracks failed handshakes per remote host.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
}

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{
		failures: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func hostOf(remoteAddr string) string {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		return remoteAddr
	}
	return host
}

// recentLocked drops expired failures for host and returns what is left.
func (l *authRateLimiter) recentLocked(host string) []time.Time {
	cutoff := l.now().Add(-authRateWindow)
	recent := l.failures[host]
	filtered := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		delete(l.failures, host)
		return nil
	}
	l.failures[host] = filtered
	return filtered
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recentLocked(hostOf(remoteAddr))) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := hostOf(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.failures[host]; !exists && len(l.failures) >= authRateMaxIPs {
		for ip := range l.failures {
			l.recentLocked(ip)
		}
		if len(l.failures) >= authRateMaxIPs {
			return
		}
	}
	l.failures[host] = append(l.failures[host], l.now())
}
