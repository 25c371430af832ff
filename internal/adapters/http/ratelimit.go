package httpadapter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// callerLimiter enforces a per-caller hourly request cap. Callers are keyed
// by client IP; each gets a token bucket refilled across the hour.
type callerLimiter struct {
	perHour int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newCallerLimiter(perHour int) *callerLimiter {
	return &callerLimiter{
		perHour: perHour,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *callerLimiter) limiterFor(caller string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.buckets[caller]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(l.perHour)), l.perHour)
		l.buckets[caller] = limiter
	}
	return limiter
}

func (l *callerLimiter) middleware(next http.Handler) http.Handler {
	if l == nil || l.perHour <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			caller = host
		}
		if !l.limiterFor(caller).Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
