package trendengine

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginLimiter rate-limits login attempts per IP address: max attempts per
// window, refilling continuously.
type LoginLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	every     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
}

// NewLoginLimiter creates a LoginLimiter that allows max attempts per window.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		visitors:  make(map[string]*visitor),
		every:     rate.Every(window / time.Duration(max)),
		burst:     max,
		window:    window,
		lastSweep: time.Now(),
	}
}

// Allow checks the limit and records an attempt in one step.
// Login flows use Check and Record so only failures count.
func (l *LoginLimiter) Allow(ip string) bool {
	if !l.Check(ip) {
		return false
	}
	l.Record(ip)
	return true
}

// Check reports whether ip may attempt a login now. It consumes nothing.
func (l *LoginLimiter) Check(ip string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.window {
		l.sweep(now)
	}
	v, ok := l.visitors[ip]
	if !ok {
		return true
	}
	return v.limiter.TokensAt(now) >= 1
}

// Record registers a failed login attempt for ip.
func (l *LoginLimiter) Record(ip string) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	v.limiter.AllowN(now, 1)
}

// sweep forgets visitors idle for a full window; their buckets are full again.
func (l *LoginLimiter) sweep(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.window {
			delete(l.visitors, ip)
		}
	}
	l.lastSweep = now
}
