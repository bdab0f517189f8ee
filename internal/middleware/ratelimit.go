// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepInterval is how often idle callers are forgotten.
const sweepInterval = time.Minute

// caller is the token bucket of one client address.
type caller struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles the maintenance endpoints per client address so a
// script cannot queue full recomputes back to back. Each client gets a token
// bucket holding limit requests that refills over window.
type RateLimiter struct {
	mu      sync.Mutex
	callers map[string]*caller
	refill  rate.Limit
	burst   int
	idle    time.Duration
	retry   string

	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows limit requests per window for each client and starts
// the sweeper that drops idle clients. Call Stop when done.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	limit = max(limit, 1)
	perToken := window / time.Duration(limit)
	rl := &RateLimiter{
		callers: make(map[string]*caller),
		refill:  rate.Every(perToken),
		burst:   limit,
		idle:    window,
		retry:   strconv.Itoa(max(1, int(math.Ceil(perToken.Seconds())))),
		done:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) sweepLoop() {
	tick := time.NewTicker(sweepInterval)
	defer tick.Stop()
	for {
		select {
		case now := <-tick.C:
			rl.sweep(now)
		case <-rl.done:
			return
		}
	}
}

// allow spends one token of client's bucket at now.
func (rl *RateLimiter) allow(client string, now time.Time) bool {
	rl.mu.Lock()
	c, ok := rl.callers[client]
	if !ok {
		c = &caller{bucket: rate.NewLimiter(rl.refill, rl.burst)}
		rl.callers[client] = c
	}
	c.lastSeen = now
	rl.mu.Unlock()

	return c.bucket.AllowN(now, 1)
}

// sweep forgets clients idle for a full window; their buckets would be full
// again anyway.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for client, c := range rl.callers {
		if now.Sub(c.lastSeen) >= rl.idle {
			delete(rl.callers, client)
		}
	}
}

// tracked reports how many clients currently hold a bucket.
func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.callers)
}

// Middleware rejects over-limit requests with a JSON 429 and a Retry-After
// of the time one token takes to refill.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)
		if !rl.allow(client, time.Now()) {
			slog.Warn("maintenance request throttled", "client", client, "path", r.URL.Path)
			w.Header().Set("Retry-After", rl.retry)
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many maintenance requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr identifies the caller: the first X-Forwarded-For hop, then
// X-Real-IP, then the connection's host.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
