package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

const (
	DefaultLimit  = 10
	DefaultWindow = time.Minute

	// Anonymous buckets every request that carries no forwarding header.
	Anonymous = "anonymous"

	ForwardedForHeader = "X-Forwarded-For"
)

// Window is the fixed accounting window of one client identity.
type Window struct {
	Count   int
	ResetAt time.Time
}

// RateLimiter is a process-local fixed-window counter keyed by client
// identity. Records are created lazily and replaced once their window has
// passed; they are never purged.
//
// Windows reset independently per identity on first touch, so a client can
// get up to 2x limit requests through in a burst straddling a reset.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*Window
}

type Option func(*RateLimiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(rl *RateLimiter) {
		rl.now = now
	}
}

func NewRateLimiter(limit int, window time.Duration, opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*Window),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Allow reports whether identity may make another request and, if so,
// counts it. A denied request leaves the record untouched.
func (rl *RateLimiter) Allow(identity string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[identity]
	if !ok || !now.Before(w.ResetAt) {
		rl.windows[identity] = &Window{Count: 1, ResetAt: now.Add(rl.window)}
		return true
	}

	if w.Count >= rl.limit {
		return false
	}

	w.Count++
	return true
}

// ClientIdentity derives the rate-limit bucket key from the first entry of
// X-Forwarded-For, taken as is.
func ClientIdentity(r *http.Request) string {
	forwarded := r.Header.Get(ForwardedForHeader)
	first, _, _ := strings.Cut(forwarded, ",")
	return lo.Ternary(forwarded != "", first, Anonymous)
}
