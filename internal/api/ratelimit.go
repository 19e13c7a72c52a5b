package api

import (
	"sync"
	"time"
)

// Bucket names for the two endpoint policies. Buckets are fully
// independent: exhausting one never affects the other.
const (
	bucketChat    = "chatbot"
	bucketContact = "contact"
)

// sweepInterval bounds how often expired entries are evicted. Cleanup
// happens inline during Check calls, so an idle limiter costs nothing.
const sweepInterval = 5 * time.Minute

// limitEntry is the per-(bucket, key) fixed-window state.
type limitEntry struct {
	count   int
	resetAt time.Time
}

// Result reports the outcome of one rate-limit check.
type Result struct {
	Allowed   bool
	Remaining int
}

// limiter implements fixed-window request counting keyed by bucket name
// and client identifier. Each key's window resets entirely once it
// expires, regardless of how far over the limit the previous window went.
//
// State is process-local and mutex-guarded; expired entries are swept
// inline so high key cardinality cannot leak memory in a long-running
// process.
type limiter struct {
	mu        sync.Mutex
	buckets   map[string]map[string]*limitEntry
	now       func() time.Time // injectable clock for tests
	lastSweep time.Time
}

func newLimiter() *limiter {
	return &limiter{
		buckets:   make(map[string]map[string]*limitEntry),
		now:       time.Now,
		lastSweep: time.Now(),
	}
}

// check records one request for key in bucket and reports whether it is
// allowed under the given policy.
//
// Window semantics: the first request of a fresh (or expired) window is
// always allowed and starts a window expiring after window elapses;
// requests inside a live window are allowed while count < limit; a denied
// request leaves the state untouched.
func (l *limiter) check(bucket, key string, limit int, window time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b := l.buckets[bucket]
	if b == nil {
		b = make(map[string]*limitEntry)
		l.buckets[bucket] = b
	}

	e, ok := b[key]
	if !ok || now.After(e.resetAt) {
		b[key] = &limitEntry{count: 1, resetAt: now.Add(window)}
		return Result{Allowed: true, Remaining: limit - 1}
	}

	if e.count >= limit {
		return Result{Allowed: false, Remaining: 0}
	}

	e.count++
	return Result{Allowed: true, Remaining: limit - e.count}
}

// sweep evicts entries whose window has expired. Runs at most once per
// sweepInterval; callers hold the mutex.
func (l *limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	for _, b := range l.buckets {
		for k, e := range b {
			if now.After(e.resetAt) {
				delete(b, k)
			}
		}
	}
	l.lastSweep = now
}
