package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionSendMessage        = "send_message"
	ActionCreateConversation = "create_conversation"
	ActionCreateCustomOrder  = "create_custom_order"
	ActionAPIRequest         = "api_request"
)

// Policy is a token bucket refilled at Limit tokens per second holding at most Burst tokens.
type Policy struct {
	Limit rate.Limit
	Burst int
}

// PerWindow allows n actions per window, all of which may be spent at once.
func PerWindow(n int, window time.Duration) Policy {
	if n <= 0 {
		return Policy{Limit: rate.Inf}
	}
	return Policy{Limit: rate.Every(window / time.Duration(n)), Burst: n}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one limiter per user and action.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	policies map[string]Policy
	fallback Policy
	now      func() time.Time
}

func NewRateLimiter(policies map[string]Policy) *RateLimiter {
	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		policies: policies,
		fallback: PerWindow(20, time.Minute),
		now:      time.Now,
	}
}

// Allow consumes one token for userID/action. When the bucket is empty nothing is consumed
// and the returned duration says how long until a token is available.
func (rl *RateLimiter) Allow(userID, action string) (bool, time.Duration) {
	now := rl.now()
	limiter := rl.get(userID+":"+action, action, now)

	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *RateLimiter) get(key, action string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}

	policy, ok := rl.policies[action]
	if !ok {
		policy = rl.fallback
	}
	b := &bucket{limiter: rate.NewLimiter(policy.Limit, policy.Burst), lastSeen: now}
	rl.buckets[key] = b
	return b.limiter
}

// Cleanup removes buckets idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > maxIdle {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine runs Cleanup every interval until stop is closed.
func (rl *RateLimiter) StartCleanupRoutine(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup(time.Hour)
			case <-stop:
				return
			}
		}
	}()
}
