package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation identifies a quota-controlled operation kind
type Operation string

const (
	// OpChat covers regular chat messages
	OpChat Operation = "chat"
	// OpProfile covers profile generation
	OpProfile Operation = "profile"
	// OpMealRecommendation covers meal recommendation generation
	OpMealRecommendation Operation = "meal_recommendation"
	// OpWorkoutRecommendation covers workout recommendation generation
	OpWorkoutRecommendation Operation = "workout_recommendation"
)

// Policy describes one token bucket: Capacity tokens, RefillAmount added
// every RefillInterval.
type Policy struct {
	Capacity       int
	RefillAmount   int
	RefillInterval time.Duration
}

// PerMinute builds a policy of n requests per minute
func PerMinute(n int) Policy {
	return Policy{Capacity: n, RefillAmount: n, RefillInterval: time.Minute}
}

// PerHour builds a policy of n requests per hour
func PerHour(n int) Policy {
	return Policy{Capacity: n, RefillAmount: n, RefillInterval: time.Hour}
}

type bucketKey struct {
	userID uuid.UUID
	op     Operation
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// Limiter enforces per-(user, operation) token bucket quotas. Buckets are
// created lazily on first use; a janitor evicts buckets that have refilled
// to capacity so idle users do not accumulate.
type Limiter struct {
	mu       sync.Mutex
	policies map[Operation]Policy
	buckets  map[bucketKey]*bucket
	now      func() time.Time
}

// New creates a limiter with the given per-operation policies
func New(policies map[Operation]Policy) *Limiter {
	return &Limiter{
		policies: policies,
		buckets:  make(map[bucketKey]*bucket),
		now:      time.Now,
	}
}

// TryConsume takes one token from the (user, op) bucket. On success it
// returns (true, 0). On exhaustion it returns (false, retryAfter) where
// retryAfter is the time until the next refill.
func (l *Limiter) TryConsume(userID uuid.UUID, op Operation) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	policy, ok := l.policies[op]
	if !ok || policy.Capacity <= 0 {
		// unconfigured operations are not limited
		return true, 0
	}

	now := l.now()
	key := bucketKey{userID: userID, op: op}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: policy.Capacity, lastRefill: now}
		l.buckets[key] = b
	} else {
		l.refill(b, policy, now)
	}

	if b.tokens > 0 {
		b.tokens--
		return true, 0
	}

	retryAfter := b.lastRefill.Add(policy.RefillInterval).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter
}

// refill credits whole elapsed intervals, capped at capacity
func (l *Limiter) refill(b *bucket, policy Policy, now time.Time) {
	if policy.RefillInterval <= 0 {
		return
	}
	elapsed := now.Sub(b.lastRefill)
	intervals := int(elapsed / policy.RefillInterval)
	if intervals <= 0 {
		return
	}

	b.tokens += intervals * policy.RefillAmount
	if b.tokens > policy.Capacity {
		b.tokens = policy.Capacity
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * policy.RefillInterval)
}

// EvictIdle removes buckets that are back at full capacity. Returns the
// number of buckets evicted.
func (l *Limiter) EvictIdle() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	evicted := 0
	for key, b := range l.buckets {
		policy := l.policies[key.op]
		l.refill(b, policy, now)
		if b.tokens >= policy.Capacity {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}

// StartJanitor runs EvictIdle on the given interval until ctx is done
func (l *Limiter) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.EvictIdle()
			}
		}
	}()
}
