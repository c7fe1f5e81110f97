// Package resilience implements the retry and circuit-breaker primitives
// the node executor composes around a transform's ExecuteItem call.
package resilience

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// BackoffKind selects how the base delay grows between attempts.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffLinear      BackoffKind = "linear"
	BackoffExponential BackoffKind = "exponential"
)

// JitterKind selects how much random jitter is added on top of the
// clamped base delay.
type JitterKind string

const (
	JitterNone         JitterKind = "none"
	JitterFull         JitterKind = "full"
	JitterEqual        JitterKind = "equal"
	JitterDecorrelated JitterKind = "decorrelated"
)

// RetryConfig parameterizes a RetryPolicy.
type RetryConfig struct {
	MaxAttempts int
	Backoff     BackoffKind
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64 // exponential backoff base; defaults to 2 when <= 0
	Jitter      JitterKind
	// IsRetryable classifies an error as retryable. A nil func treats
	// every error as retryable (attempt-budget is the only limit).
	IsRetryable func(error) bool
}

// RetryPolicy decides whether an attempt should be retried and how long
// to wait before the next one. delay(attempt) = clamp(backoff(attempt),
// maxDelay) + jitter, with the sum itself capped at maxDelay again when
// maxDelay is set.
type RetryPolicy struct {
	cfg RetryConfig

	mu         sync.Mutex
	rnd        *rand.Rand
	lastJitter time.Duration
}

func NewRetryPolicy(cfg RetryConfig) *RetryPolicy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	return &RetryPolicy{cfg: cfg, rnd: rand.New(rand.NewSource(retrySeed()))}
}

// retrySeed is split out so a future deterministic-seed test hook has a
// single place to override.
func retrySeed() int64 { return time.Now().UnixNano() }

// ShouldRetry reports whether attempt (1-based, the attempt that just
// failed with err) may be followed by another attempt.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.cfg.MaxAttempts {
		return false
	}
	if p.cfg.IsRetryable == nil {
		return true
	}
	return p.cfg.IsRetryable(err)
}

// Delay returns how long to wait before the attempt that follows the
// given (1-based) failed attempt.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var base time.Duration
	switch p.cfg.Backoff {
	case BackoffFixed:
		base = p.cfg.BaseDelay
	case BackoffLinear:
		base = p.cfg.BaseDelay * time.Duration(attempt)
	default: // BackoffExponential
		base = time.Duration(float64(p.cfg.BaseDelay) * math.Pow(p.cfg.Multiplier, float64(attempt-1)))
	}
	if p.cfg.MaxDelay > 0 && base > p.cfg.MaxDelay {
		base = p.cfg.MaxDelay
	}
	if base < 0 {
		base = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var jitter time.Duration
	switch p.cfg.Jitter {
	case JitterFull:
		jitter = randDuration(p.rnd, 0, base)
	case JitterEqual:
		jitter = randDuration(p.rnd, 0, base/2)
	case JitterDecorrelated:
		hi := p.lastJitter * 3
		if hi <= 0 {
			hi = p.cfg.BaseDelay
		}
		jitter = randDuration(p.rnd, 0, hi)
	default: // JitterNone
		jitter = 0
	}
	p.lastJitter = jitter

	total := base + jitter
	if p.cfg.MaxDelay > 0 && total > p.cfg.MaxDelay {
		total = p.cfg.MaxDelay
	}
	return total
}

func randDuration(r *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.Int63n(int64(hi-lo)+1))
}
