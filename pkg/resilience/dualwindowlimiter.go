package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DualLimiterOpts configures the requests-per-minute / tokens-per-minute limiter.
type DualLimiterOpts struct {
	// RPM is the nominal requests-per-minute limit.
	RPM float64
	// TPM is the nominal tokens-per-minute limit.
	TPM float64
	// SafetyMargin scales both limits down before they're applied. Zero defaults to 0.9.
	SafetyMargin float64
}

// DualLimiter enforces two independent sliding-window token buckets, one for
// request count and one for token count, and waits for whichever bucket is
// scarcer. It generalizes Limiter's single-dimension refill math to two
// dimensions that are acquired together and reconciled after the fact.
type DualLimiter struct {
	mu      sync.Mutex
	opts    DualLimiterOpts
	reqs    *Limiter
	tokens  *Limiter
	pending map[string]float64
}

// NewDualLimiter creates an RPM+TPM limiter. RPM/TPM are per-minute limits;
// SafetyMargin (default 0.9) is applied to both before converting to a
// per-second refill rate.
func NewDualLimiter(opts DualLimiterOpts) *DualLimiter {
	if opts.SafetyMargin <= 0 {
		opts.SafetyMargin = 0.9
	}
	effRPM := opts.RPM * opts.SafetyMargin
	effTPM := opts.TPM * opts.SafetyMargin

	return &DualLimiter{
		opts: opts,
		reqs: NewLimiter(LimiterOpts{
			Rate:  effRPM / 60,
			Burst: int(effRPM),
		}),
		tokens: NewLimiter(LimiterOpts{
			Rate:  effTPM / 60,
			Burst: int(effTPM),
		}),
		pending: make(map[string]float64),
	}
}

// Reservation identifies an in-flight acquire so its estimate can later be
// reconciled against actual usage via RecordUsage.
type Reservation string

// Acquire waits for both the request bucket and the token bucket to have
// enough capacity for one request costing estimatedTokens, whichever wait is
// longer, then debits both buckets. The returned Reservation is passed to
// RecordUsage once the real token cost is known.
func (d *DualLimiter) Acquire(ctx context.Context, estimatedTokens int) (Reservation, error) {
	if err := d.reqs.Wait(ctx); err != nil {
		return "", err
	}
	if err := d.waitForTokens(ctx, float64(estimatedTokens)); err != nil {
		return "", err
	}

	id := Reservation(uuid.NewString())
	d.mu.Lock()
	d.pending[string(id)] = float64(estimatedTokens)
	d.mu.Unlock()

	return id, nil
}

// RecordUsage adjusts the token bucket once the actual token cost of a
// reservation is known, crediting back an overestimate or debiting an
// underestimate. Unknown reservations are a no-op.
func (d *DualLimiter) RecordUsage(r Reservation, actualTokens int) {
	d.mu.Lock()
	estimated, ok := d.pending[string(r)]
	delete(d.pending, string(r))
	d.mu.Unlock()
	if !ok {
		return
	}

	delta := estimated - float64(actualTokens)

	d.tokens.mu.Lock()
	d.tokens.refill()
	d.tokens.tokens += delta
	if d.tokens.tokens > float64(d.tokens.opts.Burst) {
		d.tokens.tokens = float64(d.tokens.opts.Burst)
	}
	if d.tokens.tokens < 0 {
		d.tokens.tokens = 0
	}
	d.tokens.mu.Unlock()
}

// waitForTokens blocks until the token bucket holds at least want tokens,
// mirroring Limiter.Wait but for an arbitrary (non-unit) cost.
func (d *DualLimiter) waitForTokens(ctx context.Context, want float64) error {
	if want <= 0 {
		return nil
	}
	l := d.tokens
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= want {
			l.tokens -= want
			l.mu.Unlock()
			return nil
		}
		deficit := want - l.tokens
		waitDur := time.Duration(deficit / l.opts.Rate * float64(time.Second))
		l.mu.Unlock()

		if waitDur < time.Millisecond {
			waitDur = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitDur):
		}
	}
}
