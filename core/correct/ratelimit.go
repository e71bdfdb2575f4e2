package correct

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/openai/openai-go"

	coreerrors "github.com/rshdesign/redliner/core/errors"
	"github.com/rshdesign/redliner/internal/logging"
)

// Rate limiter defaults, tuned for the chat completions per-minute caps.
const (
	DefaultCallDelay  = time.Second
	DefaultMaxRetries = 3
	baseBackoff       = 2 * time.Second
)

// TryCorrector is a corrector that surfaces its transport error instead
// of falling back to the input.
type TryCorrector interface {
	TryCorrect(ctx context.Context, text string) (string, error)
}

// RateLimited paces calls to an underlying corrector and retries
// rate-limit rejections with growing backoff. After the retry budget is
// spent the original text is returned.
type RateLimited struct {
	inner   TryCorrector
	delay   time.Duration
	retries int
	backoff time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewRateLimited wraps inner. Non-positive delay or retries select the
// defaults.
func NewRateLimited(inner TryCorrector, delay time.Duration, retries int) *RateLimited {
	if delay <= 0 {
		delay = DefaultCallDelay
	}
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	return &RateLimited{inner: inner, delay: delay, retries: retries, backoff: baseBackoff}
}

// Correct paces, calls, and retries. It satisfies the redline engine's
// Corrector contract.
func (r *RateLimited) Correct(ctx context.Context, text string) string {
	if err := r.pace(ctx); err != nil {
		return text
	}

	backoff := r.backoff
	for attempt := 0; ; attempt++ {
		out, err := r.inner.TryCorrect(ctx, text)
		if err == nil {
			return out
		}
		if !IsRateLimited(err) || attempt >= r.retries {
			logging.CorrectionError("correct", err, "attempt", attempt)
			return text
		}
		logging.Warn("rate limited, backing off", "attempt", attempt, "backoff", backoff.String())
		if err := sleepCtx(ctx, backoff); err != nil {
			return text
		}
		backoff *= 2
	}
}

// SetAllergenCodes forwards the vocabulary to the wrapped client when it
// supports per-document configuration.
func (r *RateLimited) SetAllergenCodes(codes map[string]string) {
	if c, ok := r.inner.(interface{ SetAllergenCodes(map[string]string) }); ok {
		c.SetAllergenCodes(codes)
	}
}

// pace enforces the minimum spacing between calls.
func (r *RateLimited) pace(ctx context.Context) error {
	r.mu.Lock()
	wait := r.delay - time.Since(r.last)
	r.last = time.Now().Add(wait)
	r.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return sleepCtx(ctx, wait)
}

// IsRateLimited reports whether err is a 429-style rejection.
func IsRateLimited(err error) bool {
	if errors.Is(err, coreerrors.ErrRateLimited) {
		return true
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == 429
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
