package summarize

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"corpus/internal/logger"
	"corpus/pkg/services"
)

// Policy bounds the calls made to an external service for one row.
type Policy struct {
	Attempts int           // total calls, at least 1
	Delay    time.Duration // fixed wait between calls
}

// DefaultPolicy is three attempts thirty seconds apart.
var DefaultPolicy = Policy{Attempts: 3, Delay: 30 * time.Second}

// Do runs fn until it succeeds, the attempts are used up or ctx ends. The
// error of the last attempt is returned.
func Do[T any](ctx context.Context, p Policy, log zerolog.Logger, fn func() (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return retry.DoWithData(
		fn,
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(p.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().
				Err(err).
				Uint("attempt", n+1).
				Int("max_attempts", attempts).
				Dur("delay", p.Delay).
				Msg("Request failed, retrying")
		}),
	)
}

// RetryingSummarizer retries a Summarizer under a Policy.
type RetryingSummarizer struct {
	next   services.Summarizer
	policy Policy
	log    zerolog.Logger
}

// NewRetryingSummarizer wraps next.
func NewRetryingSummarizer(next services.Summarizer, policy Policy) *RetryingSummarizer {
	return &RetryingSummarizer{
		next:   next,
		policy: policy,
		log:    logger.WithComponent("summarizer-retry"),
	}
}

// Summarize implements services.Summarizer.
func (r *RetryingSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	return Do(ctx, r.policy, r.log, func() (string, error) {
		return r.next.Summarize(ctx, text)
	})
}
