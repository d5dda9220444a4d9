package reportpdf

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/alnah/go-reportpdf/internal/metrics"
)

// Page count retry defaults. A renderer may report a file before it is
// fully flushed, so counting is retried a few times.
const (
	DefaultCountAttempts = 3
	DefaultCountDelay    = 100 * time.Millisecond
)

// RetryPolicy bounds page count attempts.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

// DefaultRetryPolicy returns 3 attempts with a fixed 100ms delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: DefaultCountAttempts, Delay: DefaultCountDelay}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts == 0 {
		p.Attempts = DefaultCountAttempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// countPages counts the pages of path with retries, returning ErrPageCount
// wrapped around the last failure once attempts are exhausted.
func countPages(ctx context.Context, counter PageCounter, path string, policy RetryPolicy, logger zerolog.Logger, m *metrics.Metrics) (int, error) {
	policy = policy.normalized()

	n, err := retry.DoWithData(
		func() (int, error) {
			return counter.CountPages(path)
		},
		retry.Attempts(policy.Attempts),
		retry.Delay(policy.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			if attempt+1 >= policy.Attempts {
				return
			}
			m.PageCountRetried()
			logger.Debug().Err(err).Str("path", path).Uint("attempt", attempt+1).Msg("page count failed, retrying")
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: %s after %d attempts: %v", ErrPageCount, path, policy.Attempts, err)
	}
	return n, nil
}
