package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

// RetryPolicy bounds how often a transaction is replayed after a
// serialization failure.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	MinBackoff:  5 * time.Millisecond,
	MaxBackoff:  250 * time.Millisecond,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.MinBackoff <= 0 {
		p.MinBackoff = DefaultRetryPolicy.MinBackoff
	}
	if p.MaxBackoff < p.MinBackoff {
		p.MaxBackoff = p.MinBackoff
	}
	return p
}

// Retry runs attempt until it succeeds, fails with a non-retryable error, or
// the policy is exhausted. Exhaustion wraps domain.ErrTxConflict.
func Retry(ctx context.Context, p RetryPolicy, store string, retryable func(error) bool, attempt func() error) error {
	p = p.withDefaults()
	b := &backoff.Backoff{
		Min:    p.MinBackoff,
		Max:    p.MaxBackoff,
		Factor: 2,
		Jitter: true,
	}
	start := time.Now()

	for {
		TxMetrics.Attempts.WithLabelValues(store).Inc()
		err := attempt()
		if err == nil {
			TxMetrics.Duration.WithLabelValues(store, "commit").Observe(time.Since(start).Seconds())
			return nil
		}
		if !retryable(err) {
			TxMetrics.Duration.WithLabelValues(store, "error").Observe(time.Since(start).Seconds())
			return err
		}

		// b.Attempt() starts from zero
		n := int(b.Attempt()) + 1
		if n >= p.MaxAttempts {
			TxMetrics.Exhausted.WithLabelValues(store).Inc()
			TxMetrics.Duration.WithLabelValues(store, "exhausted").Observe(time.Since(start).Seconds())
			return fmt.Errorf("%w after %d attempts: %v", domain.ErrTxConflict, n, err)
		}

		wait := b.Duration()
		TxMetrics.Retries.WithLabelValues(store).Inc()
		log.Debug().Err(err).Str("store", store).Int("attempt", n).Dur("wait", wait).Msg("retrying transaction")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
