package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	"github.com/couchcryptid/reservoir-volume-etl/internal/observability"
)

// RetryPolicy bounds the retries of a RetryingSession.
type RetryPolicy struct {
	MaxRetries      int
	MaxElapsed      time.Duration
	InitialInterval time.Duration
}

// Enabled reports whether the policy retries at all.
func (p RetryPolicy) Enabled() bool { return p.MaxRetries > 0 }

// RetryingSession retries fetches failing with domain.ErrNetwork using
// exponential backoff. Other failures are returned at once.
type RetryingSession struct {
	inner   Session
	policy  RetryPolicy
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRetryingSession wraps inner with policy.
func NewRetryingSession(inner Session, policy RetryPolicy, logger *slog.Logger, metrics *observability.Metrics) *RetryingSession {
	return &RetryingSession{inner: inner, policy: policy, logger: logger, metrics: metrics}
}

// Fetch calls the wrapped session until it succeeds, fails permanently, or
// the policy is exhausted. The last error is returned.
func (s *RetryingSession) Fetch(ctx context.Context, stationID string, start, end time.Time) ([]byte, error) {
	var payload []byte
	operation := func() error {
		p, err := s.inner.Fetch(ctx, stationID, start, end)
		if err != nil {
			if !errors.Is(err, domain.ErrNetwork) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		payload = p
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	if s.policy.InitialInterval > 0 {
		bo.InitialInterval = s.policy.InitialInterval
	}
	bo.MaxElapsedTime = s.policy.MaxElapsed

	notify := func(err error, wait time.Duration) {
		s.metrics.FetchRetries.Inc()
		s.logger.Warn("fetch failed, retrying", "station", stationID, "wait", wait, "error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.policy.MaxRetries)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return payload, nil
}

// Close closes the wrapped session.
func (s *RetryingSession) Close() error {
	return s.inner.Close()
}
