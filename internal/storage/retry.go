// Package storage wires the concrete row stores behind the RowStore
// interface and provides the shared write-retry policy.
package storage

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// RetryingStore decorates a RowStore with bounded exponential backoff on
// mutations. Reads pass through untouched. Exhausting the retries returns the
// last error for that one write; the caller decides whether the run continues.
type RetryingStore struct {
	inner   interfaces.RowStore
	retries int
	backoff time.Duration
	logger  arbor.ILogger
}

var _ interfaces.RowStore = (*RetryingStore)(nil)

// WithRetry wraps store so every mutation is attempted up to retries times
// with backoff, 2*backoff, 4*backoff... between attempts.
func WithRetry(store interfaces.RowStore, retries int, backoff time.Duration, logger arbor.ILogger) *RetryingStore {
	if retries < 1 {
		retries = 1
	}
	return &RetryingStore{inner: store, retries: retries, backoff: backoff, logger: logger}
}

func (s *RetryingStore) ListRows(ctx context.Context, queue string) ([]models.Row, error) {
	return s.inner.ListRows(ctx, queue)
}

func (s *RetryingStore) UpdateCell(ctx context.Context, queue string, row, col int, value string) error {
	return s.retry(ctx, "update", func() error {
		return s.inner.UpdateCell(ctx, queue, row, col, value)
	})
}

func (s *RetryingStore) AppendRow(ctx context.Context, queue string, values []string) error {
	return s.retry(ctx, "append", func() error {
		return s.inner.AppendRow(ctx, queue, values)
	})
}

func (s *RetryingStore) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			delay := s.backoff << (attempt - 1)
			s.logger.Debug().
				Str("op", op).
				Int("attempt", attempt+1).
				Int("retries", s.retries).
				Dur("delay", delay).
				Msg("Retrying store write")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err = fn(); err == nil {
			return nil
		}
	}

	s.logger.Error().Err(err).Str("op", op).Int("retries", s.retries).Msg("Store write failed after retries")
	return err
}
