// Package workers contains the sequential task loops: one for queued
// messages, one for queued publishes and one for the inbox. Exactly one
// worker runs at a time; each fully resolves, executes and writes back a
// task before the next begins.
package workers

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/models"
)

// Summary is the per-run tally reported by each worker.
type Summary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// pacer enforces the cooldown between successive tasks. Fast-fail outcomes
// never touched the platform, so the worker skips the wait after them.
type pacer struct {
	limiter *rate.Limiter
}

func newPacer(cooldown time.Duration) *pacer {
	if cooldown <= 0 {
		return &pacer{}
	}
	// Burst of one: the first task starts immediately, every later one is
	// spaced by the cooldown.
	return &pacer{limiter: rate.NewLimiter(rate.Every(cooldown), 1)}
}

func (p *pacer) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// retryDenied runs exec, then re-runs it after a backoff for each platform
// denial, up to the configured in-run retry count. The final outcome is
// returned; one run of retryDenied counts as a single cross-run attempt.
func retryDenied(ctx context.Context, cfg common.RetryConfig, logger arbor.ILogger, exec func(context.Context) models.Outcome) models.Outcome {
	outcome := exec(ctx)

	for retry := 1; retry <= cfg.DeniedRetries && outcome.Retryable(); retry++ {
		logger.Warn().
			Int("retry", retry).
			Str("reason", outcome.Detail()).
			Msg("Denied, retrying after backoff")

		select {
		case <-time.After(cfg.DeniedBackoff):
		case <-ctx.Done():
			return outcome
		}
		outcome = exec(ctx)
	}
	return outcome
}
