package workers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/models"
)

func TestRetryDeniedRetriesOnceThenKeepsLastDenial(t *testing.T) {
	cfg := common.RetryConfig{DeniedRetries: 1, DeniedBackoff: time.Millisecond}

	calls := 0
	outcome := retryDenied(context.Background(), cfg, common.GetLogger(), func(context.Context) models.Outcome {
		calls++
		return models.Outcome{Status: models.StatusDenied, Reason: fmt.Sprintf("denial %d", calls)}
	})

	// Two consecutive denials with one retry budget: exactly two executions,
	// final outcome carries the last denial's detail.
	assert.Equal(t, 2, calls)
	assert.Equal(t, models.StatusDenied, outcome.Status)
	assert.Equal(t, "denial 2", outcome.Reason)
}

func TestRetryDeniedStopsOnSuccess(t *testing.T) {
	cfg := common.RetryConfig{DeniedRetries: 3, DeniedBackoff: time.Millisecond}

	calls := 0
	outcome := retryDenied(context.Background(), cfg, common.GetLogger(), func(context.Context) models.Outcome {
		calls++
		if calls == 2 {
			return models.Outcome{Status: models.StatusPosted}
		}
		return models.Outcome{Status: models.StatusDenied}
	})

	assert.Equal(t, 2, calls)
	assert.Equal(t, models.StatusPosted, outcome.Status)
}

func TestRetryDeniedNoRetryForOtherFailures(t *testing.T) {
	cfg := common.RetryConfig{DeniedRetries: 3, DeniedBackoff: time.Millisecond}

	calls := 0
	outcome := retryDenied(context.Background(), cfg, common.GetLogger(), func(context.Context) models.Outcome {
		calls++
		return models.Outcome{Status: models.StatusCommentsClosed}
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, models.StatusCommentsClosed, outcome.Status)
}

func TestRetryDeniedZeroBudget(t *testing.T) {
	cfg := common.RetryConfig{DeniedRetries: 0, DeniedBackoff: time.Millisecond}

	calls := 0
	outcome := retryDenied(context.Background(), cfg, common.GetLogger(), func(context.Context) models.Outcome {
		calls++
		return models.Outcome{Status: models.StatusDenied, Reason: "refused"}
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, "refused", outcome.Reason)
}

func TestRetryDeniedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := common.RetryConfig{DeniedRetries: 5, DeniedBackoff: time.Hour}

	calls := 0
	outcome := retryDenied(ctx, cfg, common.GetLogger(), func(context.Context) models.Outcome {
		calls++
		return models.Outcome{Status: models.StatusDenied}
	})

	// The backoff wait aborts; no further execution happens.
	assert.Equal(t, 1, calls)
	assert.Equal(t, models.StatusDenied, outcome.Status)
}

func TestPacerSpacesTasks(t *testing.T) {
	p := newPacer(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	assert.NoError(t, p.wait(ctx)) // first is immediate
	assert.NoError(t, p.wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPacerDisabled(t *testing.T) {
	p := newPacer(0)
	start := time.Now()
	assert.NoError(t, p.wait(context.Background()))
	assert.NoError(t, p.wait(context.Background()))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}
