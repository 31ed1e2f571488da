package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

const (
	clockFormat     = "03:04 PM"
	timestampFormat = "2006-01-02 15:04:05"
)

// ResultWriter is the single path through which task outcomes reach the
// queues. Row status written here is idempotent: a Done or Skipped row is
// never picked up again, a Failed row only while below the attempt ceiling.
type ResultWriter struct {
	store       interfaces.RowStore
	maxAttempts int
	logger      arbor.ILogger
	now         func() time.Time
}

// NewResultWriter creates a writer. The store is expected to carry its own
// retry behaviour.
func NewResultWriter(store interfaces.RowStore, retryCfg common.RetryConfig, logger arbor.ILogger) *ResultWriter {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &ResultWriter{
		store:       store,
		maxAttempts: retryCfg.MaxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// WriteMessageResult records a finished message task. attempt is the task's
// attempt count including the one just made; it is persisted to the
// structured attempts column and, on failure, echoed into notes for older
// tooling.
func (w *ResultWriter) WriteMessageResult(ctx context.Context, task models.Task, outcome models.Outcome, attempt int) error {
	status, notes := w.classify(outcome)

	if err := w.store.UpdateCell(ctx, models.QueueMessages, task.Row, models.MsgColStatus, string(status)); err != nil {
		return err
	}
	if status == models.RowFailed {
		notes = fmt.Sprintf("%s (%s)", notes, FormatAttemptNote(attempt, w.maxAttempts))
	}
	if err := w.store.UpdateCell(ctx, models.QueueMessages, task.Row, models.MsgColNotes, notes); err != nil {
		return err
	}
	if outcome.URL != "" {
		if err := w.store.UpdateCell(ctx, models.QueueMessages, task.Row, models.MsgColResultURL, outcome.URL); err != nil {
			return err
		}
	}
	return w.store.UpdateCell(ctx, models.QueueMessages, task.Row, models.MsgColAttempts, strconv.Itoa(attempt))
}

// WriteMessageSkip marks a row Skipped with a reason. Skipped rows are
// terminal and never count an attempt.
func (w *ResultWriter) WriteMessageSkip(ctx context.Context, row int, reason string) error {
	if err := w.store.UpdateCell(ctx, models.QueueMessages, row, models.MsgColStatus, string(models.RowSkipped)); err != nil {
		return err
	}
	return w.store.UpdateCell(ctx, models.QueueMessages, row, models.MsgColNotes, reason)
}

// WriteProfile copies scraped profile fields back onto the task's row so the
// queue accumulates target data across runs.
func (w *ResultWriter) WriteProfile(ctx context.Context, row int, profile *models.Profile) error {
	if profile == nil {
		return nil
	}
	if profile.City != "" {
		if err := w.store.UpdateCell(ctx, models.QueueMessages, row, models.MsgColCity, profile.City); err != nil {
			return err
		}
	}
	if err := w.store.UpdateCell(ctx, models.QueueMessages, row, models.MsgColPosts, strconv.Itoa(profile.Posts)); err != nil {
		return err
	}
	return w.store.UpdateCell(ctx, models.QueueMessages, row, models.MsgColFollowers, strconv.Itoa(profile.Followers))
}

// AppendHistory adds a record of a sent message to the history queue.
func (w *ResultWriter) AppendHistory(ctx context.Context, nick, name, message, postURL string, outcome models.Outcome) error {
	return w.store.AppendRow(ctx, models.QueueHistory, []string{
		w.now().Format(timestampFormat),
		nick,
		name,
		message,
		postURL,
		string(outcome.Status),
		outcome.URL,
	})
}

// WritePublishResult records a finished publish task.
func (w *ResultWriter) WritePublishResult(ctx context.Context, task models.PublishTask, outcome models.Outcome, attempt int) error {
	status, notes := w.classify(outcome)

	if err := w.store.UpdateCell(ctx, models.QueuePublish, task.Row, models.PubColStatus, string(status)); err != nil {
		return err
	}
	if status == models.RowFailed {
		notes = fmt.Sprintf("%s (%s)", notes, FormatAttemptNote(attempt, w.maxAttempts))
	}
	if err := w.store.UpdateCell(ctx, models.QueuePublish, task.Row, models.PubColNotes, notes); err != nil {
		return err
	}
	if outcome.URL != "" {
		if err := w.store.UpdateCell(ctx, models.QueuePublish, task.Row, models.PubColResultURL, outcome.URL); err != nil {
			return err
		}
	}
	if err := w.store.UpdateCell(ctx, models.QueuePublish, task.Row, models.PubColTimestamp, w.now().Format(timestampFormat)); err != nil {
		return err
	}
	return w.store.UpdateCell(ctx, models.QueuePublish, task.Row, models.PubColAttempts, strconv.Itoa(attempt))
}

// WriteInboxReplyResult records the outcome of sending one queued reply.
// log is the conversation rendered after the send; it lands in the log
// column so the queue shows the exchange including the reply just made.
func (w *ResultWriter) WriteInboxReplyResult(ctx context.Context, row int, outcome models.Outcome, log string) error {
	status, notes := w.classify(outcome)
	if err := w.store.UpdateCell(ctx, models.QueueInbox, row, models.InboxColStatus, string(status)); err != nil {
		return err
	}
	if err := w.store.UpdateCell(ctx, models.QueueInbox, row, models.InboxColNotes, notes); err != nil {
		return err
	}
	if err := w.store.UpdateCell(ctx, models.QueueInbox, row, models.InboxColTimestamp, w.now().Format(timestampFormat)); err != nil {
		return err
	}
	if log == "" {
		return nil
	}
	return w.store.UpdateCell(ctx, models.QueueInbox, row, models.InboxColLog, log)
}

// UpdateConversation refreshes an inbox row with the latest message and the
// rendered conversation log.
func (w *ResultWriter) UpdateConversation(ctx context.Context, row int, lastMessage, log string) error {
	if err := w.store.UpdateCell(ctx, models.QueueInbox, row, models.InboxColLastMessage, lastMessage); err != nil {
		return err
	}
	if err := w.store.UpdateCell(ctx, models.QueueInbox, row, models.InboxColTimestamp, w.now().Format(timestampFormat)); err != nil {
		return err
	}
	if log == "" {
		return nil
	}
	return w.store.UpdateCell(ctx, models.QueueInbox, row, models.InboxColLog, log)
}

// AppendConversation adds a freshly discovered conversation to the inbox
// queue with an empty reply slot. The row starts as pending so a reply the
// operator fills in is picked up on the next run.
func (w *ResultWriter) AppendConversation(ctx context.Context, conv models.Conversation) error {
	cells := make([]string, models.InboxColCount)
	cells[models.InboxColNick] = conv.Nick
	cells[models.InboxColLastMessage] = conv.LastMessage
	cells[models.InboxColStatus] = "pending"
	cells[models.InboxColTimestamp] = conv.Timestamp
	return w.store.AppendRow(ctx, models.QueueInbox, cells)
}

// classify maps an action outcome onto row status and the notes text.
// Pending verification still lands the row in Done; the notes distinguish a
// confirmed post from one needing a manual check.
func (w *ResultWriter) classify(outcome models.Outcome) (models.RowStatus, string) {
	switch outcome.Status {
	case models.StatusPosted:
		return models.RowDone, "Posted @ " + w.now().Format(clockFormat)
	case models.StatusPendingVerification:
		return models.RowDone, "Verify @ " + w.now().Format(clockFormat)
	default:
		return models.RowFailed, outcome.Detail()
	}
}
