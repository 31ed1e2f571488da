package queue

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// LoadStats counts why rows were or were not turned into tasks. Skip
// reasons are reported but carry no side effects.
type LoadStats struct {
	Total        int
	Eligible     int
	EmptyTarget  int
	EmptyMessage int
	Requeued     int
	CappedAt     int
}

// Loader reads queue rows and converts the eligible ones into tasks.
type Loader struct {
	store       interfaces.RowStore
	maxItems    int
	maxAttempts int
	logger      arbor.ILogger
}

// NewLoader creates a loader. maxItems of 0 means no cap.
func NewLoader(store interfaces.RowStore, runCfg common.RunConfig, retryCfg common.RetryConfig, logger arbor.ILogger) *Loader {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Loader{
		store:       store,
		maxItems:    runCfg.MaxItems,
		maxAttempts: retryCfg.MaxAttempts,
		logger:      logger,
	}
}

// eligible reports whether a row's status qualifies it for this run. Any
// status starting with "pending" qualifies; a Failed row qualifies again while
// its attempt count is below the ceiling.
func (l *Loader) eligible(status string, attempts int) (ok, requeued bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	if strings.HasPrefix(status, "pending") {
		return true, false
	}
	if status == "failed" && attempts < l.maxAttempts {
		return true, true
	}
	return false, false
}

// LoadMessageTasks reads the message queue and returns its eligible tasks in
// row order, capped at maxItems.
func (l *Loader) LoadMessageTasks(ctx context.Context) ([]models.Task, LoadStats, error) {
	rows, err := l.store.ListRows(ctx, models.QueueMessages)
	if err != nil {
		return nil, LoadStats{}, err
	}

	var tasks []models.Task
	stats := LoadStats{}

	for _, row := range rows {
		if row.Index == 1 {
			continue // header
		}
		stats.Total++

		attempts := ParseAttempts(row.Cell(models.MsgColAttempts), row.Cell(models.MsgColNotes))
		ok, requeued := l.eligible(row.Cell(models.MsgColStatus), attempts)
		if !ok {
			continue
		}

		target := row.Cell(models.MsgColTarget)
		message := row.Cell(models.MsgColMessage)
		if target == "" {
			stats.EmptyTarget++
			continue
		}
		if message == "" {
			stats.EmptyMessage++
			continue
		}
		if requeued {
			stats.Requeued++
		}

		tasks = append(tasks, models.Task{
			Row:       row.Index,
			Mode:      parseMode(row.Cell(models.MsgColMode), target),
			Name:      row.Cell(models.MsgColName),
			Target:    target,
			City:      row.Cell(models.MsgColCity),
			Posts:     row.Cell(models.MsgColPosts),
			Followers: row.Cell(models.MsgColFollowers),
			Message:   message,
			Status:    row.Cell(models.MsgColStatus),
			Notes:     row.Cell(models.MsgColNotes),
			Attempts:  attempts,
		})
	}

	stats.Eligible = len(tasks)
	if l.maxItems > 0 && len(tasks) > l.maxItems {
		tasks = tasks[:l.maxItems]
		stats.CappedAt = l.maxItems
	}

	l.logger.Info().
		Int("rows", stats.Total).
		Int("eligible", stats.Eligible).
		Int("empty_target", stats.EmptyTarget).
		Int("empty_message", stats.EmptyMessage).
		Int("requeued", stats.Requeued).
		Msg("Message queue loaded")

	return tasks, stats, nil
}

// LoadPublishTasks reads the publish queue. A text task needs content, an
// image task needs an image source; rows missing those are counted as skips.
func (l *Loader) LoadPublishTasks(ctx context.Context) ([]models.PublishTask, LoadStats, error) {
	rows, err := l.store.ListRows(ctx, models.QueuePublish)
	if err != nil {
		return nil, LoadStats{}, err
	}

	var tasks []models.PublishTask
	stats := LoadStats{}

	for _, row := range rows {
		if row.Index == 1 {
			continue
		}
		stats.Total++

		attempts := ParseAttempts(row.Cell(models.PubColAttempts), row.Cell(models.PubColNotes))
		ok, requeued := l.eligible(row.Cell(models.PubColStatus), attempts)
		if !ok {
			continue
		}

		kind := models.ContentKind(strings.ToLower(row.Cell(models.PubColKind)))
		if kind != models.ContentText && kind != models.ContentImage {
			kind = models.ContentText
		}

		content := row.Cell(models.PubColContent)
		imagePath := row.Cell(models.PubColImagePath)
		switch kind {
		case models.ContentText:
			if content == "" {
				stats.EmptyMessage++
				continue
			}
		case models.ContentImage:
			if imagePath == "" {
				stats.EmptyTarget++
				continue
			}
		}
		if requeued {
			stats.Requeued++
		}

		tasks = append(tasks, models.PublishTask{
			Row:       row.Index,
			Kind:      kind,
			Title:     row.Cell(models.PubColTitle),
			Content:   content,
			ImagePath: imagePath,
			Tags:      row.Cell(models.PubColTags),
			Status:    row.Cell(models.PubColStatus),
			Notes:     row.Cell(models.PubColNotes),
			Attempts:  attempts,
		})
	}

	stats.Eligible = len(tasks)
	if l.maxItems > 0 && len(tasks) > l.maxItems {
		tasks = tasks[:l.maxItems]
		stats.CappedAt = l.maxItems
	}

	l.logger.Info().
		Int("rows", stats.Total).
		Int("eligible", stats.Eligible).
		Msg("Publish queue loaded")

	return tasks, stats, nil
}

// LoadInboxReplies returns queued replies: rows with a reply text whose
// status is pending.
func (l *Loader) LoadInboxReplies(ctx context.Context) ([]models.InboxReply, error) {
	rows, err := l.store.ListRows(ctx, models.QueueInbox)
	if err != nil {
		return nil, err
	}

	var replies []models.InboxReply
	for _, row := range rows {
		if row.Index == 1 {
			continue
		}
		status := strings.ToLower(row.Cell(models.InboxColStatus))
		reply := row.Cell(models.InboxColReply)
		nick := row.Cell(models.InboxColNick)
		if nick == "" || reply == "" || !strings.HasPrefix(status, "pending") {
			continue
		}
		replies = append(replies, models.InboxReply{
			Row:   row.Index,
			Nick:  nick,
			Reply: reply,
		})
	}
	return replies, nil
}

// parseMode resolves the row's mode cell, falling back to target shape when
// the cell is absent or unrecognized.
func parseMode(cell, target string) models.TargetMode {
	switch strings.ToLower(cell) {
	case "url":
		return models.TargetModeURL
	case "nick", "nickname":
		return models.TargetModeNick
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return models.TargetModeURL
	}
	return models.TargetModeNick
}
