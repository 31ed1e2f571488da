package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
	"github.com/ternarybob/mitto/internal/queue"
	"github.com/ternarybob/mitto/internal/resolver"
)

// Inbox page selectors, ordered from the precise to the permissive; the
// inbox template is the least stable part of the platform markup.
const (
	inboxItemSelector   = "article, .conversation-item, div[class*='inbox'], li"
	inboxNickSelector   = "a[href*='/users/'], b, strong"
	inboxMsgSelector    = "span, .message-preview, bdi, p"
	inboxTimeSelector   = "time, span.time, .timestamp, small"
	inboxLinkSelector   = "a[href*='/inbox/'], a[href*='/users/']"
	conversationMsgSel  = ".message, article, div[class*='msg']"
	replyFieldSelector  = "textarea[name='message'], textarea"
	replySubmitSelector = "button[type='submit']"
)

// InboxWorker keeps the inbox queue in sync with the platform inbox and
// sends queued replies. Conversation logs are stored as markdown so the
// queue stays readable.
type InboxWorker struct {
	browser interfaces.Browser
	norm    *resolver.Normalizer
	store   interfaces.RowStore
	loader  *queue.Loader
	writer  *queue.ResultWriter
	cfg     *common.Config
	logger  arbor.ILogger
	now     func() time.Time
}

// NewInboxWorker creates an inbox worker.
func NewInboxWorker(b interfaces.Browser, norm *resolver.Normalizer, store interfaces.RowStore, loader *queue.Loader, writer *queue.ResultWriter, cfg *common.Config, logger arbor.ILogger) *InboxWorker {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &InboxWorker{
		browser: b,
		norm:    norm,
		store:   store,
		loader:  loader,
		writer:  writer,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Run fetches the inbox, appends unseen conversations, refreshes known ones
// and then sends any queued replies.
func (w *InboxWorker) Run(ctx context.Context) (Summary, error) {
	conversations, err := w.fetchConversations(ctx)
	if err != nil {
		return Summary{}, err
	}
	w.logger.Info().Int("conversations", len(conversations)).Msg("Inbox fetched")

	if err := w.syncConversations(ctx, conversations); err != nil {
		return Summary{}, err
	}

	byNick := make(map[string]models.Conversation, len(conversations))
	for _, c := range conversations {
		byNick[c.Nick] = c
	}

	replies, err := w.loader.LoadInboxReplies(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{}
	p := newPacer(w.cfg.Retry.Cooldown)

	for i, reply := range replies {
		if ctx.Err() != nil {
			w.logger.Warn().Int("remaining", len(replies)-i).Msg("Run interrupted")
			break
		}
		if err := p.wait(ctx); err != nil {
			break
		}

		conv, known := byNick[reply.Nick]
		if !known {
			conv.URL = w.norm.InboxURL(reply.Nick)
		}

		outcome := w.sendReply(ctx, conv.URL, reply.Reply)
		summary.Processed++

		// Re-render the conversation after a send so the log column shows
		// the reply that was just made.
		log := ""
		if outcome.Succeeded() {
			log = w.conversationLog(ctx, conv.URL)
		}

		writeCtx := context.WithoutCancel(ctx)
		if err := w.writer.WriteInboxReplyResult(writeCtx, reply.Row, outcome, log); err != nil {
			w.logger.Error().Int("row", reply.Row).Err(err).Msg("Reply result write failed")
		}
		if outcome.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	w.logger.Info().
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("Inbox run finished")

	return summary, nil
}

// fetchConversations scrapes the inbox listing. Items missing a nickname or
// a link are skipped silently; the page mixes conversations with unrelated
// list markup.
func (w *InboxWorker) fetchConversations(ctx context.Context) ([]models.Conversation, error) {
	inboxURL := w.cfg.Platform.BaseURL + "/inbox/"
	if err := w.browser.Navigate(ctx, inboxURL); err != nil {
		return nil, fmt.Errorf("inbox navigation failed: %w", err)
	}
	source, err := w.browser.PageSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("inbox source unavailable: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("inbox parse failed: %w", err)
	}

	var conversations []models.Conversation
	seen := make(map[string]bool)

	doc.Find(inboxItemSelector).Each(func(_ int, item *goquery.Selection) {
		nick := strings.TrimSpace(item.Find(inboxNickSelector).First().Text())
		if nick == "" || seen[nick] {
			return
		}
		href, ok := item.Find(inboxLinkSelector).First().Attr("href")
		if !ok || href == "" {
			return
		}

		timestamp := strings.TrimSpace(item.Find(inboxTimeSelector).First().Text())
		if timestamp == "" {
			timestamp = w.now().Format("2006-01-02 15:04:05")
		}

		seen[nick] = true
		conversations = append(conversations, models.Conversation{
			Nick:        nick,
			LastMessage: strings.TrimSpace(item.Find(inboxMsgSelector).First().Text()),
			Timestamp:   timestamp,
			URL:         w.norm.Absolute(href),
		})
	})

	return conversations, nil
}

// syncConversations reconciles the scraped conversations against the inbox
// queue: unseen nicks are appended, known rows whose last message changed
// get a refreshed preview and conversation log.
func (w *InboxWorker) syncConversations(ctx context.Context, conversations []models.Conversation) error {
	rows, err := w.store.ListRows(ctx, models.QueueInbox)
	if err != nil {
		return err
	}

	rowByNick := make(map[string]models.Row)
	for _, row := range rows {
		if row.Index == 1 {
			continue
		}
		if nick := row.Cell(models.InboxColNick); nick != "" {
			rowByNick[nick] = row
		}
	}

	writeCtx := context.WithoutCancel(ctx)
	for _, conv := range conversations {
		row, known := rowByNick[conv.Nick]
		if !known {
			if err := w.writer.AppendConversation(writeCtx, conv); err != nil {
				return err
			}
			w.logger.Info().Str("nick", conv.Nick).Msg("New conversation recorded")
			continue
		}
		if row.Cell(models.InboxColLastMessage) == conv.LastMessage {
			continue
		}

		log := w.conversationLog(ctx, conv.URL)
		if err := w.writer.UpdateConversation(writeCtx, row.Index, conv.LastMessage, log); err != nil {
			return err
		}
	}
	return nil
}

// conversationLog renders a conversation page as markdown. A failure here
// only costs the log column, so errors degrade to an empty string.
func (w *InboxWorker) conversationLog(ctx context.Context, convURL string) string {
	if err := w.browser.Navigate(ctx, convURL); err != nil {
		return ""
	}
	source, err := w.browser.PageSource(ctx)
	if err != nil {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return ""
	}

	var parts []string
	doc.Find(conversationMsgSel).Each(func(_ int, s *goquery.Selection) {
		if html, err := goquery.OuterHtml(s); err == nil {
			parts = append(parts, html)
		}
	})
	raw := strings.Join(parts, "\n")
	if raw == "" {
		raw = source
	}

	converter := md.NewConverter(w.cfg.Platform.BaseURL, true, nil)
	markdown, err := converter.ConvertString(raw)
	if err != nil {
		w.logger.Debug().Str("url", convURL).Err(err).Msg("Conversation markdown conversion failed")
		return ""
	}
	return strings.TrimSpace(markdown)
}

// sendReply posts one queued reply into a conversation and checks the text
// shows up after a reload.
func (w *InboxWorker) sendReply(ctx context.Context, convURL, reply string) models.Outcome {
	if err := w.browser.Navigate(ctx, convURL); err != nil {
		return models.Outcome{Status: models.StatusFailed, URL: convURL, Reason: "conversation navigation failed"}
	}
	if err := w.browser.WaitVisible(ctx, replyFieldSelector, w.cfg.Browser.WaitTimeout); err != nil {
		return models.Outcome{Status: models.StatusNoForm, URL: convURL}
	}
	if err := w.browser.SendKeys(ctx, replyFieldSelector, reply); err != nil {
		return models.Outcome{Status: models.StatusFormError, URL: convURL, Reason: "typing failed"}
	}
	if err := w.browser.Click(ctx, replySubmitSelector); err != nil {
		return models.Outcome{Status: models.StatusFormError, URL: convURL, Reason: "submit failed"}
	}

	if err := w.browser.Navigate(ctx, convURL); err != nil {
		return models.Outcome{Status: models.StatusPendingVerification, URL: convURL}
	}
	fresh, err := w.browser.PageSource(ctx)
	if err != nil || !strings.Contains(fresh, reply) {
		return models.Outcome{Status: models.StatusPendingVerification, URL: convURL}
	}
	return models.Outcome{Status: models.StatusPosted, URL: convURL}
}
