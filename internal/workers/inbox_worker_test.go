package workers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/mitto/internal/browser"
	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/models"
	"github.com/ternarybob/mitto/internal/queue"
	"github.com/ternarybob/mitto/internal/resolver"
	"github.com/ternarybob/mitto/internal/storage/memory"
)

const inboxURL = "https://site/inbox/"

func newInboxHarness(cfg *common.Config, fake *browser.Fake, rows ...[]string) (*InboxWorker, *memory.RowStore) {
	store := memory.NewRowStore()
	store.Seed(models.QueueInbox, rows...)

	norm := resolver.NewNormalizer(cfg.Platform.BaseURL)
	loader := queue.NewLoader(store, cfg.Run, cfg.Retry, nil)
	writer := queue.NewResultWriter(store, cfg.Retry, nil)

	return NewInboxWorker(fake, norm, store, loader, writer, cfg, nil), store
}

func inboxRow(nick, lastMessage, reply, status string) []string {
	return []string{nick, "", lastMessage, reply, status, "", "", ""}
}

const inboxPageAli = `<html><body>
<article>
	<a href="/inbox/ali/"><b>ali</b></a>
	<span>salam</span>
</article>
</body></html>`

func TestInboxSyncAppendsNewConversation(t *testing.T) {
	cfg := testConfig()
	fake := browser.NewFake()
	fake.Pages[inboxURL] = inboxPageAli

	w, store := newInboxHarness(cfg, fake)

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)

	require.Equal(t, 2, store.RowCount(models.QueueInbox))
	assert.Equal(t, "ali", store.Cell(models.QueueInbox, 2, models.InboxColNick))
	assert.Equal(t, "salam", store.Cell(models.QueueInbox, 2, models.InboxColLastMessage))
	assert.Equal(t, "pending", store.Cell(models.QueueInbox, 2, models.InboxColStatus))
	assert.NotEmpty(t, store.Cell(models.QueueInbox, 2, models.InboxColTimestamp))
}

// A conversation appended by one run is picked up by the next once the
// operator fills in the reply column.
func TestInboxAppendedRowReplyIsSentNextRun(t *testing.T) {
	cfg := testConfig()
	fake := browser.NewFake()
	fake.Pages[inboxURL] = inboxPageAli
	conv := "https://site/inbox/ali/"
	fake.Pages[conv] = `<html><body><textarea name="message"></textarea></body></html>`
	fake.OnClick = func(sel string) {
		fake.Pages[conv] = `<html><body>wa alaikum salam</body></html>`
	}

	w, store := newInboxHarness(cfg, fake)

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
	require.Equal(t, 2, store.RowCount(models.QueueInbox))

	require.NoError(t, store.UpdateCell(context.Background(), models.QueueInbox, 2, models.InboxColReply, "wa alaikum salam"))

	summary, err = w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Succeeded: 1}, summary)
	assert.Equal(t, "Done", store.Cell(models.QueueInbox, 2, models.InboxColStatus))
	require.Len(t, fake.Typed, 1)
	assert.Equal(t, "wa alaikum salam", fake.Typed[0].Text)
}

// A repeated run with nothing new neither duplicates the row nor opens the
// conversation page.
func TestInboxSyncUnchangedIsIdempotent(t *testing.T) {
	cfg := testConfig()
	fake := browser.NewFake()
	fake.Pages[inboxURL] = inboxPageAli

	w, store := newInboxHarness(cfg, fake,
		inboxRow("ali", "salam", "", "done"),
	)

	_, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.RowCount(models.QueueInbox))
	assert.Equal(t, []string{inboxURL}, fake.Navigations)
}

// A changed preview refreshes the row and stores the conversation rendered
// as markdown.
func TestInboxSyncRefreshesChangedConversation(t *testing.T) {
	cfg := testConfig()
	fake := browser.NewFake()
	fake.Pages[inboxURL] = inboxPageAli
	fake.Pages["https://site/inbox/ali/"] = `<html><body>
		<div class="message"><b>ali</b>: salam</div>
		<div class="message"><b>mebot</b>: hello</div>
	</body></html>`

	w, store := newInboxHarness(cfg, fake,
		inboxRow("ali", "older preview", "", "done"),
	)

	_, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "salam", store.Cell(models.QueueInbox, 2, models.InboxColLastMessage))
	log := store.Cell(models.QueueInbox, 2, models.InboxColLog)
	assert.Contains(t, log, "ali")
	assert.Contains(t, log, "salam")
	assert.NotContains(t, log, "<div")
	assert.Contains(t, fake.Navigations, "https://site/inbox/ali/")
}

func TestInboxReplySentAndVerified(t *testing.T) {
	cfg := testConfig()
	fake := browser.NewFake()
	fake.Pages[inboxURL] = inboxPageAli
	conv := "https://site/inbox/ali/"
	fake.Pages[conv] = `<html><body><textarea name="message"></textarea></body></html>`
	fake.OnClick = func(sel string) {
		fake.Pages[conv] = `<html><body>wa alaikum salam</body></html>`
	}

	w, store := newInboxHarness(cfg, fake,
		inboxRow("ali", "salam", "wa alaikum salam", "pending"),
	)

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Succeeded: 1}, summary)

	require.Len(t, fake.Typed, 1)
	assert.Equal(t, "wa alaikum salam", fake.Typed[0].Text)
	assert.Equal(t, "Done", store.Cell(models.QueueInbox, 2, models.InboxColStatus))
	assert.Contains(t, store.Cell(models.QueueInbox, 2, models.InboxColNotes), "Posted @")
	// The log column holds the conversation as rendered after the send.
	assert.Contains(t, store.Cell(models.QueueInbox, 2, models.InboxColLog), "wa alaikum salam")
}

// A reply whose text never shows up after the reload is only a qualified
// success.
func TestInboxReplyPendingVerification(t *testing.T) {
	cfg := testConfig()
	fake := browser.NewFake()
	fake.Pages[inboxURL] = inboxPageAli
	fake.Pages["https://site/inbox/ali/"] = `<html><body><textarea name="message"></textarea></body></html>`

	w, store := newInboxHarness(cfg, fake,
		inboxRow("ali", "salam", "wa alaikum salam", "pending"),
	)

	_, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Done", store.Cell(models.QueueInbox, 2, models.InboxColStatus))
	assert.Contains(t, store.Cell(models.QueueInbox, 2, models.InboxColNotes), "Verify @")
}

// A queued reply for a nick absent from the inbox listing falls back to the
// direct conversation URL, which carries the reply form.
func TestInboxReplyUnknownNick(t *testing.T) {
	cfg := testConfig()
	fake := browser.NewFake()
	fake.Pages[inboxURL] = `<html><body></body></html>`
	fake.Pages["https://site/inbox/bob/"] = `<html><body><textarea></textarea></body></html>`

	w, _ := newInboxHarness(cfg, fake,
		inboxRow("bob", "", "hello bob", "pending"),
	)

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Contains(t, fake.Navigations, "https://site/inbox/bob/")
	require.Len(t, fake.Typed, 1)
	assert.Equal(t, "hello bob", fake.Typed[0].Text)
}
