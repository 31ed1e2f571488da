package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/mitto/internal/browser"
	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/models"
	"github.com/ternarybob/mitto/internal/queue"
	"github.com/ternarybob/mitto/internal/resolver"
	"github.com/ternarybob/mitto/internal/storage/memory"
)

const formPage = `<html><body>
<form action="/direct-response/send/"><textarea name="direct_response"></textarea>
<button type="submit">Send</button></form>
</body></html>`

func testConfig() *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Platform.BaseURL = "https://site"
	cfg.Platform.LoginNick = "mebot"
	cfg.Retry.Cooldown = 0
	cfg.Retry.DeniedBackoff = time.Millisecond
	return cfg
}

func newMessageHarness(cfg *common.Config, fake *browser.Fake, rows ...[]string) (*MessageWorker, *memory.RowStore) {
	store := memory.NewRowStore()
	store.Seed(models.QueueMessages, rows...)

	norm := resolver.NewNormalizer(cfg.Platform.BaseURL)
	res := resolver.New(fake, norm, cfg.Resolver, cfg.Browser.WaitTimeout, nil)
	loader := queue.NewLoader(store, cfg.Run, cfg.Retry, nil)
	writer := queue.NewResultWriter(store, cfg.Retry, nil)

	return NewMessageWorker(fake, res, loader, writer, cfg, nil), store
}

func msgRow(mode, name, target, message, status string) []string {
	return []string{mode, name, target, "", "", "", message, status, "", "", ""}
}

// Direct-URL task end to end: the raw target is canonicalized, the template
// renders with no profile data, and a confirmed post lands the row in Done.
func TestMessageRunDirectURL(t *testing.T) {
	cfg := testConfig()
	fake := browser.NewFake()

	canonical := "https://site/comments/text/123"
	fake.Pages[canonical] = formPage
	fake.EvalResults[visibleResponseFormScript] = true
	fake.OnClick = func(sel string) {
		if sel == responseSubmitSelector {
			fake.Pages[canonical] = `<html><body>mebot said: hi Unknown</body></html>`
		}
	}

	w, store := newMessageHarness(cfg, fake,
		msgRow("url", "", "https://site/comments/text/123/?x=1#reply", "hi {{name}}", "pending"),
	)

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Succeeded: 1}, summary)

	assert.Equal(t, "Done", store.Cell(models.QueueMessages, 2, models.MsgColStatus))
	assert.Contains(t, store.Cell(models.QueueMessages, 2, models.MsgColNotes), "Posted @")
	assert.Equal(t, canonical, store.Cell(models.QueueMessages, 2, models.MsgColResultURL))
	assert.Equal(t, "1", store.Cell(models.QueueMessages, 2, models.MsgColAttempts))

	require.Len(t, fake.Typed, 1)
	assert.Equal(t, "hi Unknown", fake.Typed[0].Text)

	// Sent message lands in history.
	assert.Equal(t, 2, store.RowCount(models.QueueHistory))
}

// A nickname whose profile shows zero posts is skipped before any content
// page is touched.
func TestMessageRunZeroPostsSkips(t *testing.T) {
	cfg := testConfig()
	fake := browser.NewFake()
	fake.Pages["https://site/users/ali/"] = `<html><body><h1>ali</h1></body></html>`

	w, store := newMessageHarness(cfg, fake,
		msgRow("nick", "Ali", "ali", "hi", "pending"),
	)

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Skipped: 1}, summary)

	assert.Equal(t, "Skipped", store.Cell(models.QueueMessages, 2, models.MsgColStatus))
	assert.Equal(t, "No posts", store.Cell(models.QueueMessages, 2, models.MsgColNotes))
	assert.Equal(t, []string{"https://site/users/ali/"}, fake.Navigations)
	// No attempt is consumed.
	assert.Equal(t, "", store.Cell(models.QueueMessages, 2, models.MsgColAttempts))
}

func TestMessageRunSuspendedSkips(t *testing.T) {
	cfg := testConfig()
	fake := browser.NewFake()
	fake.Pages["https://site/users/ali/"] = `<html><body><h1>Account Suspended</h1></body></html>`

	w, store := newMessageHarness(cfg, fake,
		msgRow("nick", "Ali", "ali", "hi", "pending"),
	)

	_, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Skipped", store.Cell(models.QueueMessages, 2, models.MsgColStatus))
	assert.Equal(t, "Account suspended", store.Cell(models.QueueMessages, 2, models.MsgColNotes))
}

func TestMessageRunInvalidDirectURL(t *testing.T) {
	cfg := testConfig()
	w, store := newMessageHarness(cfg, browser.NewFake(),
		msgRow("url", "", "https://site/users/ali/", "hi", "pending"),
	)

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "Failed", store.Cell(models.QueueMessages, 2, models.MsgColStatus))
	assert.Contains(t, store.Cell(models.QueueMessages, 2, models.MsgColNotes), "invalid URL")
}

func TestMessageRunResolutionFailureRecordsPages(t *testing.T) {
	cfg := testConfig()
	cfg.Resolver.MaxPages = 2
	fake := browser.NewFake()
	fake.Pages["https://site/users/ali/"] = `<html><body>
		<h1>ali</h1>
		<a href="/profile/public/ali/"><button><div>5 posts</div></button></a>
	</body></html>`
	fake.Pages["https://site/profile/public/ali/"] = `<html><body><p>nothing here</p></body></html>`

	w, store := newMessageHarness(cfg, fake,
		msgRow("nick", "Ali", "ali", "hi", "pending"),
	)

	_, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Failed", store.Cell(models.QueueMessages, 2, models.MsgColStatus))
	assert.Contains(t, store.Cell(models.QueueMessages, 2, models.MsgColNotes), "No open posts found (scanned 1 pages)")
	// Scraped profile fields are written back even though resolution failed.
	assert.Equal(t, "5", store.Cell(models.QueueMessages, 2, models.MsgColPosts))
}

// One task's failure never stops the run.
func TestMessageRunTaskIsolation(t *testing.T) {
	cfg := testConfig()
	fake := browser.NewFake()

	good := "https://site/comments/text/2"
	fake.Pages[good] = formPage
	fake.EvalResults[visibleResponseFormScript] = true
	fake.OnClick = func(sel string) {
		fake.Pages[good] = `<html><body>mebot wrote hello</body></html>`
	}

	w, store := newMessageHarness(cfg, fake,
		msgRow("url", "", "https://site/comments/text/1", "boom", "pending"), // page not scripted
		msgRow("url", "", "https://site/comments/text/2", "hello", "pending"),
	)

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, "Failed", store.Cell(models.QueueMessages, 2, models.MsgColStatus))
	assert.Equal(t, "Done", store.Cell(models.QueueMessages, 3, models.MsgColStatus))
}

func TestMessageRunTruncatesMessage(t *testing.T) {
	cfg := testConfig()
	cfg.Message.MaxLength = 5
	fake := browser.NewFake()
	fake.Pages["https://site/comments/text/1"] = formPage
	fake.EvalResults[visibleResponseFormScript] = true

	w, _ := newMessageHarness(cfg, fake,
		msgRow("url", "", "https://site/comments/text/1", "hello world", "pending"),
	)

	_, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, fake.Typed, 1)
	assert.Equal(t, "hello", fake.Typed[0].Text)
}

func TestMessageRunInterrupt(t *testing.T) {
	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w, store := newMessageHarness(cfg, browser.NewFake(),
		msgRow("url", "", "https://site/comments/text/1", "hi", "pending"),
	)

	summary, err := w.Run(ctx)
	require.NoError(t, err)
	// Cancelled before the first task: nothing processed, nothing written.
	assert.Equal(t, Summary{}, summary)
	assert.Equal(t, "pending", store.Cell(models.QueueMessages, 2, models.MsgColStatus))
}

func sendHarness(t *testing.T, page string) (*MessageWorker, *browser.Fake) {
	t.Helper()
	cfg := testConfig()
	fake := browser.NewFake()
	fake.Pages["https://site/comments/text/9"] = page
	fake.EvalResults[visibleResponseFormScript] = true
	w, _ := newMessageHarness(cfg, fake)
	return w, fake
}

// Verification truth table: Posted needs both signals, exactly one gives
// PendingVerification, neither is a failure.
func TestSendVerificationBothSignals(t *testing.T) {
	w, _ := sendHarness(t, formPage+"mebot hello")
	outcome := w.send(context.Background(), "https://site/comments/text/9", "hello")
	assert.Equal(t, models.StatusPosted, outcome.Status)
}

func TestSendVerificationIdentityOnly(t *testing.T) {
	w, _ := sendHarness(t, formPage+"mebot was here")
	outcome := w.send(context.Background(), "https://site/comments/text/9", "hello")
	assert.Equal(t, models.StatusPendingVerification, outcome.Status)
}

func TestSendVerificationTextOnly(t *testing.T) {
	w, _ := sendHarness(t, formPage+"someone said hello")
	outcome := w.send(context.Background(), "https://site/comments/text/9", "hello")
	assert.Equal(t, models.StatusPendingVerification, outcome.Status)
}

func TestSendVerificationNeitherSignal(t *testing.T) {
	w, _ := sendHarness(t, formPage)
	outcome := w.send(context.Background(), "https://site/comments/text/9", "hello")
	assert.Equal(t, models.StatusFailed, outcome.Status)
}

func TestSendBlockedMustFollow(t *testing.T) {
	w, fake := sendHarness(t, `<html><body>Follow to Reply</body></html>`)
	outcome := w.send(context.Background(), "https://site/comments/text/9", "hello")
	assert.Equal(t, models.StatusNotFollowing, outcome.Status)
	// Short-circuits before touching any form.
	assert.Empty(t, fake.Typed)
}

func TestSendBlockedCommentsClosed(t *testing.T) {
	w, _ := sendHarness(t, `<html><body>Comments Closed</body></html>`)
	outcome := w.send(context.Background(), "https://site/comments/text/9", "hello")
	assert.Equal(t, models.StatusCommentsClosed, outcome.Status)
}

func TestSendNoVisibleForm(t *testing.T) {
	cfg := testConfig()
	fake := browser.NewFake()
	fake.Pages["https://site/comments/text/9"] = formPage
	fake.EvalResults[visibleResponseFormScript] = false // hidden duplicate only
	w, _ := newMessageHarness(cfg, fake)

	outcome := w.send(context.Background(), "https://site/comments/text/9", "hello")
	assert.Equal(t, models.StatusNoForm, outcome.Status)
	assert.Empty(t, fake.Typed)
}
