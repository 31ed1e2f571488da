package workers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/media"
	"github.com/ternarybob/mitto/internal/models"
	"github.com/ternarybob/mitto/internal/queue"
	"github.com/ternarybob/mitto/internal/resolver"
)

const (
	responseFieldSelector  = "form[action*='direct-response/send'] textarea[name='direct_response']"
	responseSubmitSelector = "form[action*='direct-response/send'] button[type='submit']"
)

// visibleResponseFormScript checks for a response form that is both rendered
// and carries the response field. Pages ship hidden duplicate forms, so
// presence in the markup alone is not enough.
const visibleResponseFormScript = `(() => {
	const forms = Array.from(document.querySelectorAll("form[action*='direct-response/send']"));
	return forms.some(f => f.offsetParent !== null && f.querySelector("textarea[name='direct_response']") !== null);
})()`

// MessageWorker drives the message queue: resolve each task's target to an
// open content page, post the rendered message there and verify it landed.
type MessageWorker struct {
	browser  interfaces.Browser
	resolver *resolver.Resolver
	loader   *queue.Loader
	writer   *queue.ResultWriter
	cfg      *common.Config
	identity string
	logger   arbor.ILogger
}

// NewMessageWorker creates a message worker. identity is the acting login
// nick, used when verifying a submitted message.
func NewMessageWorker(b interfaces.Browser, res *resolver.Resolver, loader *queue.Loader, writer *queue.ResultWriter, cfg *common.Config, logger arbor.ILogger) *MessageWorker {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &MessageWorker{
		browser:  b,
		resolver: res,
		loader:   loader,
		writer:   writer,
		cfg:      cfg,
		identity: cfg.Platform.LoginNick,
		logger:   logger,
	}
}

// Run processes the message queue sequentially. An interrupt stops the loop
// after the current task has written its result; result writes use a
// detached context so a cancelled run never loses the outcome of work
// already done.
func (w *MessageWorker) Run(ctx context.Context) (Summary, error) {
	tasks, _, err := w.loader.LoadMessageTasks(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("message queue load failed: %w", err)
	}

	summary := Summary{}
	p := newPacer(w.cfg.Retry.Cooldown)
	skipCooldown := false

	for i, task := range tasks {
		if ctx.Err() != nil {
			w.logger.Warn().Int("remaining", len(tasks)-i).Msg("Run interrupted")
			break
		}
		if !skipCooldown {
			if err := p.wait(ctx); err != nil {
				break
			}
		}
		skipCooldown = false

		w.logger.Info().
			Int("row", task.Row).
			Str("target", task.Target).
			Str("mode", string(task.Mode)).
			Msg("Processing message task")

		outcome, skipped := w.processTask(ctx, task)
		summary.Processed++

		if skipped {
			summary.Skipped++
			continue
		}

		writeCtx := context.WithoutCancel(ctx)
		if err := w.writer.WriteMessageResult(writeCtx, task, outcome, task.Attempts+1); err != nil {
			w.logger.Error().Int("row", task.Row).Err(err).Msg("Result write failed")
		}

		if outcome.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
			skipCooldown = outcome.FastFail()
		}
	}

	w.logger.Info().
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Msg("Message run finished")

	return summary, nil
}

// processTask resolves, renders and sends one task. The returned bool marks
// a skipped row whose write-back already happened.
func (w *MessageWorker) processTask(ctx context.Context, task models.Task) (models.Outcome, bool) {
	writeCtx := context.WithoutCancel(ctx)

	tmplProfile := profileFromTask(task)
	var location models.ResolvedLocation

	switch task.Mode {
	case models.TargetModeURL:
		loc, err := w.resolver.ResolveDirect(task.Target)
		if err != nil {
			return models.Failed(fmt.Sprintf("invalid URL: %s", task.Target)), false
		}
		location = loc

	default:
		loc, profile, err := w.resolver.ResolveNick(ctx, task.Target, models.ContentAny)
		if profile != nil {
			if werr := w.writer.WriteProfile(writeCtx, task.Row, profile); werr != nil {
				w.logger.Warn().Int("row", task.Row).Err(werr).Msg("Profile write-back failed")
			}
			tmplProfile = *profile
			if tmplProfile.Name == profile.Nick && task.Name != "" {
				tmplProfile.Name = task.Name
			}
		}
		if err != nil {
			var pre *resolver.PreconditionError
			if errors.As(err, &pre) {
				if werr := w.writer.WriteMessageSkip(writeCtx, task.Row, skipReason(pre.Reason)); werr != nil {
					w.logger.Error().Int("row", task.Row).Err(werr).Msg("Skip write failed")
				}
				return models.Outcome{Status: models.StatusFailed, Reason: pre.Reason}, true
			}
			var res *resolver.ResolutionError
			if errors.As(err, &res) {
				return models.Failed(fmt.Sprintf("No open posts found (scanned %d pages)", res.PagesScanned)), false
			}
			return models.Failed(err.Error()), false
		}
		location = loc
	}

	message := media.Clamp(common.RenderMessage(task.Message, tmplProfile), w.cfg.Message.MaxLength)

	outcome := retryDenied(ctx, w.cfg.Retry, w.logger, func(c context.Context) models.Outcome {
		return w.send(c, location.URL, message)
	})

	if outcome.Status == models.StatusPosted {
		nick := task.Target
		if task.Mode == models.TargetModeURL {
			nick = tmplProfile.Nick
		}
		if err := w.writer.AppendHistory(writeCtx, nick, tmplProfile.Name, message, location.URL, outcome); err != nil {
			w.logger.Warn().Err(err).Msg("History append failed")
		}
	}
	return outcome, false
}

// send posts a message on a content page and verifies it landed. Success
// needs both signals on the reloaded page: the acting identity and the exact
// submitted text. One of the two alone means the post probably landed but
// needs a manual check.
func (w *MessageWorker) send(ctx context.Context, contentURL, message string) models.Outcome {
	if err := w.browser.Navigate(ctx, contentURL); err != nil {
		return models.Outcome{Status: models.StatusFailed, URL: contentURL, Reason: "navigation failed"}
	}
	source, err := w.browser.PageSource(ctx)
	if err != nil {
		return models.Outcome{Status: models.StatusFailed, URL: contentURL, Reason: "page source unavailable"}
	}

	if strings.Contains(strings.ToUpper(source), "FOLLOW TO REPLY") {
		return models.Outcome{Status: models.StatusNotFollowing, URL: contentURL}
	}
	lower := strings.ToLower(source)
	if strings.Contains(lower, "comments are closed") || strings.Contains(lower, "comments closed") {
		return models.Outcome{Status: models.StatusCommentsClosed, URL: contentURL}
	}

	var visible bool
	if err := w.browser.Evaluate(ctx, visibleResponseFormScript, &visible); err != nil || !visible {
		return models.Outcome{Status: models.StatusNoForm, URL: contentURL}
	}

	if err := w.browser.WaitVisible(ctx, responseFieldSelector, w.cfg.Browser.WaitTimeout); err != nil {
		return models.Outcome{Status: models.StatusFormError, URL: contentURL, Reason: "response field not visible"}
	}
	if err := w.browser.SendKeys(ctx, responseFieldSelector, message); err != nil {
		return models.Outcome{Status: models.StatusFormError, URL: contentURL, Reason: "typing failed"}
	}
	if err := w.browser.Click(ctx, responseSubmitSelector); err != nil {
		return models.Outcome{Status: models.StatusFormError, URL: contentURL, Reason: "submit failed"}
	}

	if err := w.browser.Navigate(ctx, contentURL); err != nil {
		return models.Outcome{Status: models.StatusPendingVerification, URL: contentURL, Reason: "reload failed"}
	}
	fresh, err := w.browser.PageSource(ctx)
	if err != nil {
		return models.Outcome{Status: models.StatusPendingVerification, URL: contentURL, Reason: "reload unavailable"}
	}

	identityOK := w.identity != "" && strings.Contains(fresh, w.identity)
	messageOK := strings.Contains(fresh, message)

	switch {
	case identityOK && messageOK:
		return models.Outcome{Status: models.StatusPosted, URL: contentURL}
	case identityOK || messageOK:
		return models.Outcome{Status: models.StatusPendingVerification, URL: contentURL}
	default:
		return models.Outcome{Status: models.StatusFailed, URL: contentURL, Reason: "message not found after submit"}
	}
}

// profileFromTask builds the template profile from row data for targets
// whose profile was not scraped this run.
func profileFromTask(task models.Task) models.Profile {
	p := models.Profile{Name: task.Name, City: task.City}
	if task.Mode == models.TargetModeNick {
		p.Nick = task.Target
	}
	p.Posts, _ = strconv.Atoi(task.Posts)
	p.Followers, _ = strconv.Atoi(task.Followers)
	return p
}

// skipReason maps precondition reasons onto the notes text the queues have
// always used.
func skipReason(reason string) string {
	switch reason {
	case "account suspended":
		return "Account suspended"
	case "no public posts":
		return "No posts"
	}
	return reason
}
