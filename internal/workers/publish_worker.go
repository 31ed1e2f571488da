package workers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/media"
	"github.com/ternarybob/mitto/internal/models"
	"github.com/ternarybob/mitto/internal/queue"
	"github.com/ternarybob/mitto/internal/resolver"
)

// Composer form field selectors. The markup differs between template
// variants, so each selector lists the known alternatives.
const (
	titleFieldSelector   = "input[name='title'], #id_title, input[name='heading']"
	contentFieldSelector = "textarea[name='text'], #id_text, textarea[name='content'], #id_content"
	tagsFieldSelector    = "input[name='tags'], #id_tags"
	fileInputSelector    = "input[type='file'], input[name='file'], input[name='image']"
	composerSubmitSel    = "button[type='submit'], input[type='submit'], button.btn-primary"
)

// composerFormScript finds a usable submission form structurally: a submit
// control plus either a text area or a file input. Composer markup varies by
// content kind, so no fixed form selector works for both.
const composerFormScript = `(() => {
	const forms = Array.from(document.querySelectorAll("form"));
	return forms.some(f =>
		f.querySelector("button[type='submit'], input[type='submit']") !== null &&
		(f.querySelector("textarea") !== null || f.querySelector("input[type='file']") !== null));
})()`

var contentIDScan = regexp.MustCompile(`/comments/(text|image)/\d+`)

// PublishWorker drives the publish queue: compose a text or image post and
// resolve the resulting content URL.
type PublishWorker struct {
	browser    interfaces.Browser
	norm       *resolver.Normalizer
	downloader *media.Downloader
	loader     *queue.Loader
	writer     *queue.ResultWriter
	cfg        *common.Config
	logger     arbor.ILogger
}

// NewPublishWorker creates a publish worker.
func NewPublishWorker(b interfaces.Browser, norm *resolver.Normalizer, dl *media.Downloader, loader *queue.Loader, writer *queue.ResultWriter, cfg *common.Config, logger arbor.ILogger) *PublishWorker {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &PublishWorker{
		browser:    b,
		norm:       norm,
		downloader: dl,
		loader:     loader,
		writer:     writer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run processes the publish queue sequentially.
func (w *PublishWorker) Run(ctx context.Context) (Summary, error) {
	tasks, _, err := w.loader.LoadPublishTasks(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("publish queue load failed: %w", err)
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
			Str("kind", string(task.Kind)).
			Str("title", task.Title).
			Msg("Processing publish task")

		outcome := retryDenied(ctx, w.cfg.Retry, w.logger, func(c context.Context) models.Outcome {
			return w.publish(c, task)
		})
		summary.Processed++

		writeCtx := context.WithoutCancel(ctx)
		if err := w.writer.WritePublishResult(writeCtx, task, outcome, task.Attempts+1); err != nil {
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
		Msg("Publish run finished")

	return summary, nil
}

// publish composes and submits one post.
func (w *PublishWorker) publish(ctx context.Context, task models.PublishTask) models.Outcome {
	composer := w.composerURL(task.Kind)

	var localImage string
	if task.Kind == models.ContentImage {
		path, cleanup, err := w.downloader.Resolve(ctx, task.ImagePath)
		defer cleanup()
		if err != nil {
			if errors.Is(err, media.ErrFileNotFound) {
				return models.Outcome{Status: models.StatusFileNotFound, Reason: task.ImagePath}
			}
			return models.Outcome{Status: models.StatusDownloadFailed, Reason: err.Error()}
		}
		localImage = path
	}

	if err := w.browser.Navigate(ctx, composer); err != nil {
		return models.Failed("composer navigation failed")
	}

	var usable bool
	if err := w.browser.Evaluate(ctx, composerFormScript, &usable); err != nil || !usable {
		return models.Outcome{Status: models.StatusFormError, Reason: "no usable composer form"}
	}

	if localImage != "" {
		if err := w.browser.UploadFile(ctx, fileInputSelector, localImage); err != nil {
			return models.Outcome{Status: models.StatusFormError, Reason: "file upload failed"}
		}
	}

	repeat := w.cfg.Publish.RepeatCharLimit
	if title := media.SanitizeField(task.Title, repeat, w.cfg.Publish.MaxCaptionLength); title != "" {
		if err := w.browser.SendKeys(ctx, titleFieldSelector, title); err != nil {
			w.logger.Debug().Err(err).Msg("Title field not found")
		}
	}
	if task.Kind == models.ContentText {
		content := media.CollapseRepeats(strings.TrimSpace(task.Content), repeat)
		if err := w.browser.SendKeys(ctx, contentFieldSelector, content); err != nil {
			return models.Outcome{Status: models.StatusFormError, Reason: "content field not found"}
		}
	}
	if tags := media.SanitizeField(task.Tags, repeat, w.cfg.Publish.MaxTagsLength); tags != "" {
		if err := w.browser.SendKeys(ctx, tagsFieldSelector, tags); err != nil {
			w.logger.Debug().Err(err).Msg("Tags field not found")
		}
	}

	if err := w.browser.Click(ctx, composerSubmitSel); err != nil {
		return models.Outcome{Status: models.StatusFormError, Reason: "submit failed"}
	}

	return w.classify(ctx, task.Kind)
}

// classify inspects where the submission ended up. Still sitting on the
// composer, seeing a denial marker or landing on the login wall all mean the
// platform refused the post.
func (w *PublishWorker) classify(ctx context.Context, kind models.ContentKind) models.Outcome {
	current, err := w.browser.CurrentURL(ctx)
	if err != nil {
		return models.Outcome{Status: models.StatusPendingVerification, Reason: "location unavailable"}
	}

	lcur := strings.ToLower(current)
	switch {
	case strings.Contains(lcur, "/share/"):
		return models.Outcome{Status: models.StatusDenied, URL: current, Reason: "still on composer page"}
	case strings.Contains(lcur, "login") || strings.Contains(lcur, "signup"):
		return models.Outcome{Status: models.StatusDenied, URL: current, Reason: "redirected to login"}
	}

	source, _ := w.browser.PageSource(ctx)
	if strings.Contains(strings.ToLower(source), "denied") {
		return models.Outcome{Status: models.StatusDenied, URL: current, Reason: "denial marker on page"}
	}

	if resultURL := w.resultURL(current, source, kind); resultURL != "" {
		return models.Outcome{Status: models.StatusPosted, URL: resultURL}
	}
	return models.Outcome{Status: models.StatusPendingVerification, URL: w.norm.Canonicalize(current)}
}

// resultURL resolves the canonical URL of the created post: current
// location first, then the canonical link tag, the open-graph URL, any
// on-page content anchor, and finally a raw scan of the markup.
func (w *PublishWorker) resultURL(current, source string, kind models.ContentKind) string {
	if url := w.acceptURL(current, kind); url != "" {
		return url
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err == nil {
		if href, ok := doc.Find("link[rel='canonical']").First().Attr("href"); ok {
			if url := w.acceptURL(href, kind); url != "" {
				return url
			}
		}
		if content, ok := doc.Find("meta[property='og:url']").First().Attr("content"); ok {
			if url := w.acceptURL(content, kind); url != "" {
				return url
			}
		}

		found := ""
		doc.Find("a[href*='/comments/'], a[href*='/content/']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if href, ok := s.Attr("href"); ok {
				if url := w.acceptURL(href, kind); url != "" {
					found = url
					return false
				}
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	if m := contentIDScan.FindString(source); m != "" {
		return w.acceptURL(m, kind)
	}
	return ""
}

// acceptURL canonicalizes a candidate and keeps it only when it is a content
// URL of the requested kind.
func (w *PublishWorker) acceptURL(raw string, kind models.ContentKind) string {
	canonical := w.norm.Canonicalize(w.norm.Absolute(raw))
	if !w.norm.IsContentURL(canonical) {
		return ""
	}
	if kind != models.ContentAny && w.norm.KindOf(canonical) != kind {
		return ""
	}
	return canonical
}

func (w *PublishWorker) composerURL(kind models.ContentKind) string {
	if kind == models.ContentImage {
		return w.cfg.Platform.BaseURL + "/share/photo/upload/"
	}
	return w.cfg.Platform.BaseURL + "/share/text/"
}
