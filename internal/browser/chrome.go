// Package browser implements the automation surface on chromedp.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/interfaces"
)

// Chrome drives a single headless Chrome instance through chromedp. One
// instance is created per run and owned exclusively by it.
type Chrome struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	pageTimeout   time.Duration
	logger        arbor.ILogger
}

var _ interfaces.Browser = (*Chrome)(nil)

// NewChrome starts a Chrome instance configured for automation against the
// platform. The navigator.webdriver scrub keeps the rendered pages on the
// same template variants a plain browser gets.
func NewChrome(ctx context.Context, cfg *common.BrowserConfig, logger arbor.ILogger) (*Chrome, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser process eagerly so a broken Chrome install fails the
	// run here instead of on the first task.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if err := chromedp.Run(browserCtx,
		chromedp.Evaluate(`Object.defineProperty(navigator,'webdriver',{get:()=>undefined}); true`, nil),
	); err != nil {
		logger.Warn().Err(err).Msg("Failed to scrub navigator.webdriver")
	}

	logger.Debug().Bool("headless", cfg.Headless).Msg("Browser started")

	return &Chrome{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		pageTimeout:   cfg.PageTimeout,
		logger:        logger,
	}, nil
}

// Navigate loads url and waits for the document to be ready, bounded by the
// configured page timeout.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := c.bounded(ctx, c.pageTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	runCtx, cancel := c.bounded(ctx, c.pageTimeout)
	defer cancel()

	var location string
	if err := chromedp.Run(runCtx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read current location: %w", err)
	}
	return location, nil
}

func (c *Chrome) PageSource(ctx context.Context) (string, error) {
	runCtx, cancel := c.bounded(ctx, c.pageTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("failed to read page source: %w", err)
	}
	return html, nil
}

func (c *Chrome) Evaluate(ctx context.Context, script string, out interface{}) error {
	runCtx, cancel := c.bounded(ctx, c.pageTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

func (c *Chrome) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	runCtx, cancel := c.bounded(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q failed: %w", selector, err)
	}
	return nil
}

func (c *Chrome) SendKeys(ctx context.Context, selector, text string) error {
	runCtx, cancel := c.bounded(ctx, c.pageTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("typing into %q failed: %w", selector, err)
	}
	return nil
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	runCtx, cancel := c.bounded(ctx, c.pageTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

func (c *Chrome) UploadFile(ctx context.Context, selector, path string) error {
	runCtx, cancel := c.bounded(ctx, c.pageTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.SetUploadFiles(selector, []string{path}, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("file upload via %q failed: %w", selector, err)
	}
	return nil
}

// Close shuts the browser down.
func (c *Chrome) Close() {
	c.browserCancel()
	c.allocCancel()
	c.logger.Debug().Msg("Browser closed")
}

// bounded derives a run context from the caller's context so that both an
// external interrupt and the per-operation timeout cancel the operation. The
// chromedp context is the parent for target routing.
func (c *Chrome) bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(c.browserCtx, timeout)

	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
