package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mitto/internal/browser"
	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/httpclient"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/media"
	"github.com/ternarybob/mitto/internal/queue"
	"github.com/ternarybob/mitto/internal/resolver"
	"github.com/ternarybob/mitto/internal/storage"
	badgerstore "github.com/ternarybob/mitto/internal/storage/badger"
	"github.com/ternarybob/mitto/internal/workers"
)

// Mode selects which queue a run drains.
type Mode string

const (
	ModeMessage Mode = "message"
	ModePublish Mode = "publish"
	ModeInbox   Mode = "inbox"
)

// ParseMode resolves a mode flag value.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeMessage:
		return ModeMessage, nil
	case ModePublish:
		return ModePublish, nil
	case ModeInbox:
		return ModeInbox, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want message, publish or inbox)", value)
	}
}

// App owns the application components: the queue store, the browser and the
// session on top of it. One App drives exactly one browser and one store
// client; runs are strictly sequential.
type App struct {
	Config  *common.Config
	Logger  arbor.ILogger
	Store   interfaces.RowStore
	Chrome  *browser.Chrome
	Session *browser.Session

	db   *badgerstore.BadgerDB
	norm *resolver.Normalizer
}

// New initializes all application components in dependency order.
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	if logger == nil {
		logger = common.GetLogger()
	}

	db, err := badgerstore.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue store: %w", err)
	}

	store := storage.WithRetry(
		badgerstore.NewRowStore(db, logger),
		config.Retry.StoreRetries,
		time.Second,
		logger,
	)

	chrome, err := browser.NewChrome(ctx, &config.Browser, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	session := browser.NewSession(chrome, &config.Platform, config.Browser.WaitTimeout, logger)

	logger.Info().
		Str("base_url", config.Platform.BaseURL).
		Str("badger_path", config.Storage.Badger.Path).
		Bool("headless", config.Browser.Headless).
		Msg("Application initialized")

	return &App{
		Config:  config,
		Logger:  logger,
		Store:   store,
		Chrome:  chrome,
		Session: session,
		db:      db,
		norm:    resolver.NewNormalizer(config.Platform.BaseURL),
	}, nil
}

// Run authenticates the session and drains the queue selected by mode.
func (a *App) Run(ctx context.Context, mode Mode) (workers.Summary, error) {
	if err := a.Session.EnsureAuthenticated(ctx); err != nil {
		return workers.Summary{}, fmt.Errorf("authentication failed: %w", err)
	}

	loader := queue.NewLoader(a.Store, a.Config.Run, a.Config.Retry, a.Logger)
	writer := queue.NewResultWriter(a.Store, a.Config.Retry, a.Logger)

	runID := common.NewRunID()
	a.Logger.Info().Str("run_id", runID).Str("mode", string(mode)).Msg("Run starting")

	var (
		summary workers.Summary
		err     error
	)
	switch mode {
	case ModeMessage:
		res := resolver.New(a.Chrome, a.norm, a.Config.Resolver, a.Config.Browser.WaitTimeout, a.Logger)
		summary, err = workers.NewMessageWorker(a.Chrome, res, loader, writer, a.Config, a.Logger).Run(ctx)
	case ModePublish:
		dl := media.NewDownloader(a.Config.Publish, a.Logger)
		// Downloads share the browser's session so sources behind the
		// platform's own authentication resolve.
		if cookies, cerr := a.Session.HTTPCookies(ctx); cerr == nil && len(cookies) > 0 {
			if client, cerr := httpclient.NewHTTPClientWithCookies(a.Config.Platform.BaseURL, cookies, a.Config.Publish.DownloadTimeout); cerr == nil {
				dl = media.NewDownloaderWithClient(a.Config.Publish, client, a.Logger)
			}
		}
		summary, err = workers.NewPublishWorker(a.Chrome, a.norm, dl, loader, writer, a.Config, a.Logger).Run(ctx)
	case ModeInbox:
		summary, err = workers.NewInboxWorker(a.Chrome, a.norm, a.Store, loader, writer, a.Config, a.Logger).Run(ctx)
	default:
		return workers.Summary{}, fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return summary, err
	}

	a.Logger.Info().
		Str("run_id", runID).
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Msg("Run finished")
	return summary, nil
}

// RunScheduled re-runs the selected mode on the configured cron schedule
// until the context is cancelled. Runs are single-flight: a tick that lands
// while the previous run is still active is skipped.
func (a *App) RunScheduled(ctx context.Context, mode Mode) error {
	schedule := a.Config.Run.Schedule
	if schedule == "" {
		return fmt.Errorf("no schedule configured")
	}

	var running sync.Mutex
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if !running.TryLock() {
			a.Logger.Warn().Str("mode", string(mode)).Msg("Previous run still active, skipping tick")
			return
		}
		defer running.Unlock()

		if _, err := a.Run(ctx, mode); err != nil {
			a.Logger.Error().Str("mode", string(mode)).Err(err).Msg("Scheduled run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	a.Logger.Info().Str("schedule", schedule).Str("mode", string(mode)).Msg("Scheduler started")
	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	// Let an in-flight run write its pending results before shutdown.
	<-stopCtx.Done()
	a.Logger.Info().Msg("Scheduler stopped")
	return nil
}

// Close releases the browser and the queue store.
func (a *App) Close() {
	if a.Chrome != nil {
		a.Chrome.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Queue store close failed")
		}
	}
}
