package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// scrollScript forces lazy content to load before the page is read.
const scrollScript = `window.scrollTo(0, document.body.scrollHeight)`

// PreconditionError aborts resolution before any listing page is visited:
// the target's profile rules out open content up front.
type PreconditionError struct {
	Nick   string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("target %s skipped: %s", e.Nick, e.Reason)
}

// ResolutionError reports that the open-content cascade exhausted the page
// cap without a validated URL.
type ResolutionError struct {
	Nick         string
	PagesScanned int
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no open content found for %s after %d pages", e.Nick, e.PagesScanned)
}

// InvalidTargetError reports a direct-URL target that does not normalize to
// a known content URL.
type InvalidTargetError struct {
	URL string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("not a content URL: %s", e.URL)
}

// Resolver turns a task's target into a canonical, verified content
// location.
type Resolver struct {
	browser     interfaces.Browser
	norm        *Normalizer
	cfg         common.ResolverConfig
	waitTimeout time.Duration
	logger      arbor.ILogger
}

// New creates a resolver bound to one browser instance.
func New(browser interfaces.Browser, norm *Normalizer, cfg common.ResolverConfig, waitTimeout time.Duration, logger arbor.ILogger) *Resolver {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Resolver{
		browser:     browser,
		norm:        norm,
		cfg:         cfg,
		waitTimeout: waitTimeout,
		logger:      logger,
	}
}

// Normalizer exposes the resolver's URL normalizer for result write-back.
func (r *Resolver) Normalizer() *Normalizer {
	return r.norm
}

// ResolveDirect normalizes an explicit target URL. It never touches the
// browser.
func (r *Resolver) ResolveDirect(raw string) (models.ResolvedLocation, error) {
	canonical := r.norm.Canonicalize(raw)
	if !r.norm.IsContentURL(canonical) {
		return models.ResolvedLocation{}, &InvalidTargetError{URL: raw}
	}
	return models.ResolvedLocation{URL: canonical, Kind: r.norm.KindOf(canonical)}, nil
}

// ResolveNick scrapes the target's profile, checks preconditions, then runs
// the open-content cascade. The scraped profile is returned even when
// resolution fails so callers can write it back to the queue.
func (r *Resolver) ResolveNick(ctx context.Context, nick string, kind models.ContentKind) (models.ResolvedLocation, *models.Profile, error) {
	profile, err := ScrapeProfile(ctx, r.browser, r.norm, nick, r.waitTimeout)
	if err != nil {
		return models.ResolvedLocation{}, nil, err
	}

	if profile.Status == models.ProfileSuspended {
		return models.ResolvedLocation{}, profile, &PreconditionError{Nick: nick, Reason: "account suspended"}
	}
	if profile.Posts == 0 {
		return models.ResolvedLocation{}, profile, &PreconditionError{Nick: nick, Reason: "no public posts"}
	}

	location, err := r.FindOpenContent(ctx, nick, kind)
	if err != nil {
		return models.ResolvedLocation{}, profile, err
	}
	return location, profile, nil
}

// FindOpenContent walks the target's listing pages looking for an open
// content item of the requested kind. On each page the strategies run
// strictly in order, precise to brute-force; the first validated URL wins.
// Pagination follows the rel=next link up to the page cap.
func (r *Resolver) FindOpenContent(ctx context.Context, nick string, kind models.ContentKind) (models.ResolvedLocation, error) {
	pageURL := r.norm.ListingURL(nick)
	scanned := 0

	for page := 1; page <= r.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return models.ResolvedLocation{}, err
		}

		if err := r.browser.Navigate(ctx, pageURL); err != nil {
			return models.ResolvedLocation{}, fmt.Errorf("listing navigation failed for %s: %w", nick, err)
		}
		_ = r.browser.Evaluate(ctx, scrollScript, nil)

		source, err := r.browser.PageSource(ctx)
		if err != nil {
			return models.ResolvedLocation{}, fmt.Errorf("listing source unavailable for %s: %w", nick, err)
		}
		pg, err := parseListing(source, pageURL, r.norm)
		if err != nil {
			return models.ResolvedLocation{}, err
		}
		scanned++

		r.logger.Debug().
			Str("nick", nick).
			Int("page", page).
			Int("items", pg.items.Length()).
			Msg("Scanning listing page")

		if href, ok := r.itemLinks(pg, kind); ok {
			return r.located(nick, "item-links", href), nil
		}
		if href, ok := r.pageWide(pg, kind); ok {
			return r.located(nick, "page-wide", href), nil
		}
		if href, ok, err := r.scriptHarvest(ctx, kind); err == nil && ok {
			return r.located(nick, "script-harvest", href), nil
		}
		if href, ok, err := r.idMining(ctx, pg, kind); err != nil {
			return models.ResolvedLocation{}, err
		} else if ok {
			return r.located(nick, "id-mining", href), nil
		}

		if pg.next == "" {
			break
		}
		pageURL = pg.next
	}

	return models.ResolvedLocation{}, &ResolutionError{Nick: nick, PagesScanned: scanned}
}

func (r *Resolver) located(nick, strategy, href string) models.ResolvedLocation {
	canonical := r.norm.Canonicalize(r.norm.Absolute(href))
	r.logger.Info().
		Str("nick", nick).
		Str("strategy", strategy).
		Str("url", canonical).
		Msg("Open content located")
	return models.ResolvedLocation{URL: canonical, Kind: r.norm.KindOf(canonical)}
}
