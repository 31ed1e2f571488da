package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/mitto/internal/models"
)

// harvestScript collects every anchor on the page that looks like a content
// or share link. Last resort before ID mining: it sees links that the
// structural queries miss because they sit outside recognizable items.
const harvestScript = `Array.from(document.querySelectorAll("a[href*='/comments/'], a[href*='/content/']")).map(a => a.href).filter(Boolean)`

// kindLinkSelectors returns the per-kind anchor selectors, text before image
// when both apply.
func kindLinkSelectors(kind models.ContentKind) []string {
	var selectors []string
	if kind == models.ContentText || kind == models.ContentAny {
		selectors = append(selectors, "a[href*='/comments/text/']")
	}
	if kind == models.ContentImage || kind == models.ContentAny {
		selectors = append(selectors, "a[href*='/comments/image/']")
	}
	return selectors
}

// matchesKind reports whether a raw link satisfies the requested kind
// filter. Share links under /content/ count as image content.
func matchesKind(href string, kind models.ContentKind) bool {
	switch kind {
	case models.ContentText:
		return strings.Contains(href, "/comments/text/")
	case models.ContentImage:
		return strings.Contains(href, "/comments/image/") || strings.Contains(href, "/content/")
	default:
		return strings.Contains(href, "/comments/text/") ||
			strings.Contains(href, "/comments/image/") ||
			strings.Contains(href, "/content/")
	}
}

// itemLinks walks the listing items looking for a kind-matching content
// anchor inside each one. When an item has no such anchor, the anchor
// wrapping its reply button is tried before moving on; template variants
// that omit direct content links still render that button.
func (r *Resolver) itemLinks(pg *listingPage, kind models.ContentKind) (string, bool) {
	selectors := kindLinkSelectors(kind)

	found := ""
	pg.items.EachWithBreak(func(_ int, item *goquery.Selection) bool {
		for _, sel := range selectors {
			if href, ok := item.Find(sel).First().Attr("href"); ok && href != "" {
				found = href
				return false
			}
		}
		if href, ok := item.Find("button[itemprop='discussionUrl']").First().Closest("a").Attr("href"); ok && href != "" {
			found = href
			return false
		}
		return true
	})
	return found, found != ""
}

// pageWide queries the whole document at once, a broader net than the
// per-item pass for markup where anchors sit outside item containers.
func (r *Resolver) pageWide(pg *listingPage, kind models.ContentKind) (string, bool) {
	selectors := kindLinkSelectors(kind)
	if kind != models.ContentText {
		selectors = append(selectors, "a[href*='/content/']")
	}

	for _, sel := range selectors {
		if href, ok := pg.doc.Find(sel).First().Attr("href"); ok && href != "" {
			return href, true
		}
	}
	return "", false
}

// scriptHarvest asks the live page for every content-looking href. This
// catches anchors injected after render that the static source misses.
func (r *Resolver) scriptHarvest(ctx context.Context, kind models.ContentKind) (string, bool, error) {
	var hrefs []string
	if err := r.browser.Evaluate(ctx, harvestScript, &hrefs); err != nil {
		return "", false, err
	}
	for _, href := range hrefs {
		if matchesKind(href, kind) {
			return href, true, nil
		}
	}
	return "", false, nil
}

// mineCandidates extracts plausible content ids from the raw markup of each
// listing item. Digit runs outside the configured length window are
// discarded, as are values outside the configured numeric range; short runs
// are usually user ids and very large values are never content ids.
func (r *Resolver) mineCandidates(pg *listingPage) []string {
	pattern := regexp.MustCompile(fmt.Sprintf(`\b\d{%d,%d}\b`, r.cfg.MinIDDigits, r.cfg.MaxIDDigits))

	var candidates []string
	seen := make(map[string]bool)

	pg.items.Each(func(_ int, item *goquery.Selection) {
		outer, err := goquery.OuterHtml(item)
		if err != nil {
			return
		}
		for _, run := range pattern.FindAllString(outer, -1) {
			value, err := strconv.ParseInt(run, 10, 64)
			if err != nil {
				continue
			}
			if value < r.cfg.MinIDValue || value >= r.cfg.MaxIDValue {
				continue
			}
			if !seen[run] {
				seen[run] = true
				candidates = append(candidates, run)
			}
		}
	})

	if len(candidates) > r.cfg.ProbeLimit {
		candidates = candidates[:r.cfg.ProbeLimit]
	}
	return candidates
}

// idMining probes constructed content URLs for each mined candidate id.
// A probe is accepted only when the page is not an error page and carries a
// usable response form, which proves the id resolves to open content.
func (r *Resolver) idMining(ctx context.Context, pg *listingPage, kind models.ContentKind) (string, bool, error) {
	candidates := r.mineCandidates(pg)
	if len(candidates) == 0 {
		return "", false, nil
	}

	var kinds []models.ContentKind
	switch kind {
	case models.ContentText:
		kinds = []models.ContentKind{models.ContentText}
	case models.ContentImage:
		kinds = []models.ContentKind{models.ContentImage}
	default:
		kinds = []models.ContentKind{models.ContentText, models.ContentImage}
	}

	for _, id := range candidates {
		for _, k := range kinds {
			if err := ctx.Err(); err != nil {
				return "", false, err
			}

			probeURL := r.norm.ContentURL(k, id)
			ok, err := r.probe(ctx, probeURL)
			if err != nil {
				r.logger.Debug().Str("url", probeURL).Err(err).Msg("Probe failed")
				continue
			}
			if ok {
				current, err := r.browser.CurrentURL(ctx)
				if err != nil || current == "" {
					current = probeURL
				}
				return current, true, nil
			}
		}
	}
	return "", false, nil
}

// probe loads a candidate content URL and checks it for a live response
// form.
func (r *Resolver) probe(ctx context.Context, probeURL string) (bool, error) {
	if err := r.browser.Navigate(ctx, probeURL); err != nil {
		return false, err
	}
	source, err := r.browser.PageSource(ctx)
	if err != nil {
		return false, err
	}

	lower := strings.ToLower(source)
	if strings.Contains(lower, "404") || strings.Contains(lower, "page not found") {
		return false, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return false, err
	}

	usable := false
	doc.Find("form[action*='direct-response/send']").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		if form.Find("textarea[name='direct_response']").Length() > 0 {
			usable = true
			return false
		}
		return true
	})
	return usable, nil
}
