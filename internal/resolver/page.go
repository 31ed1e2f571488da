package resolver

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// listingItemSelector matches the post containers across the platform's
// template variants. Older templates use article.mbl, newer ones plain
// articles or classed divs.
const listingItemSelector = "article.mbl, article, div[class*='post'], div[class*='content']"

// listingPage is one parsed profile-listing page.
type listingPage struct {
	url   string
	doc   *goquery.Document
	items *goquery.Selection
	next  string
}

// parseListing parses a listing page's markup. The next-page URL is resolved
// to absolute form when a rel=next link is present, otherwise left empty.
func parseListing(source, pageURL string, norm *Normalizer) (*listingPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("listing parse failed for %s: %w", pageURL, err)
	}

	page := &listingPage{
		url:   pageURL,
		doc:   doc,
		items: doc.Find(listingItemSelector),
	}
	if href, ok := doc.Find("a[rel='next']").First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		page.next = norm.Absolute(href)
	}
	return page, nil
}
