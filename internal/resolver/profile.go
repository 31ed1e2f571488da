package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

var digits = regexp.MustCompile(`\d+`)

// ScrapeProfile loads a target's profile page and extracts its visible
// fields. Individual field extraction is best-effort: a missing field keeps
// its zero value and never aborts the scrape. Only a navigation or parse
// failure returns an error.
func ScrapeProfile(ctx context.Context, b interfaces.Browser, norm *Normalizer, nick string, wait time.Duration) (*models.Profile, error) {
	profileURL := norm.ProfileURL(nick)

	if err := b.Navigate(ctx, profileURL); err != nil {
		return nil, fmt.Errorf("profile navigation failed for %s: %w", nick, err)
	}
	if err := b.WaitVisible(ctx, "h1.cxl, h1", wait); err != nil {
		return nil, fmt.Errorf("profile page never rendered for %s: %w", nick, err)
	}

	source, err := b.PageSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("profile source unavailable for %s: %w", nick, err)
	}

	profile := &models.Profile{
		Nick:   nick,
		Name:   nick,
		Status: models.ProfileUnknown,
		URL:    profileURL,
	}

	lower := strings.ToLower(source)
	if strings.Contains(lower, "account suspended") {
		profile.Status = models.ProfileSuspended
		return profile, nil
	}
	if strings.Contains(lower, "background:tomato") {
		profile.Status = models.ProfileUnverified
	} else {
		profile.Status = models.ProfileVerified
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("profile parse failed for %s: %w", nick, err)
	}

	if name := strings.TrimSpace(doc.Find("h1.cxl").First().Text()); name != "" {
		profile.Name = name
	} else if name := strings.TrimSpace(doc.Find("h1").First().Text()); name != "" {
		profile.Name = name
	}

	profile.City = labelledValue(doc, "City:")
	profile.Gender = genderMark(labelledValue(doc, "Gender:"))

	if text := doc.Find("a[href*='/profile/public/'] button div:first-child").First().Text(); text != "" {
		if m := digits.FindString(text); m != "" {
			profile.Posts, _ = strconv.Atoi(m)
		}
	}
	if text := doc.Find("span.cl.sp.clb").First().Text(); text != "" {
		if m := digits.FindString(text); m != "" {
			profile.Followers, _ = strconv.Atoi(m)
		}
	}

	return profile, nil
}

// labelledValue finds a "<b>Label:</b> ... <span>value</span>" pair. Field
// labels sit in bold tags with the value in the next span sibling.
func labelledValue(doc *goquery.Document, label string) string {
	value := ""
	doc.Find("b").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), label) {
			return true
		}
		value = strings.TrimSpace(s.NextAllFiltered("span").First().Text())
		return false
	})
	return value
}

// genderMark maps the platform's gender strings onto the symbols the queue
// sheets historically used. Unrecognized values pass through unchanged.
func genderMark(value string) string {
	switch strings.ToLower(value) {
	case "female":
		return "\U0001F6BA"
	case "male":
		return "\U0001F6B9"
	default:
		return value
	}
}
