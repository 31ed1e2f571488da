package resolver

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ternarybob/mitto/internal/models"
)

var (
	textIDPattern  = regexp.MustCompile(`/comments/text/(\d+)`)
	imageIDPattern = regexp.MustCompile(`/comments/image/(\d+)`)
	replyFragment  = regexp.MustCompile(`/\d+/#reply$|/#reply$|#reply$`)
)

// Normalizer rewrites raw content links into their canonical form. Two raw
// representations of the same content item always normalize to byte-identical
// URLs, which makes canonical URLs safe as deduplication keys.
type Normalizer struct {
	base string
	host string
}

// NewNormalizer creates a normalizer rooted at the platform base URL.
func NewNormalizer(baseURL string) *Normalizer {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	host := ""
	if parsed, err := url.Parse(base); err == nil {
		host = parsed.Host
	}
	return &Normalizer{base: base, host: host}
}

// Canonicalize returns the canonical form of a raw content link. Comment
// URLs are rebuilt as <base>/comments/<kind>/<id> from the embedded numeric
// id; anything else has its query string, fragment and trailing slash
// stripped.
func (n *Normalizer) Canonicalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if m := textIDPattern.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("%s/comments/text/%s", n.base, m[1])
	}
	if m := imageIDPattern.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("%s/comments/image/%s", n.base, m[1])
	}

	raw = replyFragment.ReplaceAllString(raw, "")
	if parsed, err := url.Parse(raw); err == nil {
		parsed.RawQuery = ""
		parsed.Fragment = ""
		raw = parsed.String()
	}
	return strings.TrimRight(raw, "/")
}

// IsContentURL reports whether u points at a platform content page.
func (n *Normalizer) IsContentURL(u string) bool {
	if u == "" {
		return false
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host != n.host {
		return false
	}
	return strings.Contains(u, "/comments/text/") ||
		strings.Contains(u, "/comments/image/") ||
		strings.Contains(u, "/content/")
}

// KindOf classifies a content URL. Share links under /content/ resolve to
// image pages on the platform.
func (n *Normalizer) KindOf(u string) models.ContentKind {
	switch {
	case strings.Contains(u, "/comments/text/"):
		return models.ContentText
	case strings.Contains(u, "/comments/image/"), strings.Contains(u, "/content/"):
		return models.ContentImage
	default:
		return models.ContentAny
	}
}

// ContentURL builds the canonical content URL for a kind and numeric id.
func (n *Normalizer) ContentURL(kind models.ContentKind, id string) string {
	return fmt.Sprintf("%s/comments/%s/%s", n.base, kind, id)
}

// ProfileURL builds the profile page URL for a nickname.
func (n *Normalizer) ProfileURL(nick string) string {
	return fmt.Sprintf("%s/users/%s/", n.base, escapeNick(nick))
}

// InboxURL builds the direct conversation URL for a nickname.
func (n *Normalizer) InboxURL(nick string) string {
	return fmt.Sprintf("%s/inbox/%s/", n.base, escapeNick(nick))
}

// ListingURL builds the public content listing URL for a nickname.
func (n *Normalizer) ListingURL(nick string) string {
	return fmt.Sprintf("%s/profile/public/%s/", n.base, escapeNick(nick))
}

// Absolute resolves a possibly relative href against the platform base.
func (n *Normalizer) Absolute(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return n.base + href
}

// escapeNick path-escapes a nickname while preserving '+', which the
// platform uses verbatim in nicknames.
func escapeNick(nick string) string {
	escaped := url.PathEscape(strings.TrimSpace(nick))
	return strings.ReplaceAll(escaped, "%2B", "+")
}
