package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/mitto/internal/models"
)

func TestCanonicalizeTextURL(t *testing.T) {
	norm := NewNormalizer("https://site")

	variants := []string{
		"https://site/comments/text/123",
		"https://site/comments/text/123/",
		"https://site/comments/text/123/?x=1",
		"https://site/comments/text/123/?x=1#reply",
		"https://site/comments/text/123/456/#reply",
		"/comments/text/123",
	}
	for _, raw := range variants {
		assert.Equal(t, "https://site/comments/text/123", norm.Canonicalize(raw), "raw=%s", raw)
	}
}

func TestCanonicalizeImageURL(t *testing.T) {
	norm := NewNormalizer("https://site")
	assert.Equal(t, "https://site/comments/image/98765432", norm.Canonicalize("https://site/comments/image/98765432/?utm=x"))
}

func TestCanonicalizeRewritesForeignHost(t *testing.T) {
	// Comment URLs are rebuilt onto the configured base regardless of the
	// host they were scraped with.
	norm := NewNormalizer("https://site")
	assert.Equal(t, "https://site/comments/text/9", norm.Canonicalize("http://mirror.example/comments/text/9/"))
}

func TestCanonicalizeNonCommentURL(t *testing.T) {
	norm := NewNormalizer("https://site")

	assert.Equal(t, "https://site/content/555", norm.Canonicalize("https://site/content/555/?share=1#reply"))
	assert.Equal(t, "", norm.Canonicalize("  "))
}

func TestCanonicalizeIdempotent(t *testing.T) {
	norm := NewNormalizer("https://site")
	once := norm.Canonicalize("https://site/comments/text/123/?x=1#reply")
	assert.Equal(t, once, norm.Canonicalize(once))
}

func TestIsContentURL(t *testing.T) {
	norm := NewNormalizer("https://site")

	assert.True(t, norm.IsContentURL("https://site/comments/text/123"))
	assert.True(t, norm.IsContentURL("https://site/comments/image/123"))
	assert.True(t, norm.IsContentURL("https://site/content/123"))

	assert.False(t, norm.IsContentURL("https://site/users/ali/"))
	assert.False(t, norm.IsContentURL("https://elsewhere.example/comments/text/123"))
	assert.False(t, norm.IsContentURL(""))
}

func TestKindOf(t *testing.T) {
	norm := NewNormalizer("https://site")

	assert.Equal(t, models.ContentText, norm.KindOf("https://site/comments/text/1"))
	assert.Equal(t, models.ContentImage, norm.KindOf("https://site/comments/image/1"))
	assert.Equal(t, models.ContentImage, norm.KindOf("https://site/content/1"))
	assert.Equal(t, models.ContentAny, norm.KindOf("https://site/users/ali/"))
}

func TestNickURLEscaping(t *testing.T) {
	norm := NewNormalizer("https://site/")

	assert.Equal(t, "https://site/users/ali+baba/", norm.ProfileURL(" ali+baba "))
	assert.Equal(t, "https://site/inbox/ali+baba/", norm.InboxURL(" ali+baba "))
	assert.Equal(t, "https://site/profile/public/ali%20g/", norm.ListingURL("ali g"))
}

func TestAbsolute(t *testing.T) {
	norm := NewNormalizer("https://site")

	assert.Equal(t, "https://site/page/2", norm.Absolute("/page/2"))
	assert.Equal(t, "https://site/page/2", norm.Absolute("page/2"))
	assert.Equal(t, "https://other/x", norm.Absolute("https://other/x"))
	assert.Equal(t, "", norm.Absolute(""))
}
