package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/mitto/internal/interfaces"
)

// Fake is an in-memory Browser backed by a url -> markup map. It records
// every interaction so tests can assert on navigation order, typed text and
// clicks, and exposes hooks to mutate the scripted pages mid-flow (e.g. after
// a submit).
type Fake struct {
	// Pages maps a URL to the markup served for it.
	Pages map[string]string

	// Current is the URL the fake is "on".
	Current string

	// Redirects maps a navigated URL to the location the fake ends up on,
	// simulating server-side redirects (login walls, post-submit jumps).
	Redirects map[string]string

	// EvalResults maps a script to its result, encoded as the Go value the
	// caller's out pointer expects.
	EvalResults map[string]interface{}

	// Hooks, all optional.
	OnNavigate func(url string)
	OnClick    func(selector string)

	// Recorded interactions.
	Navigations []string
	Typed       []TypedText
	Clicks      []string
	Uploads     []Upload
}

// TypedText is one recorded SendKeys call.
type TypedText struct {
	Selector string
	Text     string
}

// Upload is one recorded UploadFile call.
type Upload struct {
	Selector string
	Path     string
}

var _ interfaces.Browser = (*Fake)(nil)

// NewFake creates a fake browser with no pages.
func NewFake() *Fake {
	return &Fake{
		Pages:       make(map[string]string),
		Redirects:   make(map[string]string),
		EvalResults: make(map[string]interface{}),
	}
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.Navigations = append(f.Navigations, url)

	f.Current = url
	if target, ok := f.Redirects[url]; ok {
		f.Current = target
	}
	if f.OnNavigate != nil {
		f.OnNavigate(url)
	}
	return nil
}

func (f *Fake) CurrentURL(ctx context.Context) (string, error) {
	return f.Current, nil
}

func (f *Fake) PageSource(ctx context.Context) (string, error) {
	html, ok := f.Pages[f.Current]
	if !ok {
		return "", fmt.Errorf("no page scripted for %q", f.Current)
	}
	return html, nil
}

func (f *Fake) Evaluate(ctx context.Context, script string, out interface{}) error {
	result, ok := f.EvalResults[script]
	if !ok {
		return nil
	}
	switch target := out.(type) {
	case *[]string:
		if v, ok := result.([]string); ok {
			*target = v
			return nil
		}
	case *string:
		if v, ok := result.(string); ok {
			*target = v
			return nil
		}
	case *bool:
		if v, ok := result.(bool); ok {
			*target = v
			return nil
		}
	case nil:
		return nil
	}
	return fmt.Errorf("unsupported eval result type for script %q", script)
}

func (f *Fake) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}

func (f *Fake) SendKeys(ctx context.Context, selector, text string) error {
	f.Typed = append(f.Typed, TypedText{Selector: selector, Text: text})
	return nil
}

func (f *Fake) Click(ctx context.Context, selector string) error {
	f.Clicks = append(f.Clicks, selector)
	if f.OnClick != nil {
		f.OnClick(selector)
	}
	return nil
}

func (f *Fake) UploadFile(ctx context.Context, selector, path string) error {
	f.Uploads = append(f.Uploads, Upload{Selector: selector, Path: path})
	return nil
}
