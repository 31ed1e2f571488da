package interfaces

import (
	"context"
	"time"
)

// Browser is the automation surface against the rendered platform. There is
// exactly one instance per run and it is never shared concurrently. Every
// blocking operation takes a context and every wait carries a timeout; a wait
// that expires returns an error rather than hanging.
type Browser interface {
	// Navigate loads url and waits for the page to be ready.
	Navigate(ctx context.Context, url string) error

	// CurrentURL returns the browser's current location.
	CurrentURL(ctx context.Context) (string, error)

	// PageSource returns the raw markup of the current page.
	PageSource(ctx context.Context) (string, error)

	// Evaluate runs a script on the current page and unmarshals its result
	// into out. Pass nil when the result is not needed.
	Evaluate(ctx context.Context, script string, out interface{}) error

	// WaitVisible polls until the selector matches a visible element or the
	// timeout expires.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// SendKeys clears the matched element and types text into it.
	SendKeys(ctx context.Context, selector, text string) error

	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error

	// UploadFile attaches a local file to a file input.
	UploadFile(ctx context.Context, selector, path string) error
}
