package interfaces

import "context"

// SessionProvider acquires an authenticated platform session for the run,
// reusing persisted cookies when they are still valid and falling back to a
// fresh login. The session lives in the browser; the provider only owns the
// opaque cookie blob persisted between runs.
type SessionProvider interface {
	EnsureAuthenticated(ctx context.Context) error
}
