// Package credentials owns the bearer credential for the current session.
// The credential is an opaque string issued by login, signup, or refresh; the
// store never inspects it.
package credentials

import "context"

// Store holds at most one credential. Implementations must treat Clear on an
// empty store as a no-op, not an error.
type Store interface {
	// Get returns the stored credential, or "" when none is held.
	Get(ctx context.Context) (string, error)

	// Set replaces the stored credential.
	Set(ctx context.Context, credential string) error

	// Clear removes the stored credential.
	Clear(ctx context.Context) error
}
