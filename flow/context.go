package flow

import (
	"github.com/jrsteele09/go-stickies/credentials"
	"github.com/jrsteele09/go-stickies/events"
	"github.com/pkg/errors"
)

// SessionContext carries the session-scoped collaborators that used to live
// in module-level singletons. One is created at application start and torn
// down at logout; nothing auth-related is reachable outside it.
type SessionContext struct {
	Credentials credentials.Store
	Profiles    credentials.ProfileStore
	Events      events.Publisher
}

// NewSessionContext creates a session context. Events may be nil when no
// subscriber cares about auth notifications.
func NewSessionContext(store credentials.Store, profiles credentials.ProfileStore, publisher events.Publisher) (*SessionContext, error) {
	if store == nil {
		return nil, errors.New("[NewSessionContext] credential store is required")
	}
	if profiles == nil {
		return nil, errors.New("[NewSessionContext] profile store is required")
	}
	return &SessionContext{
		Credentials: store,
		Profiles:    profiles,
		Events:      publisher,
	}, nil
}

// Teardown clears everything the context owns.
func (sc *SessionContext) Teardown() {
	sc.Profiles.ClearProfile()
}
