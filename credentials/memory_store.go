package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps the credential in process memory, scoped to the lifetime
// of the session that created it. This mirrors browser session storage: the
// credential does not survive a restart.
type MemoryStore struct {
	credential string
	lock       sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.credential, nil
}

func (s *MemoryStore) Set(_ context.Context, credential string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.credential = credential
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.credential = ""
	return nil
}
