package credentials

import "sync"

// Profile is the minimal user data kept client-side for display after a
// successful login or signup. It never includes the password: callers scrub
// it before handing the profile over.
type Profile struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// ProfileStore persists the active user profile for the session.
type ProfileStore interface {
	GetProfile() (Profile, bool)
	SetProfile(Profile)
	ClearProfile()
}

// MemoryProfileStore is the in-memory ProfileStore used by default.
type MemoryProfileStore struct {
	profile Profile
	present bool
	lock    sync.RWMutex
}

var _ ProfileStore = (*MemoryProfileStore)(nil)

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{}
}

func (s *MemoryProfileStore) GetProfile() (Profile, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.profile, s.present
}

func (s *MemoryProfileStore) SetProfile(p Profile) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.profile = p
	s.present = true
}

func (s *MemoryProfileStore) ClearProfile() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.profile = Profile{}
	s.present = false
}
