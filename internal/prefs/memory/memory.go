package memory

import (
	"context"
	"sync"

	"github.com/websync-digital/sunlit-blue-spark/internal/prefs"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

// Store implements prefs.Store in process memory.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]map[string]string
}

// New creates an empty store.
func New() *Store {
	return &Store{profiles: make(map[string]map[string]string)}
}

var _ prefs.Store = (*Store)(nil)

func (s *Store) Get(_ context.Context, profile, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.profiles[profile][key]
	if !ok {
		return "", apperrors.NotFound("preference", key)
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, profile, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.profiles[profile]
	if !ok {
		values = make(map[string]string)
		s.profiles[profile] = values
	}
	values[key] = value
	return nil
}

func (s *Store) Clear(_ context.Context, profile, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.profiles[profile], key)
	if len(s.profiles[profile]) == 0 {
		delete(s.profiles, profile)
	}
	return nil
}
