// Package memory provides an in-memory config.Store, intended for tests
// and for callers that never need options to survive a restart.
package memory

import (
	"context"
	"sync"

	"fluxstore/internal/config"
)

// Store is an in-memory config.Store implementation.
type Store struct {
	mu   sync.RWMutex
	opts *config.Options
}

var _ config.Store = (*Store)(nil)

// NewStore returns an empty in-memory Store.
func NewStore() *Store {
	return &Store{}
}

// Load returns the last saved options, or nil if Save has never been called.
func (s *Store) Load(ctx context.Context) (*config.Options, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.opts == nil {
		return nil, nil
	}
	saved := *s.opts
	return &saved, nil
}

// Save replaces the stored options.
func (s *Store) Save(ctx context.Context, opts config.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := opts
	s.opts = &saved
	return nil
}
