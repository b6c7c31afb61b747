package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Store holds the live TrackerConfig. Readers take an immutable snapshot
// once per tick; writers swap in a whole new value between ticks.
type Store struct {
	cur      atomic.Pointer[TrackerConfig]
	defaults TrackerConfig

	mu        sync.Mutex // serialises writers and listener registration
	listeners []func(old, updated TrackerConfig)
}

// NewStore returns a Store holding initial. Reset restores initial.
func NewStore(initial TrackerConfig) *Store {
	s := &Store{defaults: initial}
	cfg := initial
	s.cur.Store(&cfg)
	return s
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() TrackerConfig {
	return *s.cur.Load()
}

// OnChange registers fn to run after every successful replacement.
func (s *Store) OnChange(fn func(old, updated TrackerConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Replace installs cfg as-is.
func (s *Store) Replace(cfg TrackerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swapLocked(cfg)
}

// Update applies fn to a copy of the current configuration and installs
// the result.
func (s *Store) Update(fn func(*TrackerConfig)) TrackerConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := *s.cur.Load()
	fn(&cfg)
	s.swapLocked(cfg)
	return cfg
}

// Reset restores the configuration the Store was created with.
func (s *Store) Reset() {
	s.Replace(s.defaults)
}

// Reload replaces the configuration with the contents of path. The
// current configuration is kept if the file is missing or invalid.
func (s *Store) Reload(path string) (TrackerConfig, error) {
	cfg, err := LoadTrackerConfig(path)
	if err != nil {
		return TrackerConfig{}, fmt.Errorf("failed to reload config: %w", err)
	}
	s.Replace(cfg)
	return cfg, nil
}

// Save writes the current configuration to path.
func (s *Store) Save(path string) error {
	return SaveTrackerConfig(path, s.Snapshot())
}

func (s *Store) swapLocked(cfg TrackerConfig) {
	old := *s.cur.Load()
	next := cfg
	s.cur.Store(&next)
	for _, fn := range s.listeners {
		fn(old, next)
	}
}
