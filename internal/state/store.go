package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrPersist marks a failed durable write. The in-memory config is rolled
// back to the last committed value, so readers never observe the failed
// mutation.
var ErrPersist = errors.New("state: persist failed")

// Store owns the durable bot config. All writes go through Mutate; there is
// no other write path.
type Store struct {
	path string

	mu  sync.RWMutex
	cur Config
}

// Load reads the config file at path, or initializes it with defaults and
// persists immediately when it does not exist yet.
func Load(path string) (*Store, error) {
	s := &Store{path: path, cur: defaultConfig()}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := s.persist(s.cur); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &s.cur); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", path, err)
	}
	if s.cur.PostedBans == nil {
		s.cur.PostedBans = []string{}
	}
	if s.cur.ServiceName == "" {
		s.cur.ServiceName = DefaultServiceName
	}
	return s, nil
}

// Get returns a copy of the latest committed config.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.clone()
}

// Mutate applies fn to a copy of the current config, persists the result,
// and commits it. Mutations are serialized; on persist failure the previous
// committed value stays in place and ErrPersist is returned.
func (s *Store) Mutate(fn func(*Config)) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur.clone()
	fn(&next)

	if err := s.persist(next); err != nil {
		return s.cur.clone(), err
	}
	s.cur = next
	return next.clone(), nil
}

// persist rewrites the state file atomically (temp file + rename) so a
// crash never leaves a truncated file behind.
func (s *Store) persist(c Config) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersist, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrPersist, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("%w: write temp: %v", ErrPersist, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync temp: %v", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp: %v", ErrPersist, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrPersist, err)
	}
	return nil
}
