package setstore

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// SetStore holds named sets of strings: the moderation vocabularies
// (toxic terms, protected terms, informal slang, sentiment lexicons).
type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
}

type MemSetStore struct {
	mu   sync.RWMutex
	sets map[string]map[string]bool
}

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		sets: make(map[string]map[string]bool),
	}
}

func (s *MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[name]
	if !ok {
		// NOTE: returns false when the entire set isn't found
		return false, nil
	}
	_, ok = set[val]
	return ok, nil
}

// AddSet replaces the named set with the given values.
func (s *MemSetStore) AddSet(name string, vals []string) {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	s.mu.Lock()
	s.sets[name] = m
	s.mu.Unlock()
}

func (s *MemSetStore) LoadFromFileJSON(p string) error {

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var vocab map[string][]string
	if err := json.Unmarshal(raw, &vocab); err != nil {
		return err
	}

	for name, l := range vocab {
		s.AddSet(name, l)
	}
	return nil
}
