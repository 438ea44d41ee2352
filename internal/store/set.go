package store

import "sync"

// addressSet records which names have been written in a run.
type addressSet struct {
	items map[string]struct{}
	mu    sync.Mutex
}

func newAddressSet() *addressSet {
	return &addressSet{items: make(map[string]struct{})}
}

// Add inserts key and reports whether it was absent.
func (s *addressSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; ok {
		return false
	}
	s.items[key] = struct{}{}
	return true
}

func (s *addressSet) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	return ok
}

func (s *addressSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
