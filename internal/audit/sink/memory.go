package sink

import (
	"context"
	"sync"
)

// MemorySink records writes for pipeline tests.
type MemorySink struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemory() *MemorySink {
	return &MemorySink{objects: make(map[string][]byte)}
}

func (s *MemorySink) Write(_ context.Context, key string, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), line...)
	return nil
}

// Keys returns every written partition key.
func (s *MemorySink) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

// Get returns the object at key, or nil.
func (s *MemorySink) Get(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}
