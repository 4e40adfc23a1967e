package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FSSink mirrors the object layout onto the local filesystem. Used for
// local runs and integration tests where S3 is not available.
type FSSink struct {
	root string
	mu   sync.Mutex
}

func NewFS(root string) *FSSink {
	return &FSSink{root: root}
}

func (s *FSSink) Write(_ context.Context, key string, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create partition dir: %w", err)
	}
	if err := os.WriteFile(path, line, 0o644); err != nil {
		return fmt.Errorf("write audit entry %s: %w", key, err)
	}
	return nil
}
