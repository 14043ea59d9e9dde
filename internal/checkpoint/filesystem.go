package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists one checkpoint per correlation id as a JSON file under
// baseDir, overwriting on every Save since only the latest checkpoint per
// run matters for resume.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
}

// NewFileStore creates a FileStore rooted at baseDir, creating it if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

var (
	_ Sink   = (*FileStore)(nil)
	_ Source = (*FileStore)(nil)
)

func (s *FileStore) path(correlationID string) string {
	return filepath.Join(s.baseDir, sanitizeFilename(correlationID)+".json")
}

// Save writes cp to its correlation id's file, overwriting any prior
// checkpoint for the same run.
func (s *FileStore) Save(ctx context.Context, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := s.path(cp.CorrelationID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, s.path(cp.CorrelationID))
}

// Load reads the checkpoint for correlationID, returning (nil, nil) if none
// exists.
func (s *FileStore) Load(ctx context.Context, correlationID string) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(correlationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

func sanitizeFilename(s string) string {
	replacer := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}
	b := []rune(s)
	for i, r := range b {
		b[i] = replacer(r)
	}
	return string(b)
}
