package slot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileStore keeps every key in one JSON document on disk. Writes go to a
// temporary file that is renamed over the document.
type FileStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileStore creates a FileStore at path, creating its directory.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file slot path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create slot directory: %w", err)
	}
	return &FileStore{path: path, logger: logger}, nil
}

// readAll loads the document. A missing file is an empty document.
func (s *FileStore) readAll() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read slot file %s: %w", s.path, err)
	}
	doc := map[string]json.RawMessage{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse slot file %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) writeAll(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode slot file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".slot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp slot file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp slot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp slot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace slot file: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readAll()
	if err != nil {
		return nil, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

// Put stores value under key. The value must be valid JSON since it is
// embedded in the document as-is.
func (s *FileStore) Put(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("file slot value for %q is not valid JSON", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readAll()
	if err != nil {
		// A corrupt document is replaced rather than blocking every save.
		s.logger.Warn("Discarding unreadable slot file", zap.String("path", s.path), zap.Error(err))
		doc = map[string]json.RawMessage{}
	}
	doc[key] = json.RawMessage(append([]byte(nil), value...))
	return s.writeAll(doc)
}

// Delete removes key from the document.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readAll()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return s.writeAll(doc)
}

// Close does nothing; the file is not held open.
func (s *FileStore) Close() error {
	return nil
}
