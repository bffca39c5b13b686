package server

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultUploadRetention is how long a staged upload survives unused
const DefaultUploadRetention = 30 * time.Minute

// UploadStore stages uploaded APKs on disk until a client asks to analyze them
type UploadStore struct {
	dir       string
	retention time.Duration

	mu      sync.Mutex
	entries map[string]uploadEntry
}

type uploadEntry struct {
	path     string
	fileName string
	stagedAt time.Time
}

// NewUploadStore creates a store backed by the given directory
func NewUploadStore(dir string, retention time.Duration) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if retention <= 0 {
		retention = DefaultUploadRetention
	}
	return &UploadStore{
		dir:       dir,
		retention: retention,
		entries:   make(map[string]uploadEntry),
	}, nil
}

// Save stages one upload and returns its ID. Only .apk files are accepted.
func (s *UploadStore) Save(fileName string, r io.Reader) (string, int64, error) {
	fileName = filepath.Base(fileName)
	if !strings.EqualFold(filepath.Ext(fileName), ".apk") {
		return "", 0, fmt.Errorf("only .apk files are accepted, got %q", fileName)
	}

	id := uuid.NewString()
	path := filepath.Join(s.dir, id+".apk")

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stage upload: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write upload: %w", err)
	}

	s.mu.Lock()
	s.purgeLocked()
	s.entries[id] = uploadEntry{path: path, fileName: fileName, stagedAt: time.Now()}
	s.mu.Unlock()

	return id, size, nil
}

// Get returns the staged path and original file name for an upload ID
func (s *UploadStore) Get(id string) (path, fileName string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return "", "", fmt.Errorf("unknown or expired upload: %s", id)
	}
	return entry.path, entry.fileName, nil
}

// Remove deletes a staged upload once analysis has finished
func (s *UploadStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[id]; ok {
		os.Remove(entry.path)
		delete(s.entries, id)
	}
}

// purgeLocked drops entries older than the retention window. Caller holds mu.
func (s *UploadStore) purgeLocked() {
	cutoff := time.Now().Add(-s.retention)
	for id, entry := range s.entries {
		if entry.stagedAt.Before(cutoff) {
			os.Remove(entry.path)
			delete(s.entries, id)
		}
	}
}
