// Package sync coordinates local table changes with the remote backend:
// per-table sync metadata, timestamp-based conflict merging, and the
// debounced coordinator driving upload/download cycles.
package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	gosync "sync"
)

// MetadataFileName is the sync metadata file under the data dir.
const MetadataFileName = "sync_metadata.json"

// TableMeta records the sync history of one table.
type TableMeta struct {
	LastSync     string `json:"last_sync"`
	LocalHash    string `json:"local_hash"`
	RemoteHash   string `json:"remote_hash"`
	LastModified string `json:"last_modified"`
	SyncCount    int    `json:"sync_count"`
}

// MetadataStore persists per-table sync metadata as a single JSON file
// keyed by the "<module>/<filename>" table identity.
type MetadataStore struct {
	path string

	mu      gosync.Mutex
	entries map[string]TableMeta
}

// NewMetadataStore creates a metadata store backed by a file under
// dataDir. The file is loaded immediately; a missing or corrupt file
// starts the store empty rather than failing.
func NewMetadataStore(dataDir string) *MetadataStore {
	s := &MetadataStore{
		path:    filepath.Join(dataDir, MetadataFileName),
		entries: map[string]TableMeta{},
	}
	s.load()
	return s
}

func (s *MetadataStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	var entries map[string]TableMeta
	if err := json.Unmarshal(data, &entries); err != nil {
		return
	}
	s.entries = entries
}

// Get returns the metadata for a table key and whether it was present.
func (s *MetadataStore) Get(key string) (TableMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.entries[key]
	return meta, ok
}

// Keys returns every table key with recorded metadata.
func (s *MetadataStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Update records the outcome of a sync attempt and bumps the table's
// sync counter.
func (s *MetadataStore) Update(key, lastSync, localHash, remoteHash, lastModified string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := s.entries[key]
	meta.LastSync = lastSync
	meta.LocalHash = localHash
	meta.RemoteHash = remoteHash
	meta.LastModified = lastModified
	meta.SyncCount++
	s.entries[key] = meta
}

// Save writes the metadata file atomically via temp file and rename.
func (s *MetadataStore) Save() error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.entries, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode sync metadata: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmpFile, err := os.CreateTemp(dir, MetadataFileName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write sync metadata: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace sync metadata: %w", err)
	}
	return nil
}
