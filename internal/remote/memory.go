package remote

import (
	"context"
	"sync"

	"github.com/user/tally/internal/model"
	"github.com/user/tally/internal/storage"
)

// MemoryClient is an in-process Client used by tests and by offline
// mode when no remote endpoint is configured.
type MemoryClient struct {
	mu       sync.Mutex
	tables   map[string]*Payload
	failWith string

	Uploads   int
	Downloads int
}

// NewMemoryClient creates an empty in-memory backend.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{tables: map[string]*Payload{}}
}

// FailWith makes every subsequent call fail with the given message.
// An empty message restores normal operation.
func (m *MemoryClient) FailWith(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = message
}

// Seed stores a payload directly, bypassing call counting.
func (m *MemoryClient) Seed(key model.TableKey, payload *Payload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[key.String()] = payload
}

// Stored returns the payload last uploaded for a key, or nil.
func (m *MemoryClient) Stored(key model.TableKey) *Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables[key.String()]
}

// Upload implements Client.
func (m *MemoryClient) Upload(ctx context.Context, key model.TableKey, payload *Payload) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != "" {
		return false, m.failWith
	}

	m.Uploads++
	m.tables[key.String()] = payload
	return true, "stored"
}

// Download implements Client.
func (m *MemoryClient) Download(ctx context.Context, key model.TableKey) (bool, *Payload, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != "" {
		return false, nil, m.failWith
	}

	m.Downloads++
	payload, ok := m.tables[key.String()]
	if !ok {
		return true, nil, "no remote data"
	}
	return true, payload, "ok"
}

// Hash implements Client.
func (m *MemoryClient) Hash(ctx context.Context, key model.TableKey) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload, ok := m.tables[key.String()]
	if !ok || m.failWith != "" {
		return ""
	}
	data, err := payload.Encode()
	if err != nil {
		return ""
	}
	return storage.FingerprintBytes(data)
}
