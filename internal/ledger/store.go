package ledger

import (
	"context"
	"fmt"
	"sync"
)

// Store is the injectable append-only persistence backend. The ledger
// does not choose the storage engine; memory, file, and SQLite
// implementations ship with the repo and anything else can be plugged
// in. Records are opaque bytes addressed by a dense offset from 0.
type Store interface {
	// AppendRecord durably stores one record and returns its offset.
	AppendRecord(ctx context.Context, record []byte) (int64, error)
	// ReadRange returns records with offsets in [from, to).
	ReadRange(ctx context.Context, from, to int64) ([][]byte, error)
	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)
	// Close releases backend resources.
	Close() error
}

// MemoryStore is a slice-backed Store for tests and embedded use.
type MemoryStore struct {
	mu      sync.RWMutex
	records [][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendRecord stores a copy of the record.
func (m *MemoryStore) AppendRecord(_ context.Context, record []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(record))
	copy(cp, record)
	m.records = append(m.records, cp)
	return int64(len(m.records) - 1), nil
}

// ReadRange returns copies of records in [from, to).
func (m *MemoryStore) ReadRange(_ context.Context, from, to int64) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := int64(len(m.records))
	if from < 0 || from > to || to > n {
		return nil, fmt.Errorf("ledger: read range [%d, %d) out of bounds (have %d)", from, to, n)
	}
	out := make([][]byte, 0, to-from)
	for i := from; i < to; i++ {
		cp := make([]byte, len(m.records[i]))
		copy(cp, m.records[i])
		out = append(out, cp)
	}
	return out, nil
}

// Count returns the number of stored records.
func (m *MemoryStore) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }

// Corrupt overwrites the record at offset in place. Test hook: the
// ledger itself exposes no mutation path, and integrity verification
// must pinpoint exactly this kind of post-hoc edit.
func (m *MemoryStore) Corrupt(offset int64, record []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= 0 && offset < int64(len(m.records)) {
		m.records[offset] = append([]byte(nil), record...)
	}
}
