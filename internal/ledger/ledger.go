package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// WriteError reports that an entry could not be durably recorded.
// Callers must treat it as fatal to the operation in flight: the
// system never reports success without durability.
type WriteError struct {
	Seq uint64
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("ledger: append of entry %d failed: %v", e.Seq, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Ledger is the single-owner, append-only audit chain. Append is the
// only mutation and is serialized under one mutex so sequence numbers
// stay gap-free and the hash chain never forks. There is no update or
// delete.
type Ledger struct {
	mu       sync.Mutex
	store    Store
	nextSeq  uint64
	prevHash string
}

// Open creates a Ledger over the given store, recovering the chain
// tail if the store already holds entries.
func Open(ctx context.Context, store Store) (*Ledger, error) {
	l := &Ledger{
		store:    store,
		prevHash: GenesisHash,
	}

	n, err := store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: count existing records: %w", err)
	}
	if n > 0 {
		recs, err := store.ReadRange(ctx, n-1, n)
		if err != nil {
			return nil, fmt.Errorf("ledger: read chain tail: %w", err)
		}
		var last Entry
		if err := json.Unmarshal(recs[0], &last); err != nil {
			return nil, fmt.Errorf("ledger: decode chain tail: %w", err)
		}
		l.nextSeq = last.Seq + 1
		l.prevHash = last.Hash
	}
	return l, nil
}

// Append assigns the next sequence number, chains and hashes the
// draft, persists it, and returns the completed entry. On store
// failure the chain state is unchanged and a *WriteError is returned.
func (l *Ledger) Append(ctx context.Context, d Draft) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := d.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	e := Entry{
		Seq:       l.nextSeq,
		Timestamp: ts.UTC(),
		EventType: d.EventType,
		Summary:   d.Summary,
		PrevHash:  l.prevHash,
	}
	e.Hash = ComputeHash(e)

	record, err := json.Marshal(e)
	if err != nil {
		return Entry{}, &WriteError{Seq: e.Seq, Err: err}
	}
	if _, err := l.store.AppendRecord(ctx, record); err != nil {
		return Entry{}, &WriteError{Seq: e.Seq, Err: err}
	}

	l.nextSeq = e.Seq + 1
	l.prevHash = e.Hash
	return e, nil
}

// Len returns the number of appended entries.
func (l *Ledger) Len() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextSeq
}

// Range returns entries ordered by sequence number, optionally
// filtered by time bounds (inclusive) and event type.
func (l *Ledger) Range(ctx context.Context, from, to *time.Time, eventType EventType) ([]Entry, error) {
	entries, err := l.readAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if from != nil && e.Timestamp.Before(*from) {
			continue
		}
		if to != nil && e.Timestamp.After(*to) {
			continue
		}
		if eventType != "" && e.EventType != eventType {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// VerifyResult holds the outcome of an integrity check.
type VerifyResult struct {
	Valid    bool    `json:"valid"`
	Entries  int     `json:"entries"`
	BrokenAt *uint64 `json:"broken_at,omitempty"`
	Detail   string  `json:"detail,omitempty"`
}

// VerifyIntegrity walks the whole chain: sequence numbers must be
// contiguous from 0, each stored hash must match the recomputed one,
// and each prev_hash must match the previous entry's hash. The first
// mismatch is reported by sequence number; the ledger is immutable so
// repair is out of scope.
func (l *Ledger) VerifyIntegrity(ctx context.Context) (VerifyResult, error) {
	entries, err := l.readAll(ctx)
	if err != nil {
		return VerifyResult{}, err
	}

	prevHash := GenesisHash
	for i, e := range entries {
		seq := uint64(i)
		if e.Seq != seq {
			return brokenAt(seq, len(entries), fmt.Sprintf("sequence gap: entry %d carries seq %d", i, e.Seq)), nil
		}
		if e.PrevHash != prevHash {
			return brokenAt(seq, len(entries), fmt.Sprintf("prev_hash mismatch at seq %d", seq)), nil
		}
		if recomputed := ComputeHash(e); recomputed != e.Hash {
			return brokenAt(seq, len(entries), fmt.Sprintf("hash mismatch at seq %d: stored %s, recomputed %s", seq, e.Hash, recomputed)), nil
		}
		prevHash = e.Hash
	}
	return VerifyResult{Valid: true, Entries: len(entries)}, nil
}

func brokenAt(seq uint64, entries int, detail string) VerifyResult {
	return VerifyResult{Valid: false, Entries: entries, BrokenAt: &seq, Detail: detail}
}

// readAll loads and decodes every stored record in offset order.
func (l *Ledger) readAll(ctx context.Context) ([]Entry, error) {
	n, err := l.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: count records: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	recs, err := l.store.ReadRange(ctx, 0, n)
	if err != nil {
		return nil, fmt.Errorf("ledger: read records: %w", err)
	}

	entries := make([]Entry, 0, len(recs))
	for i, rec := range recs {
		var e Entry
		if err := json.Unmarshal(rec, &e); err != nil {
			return nil, fmt.Errorf("ledger: decode record %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
