// Package ledger implements the append-only, hash-chained audit
// ledger. Every oversight decision, operation outcome, access check,
// and recovery attempt becomes one immutable entry; each entry's
// prev_hash is the hash of the previous entry, forming a tamper-evident
// chain anchored at a fixed genesis hash.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// GenesisHash is the prev_hash of entry 0 in a new ledger.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// EventType classifies an audit entry.
type EventType string

const (
	EventOperation EventType = "operation"
	EventDecision  EventType = "decision"
	EventAccess    EventType = "access"
	EventRecovery  EventType = "recovery"
)

// Summary is the flattened payload recorded in each entry. All fields
// are scalars or slices (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing. Entries reference
// the operation through this summary; they never copy the payload.
type Summary struct {
	OperationID   string   `json:"operation_id,omitempty"`
	OperationName string   `json:"operation_name,omitempty"`
	Actor         string   `json:"actor,omitempty"`
	Outcome       string   `json:"outcome,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	RiskLevel     string   `json:"risk_level,omitempty"`
	Violations    int      `json:"violations,omitempty"`
	Resource      string   `json:"resource,omitempty"`
	Accessor      string   `json:"accessor,omitempty"`
	Action        string   `json:"action,omitempty"`
	Granted       bool     `json:"granted,omitempty"`
	Component     string   `json:"component,omitempty"`
	Strategies    []string `json:"strategies,omitempty"`
}

// Entry is one immutable record in the ledger. Seq numbers are
// gap-free from 0 within a ledger instance; Hash covers every other
// field, and PrevHash of entry N equals Hash of entry N-1.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	EventType EventType `json:"event_type"`
	Summary   Summary   `json:"summary"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// Draft is an entry before the ledger assigns chain fields. Callers
// fill EventType and Summary; Timestamp defaults to now if zero.
type Draft struct {
	Timestamp time.Time
	EventType EventType
	Summary   Summary
}

// hashInput is the canonical hashing structure: Entry minus Hash, with
// the timestamp pinned to a fixed UTC encoding.
type hashInput struct {
	Seq       uint64    `json:"seq"`
	Timestamp string    `json:"ts"`
	EventType EventType `json:"event_type"`
	Summary   Summary   `json:"summary"`
	PrevHash  string    `json:"prev_hash"`
}

// timestampLayout pins the hashed timestamp encoding. Millisecond
// precision, always UTC, so re-encoding during verification is stable.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// ComputeHash returns "sha256:<hex>" over the entry's hashed fields.
// Deterministic: identical field values always produce the same digest.
func ComputeHash(e Entry) string {
	in := hashInput{
		Seq:       e.Seq,
		Timestamp: e.Timestamp.UTC().Format(timestampLayout),
		EventType: e.EventType,
		Summary:   e.Summary,
		PrevHash:  e.PrevHash,
	}
	// Marshal of a flat struct cannot fail.
	line, _ := json.Marshal(in)
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
