package ledger

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists records as one JSON line per record in an
// append-only file. Every append is fsynced before it is acknowledged;
// the ledger's durability guarantee rests on that.
type FileStore struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	count int64
}

// OpenFileStore opens (or creates) a JSONL record file for appending,
// counting existing lines to recover the offset sequence.
func OpenFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}

	var count int64
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("ledger: read existing file: %w", err)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			count++
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("ledger: scan existing file: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("ledger: open file: %w", err)
	}

	return &FileStore{path: path, file: file, count: count}, nil
}

// maxLineBytes bounds a single JSONL record when scanning.
const maxLineBytes = 1 << 20

// AppendRecord writes the record as one line and syncs to disk.
func (s *FileStore) AppendRecord(_ context.Context, record []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(append(append([]byte(nil), record...), '\n')); err != nil {
		return 0, fmt.Errorf("ledger: write record: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return 0, fmt.Errorf("ledger: sync: %w", err)
	}

	offset := s.count
	s.count++
	return offset, nil
}

// ReadRange re-reads the file and returns the lines with offsets in
// [from, to). Reads go back to disk so verification sees what was
// actually persisted, not an in-memory copy.
func (s *FileStore) ReadRange(_ context.Context, from, to int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if from < 0 || from > to || to > s.count {
		return nil, fmt.Errorf("ledger: read range [%d, %d) out of bounds (have %d)", from, to, s.count)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open for read: %w", err)
	}
	defer f.Close()

	out := make([][]byte, 0, to-from)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var i int64
	for scanner.Scan() {
		if i >= to {
			break
		}
		if i >= from {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			out = append(out, line)
		}
		i++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ledger: scan records: %w", err)
	}
	if int64(len(out)) != to-from {
		return nil, fmt.Errorf("ledger: file holds %d records in range, expected %d", len(out), to-from)
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *FileStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, nil
}

// Close flushes and closes the underlying file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
