package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/opgate/opgate/internal/orchestrator"
)

// Processor handles submission lifecycle transitions.
type Processor struct {
	dirs   DirConfig
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

// NewProcessor creates a processor over the given orchestrator. A nil
// logger is replaced with a no-op logger.
func NewProcessor(dirs DirConfig, orch *orchestrator.Orchestrator, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{dirs: dirs, orch: orch, logger: logger}
}

// Process handles a single submission file through its full lifecycle:
// read, validate, move to processing, execute with oversight, write
// result to outbox.
func (p *Processor) Process(ctx context.Context, path string) error {
	// Reject symlinks before reading: a symlink in the inbox could
	// point a submission at an arbitrary file on the filesystem.
	fi, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("stat submission file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("rejected symlink: %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read submission file: %w", err)
	}

	var sub Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		_ = os.Remove(path)
		return p.writeFailedResult(filepath.Base(path), fmt.Sprintf("invalid JSON: %v", err))
	}

	if err := ValidateSubmission(&sub); err != nil {
		_ = os.Remove(path)
		return p.writeFailedResult(sub.ID, fmt.Sprintf("validation failed: %v", err))
	}

	// Move to processing state before executing so a crash leaves an
	// orphan instead of a silently re-runnable inbox file.
	processingPath := filepath.Join(p.dirs.ProcessingDir(), sub.ID+".json")
	if err := moveFile(path, processingPath); err != nil {
		return fmt.Errorf("move to processing: %w", err)
	}

	res, err := p.orch.ExecuteWithOversight(ctx, sub.Operation, sub.Payload, sub.Context, sub.Actor)
	var result *Result
	if err != nil {
		result = &Result{
			ID:          sub.ID,
			Status:      ResultFailed,
			Error:       err.Error(),
			CompletedAt: time.Now().UTC(),
		}
	} else {
		result = resultFromExecution(sub.ID, res)
	}

	p.logger.Info("submission processed",
		zap.String("id", sub.ID),
		zap.String("operation", sub.Operation),
		zap.String("status", result.Status))

	if err := p.writeResult(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	_ = os.Remove(processingPath)
	return nil
}

// writeResult writes a result to the outbox directory atomically.
func (p *Processor) writeResult(r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	filename := r.ID + ".json"
	tmpPath := filepath.Join(p.dirs.Outbox, filename+".tmp")
	finalPath := filepath.Join(p.dirs.Outbox, filename)

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	return os.Rename(tmpPath, finalPath)
}

// writeFailedResult writes a minimal failed result when the submission
// can't be parsed.
func (p *Processor) writeFailedResult(id string, errMsg string) error {
	if id == "" {
		id = fmt.Sprintf("unknown-%d", time.Now().UnixNano())
	}
	r := &Result{
		ID:          id,
		Status:      ResultFailed,
		Error:       errMsg,
		CompletedAt: time.Now().UTC(),
	}
	return p.writeResult(r)
}
