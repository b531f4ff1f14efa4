// Package daemon implements the spool service: operation submissions
// arrive as JSON files in the inbox directory, run through the
// orchestrator, and results are written to the outbox directory.
package daemon

import (
	"fmt"
	"regexp"
	"time"

	"github.com/opgate/opgate/internal/model"
	"github.com/opgate/opgate/internal/orchestrator"
)

// validID matches alphanumeric characters, dashes, and underscores only.
var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Submission is one operation dropped into the inbox.
type Submission struct {
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	Payload   any            `json:"payload,omitempty"`
	Context   map[string]any `json:"context"`
	Actor     string         `json:"actor"`
	CreatedAt time.Time      `json:"created_at"`
}

// Result is written to the outbox after processing a submission.
type Result struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Decision    *model.Decision `json:"decision,omitempty"`
	AuditRef    string          `json:"audit_ref,omitempty"`
	Detail      string          `json:"detail,omitempty"`
	Error       string          `json:"error,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Result status values.
const (
	ResultExecuted = "executed"
	ResultBlocked  = "blocked"
	ResultFailed   = "failed"
)

// resultFromExecution maps an orchestrator result to a spool result.
func resultFromExecution(id string, r orchestrator.Result) *Result {
	status := ResultExecuted
	if !r.Decision.Approved {
		status = ResultBlocked
	} else if !r.Success {
		status = ResultFailed
	}
	decision := r.Decision
	return &Result{
		ID:          id,
		Status:      status,
		Decision:    &decision,
		AuditRef:    r.AuditRef,
		Detail:      r.Detail,
		CompletedAt: time.Now().UTC(),
	}
}

// ValidateSubmission checks that a submission has all required fields
// and safe values.
func ValidateSubmission(s *Submission) error {
	if s.ID == "" {
		return fmt.Errorf("submission ID is required")
	}
	if !validID.MatchString(s.ID) {
		return fmt.Errorf("submission ID contains invalid characters: only alphanumeric, dash, and underscore allowed")
	}
	if s.Operation == "" {
		return fmt.Errorf("operation name is required")
	}
	if s.Actor == "" {
		return fmt.Errorf("actor is required")
	}
	return nil
}
