// Package oversight runs the decision pipeline: policy evaluation,
// impact assessment, harm-prevention override, guidance assembly, and
// the durable audit append. A decision does not exist until it is in
// the ledger.
package oversight

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/opgate/opgate/internal/impact"
	"github.com/opgate/opgate/internal/ledger"
	"github.com/opgate/opgate/internal/model"
	"github.com/opgate/opgate/internal/policy"
)

// Engine gates operations. Construct with New; safe for concurrent use.
type Engine struct {
	evaluator  *policy.Evaluator
	assessor   *impact.Assessor
	ledger     *ledger.Ledger
	principles []model.Principle

	mu        sync.Mutex
	decisions uint64
	approvals uint64
}

// New creates an Engine. A nil principles slice means all principles
// are active.
func New(evaluator *policy.Evaluator, assessor *impact.Assessor, lg *ledger.Ledger, principles []model.Principle) *Engine {
	if principles == nil {
		principles = model.AllPrinciples
	}
	return &Engine{
		evaluator:  evaluator,
		assessor:   assessor,
		ledger:     lg,
		principles: principles,
	}
}

// Oversee evaluates one operation and records the decision. The
// decision entry is appended to the ledger before the decision is
// returned; if the append fails the decision is discarded and the
// *ledger.WriteError is returned instead.
func (e *Engine) Oversee(ctx context.Context, op model.Operation) (model.Decision, error) {
	if op.Name == "" {
		return model.Decision{}, &model.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	verdict := e.evaluator.Evaluate(op, op.Context, e.principles)
	assessment := e.assessor.Assess(op, op.Context)

	decision := model.Decision{
		OperationID:   op.ID,
		OperationName: op.Name,
		Approved:      verdict.Approved,
		Violations:    verdict.Violations,
		RiskLevel:     assessment.RiskLevel,
		Timestamp:     time.Now().UTC(),
	}

	// Harm prevention overrides an otherwise clean policy verdict:
	// high assessed risk with no mitigation signal in the context is a
	// forced block.
	if decision.Approved && assessment.RiskLevel == model.RiskHigh && !mitigated(op.Context) {
		decision.Approved = false
		decision.Violations = append(decision.Violations, model.Violation{
			Principle:   model.NonMaleficence,
			Severity:    model.SeverityHigh,
			Explanation: "high assessed risk without human review or mitigation",
		})
	}

	decision.Guidance = buildGuidance(decision, assessment)

	outcome := "approved"
	if !decision.Approved {
		outcome = "blocked"
	}
	_, err := e.ledger.Append(ctx, ledger.Draft{
		Timestamp: decision.Timestamp,
		EventType: ledger.EventDecision,
		Summary: ledger.Summary{
			OperationID:   op.ID,
			OperationName: op.Name,
			Outcome:       outcome,
			Reason:        firstReason(decision.Violations),
			RiskLevel:     string(decision.RiskLevel),
			Violations:    len(decision.Violations),
		},
	})
	if err != nil {
		return model.Decision{}, err
	}

	e.mu.Lock()
	e.decisions++
	if decision.Approved {
		e.approvals++
	}
	e.mu.Unlock()

	return decision, nil
}

// mitigated reports whether the context carries any signal that the
// assessed risk is being managed.
func mitigated(ctx model.Context) bool {
	return ctx.Bool(model.KeyHumanReview) || ctx.Bool(model.KeyImpactReviewed)
}

// buildGuidance assembles actionable guidance from the violations and
// the assessment's suggested mitigations.
func buildGuidance(d model.Decision, a impact.Assessment) string {
	var parts []string
	if d.Approved {
		parts = append(parts, "approved")
		if d.RiskLevel == model.RiskModerate || d.RiskLevel == model.RiskHigh {
			parts = append(parts, fmt.Sprintf("proceed with caution: assessed risk is %s", d.RiskLevel))
		}
	} else {
		parts = append(parts, "blocked")
		for _, v := range d.Violations {
			parts = append(parts, fmt.Sprintf("%s (%s): %s", v.Principle, v.Severity, v.Explanation))
		}
	}
	for _, m := range a.Mitigations {
		parts = append(parts, "mitigation: "+m)
	}
	return strings.Join(parts, "; ")
}

func firstReason(violations []model.Violation) string {
	if len(violations) == 0 {
		return ""
	}
	return string(violations[0].Principle) + ": " + violations[0].Explanation
}

// Summary reports decision counters since construction.
type Summary struct {
	Decisions    uint64  `json:"decisions"`
	Approvals    uint64  `json:"approvals"`
	ApprovalRate float64 `json:"approval_rate"`
}

// Summary returns the running decision counters.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Summary{Decisions: e.decisions, Approvals: e.approvals}
	if s.Decisions > 0 {
		s.ApprovalRate = float64(s.Approvals) / float64(s.Decisions)
	}
	return s
}
