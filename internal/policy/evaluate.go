// Package policy evaluates operations against a configured set of
// principles. Evaluation is pure: no clock, no I/O, no shared state.
// Identical inputs always produce the identical verdict.
package policy

import (
	"fmt"
	"sort"

	"github.com/opgate/opgate/internal/model"
)

// Verdict is the output of one evaluation.
type Verdict struct {
	Approved   bool              `json:"approved"`
	Violations []model.Violation `json:"violations,omitempty"`
	Checked    []model.Principle `json:"checked"`
}

// checkFunc inspects one principle against the operation context.
// A nil return means the principle is satisfied.
type checkFunc func(op model.Operation, ctx model.Context) *model.Violation

// checks is the closed dispatch table. Every principle in
// model.AllPrinciples has exactly one entry; adding a principle without
// a check is caught by TestEveryPrincipleHasACheck.
var checks = map[model.Principle]checkFunc{
	model.Transparency:   checkTransparency,
	model.Fairness:       checkFairness,
	model.Privacy:        checkPrivacy,
	model.Accountability: checkAccountability,
	model.Beneficence:    checkBeneficence,
	model.NonMaleficence: checkNonMaleficence,
	model.Autonomy:       checkAutonomy,
	model.Justice:        checkJustice,
}

// Evaluator runs principle checks with a configurable blocking
// threshold. Construct once, use from any goroutine.
type Evaluator struct {
	blockAt model.Severity
}

// NewEvaluator creates an Evaluator that blocks on violations at or
// above blockAt. An empty threshold falls back to high, the default
// blocking policy.
func NewEvaluator(blockAt model.Severity) *Evaluator {
	if blockAt == "" {
		blockAt = model.SeverityHigh
	}
	return &Evaluator{blockAt: blockAt}
}

// Evaluate checks the operation against every active principle.
// Checks are independent and order-insensitive; violations come back
// sorted by descending severity, then principle name, so the verdict
// is deterministic regardless of the active set's order.
func (e *Evaluator) Evaluate(op model.Operation, ctx model.Context, active []model.Principle) Verdict {
	v := Verdict{Approved: true, Checked: append([]model.Principle(nil), active...)}

	for _, p := range active {
		check, ok := checks[p]
		if !ok {
			// Unknown principles cannot be vouched for: fail closed.
			v.Violations = append(v.Violations, model.Violation{
				Principle:   p,
				Severity:    model.SeverityHigh,
				Explanation: fmt.Sprintf("no check registered for principle %q", p),
			})
			continue
		}
		if viol := check(op, ctx); viol != nil {
			v.Violations = append(v.Violations, *viol)
		}
	}

	sort.SliceStable(v.Violations, func(i, j int) bool {
		ri, rj := model.SeverityRank[v.Violations[i].Severity], model.SeverityRank[v.Violations[j].Severity]
		if ri != rj {
			return ri > rj
		}
		return v.Violations[i].Principle < v.Violations[j].Principle
	})

	for _, viol := range v.Violations {
		if viol.Severity.AtLeast(e.blockAt) {
			v.Approved = false
			break
		}
	}
	return v
}

// BlockingSeverity returns the configured blocking threshold.
func (e *Evaluator) BlockingSeverity() model.Severity {
	return e.blockAt
}

func checkTransparency(_ model.Operation, ctx model.Context) *model.Violation {
	if ctx.Has(model.KeyPurpose) {
		return nil
	}
	return &model.Violation{
		Principle:   model.Transparency,
		Severity:    model.SeverityMedium,
		Explanation: "operation context does not state a purpose",
	}
}

func checkFairness(_ model.Operation, ctx model.Context) *model.Violation {
	if ctx.Bool(model.KeyBiasAssessment) {
		return nil
	}
	return &model.Violation{
		Principle:   model.Fairness,
		Severity:    model.SeverityMedium,
		Explanation: "no bias assessment recorded for this operation",
	}
}

func checkPrivacy(_ model.Operation, ctx model.Context) *model.Violation {
	if !ctx.Bool(model.KeyContainsPersonalData) {
		return nil
	}
	if ctx.Bool(model.KeyUserConsent) || ctx.Bool(model.KeyAnonymized) {
		return nil
	}
	return &model.Violation{
		Principle:   model.Privacy,
		Severity:    model.SeverityHigh,
		Explanation: "personal data processed without consent or anonymization",
	}
}

func checkAccountability(_ model.Operation, ctx model.Context) *model.Violation {
	if ctx.Has(model.KeyResponsibleParty) || ctx.Has(model.KeyOwner) {
		return nil
	}
	return &model.Violation{
		Principle:   model.Accountability,
		Severity:    model.SeverityMedium,
		Explanation: "no responsible party assigned",
	}
}

func checkBeneficence(_ model.Operation, ctx model.Context) *model.Violation {
	if ctx.Has(model.KeyPurpose) || ctx.Has(model.KeyExpectedBenefit) {
		return nil
	}
	return &model.Violation{
		Principle:   model.Beneficence,
		Severity:    model.SeverityLow,
		Explanation: "no stated purpose or expected benefit",
	}
}

func checkNonMaleficence(_ model.Operation, ctx model.Context) *model.Violation {
	switch ctx.String(model.KeyHarmAssessment) {
	case model.HarmNone, model.HarmMinimal:
		return nil
	case model.HarmHigh:
		if ctx.Bool(model.KeyHumanReview) {
			return &model.Violation{
				Principle:   model.NonMaleficence,
				Severity:    model.SeverityMedium,
				Explanation: "high harm assessment mitigated by human review",
			}
		}
		return &model.Violation{
			Principle:   model.NonMaleficence,
			Severity:    model.SeverityHigh,
			Explanation: "high harm assessment without human review",
		}
	case model.HarmModerate:
		return &model.Violation{
			Principle:   model.NonMaleficence,
			Severity:    model.SeverityMedium,
			Explanation: "moderate harm assessment; review mitigations",
		}
	default:
		// Absent or unrecognized assessment reads as unknown.
		return &model.Violation{
			Principle:   model.NonMaleficence,
			Severity:    model.SeverityMedium,
			Explanation: "harm assessment missing or unknown",
		}
	}
}

func checkAutonomy(_ model.Operation, ctx model.Context) *model.Violation {
	if !ctx.Bool(model.KeyAutomatedDecision) || !ctx.Bool(model.KeyContainsPersonalData) {
		return nil
	}
	if ctx.Bool(model.KeyUserConsent) || ctx.Bool(model.KeyOptOutAvailable) {
		return nil
	}
	return &model.Violation{
		Principle:   model.Autonomy,
		Severity:    model.SeverityMedium,
		Explanation: "automated decision over personal data without consent or opt-out",
	}
}

func checkJustice(_ model.Operation, ctx model.Context) *model.Violation {
	if !ctx.Bool(model.KeyPublicFacing) || ctx.Bool(model.KeyImpactReviewed) {
		return nil
	}
	return &model.Violation{
		Principle:   model.Justice,
		Severity:    model.SeverityLow,
		Explanation: "public-facing operation without a distribution-of-impact review",
	}
}
