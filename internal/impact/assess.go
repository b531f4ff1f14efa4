// Package impact derives a risk level and affected-party estimate from
// operation context. Scoring is a total, monotone function of a fixed
// indicator list: adding an indicator can only raise the score, never
// lower it, which keeps the assessment independently testable.
package impact

import (
	"github.com/opgate/opgate/internal/model"
)

// Assessment is the output of one impact assessment.
type Assessment struct {
	RiskLevel       model.RiskLevel `json:"risk_level"`
	Score           int             `json:"score"`
	AffectedParties []string        `json:"affected_parties,omitempty"`
	Mitigations     []string        `json:"mitigations,omitempty"`
}

// Cutoffs maps the indicator score to a risk level. Score <= NoneMax is
// none, <= LowMax is low, <= ModerateMax is moderate, above is high.
type Cutoffs struct {
	NoneMax     int
	LowMax      int
	ModerateMax int
}

// DefaultCutoffs returns the built-in score boundaries.
func DefaultCutoffs() Cutoffs {
	return Cutoffs{NoneMax: 0, LowMax: 2, ModerateMax: 4}
}

// Assessor scores operations. Pure; safe for concurrent use.
type Assessor struct {
	cutoffs Cutoffs
}

// NewAssessor creates an Assessor with the given cutoffs. Zero-value
// cutoffs fall back to the defaults.
func NewAssessor(c Cutoffs) *Assessor {
	if c == (Cutoffs{}) {
		c = DefaultCutoffs()
	}
	return &Assessor{cutoffs: c}
}

// Indicator weights. Each triggered indicator adds its weight to the
// score; the scorer consults nothing else.
const (
	weightHarmModerate    = 2
	weightHarmHigh        = 4
	weightHarmUnknown     = 1
	weightHighStakes      = 2
	weightUnreviewedAuto  = 1
	weightPublicFacing    = 1
	weightUnconsentedData = 1
)

// Assess scores the operation context. Total: defined for every input,
// including a nil context (which scores as harm-unknown only). An
// assessed harm of high is high risk on its own, whatever the score
// cutoffs say.
func (a *Assessor) Assess(op model.Operation, ctx model.Context) Assessment {
	out := Assessment{}
	harmHigh := false

	switch ctx.String(model.KeyHarmAssessment) {
	case model.HarmNone, model.HarmMinimal:
		// no contribution
	case model.HarmModerate:
		out.Score += weightHarmModerate
		out.Mitigations = append(out.Mitigations, "document_harm_mitigations")
	case model.HarmHigh:
		harmHigh = true
		out.Score += weightHarmHigh
		out.Mitigations = append(out.Mitigations, "require_human_review")
	default:
		out.Score += weightHarmUnknown
		out.Mitigations = append(out.Mitigations, "conduct_harm_assessment")
	}

	if ctx.Bool(model.KeyHighStakes) {
		out.Score += weightHighStakes
		out.Mitigations = append(out.Mitigations, "add_safeguards")
	}
	if ctx.Bool(model.KeyAutomatedDecision) && !ctx.Bool(model.KeyHumanReview) {
		out.Score += weightUnreviewedAuto
		out.Mitigations = append(out.Mitigations, "implement_human_oversight")
	}
	if ctx.Bool(model.KeyPublicFacing) {
		out.Score += weightPublicFacing
		out.AffectedParties = append(out.AffectedParties, "public")
	}
	if ctx.Bool(model.KeyContainsPersonalData) {
		out.AffectedParties = append(out.AffectedParties, "data_subjects")
		if !ctx.Bool(model.KeyUserConsent) {
			out.Score += weightUnconsentedData
			out.Mitigations = append(out.Mitigations, "obtain_user_consent")
		}
	}

	out.RiskLevel = a.level(out.Score)
	if harmHigh {
		out.RiskLevel = model.RiskHigh
	}
	return out
}

func (a *Assessor) level(score int) model.RiskLevel {
	switch {
	case score <= a.cutoffs.NoneMax:
		return model.RiskNone
	case score <= a.cutoffs.LowMax:
		return model.RiskLow
	case score <= a.cutoffs.ModerateMax:
		return model.RiskModerate
	default:
		return model.RiskHigh
	}
}
