package impact

import (
	"testing"

	"github.com/opgate/opgate/internal/model"
)

func TestBenignContextScoresNone(t *testing.T) {
	a := NewAssessor(DefaultCutoffs())
	got := a.Assess(model.Operation{Name: "report"}, model.Context{
		model.KeyHarmAssessment: model.HarmNone,
	})
	if got.RiskLevel != model.RiskNone {
		t.Fatalf("expected none, got %s (score %d)", got.RiskLevel, got.Score)
	}
}

func TestNilContextIsTotal(t *testing.T) {
	a := NewAssessor(DefaultCutoffs())
	got := a.Assess(model.Operation{Name: "opaque"}, nil)
	if got.RiskLevel != model.RiskLow {
		t.Fatalf("nil context should score harm-unknown only (low), got %s score=%d", got.RiskLevel, got.Score)
	}
}

func TestHighHarmScoresHighWithAllIndicators(t *testing.T) {
	a := NewAssessor(DefaultCutoffs())
	got := a.Assess(model.Operation{Name: "launch"}, model.Context{
		model.KeyHarmAssessment:    model.HarmHigh,
		model.KeyHighStakes:        true,
		model.KeyAutomatedDecision: true,
		model.KeyPublicFacing:      true,
	})
	if got.RiskLevel != model.RiskHigh {
		t.Fatalf("expected high, got %s (score %d)", got.RiskLevel, got.Score)
	}
}

func TestHighHarmAloneIsHighRisk(t *testing.T) {
	a := NewAssessor(DefaultCutoffs())
	got := a.Assess(model.Operation{Name: "purge"}, model.Context{
		model.KeyHarmAssessment: model.HarmHigh,
	})
	if got.RiskLevel != model.RiskHigh {
		t.Fatalf("high harm with no other indicators must be high risk, got %s (score %d)", got.RiskLevel, got.Score)
	}
}

func TestHighHarmOverridesLenientCutoffs(t *testing.T) {
	lenient := NewAssessor(Cutoffs{NoneMax: 10, LowMax: 20, ModerateMax: 30})
	got := lenient.Assess(model.Operation{Name: "purge"}, model.Context{
		model.KeyHarmAssessment: model.HarmHigh,
	})
	if got.RiskLevel != model.RiskHigh {
		t.Fatalf("high harm must stay high risk under lenient cutoffs, got %s", got.RiskLevel)
	}
}

func TestScoreIsMonotoneInIndicators(t *testing.T) {
	// Adding any single indicator must never lower the score.
	base := model.Context{model.KeyHarmAssessment: model.HarmNone}
	additions := []model.Context{
		{model.KeyHarmAssessment: model.HarmModerate},
		{model.KeyHarmAssessment: model.HarmHigh},
		{model.KeyHighStakes: true},
		{model.KeyAutomatedDecision: true},
		{model.KeyPublicFacing: true},
		{model.KeyContainsPersonalData: true},
	}

	a := NewAssessor(DefaultCutoffs())
	baseScore := a.Assess(model.Operation{Name: "op"}, base).Score

	for i, add := range additions {
		ctx := base.Clone()
		for k, v := range add {
			ctx[k] = v
		}
		score := a.Assess(model.Operation{Name: "op"}, ctx).Score
		if score < baseScore {
			t.Fatalf("addition %d lowered score: %d -> %d", i, baseScore, score)
		}
	}
}

func TestHumanReviewNeutralizesAutomatedDecision(t *testing.T) {
	a := NewAssessor(DefaultCutoffs())
	without := a.Assess(model.Operation{Name: "op"}, model.Context{
		model.KeyHarmAssessment:    model.HarmNone,
		model.KeyAutomatedDecision: true,
	})
	with := a.Assess(model.Operation{Name: "op"}, model.Context{
		model.KeyHarmAssessment:    model.HarmNone,
		model.KeyAutomatedDecision: true,
		model.KeyHumanReview:       true,
	})
	if with.Score >= without.Score {
		t.Fatalf("human review should lower the automated-decision contribution: %d vs %d", with.Score, without.Score)
	}
}

func TestAffectedPartiesAndMitigations(t *testing.T) {
	a := NewAssessor(DefaultCutoffs())
	got := a.Assess(model.Operation{Name: "campaign"}, model.Context{
		model.KeyHarmAssessment:       model.HarmNone,
		model.KeyPublicFacing:         true,
		model.KeyContainsPersonalData: true,
	})

	parties := map[string]bool{}
	for _, p := range got.AffectedParties {
		parties[p] = true
	}
	if !parties["public"] || !parties["data_subjects"] {
		t.Fatalf("expected public and data_subjects, got %v", got.AffectedParties)
	}

	foundConsent := false
	for _, m := range got.Mitigations {
		if m == "obtain_user_consent" {
			foundConsent = true
		}
	}
	if !foundConsent {
		t.Fatalf("expected obtain_user_consent mitigation, got %v", got.Mitigations)
	}
}

func TestCutoffsAreConfigurable(t *testing.T) {
	strict := NewAssessor(Cutoffs{NoneMax: 0, LowMax: 0, ModerateMax: 0})
	got := strict.Assess(model.Operation{Name: "op"}, model.Context{
		model.KeyHarmAssessment: model.HarmModerate,
	})
	if got.RiskLevel != model.RiskHigh {
		t.Fatalf("strict cutoffs should classify any score as high, got %s", got.RiskLevel)
	}
}
