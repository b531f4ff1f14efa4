package model

// Well-known context field names. Callers may supply any fields; these
// are the ones the built-in checks and the impact scorer consult.
const (
	KeyPurpose              = "purpose"
	KeyBiasAssessment       = "biasAssessment"
	KeyContainsPersonalData = "containsPersonalData"
	KeyUserConsent          = "userConsent"
	KeyAnonymized           = "anonymized"
	KeyResponsibleParty     = "responsibleParty"
	KeyOwner                = "owner"
	KeyExpectedBenefit      = "expectedBenefit"
	KeyHarmAssessment       = "harmAssessment"
	KeyHumanReview          = "humanReview"
	KeyAutomatedDecision    = "automatedDecision"
	KeyOptOutAvailable      = "optOutAvailable"
	KeyImpactReviewed       = "impactReviewed"
	KeyPublicFacing         = "publicFacing"
	KeyHighStakes           = "highStakes"
)

// Harm assessment values recognized by the non-maleficence check and
// the impact scorer. Any other value reads as unknown (fail-closed).
const (
	HarmNone     = "none"
	HarmMinimal  = "minimal"
	HarmModerate = "moderate"
	HarmHigh     = "high"
)
