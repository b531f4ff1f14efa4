// Package model holds the shared domain types: operations, principles,
// violations, decisions, and the fail-closed context accessors that
// every policy check reads through.
package model

import (
	"fmt"
	"time"
)

// Principle is one named rule the policy evaluator checks against.
// The set is closed: checks dispatch over this enumeration, never over
// free-form strings.
type Principle string

const (
	Transparency   Principle = "transparency"
	Fairness       Principle = "fairness"
	Privacy        Principle = "privacy"
	Accountability Principle = "accountability"
	Beneficence    Principle = "beneficence"
	NonMaleficence Principle = "non_maleficence"
	Autonomy       Principle = "autonomy"
	Justice        Principle = "justice"
)

// AllPrinciples lists every known principle in canonical order.
var AllPrinciples = []Principle{
	Transparency,
	Fairness,
	Privacy,
	Accountability,
	Beneficence,
	NonMaleficence,
	Autonomy,
	Justice,
}

// ParsePrinciple maps a string to a Principle. Unknown names are an error
// so a typo in config cannot silently disable a check.
func ParsePrinciple(s string) (Principle, error) {
	for _, p := range AllPrinciples {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown principle %q", s)
}

// Severity classifies how serious a violation is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityRank maps severity to a comparable integer.
var SeverityRank = map[Severity]int{
	SeverityLow:    0,
	SeverityMedium: 1,
	SeverityHigh:   2,
}

// AtLeast reports whether s is at least as severe as threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return SeverityRank[s] >= SeverityRank[threshold]
}

// RiskLevel is the impact assessor's overall risk classification.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// RiskRank maps risk levels to comparable integers for monotonicity checks.
var RiskRank = map[RiskLevel]int{
	RiskNone:     0,
	RiskLow:      1,
	RiskModerate: 2,
	RiskHigh:     3,
}

// Violation is one principle breach found during policy evaluation.
type Violation struct {
	Principle   Principle `json:"principle"`
	Severity    Severity  `json:"severity"`
	Explanation string    `json:"explanation"`
}

// Operation is a named unit of work submitted for oversight before
// execution. Immutable once submitted; the caller owns Payload, audit
// entries reference it only through a derived summary.
type Operation struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Payload any     `json:"-"`
	Context Context `json:"context"`
}

// Decision is the outcome of policy + impact + harm-prevention
// evaluation for one operation. Exactly one Decision exists per
// overseen operation, and it is final once logged.
type Decision struct {
	OperationID   string      `json:"operation_id"`
	OperationName string      `json:"operation_name"`
	Approved      bool        `json:"approved"`
	Violations    []Violation `json:"violations,omitempty"`
	RiskLevel     RiskLevel   `json:"risk_level"`
	Guidance      string      `json:"guidance,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// ValidationError reports a malformed operation or context. Nothing is
// logged for these calls: no valid decision could be formed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid operation: %s: %s", e.Field, e.Reason)
}
