// Package resilience turns failures into bounded recovery attempts and
// metric gaps into prioritized recommendations. Every recovery attempt
// ends in the audit ledger whether it succeeded or not.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/opgate/opgate/internal/learner"
	"github.com/opgate/opgate/internal/ledger"
)

// ErrRecoveryExhausted reports that every configured strategy failed.
var ErrRecoveryExhausted = errors.New("resilience: all recovery strategies exhausted")

// Recovery strategy names in default order.
const (
	StrategyRetryWithBackoff  = "retry_with_backoff"
	StrategyFailover          = "failover"
	StrategyDegradeGracefully = "degrade_gracefully"
)

// DefaultStrategies returns the built-in ordered strategy list.
func DefaultStrategies() []string {
	return []string{StrategyRetryWithBackoff, StrategyFailover, StrategyDegradeGracefully}
}

// StrategyRunner executes one named recovery strategy against a
// component. Implementations own retries, failover targets, and
// degradation switches; the manager owns ordering and audit.
type StrategyRunner interface {
	Run(ctx context.Context, strategy, component, failure string) error
}

// StrategyRunnerFunc adapts a function to StrategyRunner.
type StrategyRunnerFunc func(ctx context.Context, strategy, component, failure string) error

func (f StrategyRunnerFunc) Run(ctx context.Context, strategy, component, failure string) error {
	return f(ctx, strategy, component, failure)
}

// RecoveryResult reports one recovery walk.
type RecoveryResult struct {
	Component string   `json:"component"`
	Recovered bool     `json:"recovered"`
	Strategy  string   `json:"strategy,omitempty"`
	Attempted []string `json:"attempted"`
}

// Priority classifies a recommendation.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorityRank = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Recommendation is one performance-tuning suggestion. Computed on
// demand, never persisted.
type Recommendation struct {
	Action    string   `json:"action"`
	Priority  Priority `json:"priority"`
	Rationale string   `json:"rationale"`
}

// Manager coordinates recovery, optimization, and experience capture.
type Manager struct {
	ledger     *ledger.Ledger
	learner    *learner.Learner
	runner     StrategyRunner
	strategies []string
	logger     *zap.Logger

	mu              sync.Mutex
	recoveries      uint64
	exhaustions     uint64
	recommendations uint64
}

// New creates a Manager. A nil strategy list uses the defaults; a nil
// logger is replaced with a no-op logger.
func New(lg *ledger.Ledger, lrn *learner.Learner, runner StrategyRunner, strategies []string, logger *zap.Logger) *Manager {
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		ledger:     lg,
		learner:    lrn,
		runner:     runner,
		strategies: append([]string(nil), strategies...),
		logger:     logger,
	}
}

// RecoverFromFailure walks the strategy list in order and stops at the
// first success. A recovery entry is appended to the ledger in every
// case, naming the attempted strategies and the outcome. Exhaustion
// returns ErrRecoveryExhausted alongside the result; it is an outcome,
// not a panic.
func (m *Manager) RecoverFromFailure(ctx context.Context, component, failure string) (RecoveryResult, error) {
	res := RecoveryResult{Component: component}

	for _, strategy := range m.strategies {
		res.Attempted = append(res.Attempted, strategy)
		err := m.runner.Run(ctx, strategy, component, failure)
		if err == nil {
			res.Recovered = true
			res.Strategy = strategy
			break
		}
		m.logger.Warn("recovery strategy failed",
			zap.String("component", component),
			zap.String("strategy", strategy),
			zap.Error(err))
	}

	outcome := "recovered"
	reason := fmt.Sprintf("strategy %s succeeded", res.Strategy)
	if !res.Recovered {
		outcome = "exhausted"
		reason = failure
	}
	if _, err := m.ledger.Append(ctx, ledger.Draft{
		Timestamp: time.Now().UTC(),
		EventType: ledger.EventRecovery,
		Summary: ledger.Summary{
			Component:  component,
			Outcome:    outcome,
			Reason:     reason,
			Strategies: res.Attempted,
		},
	}); err != nil {
		return res, err
	}

	m.mu.Lock()
	if res.Recovered {
		m.recoveries++
	} else {
		m.exhaustions++
	}
	m.mu.Unlock()

	if !res.Recovered {
		return res, fmt.Errorf("recover %s: %w", component, ErrRecoveryExhausted)
	}
	m.LearnFromExperience(
		fmt.Sprintf("failure %q in %s", failure, component),
		fmt.Sprintf("strategy %s recovered the component", res.Strategy),
		"recovery:"+component,
	)
	return res, nil
}

// OptimizePerformance compares current metrics against targets and
// returns recommendations sorted by descending priority. The priority
// derives from the relative gap between current and target.
func (m *Manager) OptimizePerformance(op string, current, target map[string]float64) []Recommendation {
	var recs []Recommendation
	for metric, want := range target {
		have, ok := current[metric]
		if !ok || want == 0 {
			continue
		}
		gap := math.Abs(have-want) / math.Abs(want)
		if gap == 0 {
			continue
		}
		recs = append(recs, Recommendation{
			Action:    fmt.Sprintf("tune %s for %s", metric, op),
			Priority:  gapPriority(gap),
			Rationale: fmt.Sprintf("%s is %.2f, target %.2f (gap %.0f%%)", metric, have, want, gap*100),
		})
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return priorityRank[recs[i].Priority] > priorityRank[recs[j].Priority]
	})

	m.mu.Lock()
	m.recommendations += uint64(len(recs))
	m.mu.Unlock()
	return recs
}

func gapPriority(gap float64) Priority {
	switch {
	case gap >= 1.0:
		return PriorityCritical
	case gap >= 0.5:
		return PriorityHigh
	case gap >= 0.2:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// LearnFromExperience forwards an experience to the adaptive learner
// under a component-scoped category.
func (m *Manager) LearnFromExperience(experience, learning, category string) {
	if m.learner == nil {
		return
	}
	m.learner.ConsolidateKnowledge(experience, learning, category)
}

// Report aggregates resilience activity since construction.
type Report struct {
	Recoveries      uint64 `json:"recoveries"`
	Exhaustions     uint64 `json:"exhaustions"`
	Recommendations uint64 `json:"recommendations"`
}

// Report returns the running counters.
func (m *Manager) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Report{
		Recoveries:      m.recoveries,
		Exhaustions:     m.exhaustions,
		Recommendations: m.recommendations,
	}
}
