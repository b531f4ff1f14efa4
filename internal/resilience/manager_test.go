package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opgate/opgate/internal/learner"
	"github.com/opgate/opgate/internal/ledger"
)

func newManager(t *testing.T, runner StrategyRunner) (*Manager, *ledger.Ledger, *learner.Learner) {
	t.Helper()
	lg, err := ledger.Open(context.Background(), ledger.NewMemoryStore())
	require.NoError(t, err)
	lrn := learner.New()
	return New(lg, lrn, runner, nil, nil), lg, lrn
}

func failingUntil(succeedOn string) StrategyRunner {
	return StrategyRunnerFunc(func(_ context.Context, strategy, _, _ string) error {
		if strategy == succeedOn {
			return nil
		}
		return errors.New("strategy failed")
	})
}

func TestRecoveryStopsAtFirstSuccess(t *testing.T) {
	m, lg, _ := newManager(t, failingUntil(StrategyFailover))

	res, err := m.RecoverFromFailure(context.Background(), "db", "connection refused")
	require.NoError(t, err)
	assert.True(t, res.Recovered)
	assert.Equal(t, StrategyFailover, res.Strategy)
	assert.Equal(t, []string{StrategyRetryWithBackoff, StrategyFailover}, res.Attempted)

	entries, err := lg.Range(context.Background(), nil, nil, ledger.EventRecovery)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "recovered", entries[0].Summary.Outcome)
	assert.Equal(t, res.Attempted, entries[0].Summary.Strategies)
}

func TestExhaustionIsLoggedAndReturned(t *testing.T) {
	m, lg, _ := newManager(t, failingUntil("none"))

	res, err := m.RecoverFromFailure(context.Background(), "cache", "oom")
	require.ErrorIs(t, err, ErrRecoveryExhausted)
	assert.False(t, res.Recovered)
	assert.Equal(t, DefaultStrategies(), res.Attempted)

	entries, err := lg.Range(context.Background(), nil, nil, ledger.EventRecovery)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "exhausted", entries[0].Summary.Outcome)
	assert.Equal(t, "oom", entries[0].Summary.Reason)
}

func TestSuccessfulRecoveryFeedsLearner(t *testing.T) {
	m, _, lrn := newManager(t, failingUntil(StrategyRetryWithBackoff))

	_, err := m.RecoverFromFailure(context.Background(), "db", "timeout")
	require.NoError(t, err)

	entries := lrn.RetrieveKnowledge("recovery:db")
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Learning, StrategyRetryWithBackoff)
}

func TestCustomStrategyOrderIsHonored(t *testing.T) {
	lg, err := ledger.Open(context.Background(), ledger.NewMemoryStore())
	require.NoError(t, err)
	m := New(lg, learner.New(), failingUntil(StrategyDegradeGracefully),
		[]string{StrategyDegradeGracefully, StrategyFailover}, nil)

	res, err := m.RecoverFromFailure(context.Background(), "api", "panic")
	require.NoError(t, err)
	assert.Equal(t, []string{StrategyDegradeGracefully}, res.Attempted)
}

func TestOptimizePrioritizesByRelativeGap(t *testing.T) {
	m, _, _ := newManager(t, failingUntil("none"))

	recs := m.OptimizePerformance("ingest",
		map[string]float64{
			"latency_ms": 210, // 110% over target
			"throughput": 70,  // 30% under target
			"error_rate": 0.011,
			"memory_mb":  512, // on target
		},
		map[string]float64{
			"latency_ms": 100,
			"throughput": 100,
			"error_rate": 0.01,
			"memory_mb":  512,
		})

	require.Len(t, recs, 3)
	assert.Equal(t, PriorityCritical, recs[0].Priority)
	assert.Contains(t, recs[0].Action, "latency_ms")
	assert.Equal(t, PriorityMedium, recs[1].Priority)
	assert.Equal(t, PriorityLow, recs[2].Priority)
}

func TestOptimizeSkipsUnknownMetrics(t *testing.T) {
	m, _, _ := newManager(t, failingUntil("none"))
	recs := m.OptimizePerformance("op", map[string]float64{}, map[string]float64{"latency_ms": 100})
	assert.Empty(t, recs)
}

func TestReportCounts(t *testing.T) {
	m, _, _ := newManager(t, failingUntil(StrategyRetryWithBackoff))

	_, err := m.RecoverFromFailure(context.Background(), "db", "timeout")
	require.NoError(t, err)
	m.OptimizePerformance("op",
		map[string]float64{"latency_ms": 200},
		map[string]float64{"latency_ms": 100})

	r := m.Report()
	assert.Equal(t, uint64(1), r.Recoveries)
	assert.Equal(t, uint64(0), r.Exhaustions)
	assert.Equal(t, uint64(1), r.Recommendations)
}
