package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opgate/opgate/internal/health"
	"github.com/opgate/opgate/internal/impact"
	"github.com/opgate/opgate/internal/learner"
	"github.com/opgate/opgate/internal/ledger"
	"github.com/opgate/opgate/internal/model"
	"github.com/opgate/opgate/internal/oversight"
	"github.com/opgate/opgate/internal/policy"
	"github.com/opgate/opgate/internal/resilience"
)

type fixture struct {
	orch     *Orchestrator
	ledger   *ledger.Ledger
	learner  *learner.Learner
	executed *int
}

func newFixture(t *testing.T, exec Executor) *fixture {
	t.Helper()
	lg, err := ledger.Open(context.Background(), ledger.NewMemoryStore())
	require.NoError(t, err)

	executed := 0
	if exec == nil {
		exec = func(_ context.Context, _ model.Operation) (Outcome, error) {
			executed++
			return Outcome{Success: true, Metrics: map[string]float64{"latency_ms": 12}}, nil
		}
	} else {
		inner := exec
		exec = func(ctx context.Context, op model.Operation) (Outcome, error) {
			executed++
			return inner(ctx, op)
		}
	}

	engine := oversight.New(policy.NewEvaluator(model.SeverityHigh), impact.NewAssessor(impact.DefaultCutoffs()), lg, nil)
	lrn := learner.New()
	orch := New(engine, lg, health.NewMonitor(0, health.Thresholds{}), lrn, nil, exec, nil)
	return &fixture{orch: orch, ledger: lg, learner: lrn, executed: &executed}
}

func cleanContext() model.Context {
	return model.Context{
		model.KeyPurpose:          "scheduled export",
		model.KeyBiasAssessment:   true,
		model.KeyResponsibleParty: "ops",
		model.KeyHarmAssessment:   model.HarmNone,
	}
}

func TestApprovedOperationExecutesAndLogsTwoEntries(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.orch.ExecuteWithOversight(context.Background(), "export_metrics", nil, cleanContext(), "scheduler")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Decision.Approved)
	assert.NotEmpty(t, res.AuditRef)
	assert.Equal(t, 1, *f.executed)

	require.Equal(t, uint64(2), f.ledger.Len())
	entries, err := f.ledger.Range(context.Background(), nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, ledger.EventDecision, entries[0].EventType)
	assert.Equal(t, ledger.EventOperation, entries[1].EventType)
	assert.Equal(t, "executed", entries[1].Summary.Outcome)
	assert.Equal(t, "scheduler", entries[1].Summary.Actor)
}

func TestBlockedOperationNeverExecutesAndLogsTwoEntries(t *testing.T) {
	f := newFixture(t, nil)

	ctx := cleanContext()
	ctx[model.KeyContainsPersonalData] = true

	res, err := f.orch.ExecuteWithOversight(context.Background(), "export_users", nil, ctx, "scheduler")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.Decision.Approved)
	assert.Equal(t, 0, *f.executed)
	assert.True(t, strings.Contains(res.Detail, "privacy"), "guidance %q should mention privacy", res.Detail)

	require.Equal(t, uint64(2), f.ledger.Len())
	entries, err := f.ledger.Range(context.Background(), nil, nil, ledger.EventOperation)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "blocked", entries[0].Summary.Outcome)
}

func TestExecutorFailureIsRecordedNotFatal(t *testing.T) {
	f := newFixture(t, func(_ context.Context, _ model.Operation) (Outcome, error) {
		return Outcome{}, errors.New("backend unavailable")
	})

	res, err := f.orch.ExecuteWithOversight(context.Background(), "sync", nil, cleanContext(), "cron")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "backend unavailable", res.Detail)

	entries, err := f.ledger.Range(context.Background(), nil, nil, ledger.EventOperation)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "failed", entries[0].Summary.Outcome)
}

func TestCriticalExecutorTriggersRecovery(t *testing.T) {
	lg, err := ledger.Open(context.Background(), ledger.NewMemoryStore())
	require.NoError(t, err)

	engine := oversight.New(policy.NewEvaluator(model.SeverityHigh), impact.NewAssessor(impact.DefaultCutoffs()), lg, nil)
	lrn := learner.New()
	runner := resilience.StrategyRunnerFunc(func(_ context.Context, strategy, _, _ string) error {
		if strategy == resilience.StrategyFailover {
			return nil
		}
		return errors.New("strategy unavailable")
	})
	mgr := resilience.New(lg, lrn, runner, nil, nil)

	orch := New(engine, lg, health.NewMonitor(0, health.Thresholds{}), lrn, mgr,
		func(_ context.Context, _ model.Operation) (Outcome, error) {
			return Outcome{}, errors.New("backend unavailable")
		}, nil)

	// One failure breaches the default error-rate threshold, so the
	// executor goes critical and the recovery walk runs.
	res, err := orch.ExecuteWithOversight(context.Background(), "sync", nil, cleanContext(), "cron")
	require.NoError(t, err)
	assert.False(t, res.Success)

	entries, err := lg.Range(context.Background(), nil, nil, ledger.EventRecovery)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "executor", entries[0].Summary.Component)
	assert.Equal(t, "recovered", entries[0].Summary.Outcome)
	assert.Equal(t, []string{resilience.StrategyRetryWithBackoff, resilience.StrategyFailover}, entries[0].Summary.Strategies)

	report := mgr.Report()
	assert.Equal(t, uint64(1), report.Recoveries)
	assert.Equal(t, report, orch.SystemHealth().Resilience)
}

func TestHealthyExecutorFailurePathStaysTwoEntries(t *testing.T) {
	// Recovery runs only on a critical executor: an approved, successful
	// execution with a wired manager appends exactly the decision and
	// operation entries.
	lg, err := ledger.Open(context.Background(), ledger.NewMemoryStore())
	require.NoError(t, err)
	engine := oversight.New(policy.NewEvaluator(model.SeverityHigh), impact.NewAssessor(impact.DefaultCutoffs()), lg, nil)
	mgr := resilience.New(lg, nil, resilience.StrategyRunnerFunc(func(_ context.Context, _, _, _ string) error {
		return nil
	}), nil, nil)
	orch := New(engine, lg, health.NewMonitor(0, health.Thresholds{}), nil, mgr,
		func(_ context.Context, _ model.Operation) (Outcome, error) {
			return Outcome{Success: true}, nil
		}, nil)

	_, err = orch.ExecuteWithOversight(context.Background(), "export", nil, cleanContext(), "cron")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), lg.Len())
	assert.Equal(t, resilience.Report{}, mgr.Report())
}

func TestEmptyNameValidationLogsNothing(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orch.ExecuteWithOversight(context.Background(), "", nil, cleanContext(), "x")
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, uint64(0), f.ledger.Len())
	assert.Equal(t, 0, *f.executed)
}

func TestOutcomeFeedsLearner(t *testing.T) {
	f := newFixture(t, nil)

	for i := 0; i < 3; i++ {
		_, err := f.orch.ExecuteWithOversight(context.Background(), "export_metrics", nil, cleanContext(), "scheduler")
		require.NoError(t, err)
	}

	perf := f.learner.Performance("export_metrics")
	assert.Equal(t, 3, perf.Samples)
	assert.Equal(t, 1.0, perf.SuccessRate)
}

func TestRecordAccessAppendsAccessEntry(t *testing.T) {
	f := newFixture(t, nil)

	entry, err := f.orch.RecordAccess(context.Background(), "reports/q3", "analyst", "read", true)
	require.NoError(t, err)
	assert.Equal(t, ledger.EventAccess, entry.EventType)
	assert.True(t, entry.Summary.Granted)

	entries, err := f.ledger.Range(context.Background(), nil, nil, ledger.EventAccess)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "reports/q3", entries[0].Summary.Resource)
}

func TestSystemHealthAggregates(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orch.ExecuteWithOversight(context.Background(), "export_metrics", nil, cleanContext(), "scheduler")
	require.NoError(t, err)

	sh := f.orch.SystemHealth()
	assert.Equal(t, uint64(2), sh.LedgerEntries)
	assert.Equal(t, uint64(1), sh.Oversight.Decisions)
	assert.Contains(t, sh.Components, "executor")
	assert.Equal(t, uint64(1), sh.Learning.Observations)
}

func TestComplianceReport(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orch.ExecuteWithOversight(context.Background(), "export_metrics", nil, cleanContext(), "scheduler")
	require.NoError(t, err)
	blocked := cleanContext()
	blocked[model.KeyContainsPersonalData] = true
	_, err = f.orch.ExecuteWithOversight(context.Background(), "export_users", nil, blocked, "scheduler")
	require.NoError(t, err)

	report, err := f.orch.ComplianceReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), report.Decisions)
	assert.Equal(t, uint64(1), report.Approvals)
	assert.Equal(t, 0.5, report.ApprovalRate)
	assert.Equal(t, 2, report.EntriesByType["decision"])
	assert.Equal(t, 2, report.EntriesByType["operation"])
	assert.True(t, report.ChainIntegrity.Valid)
	require.NotNil(t, report.PeriodStart)
	require.NotNil(t, report.PeriodEnd)
	assert.False(t, report.PeriodEnd.Before(*report.PeriodStart))
}
