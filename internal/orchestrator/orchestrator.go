// Package orchestrator is the top-level entry point: it submits
// operations to oversight, runs approved ones through the injected
// executor, and feeds outcomes back into learning and health.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opgate/opgate/internal/health"
	"github.com/opgate/opgate/internal/learner"
	"github.com/opgate/opgate/internal/ledger"
	"github.com/opgate/opgate/internal/model"
	"github.com/opgate/opgate/internal/oversight"
	"github.com/opgate/opgate/internal/resilience"
)

// executorComponent names the execution capability in health samples
// and recovery entries.
const executorComponent = "executor"

// Outcome is what an Executor reports for one executed operation.
type Outcome struct {
	Success bool               `json:"success"`
	Detail  string             `json:"detail,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Executor runs an approved operation. The orchestrator never invokes
// it for blocked operations.
type Executor func(ctx context.Context, op model.Operation) (Outcome, error)

// Result is the outcome of one overseen execution.
type Result struct {
	Success  bool           `json:"success"`
	Decision model.Decision `json:"decision"`
	AuditRef string         `json:"audit_ref"`
	Detail   string         `json:"detail,omitempty"`
}

// Orchestrator wires oversight, execution, learning, and health into
// one pipeline. Safe for concurrent use.
type Orchestrator struct {
	engine     *oversight.Engine
	ledger     *ledger.Ledger
	monitor    *health.Monitor
	learner    *learner.Learner
	resilience *resilience.Manager
	executor   Executor
	logger     *zap.Logger
}

// New creates an Orchestrator. A nil logger is replaced with a no-op
// logger; monitor, learner, and the resilience manager may be nil when
// those loops are unused.
func New(engine *oversight.Engine, lg *ledger.Ledger, monitor *health.Monitor, lrn *learner.Learner, res *resilience.Manager, executor Executor, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		engine:     engine,
		ledger:     lg,
		monitor:    monitor,
		learner:    lrn,
		resilience: res,
		executor:   executor,
		logger:     logger,
	}
}

// ExecuteWithOversight gates one operation. Blocked operations are
// logged and returned without the executor ever running; approved
// operations run through the executor and their outcome is recorded.
// Every path through this method appends exactly two ledger entries:
// the decision and the operation outcome.
func (o *Orchestrator) ExecuteWithOversight(ctx context.Context, name string, payload any, opCtx model.Context, actor string) (Result, error) {
	if name == "" {
		return Result{}, &model.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if opCtx == nil {
		opCtx = model.Context{}
	}

	op := model.Operation{
		ID:      uuid.NewString(),
		Name:    name,
		Payload: payload,
		Context: opCtx,
	}

	decision, err := o.engine.Oversee(ctx, op)
	if err != nil {
		return Result{}, err
	}

	if !decision.Approved {
		entry, err := o.ledger.Append(ctx, ledger.Draft{
			EventType: ledger.EventOperation,
			Summary: ledger.Summary{
				OperationID:   op.ID,
				OperationName: op.Name,
				Actor:         actor,
				Outcome:       "blocked",
				Reason:        decision.Guidance,
				RiskLevel:     string(decision.RiskLevel),
			},
		})
		if err != nil {
			return Result{}, err
		}
		o.logger.Info("operation blocked",
			zap.String("operation", op.Name),
			zap.String("operation_id", op.ID),
			zap.Int("violations", len(decision.Violations)))
		return Result{Success: false, Decision: decision, AuditRef: entry.Hash, Detail: decision.Guidance}, nil
	}

	outcome, execErr := o.executor(ctx, op)
	if execErr != nil {
		outcome = Outcome{Success: false, Detail: execErr.Error()}
	}

	if o.learner != nil {
		o.learner.MonitorPerformance(op.Name, outcome.Metrics, outcome.Success)
	}
	if o.monitor != nil {
		st := o.monitor.Record(health.Sample{
			Component: executorComponent,
			Metrics:   executionMetrics(outcome),
			Timestamp: time.Now().UTC(),
		})
		// A critical executor triggers a recovery walk. Exhaustion is
		// an outcome recorded in the ledger, not a failure of this call.
		if o.resilience != nil && !outcome.Success && st.State == health.StateCritical {
			if _, rerr := o.resilience.RecoverFromFailure(ctx, executorComponent, outcome.Detail); rerr != nil {
				o.logger.Warn("executor recovery",
					zap.String("operation_id", op.ID),
					zap.Error(rerr))
			}
		}
	}

	result := "executed"
	if !outcome.Success {
		result = "failed"
	}
	entry, err := o.ledger.Append(ctx, ledger.Draft{
		EventType: ledger.EventOperation,
		Summary: ledger.Summary{
			OperationID:   op.ID,
			OperationName: op.Name,
			Actor:         actor,
			Outcome:       result,
			Reason:        outcome.Detail,
			RiskLevel:     string(decision.RiskLevel),
		},
	})
	if err != nil {
		return Result{}, err
	}

	o.logger.Info("operation executed",
		zap.String("operation", op.Name),
		zap.String("operation_id", op.ID),
		zap.Bool("success", outcome.Success))
	return Result{Success: outcome.Success, Decision: decision, AuditRef: entry.Hash, Detail: outcome.Detail}, nil
}

// executionMetrics folds an outcome into a health sample.
func executionMetrics(out Outcome) map[string]float64 {
	metrics := map[string]float64{health.MetricErrorRate: 0}
	if !out.Success {
		metrics[health.MetricErrorRate] = 1
	}
	for k, v := range out.Metrics {
		metrics[k] = v
	}
	return metrics
}

// RecordAccess appends an access-type audit entry for a resource
// access check.
func (o *Orchestrator) RecordAccess(ctx context.Context, resource, accessor, action string, granted bool) (ledger.Entry, error) {
	return o.ledger.Append(ctx, ledger.Draft{
		EventType: ledger.EventAccess,
		Summary: ledger.Summary{
			Resource: resource,
			Accessor: accessor,
			Action:   action,
			Granted:  granted,
		},
	})
}

// SystemHealth is the aggregate health view.
type SystemHealth struct {
	Components    map[string]health.Status `json:"components"`
	LedgerEntries uint64                   `json:"ledger_entries"`
	Oversight     oversight.Summary        `json:"oversight"`
	Learning      learner.Summary          `json:"learning"`
	Resilience    resilience.Report        `json:"resilience"`
}

// SystemHealth aggregates the latest component statuses with ledger
// and module summaries.
func (o *Orchestrator) SystemHealth() SystemHealth {
	sh := SystemHealth{
		Components:    map[string]health.Status{},
		LedgerEntries: o.ledger.Len(),
		Oversight:     o.engine.Summary(),
	}
	if o.monitor != nil {
		sh.Components = o.monitor.Snapshot()
	}
	if o.learner != nil {
		sh.Learning = o.learner.Summary()
	}
	if o.resilience != nil {
		sh.Resilience = o.resilience.Report()
	}
	return sh
}

// ComplianceReport aggregates decision activity and chain integrity.
type ComplianceReport struct {
	Decisions      uint64              `json:"decisions"`
	Approvals      uint64              `json:"approvals"`
	ApprovalRate   float64             `json:"approval_rate"`
	EntriesByType  map[string]int      `json:"entries_by_type"`
	PeriodStart    *time.Time          `json:"period_start,omitempty"`
	PeriodEnd      *time.Time          `json:"period_end,omitempty"`
	ChainIntegrity ledger.VerifyResult `json:"chain_integrity"`
}

// ComplianceReport walks the ledger and verifies the chain.
func (o *Orchestrator) ComplianceReport(ctx context.Context) (ComplianceReport, error) {
	entries, err := o.ledger.Range(ctx, nil, nil, "")
	if err != nil {
		return ComplianceReport{}, err
	}
	verify, err := o.ledger.VerifyIntegrity(ctx)
	if err != nil {
		return ComplianceReport{}, err
	}

	summary := o.engine.Summary()
	report := ComplianceReport{
		Decisions:      summary.Decisions,
		Approvals:      summary.Approvals,
		ApprovalRate:   summary.ApprovalRate,
		EntriesByType:  map[string]int{},
		ChainIntegrity: verify,
	}
	for _, e := range entries {
		report.EntriesByType[string(e.EventType)]++
	}
	if len(entries) > 0 {
		start := entries[0].Timestamp
		end := entries[len(entries)-1].Timestamp
		report.PeriodStart = &start
		report.PeriodEnd = &end
	}
	return report, nil
}
