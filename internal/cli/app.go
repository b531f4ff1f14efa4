package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opgate/opgate/internal/config"
	"github.com/opgate/opgate/internal/health"
	"github.com/opgate/opgate/internal/impact"
	"github.com/opgate/opgate/internal/learner"
	"github.com/opgate/opgate/internal/ledger"
	"github.com/opgate/opgate/internal/model"
	"github.com/opgate/opgate/internal/orchestrator"
	"github.com/opgate/opgate/internal/oversight"
	"github.com/opgate/opgate/internal/policy"
	"github.com/opgate/opgate/internal/resilience"
)

// app wires the full stack from configuration. Every command builds one.
type app struct {
	cfg        *config.Config
	cfgHash    string
	logger     *zap.Logger
	store      ledger.Store
	ledger     *ledger.Ledger
	engine     *oversight.Engine
	monitor    *health.Monitor
	learner    *learner.Learner
	resilience *resilience.Manager
	orch       *orchestrator.Orchestrator
}

// newApp loads configuration and assembles the components. The executor
// runs approved operations; commands that never execute pass ackExecutor.
func newApp(ctx context.Context, executor orchestrator.Executor) (*app, error) {
	cfg, hash, err := config.LoadWithHash(cfgPath)
	if err != nil {
		return nil, err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	logger.Info("configuration loaded", zap.String("config_hash", hash))

	store, err := openStore(cfg.Ledger)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	lg, err := ledger.Open(ctx, store)
	if err != nil {
		store.Close()
		logger.Sync()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	principles, err := cfg.Principles()
	if err != nil {
		store.Close()
		logger.Sync()
		return nil, err
	}

	engine := oversight.New(
		policy.NewEvaluator(model.Severity(cfg.Oversight.BlockingSeverity)),
		impact.NewAssessor(impact.Cutoffs{
			NoneMax:     cfg.Impact.NoneMax,
			LowMax:      cfg.Impact.LowMax,
			ModerateMax: cfg.Impact.ModerateMax,
		}),
		lg,
		principles,
	)
	monitor := health.NewMonitor(cfg.Health.Window, health.Thresholds{
		MinAvailability: cfg.Health.MinAvailability,
		MaxErrorRate:    cfg.Health.MaxErrorRate,
		SlopeCutoff:     cfg.Health.SlopeCutoff,
	})
	lrn := learner.New(
		learner.WithWindow(cfg.Learner.Window),
		learner.WithDegradeThreshold(cfg.Learner.DegradeThreshold),
		learner.WithCandidates(cfg.Learner.StrategyCandidates),
	)
	res := resilience.New(lg, lrn, recoveryRunner(monitor), cfg.Resilience.Strategies, logger)

	return &app{
		cfg:        cfg,
		cfgHash:    hash,
		logger:     logger,
		store:      store,
		ledger:     lg,
		engine:     engine,
		monitor:    monitor,
		learner:    lrn,
		resilience: res,
		orch:       orchestrator.New(engine, lg, monitor, lrn, res, executor, logger),
	}, nil
}

// retryBackoff is how long the retry strategy waits before re-probing
// component health.
const retryBackoff = 100 * time.Millisecond

// recoveryRunner implements the recovery strategies for a
// single-process deployment: retry re-probes the component's health
// after a backoff, failover has no standby target, and graceful
// degradation always succeeds because the gate keeps deciding without
// the component.
func recoveryRunner(monitor *health.Monitor) resilience.StrategyRunnerFunc {
	return func(ctx context.Context, strategy, component, _ string) error {
		switch strategy {
		case resilience.StrategyRetryWithBackoff:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
			}
			if monitor.Status(component).State == health.StateCritical {
				return fmt.Errorf("%s still critical after backoff", component)
			}
			return nil
		case resilience.StrategyFailover:
			return fmt.Errorf("no failover target for %s", component)
		case resilience.StrategyDegradeGracefully:
			return nil
		default:
			return fmt.Errorf("unknown recovery strategy %q", strategy)
		}
	}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close ledger store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// openStore selects the ledger backend from configuration.
func openStore(cfg config.Ledger) (ledger.Store, error) {
	switch cfg.Backend {
	case "memory":
		return ledger.NewMemoryStore(), nil
	case "file":
		return ledger.OpenFileStore(cfg.Path)
	case "sqlite":
		return ledger.OpenSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// ackExecutor acknowledges approved operations without side effects.
// The gate decides; the caller carries out the work.
func ackExecutor(_ context.Context, _ model.Operation) (orchestrator.Outcome, error) {
	return orchestrator.Outcome{Success: true, Detail: "acknowledged"}, nil
}

// parseContext decodes a JSON object into an operation context.
func parseContext(raw string) (model.Context, error) {
	if raw == "" {
		return model.Context{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("parse context: %w", err)
	}
	return model.Context(m), nil
}

// printJSON pretty-prints v to stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
