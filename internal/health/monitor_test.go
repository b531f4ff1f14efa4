package health

import (
	"fmt"
	"sync"
	"testing"
)

func record(t *testing.T, m *Monitor, component string, metrics map[string]float64) Status {
	t.Helper()
	return m.Record(Sample{Component: component, Metrics: metrics})
}

func TestUnknownBeforeFirstSample(t *testing.T) {
	m := NewMonitor(0, Thresholds{})
	st := m.Status("api")
	if st.State != StateUnknown {
		t.Fatalf("state = %s, want unknown", st.State)
	}
}

func TestSteadyMetricsAreHealthy(t *testing.T) {
	m := NewMonitor(0, Thresholds{})
	var st Status
	for i := 0; i < 10; i++ {
		st = record(t, m, "api", map[string]float64{
			MetricAvailability: 0.99,
			MetricErrorRate:    0.01,
			"latency_ms":       40,
		})
	}
	if st.State != StateHealthy {
		t.Fatalf("state = %s, want healthy (%v)", st.State, st.ContributingMetrics)
	}
}

func TestSingleBreachIsInstantlyCritical(t *testing.T) {
	m := NewMonitor(0, Thresholds{})
	for i := 0; i < 5; i++ {
		record(t, m, "db", map[string]float64{MetricAvailability: 0.99})
	}
	st := record(t, m, "db", map[string]float64{MetricAvailability: 0.2})
	if st.State != StateCritical {
		t.Fatalf("state = %s, want critical", st.State)
	}
	if len(st.ContributingMetrics) != 1 || st.ContributingMetrics[0] != MetricAvailability {
		t.Fatalf("contributing = %v", st.ContributingMetrics)
	}
}

func TestErrorRateBreachIsCritical(t *testing.T) {
	m := NewMonitor(0, Thresholds{})
	st := record(t, m, "queue", map[string]float64{MetricErrorRate: 0.9})
	if st.State != StateCritical {
		t.Fatalf("state = %s, want critical", st.State)
	}
}

func TestCriticalClearsAfterEviction(t *testing.T) {
	window := 4
	m := NewMonitor(window, Thresholds{})

	record(t, m, "api", map[string]float64{MetricAvailability: 0.1})
	for i := 0; i < window-1; i++ {
		st := record(t, m, "api", map[string]float64{MetricAvailability: 0.99})
		if st.State != StateCritical {
			t.Fatalf("sample %d: state = %s, want critical while breach retained", i, st.State)
		}
	}
	// One more healthy sample pushes the breach out of the window.
	st := record(t, m, "api", map[string]float64{MetricAvailability: 0.99})
	if st.State != StateHealthy {
		t.Fatalf("state after eviction = %s, want healthy", st.State)
	}
}

func TestWorseningTrendIsDegraded(t *testing.T) {
	m := NewMonitor(10, Thresholds{})
	var st Status
	for i := 0; i < 10; i++ {
		st = record(t, m, "api", map[string]float64{"latency_ms": 40 + float64(i)*10})
	}
	if st.State != StateDegraded {
		t.Fatalf("state = %s, want degraded", st.State)
	}
	if len(st.ContributingMetrics) != 1 || st.ContributingMetrics[0] != "latency_ms" {
		t.Fatalf("contributing = %v", st.ContributingMetrics)
	}
}

func TestContributingMetricsAreSorted(t *testing.T) {
	m := NewMonitor(10, Thresholds{})
	var st Status
	for i := 0; i < 10; i++ {
		st = record(t, m, "api", map[string]float64{
			"queue_depth": 5 + float64(i)*3,
			"latency_ms":  40 + float64(i)*10,
		})
	}
	if st.State != StateDegraded {
		t.Fatalf("state = %s, want degraded", st.State)
	}
	want := []string{"latency_ms", "queue_depth"}
	if len(st.ContributingMetrics) != len(want) {
		t.Fatalf("contributing = %v, want %v", st.ContributingMetrics, want)
	}
	for i, name := range want {
		if st.ContributingMetrics[i] != name {
			t.Fatalf("contributing = %v, want sorted %v", st.ContributingMetrics, want)
		}
	}
}

func TestFallingAvailabilityIsDegradedBeforeCritical(t *testing.T) {
	m := NewMonitor(10, Thresholds{})
	var st Status
	for i := 0; i < 10; i++ {
		st = record(t, m, "api", map[string]float64{MetricAvailability: 0.99 - float64(i)*0.052})
	}
	if st.State != StateDegraded {
		t.Fatalf("state = %s, want degraded", st.State)
	}
}

func TestSnapshotCoversAllComponents(t *testing.T) {
	m := NewMonitor(0, Thresholds{})
	record(t, m, "api", map[string]float64{MetricAvailability: 0.99})
	record(t, m, "db", map[string]float64{MetricAvailability: 0.2})

	snap := m.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d components, want 2", len(snap))
	}
	if snap["api"].State != StateHealthy || snap["db"].State != StateCritical {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestComponentsUpdateConcurrently(t *testing.T) {
	m := NewMonitor(0, Thresholds{})

	var wg sync.WaitGroup
	for c := 0; c < 8; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			name := fmt.Sprintf("component-%d", c)
			for i := 0; i < 50; i++ {
				record(t, m, name, map[string]float64{MetricAvailability: 0.99})
			}
		}(c)
	}
	wg.Wait()

	snap := m.Snapshot()
	if len(snap) != 8 {
		t.Fatalf("snapshot has %d components, want 8", len(snap))
	}
	for name, st := range snap {
		if st.State != StateHealthy || st.Samples == 0 {
			t.Fatalf("%s: %+v", name, st)
		}
	}
}
