// Package health classifies component health from a bounded sliding
// window of metric samples. Classification is deterministic from the
// retained window alone; evicted samples stop influencing the state.
package health

import (
	"sort"
	"sync"
	"time"
)

// State is the health classification for one component.
type State string

const (
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded"
	StateCritical State = "critical"
	StateUnknown  State = "unknown"
)

// Sample is one metrics observation for a component.
type Sample struct {
	Component string             `json:"component"`
	Metrics   map[string]float64 `json:"metrics"`
	Timestamp time.Time          `json:"timestamp"`
}

// Status is the classification derived from a component's window.
type Status struct {
	Component           string   `json:"component"`
	State               State    `json:"state"`
	ContributingMetrics []string `json:"contributing_metrics,omitempty"`
	Samples             int      `json:"samples"`
}

// Thresholds configure classification. Hard thresholds mark any single
// breaching sample critical; SlopeCutoff is the per-step worsening of a
// metric's trend that marks the component degraded.
type Thresholds struct {
	MinAvailability float64
	MaxErrorRate    float64
	SlopeCutoff     float64
}

// DefaultThresholds returns the built-in classification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{MinAvailability: 0.5, MaxErrorRate: 0.5, SlopeCutoff: 0.05}
}

// Metric names with hard thresholds.
const (
	MetricAvailability = "availability"
	MetricErrorRate    = "error_rate"
)

// DefaultWindow is the number of samples retained per component.
const DefaultWindow = 20

// Monitor tracks per-component sample windows. Samples for the same
// component are serialized; different components update concurrently.
type Monitor struct {
	window     int
	thresholds Thresholds

	mu         sync.RWMutex
	components map[string]*componentWindow
}

type componentWindow struct {
	mu      sync.Mutex
	samples []Sample
	status  Status
}

// NewMonitor creates a Monitor. window <= 0 falls back to
// DefaultWindow; zero-value thresholds fall back to the defaults.
func NewMonitor(window int, thresholds Thresholds) *Monitor {
	if window <= 0 {
		window = DefaultWindow
	}
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &Monitor{
		window:     window,
		thresholds: thresholds,
		components: make(map[string]*componentWindow),
	}
}

// Record appends a sample to the component's window, evicting the
// oldest sample when full, and returns the resulting status.
func (m *Monitor) Record(s Sample) Status {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}

	cw := m.component(s.Component)
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.samples = append(cw.samples, s)
	if len(cw.samples) > m.window {
		cw.samples = cw.samples[1:]
	}
	cw.status = m.classify(s.Component, cw.samples)
	return cw.status
}

// Status returns the latest classification for the component, or an
// unknown status if it was never sampled.
func (m *Monitor) Status(component string) Status {
	m.mu.RLock()
	cw, ok := m.components[component]
	m.mu.RUnlock()
	if !ok {
		return Status{Component: component, State: StateUnknown}
	}
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.status
}

// Snapshot returns the latest status for every sampled component.
func (m *Monitor) Snapshot() map[string]Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.components))
	for name := range m.components {
		names = append(names, name)
	}
	m.mu.RUnlock()

	out := make(map[string]Status, len(names))
	for _, name := range names {
		out[name] = m.Status(name)
	}
	return out
}

func (m *Monitor) component(name string) *componentWindow {
	m.mu.RLock()
	cw, ok := m.components[name]
	m.mu.RUnlock()
	if ok {
		return cw
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cw, ok = m.components[name]; ok {
		return cw
	}
	cw = &componentWindow{status: Status{Component: name, State: StateUnknown}}
	m.components[name] = cw
	return cw
}

// classify derives the state from the retained window only.
func (m *Monitor) classify(component string, window []Sample) Status {
	st := Status{Component: component, Samples: len(window)}
	if len(window) == 0 {
		st.State = StateUnknown
		return st
	}

	// Hard thresholds: any retained breaching sample is critical.
	for _, s := range window {
		if v, ok := s.Metrics[MetricAvailability]; ok && v < m.thresholds.MinAvailability {
			st.State = StateCritical
			st.ContributingMetrics = appendUnique(st.ContributingMetrics, MetricAvailability)
		}
		if v, ok := s.Metrics[MetricErrorRate]; ok && v > m.thresholds.MaxErrorRate {
			st.State = StateCritical
			st.ContributingMetrics = appendUnique(st.ContributingMetrics, MetricErrorRate)
		}
	}
	if st.State == StateCritical {
		return st
	}

	// Trend: a metric whose slope worsens past the cutoff degrades the
	// component. Availability worsens downward, everything else upward.
	for _, name := range metricNames(window) {
		slope := trendSlope(window, name)
		worsening := slope > m.thresholds.SlopeCutoff
		if name == MetricAvailability {
			worsening = slope < -m.thresholds.SlopeCutoff
		}
		if worsening {
			st.State = StateDegraded
			st.ContributingMetrics = appendUnique(st.ContributingMetrics, name)
		}
	}
	if st.State == "" {
		st.State = StateHealthy
	}
	return st
}

// trendSlope fits a least-squares line over the metric's values in
// sample order and returns the per-step slope. Fewer than two points
// have no trend.
func trendSlope(window []Sample, metric string) float64 {
	var xs, ys []float64
	for i, s := range window {
		if v, ok := s.Metrics[metric]; ok {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// metricNames returns every metric seen in the window, sorted so the
// contributing-metric order in a Status is stable across runs.
func metricNames(window []Sample) []string {
	seen := map[string]bool{}
	var names []string
	for _, s := range window {
		for name := range s.Metrics {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
