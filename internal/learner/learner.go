// Package learner accumulates per-operation performance history,
// derives trends, proposes strategy changes, and holds consolidated
// knowledge entries.
package learner

import (
	"sync"
	"time"
)

// Trend classifies the direction of an operation's success rate.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendFlat      Trend = "flat"
	TrendDegrading Trend = "degrading"
)

// PerformanceData is the aggregate an adaptation decision reads.
// Metrics holds the per-key mean over the retained window.
type PerformanceData struct {
	Operation   string             `json:"operation"`
	Samples     int                `json:"samples"`
	SuccessRate float64            `json:"success_rate"`
	Trend       Trend              `json:"trend"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// TrendSummary is returned from each MonitorPerformance call.
type TrendSummary struct {
	Operation   string             `json:"operation"`
	Samples     int                `json:"samples"`
	SuccessRate float64            `json:"success_rate"`
	Trend       Trend              `json:"trend"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// KnowledgeEntry is one consolidated lesson. Append-only per category,
// insertion order preserved.
type KnowledgeEntry struct {
	Category   string    `json:"category"`
	Experience string    `json:"experience"`
	Learning   string    `json:"learning"`
	Timestamp  time.Time `json:"timestamp"`
}

// record is one performance observation.
type record struct {
	success bool
	metrics map[string]float64
}

// DefaultWindow is the number of records retained per operation.
const DefaultWindow = 50

// DefaultDegradeThreshold is the success-rate drop between window
// halves that counts as degrading.
const DefaultDegradeThreshold = 0.1

// Learner is the adaptive learning component. Safe for concurrent use.
type Learner struct {
	window           int
	degradeThreshold float64
	candidates       []string

	mu        sync.Mutex
	records   map[string][]record
	knowledge map[string][]KnowledgeEntry
	observed  uint64
	succeeded uint64
}

// Option configures a Learner.
type Option func(*Learner)

// WithWindow sets the per-operation record window.
func WithWindow(n int) Option {
	return func(l *Learner) {
		if n > 0 {
			l.window = n
		}
	}
}

// WithDegradeThreshold sets the success-rate drop that marks a trend
// degrading.
func WithDegradeThreshold(t float64) Option {
	return func(l *Learner) {
		if t > 0 {
			l.degradeThreshold = t
		}
	}
}

// WithCandidates sets the ordered strategy candidates AdaptStrategy
// may propose.
func WithCandidates(c []string) Option {
	return func(l *Learner) { l.candidates = append([]string(nil), c...) }
}

// New creates a Learner with the given options.
func New(opts ...Option) *Learner {
	l := &Learner{
		window:           DefaultWindow,
		degradeThreshold: DefaultDegradeThreshold,
		candidates:       []string{"conservative", "balanced", "aggressive"},
		records:          make(map[string][]record),
		knowledge:        make(map[string][]KnowledgeEntry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MonitorPerformance records one observation for the operation and
// returns the updated trend summary. The per-operation history is
// bounded; the oldest record is evicted when the window is full.
func (l *Learner) MonitorPerformance(op string, metrics map[string]float64, success bool) TrendSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	recs := append(l.records[op], record{success: success, metrics: metrics})
	if len(recs) > l.window {
		recs = recs[1:]
	}
	l.records[op] = recs

	l.observed++
	if success {
		l.succeeded++
	}

	return TrendSummary{
		Operation:   op,
		Samples:     len(recs),
		SuccessRate: successRate(recs),
		Trend:       l.trend(recs),
		Metrics:     meanMetrics(recs),
	}
}

// Performance returns the current aggregate for the operation.
func (l *Learner) Performance(op string) PerformanceData {
	l.mu.Lock()
	defer l.mu.Unlock()
	recs := l.records[op]
	return PerformanceData{
		Operation:   op,
		Samples:     len(recs),
		SuccessRate: successRate(recs),
		Trend:       l.trend(recs),
		Metrics:     meanMetrics(recs),
	}
}

// trend compares the success rate of the newer half of the window
// against the older half.
func (l *Learner) trend(recs []record) Trend {
	if len(recs) < 4 {
		return TrendFlat
	}
	mid := len(recs) / 2
	older := successRate(recs[:mid])
	newer := successRate(recs[mid:])
	switch {
	case newer < older-l.degradeThreshold:
		return TrendDegrading
	case newer > older+l.degradeThreshold:
		return TrendImproving
	default:
		return TrendFlat
	}
}

// meanMetrics averages each metric over the records that report it.
func meanMetrics(recs []record) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, r := range recs {
		for k, v := range r.metrics {
			sums[k] += v
			counts[k]++
		}
	}
	if len(sums) == 0 {
		return nil
	}
	out := make(map[string]float64, len(sums))
	for k, sum := range sums {
		out[k] = sum / float64(counts[k])
	}
	return out
}

func successRate(recs []record) float64 {
	if len(recs) == 0 {
		return 0
	}
	ok := 0
	for _, r := range recs {
		if r.success {
			ok++
		}
	}
	return float64(ok) / float64(len(recs))
}

// AdaptStrategy proposes a strategy for the observed performance. Pure
// and idempotent: the same inputs always produce the same output, and
// a non-degrading trend returns current unchanged. Constraints name
// strategies that must not be proposed.
func (l *Learner) AdaptStrategy(current string, perf PerformanceData, constraints []string) string {
	if perf.Trend != TrendDegrading {
		return current
	}
	excluded := make(map[string]bool, len(constraints)+1)
	excluded[current] = true
	for _, c := range constraints {
		excluded[c] = true
	}
	for _, candidate := range l.candidates {
		if !excluded[candidate] {
			return candidate
		}
	}
	return current
}

// ConsolidateKnowledge appends one lesson under the category.
func (l *Learner) ConsolidateKnowledge(experience, learning, category string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.knowledge[category] = append(l.knowledge[category], KnowledgeEntry{
		Category:   category,
		Experience: experience,
		Learning:   learning,
		Timestamp:  time.Now().UTC(),
	})
}

// RetrieveKnowledge returns the category's entries in insertion order.
// The returned slice is a copy.
func (l *Learner) RetrieveKnowledge(category string) []KnowledgeEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.knowledge[category]
	out := make([]KnowledgeEntry, len(entries))
	copy(out, entries)
	return out
}

// Categories returns the known knowledge categories.
func (l *Learner) Categories() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.knowledge))
	for c := range l.knowledge {
		out = append(out, c)
	}
	return out
}

// Summary aggregates learner activity.
type Summary struct {
	Observations uint64  `json:"observations"`
	SuccessRate  float64 `json:"success_rate"`
	Operations   int     `json:"operations"`
	Categories   int     `json:"categories"`
}

// Summary returns totals across all operations and categories.
func (l *Learner) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Summary{
		Observations: l.observed,
		Operations:   len(l.records),
		Categories:   len(l.knowledge),
	}
	if l.observed > 0 {
		s.SuccessRate = float64(l.succeeded) / float64(l.observed)
	}
	return s
}
