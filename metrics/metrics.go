// Package metrics holds the Prometheus collectors of the scoring service. A
// nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "playoff_scoring"

// Outcomes of a bracket propagation.
const (
	OutcomeAdvanced   = "advanced"
	OutcomeTie        = "tie"
	OutcomeUnresolved = "unresolved"
	OutcomeCleared    = "cleared"
	OutcomeRejected   = "rejected"
)

type Metrics struct {
	scoreWrites         *prometheus.CounterVec
	propagations        *prometheus.CounterVec
	downstreamConflicts prometheus.Counter
	summarizeDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_writes_total",
			Help:      "Performance score writes by operation and result.",
		}, []string{"op", "result"}),
		propagations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bracket_propagations_total",
			Help:      "Bracket slot updates caused by score mutations, by outcome.",
		}, []string{"outcome"}),
		downstreamConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downstream_conflicts_total",
			Help:      "Score mutations rejected because later playoff rounds were already scored.",
		}),
		summarizeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summarize_duration_seconds",
			Help:      "Duration of batch recomputation and summarization.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	reg.MustRegister(m.scoreWrites, m.propagations, m.downstreamConflicts, m.summarizeDuration)
	return m
}

func (m *Metrics) ScoreWrite(op, result string) {
	if m == nil {
		return
	}
	m.scoreWrites.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Propagation(outcome string) {
	if m == nil {
		return
	}
	m.propagations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DownstreamConflict() {
	if m == nil {
		return
	}
	m.downstreamConflicts.Inc()
}

// ObserveStage records the time since start for a summarizer stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.summarizeDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
