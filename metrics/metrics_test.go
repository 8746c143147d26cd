package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums the counter samples of family name whose labels contain want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := make(map[string]string)
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			matched := true
			for k, v := range want {
				if labels[k] != v {
					matched = false
				}
			}
			if matched {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ScoreWrite("upsert", "ok")
	m.ScoreWrite("upsert", "ok")
	m.ScoreWrite("delete", "conflict")
	m.Propagation(OutcomeAdvanced)
	m.DownstreamConflict()
	m.ObserveStage("recompute", time.Now())

	assert.Equal(t, 2.0, counterValue(t, reg, "playoff_scoring_score_writes_total", map[string]string{"op": "upsert", "result": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "playoff_scoring_score_writes_total", map[string]string{"op": "delete"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "playoff_scoring_bracket_propagations_total", map[string]string{"outcome": OutcomeAdvanced}))
	assert.Equal(t, 1.0, counterValue(t, reg, "playoff_scoring_downstream_conflicts_total", nil))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 4)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ScoreWrite("upsert", "ok")
		m.Propagation(OutcomeCleared)
		m.DownstreamConflict()
		m.ObserveStage("summarize", time.Now())
	})
}
