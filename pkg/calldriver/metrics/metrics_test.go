package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TicketsClassified("rule", 3)
	m.TicketsClassified("rule", 2)
	m.TicketsClassified("other", 0)
	m.Round("partition", 4, 0.1)
	m.LabelAttempt("openai", "ok", 0.2)
	m.LabelAttempt("openai", "parse_error", 0.1)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.ticketsClassified.WithLabelValues("rule")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reductionRounds.WithLabelValues("partition")))
	assert.Equal(t, 0.1, testutil.ToFloat64(m.otherFraction))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.labelAttempts.WithLabelValues("openai", "parse_error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.labelAttempts))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TicketsClassified("rule", 1)
		m.Round("density", 1, 0.5)
		m.LabelAttempt("local", "ok", 0)
	})
}

func TestNewWithoutRegistry(t *testing.T) {
	// Two instances must not collide on registration.
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
