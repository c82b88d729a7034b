package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ActionFinished(OutcomeSuccess)
	m.ActionFinished(OutcomeSuccess)
	m.ActionFinished(OutcomeSkipped)
	m.TaskFinished(OutcomeFailed)
	m.Retried()
	m.ObserveRun("subprocess", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.actions.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasks.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries))
	assert.Equal(t, 1, testutil.CollectAndCount(m.actionDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ActionFinished(OutcomeFailed)
		m.TaskFinished(OutcomeSuccess)
		m.Retried()
		m.ObserveRun("function", time.Second)
	})
}
