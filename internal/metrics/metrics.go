// Package metrics holds the per-run Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskflow"

// Outcomes recorded on the action and task counters.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
	OutcomeAbsorbed = "absorbed"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	Registry       *prometheus.Registry
	actions        *prometheus.CounterVec
	tasks          *prometheus.CounterVec
	retries        prometheus.Counter
	actionDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Actions finished, by outcome.",
		}, []string{"outcome"}),
		tasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Tasks finished, by outcome.",
		}, []string{"outcome"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_retries_total",
			Help:      "Repeat attempts after a failed validator.",
		}),
		actionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Executor run time, by action type.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
		}, []string{"type"}),
	}
}

func (m *Metrics) ActionFinished(outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TaskFinished(outcome string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Retried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) ObserveRun(actionType string, d time.Duration) {
	if m == nil {
		return
	}
	m.actionDuration.WithLabelValues(actionType).Observe(d.Seconds())
}

// Serve exposes the registry on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
