package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/weft/pkg/domain"
)

// Metrics holds the engine collectors.
type Metrics struct {
	NodeStatus      *prometheus.CounterVec
	AdapterDuration *prometheus.HistogramVec
	BackgroundTasks prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		NodeStatus: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weft_node_status_total",
				Help: "Node status transitions by node type and status.",
			},
			[]string{"node_type", "status"},
		),
		AdapterDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weft_adapter_duration_seconds",
				Help:    "Duration of capability adapter calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"node_type", "outcome"},
		),
		BackgroundTasks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "weft_background_tasks",
				Help: "Supervised tasks currently in flight.",
			},
		),
		gatherer: reg,
	}
	for _, c := range []prometheus.Collector{m.NodeStatus, m.AdapterDuration, m.BackgroundTasks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks records engine events into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStatus: func(_ context.Context, e *domain.StatusEvent) {
			m.NodeStatus.WithLabelValues(e.NodeType, string(e.Status)).Inc()
		},
		OnAdapterReturn: func(_ context.Context, e *domain.AdapterEvent) {
			outcome := "ok"
			if e.IsError {
				outcome = "error"
			}
			m.AdapterDuration.WithLabelValues(e.NodeType, outcome).Observe(e.Duration.Seconds())
		},
		OnTaskSpawn: func(_ context.Context, e *domain.TaskEvent) {
			m.BackgroundTasks.Set(float64(e.Outstanding))
		},
		OnTaskDone: func(_ context.Context, e *domain.TaskEvent) {
			m.BackgroundTasks.Set(float64(e.Outstanding))
		},
	}
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
