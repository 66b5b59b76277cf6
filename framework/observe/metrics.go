// Package observe exports container lifecycle events as Prometheus metrics.
package observe

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/km-arc/go-spritze/framework/container"
)

// Metrics implements container.Observer on Prometheus collectors.
//
//	reg := prometheus.NewRegistry()
//	m, _ := observe.NewMetrics(reg, "app")
//	r := container.New(container.WithObserver(m))
type Metrics struct {
	factoryTotal    *prometheus.CounterVec
	factoryErrors   *prometheus.CounterVec
	factoryDuration *prometheus.HistogramVec
	teardownTotal   *prometheus.CounterVec
	teardownErrors  *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace and registers them on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	labels := []string{"registry", "type", "scope"}

	m := &Metrics{
		factoryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "factory_invocations_total",
			Help:      "Total number of provider factory invocations",
		}, labels),
		factoryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "factory_errors_total",
			Help:      "Total number of provider factory failures",
		}, labels),
		factoryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "factory_duration_seconds",
			Help:      "Provider factory latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, labels),
		teardownTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "teardowns_total",
			Help:      "Total number of resource releases",
		}, labels),
		teardownErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "teardown_errors_total",
			Help:      "Total number of failed resource releases",
		}, labels),
	}

	for _, c := range []prometheus.Collector{
		m.factoryTotal, m.factoryErrors, m.factoryDuration, m.teardownTotal, m.teardownErrors,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register container metrics: %w", err)
		}
	}
	return m, nil
}

// FactoryInvoked implements container.Observer.
func (m *Metrics) FactoryInvoked(e container.FactoryEvent) {
	lv := []string{e.Registry, e.Type.String(), e.Scope.String()}
	m.factoryTotal.WithLabelValues(lv...).Inc()
	m.factoryDuration.WithLabelValues(lv...).Observe(e.Duration.Seconds())
	if e.Err != nil {
		m.factoryErrors.WithLabelValues(lv...).Inc()
	}
}

// TeardownRan implements container.Observer.
func (m *Metrics) TeardownRan(e container.TeardownEvent) {
	lv := []string{e.Registry, e.Type.String(), e.Scope.String()}
	m.teardownTotal.WithLabelValues(lv...).Inc()
	if e.Err != nil {
		m.teardownErrors.WithLabelValues(lv...).Inc()
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

var _ container.Observer = (*Metrics)(nil)
