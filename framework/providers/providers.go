// Package providers holds the container modules that wire the framework's
// own services: configuration, logging, metrics, routing and request IDs.
package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/km-arc/go-spritze/framework/config"
	"github.com/km-arc/go-spritze/framework/container"
	gohttp "github.com/km-arc/go-spritze/framework/http"
	"github.com/km-arc/go-spritze/framework/observe"
	"github.com/km-arc/go-spritze/framework/routing"
)

// ── ConfigModule ──────────────────────────────────────────────────────────────

// ConfigModule provides *config.Config for the life of the registry. A nil
// Config is loaded from EnvFiles on first use.
type ConfigModule struct {
	Config   *config.Config
	EnvFiles []string
}

func (m ConfigModule) Register(r *container.Registry) error {
	if m.Config != nil {
		return r.Instance(m.Config)
	}
	envFiles := m.EnvFiles
	return r.Provide(container.Process, container.Value(func() *config.Config {
		return config.Load(envFiles...)
	}))
}

// ── LoggerModule ──────────────────────────────────────────────────────────────

// LoggerModule provides *zap.Logger. The logger is flushed when the registry
// closes. A nil Logger is built from the Log section of *config.Config.
type LoggerModule struct {
	Logger *zap.Logger
}

func (m LoggerModule) Register(r *container.Registry) error {
	if m.Logger != nil {
		l := m.Logger
		return r.Provide(container.Process, container.Resource(func() (*zap.Logger, container.Release) {
			return l, syncLogger(l)
		}))
	}
	return r.Provide(container.Process, container.Resource(func(cfg *config.Config) (*zap.Logger, container.Release, error) {
		l, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, nil, err
		}
		return l, syncLogger(l), nil
	}))
}

// syncLogger flushes buffered entries. Sync reports spurious errors for
// stdout and stderr on most platforms, so its result is dropped.
func syncLogger(l *zap.Logger) container.Release {
	return func() error {
		_ = l.Sync()
		return nil
	}
}

// ── MetricsModule ─────────────────────────────────────────────────────────────

// MetricsModule provides the prometheus.Gatherer served on the metrics
// endpoint.
type MetricsModule struct {
	Gatherer prometheus.Gatherer
}

func (m MetricsModule) Register(r *container.Registry) error {
	g := m.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return container.InstanceAs[prometheus.Gatherer](r, g)
}

// ── RouterModule ──────────────────────────────────────────────────────────────

// RouterModule provides *routing.Router with access logging, request IDs
// and, when a gatherer is registered, a metrics endpoint at MetricsPath.
type RouterModule struct {
	Fields      *container.FieldStore
	MetricsPath string // default: /metrics
}

func (m RouterModule) Register(r *container.Registry) error {
	fields := m.Fields
	if fields == nil {
		fields = container.DefaultFields()
	}
	path := m.MetricsPath
	if path == "" {
		path = "/metrics"
	}

	return r.Provide(container.Process, container.Value(func(l *zap.Logger, g prometheus.Gatherer) *routing.Router {
		router := routing.New(routing.WithLogger(l))
		router.Middleware(gohttp.AssignRequestID(fields))
		router.Handle(path, observe.Handler(g))
		return router
	}))
}

// ── RequestModule ─────────────────────────────────────────────────────────────

// RequestModule makes gohttp.RequestID injectable.
type RequestModule struct{}

func (RequestModule) Register(r *container.Registry) error {
	return container.BindField(r, gohttp.RequestIDField)
}
