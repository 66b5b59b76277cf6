// Package app assembles the framework into a runnable application: one
// registry with the core modules installed, the injector bound to it and
// an HTTP server with graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/km-arc/go-spritze/framework/config"
	"github.com/km-arc/go-spritze/framework/container"
	gohttp "github.com/km-arc/go-spritze/framework/http"
	"github.com/km-arc/go-spritze/framework/observe"
	"github.com/km-arc/go-spritze/framework/providers"
	"github.com/km-arc/go-spritze/framework/routing"
)

// MetricsNamespace prefixes every metric the application exports.
const MetricsNamespace = "spritze"

// Application is the top-level application. User code registers its
// modules on it, mounts handlers on its router and calls Run.
type Application struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *container.Registry
	Injector *container.Injector
	Fields   *container.FieldStore
	Metrics  *prometheus.Registry
}

// New loads configuration from envFiles and the environment, then builds
// the application on it.
func New(envFiles ...string) (*Application, error) {
	return NewWithConfig(config.Load(envFiles...))
}

// NewWithConfig builds the application on cfg. The core modules are
// installed in order: config, logger, metrics, router and request IDs.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := providers.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	if err := promReg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	metrics, err := observe.NewMetrics(promReg, MetricsNamespace)
	if err != nil {
		return nil, err
	}

	fields := container.NewFieldStore()
	reg := container.New(
		container.WithName(cfg.App.Name),
		container.WithLogger(logger.Named("container")),
		container.WithObserver(metrics),
		container.WithFieldStore(fields),
	)
	if err := reg.Install(
		providers.ConfigModule{Config: cfg},
		providers.LoggerModule{Logger: logger},
		providers.MetricsModule{Gatherer: promReg},
		providers.RouterModule{Fields: fields},
		providers.RequestModule{},
	); err != nil {
		return nil, err
	}

	inj, err := container.NewInjector(reg)
	if err != nil {
		return nil, err
	}

	return &Application{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Injector: inj,
		Fields:   fields,
		Metrics:  promReg,
	}, nil
}

// Register installs application modules. It must be called before the
// first resolution; afterwards the registry is sealed.
func (a *Application) Register(modules ...container.Module) error {
	return a.Registry.Install(modules...)
}

// Boot makes the application's registry the target of container.Inject
// and gohttp.Inject.
func (a *Application) Boot() error {
	return container.Init(a.Registry)
}

// Router resolves the application router. The first call seals the
// registry.
func (a *Application) Router() (*routing.Router, error) {
	return container.ResolveProcess[*routing.Router](nil, a.Registry)
}

// Handler binds fn as an injected HTTP handler whose errors are logged to
// the application logger.
func (a *Application) Handler(fn any) (http.HandlerFunc, error) {
	return gohttp.Handler(a.Injector, fn, gohttp.WithErrorLogger(a.Logger))
}

// Run serves HTTP on the configured address until ctx is done, then shuts
// the server down and closes the registry, both bounded by
// App.ShutdownTimeout.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config.App.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Config.App.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve is like Run on an existing listener.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	router, err := a.Router()
	if err != nil {
		_ = ln.Close()
		return err
	}

	srv := &http.Server{Handler: router}
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server started",
			zap.String("app", a.Config.App.Name),
			zap.String("env", a.Config.App.Env),
			zap.String("addr", ln.Addr().String()),
		)
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serveErr = multierr.Append(serveErr, fmt.Errorf("server shutdown: %w", err))
	}
	return multierr.Append(serveErr, a.Shutdown(shutdownCtx))
}

// Shutdown releases every process-scope resource.
func (a *Application) Shutdown(ctx context.Context) error {
	return a.Registry.Close(ctx)
}

// ── Environment helpers ──────────────────────────────────────────────────────

func (a *Application) IsLocal() bool      { return a.Config.App.Env == "local" }
func (a *Application) IsProduction() bool { return a.Config.App.Env == "production" }
func (a *Application) IsTesting() bool    { return a.Config.App.Env == "testing" }
