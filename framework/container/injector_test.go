package container_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-spritze/framework/container"
)

type cfgDeps struct {
	container.In
	Cfg *Config
}

func describeConfig(d cfgDeps) (string, error) { return d.Cfg.DSN, nil }

func configOnly(t *testing.T, dsn string) *container.Registry {
	t.Helper()
	r := newRegistry(t, container.WithName(dsn))
	require.NoError(t, r.Instance(&Config{DSN: dsn}))
	return r
}

// ── Fallback ──────────────────────────────────────────────────────────────────

func TestNewInjector_Validation(t *testing.T) {
	_, err := container.NewInjector()
	assert.ErrorIs(t, err, container.ErrNoRegistries)

	_, err = container.NewInjector(newRegistry(t), nil)
	assert.Error(t, err)
}

func TestInjector_FirstRegistryWins(t *testing.T) {
	inj := mustInjector(t, configOnly(t, "primary"), configOnly(t, "secondary"))
	fn := container.MustBind[func() (string, error)](inj, describeConfig)

	out, err := fn()
	require.NoError(t, err)
	assert.Equal(t, "primary", out)
	assert.Len(t, inj.Registries(), 2)
}

func TestInjector_FallsBackOnMissingProvider(t *testing.T) {
	inj := mustInjector(t, newRegistry(t), configOnly(t, "secondary"))
	fn := container.MustBind[func() (string, error)](inj, describeConfig)

	out, err := fn()
	require.NoError(t, err)
	assert.Equal(t, "secondary", out)
}

func TestInjector_FallsBackOnInvalidProvider(t *testing.T) {
	primary := newRegistry(t)
	require.NoError(t, primary.Provide(container.Operation, container.AsyncValue(func(context.Context) *Config {
		return &Config{DSN: "async"}
	})))

	inj := mustInjector(t, primary, configOnly(t, "sync"))
	fn := container.MustBind[func() (string, error)](inj, describeConfig)

	out, err := fn()
	require.NoError(t, err)
	assert.Equal(t, "sync", out)
}

func TestInjector_CallableErrorIsNotRetried(t *testing.T) {
	calls := 0
	inj := mustInjector(t, configOnly(t, "primary"), configOnly(t, "secondary"))
	fn := container.MustBind[func() error](inj, func(d cfgDeps) error {
		calls++
		if d.Cfg.DSN == "primary" {
			return container.ErrDependencyNotFound
		}
		return nil
	})

	err := fn()
	assert.ErrorIs(t, err, container.ErrDependencyNotFound)
	assert.Equal(t, 1, calls, "errors from the callable itself never trigger fallback")
}

func TestInjector_CycleIsNotRetried(t *testing.T) {
	primary := newRegistry(t)
	require.NoError(t, primary.Provide(container.Operation, container.Value(func(cycleB) *Config { return &Config{} })))
	require.NoError(t, primary.Provide(container.Operation, container.Value(func(*Config) cycleB { return cycleB{} })))

	inj := mustInjector(t, primary, configOnly(t, "secondary"))
	fn := container.MustBind[func() (string, error)](inj, describeConfig)

	_, err := fn()
	assert.ErrorIs(t, err, container.ErrCycleDetected)
}

func TestInjector_AllRegistriesFail(t *testing.T) {
	inj := mustInjector(t, newRegistry(t), newRegistry(t))
	fn := container.MustBind[func() (string, error)](inj, describeConfig)

	_, err := fn()
	assert.ErrorIs(t, err, container.ErrDependencyNotFound)
}

// ── Process-wide activation ───────────────────────────────────────────────────

func TestInject_BeforeInit(t *testing.T) {
	container.ResetActive()
	t.Cleanup(container.ResetActive)

	fn, err := container.Inject[func() (string, error)](describeConfig)
	require.NoError(t, err, "wrappers can be created before Init")

	_, err = fn()
	assert.ErrorIs(t, err, container.ErrNotActivated)

	_, err = container.Active()
	assert.ErrorIs(t, err, container.ErrNotActivated)
}

func TestInject_ReinitSwitchesRegistries(t *testing.T) {
	container.ResetActive()
	t.Cleanup(container.ResetActive)

	fn := container.MustInject[func() (string, error)](describeConfig)

	require.NoError(t, container.Init(configOnly(t, "first")))
	out, err := fn()
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	require.NoError(t, container.Init(newRegistry(t), configOnly(t, "second")))
	out, err = fn()
	require.NoError(t, err)
	assert.Equal(t, "second", out)

	assert.ErrorIs(t, container.Init(), container.ErrNoRegistries)
	out, err = fn()
	require.NoError(t, err)
	assert.Equal(t, "second", out, "a failed Init keeps the previous registries")
}
