package container_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-spritze/framework/container"
)

// ── Scope caching ─────────────────────────────────────────────────────────────

func TestResolution_ScopeCaching(t *testing.T) {
	j := &journal{}
	r := appRegistry(t, j)

	op1 := r.BeginSync()
	a, err := container.Resolve[*UserService](op1)
	require.NoError(t, err)
	b, err := container.Resolve[*UserService](op1)
	require.NoError(t, err)
	assert.Same(t, a, b, "OPERATION scope is cached within one operation")
	require.NoError(t, op1.Close())

	op2 := r.BeginSync()
	c, err := container.Resolve[*UserService](op2)
	require.NoError(t, err)
	require.NoError(t, op2.Close())

	assert.NotSame(t, a, c, "each operation gets its own OPERATION instances")
	assert.Same(t, a.DB, c.DB, "PROCESS scope is shared across operations")
	assert.Equal(t, 1, j.count("db:open"))
	assert.Equal(t, 2, j.count("cache:open"))
}

func TestResolution_ResolveAll(t *testing.T) {
	r := appRegistry(t, &journal{})
	op := r.BeginSync()
	defer op.Close()

	vals, err := op.ResolveAll(container.TypeOf[*Cache](), container.TypeOf[*UserService]())
	require.NoError(t, err)
	require.Len(t, vals, 2)
	svc := vals[1].Interface().(*UserService)
	assert.Same(t, vals[0].Interface(), svc.Cache)
}

func TestResolution_Metadata(t *testing.T) {
	r := newRegistry(t)
	sync := r.BeginSync()
	async := r.Begin(context.Background())

	assert.False(t, sync.Async())
	assert.True(t, async.Async())
	assert.NotEqual(t, sync.ID(), async.ID())
	assert.Same(t, r, sync.Registry())
	assert.NotNil(t, sync.Context())
}

// ── Lifecycle scenario ────────────────────────────────────────────────────────

func TestResolution_OpenCloseOpenClose(t *testing.T) {
	j := &journal{}
	r := appRegistry(t, j)

	run := func() {
		err := container.Run(nil, r, func(op *container.Resolution) error {
			_, err := container.Resolve[*UserService](op)
			return err
		})
		require.NoError(t, err)
	}

	run()
	assert.Equal(t, []string{"config", "db:open", "cache:open", "users", "cache:close"}, j.list())

	run()
	assert.Equal(t, []string{
		"config", "db:open", "cache:open", "users", "cache:close",
		"cache:open", "users", "cache:close",
	}, j.list())

	db, err := container.ResolveProcess[*Database](nil, r)
	require.NoError(t, err)
	assert.False(t, db.closed)

	require.NoError(t, r.Close(context.Background()))
	assert.True(t, db.closed)
	assert.Equal(t, 1, j.count("db:close"))
}

// ── Teardown ──────────────────────────────────────────────────────────────────

func TestResolution_TeardownReverseOrder(t *testing.T) {
	j := &journal{}
	r := newRegistry(t)
	require.NoError(t, r.Provide(container.Operation, container.Resource(func() (*Config, container.Release) {
		j.add("config:open")
		return &Config{}, func() error { j.add("config:close"); return nil }
	})))
	require.NoError(t, r.Provide(container.Operation, container.Resource(func(*Config) (*Database, container.Release) {
		j.add("db:open")
		return &Database{}, func() error { j.add("db:close"); return nil }
	})))
	require.NoError(t, r.Provide(container.Operation, container.Resource(func(*Database) (*Cache, container.Release) {
		j.add("cache:open")
		return &Cache{}, func() error { j.add("cache:close"); return nil }
	})))

	op := r.BeginSync()
	_, err := container.Resolve[*Cache](op)
	require.NoError(t, err)
	require.NoError(t, op.Close())

	assert.Equal(t, []string{
		"config:open", "db:open", "cache:open",
		"cache:close", "db:close", "config:close",
	}, j.list())
}

func TestResolution_AllReleasesRunDespiteFailures(t *testing.T) {
	j := &journal{}
	errCache := errors.New("cache close")
	r := newRegistry(t)
	require.NoError(t, r.Provide(container.Operation, container.Resource(func() (*Config, container.Release) {
		return &Config{}, func() error { j.add("config:close"); return nil }
	})))
	require.NoError(t, r.Provide(container.Operation, container.Resource(func(*Config) (*Database, container.Release) {
		return &Database{}, func() error { j.add("db:close"); panic("driver exploded") }
	})))
	require.NoError(t, r.Provide(container.Operation, container.Resource(func(*Database) (*Cache, container.Release) {
		return &Cache{}, func() error { j.add("cache:close"); return errCache }
	})))

	op := r.BeginSync()
	_, err := container.Resolve[*Cache](op)
	require.NoError(t, err)

	err = op.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, container.ErrTeardown)
	assert.ErrorIs(t, err, errCache)
	assert.Contains(t, err.Error(), "driver exploded")
	assert.Equal(t, []string{"cache:close", "db:close", "config:close"}, j.list())
}

func TestResolution_CloseIsIdempotent(t *testing.T) {
	j := &journal{}
	r := appRegistry(t, j)
	op := r.BeginSync()
	_, err := container.Resolve[*Cache](op)
	require.NoError(t, err)

	require.NoError(t, op.Close())
	require.NoError(t, op.Close())
	assert.Equal(t, 1, j.count("cache:close"))

	_, err = container.Resolve[*Cache](op)
	assert.ErrorIs(t, err, container.ErrScopeMisuse)
}

func TestResolution_PartialFailureReleasesAcquired(t *testing.T) {
	j := &journal{}
	r := newRegistry(t)
	require.NoError(t, r.Provide(container.Operation, container.Resource(func() (*Config, container.Release) {
		j.add("config:open")
		return &Config{}, func() error { j.add("config:close"); return nil }
	})))
	require.NoError(t, r.Provide(container.Operation, container.Value(func(*Config) (*Database, error) {
		return nil, errBoom
	})))

	err := container.Run(nil, r, func(op *container.Resolution) error {
		_, err := container.Resolve[*Database](op)
		return err
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"config:open", "config:close"}, j.list())
}

func TestRun_CombinesCallbackAndTeardownErrors(t *testing.T) {
	errRelease := errors.New("release")
	r := newRegistry(t)
	require.NoError(t, r.Provide(container.Operation, container.Resource(func() (*Config, container.Release) {
		return &Config{}, func() error { return errRelease }
	})))

	err := container.Run(nil, r, func(op *container.Resolution) error {
		if _, err := container.Resolve[*Config](op); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, errRelease)
	assert.ErrorIs(t, err, container.ErrTeardown)
}

func TestRun_ReleasesOnPanic(t *testing.T) {
	j := &journal{}
	r := appRegistry(t, j)

	assert.Panics(t, func() {
		_ = container.Run(nil, r, func(op *container.Resolution) error {
			container.MustResolve[*Cache](op)
			panic("handler failed")
		})
	})
	assert.Equal(t, 1, j.count("cache:close"))
}

// ── Asynchronous operations ───────────────────────────────────────────────────

func TestResolution_AsyncResourceGetsUncancelledReleaseContext(t *testing.T) {
	var releaseErr error
	r := newRegistry(t)
	require.NoError(t, r.Provide(container.Operation, container.AsyncResource(func(ctx context.Context) (*Database, container.AsyncRelease, error) {
		return &Database{}, func(ctx context.Context) error {
			releaseErr = ctx.Err()
			return nil
		}, nil
	})))

	ctx, cancel := context.WithCancel(context.Background())
	op := r.Begin(ctx)
	_, err := container.Resolve[*Database](op)
	require.NoError(t, err)

	cancel()
	require.NoError(t, op.Close())
	assert.NoError(t, releaseErr)
}

func TestResolution_CancellationAbortsResolution(t *testing.T) {
	j := &journal{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newRegistry(t)
	require.NoError(t, r.Provide(container.Operation, container.Resource(func() (*Config, container.Release) {
		j.add("config:open")
		cancel()
		return &Config{}, func() error { j.add("config:close"); return nil }
	})))
	require.NoError(t, r.Provide(container.Operation, container.AsyncValue(func(ctx context.Context, c *Config) *Database {
		j.add("db")
		return &Database{}
	})))

	op := r.Begin(ctx)
	_, err := container.Resolve[*Database](op)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, op.Close())
	assert.Equal(t, []string{"config:open", "config:close"}, j.list())
}

func TestResolution_AsyncFactoryReceivesOperationContext(t *testing.T) {
	type key struct{}
	r := newRegistry(t)
	require.NoError(t, r.Provide(container.Operation, container.AsyncValue(func(ctx context.Context) (*Config, error) {
		dsn, _ := ctx.Value(key{}).(string)
		return &Config{DSN: dsn}, nil
	})))

	ctx := context.WithValue(context.Background(), key{}, "from-ctx")
	err := container.Run(ctx, r, func(op *container.Resolution) error {
		cfg, err := container.Resolve[*Config](op)
		if err != nil {
			return err
		}
		assert.Equal(t, "from-ctx", cfg.DSN)
		return nil
	})
	require.NoError(t, err)
}
