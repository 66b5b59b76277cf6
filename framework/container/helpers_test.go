package container_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-spritze/framework/container"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type Config struct{ DSN string }

type Database struct {
	DSN    string
	closed bool
}

type Cache struct{ DB *Database }

type UserService struct {
	DB    *Database
	Cache *Cache
}

type RequestID string

type Greeter interface{ Greet() string }

type englishGreeter struct{}

func (englishGreeter) Greet() string { return "hello" }

var errBoom = errors.New("boom")

// journal records lifecycle events in order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	copy(out, j.entries)
	return out
}

func (j *journal) count(s string) int {
	n := 0
	for _, e := range j.list() {
		if e == s {
			n++
		}
	}
	return n
}

// newRegistry returns a registry with its own field store so tests do not
// share context values.
func newRegistry(t *testing.T, opts ...container.Option) *container.Registry {
	t.Helper()
	opts = append([]container.Option{container.WithFieldStore(container.NewFieldStore())}, opts...)
	return container.New(opts...)
}

// appRegistry wires the Config → Database → Cache → UserService graph.
// Database is a PROCESS resource; Cache and UserService are per operation.
func appRegistry(t *testing.T, j *journal) *container.Registry {
	t.Helper()
	r := newRegistry(t)

	require.NoError(t, r.Provide(container.Process, container.Value(func() *Config {
		j.add("config")
		return &Config{DSN: "sqlite://app.db"}
	})))
	require.NoError(t, r.Provide(container.Process, container.Resource(func(cfg *Config) (*Database, container.Release) {
		j.add("db:open")
		db := &Database{DSN: cfg.DSN}
		return db, func() error {
			db.closed = true
			j.add("db:close")
			return nil
		}
	})))
	require.NoError(t, r.Provide(container.Operation, container.Resource(func(db *Database) (*Cache, container.Release) {
		j.add("cache:open")
		return &Cache{DB: db}, func() error {
			j.add("cache:close")
			return nil
		}
	})))
	require.NoError(t, r.Provide(container.Operation, container.Value(func(db *Database, c *Cache) *UserService {
		j.add("users")
		return &UserService{DB: db, Cache: c}
	})))
	return r
}
