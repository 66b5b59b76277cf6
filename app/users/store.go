// Package users is the sample domain served by the demo application: an
// in-memory user table behind a per-request connection, a read-through
// cache and the HTTP handlers that use them.
package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/km-arc/go-spritze/framework/config"
	"github.com/km-arc/go-spritze/framework/container"
)

// ErrUserNotFound is returned when no user has the requested ID.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidUser is returned when a new user fails validation.
var ErrInvalidUser = errors.New("invalid user")

// ErrConnClosed is returned when a released connection is used.
var ErrConnClosed = errors.New("connection closed")

type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Store is the process-wide user table. Access goes through a Conn; the
// number of open connections is bounded by Database.MaxConns.
type Store struct {
	dsn   string
	slots *semaphore.Weighted

	mu     sync.RWMutex
	users  map[int]User
	nextID int
}

// NewStore creates a store seeded with two users.
func NewStore(cfg *config.Config) *Store {
	max := cfg.Database.MaxConns
	if max <= 0 {
		max = 1
	}
	s := &Store{
		dsn:   cfg.Database.DSN,
		slots: semaphore.NewWeighted(int64(max)),
		users: make(map[int]User),
	}
	s.put(User{Name: "Alice", Email: "alice@example.com"})
	s.put(User{Name: "Bob", Email: "bob@example.com"})
	return s
}

func (s *Store) put(u User) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u.ID = s.nextID
	s.users[u.ID] = u
	return u
}

// ── Conn ──────────────────────────────────────────────────────────────────────

// Conn is one request's handle on the Store.
type Conn struct {
	store  *Store
	mu     sync.Mutex
	closed bool
}

// OpenConn acquires a connection slot, waiting until one is free or ctx is
// done. The returned release gives the slot back.
func OpenConn(ctx context.Context, s *Store, l *zap.Logger) (*Conn, container.AsyncRelease, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("acquire connection to %s: %w", s.dsn, err)
	}
	l.Debug("connection opened", zap.String("dsn", s.dsn))

	c := &Conn{store: s}
	return c, func(context.Context) error {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		s.slots.Release(1)
		l.Debug("connection closed", zap.String("dsn", s.dsn))
		return nil
	}, nil
}

func (c *Conn) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return nil
}

// Find returns the user with id.
func (c *Conn) Find(id int) (User, error) {
	if err := c.check(); err != nil {
		return User{}, err
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	u, ok := c.store.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	return u, nil
}

// All returns every user ordered by ID.
func (c *Conn) All() ([]User, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	c.store.mu.RLock()
	out := make([]User, 0, len(c.store.users))
	for _, u := range c.store.users {
		out = append(out, u)
	}
	c.store.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Insert stores u under a fresh ID.
func (c *Conn) Insert(u User) (User, error) {
	if err := c.check(); err != nil {
		return User{}, err
	}
	return c.store.put(u), nil
}
