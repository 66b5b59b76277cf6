package users

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/km-arc/go-spritze/framework/config"
)

// UserRepository reads and writes users over the request's connection.
type UserRepository struct {
	Conn *Conn `inject:""`
}

func (r *UserRepository) Find(id int) (User, error) { return r.Conn.Find(id) }
func (r *UserRepository) All() ([]User, error)      { return r.Conn.All() }
func (r *UserRepository) Insert(u User) (User, error) {
	return r.Conn.Insert(u)
}

// UserCache stores users as JSON in the configured backend.
type UserCache struct {
	Backend CacheBackend   `inject:""`
	Config  *config.Config `inject:""`
}

func cacheKey(id int) string { return fmt.Sprintf("user:%d", id) }

func (c *UserCache) Get(ctx context.Context, id int) (User, bool, error) {
	raw, ok, err := c.Backend.Get(ctx, cacheKey(id))
	if err != nil || !ok {
		return User{}, false, err
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return User{}, false, fmt.Errorf("decode cached user %d: %w", id, err)
	}
	return u, true, nil
}

func (c *UserCache) Put(ctx context.Context, u User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.Backend.Set(ctx, cacheKey(u.ID), string(raw), c.Config.Cache.TTL)
}

// UserService is the read-through facade the handlers use.
type UserService struct {
	Repo   *UserRepository `inject:""`
	Cache  *UserCache      `inject:""`
	Logger *zap.Logger     `inject:""`
}

// Get returns the user with id, serving from the cache when possible. Cache
// failures are logged and fall through to the repository.
func (s *UserService) Get(ctx context.Context, id int) (User, error) {
	u, ok, err := s.Cache.Get(ctx, id)
	if err != nil {
		s.Logger.Warn("user cache read failed", zap.Int("user_id", id), zap.Error(err))
	}
	if ok {
		return u, nil
	}

	u, err = s.Repo.Find(id)
	if err != nil {
		return User{}, err
	}
	if err := s.Cache.Put(ctx, u); err != nil {
		s.Logger.Warn("user cache write failed", zap.Int("user_id", id), zap.Error(err))
	}
	return u, nil
}

func (s *UserService) List(context.Context) ([]User, error) {
	return s.Repo.All()
}

// Create validates and stores a new user.
func (s *UserService) Create(ctx context.Context, name, email string) (User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: email %q is not valid", ErrInvalidUser, email)
	}

	u, err := s.Repo.Insert(User{Name: name, Email: email})
	if err != nil {
		return User{}, err
	}
	if err := s.Cache.Put(ctx, u); err != nil {
		s.Logger.Warn("user cache write failed", zap.Int("user_id", u.ID), zap.Error(err))
	}
	s.Logger.Info("user created", zap.Int("user_id", u.ID))
	return u, nil
}
