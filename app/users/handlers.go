package users

import (
	"context"
	"errors"
	"net/http"

	"github.com/km-arc/go-spritze/framework/container"
	gohttp "github.com/km-arc/go-spritze/framework/http"
	"github.com/km-arc/go-spritze/framework/routing"
)

type serviceDeps struct {
	container.In
	Users *UserService
}

type createUserInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ShowUser handles GET /users/{id}.
func ShowUser(ctx context.Context, w http.ResponseWriter, r *http.Request, d serviceDeps) error {
	id, err := gohttp.NewRequest(r).RouteInt("id")
	if err != nil {
		return err
	}
	u, err := d.Users.Get(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return gohttp.Wrap(http.StatusNotFound, "user not found", err)
	}
	if err != nil {
		return err
	}
	gohttp.NewResponse(w).Success(u)
	return nil
}

// ListUsers handles GET /users.
func ListUsers(ctx context.Context, w http.ResponseWriter, _ *http.Request, d serviceDeps) error {
	all, err := d.Users.List(ctx)
	if err != nil {
		return err
	}
	gohttp.NewResponse(w).Success(all)
	return nil
}

// CreateUser handles POST /users.
func CreateUser(ctx context.Context, w http.ResponseWriter, r *http.Request, d serviceDeps) error {
	var in createUserInput
	if err := gohttp.NewRequest(r).Bind(&in); err != nil {
		return err
	}
	u, err := d.Users.Create(ctx, in.Name, in.Email)
	if errors.Is(err, ErrInvalidUser) {
		return gohttp.Wrap(http.StatusUnprocessableEntity, err.Error(), err)
	}
	if err != nil {
		return err
	}
	gohttp.NewResponse(w).Created(u)
	return nil
}

// Routes mounts the user endpoints on router. Handlers are bound against
// inj, so each request runs in its own operation.
func Routes(router *routing.Router, inj *container.Injector, opts ...gohttp.HandlerOption) error {
	show, err := gohttp.Handler(inj, ShowUser, opts...)
	if err != nil {
		return err
	}
	list, err := gohttp.Handler(inj, ListUsers, opts...)
	if err != nil {
		return err
	}
	create, err := gohttp.Handler(inj, CreateUser, opts...)
	if err != nil {
		return err
	}

	router.Prefix("/users", func(r *routing.Router) {
		r.Get("/", list)
		r.Post("/", create)
		r.Get("/{id}", show)
	})
	return nil
}
