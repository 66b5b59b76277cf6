package users

import (
	"github.com/km-arc/go-spritze/framework/container"
)

// Module registers the user domain. It depends on *config.Config and
// *zap.Logger being provided by another module.
type Module struct{}

func (Module) Register(r *container.Registry) error {
	if err := r.Provide(container.Process, container.Value(NewStore)); err != nil {
		return err
	}
	if err := r.Provide(container.Process, container.AsyncResource(OpenCache)); err != nil {
		return err
	}
	if err := r.Provide(container.Operation, container.AsyncResource(OpenConn)); err != nil {
		return err
	}
	if err := container.Declare[*UserRepository](r); err != nil {
		return err
	}
	if err := container.Declare[*UserCache](r); err != nil {
		return err
	}
	return container.Declare[*UserService](r)
}
