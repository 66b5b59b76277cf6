package container

import "fmt"

// Module groups related registrations, the way a service provider groups
// bindings for one subsystem.
//
//	type DatabaseModule struct{ DSN string }
//
//	func (m DatabaseModule) Register(r *container.Registry) error {
//	    return r.Provide(container.Process, container.Resource(m.open))
//	}
type Module interface {
	Register(r *Registry) error
}

// ModuleFunc adapts a plain function to Module.
type ModuleFunc func(r *Registry) error

// Register calls f(r).
func (f ModuleFunc) Register(r *Registry) error { return f(r) }

// Install registers every module in order and stops at the first failure.
func (r *Registry) Install(modules ...Module) error {
	for i, m := range modules {
		if m == nil {
			return fmt.Errorf("module %d is nil", i)
		}
		if err := m.Register(r); err != nil {
			return fmt.Errorf("installing %T: %w", m, err)
		}
	}
	return nil
}
