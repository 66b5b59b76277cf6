package container

import (
	"reflect"
	"time"
)

// FactoryEvent describes one provider construction.
type FactoryEvent struct {
	Registry string
	Type     reflect.Type
	Scope    Scope
	Kind     Kind
	Duration time.Duration
	Err      error
}

// TeardownEvent describes one resource release.
type TeardownEvent struct {
	Registry string
	Type     reflect.Type
	Scope    Scope
	Err      error
}

// Observer receives lifecycle events from a registry. Implementations must
// be safe for concurrent use; they are called synchronously on the resolving
// goroutine.
type Observer interface {
	FactoryInvoked(FactoryEvent)
	TeardownRan(TeardownEvent)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnFactory  func(FactoryEvent)
	OnTeardown func(TeardownEvent)
}

func (o ObserverFuncs) FactoryInvoked(e FactoryEvent) {
	if o.OnFactory != nil {
		o.OnFactory(e)
	}
}

func (o ObserverFuncs) TeardownRan(e TeardownEvent) {
	if o.OnTeardown != nil {
		o.OnTeardown(e)
	}
}
