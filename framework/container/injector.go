package container

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"
)

// Injector resolves injected functions against an ordered list of
// registries. A call is tried on each registry in turn; it moves on only when
// resolution fails with ErrDependencyNotFound or ErrInvalidProvider. Errors
// returned by the function itself, cycles and missing context values are
// never retried.
type Injector struct {
	regs []*Registry
}

// NewInjector builds an injector over regs, highest priority first.
func NewInjector(regs ...*Registry) (*Injector, error) {
	if len(regs) == 0 {
		return nil, ErrNoRegistries
	}
	for i, r := range regs {
		if r == nil {
			return nil, fmt.Errorf("registry %d is nil", i)
		}
	}
	out := make([]*Registry, len(regs))
	copy(out, regs)
	return &Injector{regs: out}, nil
}

// Registries returns the injector's registries in priority order.
func (inj *Injector) Registries() []*Registry {
	out := make([]*Registry, len(inj.regs))
	copy(out, inj.regs)
	return out
}

func (inj *Injector) call(ft reflect.Type, fn reflect.Value, args []reflect.Value) []reflect.Value {
	var last error
	for _, reg := range inj.regs {
		out, err := callOn(reg, fn, args)
		if err == nil {
			return out
		}
		if !isRecoverable(err) {
			return errorResults(ft, err)
		}
		reg.logger.Debug("resolution failed, trying next registry", zap.Error(err))
		last = err
	}
	return errorResults(ft, last)
}

// Bind wraps fn so that its In struct parameters are resolved through inj.
// F must be the residual signature of fn: fn's parameters minus the In
// structs, with the same results. fn must return error as its last result.
// When F's first parameter is a context.Context the call runs as an
// asynchronous operation on that context.
//
//	type getUserFunc func(ctx context.Context, id int) (*User, error)
//
//	getUser, err := container.Bind[getUserFunc](inj,
//	    func(ctx context.Context, id int, deps userDeps) (*User, error) {
//	        return deps.Service.Find(ctx, id)
//	    })
func Bind[F any](inj *Injector, fn any) (F, error) {
	if inj == nil {
		var zero F
		return zero, ErrNoRegistries
	}
	return bind[F](fn, func() (*Injector, error) { return inj, nil })
}

// MustBind is like Bind but panics when fn cannot be wrapped.
func MustBind[F any](inj *Injector, fn any) F {
	f, err := Bind[F](inj, fn)
	if err != nil {
		panic(fmt.Sprintf("container: MustBind: %v", err))
	}
	return f
}

func bind[F any](fn any, source func() (*Injector, error)) (F, error) {
	var zero F
	if fn == nil {
		return zero, fmt.Errorf("injected value must be a function, got nil")
	}
	fv := reflect.ValueOf(fn)
	if fv.Kind() == reflect.Func && fv.IsNil() {
		return zero, fmt.Errorf("injected function %s is nil", fv.Type())
	}
	sig, err := extract(fv.Type())
	if err != nil {
		return zero, err
	}

	ft := TypeOf[F]()
	if !sameSignature(ft, sig.residual) {
		return zero, fmt.Errorf("wrapper type %s does not match residual signature %s", ft, sig.residual)
	}

	wrapped := reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		inj, err := source()
		if err != nil {
			return errorResults(ft, err)
		}
		return inj.call(ft, fv, args)
	})
	return wrapped.Interface().(F), nil
}

// ── Process-wide injector ─────────────────────────────────────────────────────

var active atomic.Pointer[Injector]

// Init activates regs as the process-wide registry sequence used by Inject.
// Calling Init again switches every existing wrapper to the new sequence.
//
//	if err := container.Init(appRegistry, fallbackRegistry); err != nil {
//	    log.Fatal(err)
//	}
func Init(regs ...*Registry) error {
	inj, err := NewInjector(regs...)
	if err != nil {
		return err
	}
	active.Store(inj)
	return nil
}

// Active returns the process-wide injector, or ErrNotActivated before Init.
func Active() (*Injector, error) {
	inj := active.Load()
	if inj == nil {
		return nil, ErrNotActivated
	}
	return inj, nil
}

// Inject is like Bind against the process-wide injector. The injector is
// looked up on every call, so wrappers may be created before Init; calling
// one before Init returns ErrNotActivated.
func Inject[F any](fn any) (F, error) {
	return bind[F](fn, Active)
}

// MustInject is like Inject but panics when fn cannot be wrapped.
func MustInject[F any](fn any) F {
	f, err := Inject[F](fn)
	if err != nil {
		panic(fmt.Sprintf("container: MustInject: %v", err))
	}
	return f
}
