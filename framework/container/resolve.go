package container

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// TypeOf returns the registration token for T.
//
//	r.Has(container.TypeOf[*Database]())
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// ── Planning ─────────────────────────────────────────────────────────────────

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

type planKey struct {
	typ   reflect.Type
	async bool
}

// plan is the outcome of walking the graph below one type: either the
// context fields an operation must snapshot, or the reason the type cannot
// be resolved. Plans never run factories.
type plan struct {
	fields []*definition
	err    error
}

// plan walks the graph from t depth-first and memoizes the result. The
// registry must be sealed so the graph cannot change underneath the memo.
func (r *Registry) plan(t reflect.Type, async bool) *plan {
	key := planKey{typ: t, async: async}
	if p, ok := r.plans.Load(key); ok {
		return p.(*plan)
	}

	p := &plan{}
	p.err = r.walk(t, async, make(map[reflect.Type]visitState), nil, p)

	actual, _ := r.plans.LoadOrStore(key, p)
	return actual.(*plan)
}

func (r *Registry) walk(t reflect.Type, async bool, states map[reflect.Type]visitState, stack []reflect.Type, p *plan) error {
	path := append(stack, t)

	switch states[t] {
	case visiting:
		return newResolveError(t, path, ErrCycleDetected)
	case visited:
		return nil
	}

	d, ok := r.lookup(t)
	if !ok {
		return newResolveError(t, path, ErrDependencyNotFound)
	}
	if d.async() && !async {
		return newResolveError(t, path,
			fmt.Errorf("%w: %s provider needs an asynchronous operation", ErrInvalidProvider, d.factory.kind))
	}
	if d.isField() {
		p.fields = append(p.fields, d)
		states[t] = visited
		return nil
	}

	states[t] = visiting
	for _, dep := range d.factory.deps {
		if d.scope == Process {
			if dd, ok := r.lookup(dep); ok && dd.scope == Operation {
				return newResolveError(t, append(path, dep),
					fmt.Errorf("%w: process-scope %s depends on operation-scope %s", ErrInvalidProvider, t, dep))
			}
		}
		if err := r.walk(dep, async, states, path, p); err != nil {
			return err
		}
	}
	states[t] = visited
	return nil
}

// ── Registry-level resolution ────────────────────────────────────────────────

// ResolveProcess resolves a PROCESS-scope type without opening an operation.
// A nil ctx resolves synchronously; asynchronous providers then fail with
// ErrInvalidProvider. Asking for an OPERATION-scope type fails with
// ErrScopeMisuse.
//
//	cfg, err := container.ResolveProcess[*config.Config](ctx, r)
func ResolveProcess[T any](ctx context.Context, r *Registry) (T, error) {
	var zero T
	t := TypeOf[T]()

	if err := r.seal(); err != nil {
		return zero, err
	}
	if p := r.plan(t, ctx != nil); p.err != nil {
		return zero, p.err
	}

	d, _ := r.lookup(t)
	if d.scope != Process {
		return zero, newResolveError(t, []reflect.Type{t},
			fmt.Errorf("%w: %s is %s-scoped and needs an open operation", ErrScopeMisuse, t, d.scope))
	}

	v, err := r.resolveProcess(ctx, d, "")
	if err != nil {
		return zero, wrapResolve(t, []reflect.Type{t}, err)
	}
	return as[T](v)
}

// ── Internal ─────────────────────────────────────────────────────────────────

// wrapResolve attaches the type being resolved to err unless a deeper
// ResolveError already names the failing type.
func wrapResolve(t reflect.Type, path []reflect.Type, err error) error {
	var re *ResolveError
	if errors.As(err, &re) {
		return err
	}
	return newResolveError(t, path, err)
}

func as[T any](v reflect.Value) (T, error) {
	var zero T
	if !v.IsValid() {
		return zero, nil
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return zero, nil
		}
	}
	out, ok := v.Interface().(T)
	if !ok {
		return zero, fmt.Errorf("cannot convert %s to %s", v.Type(), TypeOf[T]())
	}
	return out, nil
}
