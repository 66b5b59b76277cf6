package container

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Resolution is one resolve-and-invoke pass against a registry. It owns the
// OPERATION-scope cache and the releases of the resources acquired through
// it. A Resolution is used by one goroutine at a time.
type Resolution struct {
	id        string
	reg       *Registry
	ctx       context.Context // nil for synchronous operations
	cache     map[reflect.Type]reflect.Value
	teardowns []teardown
	closed    bool
}

// Begin opens an asynchronous operation: context-aware providers may be
// resolved through it and cancellation of ctx aborts resolution.
func (r *Registry) Begin(ctx context.Context) *Resolution {
	if ctx == nil {
		ctx = context.Background()
	}
	return r.begin(ctx)
}

// BeginSync opens a synchronous operation. Resolving a type that needs an
// asynchronous provider through it fails with ErrInvalidProvider.
func (r *Registry) BeginSync() *Resolution {
	return r.begin(nil)
}

func (r *Registry) begin(ctx context.Context) *Resolution {
	op := &Resolution{
		id:    uuid.NewString(),
		reg:   r,
		ctx:   ctx,
		cache: make(map[reflect.Type]reflect.Value),
	}
	r.logger.Debug("operation opened", zap.String("operation", op.id), zap.Bool("async", ctx != nil))
	return op
}

// ID returns the operation's unique identifier.
func (op *Resolution) ID() string { return op.id }

// Registry returns the registry the operation resolves against.
func (op *Resolution) Registry() *Registry { return op.reg }

// Async reports whether the operation was opened with Begin.
func (op *Resolution) Async() bool { return op.ctx != nil }

// Context returns the operation's context, or context.Background for
// synchronous operations.
func (op *Resolution) Context() context.Context {
	if op.ctx == nil {
		return context.Background()
	}
	return op.ctx
}

// Resolve returns the instance of t, constructing it and any missing
// dependencies. The whole graph below t is checked before any factory runs.
func (op *Resolution) Resolve(t reflect.Type) (reflect.Value, error) {
	vals, err := op.ResolveAll(t)
	if err != nil {
		return reflect.Value{}, err
	}
	return vals[0], nil
}

// ResolveAll resolves several types as one request: if any of them cannot be
// satisfied, no factory runs for any of them.
func (op *Resolution) ResolveAll(types ...reflect.Type) ([]reflect.Value, error) {
	if op.closed {
		return nil, fmt.Errorf("%w: operation %s is closed", ErrScopeMisuse, op.id)
	}
	if err := op.reg.seal(); err != nil {
		return nil, err
	}

	async := op.ctx != nil
	var fields []*definition
	for _, t := range types {
		p := op.reg.plan(t, async)
		if p.err != nil {
			return nil, p.err
		}
		fields = append(fields, p.fields...)
	}

	for _, d := range fields {
		if _, ok := op.cache[d.typ]; ok {
			continue
		}
		v, err := readField(op.reg.fields, d.field, d.typ)
		if err != nil {
			return nil, newResolveError(d.typ, []reflect.Type{d.typ}, err)
		}
		op.cache[d.typ] = v
	}

	out := make([]reflect.Value, len(types))
	for i, t := range types {
		v, err := op.resolve(t, nil)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (op *Resolution) resolve(t reflect.Type, stack []reflect.Type) (reflect.Value, error) {
	if v, ok := op.cache[t]; ok {
		return v, nil
	}
	path := append(stack, t)
	d, _ := op.reg.lookup(t)

	if d.scope == Process {
		v, err := op.reg.resolveProcess(op.ctx, d, op.id)
		if err != nil {
			return reflect.Value{}, wrapResolve(t, path, err)
		}
		return v, nil
	}

	args := make([]reflect.Value, len(d.factory.deps))
	for i, dep := range d.factory.deps {
		v, err := op.resolve(dep, path)
		if err != nil {
			return reflect.Value{}, err
		}
		args[i] = v
	}

	if op.ctx != nil {
		if err := op.ctx.Err(); err != nil {
			return reflect.Value{}, newResolveError(t, path, err)
		}
	}

	p, err := op.reg.invoke(op.ctx, d, args, op.id)
	if err != nil {
		return reflect.Value{}, newResolveError(t, path, err)
	}
	op.cache[t] = p.value
	if p.releasable() {
		op.teardowns = append(op.teardowns, teardown{typ: t, scope: Operation, release: p.release, asyncRelease: p.asyncRelease})
	}
	return p.value, nil
}

// Close releases the operation's resources in reverse acquisition order.
// Every release runs even if an earlier one fails or the context was
// cancelled; failures are combined into the returned error. Closing twice is
// a no-op.
func (op *Resolution) Close() error {
	if op.closed {
		return nil
	}
	op.closed = true
	pending := op.teardowns
	op.teardowns = nil
	op.cache = nil

	err := op.reg.runTeardowns(op.Context(), pending, op.id)
	op.reg.logger.Debug("operation closed", zap.String("operation", op.id), zap.Int("released", len(pending)))
	return err
}

// ── Generic helpers ──────────────────────────────────────────────────────────

// Resolve resolves T through op.
//
//	svc, err := container.Resolve[*UserService](op)
func Resolve[T any](op *Resolution) (T, error) {
	var zero T
	v, err := op.Resolve(TypeOf[T]())
	if err != nil {
		return zero, err
	}
	return as[T](v)
}

// MustResolve is like Resolve but panics on failure.
func MustResolve[T any](op *Resolution) T {
	v, err := Resolve[T](op)
	if err != nil {
		panic(fmt.Sprintf("container: MustResolve[%s]: %v", TypeOf[T](), err))
	}
	return v
}

// Run opens an operation on r, passes it to fn and closes it when fn
// returns or panics. A nil ctx opens a synchronous operation. Release
// failures are reported together with fn's error, never in place of it.
//
//	err := container.Run(ctx, r, func(op *container.Resolution) error {
//	    svc, err := container.Resolve[*UserService](op)
//	    ...
//	})
func Run(ctx context.Context, r *Registry, fn func(op *Resolution) error) (err error) {
	var op *Resolution
	if ctx == nil {
		op = r.BeginSync()
	} else {
		op = r.Begin(ctx)
	}
	defer func() {
		err = multierr.Append(err, op.Close())
	}()
	return fn(op)
}
