package container

import (
	"context"
	"fmt"
	"reflect"
)

// Kind tags the shape of a provider's factory.
type Kind int

const (
	// KindValue is a synchronous constructor returning a plain value.
	KindValue Kind = iota
	// KindResource is a synchronous constructor returning a value and the
	// Release that tears it down.
	KindResource
	// KindAsyncValue is a context-aware constructor returning a plain value.
	KindAsyncValue
	// KindAsyncResource is a context-aware constructor returning a value and
	// the AsyncRelease that tears it down.
	KindAsyncResource
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindResource:
		return "resource"
	case KindAsyncValue:
		return "async value"
	case KindAsyncResource:
		return "async resource"
	default:
		return "unknown"
	}
}

// Async reports whether factories of this kind need an asynchronous
// operation (one opened with a context).
func (k Kind) Async() bool { return k == KindAsyncValue || k == KindAsyncResource }

func (k Kind) resource() bool { return k == KindResource || k == KindAsyncResource }

// Release tears down a resource produced by a Resource factory.
type Release func() error

// AsyncRelease tears down a resource produced by an AsyncResource factory.
// The context it receives is never cancelled by the operation that acquired
// the resource.
type AsyncRelease func(ctx context.Context) error

var (
	contextType      = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType        = reflect.TypeOf((*error)(nil)).Elem()
	releaseType      = reflect.TypeOf(Release(nil))
	asyncReleaseType = reflect.TypeOf(AsyncRelease(nil))
)

// Factory is a validated constructor tagged with its Kind. Build one with
// Value, Resource, AsyncValue or AsyncResource and hand it to
// Registry.Provide.
type Factory struct {
	kind   Kind
	fn     reflect.Value
	out    reflect.Type
	deps   []reflect.Type
	hasErr bool
	err    error
}

// Value wraps a constructor of shape func(deps...) T or
// func(deps...) (T, error).
func Value(constructor any) Factory { return newFactory(KindValue, constructor) }

// Resource wraps a constructor of shape func(deps...) (T, Release) or
// func(deps...) (T, Release, error). The release runs exactly once when the
// owning scope ends.
func Resource(constructor any) Factory { return newFactory(KindResource, constructor) }

// AsyncValue wraps a constructor of shape func(ctx, deps...) T or
// func(ctx, deps...) (T, error).
func AsyncValue(constructor any) Factory { return newFactory(KindAsyncValue, constructor) }

// AsyncResource wraps a constructor of shape
// func(ctx, deps...) (T, AsyncRelease) or func(ctx, deps...) (T, AsyncRelease, error).
func AsyncResource(constructor any) Factory { return newFactory(KindAsyncResource, constructor) }

// Kind returns the factory's variant.
func (f Factory) Kind() Kind { return f.kind }

// Type returns the produced type, or nil when the constructor was rejected.
func (f Factory) Type() reflect.Type { return f.out }

// Dependencies returns the types the constructor takes as parameters.
func (f Factory) Dependencies() []reflect.Type {
	out := make([]reflect.Type, len(f.deps))
	copy(out, f.deps)
	return out
}

// Err returns the shape error found when the factory was built, if any.
func (f Factory) Err() error { return f.err }

func newFactory(kind Kind, constructor any) Factory {
	f := Factory{kind: kind}
	if constructor == nil {
		f.err = fmt.Errorf("%w: %s constructor is nil", ErrInvalidProvider, kind)
		return f
	}

	val := reflect.ValueOf(constructor)
	typ := val.Type()
	if typ.Kind() != reflect.Func {
		f.err = fmt.Errorf("%w: %s constructor must be a function, got %s", ErrInvalidProvider, kind, typ)
		return f
	}
	if typ.IsVariadic() {
		f.err = fmt.Errorf("%w: variadic constructor %s is not supported", ErrInvalidProvider, typ)
		return f
	}

	first := 0
	if kind.Async() {
		if typ.NumIn() == 0 || typ.In(0) != contextType {
			f.err = fmt.Errorf("%w: %s constructor %s must take context.Context first", ErrInvalidProvider, kind, typ)
			return f
		}
		first = 1
	}
	for i := first; i < typ.NumIn(); i++ {
		in := typ.In(i)
		if in == contextType {
			f.err = fmt.Errorf("%w: %s takes context.Context as a dependency; use an async factory", ErrInvalidProvider, typ)
			return f
		}
		f.deps = append(f.deps, in)
	}

	want := 1
	if kind.resource() {
		want = 2
	}
	switch n := typ.NumOut(); {
	case n == want:
	case n == want+1 && typ.Out(n-1) == errorType:
		f.hasErr = true
	default:
		f.err = fmt.Errorf("%w: %s constructor %s must return %s", ErrInvalidProvider, kind, typ, shapeHint(kind))
		return f
	}

	if typ.Out(0) == errorType {
		f.err = fmt.Errorf("%w: %s cannot provide the error type", ErrInvalidProvider, typ)
		return f
	}

	if kind.resource() {
		rel := typ.Out(1)
		wantRel := releaseType
		if kind.Async() {
			wantRel = asyncReleaseType
		}
		if rel.Kind() != reflect.Func || !rel.ConvertibleTo(wantRel) {
			f.err = fmt.Errorf("%w: %s constructor %s must return %s as its second result", ErrInvalidProvider, kind, typ, wantRel)
			return f
		}
	}

	f.fn = val
	f.out = typ.Out(0)
	return f
}

func shapeHint(k Kind) string {
	switch k {
	case KindResource:
		return "(T, Release) or (T, Release, error)"
	case KindAsyncResource:
		return "(T, AsyncRelease) or (T, AsyncRelease, error)"
	default:
		return "T or (T, error)"
	}
}

// product is what one factory invocation yields.
type product struct {
	value        reflect.Value
	release      Release
	asyncRelease AsyncRelease
}

func (p product) releasable() bool { return p.release != nil || p.asyncRelease != nil }

// errNoRelease is reported when a resource constructor hands back a nil
// release func.
var errNoRelease = fmt.Errorf("%w: resource constructor returned no release", ErrInvalidProvider)

// call runs the constructor. A panicking constructor is reported as a
// failure so that it cannot escape on a singleflight goroutine.
func (f Factory) call(ctx context.Context, args []reflect.Value) (p product, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p, err = product{}, fmt.Errorf("provider panicked: %v", rec)
		}
	}()

	in := args
	if f.kind.Async() {
		in = make([]reflect.Value, 0, len(args)+1)
		in = append(in, reflect.ValueOf(&ctx).Elem())
		in = append(in, args...)
	}

	out := f.fn.Call(in)
	if f.hasErr {
		if e := out[len(out)-1]; !e.IsNil() {
			return product{}, e.Interface().(error)
		}
	}

	p = product{value: out[0]}
	switch f.kind {
	case KindResource:
		if out[1].IsNil() {
			return p, errNoRelease
		}
		p.release = out[1].Convert(releaseType).Interface().(Release)
	case KindAsyncResource:
		if out[1].IsNil() {
			return p, errNoRelease
		}
		p.asyncRelease = out[1].Convert(asyncReleaseType).Interface().(AsyncRelease)
	}
	return p, nil
}
