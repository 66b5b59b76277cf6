package container

import (
	"fmt"
	"io"
	"reflect"
)

// DeclareOption configures a declarative registration.
type DeclareOption func(*declareConfig)

type declareConfig struct {
	scope Scope
}

// WithScope overrides the default OPERATION scope of a declared type.
func WithScope(s Scope) DeclareOption {
	return func(c *declareConfig) { c.scope = s }
}

var closerType = reflect.TypeOf((*io.Closer)(nil)).Elem()

// Declare registers T, a struct or pointer-to-struct type, as a provider of
// itself. Fields tagged `inject:""` are its dependencies and are filled in
// from the registry; other fields keep their zero value. If T implements
// io.Closer it is registered as a resource released through Close.
//
//	type UserService struct {
//	    DB    *Database `inject:""`
//	    Cache *Cache    `inject:""`
//	}
//
//	container.Declare[*UserService](r)
func Declare[T any](r *Registry, opts ...DeclareOption) error {
	cfg := declareConfig{scope: Operation}
	for _, opt := range opts {
		opt(&cfg)
	}

	t := TypeOf[T]()
	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return fmt.Errorf("%w: Declare needs a struct or pointer to struct, got %s", ErrInvalidProvider, t)
	}

	var (
		deps   []reflect.Type
		fields []int
	)
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if _, ok := f.Tag.Lookup("inject"); !ok {
			continue
		}
		if f.Tag.Get("inject") == "-" {
			continue
		}
		if !f.IsExported() {
			return fmt.Errorf("%w: %s.%s is tagged for injection but unexported", ErrInvalidProvider, st, f.Name)
		}
		deps = append(deps, f.Type)
		fields = append(fields, i)
	}

	construct := func(args []reflect.Value) reflect.Value {
		ptr := reflect.New(st)
		for i, idx := range fields {
			ptr.Elem().Field(idx).Set(args[i])
		}
		if t.Kind() == reflect.Pointer {
			return ptr
		}
		return ptr.Elem()
	}

	if !t.Implements(closerType) {
		fnType := reflect.FuncOf(deps, []reflect.Type{t}, false)
		fn := reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
			return []reflect.Value{construct(args)}
		})
		return r.Provide(cfg.scope, Value(fn.Interface()))
	}

	fnType := reflect.FuncOf(deps, []reflect.Type{t, releaseType}, false)
	fn := reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		v := construct(args)
		closer := v.Interface().(io.Closer)
		release := Release(closer.Close)
		return []reflect.Value{v, reflect.ValueOf(release)}
	})
	return r.Provide(cfg.scope, Resource(fn.Interface()))
}

// MustDeclare is like Declare but panics on failure.
func MustDeclare[T any](r *Registry, opts ...DeclareOption) {
	if err := Declare[T](r, opts...); err != nil {
		panic(fmt.Sprintf("container: MustDeclare[%s]: %v", TypeOf[T](), err))
	}
}
