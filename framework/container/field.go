package container

import (
	"fmt"
	"reflect"
	"sync"
)

// FieldStore holds process-wide named values that registries expose as
// dependencies. Writes replace earlier values and are visible to every
// resolution that starts afterwards. The store does not isolate concurrent
// requests; callers that need per-request values must serialize access to a
// slot themselves.
type FieldStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewFieldStore creates an empty store.
func NewFieldStore() *FieldStore {
	return &FieldStore{values: make(map[string]any)}
}

var defaultFields = NewFieldStore()

// DefaultFields returns the process-wide store used by registries that were
// not given one with WithFieldStore.
func DefaultFields() *FieldStore { return defaultFields }

// Set stores v under name.
func (s *FieldStore) Set(name string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = v
}

// Get returns the value stored under name, or an error wrapping
// ErrContextValueMissing.
func (s *FieldStore) Get(name string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: field %q is not set", ErrContextValueMissing, name)
	}
	return v, nil
}

// Unset removes the value stored under name.
func (s *FieldStore) Unset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, name)
}

// Field is a named, typed slot in a FieldStore. Bind it to a registry with
// BindField so that T resolves to the slot's current value.
//
//	type RequestID string
//	var requestID = container.NewField[RequestID]("request_id")
//
//	requestID.Set(container.DefaultFields(), "req-123")
type Field[T any] struct {
	name string
}

// NewField declares a field named name holding values of type T.
func NewField[T any](name string) Field[T] {
	return Field[T]{name: name}
}

// Name returns the slot name.
func (f Field[T]) Name() string { return f.name }

// Type returns the type the field provides.
func (f Field[T]) Type() reflect.Type { return TypeOf[T]() }

// Set writes v into the field's slot in s.
func (f Field[T]) Set(s *FieldStore, v T) { s.Set(f.name, v) }

// Get reads the field's slot in s.
func (f Field[T]) Get(s *FieldStore) (T, error) {
	var zero T
	v, err := s.Get(f.name)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("context field %q holds %T, not %s", f.name, v, f.Type())
	}
	return typed, nil
}

// BindField registers f on r: resolving T reads the field from r's store.
// Fields behave like OPERATION-scope dependencies; the value is read once per
// operation, before any factory runs.
func BindField[T any](r *Registry, f Field[T]) error {
	if f.name == "" {
		return fmt.Errorf("%w: context field name cannot be empty", ErrInvalidProvider)
	}
	return r.add(&definition{
		typ:   f.Type(),
		scope: Operation,
		field: f.name,
	})
}

// readField fetches a field value from s and checks it against t.
func readField(s *FieldStore, name string, t reflect.Type) (reflect.Value, error) {
	v, err := s.Get(name)
	if err != nil {
		return reflect.Value{}, err
	}
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, fmt.Errorf("context field %q holds %s, not %s", name, rv.Type(), t)
	}
	out := reflect.New(t).Elem()
	out.Set(rv)
	return out, nil
}
