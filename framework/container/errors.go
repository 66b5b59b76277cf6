package container

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ── Sentinel errors ───────────────────────────────────────────────────────────

var (
	// ErrDependencyNotFound is returned when no provider is registered for a
	// requested type. Recoverable during multi-registry fallback.
	ErrDependencyNotFound = errors.New("dependency not found")

	// ErrInvalidProvider is returned when a provider's factory shape does not
	// fit the scope or sync/async mode it is resolved in. Recoverable during
	// multi-registry fallback.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrCycleDetected is returned when resolving a type requires resolving
	// itself. The accompanying ResolveError carries the full path.
	ErrCycleDetected = errors.New("dependency cycle detected")

	// ErrContextValueMissing is returned when a context field is read before
	// it has been set.
	ErrContextValueMissing = errors.New("context value missing")

	// ErrScopeMisuse is returned when an OPERATION-scope type is resolved
	// without an open operation, or through an operation that was closed.
	ErrScopeMisuse = errors.New("scope misuse")

	// ErrTeardown marks a failed release of an acquired resource.
	ErrTeardown = errors.New("teardown failed")

	// ErrDuplicateProvider is returned when a second provider is registered
	// for a type that already has one.
	ErrDuplicateProvider = errors.New("duplicate provider")

	// ErrRegistrySealed is returned when registering after the registry has
	// served its first resolution.
	ErrRegistrySealed = errors.New("registry sealed")

	// ErrRegistryClosed is returned when a closed registry is used.
	ErrRegistryClosed = errors.New("registry closed")

	// ErrNotActivated is returned by global wrappers called before Init.
	ErrNotActivated = errors.New("no registry activated: call container.Init first")

	// ErrNoRegistries is returned when an injector is built from an empty
	// registry sequence.
	ErrNoRegistries = errors.New("registry sequence cannot be empty")
)

// ── Structured errors ─────────────────────────────────────────────────────────

// ResolveError describes a failed resolution. Path lists the types walked
// from the requested type down to the failing one; for cycles it ends with
// the repeated type.
type ResolveError struct {
	Type reflect.Type
	Path []reflect.Type
	Err  error
}

func (e *ResolveError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "resolving %s: %v", typeName(e.Type), e.Err)
	if len(e.Path) > 1 {
		b.WriteString(" (")
		b.WriteString(renderPath(e.Path))
		b.WriteString(")")
	}
	return b.String()
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Cycle returns the cyclic portion of Path, starting and ending with the
// same type, or nil when the error is not a cycle.
func (e *ResolveError) Cycle() []reflect.Type {
	if !errors.Is(e.Err, ErrCycleDetected) || len(e.Path) == 0 {
		return nil
	}
	last := e.Path[len(e.Path)-1]
	for i, t := range e.Path {
		if t == last {
			return e.Path[i:]
		}
	}
	return nil
}

// TeardownError reports a release that failed for the resource of Type.
// It matches both ErrTeardown and the underlying cause with errors.Is.
type TeardownError struct {
	Type  reflect.Type
	Scope Scope
	Err   error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("releasing %s (%s scope): %v", typeName(e.Type), e.Scope, e.Err)
}

func (e *TeardownError) Unwrap() []error { return []error{ErrTeardown, e.Err} }

func newResolveError(t reflect.Type, path []reflect.Type, err error) *ResolveError {
	p := make([]reflect.Type, len(path))
	copy(p, path)
	return &ResolveError{Type: t, Path: p, Err: err}
}

func renderPath(path []reflect.Type) string {
	names := make([]string, len(path))
	for i, t := range path {
		names[i] = typeName(t)
	}
	return strings.Join(names, " -> ")
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// isRecoverable reports whether err lets the fallback resolver move on to
// the next registry.
func isRecoverable(err error) bool {
	if errors.Is(err, ErrCycleDetected) || errors.Is(err, ErrContextValueMissing) {
		return false
	}
	return errors.Is(err, ErrDependencyNotFound) || errors.Is(err, ErrInvalidProvider)
}
