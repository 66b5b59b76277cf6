package container

import (
	"context"
	"reflect"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ── Wrapper cache ─────────────────────────────────────────────────────────────

// wrapperKey identifies one callable bound to one registry. Only the code
// pointer and type of the callable are kept, so caching never holds a
// closure's captured state alive.
type wrapperKey struct {
	reg  *Registry
	code uintptr
	typ  reflect.Type
}

// wrapperCache memoizes the extracted signature of each (registry, callable)
// pair. Entries for a registry are dropped when it closes.
type wrapperCache struct {
	mu      sync.RWMutex
	entries map[wrapperKey]*signature
}

var wrappers = &wrapperCache{entries: make(map[wrapperKey]*signature)}

func (c *wrapperCache) get(reg *Registry, fn reflect.Value) (*signature, error) {
	key := wrapperKey{reg: reg, code: fn.Pointer(), typ: fn.Type()}

	c.mu.RLock()
	s, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := extract(fn.Type())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing, nil
	}
	c.entries[key] = s
	return s, nil
}

func (c *wrapperCache) drop(reg *Registry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.reg == reg {
			delete(c.entries, k)
		}
	}
}

func (c *wrapperCache) count(reg *Registry) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for k := range c.entries {
		if k.reg == reg {
			n++
		}
	}
	return n
}

// ── Invocation ────────────────────────────────────────────────────────────────

// callOn runs fn against reg inside one operation. A non-nil resolveErr means
// fn never ran; otherwise out holds fn's results with release failures folded
// into its trailing error.
func callOn(reg *Registry, fn reflect.Value, args []reflect.Value) (out []reflect.Value, resolveErr error) {
	if reg.closed.Load() {
		return nil, ErrRegistryClosed
	}
	sig, err := wrappers.get(reg, fn)
	if err != nil {
		return nil, err
	}

	var op *Resolution
	if sig.async {
		ctx, _ := args[0].Interface().(context.Context)
		op = reg.Begin(ctx)
	} else {
		op = reg.BeginSync()
	}

	done := false
	defer func() {
		if done {
			return
		}
		if err := op.Close(); err != nil {
			reg.logger.Warn("release failed while unwinding a panic",
				zap.String("operation", op.ID()),
				zap.Error(err),
			)
		}
	}()

	resolved, err := op.ResolveAll(sig.required...)
	if err == nil && op.Async() {
		err = op.Context().Err()
	}
	if err != nil {
		done = true
		return nil, multierr.Append(err, op.Close())
	}

	callArgs := sig.assemble(args, resolved)
	if sig.fn.IsVariadic() {
		out = fn.CallSlice(callArgs)
	} else {
		out = fn.Call(callArgs)
	}

	done = true
	if terr := op.Close(); terr != nil {
		last := len(out) - 1
		var primary error
		if !out[last].IsNil() {
			primary = out[last].Interface().(error)
		}
		out[last] = errorValue(multierr.Append(primary, terr))
	}
	return out, nil
}

func errorValue(err error) reflect.Value {
	v := reflect.New(errorType).Elem()
	if err != nil {
		v.Set(reflect.ValueOf(err))
	}
	return v
}

// errorResults builds a result list for ft holding zero values and err.
func errorResults(ft reflect.Type, err error) []reflect.Value {
	out := make([]reflect.Value, ft.NumOut())
	for i := range out {
		out[i] = reflect.Zero(ft.Out(i))
	}
	out[len(out)-1] = errorValue(err)
	return out
}

func sameSignature(a, b reflect.Type) bool {
	if a.Kind() != reflect.Func || b.Kind() != reflect.Func {
		return false
	}
	if a.NumIn() != b.NumIn() || a.NumOut() != b.NumOut() || a.IsVariadic() != b.IsVariadic() {
		return false
	}
	for i := 0; i < a.NumIn(); i++ {
		if a.In(i) != b.In(i) {
			return false
		}
	}
	for i := 0; i < a.NumOut(); i++ {
		if a.Out(i) != b.Out(i) {
			return false
		}
	}
	return true
}
