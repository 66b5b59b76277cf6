package container

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ── Definitions ───────────────────────────────────────────────────────────────

// definition is one registered provider. It is immutable once added.
type definition struct {
	id      int
	typ     reflect.Type
	scope   Scope
	factory Factory
	field   string // non-empty for context fields
}

func (d *definition) isField() bool { return d.field != "" }

func (d *definition) async() bool { return !d.isField() && d.factory.kind.Async() }

func (d *definition) deps() []reflect.Type {
	if d.isField() {
		return nil
	}
	return d.factory.deps
}

// ── Registry ──────────────────────────────────────────────────────────────────

// Registry maps produced types to providers and owns the PROCESS-scope cache.
//
// Providers are registered at configuration time. The first resolution seals
// the registry; later registrations fail with ErrRegistrySealed. A sealed
// registry is safe for concurrent use by any number of operations.
type Registry struct {
	name string

	mu    sync.RWMutex
	defs  map[reflect.Type]*definition
	order []reflect.Type

	sealed atomic.Bool
	closed atomic.Bool

	// PROCESS cache: reflect.Type → reflect.Value.
	instances sync.Map
	flight    singleflight.Group

	teardownMu sync.Mutex
	teardowns  []teardown

	// plan results per (type, async) once sealed.
	plans sync.Map

	fields    *FieldStore
	logger    *zap.Logger
	observers []Observer
}

// Option configures a Registry.
type Option func(*Registry)

// WithName labels the registry in logs and errors.
func WithName(name string) Option {
	return func(r *Registry) { r.name = name }
}

// WithLogger sets the logger used for provider construction and teardown.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithFieldStore makes the registry read context fields from s instead of
// DefaultFields.
func WithFieldStore(s *FieldStore) Option {
	return func(r *Registry) {
		if s != nil {
			r.fields = s
		}
	}
}

// WithObserver adds an observer notified of factory calls and teardowns.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

var registrySeq atomic.Uint64

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		defs:   make(map[reflect.Type]*definition),
		fields: defaultFields,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.name == "" {
		r.name = "registry-" + strconv.FormatUint(registrySeq.Add(1), 10)
	}
	r.logger = r.logger.With(zap.String("registry", r.name))
	return r
}

// Name returns the registry's label.
func (r *Registry) Name() string { return r.name }

// ── Registration ──────────────────────────────────────────────────────────────

// Provide registers f as the provider of f.Type() under scope.
//
//	r.Provide(container.Process, container.Value(NewSettings))
//	r.Provide(container.Operation, container.Resource(OpenConn))
func (r *Registry) Provide(scope Scope, f Factory) error {
	if f.err != nil {
		return f.err
	}
	if f.out == nil {
		return fmt.Errorf("%w: empty factory", ErrInvalidProvider)
	}
	if scope != Operation && scope != Process {
		return fmt.Errorf("%w: unknown scope %d for %s", ErrInvalidProvider, scope, f.out)
	}
	return r.add(&definition{typ: f.out, scope: scope, factory: f})
}

// Instance registers a pre-built value as a PROCESS-scope provider of its
// dynamic type.
//
//	r.Instance(&Settings{Env: "prod"})
func (r *Registry) Instance(v any) error {
	if v == nil {
		return fmt.Errorf("%w: instance cannot be nil", ErrInvalidProvider)
	}
	rv := reflect.ValueOf(v)
	return r.provideValue(rv.Type(), rv)
}

// InstanceAs registers v as the PROCESS-scope provider of T, which may be an
// interface v implements.
func InstanceAs[T any](r *Registry, v T) error {
	return r.provideValue(TypeOf[T](), reflect.ValueOf(&v).Elem())
}

func (r *Registry) provideValue(t reflect.Type, v reflect.Value) error {
	fnType := reflect.FuncOf(nil, []reflect.Type{t}, false)
	fn := reflect.MakeFunc(fnType, func([]reflect.Value) []reflect.Value {
		return []reflect.Value{v}
	})
	return r.Provide(Process, Value(fn.Interface()))
}

func (r *Registry) add(d *definition) error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	if r.sealed.Load() {
		return fmt.Errorf("%w: cannot register %s", ErrRegistrySealed, d.typ)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[d.typ]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, d.typ)
	}
	d.id = len(r.order)
	r.defs[d.typ] = d
	r.order = append(r.order, d.typ)
	return nil
}

// ── Lookup ────────────────────────────────────────────────────────────────────

// Has reports whether a provider is registered for t.
func (r *Registry) Has(t reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[t]
	return ok
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reflect.Type, len(r.order))
	copy(out, r.order)
	return out
}

// Scope returns the scope t is registered under.
func (r *Registry) Scope(t reflect.Type) (Scope, bool) {
	d, ok := r.lookup(t)
	if !ok {
		return 0, false
	}
	return d.scope, true
}

func (r *Registry) lookup(t reflect.Type) (*definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[t]
	return d, ok
}

// seal freezes registration. Called on first use.
func (r *Registry) seal() error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	r.sealed.Store(true)
	return nil
}

// ── PROCESS cache ─────────────────────────────────────────────────────────────

// resolveProcess returns the PROCESS instance of d, constructing it at most
// once. Concurrent first callers share one construction; each waits on its
// own ctx (nil for synchronous callers).
func (r *Registry) resolveProcess(ctx context.Context, d *definition, opID string) (reflect.Value, error) {
	if v, ok := r.instances.Load(d.typ); ok {
		return v.(reflect.Value), nil
	}

	key := strconv.Itoa(d.id)
	build := func() (any, error) {
		if v, ok := r.instances.Load(d.typ); ok {
			return v, nil
		}
		if r.closed.Load() {
			return nil, ErrRegistryClosed
		}

		var bctx context.Context
		if ctx != nil {
			bctx = context.WithoutCancel(ctx)
		}
		args := make([]reflect.Value, len(d.factory.deps))
		for i, dep := range d.factory.deps {
			depDef, _ := r.lookup(dep)
			v, err := r.resolveProcess(bctx, depDef, opID)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}

		p, err := r.invoke(bctx, d, args, opID)
		if err != nil {
			return nil, newResolveError(d.typ, []reflect.Type{d.typ}, err)
		}
		td := teardown{typ: d.typ, scope: Process, release: p.release, asyncRelease: p.asyncRelease}

		// Close drains teardowns under teardownMu after marking the registry
		// closed, so a resource built concurrently with Close is either
		// drained by it or released here.
		r.teardownMu.Lock()
		if r.closed.Load() {
			r.teardownMu.Unlock()
			err := error(ErrRegistryClosed)
			if p.releasable() {
				rctx := bctx
				if rctx == nil {
					rctx = context.Background()
				}
				err = multierr.Append(err, r.runTeardowns(rctx, []teardown{td}, opID))
			}
			return nil, err
		}
		if p.releasable() {
			r.teardowns = append(r.teardowns, td)
		}
		r.instances.Store(d.typ, p.value)
		r.teardownMu.Unlock()
		return p.value, nil
	}

	if ctx == nil {
		v, err, _ := r.flight.Do(key, build)
		if err != nil {
			return reflect.Value{}, err
		}
		return v.(reflect.Value), nil
	}

	select {
	case res := <-r.flight.DoChan(key, build):
		if res.Err != nil {
			return reflect.Value{}, res.Err
		}
		return res.Val.(reflect.Value), nil
	case <-ctx.Done():
		return reflect.Value{}, ctx.Err()
	}
}

// invoke runs d's factory, reporting to the logger and observers.
func (r *Registry) invoke(ctx context.Context, d *definition, args []reflect.Value, opID string) (product, error) {
	start := time.Now()
	p, err := d.factory.call(ctx, args)
	elapsed := time.Since(start)

	for _, o := range r.observers {
		o.FactoryInvoked(FactoryEvent{Registry: r.name, Type: d.typ, Scope: d.scope, Kind: d.factory.kind, Duration: elapsed, Err: err})
	}
	if err != nil {
		r.logger.Debug("provider failed",
			zap.Stringer("type", d.typ),
			zap.Stringer("scope", d.scope),
			zap.String("operation", opID),
			zap.Error(err),
		)
		return p, err
	}
	r.logger.Debug("provider constructed",
		zap.Stringer("type", d.typ),
		zap.Stringer("scope", d.scope),
		zap.Stringer("kind", d.factory.kind),
		zap.String("operation", opID),
		zap.Duration("elapsed", elapsed),
	)
	return p, nil
}

// ── Disposal ──────────────────────────────────────────────────────────────────

// Close releases every PROCESS-scope resource in reverse acquisition order
// and drops the registry's cached wrappers. Release failures do not stop the
// remaining releases; they are combined in the returned error. A second call
// returns ErrRegistryClosed.
func (r *Registry) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrRegistryClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	wrappers.drop(r)

	r.teardownMu.Lock()
	pending := r.teardowns
	r.teardowns = nil
	r.teardownMu.Unlock()

	r.logger.Debug("registry closing", zap.Int("resources", len(pending)))
	return r.runTeardowns(ctx, pending, "")
}
