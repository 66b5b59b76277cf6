// Package container provides a type-keyed dependency injection runtime with
// explicit lifetime scopes and deterministic resource teardown.
//
// # Overview
//
// A Registry maps produced types to providers. A provider pairs a Scope with
// a Factory; the factory's parameters are its dependencies. Resolving a type
// walks the graph below it, checks that every type has a provider, that there
// are no cycles and that no asynchronous provider is needed from a
// synchronous operation, and only then runs factories in dependency order.
//
// # Registry Lifecycle
//
//  1. Create: r := container.New(container.WithLogger(logger))
//  2. Register providers: r.Provide(...), container.Declare[T](r), r.Install(...)
//  3. Resolve: the first resolution seals the registry
//  4. Close: r.Close(ctx) releases PROCESS-scope resources
//
// # Scopes
//
//	// Process: one instance for the registry's life
//	r.Provide(container.Process, container.Value(NewConfig))
//
//	// Operation: one instance per operation, released when it closes
//	r.Provide(container.Operation, container.Resource(OpenTx))
//
// # Factories
//
//	// Plain value, optionally with an error
//	container.Value(func(cfg *Config) (*Cache, error) { ... })
//
//	// Resource: the release runs exactly once when the owning scope ends
//	container.Resource(func(cfg *Config) (*Database, container.Release, error) {
//	    db := open(cfg.DSN)
//	    return db, db.Close, nil
//	})
//
//	// Context-aware variants need an operation opened with Begin(ctx)
//	container.AsyncResource(func(ctx context.Context, cfg *Config) (*Conn, container.AsyncRelease, error) { ... })
//
// # Operations
//
// Each operation is a *Resolution, opened with Begin, BeginSync or Run.
//
//	err := container.Run(ctx, r, func(op *container.Resolution) error {
//	    svc, err := container.Resolve[*UserService](op)
//	    if err != nil {
//	        return err
//	    }
//	    return svc.Sync(ctx)
//	})
//
// Releases run in reverse acquisition order when the operation closes, even
// if the context was cancelled or an earlier release failed.
//
// # Context Fields
//
//	var requestID = container.NewField[RequestID]("request_id")
//	container.BindField(r, requestID)
//
//	requestID.Set(container.DefaultFields(), "req-123")
//
// # Injected Functions
//
//	type deps struct {
//	    container.In
//	    Users *UserService
//	}
//
//	container.Init(r)
//	getUser := container.MustInject[func(context.Context, int) (*User, error)](
//	    func(ctx context.Context, id int, d deps) (*User, error) {
//	        return d.Users.Find(ctx, id)
//	    })
//
// With several registries, Init(primary, fallback) tries each in order and
// moves on only when resolution fails with ErrDependencyNotFound or
// ErrInvalidProvider.
package container
