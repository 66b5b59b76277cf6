package container

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// teardown is a pending release registered by a resource factory.
type teardown struct {
	typ          reflect.Type
	scope        Scope
	release      Release
	asyncRelease AsyncRelease
}

// run calls the release exactly once. A panicking release is reported as a
// failure so that sibling releases still run.
func (t teardown) run(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("release panicked: %v", p)
		}
	}()
	if t.asyncRelease != nil {
		return t.asyncRelease(ctx)
	}
	return t.release()
}

// runTeardowns releases pending in reverse acquisition order. Cancellation of
// ctx is ignored so that every release gets to run.
func (r *Registry) runTeardowns(ctx context.Context, pending []teardown, opID string) error {
	rctx := context.WithoutCancel(ctx)

	var errs error
	for i := len(pending) - 1; i >= 0; i-- {
		td := pending[i]
		err := td.run(rctx)

		for _, o := range r.observers {
			o.TeardownRan(TeardownEvent{Registry: r.name, Type: td.typ, Scope: td.scope, Err: err})
		}
		if err == nil {
			continue
		}

		r.logger.Warn("teardown failed",
			zap.Stringer("type", td.typ),
			zap.Stringer("scope", td.scope),
			zap.String("operation", opID),
			zap.Error(err),
		)
		errs = multierr.Append(errs, &TeardownError{Type: td.typ, Scope: td.scope, Err: err})
	}
	return errs
}
