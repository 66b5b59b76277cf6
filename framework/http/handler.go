package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/km-arc/go-spritze/framework/container"
)

// HandlerFunc is the residual signature of an injected handler: the
// function passed to Handler takes these parameters plus any number of
// container.In structs.
type HandlerFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// HandlerOption configures Handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	logger *zap.Logger
}

// WithErrorLogger logs handler failures to l.
func WithErrorLogger(l *zap.Logger) HandlerOption {
	return func(c *handlerConfig) { c.logger = l }
}

// Handler adapts an injected handler to net/http. Each request runs as one
// asynchronous operation on the request context, so OPERATION-scope
// resources live exactly as long as the request. A returned error is
// rendered with Response.Fail unless the handler already wrote a response.
//
//	type userDeps struct {
//	    container.In
//	    Users *UserService
//	}
//
//	h, err := gohttp.Handler(inj, func(ctx context.Context, w http.ResponseWriter, r *http.Request, d userDeps) error {
//	    ...
//	})
func Handler(inj *container.Injector, fn any, opts ...HandlerOption) (http.HandlerFunc, error) {
	bound, err := container.Bind[HandlerFunc](inj, fn)
	if err != nil {
		return nil, err
	}
	return serve(bound, opts), nil
}

// Inject is like Handler against the process-wide injector set by
// container.Init.
func Inject(fn any, opts ...HandlerOption) (http.HandlerFunc, error) {
	bound, err := container.Inject[HandlerFunc](fn)
	if err != nil {
		return nil, err
	}
	return serve(bound, opts), nil
}

// MustHandler is like Handler but panics when fn cannot be bound.
func MustHandler(inj *container.Injector, fn any, opts ...HandlerOption) http.HandlerFunc {
	h, err := Handler(inj, fn, opts...)
	if err != nil {
		panic(fmt.Sprintf("http: MustHandler: %v", err))
	}
	return h
}

func serve(bound HandlerFunc, opts []HandlerOption) http.HandlerFunc {
	cfg := handlerConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		err := bound(r.Context(), ww, r)
		if err == nil {
			return
		}

		cfg.logger.Error("handler failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", StatusOf(err)),
			zap.Error(err),
		)
		if ww.Status() != 0 || ww.BytesWritten() > 0 {
			return
		}
		NewResponse(ww).Fail(err)
	}
}
