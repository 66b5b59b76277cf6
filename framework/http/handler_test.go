package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-spritze/framework/container"
	gohttp "github.com/km-arc/go-spritze/framework/http"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type greeter struct{ greeting string }

type session struct{ released *atomic.Int32 }

type handlerDeps struct {
	container.In
	Greeter *greeter
	Session *session
	ID      gohttp.RequestID
}

func handlerInjector(t *testing.T, store *container.FieldStore, released *atomic.Int32) *container.Injector {
	t.Helper()
	r := container.New(container.WithFieldStore(store))
	require.NoError(t, r.Instance(&greeter{greeting: "hello"}))
	require.NoError(t, r.Provide(container.Operation, container.AsyncResource(
		func(ctx context.Context) (*session, container.AsyncRelease, error) {
			return &session{released: released}, func(context.Context) error {
				released.Add(1)
				return nil
			}, nil
		})))
	require.NoError(t, container.BindField(r, gohttp.RequestIDField))

	inj, err := container.NewInjector(r)
	require.NoError(t, err)
	return inj
}

func greet(ctx context.Context, w http.ResponseWriter, r *http.Request, d handlerDeps) error {
	gohttp.NewResponse(w).Success(map[string]any{
		"greeting":   d.Greeter.greeting,
		"request_id": string(d.ID),
	})
	return nil
}

// ── Handler ───────────────────────────────────────────────────────────────────

func TestHandler_InjectsPerRequest(t *testing.T) {
	store := container.NewFieldStore()
	var released atomic.Int32
	h := gohttp.MustHandler(handlerInjector(t, store, &released), greet)
	srv := gohttp.AssignRequestID(store)(h)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(gohttp.RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	data := decodeJSON(t, rr)["data"].(map[string]any)
	assert.Equal(t, "hello", data["greeting"])
	assert.Equal(t, "req-42", data["request_id"])
	assert.Equal(t, int32(1), released.Load(), "request resources are released when the handler returns")
}

func TestHandler_ErrorRendered(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	store := container.NewFieldStore()
	gohttp.RequestIDField.Set(store, "x")
	var released atomic.Int32

	h := gohttp.MustHandler(handlerInjector(t, store, &released),
		func(ctx context.Context, w http.ResponseWriter, r *http.Request, d handlerDeps) error {
			return gohttp.NewError(http.StatusTeapot, "short and stout")
		},
		gohttp.WithErrorLogger(zap.New(core)),
	)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "short and stout", decodeJSON(t, rr)["message"])
	assert.Equal(t, 1, logs.FilterMessage("handler failed").Len())
	assert.Equal(t, int32(1), released.Load())
}

func TestHandler_MissingRequestID(t *testing.T) {
	var released atomic.Int32
	h := gohttp.MustHandler(handlerInjector(t, container.NewFieldStore(), &released), greet)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, int32(0), released.Load(), "nothing is acquired when a context value is missing")
}

func TestHandler_ErrorAfterWriteKeepsResponse(t *testing.T) {
	store := container.NewFieldStore()
	gohttp.RequestIDField.Set(store, "x")
	var released atomic.Int32

	h := gohttp.MustHandler(handlerInjector(t, store, &released),
		func(ctx context.Context, w http.ResponseWriter, r *http.Request, d handlerDeps) error {
			gohttp.NewResponse(w).Created(nil)
			return gohttp.NewError(http.StatusConflict, "too late")
		})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestHandler_RejectsWrongShape(t *testing.T) {
	inj := handlerInjector(t, container.NewFieldStore(), &atomic.Int32{})
	_, err := gohttp.Handler(inj, func(w http.ResponseWriter, r *http.Request) error { return nil })
	assert.Error(t, err)

	assert.Panics(t, func() {
		gohttp.MustHandler(inj, func(ctx context.Context, r *http.Request) error { return nil })
	})
}

func TestInject_UsesActiveInjector(t *testing.T) {
	store := container.NewFieldStore()
	gohttp.RequestIDField.Set(store, "global")
	var released atomic.Int32
	inj := handlerInjector(t, store, &released)
	require.NoError(t, container.Init(inj.Registries()...))

	h, err := gohttp.Inject(greet)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "global", decodeJSON(t, rr)["data"].(map[string]any)["request_id"])
}
