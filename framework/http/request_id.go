package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/km-arc/go-spritze/framework/container"
)

// RequestIDHeader is read from incoming requests and echoed on responses.
const RequestIDHeader = "X-Request-ID"

// RequestID identifies one HTTP request.
type RequestID string

// RequestIDField is the context field holding the current request's ID.
// Bind it with container.BindField to inject RequestID into handlers.
var RequestIDField = container.NewField[RequestID]("request_id")

type requestIDKey struct{}

// AssignRequestID tags every request with an ID, taken from the
// X-Request-ID header or freshly generated. The ID is written to the
// request context, the response header and RequestIDField in store.
//
// The field store is process-wide: concurrent requests overwrite each
// other's slot. Use RequestIDFrom when a handler needs the ID of its own
// request under concurrency.
func AssignRequestID(store *container.FieldStore) func(http.Handler) http.Handler {
	if store == nil {
		store = container.DefaultFields()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := RequestID(r.Header.Get(RequestIDHeader))
			if id == "" {
				id = RequestID(uuid.NewString())
			}
			RequestIDField.Set(store, id)
			w.Header().Set(RequestIDHeader, string(id))

			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFrom returns the ID AssignRequestID stored in ctx.
func RequestIDFrom(ctx context.Context) (RequestID, bool) {
	id, ok := ctx.Value(requestIDKey{}).(RequestID)
	return id, ok
}
