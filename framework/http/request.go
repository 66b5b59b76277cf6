package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const maxBody = 1 << 20 // 1 MB

// Request wraps *http.Request with input helpers.
type Request struct {
	raw *http.Request
}

// NewRequest wraps a standard *http.Request.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r}
}

// Raw returns the underlying *http.Request.
func (req *Request) Raw() *http.Request { return req.raw }

// ── Binding ──────────────────────────────────────────────────────────────────

// Bind decodes a JSON request body into v. Failures are *Error values with
// status 400 or 415.
func (req *Request) Bind(v any) error {
	if ct := req.raw.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		return NewError(http.StatusUnsupportedMediaType, "expected application/json")
	}
	defer req.raw.Body.Close()

	body, err := io.ReadAll(io.LimitReader(req.raw.Body, maxBody))
	if err != nil {
		return Wrap(http.StatusBadRequest, "unreadable body", err)
	}
	if len(body) == 0 {
		return Wrap(http.StatusBadRequest, "empty request body", errors.New("empty request body"))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return Wrap(http.StatusBadRequest, "malformed JSON body", err)
	}
	return nil
}

// ── Input helpers ────────────────────────────────────────────────────────────

// Query returns a query-string value.
func (req *Request) Query(key string, fallback ...string) string {
	v := req.raw.URL.Query().Get(key)
	if v == "" && len(fallback) > 0 {
		return fallback[0]
	}
	return v
}

// RouteParam returns a URL route parameter (chi).
func (req *Request) RouteParam(key string) string {
	return chi.URLParam(req.raw, key)
}

// RouteInt returns a URL route parameter parsed as an int, or a 400 *Error.
func (req *Request) RouteInt(key string) (int, error) {
	v := chi.URLParam(req.raw, key)
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, Wrap(http.StatusBadRequest, "invalid "+key, err)
	}
	return i, nil
}

// Header returns a request header value.
func (req *Request) Header(key string) string {
	return req.raw.Header.Get(key)
}
