package observe_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-spritze/framework/container"
	"github.com/km-arc/go-spritze/framework/observe"
)

type settings struct{}
type session struct{}

func TestMetrics_CountsLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observe.NewMetrics(reg, "test")
	require.NoError(t, err)

	r := container.New(container.WithName("metrics"), container.WithObserver(m))
	require.NoError(t, r.Provide(container.Process, container.Value(func() *settings { return &settings{} })))
	require.NoError(t, r.Provide(container.Operation, container.Resource(func(*settings) (*session, container.Release) {
		return &session{}, func() error { return errors.New("close failed") }
	})))

	for i := 0; i < 2; i++ {
		_ = container.Run(nil, r, func(op *container.Resolution) error {
			_, err := container.Resolve[*session](op)
			return err
		})
	}

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "test_container_factory_invocations_total"))

	expected := `
# HELP test_container_teardowns_total Total number of resource releases
# TYPE test_container_teardowns_total counter
test_container_teardowns_total{registry="metrics",scope="operation",type="*observe_test.session"} 2
# HELP test_container_teardown_errors_total Total number of failed resource releases
# TYPE test_container_teardown_errors_total counter
test_container_teardown_errors_total{registry="metrics",scope="operation",type="*observe_test.session"} 2
# HELP test_container_factory_invocations_total Total number of provider factory invocations
# TYPE test_container_factory_invocations_total counter
test_container_factory_invocations_total{registry="metrics",scope="operation",type="*observe_test.session"} 2
test_container_factory_invocations_total{registry="metrics",scope="process",type="*observe_test.settings"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"test_container_teardowns_total",
		"test_container_teardown_errors_total",
		"test_container_factory_invocations_total",
	))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observe.NewMetrics(reg, "dup")
	require.NoError(t, err)
	_, err = observe.NewMetrics(reg, "dup")
	assert.Error(t, err)
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observe.NewMetrics(reg, "http")
	require.NoError(t, err)
	m.TeardownRan(container.TeardownEvent{Registry: "r", Type: container.TypeOf[*session](), Scope: container.Operation})

	rr := httptest.NewRecorder()
	observe.Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "http_container_teardowns_total"))
}
