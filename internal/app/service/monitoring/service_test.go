package monitoring

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/apihost/pkg/config"
)

func testConfig(pushURL string) *cfgpkg.Config {
	return &cfgpkg.Config{
		Env: cfgpkg.EnvDev,
		App: cfgpkg.AppConfig{Name: "apihost", Version: "test"},
		Monitoring: cfgpkg.MonitoringConfig{
			Job:            "apihost",
			PushgatewayURL: pushURL,
		},
	}
}

type pushRecorder struct {
	mu     sync.Mutex
	paths  []string
	bodies []string
}

func (p *pushRecorder) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		p.mu.Lock()
		p.paths = append(p.paths, r.Method+" "+r.URL.Path)
		p.bodies = append(p.bodies, string(body))
		p.mu.Unlock()
		w.WriteHeader(status)
	}
}

func TestOnExit_NoSinksConfigured(t *testing.T) {
	s, err := New(testConfig(""), zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NotEmpty(t, s.InstanceID())

	require.NoError(t, s.OnExit(context.Background()))
}

func TestOnExit_PushesFinalMetricsOnce(t *testing.T) {
	rec := &pushRecorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK))
	defer srv.Close()

	s, err := New(testConfig(srv.URL), zap.NewNop().Sugar())
	require.NoError(t, err)

	require.NoError(t, s.OnExit(context.Background()))
	require.NoError(t, s.OnExit(context.Background()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []string{http.MethodPut + " /metrics/job/apihost/instance/" + s.InstanceID()}, rec.paths)
	require.Contains(t, rec.bodies[0], "apihost_exit_time_seconds")
	require.Contains(t, rec.bodies[0], "apihost_start_time_seconds")
}

func TestOnExit_PushgatewayFailureIsReported(t *testing.T) {
	rec := &pushRecorder{}
	srv := httptest.NewServer(rec.handler(http.StatusInternalServerError))
	defer srv.Close()

	s, err := New(testConfig(srv.URL), zap.NewNop().Sugar())
	require.NoError(t, err)

	err = s.OnExit(context.Background())
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "pushgateway:"), err.Error())

	// the first result is sticky; nothing is retried
	require.Equal(t, err, s.OnExit(context.Background()))
	rec.mu.Lock()
	require.Len(t, rec.paths, 1)
	rec.mu.Unlock()
}

func TestOnExit_RespectsDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	s, err := New(testConfig(srv.URL), zap.NewNop().Sugar())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.Error(t, s.OnExit(ctx))
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestRegistry_IsPrivate(t *testing.T) {
	a, err := New(testConfig(""), zap.NewNop().Sugar())
	require.NoError(t, err)
	b, err := New(testConfig(""), zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NotSame(t, a.Registry(), b.Registry())

	mfs, err := a.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	require.Contains(t, names, "apihost_start_time_seconds")
	require.Contains(t, names, "go_goroutines")
}
