package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/fatflowers/apihost/internal/platform/lifecycle"
)

type exitRecorder struct {
	mu    sync.Mutex
	codes []int
}

func (r *exitRecorder) exit(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

func (r *exitRecorder) Codes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.codes...)
}

// appEnv points the app at a free local port with metrics and push disabled
// and returns the health URL.
func appEnv(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	t.Setenv("APP_CONFIG_FILE", "")
	t.Setenv("APP_CONFIG_NAME", "config-absent-in-tests")
	t.Setenv("APP_HTTP_HOST", "127.0.0.1")
	t.Setenv("APP_HTTP_PORT", fmt.Sprint(port))
	t.Setenv("APP_MONITORING_METRICS_ADDR", "")
	t.Setenv("APP_SHUTDOWN_DRAIN_TIMEOUT", "500ms")
	return fmt.Sprintf("http://127.0.0.1:%d/api/v1/healthz", port)
}

func waitServing(t *testing.T, url string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRun_SignalDrainsForThatSignal(t *testing.T) {
	url := appEnv(t)
	rec := &exitRecorder{}
	var coord *lifecycle.Coordinator

	done := make(chan int, 1)
	go func() {
		done <- run(fx.Supply(lifecycle.ExitFunc(rec.exit)), fx.Populate(&coord))
	}()
	waitServing(t, url)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	select {
	case code := <-done:
		require.Equal(t, 0, code)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after SIGTERM")
	}

	out, ok := coord.Outcome()
	require.True(t, ok)
	require.Equal(t, lifecycle.Terminate(), out.Trigger)
	// the signal goroutine may still be between completing the drain and exiting
	require.Eventually(t, func() bool { return len(rec.Codes()) > 0 }, time.Second, time.Millisecond)
	require.Equal(t, []int{0}, rec.Codes())
}

func TestRun_ShutdownKeepsExitCode(t *testing.T) {
	url := appEnv(t)
	rec := &exitRecorder{}
	var coord *lifecycle.Coordinator
	shutdowners := make(chan fx.Shutdowner, 1)

	done := make(chan int, 1)
	go func() {
		done <- run(
			fx.Supply(lifecycle.ExitFunc(rec.exit)),
			fx.Populate(&coord),
			fx.Invoke(func(s fx.Shutdowner) { shutdowners <- s }),
		)
	}()
	waitServing(t, url)

	require.NoError(t, (<-shutdowners).Shutdown(fx.ExitCode(3)))
	select {
	case code := <-done:
		require.Equal(t, 3, code)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after Shutdown")
	}

	out, ok := coord.Outcome()
	require.True(t, ok)
	require.Equal(t, lifecycle.PreExit(), out.Trigger)
	require.Empty(t, rec.Codes())
}
