package main

// @title           API
// @version         1.0
// @description     API docs

// @BasePath  /

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the access token.

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/apihost/internal/app"
	"github.com/fatflowers/apihost/internal/platform/lifecycle"
)

func main() {
	os.Exit(run())
}

// run starts the app, blocks until it is asked to stop and returns the exit
// code. When a signal stopped the app it is recorded as the stop reason, so the
// coordinator drains for that signal and exits on its own from the stop hook.
func run(opts ...fx.Option) int {
	var (
		coord  *lifecycle.Coordinator
		hooks  *lifecycle.HookSource
		reason *lifecycle.StopReason
	)
	a := fx.New(append([]fx.Option{app.Module, fx.Populate(&coord, &hooks, &reason)}, opts...)...)

	exitCode := 0
	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		// Logging might not be ready; fallback to zap example
		zap.NewExample().Sugar().Errorf("failed to start app: %v", err)
		exitCode = 1
	} else {
		sig := <-a.Wait()
		exitCode = sig.ExitCode
		// fx reports Shutdowner calls as SIGTERM as well; those carry a non-zero code
		if reason != nil && sig.ExitCode == 0 {
			if t, ok := lifecycle.TriggerForSignal(sig.Signal); ok {
				reason.Record(t)
			}
		}

		stopCtx, cancel2 := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
		defer cancel2()
		if err := a.Stop(stopCtx); err != nil {
			zap.NewExample().Sugar().Errorf("failed to stop app: %v", err)
			exitCode = 1
		}
	}

	// coordinator is nil when the graph failed to build
	if coord == nil || hooks == nil {
		return exitCode
	}
	hooks.Fire(lifecycle.NormalExit(exitCode))
	waitCtx, cancel3 := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancel3()
	_ = coord.Wait(waitCtx)
	return exitCode
}
