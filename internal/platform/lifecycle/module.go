package lifecycle

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/apihost/pkg/config"
)

// ExitFunc terminates the process on the forced path. Supply one to keep
// tests alive; os.Exit is used otherwise.
type ExitFunc func(code int)

type CoordinatorParams struct {
	fx.In

	Log   *zap.SugaredLogger
	Cfg   *cfgpkg.Config
	Drain Drainable
	Exit  ExitFunc `optional:"true"`
}

func NewCoordinator(p CoordinatorParams) *Coordinator {
	return New(p.Log, p.Drain, WithDrainTimeout(p.Cfg.Shutdown.DrainTimeout), WithExit(p.Exit))
}

type triggerParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Log         *zap.SugaredLogger
	Coordinator *Coordinator
	Signals     *SignalSource
	Hooks       *HookSource
	Reason      *StopReason
}

// registerTriggers binds the coordinator to OS signals and in-process hooks.
// When the application stops it raises the recorded stop reason (PreExit
// unless a signal was recorded) and waits for whichever drain is in flight so
// the runtime never exits ahead of it.
func registerTriggers(p triggerParams) {
	c := p.Coordinator
	c.RegisterTriggers(p.Signals, p.Hooks)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			p.Hooks.Fire(p.Reason.Trigger())
			if err := c.Wait(ctx); err != nil {
				p.Log.Warnw("stop deadline reached before drain completed", "err", err)
			}
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewSignalSource),
	fx.Provide(NewHookSource),
	fx.Provide(NewStopReason),
	fx.Provide(NewCoordinator),
	fx.Invoke(registerTriggers),
)
