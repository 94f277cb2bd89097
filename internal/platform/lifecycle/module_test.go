package lifecycle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/apihost/pkg/config"
)

func TestModule_AppStopDrainsOnce(t *testing.T) {
	var calls atomic.Int32
	fake := &fakeSignals{}
	var c *Coordinator

	app := fxtest.New(t,
		fx.Provide(func() *zap.SugaredLogger { return zap.NewNop().Sugar() }),
		fx.Supply(&cfgpkg.Config{Shutdown: cfgpkg.ShutdownConfig{DrainTimeout: 250 * time.Millisecond}}),
		fx.Provide(func() Drainable {
			return DrainFunc(func(ctx context.Context) error {
				calls.Add(1)
				return nil
			})
		}),
		Module,
		fx.Replace(NewSignalSourceWith(fake.notify, fake.stop)),
		fx.Populate(&c),
	)

	app.RequireStart()
	require.Equal(t, StateIdle, c.State())
	require.Len(t, fake.sigs, 2)
	require.Equal(t, 250*time.Millisecond, c.timeout)

	app.RequireStop()
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, StateCompleted, c.State())
	out, ok := c.Outcome()
	require.True(t, ok)
	require.Equal(t, TriggerPreExit, out.Trigger.Kind)
}

func TestModule_StopAfterSignalReportsSignal(t *testing.T) {
	rec := &exitRecorder{}
	fake := &fakeSignals{}
	var (
		c      *Coordinator
		reason *StopReason
	)

	app := fxtest.New(t,
		fx.Provide(func() *zap.SugaredLogger { return zap.NewNop().Sugar() }),
		fx.Supply(&cfgpkg.Config{Shutdown: cfgpkg.ShutdownConfig{DrainTimeout: 250 * time.Millisecond}}),
		fx.Provide(func() Drainable { return DrainFunc(func(ctx context.Context) error { return nil }) }),
		fx.Supply(ExitFunc(rec.exit)),
		Module,
		fx.Replace(NewSignalSourceWith(fake.notify, fake.stop)),
		fx.Populate(&c, &reason),
	)

	app.RequireStart()
	// the runtime saw SIGTERM before the signal source dispatched it
	reason.Record(Terminate())
	app.RequireStop()

	out, ok := c.Outcome()
	require.True(t, ok)
	require.Equal(t, Terminate(), out.Trigger)
	require.Equal(t, []int{0}, rec.Codes())
}
