package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultDrainTimeout bounds how long a drain may hold up termination.
const DefaultDrainTimeout = 5 * time.Second

var (
	// ErrDrainTimeout is recorded when the drainable did not settle before the deadline.
	ErrDrainTimeout = errors.New("drain timed out")
	// ErrDrainFailed wraps any error or panic raised by the drainable.
	ErrDrainFailed = errors.New("drain failed")
)

// State is the shutdown progress of a Coordinator. It only moves forward.
type State int32

const (
	StateIdle State = iota
	StateDraining
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Outcome is the resolved result of the single drain a Coordinator runs.
type Outcome struct {
	Trigger Trigger
	Code    int
	Err     error
}

// Coordinator serializes every termination trigger into a single
// drain-and-exit sequence. The zero value is not usable; use New.
type Coordinator struct {
	log     *zap.SugaredLogger
	drain   Drainable
	timeout time.Duration
	exit    func(code int)

	state        atomic.Int32
	registerOnce sync.Once
	done         chan struct{}
	// outcome is written once before done is closed.
	outcome Outcome
}

type Option func(*Coordinator)

// WithDrainTimeout overrides DefaultDrainTimeout. Non-positive values are ignored.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithExit replaces os.Exit on the forced-termination path.
func WithExit(exit func(code int)) Option {
	return func(c *Coordinator) {
		if exit != nil {
			c.exit = exit
		}
	}
}

func New(log *zap.SugaredLogger, drain Drainable, opts ...Option) *Coordinator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if drain == nil {
		drain = nopDrain
	}
	c := &Coordinator{
		log:     log,
		drain:   drain,
		timeout: DefaultDrainTimeout,
		exit:    os.Exit,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterTriggers binds Handle to every trigger kind on each source. Only the
// first call has an effect.
func (c *Coordinator) RegisterTriggers(sources ...Source) {
	c.registerOnce.Do(func() {
		for _, src := range sources {
			for _, kind := range AllTriggerKinds {
				if src.Register(kind, c.Handle) {
					c.log.Debugw("termination trigger bound", "trigger", kind.String(), "source", fmt.Sprintf("%T", src))
				}
			}
		}
	})
}

// Handle runs the drain for the first trigger it sees and ignores every later
// one. For forced triggers the process is terminated with code 0 once the
// drain settles; otherwise Handle returns after the drain.
func (c *Coordinator) Handle(t Trigger) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateDraining)) {
		c.log.Debugw("termination trigger ignored, shutdown already in progress",
			"trigger", t.String(), "state", c.State().String())
		return
	}

	c.log.Infow("termination trigger received, draining", "trigger", t.String(), "timeout", c.timeout)
	start := time.Now()
	err := c.runDrain()

	c.outcome = Outcome{Trigger: t, Code: exitCode(t), Err: err}
	c.state.Store(int32(StateCompleted))
	close(c.done)

	elapsed := time.Since(start)
	if err != nil {
		c.log.Errorw("drain finished with failure, continuing shutdown",
			"trigger", t.String(), "elapsed_ms", elapsed.Milliseconds(), "err", err)
	} else {
		c.log.Infow("drain completed", "trigger", t.String(), "elapsed_ms", elapsed.Milliseconds())
	}

	if t.Kind.Forced() {
		c.log.Infow("process is exiting", "trigger", t.String(), "code", c.outcome.Code)
		c.exit(c.outcome.Code)
	}
}

func (c *Coordinator) runDrain() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	// buffered so a drain settling after the deadline never blocks
	res := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				res <- fmt.Errorf("%w: panic: %v", ErrDrainFailed, r)
			}
		}()
		res <- c.drain.OnExit(ctx)
	}()

	select {
	case err := <-res:
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrDrainFailed):
			return err
		case errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("%w after %s: %w", ErrDrainTimeout, c.timeout, err)
		default:
			return fmt.Errorf("%w: %w", ErrDrainFailed, err)
		}
	case <-ctx.Done():
		return fmt.Errorf("%w after %s", ErrDrainTimeout, c.timeout)
	}
}

func exitCode(t Trigger) int {
	if t.Kind == TriggerNormalExit {
		return t.Code
	}
	return 0
}

func (c *Coordinator) State() State { return State(c.state.Load()) }

// ShuttingDown reports whether a drain has started.
func (c *Coordinator) ShuttingDown() bool { return c.State() != StateIdle }

// Done is closed once the drain has settled and the outcome is available.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Wait blocks until the drain completes or ctx ends. It does not start a drain.
func (c *Coordinator) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outcome returns the drain result; ok is false until the drain completes.
func (c *Coordinator) Outcome() (Outcome, bool) {
	select {
	case <-c.done:
		return c.outcome, true
	default:
		return Outcome{}, false
	}
}
