package lifecycle

import "context"

// Drainable is a resource flushed once before the process ends, e.g. metric
// buffers, span batches or log sinks.
type Drainable interface {
	// OnExit flushes and releases the resource. The context carries the drain
	// deadline; implementations should respect it.
	OnExit(ctx context.Context) error
}

// DrainFunc adapts a plain function to Drainable.
type DrainFunc func(ctx context.Context) error

func (f DrainFunc) OnExit(ctx context.Context) error { return f(ctx) }

var nopDrain = DrainFunc(func(context.Context) error { return nil })
