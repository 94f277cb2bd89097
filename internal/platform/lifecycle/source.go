package lifecycle

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler receives a termination trigger.
type Handler func(Trigger)

// Source delivers termination triggers of one or more kinds.
type Source interface {
	// Register installs h for kind and reports whether this source can ever
	// deliver that kind.
	Register(kind TriggerKind, h Handler) bool
}

// HookSource delivers triggers raised from inside the process: the pre-exit
// notification from the application stop hook and the normal-exit
// notification from the entry point.
type HookSource struct {
	mu       sync.RWMutex
	handlers map[TriggerKind][]Handler
}

func NewHookSource() *HookSource {
	return &HookSource{handlers: make(map[TriggerKind][]Handler)}
}

func (s *HookSource) Register(kind TriggerKind, h Handler) bool {
	if h == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = append(s.handlers[kind], h)
	return true
}

// Fire runs the handlers registered for t.Kind on the calling goroutine.
func (s *HookSource) Fire(t Trigger) {
	s.mu.RLock()
	hs := append([]Handler(nil), s.handlers[t.Kind]...)
	s.mu.RUnlock()
	for _, h := range hs {
		h(t)
	}
}

// NotifyFunc matches signal.Notify.
type NotifyFunc func(c chan<- os.Signal, sig ...os.Signal)

// SignalSource turns OS signals into Interrupt and Terminate triggers. Signals
// stay captured for the rest of the process lifetime so a second Ctrl+C does
// not fall back to the default hard kill while a drain is running.
type SignalSource struct {
	notify NotifyFunc
	stop   func(c chan<- os.Signal)

	mu       sync.Mutex
	ch       chan os.Signal
	handlers map[TriggerKind][]Handler
}

var signalKinds = map[os.Signal]TriggerKind{
	os.Interrupt:    TriggerInterrupt,
	syscall.SIGTERM: TriggerTerminate,
}

// TriggerForSignal maps a termination signal to its trigger.
func TriggerForSignal(sig os.Signal) (Trigger, bool) {
	kind, ok := signalKinds[sig]
	if !ok {
		return Trigger{}, false
	}
	return Trigger{Kind: kind}, true
}

func NewSignalSource() *SignalSource {
	return NewSignalSourceWith(signal.Notify, signal.Stop)
}

// NewSignalSourceWith lets tests deliver signals without touching the OS.
func NewSignalSourceWith(notify NotifyFunc, stop func(c chan<- os.Signal)) *SignalSource {
	return &SignalSource{
		notify:   notify,
		stop:     stop,
		handlers: make(map[TriggerKind][]Handler),
	}
}

func (s *SignalSource) Register(kind TriggerKind, h Handler) bool {
	if h == nil {
		return false
	}
	var sig os.Signal
	for candidate, k := range signalKinds {
		if k == kind {
			sig = candidate
		}
	}
	if sig == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		s.ch = make(chan os.Signal, len(signalKinds))
		go s.dispatch(s.ch)
	}
	s.handlers[kind] = append(s.handlers[kind], h)
	s.notify(s.ch, sig)
	return true
}

// dispatch hands every signal to its own goroutine so a late signal is
// observed (and ignored) right away instead of queueing behind a drain.
func (s *SignalSource) dispatch(ch <-chan os.Signal) {
	for sig := range ch {
		t, ok := TriggerForSignal(sig)
		if !ok {
			continue
		}
		s.mu.Lock()
		hs := append([]Handler(nil), s.handlers[t.Kind]...)
		s.mu.Unlock()
		for _, h := range hs {
			go h(t)
		}
	}
}

// Close stops signal delivery. Production code never calls it.
func (s *SignalSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return
	}
	s.stop(s.ch)
	close(s.ch)
	s.ch = nil
}
