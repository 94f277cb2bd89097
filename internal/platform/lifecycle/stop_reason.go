package lifecycle

import "sync"

// StopReason carries why the application is stopping into its stop hook. The
// runtime stops the app on SIGINT/SIGTERM too, usually before the signal source
// dispatches, so without it those stops would be reported as PreExit.
type StopReason struct {
	mu      sync.Mutex
	trigger *Trigger
}

func NewStopReason() *StopReason { return &StopReason{} }

// Record keeps the first trigger it is given.
func (r *StopReason) Record(t Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trigger == nil {
		r.trigger = &t
	}
}

// Trigger returns the recorded trigger, or PreExit when none was recorded.
func (r *StopReason) Trigger() Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trigger == nil {
		return PreExit()
	}
	return *r.trigger
}
