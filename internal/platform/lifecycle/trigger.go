package lifecycle

import (
	"fmt"

	"github.com/samber/lo"
)

// TriggerKind identifies the event that asked the process to end.
type TriggerKind int

const (
	// TriggerNormalExit is raised by the process entry point right before it exits on its own.
	TriggerNormalExit TriggerKind = iota
	// TriggerInterrupt maps to SIGINT (Ctrl+C).
	TriggerInterrupt
	// TriggerTerminate maps to SIGTERM, the usual request from process managers.
	TriggerTerminate
	// TriggerPreExit is raised while the application is stopping, before the runtime exits.
	TriggerPreExit
)

// AllTriggerKinds lists every kind a Coordinator binds to.
var AllTriggerKinds = []TriggerKind{
	TriggerNormalExit,
	TriggerInterrupt,
	TriggerTerminate,
	TriggerPreExit,
}

func (k TriggerKind) String() string {
	switch k {
	case TriggerNormalExit:
		return "normal_exit"
	case TriggerInterrupt:
		return "interrupt"
	case TriggerTerminate:
		return "terminate"
	case TriggerPreExit:
		return "pre_exit"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Forced reports whether the process must be terminated explicitly once the
// drain settles. Observational kinds only need the drain to finish before the
// runtime's own exit proceeds.
func (k TriggerKind) Forced() bool {
	return lo.Contains([]TriggerKind{TriggerInterrupt, TriggerTerminate}, k)
}

// Trigger is a single termination event. Code is only meaningful for
// TriggerNormalExit.
type Trigger struct {
	Kind TriggerKind
	Code int
}

func NormalExit(code int) Trigger { return Trigger{Kind: TriggerNormalExit, Code: code} }
func Interrupt() Trigger          { return Trigger{Kind: TriggerInterrupt} }
func Terminate() Trigger          { return Trigger{Kind: TriggerTerminate} }
func PreExit() Trigger            { return Trigger{Kind: TriggerPreExit} }

func (t Trigger) String() string {
	if t.Kind == TriggerNormalExit {
		return fmt.Sprintf("%s(%d)", t.Kind, t.Code)
	}
	return t.Kind.String()
}
