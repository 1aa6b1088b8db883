package overseer

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of a local, observability-only event.
//
// Events are a side-channel independent of the named callbacks: every
// child creation and every reaped exit produce one Event whether or not
// OnChildCreate/OnChildExit is registered, each heartbeat callback run
// produces a HeartbeatFired event, and shutdown produces a
// SupervisorStopping/SupervisorStopped pair. Dropped IPC lines and
// config reloads produce events with no callback of their own. The
// message, output and signal callbacks have no matching Event.
type EventType int

const (
	// ChildCreated is emitted after a child is inserted into the registry.
	ChildCreated EventType = iota
	// ChildExited is emitted after a child is reaped and removed.
	ChildExited
	// ChildMessageDropped is emitted when an IPC line fails to JSON-decode.
	ChildMessageDropped
	// HeartbeatFired is emitted each time the heartbeat callback runs.
	HeartbeatFired
	// SupervisorStopping is emitted once, before the terminate broadcast.
	SupervisorStopping
	// SupervisorStopped is emitted once, after the registry is empty.
	SupervisorStopped
	// ConfigReloaded is emitted when a watched config path changes and a
	// reload signal is fanned out to every child.
	ConfigReloaded
)

// String returns the string representation of an EventType.
func (t EventType) String() string {
	switch t {
	case ChildCreated:
		return "ChildCreated"
	case ChildExited:
		return "ChildExited"
	case ChildMessageDropped:
		return "ChildMessageDropped"
	case HeartbeatFired:
		return "HeartbeatFired"
	case SupervisorStopping:
		return "SupervisorStopping"
	case SupervisorStopped:
		return "SupervisorStopped"
	case ConfigReloaded:
		return "ConfigReloaded"
	default:
		return "Unknown"
	}
}

// Event is a local supervisor lifecycle notification, suitable for
// logging or metrics. It carries less domain detail than the named
// callbacks on purpose; it exists to give embedders one place to hook
// uniform observability without decorating every callback.
type Event struct {
	Time EventTime
	ID   uuid.UUID
	Pid  int
	Type EventType
}

// EventTime is time.Time under an alias so Event's zero value prints
// sensibly without importing time at every call site that builds one by
// hand in tests.
type EventTime = time.Time

// EventHandler processes supervisor events. Handlers should return
// quickly: they run synchronously on the event loop goroutine.
type EventHandler func(e Event)

// emitEvent sends an event to every registered handler, stamping Time if
// the caller left it zero.
func (s *Supervisor) emitEvent(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	for _, h := range s.cfg.eventHandlers {
		h(e)
	}
}
