package overseer

import (
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// CreateReason categorizes why a Child was spawned.
type CreateReason int

const (
	// Initial marks a child spawned while first bringing the pool up to min.
	Initial CreateReason = iota
	// Replacement marks a child spawned to replenish the pool after a loss.
	Replacement
	// ScaleUp marks a child spawned in response to an explicit ScaleUp call.
	ScaleUp
)

// String returns the string representation of a CreateReason.
func (r CreateReason) String() string {
	switch r {
	case Initial:
		return "Initial"
	case Replacement:
		return "Replacement"
	case ScaleUp:
		return "ScaleUp"
	default:
		return "Unknown"
	}
}

// ExitReason categorizes how a Child terminated.
type ExitReason int

const (
	// Unknown is the exit reason while a child is still running.
	Unknown ExitReason = iota
	// Normal marks a child that exited via a normal process exit.
	Normal
	// Signal marks a child terminated by a signal other than the force-kill signal.
	Signal
	// Killed marks a child terminated by the configured force-kill signal.
	Killed
)

// String returns the string representation of an ExitReason.
func (r ExitReason) String() string {
	switch r {
	case Normal:
		return "Normal"
	case Signal:
		return "Signal"
	case Killed:
		return "Killed"
	default:
		return "Unknown"
	}
}

// Child is the master-side handle to one supervised process.
//
// A Child delivered to a callback is a by-value snapshot: mutating it has
// no effect on the supervisor's own bookkeeping. The registry itself is
// mutated only by the event loop goroutine.
type Child struct {
	// ID is a supervisor-assigned identifier, stable for the lifetime of
	// this Child. Pid is reused by the kernel once a process is reaped;
	// ID is not, so it is the correlation key to use across a
	// ChildCreated/ChildExited pair once a pid could plausibly recur.
	ID uuid.UUID

	// Pid is the OS process id. Positive and unique while running or unreaped.
	Pid int

	// CreateReason records why this child was spawned. Immutable.
	CreateReason CreateReason

	// Running is true from creation until the reaper observes exit.
	Running bool

	// ExitCode is defined only once Running is false; 0 if exit was signal-induced.
	ExitCode int

	// ExitReason is Unknown while Running, populated by the reaper otherwise.
	ExitReason ExitReason

	// StartedAt is the wall-clock time the child was successfully spawned.
	// It has no bearing on supervision decisions; it exists for logging
	// and Event timestamps.
	StartedAt time.Time

	// terminating is set once ScaleController has intentionally signalled
	// this child for scale-down, so it is not selected twice.
	terminating bool

	// process is the *os.Process handle of the child and cmd the
	// *exec.Cmd that launched it. Both are set for Command and Closure
	// children alike: a Closure child is a re-exec of the current binary,
	// signalled and reaped the same way.
	process *os.Process
	cmd     *exec.Cmd

	// stdin/stdout/stderr/ipc are the master-side raw, non-blocking file
	// descriptors for this child. -1 means "not present" (e.g. stdin on
	// a Closure child, which has no stdio pipes at all).
	// The master never wraps these in a net.Conn: it drives them
	// directly with non-blocking reads through IOMultiplexer /
	// StreamDispatcher (see multiplex.go, dispatch.go). Closure children
	// have no stdio pipes, so stdinFd/stdoutFd/stderrFd are noFd and
	// ipcFd is the parent end of the socket pair.
	stdinFd  int
	stdoutFd int
	stderrFd int
	ipcFd    int
}

// ClosureFunc is invoked in a re-exec'd child process with the child end
// of a connected unix-domain stream socket. The child process exits once
// the routine returns, regardless of the error it returns; a non-nil
// error is logged to the child's stderr but does not change the exit
// status (see WithClosure).
type ClosureFunc func(conn *net.UnixConn) error

// OutputFunc receives raw bytes read from a child's stdout or stderr.
// Bytes are delivered with no newline normalization and interleaving
// between stdout and stderr across calls is possible.
type OutputFunc func(c Child, data []byte)

// MessageFunc receives one decoded JSON value per well-formed
// newline-delimited line read from a child's IPC channel.
type MessageFunc func(c Child, msg any)

// CreateFunc is invoked once a Child has been inserted into the registry.
type CreateFunc func(c Child)

// ExitFunc is invoked once a Child has been reaped and removed from the
// registry, with a snapshot reflecting its final state.
type ExitFunc func(c Child, reason ExitReason)

// SignalFunc is invoked once per live child when a user signal arrives.
type SignalFunc func(c Child, sig int)

// HeartbeatFunc is invoked periodically from the event loop.
type HeartbeatFunc func()

// ShutdownFunc is invoked exactly once, before the terminate broadcast,
// with the registry still fully populated.
type ShutdownFunc func()
