package overseer

import (
	"fmt"
	"net"
	"os"
	"sync"
)

// reexecEnvVar names the environment variable a re-exec'd Closure child
// uses to find which registered ClosureFunc to run. This mirrors the
// re-exec-self pattern used by container runtimes (docker/moby's
// pkg/reexec is the best-known example) to get a clean child process
// without forking a live, multi-threaded Go runtime: rather than
// syscall.ForkExec-ing a raw fork, the supervisor re-launches its own
// binary and lets it take a different code path based on an env marker.
const reexecEnvVar = "OVERSEER_REEXEC_CLOSURE"

var (
	closureRegistryMu sync.Mutex
	closureRegistry   = map[string]ClosureFunc{}
)

// registerClosure records fn under name so a re-exec'd child process,
// which reconstructs the same Supervisor options from the same source
// code, can find and run it. WithClosure calls this automatically using
// fn's compiled symbol name; embedders never call it directly.
func registerClosure(name string, fn ClosureFunc) {
	closureRegistryMu.Lock()
	defer closureRegistryMu.Unlock()
	closureRegistry[name] = fn
}

// maybeRunReexecClosure checks whether the current process was launched
// as a Closure child (the env marker is set) and, if so, runs the
// registered closure against fd 3 and never returns: it terminates the
// process directly, exiting 0 regardless of the closure's own return
// value, per §4.2.
//
// New calls this after applying options, so registerClosure has already
// run for the current process's own WithClosure call by the time this
// check happens.
func maybeRunReexecClosure() {
	name := os.Getenv(reexecEnvVar)
	if name == "" {
		return
	}

	closureRegistryMu.Lock()
	fn, ok := closureRegistry[name]
	closureRegistryMu.Unlock()
	if !ok {
		fmt.Fprintf(os.Stderr, "overseer: re-exec'd with unknown closure %q\n", name)
		os.Exit(1)
	}

	const closureFd = 3
	f := os.NewFile(uintptr(closureFd), "overseer-closure-sock")
	rawConn, err := net.FileConn(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "overseer: closure %q: fd 3 is not a socket: %v\n", name, err)
		os.Exit(1)
	}
	f.Close()

	conn, ok := rawConn.(*net.UnixConn)
	if !ok {
		fmt.Fprintf(os.Stderr, "overseer: closure %q: fd 3 is not a unix socket\n", name)
		os.Exit(1)
	}

	runClosure(name, fn, conn)
	os.Exit(0)
}

// runClosure invokes fn with panic recovery, mirroring the teacher's
// runWithRecovery for goroutine-based children: a panicking closure
// still results in a clean process exit rather than a runtime crash
// dump, matching "close the child's end regardless of normal return or
// failure" in §4.2.
func runClosure(name string, fn ClosureFunc, conn *net.UnixConn) {
	defer func() {
		conn.Close()
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "overseer: closure %q panicked: %v\n", name, r)
		}
	}()

	if err := fn(conn); err != nil {
		fmt.Fprintf(os.Stderr, "overseer: closure %q returned error: %v\n", name, err)
	}
}
