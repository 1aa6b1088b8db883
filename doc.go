// Package overseer supervises a pool of worker child processes.
//
// A consumer describes what a worker is (an external command, or an
// in-process routine invoked in a re-exec'd child), registers lifecycle
// callbacks, and calls Run to drive the master event loop until a
// termination signal arrives:
//
//	sup := overseer.New(
//	    overseer.WithCommand("sleep 30"),
//	    overseer.WithScaleLimits(2, 4),
//	    overseer.WithOnChildExit(func(c overseer.Child, reason overseer.ExitReason) {
//	        log.Printf("child %d exited: %s", c.Pid, reason)
//	    }),
//	)
//	if err := sup.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks on a single-threaded event loop: it multiplexes the stdout,
// stderr and IPC descriptors of every live child, reaps exited children,
// replenishes the pool against a configured [min, max] envelope, and
// shuts everything down in an orderly fashion on SIGTERM/SIGINT.
//
// The package is POSIX-only: it assumes fork/exec, pipes, unix-domain
// socket pairs and OS signal delivery are available, and does not
// support Windows.
package overseer
