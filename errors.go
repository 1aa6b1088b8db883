package overseer

import "errors"

var (
	// ErrNotConfigured is returned when Run is called without WithCommand
	// or WithClosure having selected a spawn strategy.
	ErrNotConfigured = errors.New("overseer: no command or closure configured")

	// ErrAlreadyRunning is returned when Run is called more than once on
	// the same Supervisor.
	ErrAlreadyRunning = errors.New("overseer: supervisor is already running")

	// ErrSpawnFailed wraps a failure to launch a Command child or
	// re-exec a Closure child.
	ErrSpawnFailed = errors.New("overseer: spawn failed")

	// ErrIpcSetupFailed wraps a socketpair allocation failure. It is a
	// subclass of ErrSpawnFailed: errors.Is(err, ErrSpawnFailed) is true
	// for any error returned as ErrIpcSetupFailed.
	ErrIpcSetupFailed = errors.New("overseer: ipc setup failed")
)
