package overseer

import (
	"context"
	"sync/atomic"
	"syscall"
	"time"
)

// Supervisor is the master-side entry point. Build one with New and
// configure it with Option values, then call Run.
//
// Supervisor is not safe for concurrent use from multiple goroutines
// except where documented (Run/RunContext, SendChildInput, Signal,
// ScaleUp, ScaleDown are all designed to be called from within a
// callback running on the event loop goroutine, or before Run starts).
type Supervisor struct {
	cfg config

	registry *registry
	messages *messageBuffers
	gate     *signalGate

	running atomic.Bool

	childExitPending atomic.Bool
	shutdownPending  atomic.Bool

	reloadPending       atomic.Bool
	configReloadPending atomic.Bool
	user1Pending        atomic.Bool
	user2Pending        atomic.Bool

	lastHeartbeat time.Time

	spawnFailures    int
	nextSpawnAttempt time.Time

	watchdogInterval time.Duration
	lastWatchdogPing time.Time
}

// New builds an unstarted Supervisor from the given options.
//
// If the current process was launched as a re-exec'd Closure child (see
// WithClosure), New never returns: it runs the registered closure
// against the inherited socket and exits the process directly.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:      defaultConfig(),
		registry: newRegistry(),
		messages: newMessageBuffers(),
		gate:     newSignalGate(),
	}
	for _, opt := range opts {
		opt(s)
	}

	maybeRunReexecClosure()

	return s
}

// Run blocks until a termination signal arrives, driving the event loop
// described in §4.1. It fails immediately with ErrNotConfigured if
// neither WithCommand nor WithClosure was applied, before installing
// any signal handler or spawning any process, and with ErrAlreadyRunning
// if called more than once.
func (s *Supervisor) Run() error {
	return s.RunContext(context.Background())
}

// RunContext is Run, additionally treating ctx.Done() as a shutdown
// trigger. Cancelling ctx sets the same shutdownPending flag a
// terminate/interrupt signal would; it does not introduce a second
// cancellation model.
func (s *Supervisor) RunContext(ctx context.Context) error {
	if s.cfg.strategy == strategyUnset {
		return ErrNotConfigured
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	s.gate.start(s)
	defer s.gate.stop()

	ctxDone := ctx.Done()
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctxDone:
			s.shutdownPending.Store(true)
		case <-stopWatch:
		}
	}()

	var watcher *configWatcher
	if s.cfg.configWatchPath != "" {
		var err error
		watcher, err = newConfigWatcher(s.cfg.configWatchPath)
		if err != nil {
			s.cfg.logger.Printf("config watch %q: %v", s.cfg.configWatchPath, err)
			watcher = nil
		} else {
			watcher.start(s)
		}
	}
	if watcher != nil {
		defer watcher.stop()
	}

	s.initialFill()

	if s.cfg.systemdNotify {
		s.watchdogInterval = systemdWatchdogInterval()
		notifySystemdReady()
	}

	s.loop()

	if s.cfg.systemdNotify {
		notifySystemdStopping()
	}
	s.runShutdown()
	return nil
}

// loop is the single-threaded event loop of §4.1. Each iteration:
// gather descriptors, await readiness (or idle-sleep), fire heartbeat,
// drain the reaper and replenish, then check for shutdown.
func (s *Supervisor) loop() {
	for {
		fds := s.collectDescriptors()

		if len(fds) > 0 {
			ready, err := pollReady(fds)
			if err == nil {
				for _, fd := range ready {
					s.dispatchReady(fd)
				}
			}
		} else {
			time.Sleep(100 * time.Millisecond)
		}

		s.maybeHeartbeat()
		s.maybeSystemdWatchdog()

		if s.childExitPending.CompareAndSwap(true, false) {
			s.reapAll()
		}
		// Replenish on every turn, not only after a reap, so a fill cut
		// short by a spawn failure is retried once its backoff delay
		// has passed. It is a no-op while the registry is at min.
		s.replenish()

		if s.reloadPending.CompareAndSwap(true, false) {
			s.registry.forEach(func(c *Child) {
				signalChild(c, syscall.SIGHUP)
			})
		}

		if s.configReloadPending.CompareAndSwap(true, false) {
			s.registry.forEach(func(c *Child) {
				signalChild(c, syscall.SIGHUP)
			})
			s.emitEvent(Event{Type: ConfigReloaded})
		}

		if s.user1Pending.CompareAndSwap(true, false) {
			s.fanOutSignal(syscall.SIGUSR1)
		}

		if s.user2Pending.CompareAndSwap(true, false) {
			s.fanOutSignal(syscall.SIGUSR2)
		}

		if s.shutdownPending.Load() {
			return
		}
	}
}

// fanOutSignal invokes the user-signal callback for every live child
// with sig, on the loop goroutine. No-op if no callback is registered.
func (s *Supervisor) fanOutSignal(sig syscall.Signal) {
	if s.cfg.onSignal == nil {
		return
	}
	s.registry.forEach(func(c *Child) {
		s.cfg.onSignal(c.snapshot(), int(sig))
	})
}

func (s *Supervisor) maybeSystemdWatchdog() {
	if !s.cfg.systemdNotify || s.watchdogInterval <= 0 {
		return
	}
	if time.Since(s.lastWatchdogPing) < s.watchdogInterval {
		return
	}
	notifySystemdWatchdog()
	s.lastWatchdogPing = time.Now()
}

func (s *Supervisor) maybeHeartbeat() {
	if s.cfg.heartbeatInterval <= 0 || s.cfg.heartbeatFunc == nil {
		return
	}
	if time.Since(s.lastHeartbeat) < s.cfg.heartbeatInterval {
		return
	}
	s.cfg.heartbeatFunc()
	s.lastHeartbeat = time.Now()
	s.emitEvent(Event{Type: HeartbeatFired})
}

// SendChildInput writes data to pid's stdin, if present. It silently
// no-ops if pid is unknown or the child has no stdin (a Closure child);
// otherwise it returns any error from the write itself.
func (s *Supervisor) SendChildInput(pid int, data []byte) error {
	c, ok := s.registry.get(pid)
	if !ok || c.stdinFd == noFd {
		return nil
	}
	return writeAll(c.stdinFd, data)
}

// Signal delivers sig to pid. A live child is signalled through its
// process handle; any other pid is signalled directly with kill(2), and
// that call's error is returned.
func (s *Supervisor) Signal(pid int, sig syscall.Signal) error {
	c, ok := s.registry.get(pid)
	if !ok {
		return syscall.Kill(pid, sig)
	}
	signalChild(c, sig)
	return nil
}
