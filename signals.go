package overseer

import (
	"os"
	"os/signal"
	"syscall"
)

// terminateSignal is the graceful-stop signal sent to children by
// ScaleDown and the start of ShutdownOrchestrator. It is distinct from
// cfg.forceKillSignal, which is only reached after the shutdown grace
// period elapses.
const terminateSignal = syscall.SIGTERM

// signalGate owns the OS signal delivery goroutine and the flags it
// sets for the event loop to consume on its next turn. Handlers here do
// the minimum safe amount of work: set a flag. The registry is mutated
// only by the loop goroutine (spawn/reap/shutdown); reload and user
// signals must not touch it from this goroutine, so their fan-out is
// deferred to the loop the same way childExitPending/shutdownPending
// already are.
type signalGate struct {
	sigCh chan os.Signal
	done  chan struct{}
}

func newSignalGate() *signalGate {
	return &signalGate{
		sigCh: make(chan os.Signal, 32),
		done:  make(chan struct{}),
	}
}

// start installs handlers and begins consuming signals on a dedicated
// goroutine. The consumer only ever sets flags; all registry access
// stays on the loop goroutine (§4.9).
func (g *signalGate) start(s *Supervisor) {
	signal.Notify(g.sigCh,
		syscall.SIGCHLD,
		syscall.SIGTERM, syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGUSR1, syscall.SIGUSR2,
	)

	go func() {
		for {
			select {
			case sig, ok := <-g.sigCh:
				if !ok {
					return
				}
				g.handle(s, sig)
			case <-g.done:
				return
			}
		}
	}()
}

func (g *signalGate) handle(s *Supervisor, sig os.Signal) {
	switch sig {
	case syscall.SIGCHLD:
		s.childExitPending.Store(true)
	case syscall.SIGTERM, syscall.SIGINT:
		s.shutdownPending.Store(true)
	case syscall.SIGHUP:
		s.reloadPending.Store(true)
	case syscall.SIGUSR1:
		s.user1Pending.Store(true)
	case syscall.SIGUSR2:
		s.user2Pending.Store(true)
	}
}

func (g *signalGate) stop() {
	signal.Stop(g.sigCh)
	close(g.done)
}

// signalChild delivers sig to c's process, ignoring any error: a child
// that has already exited but is not yet reaped cannot act on the
// signal, which is harmless (the reaper will observe its exit shortly).
func signalChild(c *Child, sig syscall.Signal) {
	if c.process == nil {
		return
	}
	_ = c.process.Signal(sig)
}
