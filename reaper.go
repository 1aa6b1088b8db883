package overseer

import "syscall"

// reapAll drains every finished child without blocking, per §4.7. It is
// invoked once per loop iteration when the child-exit flag was set.
func (s *Supervisor) reapAll() {
	for {
		pid, reason, exitCode, ok := reapOnce(s.cfg.forceKillSignal)
		if !ok {
			return
		}

		c, found := s.registry.get(pid)
		if !found {
			continue // stale: not one of ours (or already reaped)
		}

		c.closeStreams()
		s.registry.remove(pid)

		c.Running = false
		c.ExitCode = exitCode
		c.ExitReason = reason
		snap := c.snapshot()

		if s.cfg.onExit != nil {
			s.cfg.onExit(snap, reason)
		}
		s.emitEvent(Event{ID: snap.ID, Pid: pid, Type: ChildExited})
		s.cfg.metrics.recordExit(reason, s.registry.size())
		s.messages.discard(pid)
	}
}

// reapOnce performs one non-blocking wait4(-1, WNOHANG). ok is false
// once there is nothing left to reap this pass.
func reapOnce(killSig syscall.Signal) (pid int, reason ExitReason, exitCode int, ok bool) {
	var status syscall.WaitStatus
	p, err := syscall.Wait4(-1, &status, syscall.WNOHANG, nil)
	if err != nil || p <= 0 {
		return 0, Unknown, 0, false
	}
	reason, exitCode = classifyExit(status, killSig)
	return p, reason, exitCode, true
}

// classifyExit maps a wait status to the exit reason taxonomy of §4.7:
// a normal exit is Normal regardless of exit code (including non-zero),
// termination by the configured force-kill signal is Killed, and
// termination by any other signal is Signal.
func classifyExit(status syscall.WaitStatus, killSig syscall.Signal) (ExitReason, int) {
	switch {
	case status.Exited():
		return Normal, status.ExitStatus()
	case status.Signaled():
		if status.Signal() == killSig {
			return Killed, 0
		}
		return Signal, 0
	default:
		return Unknown, 0
	}
}

// reapBlocking waits for a specific pid to exit, blocking. Used only by
// ShutdownOrchestrator after the force-kill escalation, where the design
// calls for a blocking wait rather than a poll loop.
func reapBlocking(pid int) {
	var status syscall.WaitStatus
	syscall.Wait4(pid, &status, 0, nil)
}
