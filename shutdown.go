package overseer

import "time"

// runShutdown implements ShutdownOrchestrator (§4.10). It is invoked
// once, after the loop exits, and blocks until the registry is empty.
func (s *Supervisor) runShutdown() {
	if s.cfg.onShutdown != nil {
		s.cfg.onShutdown()
	}
	s.emitEvent(Event{Type: SupervisorStopping})

	s.registry.forEach(func(c *Child) {
		signalChild(c, terminateSignal)
	})

	deadline := time.Now().Add(s.cfg.shutdownGrace)
	for time.Now().Before(deadline) && s.registry.size() > 0 {
		s.reapDuringShutdown()
		if s.registry.size() == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if s.registry.size() > 0 {
		s.registry.forEach(func(c *Child) {
			signalChild(c, s.cfg.forceKillSignal)
		})
		s.registry.forEach(func(c *Child) {
			reapBlocking(c.Pid)
			c.closeStreams()
		})
		// Every remaining pid is now reaped; drop them from the
		// registry in one pass since forEach above already visited a
		// stable snapshot of the live set.
		var pids []int
		s.registry.forEach(func(c *Child) { pids = append(pids, c.Pid) })
		for _, pid := range pids {
			s.registry.remove(pid)
			s.messages.discard(pid)
		}
	}

	s.emitEvent(Event{Type: SupervisorStopped})
}

// reapDuringShutdown drains exited children without invoking onExit:
// the exit callback is not guaranteed to fire for shutdown-reaped
// children, per §4.10.
func (s *Supervisor) reapDuringShutdown() {
	for {
		pid, _, _, ok := reapOnce(s.cfg.forceKillSignal)
		if !ok {
			return
		}
		c, found := s.registry.get(pid)
		if !found {
			continue
		}
		c.closeStreams()
		s.registry.remove(pid)
		s.messages.discard(pid)
	}
}
