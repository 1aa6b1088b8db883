package overseer

import "time"

// initialFill brings the registry up to cfg.min the first time, before
// the loop starts. Every child spawned here carries reason Initial, per
// the CreateReason invariant in §3.
func (s *Supervisor) initialFill() {
	s.fillTo(Initial)
}

// replenish brings the registry back up to cfg.min after a loss, per
// §4.8. Children spawned here carry reason Replacement, distinguishing
// them from the initial pool fill.
func (s *Supervisor) replenish() {
	s.fillTo(Replacement)
}

// fillTo spawns children with the given reason until the registry
// reaches cfg.min. Consecutive SpawnFailed errors are backed off with
// cfg.spawnBackoff rather than retried immediately, so a broken command
// cannot busy-loop the event loop.
func (s *Supervisor) fillTo(reason CreateReason) {
	for s.registry.size() < s.cfg.min {
		if time.Now().Before(s.nextSpawnAttempt) {
			return
		}

		c, err := spawn(&s.cfg, reason)
		if err != nil {
			s.spawnFailures++
			s.nextSpawnAttempt = time.Now().Add(s.cfg.spawnBackoff.ComputeDelay(s.spawnFailures))
			s.cfg.logger.Printf("fill (%s): spawn failed (attempt %d): %v", reason, s.spawnFailures, err)
			return
		}

		s.spawnFailures = 0
		s.insertChild(c)
	}
}

// ScaleUp spawns one additional child with reason ScaleUp if the
// registry is below cfg.max. No-op otherwise. Intended to be called from
// within a callback running on the event loop goroutine.
func (s *Supervisor) ScaleUp() {
	if s.registry.size() >= s.cfg.max {
		return
	}
	c, err := spawn(&s.cfg, ScaleUp)
	if err != nil {
		s.cfg.logger.Printf("scale up: spawn failed: %v", err)
		return
	}
	s.insertChild(c)
}

// ScaleDown marks one non-terminating child for termination and signals
// it, if the registry is above cfg.min. No-op if every child is already
// marked terminating or the registry is at min. The eventual exit flows
// through the reaper and does not trigger replenishment, since registry
// size after the exit will still be >= min.
func (s *Supervisor) ScaleDown() {
	if s.registry.size() <= s.cfg.min {
		return
	}
	c := s.registry.pickForScaleDown()
	if c == nil {
		return
	}
	c.terminating = true
	signalChild(c, terminateSignal)
}

// insertChild adds a freshly spawned child to the registry and fires the
// create callback, in that order (§3 lifecycle).
func (s *Supervisor) insertChild(c *Child) {
	s.registry.insert(c)
	if s.cfg.onCreate != nil {
		s.cfg.onCreate(c.snapshot())
	}
	s.emitEvent(Event{ID: c.ID, Pid: c.Pid, Type: ChildCreated})
	s.cfg.metrics.recordSpawn(c.CreateReason, s.registry.size())
}
