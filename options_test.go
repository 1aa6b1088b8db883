package overseer

import (
	"syscall"
	"testing"
	"time"
)

func TestWithCommandSelectsStrategy(t *testing.T) {
	s := &Supervisor{cfg: defaultConfig()}
	WithCommand("sleep 1")(s)

	if s.cfg.strategy != strategyCommand {
		t.Fatalf("strategy = %v, want strategyCommand", s.cfg.strategy)
	}
	if s.cfg.command != "sleep 1" {
		t.Fatalf("command = %q", s.cfg.command)
	}
}

func TestWithScaleLimits(t *testing.T) {
	s := &Supervisor{cfg: defaultConfig()}
	WithScaleLimits(2, 5)(s)

	if s.cfg.min != 2 || s.cfg.max != 5 {
		t.Fatalf("min/max = %d/%d, want 2/5", s.cfg.min, s.cfg.max)
	}
}

func TestWithHeartbeatDisabledByDefault(t *testing.T) {
	cfg := defaultConfig()
	if cfg.heartbeatInterval != 0 {
		t.Fatalf("default heartbeatInterval = %v, want 0", cfg.heartbeatInterval)
	}
}

func TestWithShutdownGraceIgnoresNonPositive(t *testing.T) {
	s := &Supervisor{cfg: defaultConfig()}
	original := s.cfg.shutdownGrace

	WithShutdownGrace(-1 * time.Second)(s)
	if s.cfg.shutdownGrace != original {
		t.Fatalf("shutdownGrace changed to %v on negative input", s.cfg.shutdownGrace)
	}

	WithShutdownGrace(10 * time.Second)(s)
	if s.cfg.shutdownGrace != 10*time.Second {
		t.Fatalf("shutdownGrace = %v, want 10s", s.cfg.shutdownGrace)
	}
}

func TestWithForceKillSignal(t *testing.T) {
	s := &Supervisor{cfg: defaultConfig()}
	WithForceKillSignal(syscall.SIGTERM)(s)

	if s.cfg.forceKillSignal != syscall.SIGTERM {
		t.Fatalf("forceKillSignal = %v, want SIGTERM", s.cfg.forceKillSignal)
	}
}

func TestWithReadBufferSizeIgnoresNonPositive(t *testing.T) {
	s := &Supervisor{cfg: defaultConfig()}
	original := s.cfg.readBufferSize

	WithReadBufferSize(0)(s)
	if s.cfg.readBufferSize != original {
		t.Fatalf("readBufferSize changed to %d on zero input", s.cfg.readBufferSize)
	}

	WithReadBufferSize(4096)(s)
	if s.cfg.readBufferSize != 4096 {
		t.Fatalf("readBufferSize = %d, want 4096", s.cfg.readBufferSize)
	}
}

func TestWithEventHandlerAppends(t *testing.T) {
	s := &Supervisor{cfg: defaultConfig()}

	var calls int
	WithEventHandler(func(Event) { calls++ })(s)
	WithEventHandler(func(Event) { calls++ })(s)

	if len(s.cfg.eventHandlers) != 2 {
		t.Fatalf("eventHandlers = %d, want 2", len(s.cfg.eventHandlers))
	}

	s.emitEvent(Event{Type: HeartbeatFired})
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestNewFailsFastWithoutStrategy(t *testing.T) {
	s := New(WithScaleLimits(1, 1))
	if err := s.Run(); err != ErrNotConfigured {
		t.Fatalf("Run() = %v, want ErrNotConfigured", err)
	}
}
