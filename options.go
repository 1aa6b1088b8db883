package overseer

import (
	"log"
	"os"
	"reflect"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Supervisor during construction.
type Option func(*Supervisor)

// WithCommand selects the Command spawn strategy: cmd is run through
// "sh -c" with fds 0-3 wired to stdin, stdout, stderr and the IPC pipe.
// Mutually exclusive with WithClosure.
func WithCommand(cmd string) Option {
	return func(s *Supervisor) {
		s.cfg.command = cmd
		s.cfg.strategy = strategyCommand
	}
}

// WithClosure selects the Closure spawn strategy: fn is invoked in a
// re-exec'd child process with the child end of a connected unix-domain
// stream socket. Mutually exclusive with WithCommand.
//
// fn's stable identity across the parent and the re-exec'd child is
// derived from its compiled symbol name (via runtime.FuncForPC), not
// from a pointer value, so it survives ASLR across process launches.
// This means fn must be a named function or a package-level closure with
// a stable definition site; constructing a fresh func literal from
// varying state on every call to WithClosure will not round-trip
// correctly through re-exec. See DESIGN.md for the rationale.
func WithClosure(fn ClosureFunc) Option {
	name := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	registerClosure(name, fn)
	return func(s *Supervisor) {
		s.cfg.closure = fn
		s.cfg.closureName = name
		s.cfg.strategy = strategyClosure
	}
}

// WithScaleLimits sets the [min, max] envelope. Takes effect on the next
// replenish and on ScaleUp/ScaleDown calls.
func WithScaleLimits(min, max int) Option {
	return func(s *Supervisor) {
		s.cfg.min = min
		s.cfg.max = max
	}
}

// WithHeartbeat enables a periodic callback fired at most once per
// interval, checked once per loop iteration (an iteration can wait up to
// one second for I/O, so the actual gap can exceed interval);
// interval <= 0 disables the heartbeat.
func WithHeartbeat(interval time.Duration, cb HeartbeatFunc) Option {
	return func(s *Supervisor) {
		s.cfg.heartbeatInterval = interval
		s.cfg.heartbeatFunc = cb
	}
}

// WithOnChildCreate registers the child-create callback.
func WithOnChildCreate(cb CreateFunc) Option {
	return func(s *Supervisor) { s.cfg.onCreate = cb }
}

// WithOnChildExit registers the child-exit callback.
func WithOnChildExit(cb ExitFunc) Option {
	return func(s *Supervisor) { s.cfg.onExit = cb }
}

// WithOnChildSignal registers the user-signal fan-out callback.
func WithOnChildSignal(cb SignalFunc) Option {
	return func(s *Supervisor) { s.cfg.onSignal = cb }
}

// WithOnChildMessage registers the IPC message callback.
func WithOnChildMessage(cb MessageFunc) Option {
	return func(s *Supervisor) { s.cfg.onMessage = cb }
}

// WithOnChildOutput registers the stdout/stderr byte callback.
func WithOnChildOutput(cb OutputFunc) Option {
	return func(s *Supervisor) { s.cfg.onOutput = cb }
}

// WithOnShutdown registers a callback fired exactly once, before the
// terminate broadcast, with the registry still fully populated.
func WithOnShutdown(cb ShutdownFunc) Option {
	return func(s *Supervisor) { s.cfg.onShutdown = cb }
}

// WithEventHandler adds an ambient observability handler. Repeatable.
func WithEventHandler(h EventHandler) Option {
	return func(s *Supervisor) {
		s.cfg.eventHandlers = append(s.cfg.eventHandlers, h)
	}
}

// WithLogger overrides the internal diagnostic logger, used only for
// conditions with no dedicated callback (spawn failures during pool fill
// or ScaleUp, a config watch that cannot be installed). The default logs
// to os.Stderr.
func WithLogger(l *log.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.cfg.logger = l
		}
	}
}

// WithForceKillSignal overrides the default SIGKILL escalation signal
// sent by ShutdownOrchestrator once the grace period elapses. The reaper
// also uses it to classify a signal death as Killed rather than Signal.
func WithForceKillSignal(sig syscall.Signal) Option {
	return func(s *Supervisor) { s.cfg.forceKillSignal = sig }
}

// WithShutdownGrace overrides the default 5 second grace period given to
// children to exit voluntarily before force-kill.
func WithShutdownGrace(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.cfg.shutdownGrace = d
		}
	}
}

// WithSpawnBackoff overrides the backoff policy applied between
// replenish attempts after a SpawnFailed error.
func WithSpawnBackoff(p BackoffPolicy) Option {
	return func(s *Supervisor) {
		if p != nil {
			s.cfg.spawnBackoff = p
		}
	}
}

// WithReadBufferSize overrides the default 8192-byte non-blocking read
// chunk size used by the stream dispatcher.
func WithReadBufferSize(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.cfg.readBufferSize = n
		}
	}
}

// WithMetrics registers Prometheus instrumentation (a children gauge and
// spawn/exit counters labeled by reason) against reg. A later call makes
// the Supervisor record into the new collectors instead; the earlier
// collectors stay registered with their registerer, and registering
// twice against the same registerer panics. A nil reg disables metrics.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Supervisor) {
		if reg == nil {
			s.cfg.metrics = nil
			return
		}
		s.cfg.metrics = newMetricsCollector(reg, "overseer")
	}
}

// WithSystemdNotify enables sd_notify(3) integration: READY=1 once the
// initial pool fill completes, periodic WATCHDOG=1 pings at half the
// unit's configured WatchdogSec (if any), and STOPPING=1 at the start of
// shutdown. A no-op outside systemd.
func WithSystemdNotify() Option {
	return func(s *Supervisor) { s.cfg.systemdNotify = true }
}

// WithConfigWatch watches path (a file or directory) for writes and
// creates, forwarding a reload signal to every child on each event, the
// same way a SIGHUP would. path is ignored (no watcher is installed) if
// empty.
func WithConfigWatch(path string) Option {
	return func(s *Supervisor) { s.cfg.configWatchPath = path }
}

// config holds every knob a Supervisor was built with.
type config struct {
	strategy    spawnStrategy
	command     string
	closure     ClosureFunc
	closureName string

	min, max int

	heartbeatInterval time.Duration
	heartbeatFunc     HeartbeatFunc

	onCreate   CreateFunc
	onExit     ExitFunc
	onSignal   SignalFunc
	onMessage  MessageFunc
	onOutput   OutputFunc
	onShutdown ShutdownFunc

	eventHandlers []EventHandler
	logger        *log.Logger

	forceKillSignal syscall.Signal
	shutdownGrace   time.Duration
	spawnBackoff    BackoffPolicy
	readBufferSize  int

	metrics         *metricsCollector
	systemdNotify   bool
	configWatchPath string
}

type spawnStrategy int

const (
	strategyUnset spawnStrategy = iota
	strategyCommand
	strategyClosure
)

func defaultConfig() config {
	return config{
		min:             1,
		max:             1,
		forceKillSignal: syscall.SIGKILL,
		shutdownGrace:   5 * time.Second,
		readBufferSize:  8192,
		spawnBackoff:    ExponentialBackoff(100*time.Millisecond, 5*time.Second),
		logger:          log.New(os.Stderr, "overseer: ", log.LstdFlags),
	}
}
