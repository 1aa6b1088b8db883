package overseer

import (
	"encoding/json"
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sys/unix"
)

// SupervisionTestSuite drives a real Supervisor against real /bin/sh
// children. Each test owns its own Supervisor and lets it run to
// completion on its own goroutine, driving lifecycle transitions by
// sending real OS signals the way an embedder or an operator would.
type SupervisionTestSuite struct {
	suite.Suite
}

func TestSupervisionSuite(t *testing.T) {
	suite.Run(t, new(SupervisionTestSuite))
}

func (s *SupervisionTestSuite) TestCommandLifecycleReplacesSignaledChild() {
	var mu sync.Mutex
	var creates []CreateReason
	var exits []ExitReason

	createCh := make(chan Child, 4)
	exitCh := make(chan struct{}, 4)

	sup := New(
		WithCommand("sleep 30"),
		WithScaleLimits(1, 1),
		WithShutdownGrace(2*time.Second),
		WithOnChildCreate(func(c Child) {
			mu.Lock()
			creates = append(creates, c.CreateReason)
			mu.Unlock()
			createCh <- c
		}),
		WithOnChildExit(func(c Child, reason ExitReason) {
			mu.Lock()
			exits = append(exits, reason)
			mu.Unlock()
			exitCh <- struct{}{}
		}),
	)

	done := make(chan error, 1)
	go func() { done <- sup.Run() }()

	var first Child
	select {
	case first = <-createCh:
	case <-time.After(5 * time.Second):
		s.FailNow("timed out waiting for initial child")
	}
	s.Require().Equal(Initial, first.CreateReason)
	s.Require().Positive(first.Pid)

	// Kill the child out from under the supervisor; expect a Replacement.
	s.Require().NoError(syscall.Kill(first.Pid, syscall.SIGTERM))

	select {
	case <-exitCh:
	case <-time.After(5 * time.Second):
		s.FailNow("timed out waiting for exit callback")
	}

	select {
	case second := <-createCh:
		s.Require().Equal(Replacement, second.CreateReason)
		s.Require().NotEqual(first.Pid, second.Pid)
	case <-time.After(5 * time.Second):
		s.FailNow("timed out waiting for replacement child")
	}

	// Shut the whole supervisor down the same way an operator would.
	s.Require().NoError(syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(10 * time.Second):
		s.FailNow("timed out waiting for Run to return")
	}

	mu.Lock()
	defer mu.Unlock()
	s.Require().Equal([]CreateReason{Initial, Replacement}, creates)
	s.Require().Equal([]ExitReason{Signal}, exits)
}

func (s *SupervisionTestSuite) TestScaleUpAndScaleDown() {
	var mu sync.Mutex
	var exitedPids []int

	sup := New(
		WithCommand("sleep 30"),
		WithScaleLimits(1, 3),
		WithShutdownGrace(2*time.Second),
		WithOnChildExit(func(c Child, reason ExitReason) {
			mu.Lock()
			exitedPids = append(exitedPids, c.Pid)
			mu.Unlock()
		}),
	)

	done := make(chan error, 1)
	go func() { done <- sup.Run() }()

	require.Eventually(s.T(), func() bool { return sup.registry.size() == 1 }, 5*time.Second, 20*time.Millisecond)

	sup.ScaleUp()
	sup.ScaleUp()
	require.Eventually(s.T(), func() bool { return sup.registry.size() == 3 }, 5*time.Second, 20*time.Millisecond)

	sup.ScaleDown()
	require.Eventually(s.T(), func() bool { return sup.registry.size() == 2 }, 5*time.Second, 20*time.Millisecond)

	sup.ScaleDown()
	require.Eventually(s.T(), func() bool { return sup.registry.size() == 1 }, 5*time.Second, 20*time.Millisecond)

	s.Require().NoError(syscall.Kill(os.Getpid(), syscall.SIGTERM))
	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(10 * time.Second):
		s.FailNow("timed out waiting for Run to return")
	}

	mu.Lock()
	defer mu.Unlock()
	s.Require().Len(exitedPids, 2, "two ScaleDown calls should reap exactly two children before shutdown")
	s.Require().NotEqual(exitedPids[0], exitedPids[1], "consecutive ScaleDown calls must terminate distinct children")
}

func (s *SupervisionTestSuite) TestCommandStdoutAndIpcDelivery() {
	var mu sync.Mutex
	var outputs [][]byte
	var messages []any

	sup := New(
		WithCommand(`echo hello; echo '{"ready":true}' >&3`),
		WithScaleLimits(1, 1),
		WithShutdownGrace(2*time.Second),
		WithOnChildOutput(func(c Child, data []byte) {
			mu.Lock()
			cp := append([]byte(nil), data...)
			outputs = append(outputs, cp)
			mu.Unlock()
		}),
		WithOnChildMessage(func(c Child, msg any) {
			mu.Lock()
			messages = append(messages, msg)
			mu.Unlock()
		}),
	)

	done := make(chan error, 1)
	go func() { done <- sup.Run() }()

	require.Eventually(s.T(), func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(outputs) > 0 && len(messages) > 0
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	msg, ok := messages[0].(map[string]any)
	mu.Unlock()
	s.Require().True(ok)
	s.Require().Equal(true, msg["ready"])

	s.Require().NoError(syscall.Kill(os.Getpid(), syscall.SIGTERM))
	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(10 * time.Second):
		s.FailNow("timed out waiting for Run to return")
	}
}

func (s *SupervisionTestSuite) TestForceKillOnGraceExpiry() {
	sup := New(
		WithCommand(`trap '' TERM; sleep 30`),
		WithScaleLimits(1, 1),
		WithShutdownGrace(300*time.Millisecond),
		WithForceKillSignal(syscall.SIGKILL),
	)

	done := make(chan error, 1)
	go func() { done <- sup.Run() }()

	require.Eventually(s.T(), func() bool { return sup.registry.size() == 1 }, 5*time.Second, 20*time.Millisecond)

	s.Require().NoError(syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(10 * time.Second):
		s.FailNow("timed out waiting for Run to return after force-kill escalation")
	}
	s.Require().Equal(0, sup.registry.size())
}

func (s *SupervisionTestSuite) TestOnShutdownFiresBeforeTerminateBroadcast() {
	var fired atomicFlag

	var sup *Supervisor
	sup = New(
		WithCommand("sleep 30"),
		WithScaleLimits(1, 1),
		WithShutdownGrace(2*time.Second),
		WithOnShutdown(func() {
			fired.set()
			s.Require().Equal(1, sup.registry.size())
		}),
	)

	done := make(chan error, 1)
	go func() { done <- sup.Run() }()

	require.Eventually(s.T(), func() bool { return sup.registry.size() == 1 }, 5*time.Second, 20*time.Millisecond)

	s.Require().NoError(syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(10 * time.Second):
		s.FailNow("timed out waiting for Run to return")
	}
	s.Require().True(fired.isSet())
}

func (s *SupervisionTestSuite) TestHeartbeatFiresAtConfiguredCadence() {
	var mu sync.Mutex
	var ticks []time.Time

	const interval = 200 * time.Millisecond

	sup := New(
		WithCommand("sleep 30"),
		WithScaleLimits(1, 1),
		WithShutdownGrace(2*time.Second),
		WithHeartbeat(interval, func() {
			mu.Lock()
			ticks = append(ticks, time.Now())
			mu.Unlock()
		}),
	)

	done := make(chan error, 1)
	go func() { done <- sup.Run() }()

	require.Eventually(s.T(), func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) >= 3
	}, 5*time.Second, 20*time.Millisecond)

	s.Require().NoError(syscall.Kill(os.Getpid(), syscall.SIGTERM))
	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(10 * time.Second):
		s.FailNow("timed out waiting for Run to return")
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(ticks); i++ {
		gap := ticks[i].Sub(ticks[i-1])
		s.Require().GreaterOrEqualf(gap, interval-20*time.Millisecond,
			"heartbeat fired after only %s, want at least ~%s", gap, interval)
	}
}

func (s *SupervisionTestSuite) TestDoubleRunReturnsErrAlreadyRunning() {
	sup := New(WithCommand("sleep 30"), WithScaleLimits(1, 1), WithShutdownGrace(2*time.Second))

	done := make(chan error, 1)
	go func() { done <- sup.Run() }()

	require.Eventually(s.T(), func() bool { return sup.registry.size() == 1 }, 5*time.Second, 20*time.Millisecond)

	s.Require().ErrorIs(sup.Run(), ErrAlreadyRunning)

	s.Require().NoError(syscall.Kill(os.Getpid(), syscall.SIGTERM))
	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(10 * time.Second):
		s.FailNow("timed out waiting for Run to return")
	}
}

// atomicFlag is a tiny test-local helper; the production code uses
// atomic.Bool directly and has no need for a named wrapper type.
type atomicFlag struct {
	mu   sync.Mutex
	flag bool
}

func (f *atomicFlag) set()        { f.mu.Lock(); f.flag = true; f.mu.Unlock() }
func (f *atomicFlag) isSet() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.flag }

// TestClosureChildRoundTripsOverRealSocket exercises the Closure path
// but, like the tests in closure_test.go, sidesteps the re-exec boundary
// itself by running the closure through runClosure against a manually
// wired socketpair, verifying feedMessages sees exactly what runClosure
// wrote.
func TestClosureChildRoundTripsOverRealSocket(t *testing.T) {
	parentFd, childConn := newTestSocketpair(t)

	fn := ClosureFunc(func(c *net.UnixConn) error {
		enc := json.NewEncoder(c)
		return enc.Encode(map[string]any{"pid": os.Getpid()})
	})

	go runClosure("test-roundtrip", fn, childConn)

	sup := newTestSupervisor()
	var got any
	sup.cfg.onMessage = func(c Child, msg any) { got = msg }

	buf := make([]byte, 256)
	n, err := unix.Read(parentFd, buf)
	require.NoError(t, err)

	c := &Child{Pid: 1, ipcFd: parentFd}
	sup.feedMessages(c, buf[:n])

	require.NotNil(t, got)
	m := got.(map[string]any)
	require.EqualValues(t, os.Getpid(), m["pid"])
}
