package overseer

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

// newTestSocketpair returns a connected *net.UnixConn (as a Closure
// routine would receive) plus the raw parent-side fd this test drives
// directly, bypassing the fork/re-exec boundary entirely so the
// contract of runClosure can be verified in-process.
func newTestSocketpair(t *testing.T) (parentFd int, childConn *net.UnixConn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}

	childFile := os.NewFile(uintptr(fds[1]), "overseer-test-child")
	conn, err := net.FileConn(childFile)
	if err != nil {
		t.Fatalf("FileConn: %v", err)
	}
	childFile.Close()

	uconn, ok := conn.(*net.UnixConn)
	if !ok {
		t.Fatalf("FileConn returned %T, want *net.UnixConn", conn)
	}

	t.Cleanup(func() { unix.Close(fds[0]) })
	return fds[0], uconn
}

func TestRunClosureWritesAndClosesOnReturn(t *testing.T) {
	parentFd, childConn := newTestSocketpair(t)

	go runClosure("test-hello", func(c *net.UnixConn) error {
		_, err := c.Write([]byte(`{"hello":"world"}` + "\n"))
		return err
	}, childConn)

	buf := make([]byte, 256)
	n, err := unix.Read(parentFd, buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg map[string]any
	if err := json.Unmarshal(buf[:n-1], &msg); err != nil { // trim trailing \n
		t.Fatalf("unmarshal %q: %v", buf[:n], err)
	}
	if msg["hello"] != "world" {
		t.Fatalf("msg = %v, want hello=world", msg)
	}

	// The closure returned nil, so runClosure closes the child's end;
	// the parent observes EOF (a zero-length read).
	n2, _ := unix.Read(parentFd, buf)
	if n2 != 0 {
		t.Fatalf("second read = %d bytes, want 0 (EOF)", n2)
	}
}

func TestRunClosurePanicRecoversAndCloses(t *testing.T) {
	parentFd, childConn := newTestSocketpair(t)

	done := make(chan struct{})
	go func() {
		runClosure("test-panic", func(c *net.UnixConn) error {
			panic("boom")
		}, childConn)
		close(done)
	}()
	<-done

	buf := make([]byte, 16)
	n, _ := unix.Read(parentFd, buf)
	if n != 0 {
		t.Fatalf("read after panic = %d bytes, want 0 (EOF)", n)
	}
}

func TestRunClosureErrorReturnStillCloses(t *testing.T) {
	parentFd, childConn := newTestSocketpair(t)

	done := make(chan struct{})
	go func() {
		runClosure("test-err", func(c *net.UnixConn) error {
			return errors.New("boom")
		}, childConn)
		close(done)
	}()
	<-done

	buf := make([]byte, 16)
	n, _ := unix.Read(parentFd, buf)
	if n != 0 {
		t.Fatalf("read after error return = %d bytes, want 0 (EOF)", n)
	}
}

func TestClosureRegistryRoundTrip(t *testing.T) {
	fn := ClosureFunc(func(c *net.UnixConn) error { return nil })
	registerClosure("test-registry-roundtrip", fn)

	closureRegistryMu.Lock()
	_, ok := closureRegistry["test-registry-roundtrip"]
	closureRegistryMu.Unlock()

	if !ok {
		t.Fatal("registerClosure did not register the closure")
	}
}
