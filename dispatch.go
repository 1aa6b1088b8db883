package overseer

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// writeAll writes data to fd, which is non-blocking, retrying on EAGAIN
// with a short backoff. Callers (SendChildInput) run on the event loop
// goroutine, so this only ever handles small, well-behaved writes; it is
// not a substitute for a real write queue under sustained backpressure.
func writeAll(fd int, data []byte) error {
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				time.Sleep(time.Millisecond)
				continue
			}
			return err
		}
		data = data[n:]
	}
	return nil
}

// dispatchReady reads once from fd and routes the bytes to the message
// parser (if fd is the owning child's IPC channel) or the output
// callback (otherwise). A zero-length or errored read is a no-op for
// this tick: the descriptor's owning child will be reaped, and its
// resources closed, once the reaper observes the process has exited.
func (s *Supervisor) dispatchReady(fd int) {
	c, ok := s.registry.findByFd(fd)
	if !ok {
		return
	}

	buf := make([]byte, s.cfg.readBufferSize)
	n, err := unix.Read(fd, buf)
	if n <= 0 || (err != nil && !errors.Is(err, unix.EAGAIN)) {
		return
	}
	data := buf[:n]

	if fd == c.ipcFd {
		s.feedMessages(c, data)
		return
	}

	if s.cfg.onOutput != nil {
		s.cfg.onOutput(c.snapshot(), data)
	}
}
