package overseer

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

const pollTimeout = time.Second

// pollReady blocks up to pollTimeout waiting for any of fds to become
// readable, returning the subset that are. A spurious wakeup or an
// EINTR from signal delivery yields a nil, nil result rather than an
// error: the caller retries on the next loop iteration.
func pollReady(fds []int) ([]int, error) {
	if len(fds) == 0 {
		return nil, nil
	}

	pfds := make([]unix.PollFd, len(fds))
	for i, fd := range fds {
		pfds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	}

	n, err := unix.Poll(pfds, int(pollTimeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	ready := make([]int, 0, n)
	for _, pfd := range pfds {
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			ready = append(ready, int(pfd.Fd))
		}
	}
	return ready, nil
}

// collectDescriptors gathers every readable descriptor across all live
// children: a child contributes 0-3 (stdout, stderr, ipc).
func (s *Supervisor) collectDescriptors() []int {
	var fds []int
	s.registry.forEach(func(c *Child) {
		fds = append(fds, c.descriptors()...)
	})
	return fds
}
