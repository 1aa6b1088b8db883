package overseer

import "golang.org/x/sys/unix"

// noFd marks a descriptor slot as absent.
const noFd = -1

// descriptors returns every present, readable master-side descriptor for
// this child: stdout, stderr, ipc, in that order. A Closure child
// contributes only ipc.
func (c *Child) descriptors() []int {
	fds := make([]int, 0, 3)
	if c.stdoutFd != noFd {
		fds = append(fds, c.stdoutFd)
	}
	if c.stderrFd != noFd {
		fds = append(fds, c.stderrFd)
	}
	if c.ipcFd != noFd {
		fds = append(fds, c.ipcFd)
	}
	return fds
}

// closeStreams closes every open descriptor exactly once. Safe to call
// on a child whose descriptors were already closed or never opened.
func (c *Child) closeStreams() {
	closeFd(&c.stdinFd)
	closeFd(&c.stdoutFd)
	closeFd(&c.stderrFd)
	closeFd(&c.ipcFd)
	c.process = nil
	c.cmd = nil
}

// closeFd closes *fd if present and resets it to noFd, making the
// operation idempotent-safe against a double call.
func closeFd(fd *int) {
	if *fd == noFd {
		return
	}
	unix.Close(*fd)
	*fd = noFd
}

// snapshot returns the by-value Child copy handed to callbacks: it never
// exposes internal fields (raw fds, process handles) that a caller could
// use to violate ownership.
func (c *Child) snapshot() Child {
	cp := *c
	cp.stdinFd, cp.stdoutFd, cp.stderrFd, cp.ipcFd = noFd, noFd, noFd, noFd
	cp.process, cp.cmd = nil, nil
	return cp
}
