package overseer

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// pipePair is one unidirectional OS pipe with the "master" end (kept and
// possibly made non-blocking by the parent) and the "child" end (handed
// to the spawned process and closed by the parent once Start succeeds).
type pipePair struct {
	master int
	child  *os.File
}

// newPipe allocates a pipe and returns which raw fd is the master's and
// which is wrapped as an *os.File for the child. masterIsRead selects
// which end of the underlying pipe(2) call is the master's.
func newPipe(masterIsRead bool) (pipePair, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return pipePair{}, err
	}
	// fds[0] is the read end, fds[1] is the write end.
	if masterIsRead {
		return pipePair{master: fds[0], child: os.NewFile(uintptr(fds[1]), "pipe-w")}, nil
	}
	return pipePair{master: fds[1], child: os.NewFile(uintptr(fds[0]), "pipe-r")}, nil
}

func spawnFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrSpawnFailed, op, err)
}

func ipcSetupFailed(err error) error {
	return fmt.Errorf("%w: %w: %v", ErrIpcSetupFailed, ErrSpawnFailed, err)
}

// spawnCommand launches cfg.command through "sh -c" with fds 0-3 wired
// to stdin, stdout, stderr and a dedicated IPC pipe, per §4.2.
func spawnCommand(cfg *config, reason CreateReason) (*Child, error) {
	stdinP, err := newPipe(false) // master writes, child reads
	if err != nil {
		return nil, spawnFailed("stdin pipe", err)
	}
	stdoutP, err := newPipe(true) // master reads, child writes
	if err != nil {
		stdinP.child.Close()
		unix.Close(stdinP.master)
		return nil, spawnFailed("stdout pipe", err)
	}
	stderrP, err := newPipe(true)
	if err != nil {
		stdinP.child.Close()
		unix.Close(stdinP.master)
		stdoutP.child.Close()
		unix.Close(stdoutP.master)
		return nil, spawnFailed("stderr pipe", err)
	}
	ipcP, err := newPipe(true)
	if err != nil {
		stdinP.child.Close()
		unix.Close(stdinP.master)
		stdoutP.child.Close()
		unix.Close(stdoutP.master)
		stderrP.child.Close()
		unix.Close(stderrP.master)
		return nil, spawnFailed("ipc pipe", err)
	}

	childEnds := []*os.File{stdinP.child, stdoutP.child, stderrP.child, ipcP.child}
	closeChildEnds := func() {
		for _, f := range childEnds {
			f.Close()
		}
	}

	cmd := exec.Command("sh", "-c", cfg.command)
	cmd.Stdin = stdinP.child
	cmd.Stdout = stdoutP.child
	cmd.Stderr = stderrP.child
	cmd.ExtraFiles = []*os.File{ipcP.child}

	if err := cmd.Start(); err != nil {
		closeChildEnds()
		unix.Close(stdinP.master)
		unix.Close(stdoutP.master)
		unix.Close(stderrP.master)
		unix.Close(ipcP.master)
		return nil, spawnFailed(cfg.command, err)
	}
	// The child's copies were dup'd into the new process by Start; the
	// parent's originals are now redundant and must be closed so the
	// parent sees EOF when the child's own descriptors close.
	closeChildEnds()

	for _, fd := range []int{stdinP.master, stdoutP.master, stderrP.master, ipcP.master} {
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = err // best-effort: a blocking fd degrades polling latency but not correctness of a single read
		}
	}

	return &Child{
		ID:           uuid.New(),
		Pid:          cmd.Process.Pid,
		CreateReason: reason,
		Running:      true,
		ExitReason:   Unknown,
		StartedAt:    time.Now(),
		process:      cmd.Process,
		cmd:          cmd,
		stdinFd:      stdinP.master,
		stdoutFd:     stdoutP.master,
		stderrFd:     stderrP.master,
		ipcFd:        ipcP.master,
	}, nil
}

// spawnClosure re-execs the current binary with an environment marker
// naming the registered ClosureFunc to run, handing it the child end of
// a connected unix-domain stream socket as fd 3. See reexec.go and
// DESIGN.md for why this is a re-exec rather than a raw fork.
func spawnClosure(cfg *config, reason CreateReason) (*Child, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, ipcSetupFailed(err)
	}
	parentFd, childFd := fds[0], fds[1]

	childFile := os.NewFile(uintptr(childFd), "overseer-closure-sock")

	self, err := os.Executable()
	if err != nil {
		childFile.Close()
		unix.Close(parentFd)
		return nil, spawnFailed("resolve self executable", err)
	}

	cmd := exec.Command(self, os.Args[1:]...)
	cmd.Env = append(os.Environ(), reexecEnvVar+"="+cfg.closureName)
	cmd.ExtraFiles = []*os.File{childFile}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		childFile.Close()
		unix.Close(parentFd)
		return nil, spawnFailed("re-exec closure "+cfg.closureName, err)
	}
	childFile.Close()

	if err := unix.SetNonblock(parentFd, true); err != nil {
		_ = err
	}

	return &Child{
		ID:           uuid.New(),
		Pid:          cmd.Process.Pid,
		CreateReason: reason,
		Running:      true,
		ExitReason:   Unknown,
		StartedAt:    time.Now(),
		process:      cmd.Process,
		cmd:          cmd,
		stdinFd:      noFd,
		stdoutFd:     noFd,
		stderrFd:     noFd,
		ipcFd:        parentFd,
	}, nil
}

// spawn dispatches to the configured strategy.
func spawn(cfg *config, reason CreateReason) (*Child, error) {
	switch cfg.strategy {
	case strategyCommand:
		return spawnCommand(cfg, reason)
	case strategyClosure:
		return spawnClosure(cfg, reason)
	default:
		return nil, ErrNotConfigured
	}
}
