package overseer

import (
	"github.com/fsnotify/fsnotify"
)

// configWatcher forwards a reload signal to every live child whenever a
// watched path reports a write or create event, giving embedders a
// SIGHUP-equivalent trigger driven by config file changes rather than an
// operator sending a real signal. Enabled with WithConfigWatch.
type configWatcher struct {
	w    *fsnotify.Watcher
	done chan struct{}
}

func newConfigWatcher(path string) (*configWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}
	return &configWatcher{w: w, done: make(chan struct{})}, nil
}

// start runs the watch loop on its own goroutine. Like SignalGate, this
// goroutine only ever sets a flag; the registry fan-out and event
// emission happen on the loop goroutine's next turn, since the registry
// is mutated concurrently by spawn/reap/shutdown and must not be
// touched from here.
func (cw *configWatcher) start(s *Supervisor) {
	go func() {
		for {
			select {
			case ev, ok := <-cw.w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.configReloadPending.Store(true)
			case _, ok := <-cw.w.Errors:
				if !ok {
					return
				}
			case <-cw.done:
				return
			}
		}
	}()
}

func (cw *configWatcher) stop() {
	close(cw.done)
	cw.w.Close()
}
