package main

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pcie-bw/pkg"
)

const reloadDebounce = 250 * time.Millisecond

// fsMonitor calls onChange after the watched profile file was written,
// created or renamed into place. Bursts of events within reloadDebounce
// cause a single call. Calls never overlap and none starts after stop
// returns.
type fsMonitor struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func()
	debounce time.Duration
	stopCh   chan struct{}
	done     chan struct{}

	mu    sync.Mutex
	timer *time.Timer

	runMu   sync.Mutex
	stopped bool
}

// newFSMonitor creates a monitor for the profile at path
func newFSMonitor(path string, onChange func()) (*fsMonitor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &fsMonitor{
		watcher:  watcher,
		path:     abs,
		onChange: onChange,
		debounce: reloadDebounce,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// start watches the directory of the profile, editors often replace the
// file instead of writing it in place
func (fm *fsMonitor) start() error {
	if err := fm.watcher.Add(filepath.Dir(fm.path)); err != nil {
		return err
	}
	pkg.WithField("path", fm.path).Info("watching profile for changes")

	go fm.processEvents()
	return nil
}

// stop ends monitoring and waits for the event loop to exit
func (fm *fsMonitor) stop() {
	close(fm.stopCh)
	fm.watcher.Close()
	<-fm.done

	fm.mu.Lock()
	if fm.timer != nil {
		fm.timer.Stop()
	}
	fm.mu.Unlock()

	// waits for a running callback
	fm.runMu.Lock()
	fm.stopped = true
	fm.runMu.Unlock()
}

// fire runs onChange unless the monitor was stopped
func (fm *fsMonitor) fire() {
	fm.runMu.Lock()
	defer fm.runMu.Unlock()
	if fm.stopped {
		return
	}
	fm.onChange()
}

func (fm *fsMonitor) processEvents() {
	defer close(fm.done)
	for {
		select {
		case event, ok := <-fm.watcher.Events:
			if !ok {
				return
			}
			fm.handleEvent(event)
		case err, ok := <-fm.watcher.Errors:
			if !ok {
				return
			}
			pkg.WithError(err).Error("file system monitor error")
		case <-fm.stopCh:
			return
		}
	}
}

func (fm *fsMonitor) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != fm.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	pkg.WithField("op", event.Op.String()).Debug("profile changed")

	fm.mu.Lock()
	defer fm.mu.Unlock()
	if fm.timer != nil {
		fm.timer.Stop()
	}
	fm.timer = time.AfterFunc(fm.debounce, fm.fire)
}
