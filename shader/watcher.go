package shader

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"render-core/core"
)

// WatchLag is how long a file must stay quiet before its shader is
// reported. Every event for the file restarts the wait.
const WatchLag = 100 * time.Millisecond

// Watcher reports shader names whose override files changed. The watch
// goroutine only sends names; the receiver recompiles on its own thread.
type Watcher struct {
	watcher *fsnotify.Watcher
	names   chan string
	done    chan struct{}
	wg      sync.WaitGroup

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// Watch starts watching dir for stage file changes.
func Watch(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shader watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("shader watcher: watching %s: %w", dir, err)
	}

	w := &Watcher{
		watcher: fw,
		names:   make(chan string, 16),
		done:    make(chan struct{}),
		timers:  make(map[string]*time.Timer),
	}
	w.wg.Add(1)
	go w.run()
	core.Logger().Info("watching shader overrides", "dir", dir)
	return w, nil
}

// Names delivers the name of each changed shader.
func (w *Watcher) Names() <-chan string { return w.names }

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.update(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			core.Logger().Error("shader watcher", "err", err)
		}
	}
}

func (w *Watcher) update(path string) {
	name := ShaderName(path)
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(WatchLag)
		return
	}
	var t *time.Timer
	t = time.AfterFunc(WatchLag, func() {
		w.mu.Lock()
		if w.timers[path] == t {
			delete(w.timers, path)
		}
		w.mu.Unlock()
		w.send(name)
	})
	w.timers[path] = t
}

func (w *Watcher) send(name string) {
	select {
	case <-w.done:
		return
	default:
	}
	select {
	case w.names <- name:
	default:
		core.Logger().Warn("shader reload queue full", "shader", name)
	}
}

// Close stops the watch goroutine and releases the OS watch.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
