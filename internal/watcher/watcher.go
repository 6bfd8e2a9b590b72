// Package watcher observes a project tree and emits debounced change notifications.
package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sha1n/mcp-codeintel-server/internal/ignore"
)

// DefaultQuietPeriod is how long a (kind, path) pair must stay quiet before it fires.
const DefaultQuietPeriod = 100 * time.Millisecond

// EventKind is the normalized kind of a filesystem change.
type EventKind string

// Event kinds delivered to subscribers.
const (
	EventAdd       EventKind = "add"
	EventChange    EventKind = "change"
	EventDelete    EventKind = "delete"
	EventAddDir    EventKind = "addDir"
	EventDeleteDir EventKind = "deleteDir"
)

// State is the watcher lifecycle state.
type State string

// Watcher states.
const (
	StateIdle     State = "idle"
	StateWatching State = "watching"
)

// Event is a debounced change notification.
type Event struct {
	Kind    EventKind
	RelPath string
	AbsPath string
}

// Callback receives debounced events.
type Callback func(Event)

type debounceKey struct {
	kind EventKind
	path string
}

type pendingTimer struct {
	timer *time.Timer
	token *struct{}
}

// Watcher observes a directory tree with fsnotify and debounces events per
// (kind, path). Subscribers registered with Subscribe survive Stop/Start
// cycles; the callback passed to Start lives for one watch session.
type Watcher struct {
	root     string
	resolver *ignore.Resolver
	quiet    time.Duration

	lifecycle sync.Mutex

	mu          sync.Mutex
	state       State
	fsw         *fsnotify.Watcher
	done        chan struct{}
	timers      map[debounceKey]pendingTimer
	dirs        map[string]bool
	subscribers map[int]Callback
	sessionID   int
	nextID      int

	wg sync.WaitGroup
}

// New creates an idle watcher for root. A non-positive quiet period uses DefaultQuietPeriod.
func New(root string, resolver *ignore.Resolver, quiet time.Duration) *Watcher {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if resolver == nil {
		resolver = ignore.NewResolver(ignore.DefaultPatterns)
	}
	return &Watcher{
		root:        root,
		resolver:    resolver,
		quiet:       quiet,
		state:       StateIdle,
		timers:      make(map[debounceKey]pendingTimer),
		dirs:        make(map[string]bool),
		subscribers: make(map[int]Callback),
	}
}

// Subscribe registers a callback for every future event and returns a function
// that removes it.
func (w *Watcher) Subscribe(cb Callback) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	id := w.nextID
	w.subscribers[id] = cb

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subscribers, id)
	}
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start begins watching. If the watcher is already running it is stopped first.
// cb may be nil when all consumers use Subscribe.
func (w *Watcher) Start(cb Callback) error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.stop()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w.mu.Lock()
	w.fsw = fsw
	w.done = make(chan struct{})
	w.dirs = make(map[string]bool)
	if cb != nil {
		w.nextID++
		w.sessionID = w.nextID
		w.subscribers[w.sessionID] = cb
	}
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		_ = fsw.Close()
		w.mu.Lock()
		w.fsw = nil
		delete(w.subscribers, w.sessionID)
		w.sessionID = 0
		w.mu.Unlock()
		return fmt.Errorf("add watch paths: %w", err)
	}

	w.mu.Lock()
	w.state = StateWatching
	done := w.done
	w.mu.Unlock()

	w.wg.Add(1)
	go w.eventLoop(fsw, done)

	slog.Info("Watching project", "root", w.root, "quiet_period", w.quiet)
	return nil
}

// Stop detaches the observer and cancels every pending timer.
// It is safe to call Stop on an idle watcher.
func (w *Watcher) Stop() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	w.stop()
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.state != StateWatching && w.fsw == nil {
		w.mu.Unlock()
		return
	}
	w.state = StateIdle
	for key, p := range w.timers {
		p.timer.Stop()
		delete(w.timers, key)
	}
	if w.sessionID != 0 {
		delete(w.subscribers, w.sessionID)
		w.sessionID = 0
	}
	fsw := w.fsw
	done := w.done
	w.fsw = nil
	w.done = nil
	w.mu.Unlock()

	if done != nil {
		close(done)
	}
	if fsw != nil {
		if err := fsw.Close(); err != nil {
			slog.Warn("Failed to close fsnotify watcher", "error", err)
		}
	}
	w.wg.Wait()
}

// eventLoop processes filesystem events until done is closed.
func (w *Watcher) eventLoop(fsw *fsnotify.Watcher, done <-chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Watch error", "error", err)

		case <-done:
			return
		}
	}
}

// handleEvent normalizes a single fsnotify event and schedules it.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil || relPath == "." || strings.HasPrefix(relPath, "..") {
		return
	}
	relPath = filepath.ToSlash(relPath)

	var kind EventKind
	switch {
	case event.Op&fsnotify.Create != 0:
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if w.resolver.Ignored(relPath, true) {
				return
			}
			if err := w.addRecursive(event.Name); err != nil {
				slog.Warn("Failed to watch new directory", "path", relPath, "error", err)
			}
			kind = EventAddDir
		} else {
			kind = EventAdd
		}

	case event.Op&fsnotify.Write != 0:
		kind = EventChange

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if w.forgetDir(event.Name) {
			kind = EventDeleteDir
		} else {
			kind = EventDelete
		}

	default:
		return
	}

	if w.resolver.Ignored(relPath, kind == EventAddDir || kind == EventDeleteDir) {
		return
	}

	w.schedule(Event{Kind: kind, RelPath: relPath, AbsPath: event.Name})
}

// schedule (re)arms the debounce timer for the event's (kind, path).
func (w *Watcher) schedule(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateWatching {
		return
	}

	key := debounceKey{kind: ev.Kind, path: ev.RelPath}
	if p, ok := w.timers[key]; ok {
		p.timer.Stop()
	}

	token := &struct{}{}
	timer := time.AfterFunc(w.quiet, func() {
		w.fire(key, token, ev)
	})
	w.timers[key] = pendingTimer{timer: timer, token: token}
}

// fire delivers ev unless its timer was superseded or the watcher stopped.
func (w *Watcher) fire(key debounceKey, token *struct{}, ev Event) {
	w.mu.Lock()
	p, ok := w.timers[key]
	if !ok || p.token != token || w.state != StateWatching {
		w.mu.Unlock()
		return
	}
	delete(w.timers, key)

	ids := make([]int, 0, len(w.subscribers))
	for id := range w.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	callbacks := make([]Callback, 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, w.subscribers[id])
	}
	w.mu.Unlock()

	for _, cb := range callbacks {
		w.deliver(cb, ev)
	}
}

func (w *Watcher) deliver(cb Callback, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Watch subscriber panicked", "event", string(ev.Kind), "path", ev.RelPath, "panic", r)
		}
	}()
	cb(ev)
}

// addRecursive adds the directory and all non-ignored subdirectories to the watcher.
func (w *Watcher) addRecursive(dir string) error {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if w.resolver.Ignored(relPath, true) {
			return filepath.SkipDir
		}

		if err := fsw.Add(path); err != nil {
			// Non-fatal, the directory may have vanished
			slog.Debug("Failed to watch directory", "path", path, "error", err)
			return nil
		}

		w.mu.Lock()
		w.dirs[path] = true
		w.mu.Unlock()
		return nil
	})
}

// forgetDir drops path and its descendants from the watched set and reports
// whether path was a watched directory.
func (w *Watcher) forgetDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirs[path] {
		return false
	}
	prefix := path + string(filepath.Separator)
	for d := range w.dirs {
		if d == path || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
	return true
}

// pendingCount returns the number of armed debounce timers.
func (w *Watcher) pendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}
