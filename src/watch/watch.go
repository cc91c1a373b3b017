// Package watch reruns a scan whenever the source files it covers change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/mypyrun/mypyrun/src/cli/logging"
	"github.com/mypyrun/mypyrun/src/fs"
)

var log = logging.Log

const debounceInterval = 50 * time.Millisecond

// A Func is called with the files that changed since it was last called.
// Its context is cancelled if more changes arrive before it returns.
type Func func(ctx context.Context, changed []string)

// A Watcher watches a set of source files and directories.
type Watcher struct {
	watcher   *fsnotify.Watcher
	extension string
	roots     []string
	files     map[string]bool
	hashes    map[string]uint64
}

// New starts watching the given files and directories. Directories are watched recursively
// for files with the given extension, including ones created later.
func New(paths []string, extension string) (*Watcher, error) {
	abs := make([]string, len(paths))
	for i, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		abs[i] = a
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("Error setting up watcher: %w", err)
	}
	w := &Watcher{
		watcher:   watcher,
		extension: extension,
		files:     map[string]bool{},
		hashes:    map[string]uint64{},
	}
	for _, p := range abs {
		if fs.IsDirectory(p) {
			w.roots = append(w.roots, p)
		} else {
			w.files[p] = true
		}
	}
	if err := w.addAll(abs); err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

// addAll adds watches on every directory that holds the given paths, and records what the
// files in them currently contain.
func (w *Watcher) addAll(paths []string) error {
	dirs, err := fs.SourceDirs(paths)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		log.Debug("Adding watch on %s", dir)
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("Failed to add watch on %s: %w", dir, err)
		}
	}
	files, err := fs.SourceFiles(paths, w.extension)
	if err != nil {
		return err
	}
	for _, file := range files {
		if h, ok := hashFile(file); ok {
			w.hashes[file] = h
		}
	}
	return nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run calls f each time the watched files change, until the context is cancelled.
// Bursts of events are coalesced, and writes that leave a file's contents as they were
// are ignored. Only one call to f is in flight at a time; a new change cancels the previous one.
func (w *Watcher) Run(ctx context.Context, f Func) error {
	var current run
	defer current.stop()
	pending := map[string]bool{}
	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			log.Debug("Event: %s", event)
			if event.Op&fsnotify.Create != 0 && w.isNewDir(event.Name) {
				if err := w.addAll([]string{event.Name}); err != nil {
					log.Warning("%s", err)
				}
				pending[event.Name] = true
				timer = time.After(debounceInterval)
			} else if w.relevant(event.Name) {
				pending[event.Name] = true
				timer = time.After(debounceInterval)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("Error watching files: %s", err)
		case <-timer:
			timer = nil
			changed := w.changed(pending)
			pending = map[string]bool{}
			if len(changed) == 0 {
				continue
			}
			log.Notice("%s changed", strings.Join(changed, ", "))
			current.start(ctx, f, changed)
		}
	}
}

// isNewDir returns true if the given path is a new directory beneath one we're watching.
func (w *Watcher) isNewDir(name string) bool {
	return fs.IsDirectory(name) && !fs.IsSkippedDir(name) && w.underRoot(name)
}

// relevant returns true if an event on the given path could affect a scan.
func (w *Watcher) relevant(name string) bool {
	return w.files[name] || (strings.HasSuffix(name, w.extension) && w.underRoot(name))
}

func (w *Watcher) underRoot(name string) bool {
	for _, root := range w.roots {
		if fs.IsWithin(name, root) {
			return true
		}
	}
	return false
}

// changed returns those of the given paths whose contents are different to when we last saw
// them, in sorted order. New directories are expanded into the files beneath them.
func (w *Watcher) changed(paths map[string]bool) []string {
	changed := map[string]bool{}
	for name := range paths {
		if fs.IsDirectory(name) {
			files, _ := fs.SourceFiles([]string{name}, w.extension)
			for _, file := range files {
				if h, ok := hashFile(file); ok {
					w.hashes[file] = h
				}
				changed[file] = true
			}
			continue
		}
		h, ok := hashFile(name)
		old, present := w.hashes[name]
		if !ok {
			delete(w.hashes, name)
			if present {
				changed[name] = true
			}
			continue
		}
		w.hashes[name] = h
		if !present || old != h {
			changed[name] = true
		}
	}
	ret := make([]string, 0, len(changed))
	for name := range changed {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// hashFile returns the hash of a file's contents, or false if it can't be read.
func hashFile(name string) (uint64, bool) {
	b, err := os.ReadFile(name)
	if err != nil {
		return 0, false
	}
	return xxhash.Sum64(b), true
}

// A run is a single call to a Func in the background.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *run) start(ctx context.Context, f Func, changed []string) {
	r.stop()
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		f(ctx, changed)
	}(r.done)
}

// stop cancels the current call, if there is one, and waits for it to return.
func (r *run) stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
		r.cancel = nil
	}
}
