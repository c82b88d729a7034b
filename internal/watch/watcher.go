// Package watch turns file system notifications under a glob into
// add/change/unlink/addDir/unlinkDir events.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"taskflow/internal/logging"
	"taskflow/internal/util"
)

// Event kinds.
const (
	Add       = "add"
	Change    = "change"
	Unlink    = "unlink"
	AddDir    = "addDir"
	UnlinkDir = "unlinkDir"
)

// Changes to the same path closer together than this collapse into one event.
const changeThrottle = 100 * time.Millisecond

// Event is a single observed file system change.
type Event struct {
	Kind  string
	Path  string // absolute
	Name  string // base name
	Stats map[string]interface{}
}

// FileWatcher monitors every directory under the glob's base.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	base     string
	pattern  string
	mu       sync.Mutex
	dirs     map[string]bool
	throttle *util.Throttle
	log      *logging.Logger
}

// NewFileWatcher starts watching glob. Paths that already exist do not
// produce events.
func NewFileWatcher(glob string) (*FileWatcher, error) {
	abs, err := filepath.Abs(glob)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch glob: %w", err)
	}
	base, pattern := doublestar.SplitPattern(filepath.ToSlash(abs))
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		// A plain directory watches everything below it.
		base, pattern = filepath.ToSlash(abs), "**"
	}
	if pattern == "" || pattern == "." {
		pattern = "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch glob %q", glob)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:  w,
		base:     filepath.FromSlash(base),
		pattern:  pattern,
		dirs:     make(map[string]bool),
		throttle: util.NewThrottle(changeThrottle),
		log:      logging.WithFields(map[string]interface{}{"component": "watch", "glob": glob}),
	}
	if err := fw.addTree(fw.base, nil); err != nil {
		_ = w.Close()
		return nil, err
	}
	return fw, nil
}

// Run delivers events to handle until ctx is cancelled. Handlers run on the
// calling goroutine, one at a time.
func (fw *FileWatcher) Run(ctx context.Context, handle func(Event)) error {
	defer fw.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			for _, out := range fw.translate(ev) {
				handle(out)
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.log.Warn("watch error", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Close stops the underlying watcher.
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}

// addTree watches dir and every directory below it. When emit is non-nil the
// contents are reported as new.
func (fw *FileWatcher) addTree(dir string, emit func(Event)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			return nil
		}
		if path != fw.base && hidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := fw.watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			fw.mu.Lock()
			fw.dirs[path] = true
			fw.mu.Unlock()
			if emit != nil && fw.matches(path) {
				emit(fw.event(AddDir, path))
			}
			return nil
		}
		if emit != nil && fw.matches(path) {
			emit(fw.event(Add, path))
		}
		return nil
	})
}

func (fw *FileWatcher) translate(ev fsnotify.Event) []Event {
	path := filepath.Clean(ev.Name)
	if fw.ignored(path) {
		return nil
	}
	var out []Event
	emit := func(e Event) { out = append(out, e) }

	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if err := fw.addTree(path, emit); err != nil {
				fw.log.Warn("failed to watch new directory", map[string]interface{}{"path": path, "error": err.Error()})
			}
			return out
		}
		if fw.matches(path) {
			emit(fw.event(Add, path))
		}
	case ev.Has(fsnotify.Write):
		if fw.matches(path) && fw.throttle.Allow(path) {
			emit(fw.event(Change, path))
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		fw.mu.Lock()
		wasDir := fw.dirs[path]
		delete(fw.dirs, path)
		fw.mu.Unlock()
		if !fw.matches(path) {
			return nil
		}
		if wasDir {
			_ = fw.watcher.Remove(path)
			emit(Event{Kind: UnlinkDir, Path: path, Name: filepath.Base(path)})
		} else {
			emit(Event{Kind: Unlink, Path: path, Name: filepath.Base(path)})
		}
	}
	return out
}

func (fw *FileWatcher) event(kind, path string) Event {
	e := Event{Kind: kind, Path: path, Name: filepath.Base(path)}
	if info, err := os.Stat(path); err == nil {
		e.Stats = map[string]interface{}{
			"size":    info.Size(),
			"mode":    info.Mode().String(),
			"modTime": info.ModTime().Format(time.RFC3339Nano),
			"isDir":   info.IsDir(),
		}
	}
	return e
}

// matches reports whether path, relative to the glob base, matches the
// pattern part of the glob.
func (fw *FileWatcher) matches(path string) bool {
	rel, err := filepath.Rel(fw.base, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	ok, err := doublestar.Match(fw.pattern, filepath.ToSlash(rel))
	return err == nil && ok
}

// ignored reports dotfiles and anything inside a dot directory below base.
func (fw *FileWatcher) ignored(path string) bool {
	rel, err := filepath.Rel(fw.base, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if hidden(part) {
			return true
		}
	}
	return false
}

func hidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".") && name != ".."
}
