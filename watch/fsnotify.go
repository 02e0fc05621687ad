package watch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/log"
	"github.com/tidwall/btree"
)

// FsnotifyService watches a tree with one fsnotify watch per directory.
//
// fsnotify reports a rename as Rename(old) followed by Create(new). The
// two are paired into a single Moved notification when the Create arrives
// within the pairing window. A Rename left unpaired means the path left the
// tree and is reported as Deleted.
type FsnotifyService struct {
	log    *log.Logger
	window time.Duration
}

func NewFsnotifyService(opts ...ServiceOption) *FsnotifyService {
	s := &FsnotifyService{
		log:    log.Discard(),
		window: DefaultPairingWindow,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *FsnotifyService) Subscribe(root string) (Subscription, error) {
	root, err := data.ToAbsolutePath(root)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	sub := &fsnotifySubscription{
		log:     s.log,
		window:  s.window,
		watcher: watcher,

		dirs:    &btree.Set[string]{},
		retired: &btree.Set[string]{},

		notifications: make(chan data.Notification, 64),
		errors:        make(chan error, 16),
		done:          make(chan struct{}),
	}

	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return nil, err
	}
	sub.dirs.Insert(root)
	sub.addChildren(root, nil)

	sub.wg.Add(1)
	go sub.run()

	return sub, nil
}

type pendingRename struct {
	path  string
	isDir bool
}

type fsnotifySubscription struct {
	log     *log.Logger
	window  time.Duration
	watcher *fsnotify.Watcher

	// Directories currently watched. Paths that no longer exist can only be
	// classified through this set.
	dirs *btree.Set[string]
	// Directories whose removal was already reported. fsnotify reports
	// these twice, once from the parent and once from the directory itself.
	retired *btree.Set[string]

	pending *pendingRename
	timer   *time.Timer

	notifications chan data.Notification
	errors        chan error
	done          chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func (s *fsnotifySubscription) Notifications() <-chan data.Notification {
	return s.notifications
}

func (s *fsnotifySubscription) Errors() <-chan error {
	return s.errors
}

func (s *fsnotifySubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.watcher.Close()
		s.wg.Wait()
	})

	return err
}

func (s *fsnotifySubscription) run() {
	defer s.wg.Done()
	defer close(s.notifications)
	defer close(s.errors)
	defer s.stopTimer()

	for {
		var timeout <-chan time.Time
		if s.timer != nil {
			timeout = s.timer.C
		}

		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !s.handle(event) {
				return
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if !s.sendError(err) {
				return
			}

		case <-timeout:
			s.timer = nil
			if !s.flushPending() {
				return
			}
		}
	}
}

// handle translates one fsnotify event. It returns false once the
// subscription is closing.
func (s *fsnotifySubscription) handle(event fsnotify.Event) bool {
	path := filepath.Clean(event.Name)
	s.log.Debug("Received %s", event)

	switch {
	case event.Has(fsnotify.Create):
		return s.handleCreate(path)

	case event.Has(fsnotify.Rename):
		if s.pending != nil && s.pending.path == path {
			return true
		}
		if s.consumeRetired(path) {
			return true
		}
		if !s.flushPending() {
			return false
		}

		s.pending = &pendingRename{path: path, isDir: s.dirs.Contains(path)}
		s.timer = time.NewTimer(s.window)
		return true

	case event.Has(fsnotify.Remove):
		if !s.flushPending() {
			return false
		}
		if s.consumeRetired(path) {
			return true
		}

		isDir := s.dirs.Contains(path)
		if isDir {
			s.forget(path)
			s.retired.Insert(path)
		}
		return s.send(data.Notification{Kind: data.Deleted, Path: path, IsDirectory: isDir})
	}

	return true
}

func (s *fsnotifySubscription) handleCreate(path string) bool {
	if s.retired.Contains(path) {
		s.retired.Delete(path)
	}

	if s.pending != nil {
		src := s.pending
		s.clearPending()

		info, err := os.Lstat(path)
		isDir := err == nil && info.IsDir()

		if !s.send(data.Notification{Kind: data.Moved, Path: src.path, DestPath: path, IsDirectory: isDir}) {
			return false
		}
		if !isDir {
			return true
		}

		if src.isDir {
			s.forget(src.path)
			s.retired.Insert(src.path)
		}
		return s.addRecursive(path, func(p string, dir bool) bool {
			rel, err := filepath.Rel(path, p)
			if err != nil {
				return true
			}
			return s.send(data.Notification{
				Kind:        data.Moved,
				Path:        filepath.Join(src.path, rel),
				DestPath:    p,
				IsDirectory: dir,
			})
		}) == nil
	}

	info, err := os.Lstat(path)
	if err != nil {
		// Gone again before it could be inspected.
		s.log.Debug("Skipping vanished %s: %v", path, err)
		return true
	}

	if !info.IsDir() {
		if isSymlinkedDir(path, info.Mode()) {
			return true
		}
		return s.send(data.Notification{Kind: data.Created, Path: path})
	}
	if s.dirs.Contains(path) {
		return true
	}

	if !s.send(data.Notification{Kind: data.Created, Path: path, IsDirectory: true}) {
		return false
	}
	return s.addRecursive(path, func(p string, dir bool) bool {
		return s.send(data.Notification{Kind: data.Created, Path: p, IsDirectory: dir})
	}) == nil
}

// addRecursive watches dir and every directory below it. When report is
// set it is called top-down for every entry below dir; directories that
// are already watched are not reported again.
func (s *fsnotifySubscription) addRecursive(dir string, report func(path string, isDir bool) bool) error {
	if err := s.watcher.Add(dir); err != nil {
		s.log.Warn("Unable to watch %s: %v", dir, err)
		return nil
	}
	s.dirs.Insert(dir)

	return s.addChildren(dir, report)
}

func (s *fsnotifySubscription) addChildren(dir string, report func(path string, isDir bool) bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Warn("Unable to list %s: %v", dir, err)
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		isDir := entry.IsDir()

		if isDir && s.dirs.Contains(path) {
			continue
		}
		if isSymlinkedDir(path, entry.Type()) {
			continue
		}
		if report != nil && !report(path, isDir) {
			return ErrSubscriptionClosed
		}
		if isDir {
			if err := s.addRecursive(path, report); err != nil {
				return err
			}
		}
	}

	return nil
}

// forget drops dir and everything below it from the watched set.
func (s *fsnotifySubscription) forget(dir string) {
	paths := []string{dir}

	s.dirs.Ascend(dir+string(filepath.Separator), func(path string) bool {
		if !data.HasPrefix(path, dir) {
			return false
		}
		paths = append(paths, path)
		return true
	})

	for _, path := range paths {
		s.dirs.Delete(path)
		// The kernel drops watches of deleted directories on its own.
		_ = s.watcher.Remove(path)
	}
}

// isSymlinkedDir reports links to directories. They are not followed and
// the bulk indexer gives them no row either.
func isSymlinkedDir(path string, mode fs.FileMode) bool {
	if mode&fs.ModeSymlink == 0 {
		return false
	}

	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (s *fsnotifySubscription) consumeRetired(path string) bool {
	if !s.retired.Contains(path) {
		return false
	}

	s.retired.Delete(path)
	return true
}

// flushPending reports an unpaired rename as a deletion.
func (s *fsnotifySubscription) flushPending() bool {
	if s.pending == nil {
		return true
	}

	src := s.pending
	s.clearPending()

	if src.isDir {
		s.forget(src.path)
		s.retired.Insert(src.path)
	}
	return s.send(data.Notification{Kind: data.Deleted, Path: src.path, IsDirectory: src.isDir})
}

func (s *fsnotifySubscription) clearPending() {
	s.pending = nil
	s.stopTimer()
}

func (s *fsnotifySubscription) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *fsnotifySubscription) send(n data.Notification) bool {
	select {
	case s.notifications <- n:
		return true
	case <-s.done:
		return false
	}
}

func (s *fsnotifySubscription) sendError(err error) bool {
	select {
	case s.errors <- err:
		return true
	case <-s.done:
		return false
	}
}
