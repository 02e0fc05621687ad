// Package synchronizer keeps the index table in step with filesystem
// notifications. Every notification becomes one transaction that first
// deletes and then inserts rows; it is applied completely or not at all.
//
// Rows are matched by directory basename only. Two directories sharing a
// name are indistinguishable: deleting one of them also removes the rows of
// the other, and a placeholder lookup for one can hit the other.
package synchronizer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/log"
	"github.com/mwantia/fsindex/store"
)

// Observer receives the outcome of every handled notification.
type Observer interface {
	ObserveDelta(delta *Delta, duration time.Duration, err error)
}

// Delta is the change set computed for a single notification.
type Delta struct {
	ID           string            `json:"id"`
	Notification data.Notification `json:"notification"`
	Deleted      int64             `json:"deleted"`
	Inserted     []data.IndexRow   `json:"inserted"`
}

type Synchronizer struct {
	store    store.Store
	log      *log.Logger
	policy   DeletePolicy
	observer Observer
	exists   func(path string) bool
}

func New(s store.Store, opts ...Option) *Synchronizer {
	syncer := &Synchronizer{
		store:  s,
		log:    log.Discard(),
		policy: PlaceholderAlways,
		exists: pathExists,
	}
	for _, opt := range opts {
		opt(syncer)
	}

	return syncer
}

// Policy returns the configured file deletion policy.
func (s *Synchronizer) Policy() DeletePolicy {
	return s.policy
}

// Handle applies the delta for n inside a single transaction.
// A failed transaction is rolled back and its error returned; the caller is
// expected to treat it as fatal.
func (s *Synchronizer) Handle(ctx context.Context, n data.Notification) (*Delta, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	if n.ID == "" {
		n.ID = uuid.Must(uuid.NewV7()).String()
	}
	n.Path = filepath.Clean(n.Path)
	if n.DestPath != "" {
		n.DestPath = filepath.Clean(n.DestPath)
	}

	delta := &Delta{ID: n.ID, Notification: n}
	start := time.Now()

	err := store.InTx(ctx, s.store, func(tx store.Tx) error {
		return s.apply(&change{ctx: ctx, tx: tx, delta: delta}, n)
	})

	if s.observer != nil {
		s.observer.ObserveDelta(delta, time.Since(start), err)
	}

	if err != nil {
		s.log.Error("[%s] Failed to apply %s: %v", n.ID, n, err)
		return delta, fmt.Errorf("failed to apply %s: %w", n, err)
	}

	s.log.Info("[%s] Applied %s", n.ID, n)
	s.log.Debug("[%s] Deleted %d rows, inserted %v", n.ID, delta.Deleted, delta.Inserted)
	return delta, nil
}

func (s *Synchronizer) apply(c *change, n data.Notification) error {
	switch n.Kind {
	case data.Created:
		if n.IsDirectory {
			return s.createDirectory(c, n.Path)
		}
		return s.createFile(c, n.Path)

	case data.Deleted:
		if n.IsDirectory {
			return s.deleteDirectory(c, n.Path)
		}
		return s.deleteFile(c, n.Path)

	case data.Moved:
		if n.IsDirectory {
			return s.moveDirectory(c, n.Path, n.DestPath)
		}
		return s.moveFile(c, n.Path, n.DestPath)
	}

	return fmt.Errorf("%w: unknown kind %d", data.ErrInvalidNotification, int(n.Kind))
}

// createFile replaces the parent's placeholder with a row for the new file.
func (s *Synchronizer) createFile(c *change, path string) error {
	parent, file := data.Split(path)
	directory := data.Basename(parent)

	if err := c.delete(store.PlaceholderOf(directory)); err != nil {
		return err
	}

	return c.insert(data.NewFileRow(parent, file))
}

// createDirectory marks a new directory as empty.
func (s *Synchronizer) createDirectory(c *change, path string) error {
	return c.insert(data.NewPlaceholderRow(path))
}

// deleteFile removes the file row and applies the placeholder policy to
// the parent directory.
func (s *Synchronizer) deleteFile(c *change, path string) error {
	parent, file := data.Split(path)
	directory := data.Basename(parent)

	if err := c.delete(store.FileIn(directory, file)); err != nil {
		return err
	}

	if s.policy == PlaceholderWhenEmpty {
		remaining, err := c.selectRows(store.ByDirectory(directory))
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			return nil
		}
	}

	return c.insert(data.NewPlaceholderRow(parent))
}

// deleteDirectory removes every row sharing the directory's basename.
// No placeholder is inserted for the parent, even if it is now empty.
func (s *Synchronizer) deleteDirectory(c *change, path string) error {
	return c.delete(store.ByDirectory(data.Basename(path)))
}

func (s *Synchronizer) moveFile(c *change, src, dest string) error {
	srcParent, srcFile := data.Split(src)
	destParent, destFile := data.Split(dest)
	srcDirectory := data.Basename(srcParent)
	destDirectory := data.Basename(destParent)

	if err := c.delete(store.FileIn(srcDirectory, srcFile)); err != nil {
		return err
	}
	if err := c.delete(store.PlaceholderOf(destDirectory)); err != nil {
		return err
	}
	if err := c.insert(data.NewFileRow(destParent, destFile)); err != nil {
		return err
	}

	remaining, err := c.selectRows(store.ByDirectory(srcDirectory))
	if err != nil {
		return err
	}

	// A source directory that is gone was moved or deleted as a whole and is
	// reported through its own directory notification.
	if len(remaining) == 0 && s.exists(srcParent) {
		return c.insert(data.NewPlaceholderRow(srcParent))
	}

	return nil
}

// moveDirectory drops every row of the source directory name and registers
// the destination as a new, empty directory. Rows of the moved directory's
// files and subdirectories are not carried over.
func (s *Synchronizer) moveDirectory(c *change, src, dest string) error {
	if err := c.delete(store.ByDirectory(data.Basename(src))); err != nil {
		return err
	}

	return s.createDirectory(c, dest)
}

// change records the rows touched by one transaction.
type change struct {
	ctx   context.Context
	tx    store.Tx
	delta *Delta
}

func (c *change) delete(pred *store.Predicate) error {
	n, err := c.tx.Delete(c.ctx, pred)
	if err != nil {
		return err
	}

	c.delta.Deleted += n
	return nil
}

func (c *change) insert(row data.IndexRow) error {
	if err := c.tx.Insert(c.ctx, row); err != nil {
		return err
	}

	c.delta.Inserted = append(c.delta.Inserted, row)
	return nil
}

func (c *change) selectRows(pred *store.Predicate) ([]data.IndexRow, error) {
	return c.tx.Select(c.ctx, pred)
}
