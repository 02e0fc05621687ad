// Package indexer populates the index table from a full walk of a directory tree.
package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/log"
	"github.com/mwantia/fsindex/store"
)

// Observer is notified about every row the indexer inserts.
type Observer interface {
	ObserveIndexedRow(row data.IndexRow)
}

// Stats summarises a completed run.
type Stats struct {
	Directories  int `json:"directories"`
	Files        int `json:"files"`
	Placeholders int `json:"placeholders"`
	Skipped      int `json:"skipped"`
}

type Indexer struct {
	store    store.Store
	log      *log.Logger
	observer Observer
}

type Option func(*Indexer)

func WithLogger(logger *log.Logger) Option {
	return func(ix *Indexer) {
		if logger != nil {
			ix.log = logger
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(ix *Indexer) {
		ix.observer = observer
	}
}

func New(s store.Store, opts ...Option) *Indexer {
	ix := &Indexer{
		store: s,
		log:   log.Discard(),
	}
	for _, opt := range opts {
		opt(ix)
	}

	return ix
}

// Run clears the table and indexes every directory below root, root included.
//
// Each row is inserted in its own transaction; the first failed insert
// aborts the run. Directories that cannot be read are skipped.
func (ix *Indexer) Run(ctx context.Context, root string) (*Stats, error) {
	root, err := data.ToAbsolutePath(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", data.ErrNotDirectory, root)
	}

	err = store.InTx(ctx, ix.store, func(tx store.Tx) error {
		n, err := tx.Delete(ctx, store.All())
		if err == nil {
			ix.log.Debug("Cleared %d rows from previous index", n)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clear index: %w", err)
	}

	stats := &Stats{}
	ix.log.Info("Indexing '%s' into %s store", root, ix.store.Name())

	if err := ix.walk(ctx, root, stats); err != nil {
		return stats, err
	}

	ix.log.Info("Indexed %d directories: %d files, %d empty, %d skipped",
		stats.Directories, stats.Files, stats.Placeholders, stats.Skipped)
	return stats, nil
}

func (ix *Indexer) walk(ctx context.Context, dir string, stats *Stats) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		ix.log.Warn("Skipping unreadable directory '%s': %v", dir, err)
		stats.Skipped++
		return nil
	}
	stats.Directories++

	var descend []string
	subdirs, files := 0, 0

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if !isDirectory(path, entry) {
			files++
			if err := ix.insert(ctx, data.NewFileRow(dir, entry.Name())); err != nil {
				return err
			}
			stats.Files++
			continue
		}

		subdirs++
		// Symlinked directories count as subdirectories but are not followed
		if entry.Type()&fs.ModeSymlink == 0 {
			descend = append(descend, path)
		}
	}

	if subdirs == 0 && files == 0 {
		if err := ix.insert(ctx, data.NewPlaceholderRow(dir)); err != nil {
			return err
		}
		stats.Placeholders++
	}

	for _, sub := range descend {
		if err := ix.walk(ctx, sub, stats); err != nil {
			return err
		}
	}

	return nil
}

func (ix *Indexer) insert(ctx context.Context, row data.IndexRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := store.InTx(ctx, ix.store, func(tx store.Tx) error {
		return tx.Insert(ctx, row)
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", row, err)
	}

	if ix.observer != nil {
		ix.observer.ObserveIndexedRow(row)
	}
	return nil
}

func isDirectory(path string, entry fs.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}

	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
