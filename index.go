// Package fsindex keeps a relational index of a directory tree. The table
// holds one row per file and one placeholder row per empty directory. It is
// built by a bulk walk and then kept current from filesystem notifications.
package fsindex

import (
	"context"
	"sync"

	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/export"
	"github.com/mwantia/fsindex/indexer"
	"github.com/mwantia/fsindex/log"
	"github.com/mwantia/fsindex/store"
	"github.com/mwantia/fsindex/synchronizer"
	"github.com/mwantia/fsindex/watch"
)

type Index struct {
	mu     sync.RWMutex
	closed bool

	store   store.Store
	log     *log.Logger
	options *IndexOptions

	indexer *indexer.Indexer
	syncer  *synchronizer.Synchronizer
	service watch.Service
}

// New builds an index on top of an opened store. Closing the index also
// closes the store.
func New(s store.Store, opts ...IndexOption) (*Index, error) {
	options := newDefaultIndexOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = log.NewLogger("fsindex", options.LogLevel, options.LogFile, options.NoTerminalLog)
		logger.NoColor = options.NoColorLog
		logger.JSON = options.JSONLog
	}

	indexerOpts := []indexer.Option{indexer.WithLogger(logger.Named("indexer"))}
	syncerOpts := []synchronizer.Option{
		synchronizer.WithLogger(logger.Named("sync")),
		synchronizer.WithDeletePolicy(options.DeletePolicy),
	}
	if options.Metrics != nil {
		indexerOpts = append(indexerOpts, indexer.WithObserver(options.Metrics))
		syncerOpts = append(syncerOpts, synchronizer.WithObserver(options.Metrics))
	}

	service := options.WatchService
	if service == nil {
		service = watch.NewFsnotifyService(
			watch.WithServiceLogger(logger.Named("watch")),
			watch.WithPairingWindow(options.PairingWindow),
		)
	}

	return &Index{
		store:   s,
		log:     logger,
		options: options,

		indexer: indexer.New(s, indexerOpts...),
		syncer:  synchronizer.New(s, syncerOpts...),
		service: service,
	}, nil
}

func (i *Index) Store() store.Store {
	return i.store
}

func (i *Index) Logger() *log.Logger {
	return i.log
}

// Initialize clears the table and rebuilds it from the tree below root.
func (i *Index) Initialize(ctx context.Context, root string) (*indexer.Stats, error) {
	if err := i.ensureOpen(); err != nil {
		return nil, err
	}
	if root == "" {
		return nil, ErrNoRoot
	}

	return i.indexer.Run(ctx, root)
}

// Handle applies a single notification to the table.
func (i *Index) Handle(ctx context.Context, n data.Notification) (*synchronizer.Delta, error) {
	if err := i.ensureOpen(); err != nil {
		return nil, err
	}

	return i.syncer.Handle(ctx, n)
}

// Watch keeps the table in step with changes below root until ctx is
// cancelled.
func (i *Index) Watch(ctx context.Context, root string) error {
	if err := i.ensureOpen(); err != nil {
		return err
	}
	if root == "" {
		return ErrNoRoot
	}

	driver := watch.NewDriver(i.service, i.syncer, watch.WithDriverLogger(i.log.Named("driver")))
	return driver.Run(ctx, root)
}

// Export writes the current table to sink and returns the number of rows.
func (i *Index) Export(ctx context.Context, sink export.Sink) (int, error) {
	if err := i.ensureOpen(); err != nil {
		return 0, err
	}

	return export.NewExporter(export.WithLogger(i.log.Named("export"))).Export(ctx, i.store, sink)
}

func (i *Index) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true

	var errs data.Errors
	errs.Add(i.store.Close(ctx))
	if i.options.Logger == nil {
		errs.Add(i.log.Close())
	}

	return errs.Errors()
}

func (i *Index) ensureOpen() error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return ErrIndexClosed
	}
	return nil
}
