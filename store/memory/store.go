package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/store"
	"github.com/tidwall/btree"
)

// MemoryStore keeps the index rows in an in-memory B-tree keyed by UUIDv7,
// so scans return rows in insertion order.
//
// Transactions work on a copy-on-write clone of the tree which replaces the
// live tree on commit. Only one transaction can be active at a time: Begin
// blocks until the previous one has committed or rolled back.
type MemoryStore struct {
	mu     sync.Mutex
	rows   *btree.Map[string, data.IndexRow]
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: btree.NewMap[string, data.IndexRow](0),
	}
}

// Name returns the identifier name defined for this store
func (*MemoryStore) Name() string {
	return "memory"
}

// Open is part of the lifecycle behaviour and gets called when opening this store.
func (ms *MemoryStore) Open(ctx context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.closed = false
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this store.
func (ms *MemoryStore) Close(ctx context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.closed = true
	ms.rows.Clear()
	return nil
}

// Len returns the number of committed rows.
func (ms *MemoryStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.rows.Len()
}

func (ms *MemoryStore) Begin(ctx context.Context) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.Lock()
	if ms.closed {
		ms.mu.Unlock()
		return nil, data.ErrStoreClosed
	}

	return &memoryTx{
		store: ms,
		rows:  ms.rows.Copy(),
	}, nil
}

type memoryTx struct {
	store *MemoryStore
	rows  *btree.Map[string, data.IndexRow]
	done  bool
}

func (tx *memoryTx) Insert(ctx context.Context, row data.IndexRow) error {
	if tx.done {
		return data.ErrTxDone
	}

	if row.File != nil {
		file := *row.File
		row.File = &file
	}

	tx.rows.Set(uuid.Must(uuid.NewV7()).String(), row)
	return nil
}

func (tx *memoryTx) Delete(ctx context.Context, pred *store.Predicate) (int64, error) {
	if tx.done {
		return 0, data.ErrTxDone
	}

	// The tree cannot be modified while scanning it
	var keys []string
	tx.rows.Scan(func(key string, row data.IndexRow) bool {
		if pred.Match(row) {
			keys = append(keys, key)
		}
		return true
	})

	for _, key := range keys {
		tx.rows.Delete(key)
	}

	return int64(len(keys)), nil
}

func (tx *memoryTx) Select(ctx context.Context, pred *store.Predicate) ([]data.IndexRow, error) {
	if tx.done {
		return nil, data.ErrTxDone
	}

	rows := make([]data.IndexRow, 0)
	tx.rows.Scan(func(_ string, row data.IndexRow) bool {
		if pred.Match(row) {
			rows = append(rows, row)
		}
		return true
	})

	return rows, nil
}

func (tx *memoryTx) Commit(ctx context.Context) error {
	if tx.done {
		return data.ErrTxDone
	}

	tx.done = true
	tx.store.rows = tx.rows
	tx.store.mu.Unlock()
	return nil
}

func (tx *memoryTx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}

	tx.done = true
	tx.store.mu.Unlock()
	return nil
}
