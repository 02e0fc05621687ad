// Package storetest provides helpers shared by the store adapter tests and
// by the components built on top of a store.
package storetest

import (
	"context"
	"errors"
	"sync"

	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/store"
)

var ErrInjected = errors.New("storetest: injected failure")

type Operation string

const (
	OpInsert Operation = "insert"
	OpDelete Operation = "delete"
	OpSelect Operation = "select"
	OpCommit Operation = "commit"
)

// FaultyStore wraps a store and fails the n-th call of one operation,
// counted across all transactions since the last Arm.
type FaultyStore struct {
	store.Store

	mu    sync.Mutex
	op    Operation
	after int
	calls int
}

func NewFaultyStore(inner store.Store) *FaultyStore {
	return &FaultyStore{Store: inner}
}

// Arm makes the n-th (1-based) upcoming call of op return ErrInjected.
func (fs *FaultyStore) Arm(op Operation, n int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.op, fs.after, fs.calls = op, n, 0
}

// Disarm stops injecting failures.
func (fs *FaultyStore) Disarm() {
	fs.Arm("", 0)
}

func (fs *FaultyStore) check(op Operation) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.op != op {
		return nil
	}

	fs.calls++
	if fs.calls == fs.after {
		return ErrInjected
	}
	return nil
}

func (fs *FaultyStore) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := fs.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	return &faultyTx{Tx: tx, store: fs}, nil
}

type faultyTx struct {
	store.Tx
	store *FaultyStore
}

func (tx *faultyTx) Insert(ctx context.Context, row data.IndexRow) error {
	if err := tx.store.check(OpInsert); err != nil {
		return err
	}
	return tx.Tx.Insert(ctx, row)
}

func (tx *faultyTx) Delete(ctx context.Context, pred *store.Predicate) (int64, error) {
	if err := tx.store.check(OpDelete); err != nil {
		return 0, err
	}
	return tx.Tx.Delete(ctx, pred)
}

func (tx *faultyTx) Select(ctx context.Context, pred *store.Predicate) ([]data.IndexRow, error) {
	if err := tx.store.check(OpSelect); err != nil {
		return nil, err
	}
	return tx.Tx.Select(ctx, pred)
}

func (tx *faultyTx) Commit(ctx context.Context) error {
	if err := tx.store.check(OpCommit); err != nil {
		return err
	}
	return tx.Tx.Commit(ctx)
}
