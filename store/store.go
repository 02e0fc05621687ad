package store

import (
	"context"

	"github.com/mwantia/fsindex/data"
)

// Store is the relational store holding the index table.
// Every read and write happens inside a transaction obtained from Begin.
type Store interface {
	// Name returns the identifier name defined for this store
	Name() string
	// Open is part of the lifecycle behaviour and verifies the connection and table.
	Open(ctx context.Context) error
	// Close is part of the lifecycle behaviour and releases every connection.
	Close(ctx context.Context) error

	// Begin acquires a connection and starts a transaction on it.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a single all-or-nothing unit of work against the index table.
// The connection is released by Commit or Rollback. Calling Rollback after a
// successful Commit is a no-op, so callers can always defer it.
type Tx interface {
	Insert(ctx context.Context, row data.IndexRow) error

	// Delete removes every row matching pred and returns how many were removed.
	Delete(ctx context.Context, pred *Predicate) (int64, error)

	Select(ctx context.Context, pred *Predicate) ([]data.IndexRow, error)

	Commit(ctx context.Context) error

	Rollback(ctx context.Context) error
}

// InTx runs fn inside a new transaction and commits it when fn succeeds.
// Any error from fn or the commit rolls the transaction back.
func InTx(ctx context.Context, s Store, fn func(tx Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Snapshot returns every row currently stored, read in its own transaction.
func Snapshot(ctx context.Context, s Store) ([]data.IndexRow, error) {
	var rows []data.IndexRow
	err := InTx(ctx, s, func(tx Tx) error {
		var err error
		rows, err = tx.Select(ctx, All())
		return err
	})

	return rows, err
}
