package storetest

import (
	"sort"
	"testing"

	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory creates a fresh, opened and empty store for a single test.
type Factory func(t *testing.T) store.Store

// Rows returns every committed row as sorted "(dir, full, file)" strings.
func Rows(t *testing.T, s store.Store) []string {
	t.Helper()

	rows, err := store.Snapshot(t.Context(), s)
	require.NoError(t, err, "Snapshot failed")

	return Strings(rows)
}

// Strings renders rows sorted, which makes them easy to compare.
func Strings(rows []data.IndexRow) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.String())
	}
	sort.Strings(out)
	return out
}

// Seed inserts rows in one committed transaction.
func Seed(t *testing.T, s store.Store, rows ...data.IndexRow) {
	t.Helper()

	err := store.InTx(t.Context(), s, func(tx store.Tx) error {
		for _, row := range rows {
			if err := tx.Insert(t.Context(), row); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err, "Seed failed")
}

// RunConformance verifies the transactional contract every adapter shares.
func RunConformance(t *testing.T, factory Factory) {
	t.Run("InsertSelect", func(t *testing.T) {
		s := factory(t)
		Seed(t, s,
			data.NewFileRow("/a/x", "f.txt"),
			data.NewPlaceholderRow("/b/y"),
		)

		assert.Equal(t, []string{
			"(x, /a/x, f.txt)",
			"(y, /b/y, <null>)",
		}, Rows(t, s))

		err := store.InTx(t.Context(), s, func(tx store.Tx) error {
			rows, err := tx.Select(t.Context(), store.PlaceholderOf("y"))
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.True(t, rows[0].IsPlaceholder())
			assert.Equal(t, "/b/y", rows[0].FullDirectory)

			rows, err = tx.Select(t.Context(), store.ByDirectory("missing"))
			require.NoError(t, err)
			assert.Empty(t, rows)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("DeleteByBasename", func(t *testing.T) {
		s := factory(t)
		Seed(t, s,
			data.NewFileRow("/a/x", "f.txt"),
			data.NewFileRow("/b/x", "g.txt"),
			data.NewPlaceholderRow("/c/y"),
		)

		err := store.InTx(t.Context(), s, func(tx store.Tx) error {
			n, err := tx.Delete(t.Context(), store.ByDirectory("x"))
			require.NoError(t, err)
			assert.EqualValues(t, 2, n)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"(y, /c/y, <null>)"}, Rows(t, s))
	})

	t.Run("DeletePlaceholderOnly", func(t *testing.T) {
		s := factory(t)
		Seed(t, s,
			data.NewFileRow("/a/x", "f.txt"),
			data.NewPlaceholderRow("/a/x"),
		)

		err := store.InTx(t.Context(), s, func(tx store.Tx) error {
			n, err := tx.Delete(t.Context(), store.PlaceholderOf("x"))
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"(x, /a/x, f.txt)"}, Rows(t, s))
	})

	t.Run("ReadYourWrites", func(t *testing.T) {
		s := factory(t)

		err := store.InTx(t.Context(), s, func(tx store.Tx) error {
			require.NoError(t, tx.Insert(t.Context(), data.NewFileRow("/a/x", "f.txt")))
			rows, err := tx.Select(t.Context(), store.ByDirectory("x"))
			require.NoError(t, err)
			assert.Len(t, rows, 1)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("Rollback", func(t *testing.T) {
		s := factory(t)
		Seed(t, s, data.NewFileRow("/a/x", "keep.txt"))

		tx, err := s.Begin(t.Context())
		require.NoError(t, err)
		require.NoError(t, tx.Insert(t.Context(), data.NewFileRow("/a/x", "f.txt")))
		_, err = tx.Delete(t.Context(), store.FileIn("x", "keep.txt"))
		require.NoError(t, err)
		require.NoError(t, tx.Rollback(t.Context()))

		assert.Equal(t, []string{"(x, /a/x, keep.txt)"}, Rows(t, s))
	})

	t.Run("RollbackAfterCommit", func(t *testing.T) {
		s := factory(t)

		tx, err := s.Begin(t.Context())
		require.NoError(t, err)
		require.NoError(t, tx.Insert(t.Context(), data.NewFileRow("/a/x", "f.txt")))
		require.NoError(t, tx.Commit(t.Context()))
		assert.NoError(t, tx.Rollback(t.Context()))

		assert.ErrorIs(t, tx.Insert(t.Context(), data.NewPlaceholderRow("/a")), data.ErrTxDone)
		assert.Equal(t, []string{"(x, /a/x, f.txt)"}, Rows(t, s))
	})

	t.Run("ClearAll", func(t *testing.T) {
		s := factory(t)
		Seed(t, s,
			data.NewFileRow("/a/x", "f.txt"),
			data.NewPlaceholderRow("/b"),
		)

		err := store.InTx(t.Context(), s, func(tx store.Tx) error {
			_, err := tx.Delete(t.Context(), store.All())
			return err
		})
		require.NoError(t, err)
		assert.Empty(t, Rows(t, s))
	})
}
