package fsindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/export"
	"github.com/mwantia/fsindex/log"
	"github.com/mwantia/fsindex/metrics"
	"github.com/mwantia/fsindex/store"
	"github.com/mwantia/fsindex/store/storetest"
	"github.com/mwantia/fsindex/synchronizer"
	"github.com/mwantia/fsindex/watch"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, opts ...IndexOption) *Index {
	t.Helper()

	s, err := OpenStore(t.Context(), ":memory:", store.Table{Name: store.DefaultTableName})
	require.NoError(t, err)

	idx, err := New(s, append([]IndexOption{WithLogger(log.Discard())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close(context.Background()) })

	return idx
}

func TestIndex_InitializeHandleExport(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "x"), nil, 0o644))

	collector := metrics.NewCollector()
	idx := newTestIndex(t, WithMetrics(collector))

	stats, err := idx.Initialize(t.Context(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Placeholders)

	_, err = idx.Handle(t.Context(), data.Notification{Kind: data.Created, Path: filepath.Join(root, "a", "y")})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"(" + filepath.Base(root) + ", " + root + ", x)",
		"(a, " + root + "/a, y)",
	}, storetest.Rows(t, idx.Store()))

	path := filepath.Join(t.TempDir(), "index.jsonl")
	n, err := idx.Export(t.Context(), export.FileSink(path))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := testutil.GatherAndCount(collector.Registry(),
		"fsindex_indexer_rows_total", "fsindex_synchronizer_notifications_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "file and placeholder series plus one notification series")
}

func TestIndex_DeletePolicy(t *testing.T) {
	idx := newTestIndex(t, WithDeletePolicy(synchronizer.PlaceholderWhenEmpty))
	storetest.Seed(t, idx.Store(),
		data.NewFileRow("/w/a", "x"),
		data.NewFileRow("/w/a", "y"),
	)

	_, err := idx.Handle(t.Context(), data.Notification{Kind: data.Deleted, Path: "/w/a/x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"(a, /w/a, y)"}, storetest.Rows(t, idx.Store()))
}

type staticSubscription struct {
	notifications chan data.Notification
	errors        chan error
}

func (s *staticSubscription) Notifications() <-chan data.Notification { return s.notifications }
func (s *staticSubscription) Errors() <-chan error { return s.errors }
func (s *staticSubscription) Close() error { return nil }

type staticService struct {
	sub *staticSubscription
}

func (s *staticService) Subscribe(string) (watch.Subscription, error) {
	return s.sub, nil
}

func TestIndex_Watch(t *testing.T) {
	root := t.TempDir()
	sub := &staticSubscription{
		notifications: make(chan data.Notification, 2),
		errors:        make(chan error),
	}
	sub.notifications <- data.Notification{Kind: data.Created, Path: filepath.Join(root, "d"), IsDirectory: true}

	idx := newTestIndex(t, WithWatchService(&staticService{sub: sub}))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- idx.Watch(ctx, root) }()

	require.Eventually(t, func() bool {
		return len(storetest.Rows(t, idx.Store())) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	assert.Equal(t, []string{"(d, " + root + "/d, <null>)"}, storetest.Rows(t, idx.Store()))
}

func TestIndex_Closed(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Close(t.Context()))
	require.NoError(t, idx.Close(t.Context()))

	_, err := idx.Initialize(t.Context(), t.TempDir())
	assert.ErrorIs(t, err, ErrIndexClosed)

	_, err = idx.Handle(t.Context(), data.Notification{Kind: data.Created, Path: "/x"})
	assert.ErrorIs(t, err, ErrIndexClosed)

	assert.ErrorIs(t, idx.Watch(t.Context(), t.TempDir()), ErrIndexClosed)
}

func TestIndex_NoRoot(t *testing.T) {
	idx := newTestIndex(t)

	_, err := idx.Initialize(t.Context(), "")
	assert.ErrorIs(t, err, ErrNoRoot)
	assert.ErrorIs(t, idx.Watch(t.Context(), ""), ErrNoRoot)
}

func TestIndex_InvalidOption(t *testing.T) {
	_, err := New(nil, WithPairingWindow(0))
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	table := store.Table{Name: store.DefaultTableName}

	tests := map[string]string{
		"memory": "memory://",
		"sqlite": "sqlite://" + filepath.Join(t.TempDir(), "index.db"),
	}

	for want, address := range tests {
		t.Run(want, func(t *testing.T) {
			s, err := OpenStore(t.Context(), address, table)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close(context.Background()) })

			assert.Equal(t, want, s.Name())
		})
	}

	_, err := OpenStore(t.Context(), "ftp://host/path", table)
	assert.ErrorIs(t, err, store.ErrUnknownProtocolAddress)

	_, err = OpenStore(t.Context(), "nonsense", table)
	assert.ErrorIs(t, err, store.ErrMalformedAddress)

	_, err = OpenStore(t.Context(), "memory://", store.Table{Name: "bad name"})
	assert.NoError(t, err, "memory store ignores the table")

	_, err = OpenStore(t.Context(), "sqlite://:memory:", store.Table{Name: "bad name"})
	assert.ErrorIs(t, err, store.ErrInvalidTable)
}
