package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/store"
	"github.com/mwantia/fsindex/store/memory"
	"github.com/mwantia/fsindex/store/storetest"
	"github.com/mwantia/fsindex/synchronizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscribe(t *testing.T, root string) Subscription {
	t.Helper()

	sub, err := NewFsnotifyService().Subscribe(root)
	require.NoError(t, err, "Subscribe failed")
	t.Cleanup(func() { sub.Close() })

	return sub
}

// expect reads notifications until every wanted one has been seen in order.
// Unrelated notifications in between are ignored.
func expect(t *testing.T, sub Subscription, want ...data.Notification) {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for len(want) > 0 {
		select {
		case n, ok := <-sub.Notifications():
			require.True(t, ok, "subscription closed early")

			n.ID = ""
			if n == want[0] {
				want = want[1:]
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want[0])
		}
	}
}

func TestFsnotifyService_CreateAndDeleteFile(t *testing.T) {
	root := t.TempDir()
	sub := subscribe(t, root)

	file := filepath.Join(root, "x")
	require.NoError(t, os.WriteFile(file, []byte("content"), 0o644))
	expect(t, sub, data.Notification{Kind: data.Created, Path: file})

	require.NoError(t, os.Remove(file))
	expect(t, sub, data.Notification{Kind: data.Deleted, Path: file})
}

func TestFsnotifyService_NilLogger(t *testing.T) {
	root := t.TempDir()

	sub, err := NewFsnotifyService(WithServiceLogger(nil)).Subscribe(root)
	require.NoError(t, err, "Subscribe failed")
	t.Cleanup(func() { sub.Close() })

	file := filepath.Join(root, "x")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	expect(t, sub, data.Notification{Kind: data.Created, Path: file})
}

func TestFsnotifyService_NewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	sub := subscribe(t, root)

	dir := filepath.Join(root, "a")
	require.NoError(t, os.Mkdir(dir, 0o755))
	expect(t, sub, data.Notification{Kind: data.Created, Path: dir, IsDirectory: true})

	file := filepath.Join(dir, "x")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	expect(t, sub, data.Notification{Kind: data.Created, Path: file})

	require.NoError(t, os.Remove(file))
	require.NoError(t, os.Remove(dir))
	expect(t, sub,
		data.Notification{Kind: data.Deleted, Path: file},
		data.Notification{Kind: data.Deleted, Path: dir, IsDirectory: true},
	)
}

func TestFsnotifyService_RenameFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "old")
	dest := filepath.Join(root, "new")
	require.NoError(t, os.WriteFile(src, nil, 0o644))

	sub := subscribe(t, root)

	require.NoError(t, os.Rename(src, dest))
	expect(t, sub, data.Notification{Kind: data.Moved, Path: src, DestPath: dest})
}

func TestFsnotifyService_RenameDirectory(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a")
	dest := filepath.Join(root, "b")
	require.NoError(t, os.Mkdir(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), nil, 0o644))

	sub := subscribe(t, root)

	require.NoError(t, os.Rename(src, dest))
	expect(t, sub,
		data.Notification{Kind: data.Moved, Path: src, DestPath: dest, IsDirectory: true},
		data.Notification{Kind: data.Moved, Path: filepath.Join(src, "f"), DestPath: filepath.Join(dest, "f")},
	)

	// Events below the moved directory carry the new path.
	file := filepath.Join(dest, "g")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	expect(t, sub, data.Notification{Kind: data.Created, Path: file})
}

func TestFsnotifyService_MoveOutOfTree(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	file := filepath.Join(root, "x")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	sub := subscribe(t, root)

	require.NoError(t, os.Rename(file, filepath.Join(outside, "x")))
	expect(t, sub, data.Notification{Kind: data.Deleted, Path: file})
}

func TestFsnotifyService_MoveIntoTree(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	src := filepath.Join(outside, "d")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), nil, 0o644))

	sub := subscribe(t, root)

	dest := filepath.Join(root, "d")
	require.NoError(t, os.Rename(src, dest))
	expect(t, sub,
		data.Notification{Kind: data.Created, Path: dest, IsDirectory: true},
		data.Notification{Kind: data.Created, Path: filepath.Join(dest, "f")},
		data.Notification{Kind: data.Created, Path: filepath.Join(dest, "sub"), IsDirectory: true},
	)
}

func TestFsnotifyService_CloseStopsWorker(t *testing.T) {
	sub, err := NewFsnotifyService(WithPairingWindow(10 * time.Millisecond)).Subscribe(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, ok := <-sub.Notifications()
	assert.False(t, ok)
}

func TestFsnotifyService_MissingRoot(t *testing.T) {
	_, err := NewFsnotifyService().Subscribe(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestDriver_KeepsIndexInSync(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a")
	require.NoError(t, os.Mkdir(dir, 0o755))

	s := memory.NewMemoryStore()
	storetest.Seed(t, s, data.NewPlaceholderRow(dir))

	service := &subscribedService{Service: NewFsnotifyService(), subscribed: make(chan struct{})}
	d := NewDriver(service, synchronizer.New(s))
	done := runDriverCancelable(t, d, root)

	select {
	case <-service.subscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not subscribe")
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "x"), nil, 0o644))

	require.Eventually(t, func() bool {
		rows, err := store.Snapshot(t.Context(), s)
		return err == nil && len(rows) == 1 && rows[0].FileName() == "x"
	}, 5*time.Second, 20*time.Millisecond)

	done()
	assert.Equal(t, []string{"(a, " + dir + ", x)"}, storetest.Rows(t, s))
}

func runDriverCancelable(t *testing.T, d *Driver, root string) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(t.Context())
	result := runDriver(ctx, d, root)

	return func() {
		cancel()
		require.NoError(t, waitResult(t, result))
	}
}

type subscribedService struct {
	Service
	subscribed chan struct{}
}

func (s *subscribedService) Subscribe(root string) (Subscription, error) {
	sub, err := s.Service.Subscribe(root)
	close(s.subscribed)
	return sub, err
}
