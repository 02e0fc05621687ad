package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mwantia/fsindex/export"
	"github.com/mwantia/fsindex/store"
	"github.com/mwantia/fsindex/store/sqlite"
	"github.com/mwantia/fsindex/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))

	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func buildTree(t *testing.T) string {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "x"), nil, 0o644))
	return root
}

func openSQLite(t *testing.T, path string) store.Store {
	s, err := sqlite.NewSQLiteStore(path, store.Table{Name: store.DefaultTableName})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestRootCommand_Flags(t *testing.T) {
	cmd := NewRootCommand()

	local := map[string]string{
		"initial": "i",
		"watch":   "w",
	}
	for name, short := range local {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, short, flag.Shorthand)
	}

	persistent := map[string]string{
		"directory":         "r",
		"database":          "d",
		"database-user":     "u",
		"database-password": "p",
		"database-url":      "l",
		"database-port":     "o",
		"database-table":    "t",
		"database-schema":   "s",
		"config":            "c",
	}
	for name, short := range persistent {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, short, flag.Shorthand)
	}

	sub, _, err := cmd.Find([]string{"export"})
	require.NoError(t, err)
	assert.Equal(t, "export", sub.Name())
}

func TestRootCommand_Initialize(t *testing.T) {
	root := buildTree(t)
	db := filepath.Join(t.TempDir(), "index.db")

	_, err := execute(t, "-i", "-r", root, "--store", "sqlite://"+db)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"(" + filepath.Base(root) + ", " + root + ", x)",
		"(empty, " + root + "/empty, <null>)",
	}, storetest.Rows(t, openSQLite(t, db)))
}

func TestRootCommand_ConfigFile(t *testing.T) {
	root := buildTree(t)
	db := filepath.Join(t.TempDir(), "index.db")

	cfg := filepath.Join(t.TempDir(), "fsindex.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(
		"root: /does/not/exist\n"+
			"store:\n  address: sqlite://"+db+"\n  table: tree\n"), 0o644))

	// The directory flag wins over the config file
	_, err := execute(t, "-i", "-c", cfg, "-r", root)
	require.NoError(t, err)

	s, err := sqlite.NewSQLiteStore(db, store.Table{Name: "tree"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })

	assert.Len(t, storetest.Rows(t, s), 2)
}

func TestRootCommand_Errors(t *testing.T) {
	root := buildTree(t)

	_, err := execute(t, "-i", "--store", "memory://")
	assert.ErrorIs(t, err, ErrNoDirectory)

	_, err = execute(t, "-i", "-r", root)
	assert.Error(t, err, "no store configured")

	_, err = execute(t, "-w", "-r", root, "--store", "memory://", "--delete-policy", "sometimes")
	assert.Error(t, err)

	_, err = execute(t, "-i", "-r", root, "--store", "memory://", "-t", "bad table")
	assert.ErrorIs(t, err, store.ErrInvalidTable)
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
}

func TestExportCommand(t *testing.T) {
	root := buildTree(t)
	db := filepath.Join(t.TempDir(), "index.db")
	file := filepath.Join(t.TempDir(), "index.jsonl")

	_, err := execute(t, "-i", "-r", root, "--store", "sqlite://"+db)
	require.NoError(t, err)

	out, err := execute(t, "export", "--store", "sqlite://"+db, "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 rows")

	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()

	rows, err := export.ReadRows(f)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = execute(t, "export", "--store", "sqlite://"+db)
	assert.ErrorIs(t, err, ErrNoExportTarget)
}
