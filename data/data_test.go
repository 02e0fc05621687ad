package data

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasenameAndSplit(t *testing.T) {
	assert.Equal(t, "x", Basename("/a/x"))
	assert.Equal(t, "x", Basename("/a/x/"))
	assert.Equal(t, "", Basename("/"))

	parent, name := Split("/a/x/file.txt")
	assert.Equal(t, "/a/x", parent)
	assert.Equal(t, "file.txt", name)

	parent, name = Split("/file.txt")
	assert.Equal(t, "/", parent)
	assert.Equal(t, "file.txt", name)
	assert.Equal(t, "", Basename(parent), "files in the root have an empty directory name")
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix("/a/b", "/a"))
	assert.True(t, HasPrefix("/a", "/a"))
	assert.True(t, HasPrefix("/a", "/"))
	assert.False(t, HasPrefix("/ab", "/a"))
}

func TestToAbsolutePath(t *testing.T) {
	_, err := ToAbsolutePath("  ")
	assert.ErrorIs(t, err, ErrInvalidPath)

	abs, err := ToAbsolutePath("/tmp/../var/")
	require.NoError(t, err)
	assert.Equal(t, "/var", abs)
}

func TestIndexRow(t *testing.T) {
	row := NewFileRow("/a/x", "f.txt")
	assert.Equal(t, "x", row.Directory)
	assert.Equal(t, "/a/x", row.FullDirectory)
	assert.False(t, row.IsPlaceholder())
	assert.Equal(t, "f.txt", row.FileName())
	assert.Equal(t, "(x, /a/x, f.txt)", row.String())

	placeholder := NewPlaceholderRow("/a/x")
	assert.True(t, placeholder.IsPlaceholder())
	assert.Equal(t, "", placeholder.FileName())
	assert.Equal(t, "(x, /a/x, <null>)", placeholder.String())
}

func TestNotification_Validate(t *testing.T) {
	assert.NoError(t, Notification{Kind: Created, Path: "/a"}.Validate())
	assert.NoError(t, Notification{Kind: Moved, Path: "/a", DestPath: "/b"}.Validate())

	for _, n := range []Notification{
		{Kind: Created},
		{Kind: Moved, Path: "/a"},
		{Kind: NotificationKind(9), Path: "/a"},
	} {
		assert.ErrorIs(t, n.Validate(), ErrInvalidNotification, n.String())
	}
}

func TestErrors(t *testing.T) {
	var errs Errors
	assert.NoError(t, errs.Errors())

	first, second := errors.New("first"), errors.New("second")
	errs.Add(first)
	errs.Add(nil)
	errs.Add(second)

	err := errs.Errors()
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)

	errs.Clear()
	assert.NoError(t, errs.Errors())
}
