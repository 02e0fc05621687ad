package data

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ToAbsolutePath cleans path and resolves it against the working directory.
func ToAbsolutePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	return abs, nil
}

// Basename returns the last segment of path.
// The filesystem root has no name and yields an empty string.
func Basename(path string) string {
	path = filepath.Clean(path)
	if path == string(filepath.Separator) || path == "." {
		return ""
	}

	return filepath.Base(path)
}

// Split separates path into its parent directory and its own name.
func Split(path string) (parent, name string) {
	path = filepath.Clean(path)
	return filepath.Dir(path), Basename(path)
}

// HasPrefix reports whether path equals prefix or lies below it.
// Both paths should be cleaned before calling.
func HasPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}

	if prefix == string(filepath.Separator) {
		return strings.HasPrefix(path, prefix)
	}

	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}
