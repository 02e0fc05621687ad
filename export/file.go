package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

type fileSink struct {
	path string
}

// FileSink writes the snapshot to path. The file is replaced atomically.
func FileSink(path string) Sink {
	return &fileSink{path: path}
}

func (s *fileSink) Write(ctx context.Context, r io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), s.path)
}

func (s *fileSink) String() string {
	return "file://" + s.path
}
