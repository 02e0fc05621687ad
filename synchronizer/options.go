package synchronizer

import (
	"os"

	"github.com/mwantia/fsindex/log"
)

type Option func(*Synchronizer)

func WithLogger(logger *log.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.log = logger
		}
	}
}

func WithDeletePolicy(policy DeletePolicy) Option {
	return func(s *Synchronizer) {
		s.policy = policy
	}
}

func WithObserver(observer Observer) Option {
	return func(s *Synchronizer) {
		s.observer = observer
	}
}

// WithExistsFunc replaces the filesystem check used when a file is moved
// out of a directory.
func WithExistsFunc(exists func(path string) bool) Option {
	return func(s *Synchronizer) {
		s.exists = exists
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
