package watch

import (
	"time"

	"github.com/mwantia/fsindex/log"
)

const DefaultPairingWindow = 50 * time.Millisecond

type ServiceOption func(*FsnotifyService)

func WithServiceLogger(logger *log.Logger) ServiceOption {
	return func(s *FsnotifyService) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithPairingWindow sets how long a rename waits for its matching create
// before it is reported as a deletion.
func WithPairingWindow(window time.Duration) ServiceOption {
	return func(s *FsnotifyService) {
		if window > 0 {
			s.window = window
		}
	}
}

type DriverOption func(*Driver)

func WithDriverLogger(logger *log.Logger) DriverOption {
	return func(d *Driver) {
		if logger != nil {
			d.log = logger
		}
	}
}
