package fsindex

import (
	"fmt"
	"time"

	"github.com/mwantia/fsindex/log"
	"github.com/mwantia/fsindex/metrics"
	"github.com/mwantia/fsindex/synchronizer"
	"github.com/mwantia/fsindex/watch"
)

type IndexOptions struct {
	LogLevel      log.LogLevel
	LogFile       string
	NoTerminalLog bool
	NoColorLog    bool
	JSONLog       bool
	Logger        *log.Logger

	DeletePolicy  synchronizer.DeletePolicy
	PairingWindow time.Duration
	WatchService  watch.Service

	Metrics *metrics.Collector
}

type IndexOption func(*IndexOptions) error

func newDefaultIndexOptions() *IndexOptions {
	return &IndexOptions{
		LogLevel:      log.Info,
		DeletePolicy:  synchronizer.PlaceholderAlways,
		PairingWindow: watch.DefaultPairingWindow,
	}
}

func WithLogLevel(logLevel log.LogLevel) IndexOption {
	return func(opts *IndexOptions) error {
		opts.LogLevel = logLevel
		return nil
	}
}

func WithoutTerminalLog() IndexOption {
	return func(opts *IndexOptions) error {
		opts.NoTerminalLog = true
		return nil
	}
}

func WithoutColorLog() IndexOption {
	return func(opts *IndexOptions) error {
		opts.NoColorLog = true
		return nil
	}
}

func WithJSONLog() IndexOption {
	return func(opts *IndexOptions) error {
		opts.JSONLog = true
		return nil
	}
}

func WithLogFile(logFile string) IndexOption {
	return func(opts *IndexOptions) error {
		opts.LogFile = logFile
		return nil
	}
}

// WithLogger replaces the logger built from the other log options.
func WithLogger(logger *log.Logger) IndexOption {
	return func(opts *IndexOptions) error {
		opts.Logger = logger
		return nil
	}
}

func WithDeletePolicy(policy synchronizer.DeletePolicy) IndexOption {
	return func(opts *IndexOptions) error {
		opts.DeletePolicy = policy
		return nil
	}
}

func WithPairingWindow(window time.Duration) IndexOption {
	return func(opts *IndexOptions) error {
		if window <= 0 {
			return fmt.Errorf("pairing window must be positive, got %s", window)
		}
		opts.PairingWindow = window
		return nil
	}
}

// WithWatchService replaces the fsnotify based watch service.
func WithWatchService(service watch.Service) IndexOption {
	return func(opts *IndexOptions) error {
		opts.WatchService = service
		return nil
	}
}

func WithMetrics(collector *metrics.Collector) IndexOption {
	return func(opts *IndexOptions) error {
		opts.Metrics = collector
		return nil
	}
}
