// Package cli implements the fsindex command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mwantia/fsindex"
	"github.com/mwantia/fsindex/config"
	"github.com/mwantia/fsindex/log"
	"github.com/mwantia/fsindex/metrics"
	"github.com/mwantia/fsindex/synchronizer"
	"github.com/spf13/cobra"
)

var ErrNoDirectory = errors.New("no directory given, use --directory or set 'root' in the config")

type IndexOptions struct {
	*RootOptions

	Initialize   bool
	Watch        bool
	DeletePolicy string
	PairWindow   time.Duration
	MetricsAddr  string
}

// NewRootCommand creates the fsindex command. Without a subcommand it
// initializes and/or watches the configured directory.
func NewRootCommand() *cobra.Command {
	rootOpts := &RootOptions{}
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fsindex",
		Short: "Keep a database index of a directory tree",
		Long: `fsindex stores one row per file and one placeholder row per empty
directory of a tree in a relational table, and keeps the table current
while watching the tree for changes.

Example:
  fsindex -i -w -r /srv/data -l db.local -d files -u indexer -p secret -t tree
  fsindex --initial --directory ./data --store sqlite://./index.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Initialize && !opts.Watch {
				return cmd.Help()
			}
			return runIndex(cmd, opts)
		},
	}

	rootOpts.addFlags(cmd.PersistentFlags())

	cmd.Flags().BoolVarP(&opts.Initialize, "initial", "i", false, "rebuild the index from the directory")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "watch the directory and keep the index current")
	cmd.Flags().StringVar(&opts.DeletePolicy, "delete-policy", "", "placeholder policy on file deletion (always|when-empty)")
	cmd.Flags().DurationVar(&opts.PairWindow, "pair-window", 0, "how long a rename waits for its destination")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	cmd.AddCommand(NewExportCommand(rootOpts))

	return cmd
}

func runIndex(cmd *cobra.Command, opts *IndexOptions) error {
	cfg, err := opts.resolve(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("delete-policy") {
		cfg.Watch.DeletePolicy = opts.DeletePolicy
	}
	if cmd.Flags().Changed("pair-window") {
		cfg.Watch.PairWindow = opts.PairWindow
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Address = opts.MetricsAddr
	}

	if cfg.Root == "" {
		return ErrNoDirectory
	}

	policy, err := synchronizer.ParseDeletePolicy(cfg.Watch.DeletePolicy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	idx, err := openIndex(ctx, cfg, logger,
		fsindex.WithDeletePolicy(policy),
		fsindex.WithPairingWindow(cfg.Watch.PairWindow),
		withMetrics(ctx, cfg.Metrics.Address, logger),
	)
	if err != nil {
		logger.Close()
		return err
	}
	defer func() {
		if err := idx.Close(context.Background()); err != nil {
			logger.Error("Failed to close index: %v", err)
		}
		logger.Close()
	}()

	if opts.Initialize {
		if _, err := idx.Initialize(ctx, cfg.Root); err != nil {
			return fmt.Errorf("failed to initialize index: %w", err)
		}
	}

	if opts.Watch {
		if err := idx.Watch(ctx, cfg.Root); err != nil {
			return fmt.Errorf("failed to watch: %w", err)
		}
	}

	return nil
}

// openIndex opens the configured store and wraps it in an index.
func openIndex(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...fsindex.IndexOption) (*fsindex.Index, error) {
	address, err := cfg.Store.ConnString()
	if err != nil {
		return nil, err
	}
	table, err := cfg.Store.TableRef()
	if err != nil {
		return nil, err
	}

	s, err := fsindex.OpenStore(ctx, address, table)
	if err != nil {
		return nil, err
	}
	logger.Debug("Opened %s store with table '%s'", s.Name(), table)

	idx, err := fsindex.New(s, append([]fsindex.IndexOption{fsindex.WithLogger(logger)}, opts...)...)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}

	return idx, nil
}

// withMetrics starts the metrics endpoint when addr is set. The server stops
// together with ctx.
func withMetrics(ctx context.Context, addr string, logger *log.Logger) fsindex.IndexOption {
	return func(opts *fsindex.IndexOptions) error {
		if addr == "" {
			return nil
		}

		collector := metrics.NewCollector()
		go func() {
			if err := collector.Serve(ctx, addr, logger.Named("metrics")); err != nil {
				logger.Error("Metrics server failed: %v", err)
			}
		}()

		return fsindex.WithMetrics(collector)(opts)
	}
}
