package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mwantia/fsindex/export"
	"github.com/spf13/cobra"
)

var ErrNoExportTarget = errors.New("export needs --file or --bucket")

type ExportOptions struct {
	*RootOptions

	File      string
	Endpoint  string
	Region    string
	Bucket    string
	Key       string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current index as JSON lines",
		Long: `Write every row of the index as one JSON object per line, either to a
local file or to an object in an S3 compatible bucket.

Example:
  fsindex export --store sqlite://./index.db --file index.jsonl
  fsindex export -c fsindex.yaml --bucket snapshots --key index.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "write the export to this file")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "S3 endpoint (host:port)")
	cmd.Flags().StringVar(&opts.Region, "region", "", "S3 region")
	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "S3 bucket")
	cmd.Flags().StringVar(&opts.Key, "key", "fsindex.jsonl", "S3 object key")
	cmd.Flags().StringVar(&opts.AccessKey, "access-key", "", "S3 access key")
	cmd.Flags().StringVar(&opts.SecretKey, "secret-key", "", "S3 secret key")
	cmd.Flags().BoolVar(&opts.UseSSL, "ssl", false, "use TLS for the S3 endpoint")

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions) error {
	cfg, err := opts.resolve(cmd)
	if err != nil {
		return err
	}

	changed := cmd.Flags().Changed
	if changed("endpoint") {
		cfg.Export.Endpoint = opts.Endpoint
	}
	if changed("region") {
		cfg.Export.Region = opts.Region
	}
	if changed("bucket") {
		cfg.Export.Bucket = opts.Bucket
	}
	if changed("access-key") {
		cfg.Export.AccessKey = opts.AccessKey
	}
	if changed("secret-key") {
		cfg.Export.SecretKey = opts.SecretKey
	}
	if changed("ssl") {
		cfg.Export.UseSSL = opts.UseSSL
	}

	var sink export.Sink
	switch {
	case opts.File != "":
		sink = export.FileSink(opts.File)

	case cfg.Export.Bucket != "":
		client, err := export.NewS3Client(export.S3Options{
			Endpoint:  cfg.Export.Endpoint,
			Region:    cfg.Export.Region,
			AccessKey: cfg.Export.AccessKey,
			SecretKey: cfg.Export.SecretKey,
			UseSSL:    cfg.Export.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		sink = export.S3Sink(client, cfg.Export.Bucket, opts.Key)

	default:
		return ErrNoExportTarget
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Close()

	idx, err := openIndex(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer idx.Close(context.Background())

	n, err := idx.Export(ctx, sink)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows to %s\n", n, sink)
	return nil
}
