// Package export writes snapshots of the index as JSON lines.
package export

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/log"
	"github.com/mwantia/fsindex/store"
)

const ContentType = "application/x-ndjson"

// Sink receives one encoded snapshot.
type Sink interface {
	Write(ctx context.Context, r io.Reader, size int64) error
	String() string
}

type Exporter struct {
	log *log.Logger
}

type Option func(*Exporter)

func WithLogger(logger *log.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.log = logger
		}
	}
}

func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{
		log: log.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Export reads every row in one transaction and hands them to sink.
// It returns the number of exported rows.
func (e *Exporter) Export(ctx context.Context, s store.Store, sink Sink) (int, error) {
	rows, err := store.Snapshot(ctx, s)
	if err != nil {
		return 0, fmt.Errorf("failed to read index: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteRows(&buf, rows); err != nil {
		return 0, err
	}

	if err := sink.Write(ctx, &buf, int64(buf.Len())); err != nil {
		return 0, fmt.Errorf("failed to write export to %s: %w", sink, err)
	}

	e.log.Info("Exported %d rows from %s store to %s", len(rows), s.Name(), sink)
	return len(rows), nil
}

// WriteRows encodes rows as one JSON object per line.
func WriteRows(w io.Writer, rows []data.IndexRow) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to encode %s: %w", row, err)
		}
	}

	return nil
}

// ReadRows decodes rows written by WriteRows.
func ReadRows(r io.Reader) ([]data.IndexRow, error) {
	var rows []data.IndexRow

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var row data.IndexRow
		if err := json.Unmarshal(line, &row); err != nil {
			return rows, fmt.Errorf("failed to decode row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}

	return rows, scanner.Err()
}
