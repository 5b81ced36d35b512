// Package source reads the input table of function snippets.
//
// A Source yields record.Raw rows in load order. Columns are addressed by name
// so that the same dataset can be exported to any supported format:
//   - parquet (the original dataset format)
//   - csv with a header row
//   - jsonl, one object per line
//   - sqlite and postgres tables
//
// Null values are preserved as nil fields; it is the caller's job to exclude
// incomplete rows (see record.Select).
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rshade/graphbatch/internal/logging"
	"github.com/rshade/graphbatch/internal/record"
)

// Supported formats.
const (
	FormatParquet  = "parquet"
	FormatCSV      = "csv"
	FormatJSONL    = "jsonl"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
)

// Sentinel errors for structured error handling.
var (
	// ErrSourceLoad wraps every failure to read the record source.
	ErrSourceLoad = errors.New("loading record source")

	// ErrUnknownFormat indicates the format could not be determined or is unsupported.
	ErrUnknownFormat = errors.New("unknown source format")

	// ErrMissingColumn indicates a required column is absent from the source.
	ErrMissingColumn = errors.New("required column missing")

	// ErrInvalidValue indicates a non-null value that cannot be decoded.
	ErrInvalidValue = errors.New("invalid column value")
)

// Source yields raw rows from a tabular store.
type Source interface {
	Load(ctx context.Context) ([]record.Raw, error)
	Close() error
}

// Columns names the source columns that hold each record field.
type Columns struct {
	Content string
	Group   string
	ID      string
}

// DefaultColumns returns the column names used by the original dataset.
func DefaultColumns() Columns {
	return Columns{Content: "before", Group: "dataset", ID: "id"}
}

func (c Columns) names() []string {
	return []string{c.Content, c.Group, c.ID}
}

// Options selects and configures a Source.
type Options struct {
	// Format is one of the Format* constants. Empty means infer from Path or DSN.
	Format string

	// Path is the file to read (parquet, csv, jsonl, sqlite).
	Path string

	// DSN is the database connection string (postgres, optionally sqlite).
	DSN string

	// Table is the table to read for database formats.
	Table string

	Columns Columns
}

// InferFormat guesses the format from the DSN scheme or the path extension.
func InferFormat(opts Options) (string, error) {
	if opts.Format != "" {
		switch opts.Format {
		case FormatParquet, FormatCSV, FormatJSONL, FormatSQLite, FormatPostgres:
			return opts.Format, nil
		default:
			return "", fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
		}
	}

	dsn := strings.ToLower(opts.DSN)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return FormatPostgres, nil
	}

	switch strings.ToLower(filepath.Ext(opts.Path)) {
	case ".pq", ".parquet":
		return FormatParquet, nil
	case ".csv":
		return FormatCSV, nil
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	}

	return "", fmt.Errorf("%w: cannot infer from path %q", ErrUnknownFormat, opts.Path)
}

// Open returns the Source for opts.
func Open(opts Options) (Source, error) {
	if opts.Columns == (Columns{}) {
		opts.Columns = DefaultColumns()
	}

	format, err := InferFormat(opts)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatParquet:
		return &parquetSource{path: opts.Path, columns: opts.Columns}, nil
	case FormatCSV:
		return &csvSource{path: opts.Path, columns: opts.Columns}, nil
	case FormatJSONL:
		return &jsonlSource{path: opts.Path, columns: opts.Columns}, nil
	case FormatSQLite:
		dsn := opts.DSN
		if dsn == "" {
			dsn = opts.Path
		}
		return openSQL(sqliteDriver, dsn, opts.Table, opts.Columns)
	case FormatPostgres:
		return openSQL(postgresDriver, opts.DSN, opts.Table, opts.Columns)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Load opens the source described by opts, reads every row and closes it.
// Every error is wrapped with ErrSourceLoad.
func Load(ctx context.Context, opts Options) ([]record.Raw, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	src, err := Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceLoad, err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			log.Warn().Ctx(ctx).Str("component", "source").Err(closeErr).Msg("closing record source")
		}
	}()

	raws, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceLoad, err)
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "source").
		Str("path", opts.Path).
		Int("rows", len(raws)).
		Dur("elapsed", time.Since(start)).
		Msg("record source loaded")

	return raws, nil
}
