package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver

	"github.com/rshade/graphbatch/internal/record"
)

const (
	sqliteDriver   = "sqlite3"
	postgresDriver = "pgx"
)

// sqlSource reads one table through database/sql.
type sqlSource struct {
	db      *sql.DB
	table   string
	columns Columns
}

func openSQL(driver, dsn, table string, columns Columns) (Source, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%s source requires a dsn or path", driver)
	}
	if table == "" {
		return nil, errors.New("database source requires a table name")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	return &sqlSource{db: db, table: table, columns: columns}, nil
}

// query builds the SELECT for the configured table and columns. Identifiers
// are double-quoted, which both sqlite and postgres accept.
func (s *sqlSource) query() string {
	parts := strings.Split(s.table, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return fmt.Sprintf("SELECT %s, %s, %s FROM %s",
		quoteIdent(s.columns.Content),
		quoteIdent(s.columns.Group),
		quoteIdent(s.columns.ID),
		strings.Join(parts, "."),
	)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *sqlSource) Load(ctx context.Context) ([]record.Raw, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("querying table %s: %w", s.table, err)
	}
	defer rows.Close()

	var raws []record.Raw
	for rows.Next() {
		var (
			content, group sql.NullString
			id             any
		)
		if scanErr := rows.Scan(&content, &group, &id); scanErr != nil {
			return nil, fmt.Errorf("scanning table %s: %w", s.table, scanErr)
		}

		var raw record.Raw
		if content.Valid {
			raw.Content = &content.String
		}
		if group.Valid {
			raw.Group = &group.String
		}
		parsed, null, idErr := sqlID(id)
		if idErr != nil {
			return nil, fmt.Errorf("table %s row %d: %w", s.table, len(raws)+1, idErr)
		}
		if !null {
			raw.ID = &parsed
		}
		raws = append(raws, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading table %s: %w", s.table, err)
	}

	return raws, nil
}

// sqlID decodes the driver value of an id column.
func sqlID(v any) (int64, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, true, nil
	case int64:
		return x, false, nil
	case int32:
		return int64(x), false, nil
	case float64:
		if math.IsNaN(x) {
			return 0, true, nil
		}
		id, err := floatID(x)
		return id, false, err
	case []byte:
		return sqlTextID(string(x))
	case string:
		return sqlTextID(x)
	default:
		return 0, false, fmt.Errorf("%w: unsupported id type %T", ErrInvalidValue, v)
	}
}

func sqlTextID(s string) (int64, bool, error) {
	if isNaNString(s) || strings.TrimSpace(s) == "" {
		return 0, true, nil
	}
	id, err := parseID(s)
	return id, false, err
}

func (s *sqlSource) Close() error {
	return s.db.Close()
}
