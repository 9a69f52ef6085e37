package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geonames-cli/internal/geonames"
)

// Pool is the subset of pgxpool.Pool used by PostgresSink.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresSink bulk-loads records into Postgres with the COPY protocol.
type PostgresSink struct {
	pool    Pool
	table   string
	closeFn func()
}

// NewPostgresSink creates a sink writing to table through pool.
func NewPostgresSink(pool Pool, table string) (*PostgresSink, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return &PostgresSink{pool: pool, table: table}, nil
}

func (s *PostgresSink) createSQL() string {
	cols := Columns()
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pgx.Identifier{s.table}.Sanitize(), strings.Join(defs, ", "))
}

// Write truncates the table and copies records into it. Both happen in one
// transaction, so a failed copy leaves the previous rows in place.
func (s *PostgresSink) Write(ctx context.Context, records []geonames.Record) (int64, error) {
	rows := make([][]any, 0, len(records))
	for i := range records {
		r, err := row(&records[i])
		if err != nil {
			return 0, err
		}
		rows = append(rows, r)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, s.createSQL()); err != nil {
		return 0, eris.Wrap(err, "postgres: create table")
	}
	if _, err := tx.Exec(ctx, "TRUNCATE "+pgx.Identifier{s.table}.Sanitize()); err != nil {
		return 0, eris.Wrap(err, "postgres: truncate table")
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, pgx.Identifier{s.table}, Columns(), pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: COPY INTO %s", s.table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit")
	}

	zap.L().Info("records exported", zap.String("driver", DriverPostgres), zap.String("table", s.table), zap.Int64("rows", n))
	return n, nil
}

// Close releases the connection pool when the sink owns it.
func (s *PostgresSink) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
