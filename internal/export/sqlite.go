package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/geonames-cli/internal/geonames"
)

// SQLiteSink writes records into a SQLite table using modernc.org/sqlite.
type SQLiteSink struct {
	db    *sql.DB
	table string
}

// NewSQLiteSink opens the SQLite database at dsn and configures WAL mode.
func NewSQLiteSink(dsn, table string) (*SQLiteSink, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteSink{db: db, table: table}, nil
}

func (s *SQLiteSink) createSQL() string {
	cols := Columns()
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", s.table, strings.Join(defs, ",\n\t"))
}

func (s *SQLiteSink) insertSQL() string {
	cols := Columns()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.table, strings.Join(cols, ", "), marks)
}

// Write replaces the table contents with records inside one transaction.
func (s *SQLiteSink) Write(ctx context.Context, records []geonames.Record) (int64, error) {
	if _, err := s.db.ExecContext(ctx, s.createSQL()); err != nil {
		return 0, eris.Wrap(err, "sqlite: create table")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+s.table); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear table")
	}

	stmt, err := tx.PrepareContext(ctx, s.insertSQL())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for i := range records {
		args, err := row(&records[i])
		if err != nil {
			return n, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return n, eris.Wrapf(err, "sqlite: insert record %d", i)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}

	zap.L().Info("records exported", zap.String("driver", DriverSQLite), zap.String("table", s.table), zap.Int64("rows", n))
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
