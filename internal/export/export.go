// Package export loads serialized records into a relational table.
package export

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geonames-cli/internal/geonames"
)

// Sink receives the full record set of one run. Each Write replaces the
// table's previous contents.
type Sink interface {
	Write(ctx context.Context, records []geonames.Record) (int64, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Columns returns the table columns: the schema fields followed by "surplus".
func Columns() []string {
	cols := make([]string, 0, geonames.FieldCount+1)
	cols = append(cols, geonames.FieldNames[:]...)
	return append(cols, geonames.SurplusKey)
}

// ValidateDriver reports whether driver is empty or a known driver name.
func ValidateDriver(driver string) error {
	switch driver {
	case "", DriverSQLite, DriverPostgres:
		return nil
	default:
		return eris.Errorf("unknown export driver: %q (valid: sqlite, postgres)", driver)
	}
}

// Open returns the sink for driver. An empty driver disables export and
// returns a nil Sink.
func Open(ctx context.Context, driver, dsn, table string) (Sink, error) {
	if err := ValidateDriver(driver); err != nil {
		return nil, err
	}
	if driver == "" {
		return nil, nil
	}
	if dsn == "" {
		return nil, eris.Errorf("export: %s driver needs a dsn", driver)
	}

	switch driver {
	case DriverSQLite:
		sink, err := NewSQLiteSink(dsn, table)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, eris.Wrap(err, "export: create postgres pool")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, eris.Wrap(err, "export: ping postgres")
		}
		sink, err := NewPostgresSink(pool, table)
		if err != nil {
			pool.Close()
			return nil, err
		}
		sink.closeFn = pool.Close
		return sink, nil
	}
}

func checkTable(table string) error {
	if !identRe.MatchString(table) {
		return eris.Errorf("export: invalid table name %q", table)
	}
	return nil
}

// row flattens a record into column order. Missing fields become NULL and
// surplus values are stored as a JSON array.
func row(rec *geonames.Record) ([]any, error) {
	out := make([]any, 0, geonames.FieldCount+1)
	for _, v := range rec.Values() {
		if v == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, *v)
	}

	if len(rec.Surplus) == 0 {
		return append(out, nil), nil
	}
	b, err := json.Marshal(rec.Surplus)
	if err != nil {
		return nil, eris.Wrap(err, "export: encode surplus")
	}
	return append(out, string(b)), nil
}
