package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"saldo/internal/core"
)

// Dialect selects the SQL flavour and locking strategy of a Store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// sqliteTimeLayout is fixed width so that lexical order in TEXT columns
// matches chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// rebind rewrites ? placeholders into the dialect's positional form.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg converts t into the value the dialect stores for timestamps.
func (d Dialect) timeArg(t time.Time) any {
	t = t.UTC().Truncate(core.TimestampPrecision)
	if d == DialectSQLite {
		return t.Format(sqliteTimeLayout)
	}
	return t
}

// lockUser serializes writers for one user inside tx. SQLite transactions
// are already exclusive writers because they begin IMMEDIATE.
func (d Dialect) lockUser(ctx context.Context, tx *sql.Tx, userID string) error {
	if d != DialectPostgres {
		return nil
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", userID); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// scanTime accepts what either driver hands back for a timestamp column.
type scanTime struct {
	t *time.Time
}

func (s scanTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*s.t = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	case nil:
		*s.t = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (s scanTime) parse(v string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			*s.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", v)
}
