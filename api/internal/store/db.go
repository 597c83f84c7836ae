package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "modernc.org/sqlite"
)

var ErrNotFound = sql.ErrNoRows

// ErrDisabled: neither DATABASE_URL nor SQLITE_PATH is set.
var ErrDisabled = errors.New("meal journal is disabled")

type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Open connects to Postgres when dsn is set, otherwise to SQLite at sqlitePath.
func Open(ctx context.Context, dsn, sqlitePath string) (*sql.DB, Dialect, error) {
	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)
	switch {
	case strings.TrimSpace(dsn) != "":
		dialect = Postgres
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, 0, fmt.Errorf("sql.Open: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(1 * time.Hour)
	case strings.TrimSpace(sqlitePath) != "":
		dialect = SQLite
		db, err = sql.Open("sqlite", sqlitePath)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to open database: %w", err)
		}
		// one connection: keeps :memory: databases shared and writes serialized
		db.SetMaxOpenConns(1)
	default:
		return nil, 0, ErrDisabled
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("db.Ping: %w", err)
	}
	return db, dialect, nil
}

// rebind turns ? placeholders into $n for Postgres.
func rebind(d Dialect, q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
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
