package sqldb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

// Dialect selects the SQL flavour and driver a Storage talks to
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// driverName returns the database/sql driver registered for the dialect
func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite3"
}

func (d Dialect) gooseDialect() goose.Dialect {
	if d == DialectPostgres {
		return goose.DialectPostgres
	}
	return goose.DialectSQLite3
}

// migrationsDir is the directory under migrations/ holding the dialect's schema
func (d Dialect) migrationsDir() string {
	return "migrations/" + string(d)
}

// greatest names the two-argument maximum function
func (d Dialect) greatest() string {
	if d == DialectPostgres {
		return "GREATEST"
	}
	return "MAX"
}

// rebind rewrites ? placeholders into the dialect's bind syntax
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) validate() error {
	switch d {
	case DialectSQLite, DialectPostgres:
		return nil
	}
	return fmt.Errorf("unsupported sql dialect %q", d)
}
