package sqldb

import "fmt"

// Config holds database connection settings
type Config struct {
	Dialect Dialect

	// DSN is a file path for sqlite or a connection URL for postgres
	DSN string
}

// DefaultConfig returns a sqlite config writing to gamebank.db
func DefaultConfig() Config {
	return Config{
		Dialect: DialectSQLite,
		DSN:     "gamebank.db",
	}
}

// dataSource returns the DSN handed to the driver
func (c Config) dataSource() string {
	if c.Dialect != DialectSQLite {
		return c.DSN
	}
	// _txlock=immediate takes the write lock at BEGIN so a transaction never
	// upgrades from a read lock mid-way
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", c.DSN)
}
