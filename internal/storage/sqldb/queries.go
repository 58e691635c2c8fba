package sqldb

import "fmt"

// Queries are written with ? placeholders and rebound per dialect at Open
const (
	listPlayers = `SELECT id, name, balance, created_at, last_updated FROM players ORDER BY id`

	getPlayer = `SELECT id, name, balance, created_at, last_updated FROM players WHERE id = ?`

	playerExists = `SELECT EXISTS (SELECT 1 FROM players WHERE id = ?)`

	insertPlayer = `INSERT INTO players (name, balance, created_at, last_updated)
VALUES (?, ?, ?, ?)
RETURNING id`

	// A NULL argument keeps the column as it is
	updatePlayer = `UPDATE players SET name = COALESCE(?, name), balance = COALESCE(?, balance), last_updated = ?
WHERE id = ?
RETURNING id, name, balance, created_at, last_updated`

	deletePlayer = `DELETE FROM players WHERE id = ?`

	insertTombstone = `INSERT INTO tombstones (player_id, deleted_at) VALUES (?, ?)`

	// The guard keeps the balance non-negative inside the UPDATE itself
	adjustBalance = `UPDATE players SET balance = balance + ?, last_updated = ?
WHERE id = ? AND balance + ? >= 0
RETURNING id, name, balance, created_at, last_updated`

	priorBalance = `SELECT balance FROM players WHERE id = ?`

	setBalance = `UPDATE players SET balance = ?, last_updated = ? WHERE id = ?
RETURNING id, name, balance, created_at, last_updated`

	insertTransaction = `INSERT INTO transactions (player_id, kind, amount, balance_after, description, stamped_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

	// Drops everything older than the newest HistoryRetention entries.
	// The subquery is NULL while the player has fewer entries.
	pruneTransactions = `DELETE FROM transactions WHERE player_id = ? AND id <= (
    SELECT id FROM transactions WHERE player_id = ? ORDER BY id DESC LIMIT 1 OFFSET ?
)`

	history = `SELECT id, player_id, kind, amount, balance_after, description, stamped_at
FROM transactions WHERE player_id = ? ORDER BY id DESC LIMIT ?`

	allTransactions = `SELECT id, player_id, kind, amount, balance_after, description, stamped_at
FROM transactions ORDER BY id`

	playersSince = `SELECT id, name, balance, created_at, last_updated FROM players
WHERE last_updated > ? ORDER BY id`

	transactionsSince = `SELECT id, player_id, kind, amount, balance_after, description, stamped_at
FROM transactions WHERE stamped_at > ? ORDER BY id`

	tombstonesSince = `SELECT player_id, deleted_at FROM tombstones WHERE deleted_at > ? ORDER BY player_id`

	anyChangesSince = `SELECT EXISTS (SELECT 1 FROM players WHERE last_updated > ?)
    OR EXISTS (SELECT 1 FROM tombstones WHERE deleted_at > ?)`
)

// clockQueries advance the single ledger_clock row. Updating the row locks
// it, which serializes every writer and sync reader behind it.
type clockQueries struct {
	next      string
	watermark string
}

func newClockQueries(d Dialect) clockQueries {
	return clockQueries{
		next: d.rebind(fmt.Sprintf(
			`UPDATE ledger_clock SET stamp = %s(stamp + 1, ?) WHERE id = 1 RETURNING stamp`, d.greatest())),
		watermark: d.rebind(fmt.Sprintf(
			`UPDATE ledger_clock SET stamp = %s(stamp, ?) WHERE id = 1 RETURNING stamp`, d.greatest())),
	}
}
