// Package recorder keeps the in-memory audit log of balance changes.
package recorder

import (
	"cmp"
	"slices"

	"github.com/mcoot/gamebank/internal/model"
)

// DefaultHistoryLimit is used by HistoryFor when no positive limit is given
const DefaultHistoryLimit = 20

// Recorder is an append-only transaction log keyed by player, retaining at
// most a fixed number of entries per player.
//
// Recorder does no locking of its own. The owning store must hold the same
// lock it uses for balance changes so that a change and its entry are
// observed together.
type Recorder struct {
	retention int
	lastID    model.TransactionID
	byPlayer  map[model.PlayerID][]model.Transaction // ascending id
}

// New creates a Recorder keeping retention entries per player.
// A non-positive retention falls back to model.HistoryRetention.
func New(retention int) *Recorder {
	if retention <= 0 {
		retention = model.HistoryRetention
	}
	return &Recorder{
		retention: retention,
		byPlayer:  make(map[model.PlayerID][]model.Transaction),
	}
}

// Record appends a transaction with the next global id and prunes the
// player's history.
func (r *Recorder) Record(playerID model.PlayerID, delta model.Delta, balanceAfter int64, description string, at model.Stamp) model.Transaction {
	r.lastID++
	tx := model.Transaction{
		ID:           r.lastID,
		PlayerID:     playerID,
		Delta:        delta,
		BalanceAfter: balanceAfter,
		Description:  description,
		Timestamp:    at,
	}
	r.byPlayer[playerID] = append(r.byPlayer[playerID], tx)
	r.PruneFor(playerID)
	return tx
}

// PruneFor evicts the oldest entries of a player beyond the retention limit
func (r *Recorder) PruneFor(playerID model.PlayerID) {
	entries := r.byPlayer[playerID]
	excess := len(entries) - r.retention
	if excess <= 0 {
		return
	}
	// Copy so the evicted prefix can be collected
	r.byPlayer[playerID] = slices.Clone(entries[excess:])
}

// HistoryFor returns up to limit entries for a player, newest first
func (r *Recorder) HistoryFor(playerID model.PlayerID, limit int) []model.Transaction {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	entries := r.byPlayer[playerID]
	n := min(limit, len(entries))
	result := make([]model.Transaction, 0, n)
	for i := len(entries) - 1; i >= len(entries)-n; i-- {
		result = append(result, entries[i])
	}
	return result
}

// All returns every retained transaction in ascending id order
func (r *Recorder) All() []model.Transaction {
	return r.Since(0)
}

// Since returns transactions stamped strictly after stamp, ascending id
func (r *Recorder) Since(stamp model.Stamp) []model.Transaction {
	var result []model.Transaction
	for _, entries := range r.byPlayer {
		for _, tx := range entries {
			if tx.Timestamp > stamp {
				result = append(result, tx)
			}
		}
	}
	slices.SortFunc(result, func(a, b model.Transaction) int {
		return cmp.Compare(a.ID, b.ID)
	})
	if result == nil {
		result = []model.Transaction{}
	}
	return result
}

// HasSince reports whether any transaction is stamped strictly after stamp
func (r *Recorder) HasSince(stamp model.Stamp) bool {
	for _, entries := range r.byPlayer {
		// Entries are appended in stamp order, so the newest is last
		if n := len(entries); n > 0 && entries[n-1].Timestamp > stamp {
			return true
		}
	}
	return false
}

// DeleteFor removes every transaction of a player
func (r *Recorder) DeleteFor(playerID model.PlayerID) {
	delete(r.byPlayer, playerID)
}

// CountFor returns the number of retained transactions for a player
func (r *Recorder) CountFor(playerID model.PlayerID) int {
	return len(r.byPlayer[playerID])
}
