// Package syncplan computes what a client must fetch to catch up with the ledger.
package syncplan

import (
	"context"
	"log/slog"

	"github.com/mcoot/gamebank/internal/model"
	"github.com/mcoot/gamebank/internal/storage"
)

// Request describes what a client already holds
type Request struct {
	// Since is the ServerTimestamp of the client's previous sync, or 0 if
	// it has never synced
	Since model.Stamp

	// KnownPlayerIDs, when non-empty, limits transactions and deletions to
	// these players. Changed players are always returned so the client can
	// learn about new ones.
	KnownPlayerIDs []model.PlayerID
}

// Delta is the set of changes a client must apply
type Delta struct {
	Players          []model.Player
	Transactions     []model.Transaction
	DeletedPlayerIDs []model.PlayerID

	// ServerTimestamp is the watermark to send as Since next time
	ServerTimestamp model.Stamp

	// Full is set for a bootstrap, where the client should replace its state
	Full bool
}

// Planner computes sync deltas from a storage backend
type Planner struct {
	storage storage.Storage
	logger  *slog.Logger
}

// New creates a new Planner
func New(storage storage.Storage, logger *slog.Logger) *Planner {
	return &Planner{
		storage: storage,
		logger:  logger.With(slog.String("component", "sync-planner")),
	}
}

// ComputeDelta returns everything changed strictly after req.Since
func (p *Planner) ComputeDelta(ctx context.Context, req Request) (Delta, error) {
	if req.Since < 0 {
		return Delta{}, model.ErrInvalidStamp
	}

	changes, err := p.storage.ChangesSince(ctx, req.Since)
	if err != nil {
		return Delta{}, err
	}

	known := make(map[model.PlayerID]bool, len(req.KnownPlayerIDs))
	for _, id := range req.KnownPlayerIDs {
		known[id] = true
	}
	wanted := func(id model.PlayerID) bool {
		return len(known) == 0 || known[id]
	}

	delta := Delta{
		Players:          changes.Players,
		Transactions:     make([]model.Transaction, 0, len(changes.Transactions)),
		DeletedPlayerIDs: []model.PlayerID{},
		ServerTimestamp:  changes.Watermark,
		Full:             req.Since == 0,
	}
	for _, tx := range changes.Transactions {
		if wanted(tx.PlayerID) {
			delta.Transactions = append(delta.Transactions, tx)
		}
	}
	// A bootstrapping client holds nothing that could have been deleted
	if !delta.Full {
		for _, tombstone := range changes.Tombstones {
			if wanted(tombstone.PlayerID) {
				delta.DeletedPlayerIDs = append(delta.DeletedPlayerIDs, tombstone.PlayerID)
			}
		}
	}

	p.logger.Debug("computed sync delta",
		slog.Int64("since", int64(req.Since)),
		slog.Int64("server_timestamp", int64(delta.ServerTimestamp)),
		slog.Bool("full", delta.Full),
		slog.Int("players", len(delta.Players)),
		slog.Int("transactions", len(delta.Transactions)),
		slog.Int("deleted", len(delta.DeletedPlayerIDs)),
	)
	return delta, nil
}

// HasChangesSince reports whether anything changed after since, along with
// a watermark to poll from next
func (p *Planner) HasChangesSince(ctx context.Context, since model.Stamp) (bool, model.Stamp, error) {
	if since < 0 {
		return false, 0, model.ErrInvalidStamp
	}
	return p.storage.HasChangesSince(ctx, since)
}
