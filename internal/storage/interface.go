package storage

import (
	"context"
	"errors"

	"github.com/mcoot/gamebank/internal/model"
)

// ErrConflict is returned when a backend gives up retrying a contended write
var ErrConflict = errors.New("storage conflict: too many concurrent writers")

// Changes is an atomic view of everything that changed after a stamp
type Changes struct {
	Players      []model.Player      // lastUpdated > since, ascending id
	Transactions []model.Transaction // timestamp > since, ascending id
	Tombstones   []model.Tombstone   // deletedAt > since, ascending player id
	Watermark    model.Stamp         // reserved in the same atomic step
}

// PlayerUpdate names the fields UpdatePlayer changes. Nil fields are kept.
type PlayerUpdate struct {
	Name    *string
	Balance *int64
}

// Validate rejects an update that changes nothing or sets a negative balance
func (u PlayerUpdate) Validate() error {
	if u.Name == nil && u.Balance == nil {
		return model.ErrEmptyUpdate
	}
	if u.Balance != nil && *u.Balance < 0 {
		return model.ErrNegativeBalance
	}
	return nil
}

// Storage is the ledger store contract. Every balance change and its audit
// transaction are applied as one atomic step, and balances never go negative.
//
// Business failures are reported as model.ErrPlayerNotFound and
// model.ErrInsufficientFunds; any other error is a backend failure.
type Storage interface {
	// Player operations
	ListPlayers(ctx context.Context) ([]model.Player, error)
	GetPlayer(ctx context.Context, id model.PlayerID) (model.Player, error)
	CreatePlayer(ctx context.Context, name string, initialBalance int64) (model.Player, model.Transaction, error)
	// UpdatePlayer applies a rename and/or a balance overwrite in one step.
	// The transaction is nil unless the balance was set.
	UpdatePlayer(ctx context.Context, id model.PlayerID, update PlayerUpdate) (model.Player, *model.Transaction, error)
	DeletePlayer(ctx context.Context, id model.PlayerID) error

	// Balance operations. AdjustBalance rejects a zero amount with
	// model.ErrInvalidAmount.
	AdjustBalance(ctx context.Context, id model.PlayerID, amount int64, description string) (model.Player, model.Transaction, error)
	SetBalance(ctx context.Context, id model.PlayerID, balance int64, description string) (model.Player, model.Transaction, error)

	// Transaction history
	History(ctx context.Context, id model.PlayerID, limit int) ([]model.Transaction, error)
	Transactions(ctx context.Context) ([]model.Transaction, error)

	// Sync support
	ChangesSince(ctx context.Context, since model.Stamp) (Changes, error)
	HasChangesSince(ctx context.Context, since model.Stamp) (bool, model.Stamp, error)

	Close() error
}
