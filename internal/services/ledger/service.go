// Package ledger validates client requests and applies them to a storage backend.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mcoot/gamebank/internal/events"
	"github.com/mcoot/gamebank/internal/model"
	"github.com/mcoot/gamebank/internal/recorder"
	"github.com/mcoot/gamebank/internal/services/syncplan"
	"github.com/mcoot/gamebank/internal/storage"
)

// Config holds ledger rules that vary per deployment
type Config struct {
	// InitialBalance is given to every new player
	InitialBalance int64

	MaxNameLength       int
	DefaultHistoryLimit int

	// MaxAmount caps a single add, subtract or set
	MaxAmount int64
}

// DefaultConfig returns the standard rules
func DefaultConfig() Config {
	return Config{
		InitialBalance:      1500,
		MaxNameLength:       100,
		DefaultHistoryLimit: recorder.DefaultHistoryLimit,
		MaxAmount:           1_000_000_000,
	}
}

// Publisher is told about every committed change
type Publisher interface {
	Publish(event events.Event)
}

// Service is the entry point for all ledger operations
type Service struct {
	storage   storage.Storage
	planner   *syncplan.Planner
	publisher Publisher
	cfg       Config
	logger    *slog.Logger
}

// New creates a new ledger Service
func New(store storage.Storage, planner *syncplan.Planner, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		storage: store,
		planner: planner,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "ledger-service")),
	}
}

// SetPublisher routes change notifications to p. A nil publisher disables them.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// Config returns the rules the service enforces
func (s *Service) Config() Config {
	return s.cfg
}

// Player operations

// ListPlayers returns every player in id order
func (s *Service) ListPlayers(ctx context.Context) ([]model.Player, error) {
	return s.storage.ListPlayers(ctx)
}

// GetPlayer retrieves a player by id
func (s *Service) GetPlayer(ctx context.Context, id model.PlayerID) (model.Player, error) {
	return s.storage.GetPlayer(ctx, id)
}

// CreatePlayer adds a player with the configured initial balance
func (s *Service) CreatePlayer(ctx context.Context, name string) (model.Player, error) {
	name, err := s.validateName(name)
	if err != nil {
		return model.Player{}, err
	}

	player, _, err := s.storage.CreatePlayer(ctx, name, s.cfg.InitialBalance)
	if err != nil {
		s.logFailure(ctx, "create player", 0, err)
		return model.Player{}, err
	}

	s.logger.Info("player created",
		slog.Int64("player_id", int64(player.ID)),
		slog.String("name", player.Name),
		slog.Int64("balance", player.Balance),
	)
	s.publish(events.TypePlayerCreated, player)
	return player, nil
}

// UpdatePlayer renames a player and/or sets their balance. At least one of
// name and balance must be given. Both are validated, then applied together
// or not at all.
func (s *Service) UpdatePlayer(ctx context.Context, id model.PlayerID, name *string, balance *int64) (model.Player, error) {
	update := storage.PlayerUpdate{Balance: balance}
	if name != nil {
		trimmed, err := s.validateName(*name)
		if err != nil {
			return model.Player{}, err
		}
		update.Name = &trimmed
	}
	if balance != nil {
		if err := s.validateBalance(*balance); err != nil {
			return model.Player{}, err
		}
	}
	if err := update.Validate(); err != nil {
		return model.Player{}, err
	}

	player, tx, err := s.storage.UpdatePlayer(ctx, id, update)
	if err != nil {
		s.logFailure(ctx, "update player", id, err)
		return model.Player{}, err
	}

	attrs := []any{
		slog.Int64("player_id", int64(id)),
		slog.String("name", player.Name),
		slog.Int64("balance", player.Balance),
	}
	if tx != nil {
		attrs = append(attrs, slog.Int64("transaction_id", int64(tx.ID)))
	}
	s.logger.Info("player updated", attrs...)

	if name != nil {
		s.publish(events.TypePlayerUpdated, player)
	} else {
		s.publish(events.TypeBalanceChanged, player)
	}
	return player, nil
}

// DeletePlayer removes a player and their history
func (s *Service) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	if err := s.storage.DeletePlayer(ctx, id); err != nil {
		s.logFailure(ctx, "delete player", id, err)
		return err
	}
	s.logger.Info("player deleted", slog.Int64("player_id", int64(id)))
	if s.publisher != nil {
		s.publisher.Publish(events.Event{Type: events.TypePlayerDeleted, PlayerID: id})
	}
	return nil
}

// Balance operations

// AddMoney credits a strictly positive amount
func (s *Service) AddMoney(ctx context.Context, id model.PlayerID, amount int64, description string) (model.Player, model.Transaction, error) {
	if err := s.validateAmount(amount); err != nil {
		return model.Player{}, model.Transaction{}, err
	}
	return s.adjust(ctx, id, amount, description)
}

// SubtractMoney debits a strictly positive amount, failing with
// model.ErrInsufficientFunds rather than going below zero
func (s *Service) SubtractMoney(ctx context.Context, id model.PlayerID, amount int64, description string) (model.Player, model.Transaction, error) {
	if err := s.validateAmount(amount); err != nil {
		return model.Player{}, model.Transaction{}, err
	}
	return s.adjust(ctx, id, -amount, description)
}

func (s *Service) adjust(ctx context.Context, id model.PlayerID, amount int64, description string) (model.Player, model.Transaction, error) {
	player, tx, err := s.storage.AdjustBalance(ctx, id, amount, strings.TrimSpace(description))
	if err != nil {
		s.logFailure(ctx, "adjust balance", id, err)
		return model.Player{}, model.Transaction{}, err
	}

	s.logger.Info("balance adjusted",
		slog.Int64("player_id", int64(id)),
		slog.String("delta", tx.Delta.String()),
		slog.Int64("balance", player.Balance),
		slog.Int64("transaction_id", int64(tx.ID)),
	)
	s.publish(events.TypeBalanceChanged, player)
	return player, tx, nil
}

// SetBalance replaces a player's balance with a non-negative amount
func (s *Service) SetBalance(ctx context.Context, id model.PlayerID, balance int64, description string) (model.Player, model.Transaction, error) {
	if err := s.validateBalance(balance); err != nil {
		return model.Player{}, model.Transaction{}, err
	}

	player, tx, err := s.storage.SetBalance(ctx, id, balance, strings.TrimSpace(description))
	if err != nil {
		s.logFailure(ctx, "set balance", id, err)
		return model.Player{}, model.Transaction{}, err
	}

	s.logger.Info("balance set",
		slog.Int64("player_id", int64(id)),
		slog.Int64("balance", player.Balance),
		slog.Int64("transaction_id", int64(tx.ID)),
	)
	s.publish(events.TypeBalanceChanged, player)
	return player, tx, nil
}

// History returns a player's most recent transactions, newest first.
// A non-positive limit uses the configured default.
func (s *Service) History(ctx context.Context, id model.PlayerID, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultHistoryLimit
	}
	limit = min(limit, model.HistoryRetention)
	return s.storage.History(ctx, id, limit)
}

// Sync support

// Sync returns the changes a client needs since its last sync
func (s *Service) Sync(ctx context.Context, req syncplan.Request) (syncplan.Delta, error) {
	return s.planner.ComputeDelta(ctx, req)
}

// HasChangesSince reports whether a sync from since would return anything
func (s *Service) HasChangesSince(ctx context.Context, since model.Stamp) (bool, model.Stamp, error) {
	return s.planner.HasChangesSince(ctx, since)
}

// Validation

func (s *Service) validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", model.ErrEmptyName
	}
	if utf8.RuneCountInString(name) > s.cfg.MaxNameLength {
		return "", model.ErrNameTooLong
	}
	return name, nil
}

func (s *Service) validateAmount(amount int64) error {
	if amount <= 0 {
		return model.ErrInvalidAmount
	}
	if amount > s.cfg.MaxAmount {
		return model.ErrAmountTooLarge
	}
	return nil
}

func (s *Service) validateBalance(balance int64) error {
	if balance < 0 {
		return model.ErrNegativeBalance
	}
	if balance > s.cfg.MaxAmount {
		return model.ErrAmountTooLarge
	}
	return nil
}

func (s *Service) publish(eventType string, player model.Player) {
	if s.publisher == nil {
		return
	}
	balance := player.Balance
	s.publisher.Publish(events.Event{
		Type:     eventType,
		PlayerID: player.ID,
		Balance:  &balance,
		Stamp:    player.LastUpdated,
	})
}

// logFailure records a storage error. Expected domain outcomes log at debug.
func (s *Service) logFailure(ctx context.Context, op string, id model.PlayerID, err error) {
	level := slog.LevelError
	if isDomainError(err) {
		level = slog.LevelDebug
	}
	s.logger.Log(ctx, level, "ledger operation failed",
		slog.String("op", op),
		slog.Int64("player_id", int64(id)),
		slog.String("error", err.Error()),
	)
}

func isDomainError(err error) bool {
	return errors.Is(err, model.ErrPlayerNotFound) ||
		errors.Is(err, model.ErrInsufficientFunds) ||
		errors.Is(err, model.ErrValidation)
}
