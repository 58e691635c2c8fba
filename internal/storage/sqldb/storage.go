// Package sqldb stores the ledger in SQLite or PostgreSQL through database/sql.
package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/mcoot/gamebank/internal/dependencies/clock"
	"github.com/mcoot/gamebank/internal/model"
	"github.com/mcoot/gamebank/internal/recorder"
	"github.com/mcoot/gamebank/internal/storage"
)

//go:embed migrations/*/*.sql
var embedMigrations embed.FS

// Storage is a SQL-backed implementation of the storage interface.
// Each write runs in one database transaction that starts by advancing the
// ledger_clock row.
type Storage struct {
	db      *sql.DB
	dialect Dialect
	clock   clock.Clock
	stamps  clockQueries
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Open connects to the database and applies pending migrations
func Open(ctx context.Context, cfg Config, clk clock.Clock, logger *slog.Logger) (*Storage, error) {
	if err := cfg.Dialect.validate(); err != nil {
		return nil, err
	}

	logger.Info("connecting to database", "dialect", cfg.Dialect)
	db, err := sql.Open(cfg.Dialect.driverName(), cfg.dataSource())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Dialect == DialectSQLite {
		// SQLite has a single writer; share one connection
		db.SetMaxOpenConns(1)
		if err := optimizeSQLite(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to optimize SQLite: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(ctx, db, cfg.Dialect, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database connection established", "dialect", cfg.Dialect)
	return &Storage{
		db:      db,
		dialect: cfg.Dialect,
		clock:   clk,
		stamps:  newClockQueries(cfg.Dialect),
	}, nil
}

func migrate(ctx context.Context, db *sql.DB, dialect Dialect, logger *slog.Logger) error {
	migrations, err := fs.Sub(embedMigrations, dialect.migrationsDir())
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(dialect.gooseDialect(), db, migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, result := range results {
		logger.Info("applied migration", "version", result.Source.Version, "duration", result.Duration)
	}
	return nil
}

func optimizeSQLite(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"temp_store", "MEMORY"},
	}

	for _, pragma := range pragmas {
		query := fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value)
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to set PRAGMA %s: %w", pragma.name, err)
		}
		logger.Debug("SQLite pragma set", "pragma", pragma.name, "value", pragma.value)
	}
	return nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) q(query string) string {
	return s.dialect.rebind(query)
}

// inTx runs fn in a database transaction, committing if it returns nil
func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Storage) nextStamp(ctx context.Context, tx *sql.Tx) (model.Stamp, error) {
	var stamp int64
	now := int64(model.StampOf(s.clock.Now()))
	if err := tx.QueryRowContext(ctx, s.stamps.next, now).Scan(&stamp); err != nil {
		return 0, fmt.Errorf("failed to advance ledger clock: %w", err)
	}
	return model.Stamp(stamp), nil
}

func (s *Storage) watermark(ctx context.Context, tx *sql.Tx) (model.Stamp, error) {
	var stamp int64
	now := int64(model.StampOf(s.clock.Now()))
	if err := tx.QueryRowContext(ctx, s.stamps.watermark, now).Scan(&stamp); err != nil {
		return 0, fmt.Errorf("failed to reserve watermark: %w", err)
	}
	return model.Stamp(stamp), nil
}

// Player operations

func (s *Storage) ListPlayers(ctx context.Context) ([]model.Player, error) {
	rows, err := s.db.QueryContext(ctx, s.q(listPlayers))
	if err != nil {
		return nil, err
	}
	return scanPlayers(rows)
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (model.Player, error) {
	return scanPlayer(s.db.QueryRowContext(ctx, s.q(getPlayer), int64(id)))
}

func (s *Storage) CreatePlayer(ctx context.Context, name string, initialBalance int64) (model.Player, model.Transaction, error) {
	if initialBalance < 0 {
		return model.Player{}, model.Transaction{}, model.ErrNegativeBalance
	}

	var (
		player model.Player
		entry  model.Transaction
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stamp, err := s.nextStamp(ctx, tx)
		if err != nil {
			return err
		}

		var id int64
		err = tx.QueryRowContext(ctx, s.q(insertPlayer), name, initialBalance, int64(stamp), int64(stamp)).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to insert player: %w", err)
		}
		player = model.Player{
			ID:          model.PlayerID(id),
			Name:        name,
			Balance:     initialBalance,
			LastUpdated: stamp,
			CreatedAt:   stamp,
		}

		entry, err = s.record(ctx, tx, player.ID, model.SetTo(initialBalance), initialBalance, model.DescriptionCreated, stamp)
		return err
	})
	if err != nil {
		return model.Player{}, model.Transaction{}, err
	}
	return player, entry, nil
}

func (s *Storage) UpdatePlayer(ctx context.Context, id model.PlayerID, update storage.PlayerUpdate) (model.Player, *model.Transaction, error) {
	if err := update.Validate(); err != nil {
		return model.Player{}, nil, err
	}

	var (
		player model.Player
		entry  *model.Transaction
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stamp, err := s.nextStamp(ctx, tx)
		if err != nil {
			return err
		}

		var prior int64
		if err := tx.QueryRowContext(ctx, s.q(priorBalance), int64(id)).Scan(&prior); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.ErrPlayerNotFound
			}
			return err
		}

		var (
			name    sql.NullString
			balance sql.NullInt64
		)
		if update.Name != nil {
			name = sql.NullString{String: *update.Name, Valid: true}
		}
		if update.Balance != nil {
			balance = sql.NullInt64{Int64: *update.Balance, Valid: true}
		}
		player, err = scanPlayer(tx.QueryRowContext(ctx, s.q(updatePlayer), name, balance, int64(stamp), int64(id)))
		if err != nil {
			return err
		}

		if update.Balance == nil {
			return nil
		}
		recorded, err := s.record(ctx, tx, id, model.SetTo(player.Balance), player.Balance, model.DescribeSet("", prior), stamp)
		if err != nil {
			return err
		}
		entry = &recorded
		return nil
	})
	if err != nil {
		return model.Player{}, nil, err
	}
	return player, entry, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stamp, err := s.nextStamp(ctx, tx)
		if err != nil {
			return err
		}

		// Transactions go with the player through ON DELETE CASCADE
		result, err := tx.ExecContext(ctx, s.q(deletePlayer), int64(id))
		if err != nil {
			return fmt.Errorf("failed to delete player: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return model.ErrPlayerNotFound
		}

		if _, err := tx.ExecContext(ctx, s.q(insertTombstone), int64(id), int64(stamp)); err != nil {
			return fmt.Errorf("failed to record tombstone: %w", err)
		}
		return nil
	})
}

// Balance operations

func (s *Storage) AdjustBalance(ctx context.Context, id model.PlayerID, amount int64, description string) (model.Player, model.Transaction, error) {
	if amount == 0 {
		return model.Player{}, model.Transaction{}, model.ErrInvalidAmount
	}

	var (
		player model.Player
		entry  model.Transaction
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stamp, err := s.nextStamp(ctx, tx)
		if err != nil {
			return err
		}

		player, err = scanPlayer(tx.QueryRowContext(ctx, s.q(adjustBalance), amount, int64(stamp), int64(id), amount))
		if errors.Is(err, model.ErrPlayerNotFound) {
			// The guard matched nothing: tell a missing player from a short balance
			var exists bool
			if err := tx.QueryRowContext(ctx, s.q(playerExists), int64(id)).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return model.ErrInsufficientFunds
			}
			return model.ErrPlayerNotFound
		}
		if err != nil {
			return err
		}

		delta := model.DeltaFor(amount)
		entry, err = s.record(ctx, tx, id, delta, player.Balance, model.DescribeAdjustment(description, delta), stamp)
		return err
	})
	if err != nil {
		return model.Player{}, model.Transaction{}, err
	}
	return player, entry, nil
}

func (s *Storage) SetBalance(ctx context.Context, id model.PlayerID, balance int64, description string) (model.Player, model.Transaction, error) {
	if balance < 0 {
		return model.Player{}, model.Transaction{}, model.ErrNegativeBalance
	}

	var (
		player model.Player
		entry  model.Transaction
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stamp, err := s.nextStamp(ctx, tx)
		if err != nil {
			return err
		}

		var prior int64
		if err := tx.QueryRowContext(ctx, s.q(priorBalance), int64(id)).Scan(&prior); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.ErrPlayerNotFound
			}
			return err
		}

		player, err = scanPlayer(tx.QueryRowContext(ctx, s.q(setBalance), balance, int64(stamp), int64(id)))
		if err != nil {
			return err
		}

		entry, err = s.record(ctx, tx, id, model.SetTo(balance), balance, model.DescribeSet(description, prior), stamp)
		return err
	})
	if err != nil {
		return model.Player{}, model.Transaction{}, err
	}
	return player, entry, nil
}

// record inserts a transaction and prunes the player's history
func (s *Storage) record(
	ctx context.Context,
	tx *sql.Tx,
	playerID model.PlayerID,
	delta model.Delta,
	balanceAfter int64,
	description string,
	stamp model.Stamp,
) (model.Transaction, error) {
	var id int64
	err := tx.QueryRowContext(ctx, s.q(insertTransaction),
		int64(playerID), string(delta.Kind), delta.Amount, balanceAfter, description, int64(stamp),
	).Scan(&id)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to record transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.q(pruneTransactions), int64(playerID), int64(playerID), model.HistoryRetention); err != nil {
		return model.Transaction{}, fmt.Errorf("failed to prune history: %w", err)
	}

	return model.Transaction{
		ID:           model.TransactionID(id),
		PlayerID:     playerID,
		Delta:        delta,
		BalanceAfter: balanceAfter,
		Description:  description,
		Timestamp:    stamp,
	}, nil
}

// Transaction history

func (s *Storage) History(ctx context.Context, id model.PlayerID, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = recorder.DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, s.q(history), int64(id), limit)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func (s *Storage) Transactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.q(allTransactions))
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

// Sync support

func (s *Storage) ChangesSince(ctx context.Context, since model.Stamp) (storage.Changes, error) {
	var changes storage.Changes
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		watermark, err := s.watermark(ctx, tx)
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, s.q(playersSince), int64(since))
		if err != nil {
			return err
		}
		players, err := scanPlayers(rows)
		if err != nil {
			return err
		}

		rows, err = tx.QueryContext(ctx, s.q(transactionsSince), int64(since))
		if err != nil {
			return err
		}
		transactions, err := scanTransactions(rows)
		if err != nil {
			return err
		}

		rows, err = tx.QueryContext(ctx, s.q(tombstonesSince), int64(since))
		if err != nil {
			return err
		}
		tombstones, err := scanTombstones(rows)
		if err != nil {
			return err
		}

		changes = storage.Changes{
			Players:      players,
			Transactions: transactions,
			Tombstones:   tombstones,
			Watermark:    watermark,
		}
		return nil
	})
	if err != nil {
		return storage.Changes{}, err
	}
	return changes, nil
}

func (s *Storage) HasChangesSince(ctx context.Context, since model.Stamp) (bool, model.Stamp, error) {
	var (
		has       bool
		watermark model.Stamp
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		watermark, err = s.watermark(ctx, tx)
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, s.q(anyChangesSince), int64(since), int64(since)).Scan(&has)
	})
	if err != nil {
		return false, 0, err
	}
	return has, watermark, nil
}

// Row scanning

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (model.Player, error) {
	var (
		player                     model.Player
		id, createdAt, lastUpdated int64
	)
	if err := row.Scan(&id, &player.Name, &player.Balance, &createdAt, &lastUpdated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Player{}, model.ErrPlayerNotFound
		}
		return model.Player{}, err
	}
	player.ID = model.PlayerID(id)
	player.CreatedAt = model.Stamp(createdAt)
	player.LastUpdated = model.Stamp(lastUpdated)
	return player, nil
}

func scanPlayers(rows *sql.Rows) ([]model.Player, error) {
	defer rows.Close()
	players := []model.Player{}
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, player)
	}
	return players, rows.Err()
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	defer rows.Close()
	transactions := []model.Transaction{}
	for rows.Next() {
		var (
			entry               model.Transaction
			id, playerID, stamp int64
			kind                string
		)
		err := rows.Scan(&id, &playerID, &kind, &entry.Delta.Amount, &entry.BalanceAfter, &entry.Description, &stamp)
		if err != nil {
			return nil, err
		}
		entry.ID = model.TransactionID(id)
		entry.PlayerID = model.PlayerID(playerID)
		entry.Delta.Kind = model.DeltaKind(kind)
		entry.Timestamp = model.Stamp(stamp)
		transactions = append(transactions, entry)
	}
	return transactions, rows.Err()
}

func scanTombstones(rows *sql.Rows) ([]model.Tombstone, error) {
	defer rows.Close()
	tombstones := []model.Tombstone{}
	for rows.Next() {
		var playerID, deletedAt int64
		if err := rows.Scan(&playerID, &deletedAt); err != nil {
			return nil, err
		}
		tombstones = append(tombstones, model.Tombstone{
			PlayerID:  model.PlayerID(playerID),
			DeletedAt: model.Stamp(deletedAt),
		})
	}
	return tombstones, rows.Err()
}
