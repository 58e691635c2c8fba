package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/gamebank/internal/dependencies/clock"
	"github.com/mcoot/gamebank/internal/model"
	"github.com/mcoot/gamebank/internal/recorder"
	"github.com/mcoot/gamebank/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
//
// Every write is an optimistic transaction: it WATCHes the ledger clock key,
// reads what it needs, and commits with MULTI/EXEC. Each commit also advances
// the clock, so two writers can never both commit from the same snapshot.
type Storage struct {
	client *redis.Client
	cfg    Config
	clock  clock.Clock
}

// New creates a new Redis storage instance
func New(cfg Config, clk clock.Clock) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg, clk), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, clk clock.Clock) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
		clock:  clk,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// reader is the read surface shared by the client and a watched transaction
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	ZRevRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRangeByScoreWithScores(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.ZSliceCmd
}

// update runs fn as an optimistic transaction, retrying when another write
// commits between fn's reads and its EXEC.
func (s *Storage) update(ctx context.Context, fn func(tx *redis.Tx) error) error {
	attempts := max(s.cfg.MaxRetries, 1)
	for range attempts {
		err := s.client.Watch(ctx, fn, clockKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return storage.ErrConflict
}

// Player operations

func (s *Storage) ListPlayers(ctx context.Context) ([]model.Player, error) {
	ids, err := s.client.ZRange(ctx, playersIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return readPlayers(ctx, s.client, ids)
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (model.Player, error) {
	return readPlayer(ctx, s.client, id)
}

func (s *Storage) CreatePlayer(ctx context.Context, name string, initialBalance int64) (model.Player, model.Transaction, error) {
	if initialBalance < 0 {
		return model.Player{}, model.Transaction{}, model.ErrNegativeBalance
	}

	var (
		player model.Player
		entry  model.Transaction
	)
	err := s.update(ctx, func(tx *redis.Tx) error {
		stamp, err := s.nextStamp(ctx, tx)
		if err != nil {
			return err
		}
		lastPlayerID, err := readInt(ctx, tx, playerSeqKey())
		if err != nil {
			return err
		}
		lastTxID, err := readInt(ctx, tx, transactionSeqKey())
		if err != nil {
			return err
		}

		player = model.Player{
			ID:          model.PlayerID(lastPlayerID + 1),
			Name:        name,
			Balance:     initialBalance,
			LastUpdated: stamp,
			CreatedAt:   stamp,
		}
		entry = model.Transaction{
			ID:           model.TransactionID(lastTxID + 1),
			PlayerID:     player.ID,
			Delta:        model.SetTo(initialBalance),
			BalanceAfter: initialBalance,
			Description:  model.DescriptionCreated,
			Timestamp:    stamp,
		}
		playerData, entryData, err := marshalPair(player, entry)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, clockKey(), int64(stamp), 0)
			pipe.Set(ctx, playerSeqKey(), int64(player.ID), 0)
			pipe.ZAdd(ctx, playersIndexKey(), redis.Z{Score: float64(player.ID), Member: member(player.ID)})
			writePlayer(ctx, pipe, player, playerData)
			appendTransaction(ctx, pipe, entry, entryData)
			return nil
		})
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
	err := s.update(ctx, func(tx *redis.Tx) error {
		var err error
		player, err = readPlayer(ctx, tx, id)
		if err != nil {
			return err
		}
		stamp, err := s.nextStamp(ctx, tx)
		if err != nil {
			return err
		}

		if update.Name != nil {
			player.Name = *update.Name
		}
		player.LastUpdated = stamp
		entry = nil
		if update.Balance != nil {
			lastTxID, err := readInt(ctx, tx, transactionSeqKey())
			if err != nil {
				return err
			}
			prior := player.Balance
			player.Balance = *update.Balance
			entry = &model.Transaction{
				ID:           model.TransactionID(lastTxID + 1),
				PlayerID:     id,
				Delta:        model.SetTo(player.Balance),
				BalanceAfter: player.Balance,
				Description:  model.DescribeSet("", prior),
				Timestamp:    stamp,
			}
		}

		playerData, err := json.Marshal(player)
		if err != nil {
			return err
		}
		var entryData []byte
		if entry != nil {
			if entryData, err = json.Marshal(*entry); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, clockKey(), int64(stamp), 0)
			writePlayer(ctx, pipe, player, playerData)
			if entry != nil {
				appendTransaction(ctx, pipe, *entry, entryData)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return model.Player{}, nil, err
	}
	return player, entry, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	return s.update(ctx, func(tx *redis.Tx) error {
		if _, err := readPlayer(ctx, tx, id); err != nil {
			return err
		}
		stamp, err := s.nextStamp(ctx, tx)
		if err != nil {
			return err
		}

		// Remove the player, its history and index entries, and leave a tombstone
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, clockKey(), int64(stamp), 0)
			pipe.Del(ctx, playerKey(id), historyKey(id))
			pipe.ZRem(ctx, playersIndexKey(), member(id))
			pipe.ZRem(ctx, updatedIndexKey(), member(id))
			pipe.ZAdd(ctx, tombstonesKey(), redis.Z{Score: float64(stamp), Member: member(id)})
			return nil
		})
		return err
	})
}

// Balance operations

func (s *Storage) AdjustBalance(ctx context.Context, id model.PlayerID, amount int64, description string) (model.Player, model.Transaction, error) {
	if amount == 0 {
		return model.Player{}, model.Transaction{}, model.ErrInvalidAmount
	}
	return s.changeBalance(ctx, id, func(balance int64) (int64, model.Delta, string, error) {
		if balance+amount < 0 {
			return 0, model.Delta{}, "", model.ErrInsufficientFunds
		}
		delta := model.DeltaFor(amount)
		return balance + amount, delta, model.DescribeAdjustment(description, delta), nil
	})
}

func (s *Storage) SetBalance(ctx context.Context, id model.PlayerID, balance int64, description string) (model.Player, model.Transaction, error) {
	if balance < 0 {
		return model.Player{}, model.Transaction{}, model.ErrNegativeBalance
	}
	return s.changeBalance(ctx, id, func(prior int64) (int64, model.Delta, string, error) {
		return balance, model.SetTo(balance), model.DescribeSet(description, prior), nil
	})
}

// changeBalance applies change to a player's balance and records the
// resulting transaction in the same commit.
func (s *Storage) changeBalance(
	ctx context.Context,
	id model.PlayerID,
	change func(balance int64) (int64, model.Delta, string, error),
) (model.Player, model.Transaction, error) {
	var (
		player model.Player
		entry  model.Transaction
	)
	err := s.update(ctx, func(tx *redis.Tx) error {
		var err error
		player, err = readPlayer(ctx, tx, id)
		if err != nil {
			return err
		}
		balance, delta, description, err := change(player.Balance)
		if err != nil {
			return err
		}
		stamp, err := s.nextStamp(ctx, tx)
		if err != nil {
			return err
		}
		lastTxID, err := readInt(ctx, tx, transactionSeqKey())
		if err != nil {
			return err
		}

		player.Balance = balance
		player.LastUpdated = stamp
		entry = model.Transaction{
			ID:           model.TransactionID(lastTxID + 1),
			PlayerID:     id,
			Delta:        delta,
			BalanceAfter: balance,
			Description:  description,
			Timestamp:    stamp,
		}
		playerData, entryData, err := marshalPair(player, entry)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, clockKey(), int64(stamp), 0)
			writePlayer(ctx, pipe, player, playerData)
			appendTransaction(ctx, pipe, entry, entryData)
			return nil
		})
		return err
	})
	if err != nil {
		return model.Player{}, model.Transaction{}, err
	}
	return player, entry, nil
}

// Transaction history

func (s *Storage) History(ctx context.Context, id model.PlayerID, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = recorder.DefaultHistoryLimit
	}
	values, err := s.client.ZRevRange(ctx, historyKey(id), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	return decodeTransactions(values)
}

func (s *Storage) Transactions(ctx context.Context) ([]model.Transaction, error) {
	ids, err := s.client.ZRange(ctx, playersIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return readTransactions(ctx, s.client, ids, 0)
}

// Sync support

func (s *Storage) ChangesSince(ctx context.Context, since model.Stamp) (storage.Changes, error) {
	var changes storage.Changes
	err := s.update(ctx, func(tx *redis.Tx) error {
		watermark, err := s.watermark(ctx, tx)
		if err != nil {
			return err
		}

		changed, err := tx.ZRangeByScore(ctx, updatedIndexKey(), after(since)).Result()
		if err != nil {
			return err
		}
		players, err := readPlayers(ctx, tx, changed)
		if err != nil {
			return err
		}
		// A transaction always moves its player's LastUpdated, so only
		// changed players can hold new transactions
		transactions, err := readTransactions(ctx, tx, changed, since)
		if err != nil {
			return err
		}
		tombstones, err := readTombstones(ctx, tx, since)
		if err != nil {
			return err
		}

		changes = storage.Changes{
			Players:      players,
			Transactions: transactions,
			Tombstones:   tombstones,
			Watermark:    watermark,
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, clockKey(), int64(watermark), 0)
			return nil
		})
		return err
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
	err := s.update(ctx, func(tx *redis.Tx) error {
		var err error
		watermark, err = s.watermark(ctx, tx)
		if err != nil {
			return err
		}

		opt := after(since)
		updated, err := tx.ZCount(ctx, updatedIndexKey(), opt.Min, opt.Max).Result()
		if err != nil {
			return err
		}
		deleted, err := tx.ZCount(ctx, tombstonesKey(), opt.Min, opt.Max).Result()
		if err != nil {
			return err
		}
		has = updated > 0 || deleted > 0

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, clockKey(), int64(watermark), 0)
			return nil
		})
		return err
	})
	if err != nil {
		return false, 0, err
	}
	return has, watermark, nil
}

// Clock helpers

func (s *Storage) nextStamp(ctx context.Context, tx *redis.Tx) (model.Stamp, error) {
	last, err := readInt(ctx, tx, clockKey())
	if err != nil {
		return 0, err
	}
	return model.NextStamp(model.Stamp(last), s.clock.Now()), nil
}

func (s *Storage) watermark(ctx context.Context, tx *redis.Tx) (model.Stamp, error) {
	last, err := readInt(ctx, tx, clockKey())
	if err != nil {
		return 0, err
	}
	return model.WatermarkStamp(model.Stamp(last), s.clock.Now()), nil
}

// Encoding helpers

func member(id model.PlayerID) string {
	return strconv.FormatInt(int64(id), 10)
}

func parseMember(value string) (model.PlayerID, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	return model.PlayerID(id), err
}

// after returns the score range strictly greater than stamp
func after(stamp model.Stamp) *redis.ZRangeBy {
	return &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(int64(stamp), 10),
		Max: "+inf",
	}
}

func marshalPair(player model.Player, entry model.Transaction) ([]byte, []byte, error) {
	playerData, err := json.Marshal(player)
	if err != nil {
		return nil, nil, err
	}
	entryData, err := json.Marshal(entry)
	if err != nil {
		return nil, nil, err
	}
	return playerData, entryData, nil
}

func writePlayer(ctx context.Context, pipe redis.Pipeliner, player model.Player, data []byte) {
	pipe.Set(ctx, playerKey(player.ID), data, 0)
	pipe.ZAdd(ctx, updatedIndexKey(), redis.Z{Score: float64(player.LastUpdated), Member: member(player.ID)})
}

// appendTransaction adds an entry to its player's history and trims the
// history to the retention limit
func appendTransaction(ctx context.Context, pipe redis.Pipeliner, entry model.Transaction, data []byte) {
	key := historyKey(entry.PlayerID)
	pipe.Set(ctx, transactionSeqKey(), int64(entry.ID), 0)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(entry.ID), Member: string(data)})
	pipe.ZRemRangeByRank(ctx, key, 0, -int64(model.HistoryRetention+1))
}

func readInt(ctx context.Context, r reader, key string) (int64, error) {
	n, err := r.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func readPlayer(ctx context.Context, r reader, id model.PlayerID) (model.Player, error) {
	data, err := r.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Player{}, model.ErrPlayerNotFound
		}
		return model.Player{}, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return model.Player{}, err
	}
	return player, nil
}

// readPlayers fetches players by index member, in ascending id order
func readPlayers(ctx context.Context, r reader, members []string) ([]model.Player, error) {
	if len(members) == 0 {
		return []model.Player{}, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		id, err := parseMember(m)
		if err != nil {
			return nil, err
		}
		keys = append(keys, playerKey(id))
	}

	values, err := r.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	players := make([]model.Player, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue
		}
		var player model.Player
		if err := json.Unmarshal([]byte(val.(string)), &player); err != nil {
			return nil, err
		}
		players = append(players, player)
	}
	slices.SortFunc(players, func(a, b model.Player) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return players, nil
}

// readTransactions returns the retained transactions of the given players
// stamped after since, in ascending id order
func readTransactions(ctx context.Context, r reader, members []string, since model.Stamp) ([]model.Transaction, error) {
	result := []model.Transaction{}
	for _, m := range members {
		id, err := parseMember(m)
		if err != nil {
			return nil, err
		}
		values, err := r.ZRange(ctx, historyKey(id), 0, -1).Result()
		if err != nil {
			return nil, err
		}
		entries, err := decodeTransactions(values)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Timestamp > since {
				result = append(result, entry)
			}
		}
	}
	slices.SortFunc(result, func(a, b model.Transaction) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

func readTombstones(ctx context.Context, r reader, since model.Stamp) ([]model.Tombstone, error) {
	scored, err := r.ZRangeByScoreWithScores(ctx, tombstonesKey(), after(since)).Result()
	if err != nil {
		return nil, err
	}

	tombstones := make([]model.Tombstone, 0, len(scored))
	for _, z := range scored {
		id, err := parseMember(z.Member.(string))
		if err != nil {
			return nil, err
		}
		tombstones = append(tombstones, model.Tombstone{PlayerID: id, DeletedAt: model.Stamp(z.Score)})
	}
	slices.SortFunc(tombstones, func(a, b model.Tombstone) int {
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})
	return tombstones, nil
}

func decodeTransactions(values []string) ([]model.Transaction, error) {
	entries := make([]model.Transaction, 0, len(values))
	for _, val := range values {
		var entry model.Transaction
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
