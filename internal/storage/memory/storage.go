package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/mcoot/gamebank/internal/dependencies/clock"
	"github.com/mcoot/gamebank/internal/model"
	"github.com/mcoot/gamebank/internal/recorder"
	"github.com/mcoot/gamebank/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// A single lock guards players, the transaction log, tombstones and the
// ledger clock together.
type Storage struct {
	mu sync.RWMutex

	players    map[model.PlayerID]*model.Player
	tombstones map[model.PlayerID]model.Stamp
	recorder   *recorder.Recorder
	stamps     *clock.Sequencer
	lastID     model.PlayerID
}

// New creates a new in-memory storage instance
func New(clk clock.Clock) *Storage {
	return &Storage{
		players:    make(map[model.PlayerID]*model.Player),
		tombstones: make(map[model.PlayerID]model.Stamp),
		recorder:   recorder.New(model.HistoryRetention),
		stamps:     clock.NewSequencer(clk),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) ListPlayers(ctx context.Context) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playersWhere(func(model.Player) bool { return true }), nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return model.Player{}, model.ErrPlayerNotFound
	}
	return *player, nil
}

func (s *Storage) CreatePlayer(ctx context.Context, name string, initialBalance int64) (model.Player, model.Transaction, error) {
	if initialBalance < 0 {
		return model.Player{}, model.Transaction{}, model.ErrNegativeBalance
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.stamps.Next()
	s.lastID++
	player := &model.Player{
		ID:          s.lastID,
		Name:        name,
		Balance:     initialBalance,
		LastUpdated: now,
		CreatedAt:   now,
	}
	s.players[player.ID] = player

	tx := s.recorder.Record(player.ID, model.SetTo(initialBalance), initialBalance, model.DescriptionCreated, now)
	return *player, tx, nil
}

func (s *Storage) UpdatePlayer(ctx context.Context, id model.PlayerID, update storage.PlayerUpdate) (model.Player, *model.Transaction, error) {
	if err := update.Validate(); err != nil {
		return model.Player{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[id]
	if !ok {
		return model.Player{}, nil, model.ErrPlayerNotFound
	}

	now := s.stamps.Next()
	if update.Name != nil {
		player.Name = *update.Name
	}
	player.LastUpdated = now
	if update.Balance == nil {
		return *player, nil, nil
	}

	prior := player.Balance
	player.Balance = *update.Balance
	tx := s.recorder.Record(id, model.SetTo(player.Balance), player.Balance, model.DescribeSet("", prior), now)
	return *player, &tx, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[id]; !ok {
		return model.ErrPlayerNotFound
	}
	delete(s.players, id)
	s.recorder.DeleteFor(id)
	s.tombstones[id] = s.stamps.Next()
	return nil
}

// Balance operations

func (s *Storage) AdjustBalance(ctx context.Context, id model.PlayerID, amount int64, description string) (model.Player, model.Transaction, error) {
	if amount == 0 {
		return model.Player{}, model.Transaction{}, model.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[id]
	if !ok {
		return model.Player{}, model.Transaction{}, model.ErrPlayerNotFound
	}
	if player.Balance+amount < 0 {
		return model.Player{}, model.Transaction{}, model.ErrInsufficientFunds
	}

	now := s.stamps.Next()
	player.Balance += amount
	player.LastUpdated = now

	delta := model.DeltaFor(amount)
	tx := s.recorder.Record(id, delta, player.Balance, model.DescribeAdjustment(description, delta), now)
	return *player, tx, nil
}

func (s *Storage) SetBalance(ctx context.Context, id model.PlayerID, balance int64, description string) (model.Player, model.Transaction, error) {
	if balance < 0 {
		return model.Player{}, model.Transaction{}, model.ErrNegativeBalance
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[id]
	if !ok {
		return model.Player{}, model.Transaction{}, model.ErrPlayerNotFound
	}

	now := s.stamps.Next()
	prior := player.Balance
	player.Balance = balance
	player.LastUpdated = now

	tx := s.recorder.Record(id, model.SetTo(balance), balance, model.DescribeSet(description, prior), now)
	return *player, tx, nil
}

// Transaction history

func (s *Storage) History(ctx context.Context, id model.PlayerID, limit int) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recorder.HistoryFor(id, limit), nil
}

func (s *Storage) Transactions(ctx context.Context) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recorder.All(), nil
}

// Sync support

func (s *Storage) ChangesSince(ctx context.Context, since model.Stamp) (storage.Changes, error) {
	// Write lock: reserving the watermark advances the ledger clock
	s.mu.Lock()
	defer s.mu.Unlock()

	changes := storage.Changes{
		Players:      s.playersWhere(func(p model.Player) bool { return p.LastUpdated > since }),
		Transactions: s.recorder.Since(since),
		Tombstones:   []model.Tombstone{},
		Watermark:    s.stamps.Watermark(),
	}
	for id, deletedAt := range s.tombstones {
		if deletedAt > since {
			changes.Tombstones = append(changes.Tombstones, model.Tombstone{PlayerID: id, DeletedAt: deletedAt})
		}
	}
	slices.SortFunc(changes.Tombstones, func(a, b model.Tombstone) int {
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})
	return changes, nil
}

func (s *Storage) HasChangesSince(ctx context.Context, since model.Stamp) (bool, model.Stamp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	watermark := s.stamps.Watermark()
	if s.recorder.HasSince(since) {
		return true, watermark, nil
	}
	for _, player := range s.players {
		if player.LastUpdated > since {
			return true, watermark, nil
		}
	}
	for _, deletedAt := range s.tombstones {
		if deletedAt > since {
			return true, watermark, nil
		}
	}
	return false, watermark, nil
}

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}

// playersWhere returns copies of matching players in ascending id order.
// Callers must hold the lock.
func (s *Storage) playersWhere(match func(model.Player) bool) []model.Player {
	result := make([]model.Player, 0, len(s.players))
	for _, player := range s.players {
		if match(*player) {
			result = append(result, *player)
		}
	}
	slices.SortFunc(result, func(a, b model.Player) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}
