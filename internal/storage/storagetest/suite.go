// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamebank/internal/dependencies/clock"
	"github.com/mcoot/gamebank/internal/dependencies/mocks"
	"github.com/mcoot/gamebank/internal/model"
	"github.com/mcoot/gamebank/internal/storage"
)

// Epoch is the time the suite's mock clock starts at
var Epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// Suite runs the storage contract against a backend. Embed it, or run it
// directly with NewStorage set.
type Suite struct {
	suite.Suite

	// NewStorage builds a fresh, empty backend for each test
	NewStorage func(t *testing.T, clk clock.Clock) storage.Storage

	Clock   *mocks.MockClock
	Storage storage.Storage
	ctx     context.Context
}

func (s *Suite) SetupTest() {
	s.Clock = mocks.NewMockClock(Epoch)
	s.Storage = s.NewStorage(s.T(), s.Clock)
	s.ctx = context.Background()
}

func (s *Suite) TearDownTest() {
	if s.Storage != nil {
		_ = s.Storage.Close()
	}
}

func (s *Suite) createPlayer(name string, balance int64) model.Player {
	player, _, err := s.Storage.CreatePlayer(s.ctx, name, balance)
	s.Require().NoError(err)
	return player
}

// Player tests

func (s *Suite) TestCreatePlayer() {
	player, tx, err := s.Storage.CreatePlayer(s.ctx, "Alice", 1500)
	s.Require().NoError(err)

	s.Equal(model.PlayerID(1), player.ID)
	s.Equal("Alice", player.Name)
	s.Equal(int64(1500), player.Balance)
	s.Equal(model.StampOf(Epoch), player.CreatedAt)
	s.Equal(player.CreatedAt, player.LastUpdated)

	s.Equal(player.ID, tx.PlayerID)
	s.Equal(model.SetTo(1500), tx.Delta)
	s.Equal(int64(1500), tx.BalanceAfter)
	s.Equal(model.DescriptionCreated, tx.Description)
	s.Equal(player.CreatedAt, tx.Timestamp)

	history, err := s.Storage.History(s.ctx, player.ID, 20)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(tx, history[0])
}

func (s *Suite) TestCreatePlayerAssignsSequentialIDs() {
	alice := s.createPlayer("Alice", 1500)
	bob := s.createPlayer("Bob", 1500)

	s.Equal(model.PlayerID(1), alice.ID)
	s.Equal(model.PlayerID(2), bob.ID)
}

func (s *Suite) TestCreatePlayerRejectsNegativeBalance() {
	_, _, err := s.Storage.CreatePlayer(s.ctx, "Alice", -1)
	s.ErrorIs(err, model.ErrNegativeBalance)
}

func (s *Suite) TestPlayerIDsAreNeverReused() {
	s.createPlayer("Alice", 0)
	bob := s.createPlayer("Bob", 0)
	s.Require().NoError(s.Storage.DeletePlayer(s.ctx, bob.ID))

	carol := s.createPlayer("Carol", 0)
	s.Equal(model.PlayerID(3), carol.ID)
}

func (s *Suite) TestGetPlayer() {
	created := s.createPlayer("Alice", 1500)

	player, err := s.Storage.GetPlayer(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created, player)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Storage.GetPlayer(s.ctx, 99)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestListPlayersInIDOrder() {
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		s.createPlayer(name, 100)
	}

	players, err := s.Storage.ListPlayers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(players, 3)
	s.Equal("Alice", players[0].Name)
	s.Equal("Bob", players[1].Name)
	s.Equal("Carol", players[2].Name)
}

func (s *Suite) TestListPlayersEmpty() {
	players, err := s.Storage.ListPlayers(s.ctx)
	s.Require().NoError(err)
	s.Empty(players)
}

func (s *Suite) TestUpdatePlayerName() {
	created := s.createPlayer("Alice", 1500)
	s.Clock.Advance(time.Second)

	name := "Alicia"
	renamed, tx, err := s.Storage.UpdatePlayer(s.ctx, created.ID, storage.PlayerUpdate{Name: &name})
	s.Require().NoError(err)
	s.Nil(tx)
	s.Equal("Alicia", renamed.Name)
	s.Equal(int64(1500), renamed.Balance)
	s.Greater(renamed.LastUpdated, created.LastUpdated)
	s.Equal(created.CreatedAt, renamed.CreatedAt)

	history, err := s.Storage.History(s.ctx, created.ID, 20)
	s.Require().NoError(err)
	s.Len(history, 1, "renaming does not record a transaction")
}

func (s *Suite) TestUpdatePlayerNameAndBalance() {
	created := s.createPlayer("Alice", 1500)

	name := "Alicia"
	balance := int64(900)
	updated, tx, err := s.Storage.UpdatePlayer(s.ctx, created.ID, storage.PlayerUpdate{Name: &name, Balance: &balance})
	s.Require().NoError(err)
	s.Equal("Alicia", updated.Name)
	s.Equal(int64(900), updated.Balance)

	s.Require().NotNil(tx)
	s.Equal(model.SetTo(900), tx.Delta)
	s.Equal(int64(900), tx.BalanceAfter)
	s.Equal("Balance set (was 1500)", tx.Description)
	s.Equal(updated.LastUpdated, tx.Timestamp)

	stored, err := s.Storage.GetPlayer(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(updated, stored)

	history, err := s.Storage.History(s.ctx, created.ID, 20)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(*tx, history[0])
}

func (s *Suite) TestUpdatePlayerRejectsNegativeBalance() {
	created := s.createPlayer("Alice", 1500)

	name := "Alicia"
	balance := int64(-1)
	_, _, err := s.Storage.UpdatePlayer(s.ctx, created.ID, storage.PlayerUpdate{Name: &name, Balance: &balance})
	s.ErrorIs(err, model.ErrNegativeBalance)

	stored, err := s.Storage.GetPlayer(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created, stored)
}

func (s *Suite) TestUpdatePlayerRequiresAField() {
	created := s.createPlayer("Alice", 1500)

	_, _, err := s.Storage.UpdatePlayer(s.ctx, created.ID, storage.PlayerUpdate{})
	s.ErrorIs(err, model.ErrEmptyUpdate)
}

func (s *Suite) TestUpdatePlayerNotFound() {
	name := "Nobody"
	balance := int64(10)
	_, _, err := s.Storage.UpdatePlayer(s.ctx, 99, storage.PlayerUpdate{Name: &name, Balance: &balance})
	s.ErrorIs(err, model.ErrPlayerNotFound)

	all, err := s.Storage.Transactions(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *Suite) TestDeletePlayerCascades() {
	alice := s.createPlayer("Alice", 1500)
	bob := s.createPlayer("Bob", 1500)
	_, _, err := s.Storage.AdjustBalance(s.ctx, alice.ID, 200, "")
	s.Require().NoError(err)

	s.Require().NoError(s.Storage.DeletePlayer(s.ctx, alice.ID))

	_, err = s.Storage.GetPlayer(s.ctx, alice.ID)
	s.ErrorIs(err, model.ErrPlayerNotFound)

	history, err := s.Storage.History(s.ctx, alice.ID, 20)
	s.Require().NoError(err)
	s.Empty(history)

	all, err := s.Storage.Transactions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(bob.ID, all[0].PlayerID)
}

func (s *Suite) TestDeletePlayerNotFound() {
	err := s.Storage.DeletePlayer(s.ctx, 99)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Balance tests

func (s *Suite) TestAdjustBalanceCredit() {
	alice := s.createPlayer("Alice", 1500)

	player, tx, err := s.Storage.AdjustBalance(s.ctx, alice.ID, 200, "")
	s.Require().NoError(err)
	s.Equal(int64(1700), player.Balance)
	s.Equal(model.Credit(200), tx.Delta)
	s.Equal(int64(1700), tx.BalanceAfter)
	s.Equal(model.DescriptionCredit, tx.Description)
	s.Equal(player.LastUpdated, tx.Timestamp)
}

func (s *Suite) TestAdjustBalanceDebitWithDescription() {
	alice := s.createPlayer("Alice", 1500)

	player, tx, err := s.Storage.AdjustBalance(s.ctx, alice.ID, -300, "Rent on Park Lane")
	s.Require().NoError(err)
	s.Equal(int64(1200), player.Balance)
	s.Equal(model.Debit(300), tx.Delta)
	s.Equal("Rent on Park Lane", tx.Description)
}

func (s *Suite) TestAdjustBalanceDownToZero() {
	alice := s.createPlayer("Alice", 100)

	player, _, err := s.Storage.AdjustBalance(s.ctx, alice.ID, -100, "")
	s.Require().NoError(err)
	s.Equal(int64(0), player.Balance)
}

func (s *Suite) TestAdjustBalanceInsufficientFunds() {
	alice := s.createPlayer("Alice", 1700)

	_, _, err := s.Storage.AdjustBalance(s.ctx, alice.ID, -5000, "")
	s.ErrorIs(err, model.ErrInsufficientFunds)

	player, err := s.Storage.GetPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(1700), player.Balance)
	s.Equal(alice.LastUpdated, player.LastUpdated)

	history, err := s.Storage.History(s.ctx, alice.ID, 20)
	s.Require().NoError(err)
	s.Len(history, 1, "a rejected debit records nothing")
}

func (s *Suite) TestAdjustBalanceRejectsZero() {
	alice := s.createPlayer("Alice", 1500)

	_, _, err := s.Storage.AdjustBalance(s.ctx, alice.ID, 0, "")
	s.ErrorIs(err, model.ErrInvalidAmount)

	player, err := s.Storage.GetPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal(alice.LastUpdated, player.LastUpdated)

	history, err := s.Storage.History(s.ctx, alice.ID, 20)
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *Suite) TestAdjustBalanceNotFound() {
	_, _, err := s.Storage.AdjustBalance(s.ctx, 99, 100, "")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestSetBalanceRecordsPriorValue() {
	alice := s.createPlayer("Alice", 1700)

	player, tx, err := s.Storage.SetBalance(s.ctx, alice.ID, 0, "")
	s.Require().NoError(err)
	s.Equal(int64(0), player.Balance)
	s.Equal(model.SetTo(0), tx.Delta)
	s.Equal("Balance set (was 1700)", tx.Description)
}

func (s *Suite) TestSetBalanceKeepsCallerDescription() {
	alice := s.createPlayer("Alice", 1500)

	_, tx, err := s.Storage.SetBalance(s.ctx, alice.ID, 2000, "Bank correction")
	s.Require().NoError(err)
	s.Equal("Bank correction (was 1500)", tx.Description)
}

func (s *Suite) TestSetBalanceRejectsNegative() {
	alice := s.createPlayer("Alice", 1500)

	_, _, err := s.Storage.SetBalance(s.ctx, alice.ID, -1, "")
	s.ErrorIs(err, model.ErrNegativeBalance)
	s.ErrorIs(err, model.ErrValidation)

	player, err := s.Storage.GetPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(1500), player.Balance)
}

func (s *Suite) TestSetBalanceNotFound() {
	_, _, err := s.Storage.SetBalance(s.ctx, 99, 10, "")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// History tests

func (s *Suite) TestHistoryNewestFirstWithLimit() {
	alice := s.createPlayer("Alice", 0)
	for i := int64(1); i <= 5; i++ {
		_, _, err := s.Storage.AdjustBalance(s.ctx, alice.ID, i, "")
		s.Require().NoError(err)
	}

	history, err := s.Storage.History(s.ctx, alice.ID, 3)
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	s.Equal(model.Credit(5), history[0].Delta)
	s.Equal(model.Credit(4), history[1].Delta)
	s.Equal(model.Credit(3), history[2].Delta)
	s.Greater(history[0].ID, history[1].ID)
}

func (s *Suite) TestHistoryIsBounded() {
	alice := s.createPlayer("Alice", 0)
	var last model.Transaction
	for range model.HistoryRetention + 10 {
		_, tx, err := s.Storage.AdjustBalance(s.ctx, alice.ID, 1, "")
		s.Require().NoError(err)
		last = tx
	}

	history, err := s.Storage.History(s.ctx, alice.ID, 1000)
	s.Require().NoError(err)
	s.Require().Len(history, model.HistoryRetention)
	s.Equal(last.ID, history[0].ID)
	for i := 1; i < len(history); i++ {
		s.Equal(history[i-1].ID-1, history[i].ID, "retained entries are the most recent, contiguous ids")
	}

	all, err := s.Storage.Transactions(s.ctx)
	s.Require().NoError(err)
	s.Len(all, model.HistoryRetention)
}

func (s *Suite) TestHistoryUnknownPlayerIsEmpty() {
	history, err := s.Storage.History(s.ctx, 99, 20)
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *Suite) TestTransactionsAscending() {
	alice := s.createPlayer("Alice", 10)
	bob := s.createPlayer("Bob", 10)
	_, _, err := s.Storage.AdjustBalance(s.ctx, alice.ID, 5, "")
	s.Require().NoError(err)
	_, _, err = s.Storage.AdjustBalance(s.ctx, bob.ID, -5, "")
	s.Require().NoError(err)

	all, err := s.Storage.Transactions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 4)
	for i := 1; i < len(all); i++ {
		s.Less(all[i-1].ID, all[i].ID)
	}
}

// Sync tests

func (s *Suite) TestChangesSinceZeroReturnsEverything() {
	s.createPlayer("Alice", 1500)
	s.createPlayer("Bob", 1500)

	changes, err := s.Storage.ChangesSince(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(changes.Players, 2)
	s.Len(changes.Transactions, 2)
	s.Empty(changes.Tombstones)
	s.GreaterOrEqual(changes.Watermark, model.StampOf(Epoch))
}

func (s *Suite) TestChangesSinceWatermarkOnlyReturnsLaterChanges() {
	alice := s.createPlayer("Alice", 1500)
	bob := s.createPlayer("Bob", 1500)

	first, err := s.Storage.ChangesSince(s.ctx, 0)
	s.Require().NoError(err)

	// The clock is frozen: stamps must still move past the watermark
	_, tx, err := s.Storage.AdjustBalance(s.ctx, bob.ID, 50, "")
	s.Require().NoError(err)
	s.Greater(tx.Timestamp, first.Watermark)

	second, err := s.Storage.ChangesSince(s.ctx, first.Watermark)
	s.Require().NoError(err)
	s.Require().Len(second.Players, 1)
	s.Equal(bob.ID, second.Players[0].ID)
	s.Require().Len(second.Transactions, 1)
	s.Equal(tx.ID, second.Transactions[0].ID)
	s.GreaterOrEqual(second.Watermark, first.Watermark)

	third, err := s.Storage.ChangesSince(s.ctx, second.Watermark)
	s.Require().NoError(err)
	s.Empty(third.Players)
	s.Empty(third.Transactions)
	s.Empty(third.Tombstones)

	_ = alice
}

func (s *Suite) TestChangesSinceReportsDeletions() {
	alice := s.createPlayer("Alice", 1500)
	first, err := s.Storage.ChangesSince(s.ctx, 0)
	s.Require().NoError(err)

	s.Require().NoError(s.Storage.DeletePlayer(s.ctx, alice.ID))

	second, err := s.Storage.ChangesSince(s.ctx, first.Watermark)
	s.Require().NoError(err)
	s.Empty(second.Players)
	s.Require().Len(second.Tombstones, 1)
	s.Equal(alice.ID, second.Tombstones[0].PlayerID)
	s.Greater(second.Tombstones[0].DeletedAt, first.Watermark)

	third, err := s.Storage.ChangesSince(s.ctx, second.Watermark)
	s.Require().NoError(err)
	s.Empty(third.Tombstones)
}

func (s *Suite) TestHasChangesSince() {
	has, watermark, err := s.Storage.HasChangesSince(s.ctx, 0)
	s.Require().NoError(err)
	s.False(has)

	alice := s.createPlayer("Alice", 1500)
	has, _, err = s.Storage.HasChangesSince(s.ctx, watermark)
	s.Require().NoError(err)
	s.True(has)

	has, watermark, err = s.Storage.HasChangesSince(s.ctx, alice.LastUpdated)
	s.Require().NoError(err)
	s.False(has)

	s.Require().NoError(s.Storage.DeletePlayer(s.ctx, alice.ID))
	has, _, err = s.Storage.HasChangesSince(s.ctx, watermark)
	s.Require().NoError(err)
	s.True(has, "deletions count as changes")
}

func (s *Suite) TestStampsAreStrictlyMonotonic() {
	alice := s.createPlayer("Alice", 1500)
	previous := alice.LastUpdated
	for range 5 {
		player, _, err := s.Storage.AdjustBalance(s.ctx, alice.ID, 1, "")
		s.Require().NoError(err)
		s.Greater(player.LastUpdated, previous)
		previous = player.LastUpdated
	}
}

// Concurrency tests

func (s *Suite) TestConcurrentCreditsAreNotLost() {
	alice := s.createPlayer("Alice", 1500)

	var wg sync.WaitGroup
	for range 2 {
		wg.Go(func() {
			_, _, err := s.Storage.AdjustBalance(s.ctx, alice.ID, 100, "")
			s.NoError(err)
		})
	}
	wg.Wait()

	player, err := s.Storage.GetPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(1700), player.Balance)
}

func (s *Suite) TestConcurrentAdjustmentsMatchAcceptedSum() {
	alice := s.createPlayer("Alice", 100)

	var (
		wg       sync.WaitGroup
		accepted atomic.Int64
		count    atomic.Int64
	)
	amounts := []int64{50, -80, 30, -120, 70, -10, -60, 20, -40, 90,
		-30, 10, -200, 40, -20, 60, -90, 25, -15, 35}
	for _, amount := range amounts {
		wg.Go(func() {
			_, _, err := s.Storage.AdjustBalance(s.ctx, alice.ID, amount, "")
			switch {
			case err == nil:
				accepted.Add(amount)
				count.Add(1)
			case errors.Is(err, model.ErrInsufficientFunds):
			default:
				s.NoError(err)
			}
		})
	}
	wg.Wait()

	player, err := s.Storage.GetPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal(100+accepted.Load(), player.Balance)
	s.GreaterOrEqual(player.Balance, int64(0))

	history, err := s.Storage.History(s.ctx, alice.ID, model.HistoryRetention)
	s.Require().NoError(err)
	s.Len(history, int(count.Load())+1, "one transaction per accepted change plus creation")
}

func (s *Suite) TestConcurrentDebitsNeverOverdraw() {
	alice := s.createPlayer("Alice", 1500)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)
	for range 30 {
		wg.Go(func() {
			_, _, err := s.Storage.AdjustBalance(s.ctx, alice.ID, -100, "")
			if err == nil {
				succeeded.Add(1)
				return
			}
			s.ErrorIs(err, model.ErrInsufficientFunds)
		})
	}
	wg.Wait()

	s.Equal(int64(15), succeeded.Load())
	player, err := s.Storage.GetPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), player.Balance)
}
