package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamebank/internal/dependencies/clock"
	"github.com/mcoot/gamebank/internal/dependencies/mocks"
	"github.com/mcoot/gamebank/internal/model"
	"github.com/mcoot/gamebank/internal/storage"
	"github.com/mcoot/gamebank/internal/storage/storagetest"
)

func TestStorageContract(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T, clk clock.Clock) storage.Storage {
			return New(clk)
		},
	})
}

type StorageSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.clock = mocks.NewMockClock(storagetest.Epoch)
	s.storage = New(s.clock)
	s.ctx = context.Background()
}

func (s *StorageSuite) TestStampsSurviveClockSteppingBack() {
	alice, _, err := s.storage.CreatePlayer(s.ctx, "Alice", 100)
	s.Require().NoError(err)

	s.clock.Set(storagetest.Epoch.Add(-time.Hour))
	player, _, err := s.storage.AdjustBalance(s.ctx, alice.ID, 10, "")
	s.Require().NoError(err)
	s.Equal(alice.LastUpdated+1, player.LastUpdated)
}

func (s *StorageSuite) TestWatermarkFollowsClock() {
	s.clock.Advance(5 * time.Second)

	changes, err := s.storage.ChangesSince(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal(model.StampOf(storagetest.Epoch.Add(5*time.Second)), changes.Watermark)
}

func (s *StorageSuite) TestReturnedPlayersAreCopies() {
	alice, _, err := s.storage.CreatePlayer(s.ctx, "Alice", 100)
	s.Require().NoError(err)

	players, err := s.storage.ListPlayers(s.ctx)
	s.Require().NoError(err)
	players[0].Balance = 1_000_000

	stored, err := s.storage.GetPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(100), stored.Balance)
}

func (s *StorageSuite) TestDeleteDropsHistoryFromRecorder() {
	alice, _, err := s.storage.CreatePlayer(s.ctx, "Alice", 100)
	s.Require().NoError(err)
	s.Require().NoError(s.storage.DeletePlayer(s.ctx, alice.ID))

	s.Equal(0, s.storage.recorder.CountFor(alice.ID))
}
