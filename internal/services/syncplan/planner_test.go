package syncplan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamebank/internal/dependencies/mocks"
	"github.com/mcoot/gamebank/internal/model"
	"github.com/mcoot/gamebank/internal/storage/memory"
	"github.com/mcoot/gamebank/internal/testutil"
)

type PlannerSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	planner *Planner
	ctx     context.Context
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}

func (s *PlannerSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.storage = memory.New(s.clock)
	s.planner = New(s.storage, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *PlannerSuite) createPlayer(name string) model.Player {
	player, _, err := s.storage.CreatePlayer(s.ctx, name, 1500)
	s.Require().NoError(err)
	return player
}

func (s *PlannerSuite) TestBootstrapReturnsEverything() {
	alice := s.createPlayer("Alice")
	bob := s.createPlayer("Bob")
	carol := s.createPlayer("Carol")
	s.Require().NoError(s.storage.DeletePlayer(s.ctx, carol.ID))

	delta, err := s.planner.ComputeDelta(s.ctx, Request{Since: 0})
	s.Require().NoError(err)

	s.True(delta.Full)
	s.Require().Len(delta.Players, 2)
	s.Equal(alice.ID, delta.Players[0].ID)
	s.Equal(bob.ID, delta.Players[1].ID)
	s.Len(delta.Transactions, 2)
	s.Empty(delta.DeletedPlayerIDs, "bootstrap never reports deletions")
	s.Positive(delta.ServerTimestamp)
}

func (s *PlannerSuite) TestIncrementalSync() {
	alice := s.createPlayer("Alice")
	bob := s.createPlayer("Bob")

	first, err := s.planner.ComputeDelta(s.ctx, Request{Since: 0})
	s.Require().NoError(err)

	_, _, err = s.storage.AdjustBalance(s.ctx, bob.ID, 50, "")
	s.Require().NoError(err)
	s.Require().NoError(s.storage.DeletePlayer(s.ctx, alice.ID))

	second, err := s.planner.ComputeDelta(s.ctx, Request{Since: first.ServerTimestamp})
	s.Require().NoError(err)
	s.False(second.Full)
	s.Require().Len(second.Players, 1)
	s.Equal(bob.ID, second.Players[0].ID)
	s.Equal(int64(1550), second.Players[0].Balance)
	s.Require().Len(second.Transactions, 1)
	s.Equal(model.Credit(50), second.Transactions[0].Delta)
	s.Equal([]model.PlayerID{alice.ID}, second.DeletedPlayerIDs)

	third, err := s.planner.ComputeDelta(s.ctx, Request{Since: second.ServerTimestamp})
	s.Require().NoError(err)
	s.Empty(third.Players)
	s.Empty(third.Transactions)
	s.Empty(third.DeletedPlayerIDs)
}

func (s *PlannerSuite) TestKnownPlayersFilterTransactionsAndDeletions() {
	alice := s.createPlayer("Alice")
	bob := s.createPlayer("Bob")
	first, err := s.planner.ComputeDelta(s.ctx, Request{Since: 0})
	s.Require().NoError(err)

	carol := s.createPlayer("Carol")
	_, _, err = s.storage.AdjustBalance(s.ctx, alice.ID, 10, "")
	s.Require().NoError(err)
	_, _, err = s.storage.AdjustBalance(s.ctx, bob.ID, 20, "")
	s.Require().NoError(err)
	s.Require().NoError(s.storage.DeletePlayer(s.ctx, bob.ID))

	delta, err := s.planner.ComputeDelta(s.ctx, Request{
		Since:          first.ServerTimestamp,
		KnownPlayerIDs: []model.PlayerID{alice.ID},
	})
	s.Require().NoError(err)

	// Changed players are not filtered, so the client learns about Carol
	s.Require().Len(delta.Players, 2)
	s.Equal(alice.ID, delta.Players[0].ID)
	s.Equal(carol.ID, delta.Players[1].ID)

	s.Require().Len(delta.Transactions, 1)
	s.Equal(alice.ID, delta.Transactions[0].PlayerID)
	s.Empty(delta.DeletedPlayerIDs)
}

func (s *PlannerSuite) TestKnownPlayersFilterAppliesToBootstrap() {
	alice := s.createPlayer("Alice")
	s.createPlayer("Bob")

	delta, err := s.planner.ComputeDelta(s.ctx, Request{KnownPlayerIDs: []model.PlayerID{alice.ID}})
	s.Require().NoError(err)
	s.Len(delta.Players, 2)
	s.Require().Len(delta.Transactions, 1)
	s.Equal(alice.ID, delta.Transactions[0].PlayerID)
}

func (s *PlannerSuite) TestNegativeSinceIsRejected() {
	_, err := s.planner.ComputeDelta(s.ctx, Request{Since: -1})
	s.ErrorIs(err, model.ErrValidation)

	_, _, err = s.planner.HasChangesSince(s.ctx, -1)
	s.ErrorIs(err, model.ErrValidation)
}

func (s *PlannerSuite) TestHasChangesSince() {
	s.createPlayer("Alice")

	has, watermark, err := s.planner.HasChangesSince(s.ctx, 0)
	s.Require().NoError(err)
	s.True(has)

	has, _, err = s.planner.HasChangesSince(s.ctx, watermark)
	s.Require().NoError(err)
	s.False(has)
}

func (s *PlannerSuite) TestEmptyLedger() {
	delta, err := s.planner.ComputeDelta(s.ctx, Request{})
	s.Require().NoError(err)
	s.NotNil(delta.Players)
	s.NotNil(delta.Transactions)
	s.NotNil(delta.DeletedPlayerIDs)
}
