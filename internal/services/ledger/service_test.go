package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamebank/internal/dependencies/mocks"
	"github.com/mcoot/gamebank/internal/events"
	"github.com/mcoot/gamebank/internal/model"
	"github.com/mcoot/gamebank/internal/services/syncplan"
	"github.com/mcoot/gamebank/internal/storage"
	"github.com/mcoot/gamebank/internal/storage/memory"
	"github.com/mcoot/gamebank/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.storage = memory.New(s.clock)
	s.service = New(s.storage, syncplan.New(s.storage, logger), DefaultConfig(), logger)
	s.ctx = context.Background()
}

func (s *ServiceSuite) createPlayer(name string) model.Player {
	player, err := s.service.CreatePlayer(s.ctx, name)
	s.Require().NoError(err)
	return player
}

// Scenarios

func (s *ServiceSuite) TestLedgerScenario() {
	// Create Alice with the initial balance
	alice := s.createPlayer("Alice")
	s.Equal(model.PlayerID(1), alice.ID)
	s.Equal(int64(1500), alice.Balance)

	history, err := s.service.History(s.ctx, alice.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(model.SetTo(1500), history[0].Delta)

	// Add 200
	alice, tx, err := s.service.AddMoney(s.ctx, alice.ID, 200, "")
	s.Require().NoError(err)
	s.Equal(int64(1700), alice.Balance)
	s.Equal(model.Credit(200), tx.Delta)

	// Subtracting more than she has fails without side effects
	_, _, err = s.service.SubtractMoney(s.ctx, alice.ID, 5000, "")
	s.ErrorIs(err, model.ErrInsufficientFunds)
	alice, err = s.service.GetPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(1700), alice.Balance)

	// Set to zero records the prior balance
	alice, tx, err = s.service.SetBalance(s.ctx, alice.ID, 0, "")
	s.Require().NoError(err)
	s.Equal(int64(0), alice.Balance)
	s.Equal(model.SetTo(0), tx.Delta)
	s.Contains(tx.Description, "1700")

	// Delete cascades to history
	s.Require().NoError(s.service.DeletePlayer(s.ctx, alice.ID))
	_, err = s.service.GetPlayer(s.ctx, alice.ID)
	s.ErrorIs(err, model.ErrPlayerNotFound)
	history, err = s.service.History(s.ctx, alice.ID, 0)
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *ServiceSuite) TestConcurrentAddsFromTwoClients() {
	bob := s.createPlayer("Bob")

	var wg sync.WaitGroup
	for range 2 {
		wg.Go(func() {
			_, _, err := s.service.AddMoney(s.ctx, bob.ID, 100, "")
			s.NoError(err)
		})
	}
	wg.Wait()

	bob, err := s.service.GetPlayer(s.ctx, bob.ID)
	s.Require().NoError(err)
	s.Equal(int64(1700), bob.Balance)

	history, err := s.service.History(s.ctx, bob.ID, 0)
	s.Require().NoError(err)
	s.Len(history, 3)
}

// CreatePlayer tests

func (s *ServiceSuite) TestCreatePlayerTrimsName() {
	player := s.createPlayer("  Alice  ")
	s.Equal("Alice", player.Name)
}

func (s *ServiceSuite) TestCreatePlayerRejectsBlankName() {
	_, err := s.service.CreatePlayer(s.ctx, "   ")
	s.ErrorIs(err, model.ErrEmptyName)
	s.ErrorIs(err, model.ErrValidation)

	players, err := s.service.ListPlayers(s.ctx)
	s.Require().NoError(err)
	s.Empty(players)
}

func (s *ServiceSuite) TestCreatePlayerNameLength() {
	_, err := s.service.CreatePlayer(s.ctx, strings.Repeat("a", 100))
	s.NoError(err)

	_, err = s.service.CreatePlayer(s.ctx, strings.Repeat("a", 101))
	s.ErrorIs(err, model.ErrNameTooLong)
}

func (s *ServiceSuite) TestCreatePlayerNameLengthCountsRunes() {
	_, err := s.service.CreatePlayer(s.ctx, strings.Repeat("é", 100))
	s.NoError(err)
}

func (s *ServiceSuite) TestCreatePlayerUsesConfiguredBalance() {
	cfg := DefaultConfig()
	cfg.InitialBalance = 250
	service := New(s.storage, syncplan.New(s.storage, testutil.NopLogger()), cfg, testutil.NopLogger())

	player, err := service.CreatePlayer(s.ctx, "Alice")
	s.Require().NoError(err)
	s.Equal(int64(250), player.Balance)
}

// Amount validation tests

func (s *ServiceSuite) TestAddAndSubtractRejectNonPositiveAmounts() {
	alice := s.createPlayer("Alice")

	for _, amount := range []int64{0, -5} {
		_, _, err := s.service.AddMoney(s.ctx, alice.ID, amount, "")
		s.ErrorIs(err, model.ErrInvalidAmount)
		_, _, err = s.service.SubtractMoney(s.ctx, alice.ID, amount, "")
		s.ErrorIs(err, model.ErrInvalidAmount)
	}

	history, err := s.service.History(s.ctx, alice.ID, 0)
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *ServiceSuite) TestAmountsAreCapped() {
	alice := s.createPlayer("Alice")

	_, _, err := s.service.AddMoney(s.ctx, alice.ID, 1_000_000_001, "")
	s.ErrorIs(err, model.ErrAmountTooLarge)
	_, _, err = s.service.SetBalance(s.ctx, alice.ID, 1_000_000_001, "")
	s.ErrorIs(err, model.ErrAmountTooLarge)
}

func (s *ServiceSuite) TestSetBalanceAcceptsZeroRejectsNegative() {
	alice := s.createPlayer("Alice")

	_, _, err := s.service.SetBalance(s.ctx, alice.ID, -1, "")
	s.ErrorIs(err, model.ErrNegativeBalance)

	player, _, err := s.service.SetBalance(s.ctx, alice.ID, 0, "")
	s.Require().NoError(err)
	s.Equal(int64(0), player.Balance)
}

func (s *ServiceSuite) TestSubtractMoneyDescription() {
	alice := s.createPlayer("Alice")

	_, tx, err := s.service.SubtractMoney(s.ctx, alice.ID, 200, "  Income tax ")
	s.Require().NoError(err)
	s.Equal(model.Debit(200), tx.Delta)
	s.Equal("Income tax", tx.Description)
	s.Equal(int64(1300), tx.BalanceAfter)
}

func (s *ServiceSuite) TestAdjustUnknownPlayer() {
	_, _, err := s.service.AddMoney(s.ctx, 42, 10, "")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// UpdatePlayer tests

func (s *ServiceSuite) TestUpdatePlayerName() {
	alice := s.createPlayer("Alice")
	name := " Alicia "

	player, err := s.service.UpdatePlayer(s.ctx, alice.ID, &name, nil)
	s.Require().NoError(err)
	s.Equal("Alicia", player.Name)
	s.Equal(int64(1500), player.Balance)
}

func (s *ServiceSuite) TestUpdatePlayerNameAndBalance() {
	alice := s.createPlayer("Alice")
	name := "Alicia"
	balance := int64(900)

	player, err := s.service.UpdatePlayer(s.ctx, alice.ID, &name, &balance)
	s.Require().NoError(err)
	s.Equal("Alicia", player.Name)
	s.Equal(int64(900), player.Balance)

	history, err := s.service.History(s.ctx, alice.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("Balance set (was 1500)", history[0].Description)
	s.Equal(player.LastUpdated, history[0].Timestamp)
}

func (s *ServiceSuite) TestUpdatePlayerValidatesBeforeApplying() {
	alice := s.createPlayer("Alice")
	name := "Alicia"
	balance := int64(-1)

	_, err := s.service.UpdatePlayer(s.ctx, alice.ID, &name, &balance)
	s.ErrorIs(err, model.ErrNegativeBalance)

	player, err := s.service.GetPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal("Alice", player.Name)
}

// unavailableStore is a memory store whose updates fail as a backend would
type unavailableStore struct {
	*memory.Storage
}

var errBackendDown = errors.New("backend down")

func (unavailableStore) UpdatePlayer(context.Context, model.PlayerID, storage.PlayerUpdate) (model.Player, *model.Transaction, error) {
	return model.Player{}, nil, errBackendDown
}

func (s *ServiceSuite) TestUpdatePlayerBackendFailureChangesNothing() {
	alice := s.createPlayer("Alice")
	store := unavailableStore{Storage: s.storage}
	service := New(store, syncplan.New(store, testutil.NopLogger()), DefaultConfig(), testutil.NopLogger())
	publisher := &recordingPublisher{}
	service.SetPublisher(publisher)

	name := "Bob"
	balance := int64(10)
	_, err := service.UpdatePlayer(s.ctx, alice.ID, &name, &balance)
	s.ErrorIs(err, errBackendDown)

	player, err := s.service.GetPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal("Alice", player.Name)
	s.Equal(int64(1500), player.Balance)
	s.Empty(publisher.events)
}

func (s *ServiceSuite) TestUpdatePlayerOfDeletedPlayerChangesNothing() {
	alice := s.createPlayer("Alice")
	s.Require().NoError(s.service.DeletePlayer(s.ctx, alice.ID))

	name := "Alicia"
	balance := int64(10)
	_, err := s.service.UpdatePlayer(s.ctx, alice.ID, &name, &balance)
	s.ErrorIs(err, model.ErrPlayerNotFound)

	changes, err := s.storage.ChangesSince(s.ctx, alice.LastUpdated)
	s.Require().NoError(err)
	s.Empty(changes.Players)
	s.Empty(changes.Transactions)
}

func (s *ServiceSuite) TestUpdatePlayerRequiresAField() {
	alice := s.createPlayer("Alice")

	_, err := s.service.UpdatePlayer(s.ctx, alice.ID, nil, nil)
	s.ErrorIs(err, model.ErrEmptyUpdate)
}

func (s *ServiceSuite) TestUpdateUnknownPlayer() {
	name := "Ghost"
	_, err := s.service.UpdatePlayer(s.ctx, 42, &name, nil)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// History tests

func (s *ServiceSuite) TestHistoryDefaultLimit() {
	alice := s.createPlayer("Alice")
	for range 30 {
		_, _, err := s.service.AddMoney(s.ctx, alice.ID, 1, "")
		s.Require().NoError(err)
	}

	history, err := s.service.History(s.ctx, alice.ID, 0)
	s.Require().NoError(err)
	s.Len(history, 20)

	history, err = s.service.History(s.ctx, alice.ID, 500)
	s.Require().NoError(err)
	s.Len(history, 31)
}

// Sync tests

func (s *ServiceSuite) TestSyncRoundTrip() {
	alice := s.createPlayer("Alice")

	first, err := s.service.Sync(s.ctx, syncplan.Request{})
	s.Require().NoError(err)
	s.True(first.Full)
	s.Len(first.Players, 1)

	_, _, err = s.service.AddMoney(s.ctx, alice.ID, 5, "")
	s.Require().NoError(err)

	has, _, err := s.service.HasChangesSince(s.ctx, first.ServerTimestamp)
	s.Require().NoError(err)
	s.True(has)

	second, err := s.service.Sync(s.ctx, syncplan.Request{Since: first.ServerTimestamp})
	s.Require().NoError(err)
	s.False(second.Full)
	s.Len(second.Transactions, 1)
}

// Publisher tests

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (s *ServiceSuite) TestPublishesCommittedChanges() {
	publisher := &recordingPublisher{}
	s.service.SetPublisher(publisher)

	alice := s.createPlayer("Alice")
	_, _, err := s.service.AddMoney(s.ctx, alice.ID, 10, "")
	s.Require().NoError(err)
	name := "Alicia"
	_, err = s.service.UpdatePlayer(s.ctx, alice.ID, &name, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.service.DeletePlayer(s.ctx, alice.ID))

	s.Require().Len(publisher.events, 4)
	s.Equal(events.TypePlayerCreated, publisher.events[0].Type)
	s.Equal(events.TypeBalanceChanged, publisher.events[1].Type)
	s.Require().NotNil(publisher.events[1].Balance)
	s.Equal(int64(1510), *publisher.events[1].Balance)
	s.Equal(events.TypePlayerUpdated, publisher.events[2].Type)
	s.Equal(events.Event{Type: events.TypePlayerDeleted, PlayerID: alice.ID}, publisher.events[3])
}

func (s *ServiceSuite) TestUpdatePlayerPublishesOneEvent() {
	alice := s.createPlayer("Alice")
	publisher := &recordingPublisher{}
	s.service.SetPublisher(publisher)

	name := "Alicia"
	balance := int64(900)
	updated, err := s.service.UpdatePlayer(s.ctx, alice.ID, &name, &balance)
	s.Require().NoError(err)

	s.Require().Len(publisher.events, 1)
	s.Equal(events.TypePlayerUpdated, publisher.events[0].Type)
	s.Require().NotNil(publisher.events[0].Balance)
	s.Equal(int64(900), *publisher.events[0].Balance)
	s.Equal(updated.LastUpdated, publisher.events[0].Stamp)

	balance = 100
	_, err = s.service.UpdatePlayer(s.ctx, alice.ID, nil, &balance)
	s.Require().NoError(err)
	s.Require().Len(publisher.events, 2)
	s.Equal(events.TypeBalanceChanged, publisher.events[1].Type)
}

func (s *ServiceSuite) TestFailedOperationsPublishNothing() {
	publisher := &recordingPublisher{}
	s.service.SetPublisher(publisher)

	_, _, err := s.service.SubtractMoney(s.ctx, 42, 10, "")
	s.ErrorIs(err, model.ErrPlayerNotFound)
	s.Empty(publisher.events)
}
