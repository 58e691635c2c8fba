package response

import (
	"github.com/mcoot/gamebank/internal/model"
	"github.com/mcoot/gamebank/internal/services/syncplan"
)

// Player represents a player in API responses
type Player struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Balance     int64  `json:"balance"`
	LastUpdated int64  `json:"lastUpdated"`
	CreatedAt   int64  `json:"createdAt"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p model.Player) Player {
	return Player{
		ID:          int64(p.ID),
		Name:        p.Name,
		Balance:     p.Balance,
		LastUpdated: int64(p.LastUpdated),
		CreatedAt:   int64(p.CreatedAt),
	}
}

// PlayersFromModel converts a slice of players, never returning nil
func PlayersFromModel(players []model.Player) []Player {
	result := make([]Player, len(players))
	for i, p := range players {
		result[i] = PlayerFromModel(p)
	}
	return result
}

// Delta is the tagged balance change of a transaction
type Delta struct {
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
}

// Transaction represents a transaction in API responses
type Transaction struct {
	ID           int64  `json:"id"`
	PlayerID     int64  `json:"playerId"`
	Delta        Delta  `json:"delta"`
	AmountDelta  string `json:"amountDelta"`
	BalanceAfter int64  `json:"balanceAfter"`
	Description  string `json:"description"`
	Timestamp    int64  `json:"timestamp"`
}

// TransactionFromModel converts a model.Transaction
func TransactionFromModel(t model.Transaction) Transaction {
	return Transaction{
		ID:           int64(t.ID),
		PlayerID:     int64(t.PlayerID),
		Delta:        Delta{Kind: string(t.Delta.Kind), Amount: t.Delta.Amount},
		AmountDelta:  t.Delta.String(),
		BalanceAfter: t.BalanceAfter,
		Description:  t.Description,
		Timestamp:    int64(t.Timestamp),
	}
}

// TransactionsFromModel converts a slice of transactions, never returning nil
func TransactionsFromModel(transactions []model.Transaction) []Transaction {
	result := make([]Transaction, len(transactions))
	for i, t := range transactions {
		result[i] = TransactionFromModel(t)
	}
	return result
}

// BalanceResponse is returned by add, subtract and set balance
type BalanceResponse struct {
	Success     bool        `json:"success"`
	Player      Player      `json:"player"`
	Transaction Transaction `json:"transaction"`
}

// SuccessResponse acknowledges an operation with no other result
type SuccessResponse struct {
	Success bool `json:"success"`
}

// SyncResponse is the result of an incremental sync
type SyncResponse struct {
	Players          []Player      `json:"players"`
	Transactions     []Transaction `json:"transactions"`
	DeletedPlayerIDs []int64       `json:"deletedPlayerIds"`
	ServerTimestamp  int64         `json:"serverTimestamp"`
	Full             bool          `json:"full"`
}

// SyncResponseFromDelta converts a syncplan.Delta
func SyncResponseFromDelta(d syncplan.Delta) SyncResponse {
	deleted := make([]int64, len(d.DeletedPlayerIDs))
	for i, id := range d.DeletedPlayerIDs {
		deleted[i] = int64(id)
	}
	return SyncResponse{
		Players:          PlayersFromModel(d.Players),
		Transactions:     TransactionsFromModel(d.Transactions),
		DeletedPlayerIDs: deleted,
		ServerTimestamp:  int64(d.ServerTimestamp),
		Full:             d.Full,
	}
}

// ChangesResponse answers a cheap poll for changes
type ChangesResponse struct {
	HasChanges      bool  `json:"hasChanges"`
	ServerTimestamp int64 `json:"serverTimestamp"`
}

// HealthResponse is returned by the health check
type HealthResponse struct {
	Status string `json:"status"`
}
