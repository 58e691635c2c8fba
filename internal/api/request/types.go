package request

// CreatePlayerRequest is the request body for creating a player
type CreatePlayerRequest struct {
	Name string `json:"name"`
}

// UpdatePlayerRequest is the request body for updating a player.
// Omitted fields are left unchanged.
type UpdatePlayerRequest struct {
	Name    *string `json:"name,omitempty"`
	Balance *int64  `json:"balance,omitempty"`
}

// AmountRequest is the request body for add, subtract and set balance
type AmountRequest struct {
	Amount      *int64 `json:"amount"`
	Description string `json:"description,omitempty"`
}

// SyncRequest is the request body for an incremental sync
type SyncRequest struct {
	LastSyncTimestamp int64   `json:"lastSyncTimestamp"`
	KnownPlayerIDs    []int64 `json:"knownPlayerIds,omitempty"`
}
