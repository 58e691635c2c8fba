package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputText(t *testing.T) {
	tests := []struct {
		name     string
		data     any
		contains []string
	}{
		{
			name:     "player",
			data:     Player{ID: 1, Name: "Alice", Balance: 1500},
			contains: []string{"Player: Alice (#1)", "Balance: 1500"},
		},
		{
			name:     "empty player list",
			data:     []Player{},
			contains: []string{"No players"},
		},
		{
			name: "balance result",
			data: BalanceResult{
				Success:     true,
				Player:      Player{ID: 1, Name: "Alice", Balance: 1700},
				Transaction: Transaction{AmountDelta: "+200", Description: "Money added"},
			},
			contains: []string{"Alice: +200 (Money added)", "Balance: 1700"},
		},
		{
			name:     "sync result",
			data:     SyncResult{Full: true, DeletedPlayerIDs: []int64{3}, ServerTimestamp: 99},
			contains: []string{"Full sync", "Deleted players: [3]", "Server timestamp: 99"},
		},
		{
			name:     "changes result",
			data:     ChangesResult{HasChanges: false, ServerTimestamp: 5},
			contains: []string{"No changes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewOutput("text", &buf).Print(tt.data)
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	NewOutput("json", &buf).Print(Player{ID: 2, Name: "Bob", Balance: 10})

	var player Player
	require.NoError(t, json.Unmarshal(buf.Bytes(), &player))
	assert.Equal(t, Player{ID: 2, Name: "Bob", Balance: 10}, player)
}

func TestPrintMessageJSON(t *testing.T) {
	var buf bytes.Buffer
	NewOutput("json", &buf).PrintMessage("Deleted player 1")
	assert.JSONEq(t, `{"message":"Deleted player 1"}`, buf.String())
}
