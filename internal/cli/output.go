package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case []Player:
		o.printPlayers(v)
	case []Transaction:
		o.printTransactions(v)
	case BalanceResult:
		o.printBalanceResult(v)
	case SyncResult:
		o.printSyncResult(v)
	case ChangesResult:
		o.printChangesResult(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Balance     int64  `json:"balance"`
	LastUpdated int64  `json:"lastUpdated"`
	CreatedAt   int64  `json:"createdAt"`
}

// Delta response type
type Delta struct {
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
}

// Transaction response type
type Transaction struct {
	ID           int64  `json:"id"`
	PlayerID     int64  `json:"playerId"`
	Delta        Delta  `json:"delta"`
	AmountDelta  string `json:"amountDelta"`
	BalanceAfter int64  `json:"balanceAfter"`
	Description  string `json:"description"`
	Timestamp    int64  `json:"timestamp"`
}

// BalanceResult is returned by add, subtract and set
type BalanceResult struct {
	Success     bool        `json:"success"`
	Player      Player      `json:"player"`
	Transaction Transaction `json:"transaction"`
}

// SyncResult response type
type SyncResult struct {
	Players          []Player      `json:"players"`
	Transactions     []Transaction `json:"transactions"`
	DeletedPlayerIDs []int64       `json:"deletedPlayerIds"`
	ServerTimestamp  int64         `json:"serverTimestamp"`
	Full             bool          `json:"full"`
}

// ChangesResult response type
type ChangesResult struct {
	HasChanges      bool  `json:"hasChanges"`
	ServerTimestamp int64 `json:"serverTimestamp"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printPlayer(p Player) {
	_, _ = fmt.Fprintf(o.w, "Player: %s (#%d)\n", p.Name, p.ID)
	_, _ = fmt.Fprintf(o.w, "Balance: %d\n", p.Balance)
	_, _ = fmt.Fprintf(o.w, "Updated: %s\n", formatStamp(p.LastUpdated))
}

func (o *Output) printPlayers(players []Player) {
	if len(players) == 0 {
		_, _ = fmt.Fprintln(o.w, "No players")
		return
	}
	for _, p := range players {
		_, _ = fmt.Fprintf(o.w, "#%-4d %-24s %10d\n", p.ID, p.Name, p.Balance)
	}
}

func (o *Output) printTransactions(transactions []Transaction) {
	if len(transactions) == 0 {
		_, _ = fmt.Fprintln(o.w, "No transactions")
		return
	}
	for _, t := range transactions {
		_, _ = fmt.Fprintf(o.w, "%s  %-8s -> %-8d %s\n",
			formatStamp(t.Timestamp), t.AmountDelta, t.BalanceAfter, t.Description)
	}
}

func (o *Output) printBalanceResult(b BalanceResult) {
	_, _ = fmt.Fprintf(o.w, "%s: %s (%s)\n", b.Player.Name, b.Transaction.AmountDelta, b.Transaction.Description)
	_, _ = fmt.Fprintf(o.w, "Balance: %d\n", b.Player.Balance)
}

func (o *Output) printSyncResult(s SyncResult) {
	if s.Full {
		_, _ = fmt.Fprintln(o.w, "Full sync")
	}
	_, _ = fmt.Fprintf(o.w, "Players changed: %d\n", len(s.Players))
	for _, p := range s.Players {
		_, _ = fmt.Fprintf(o.w, "  - %s (#%d): %d\n", p.Name, p.ID, p.Balance)
	}
	_, _ = fmt.Fprintf(o.w, "Transactions: %d\n", len(s.Transactions))
	if len(s.DeletedPlayerIDs) > 0 {
		_, _ = fmt.Fprintf(o.w, "Deleted players: %v\n", s.DeletedPlayerIDs)
	}
	_, _ = fmt.Fprintf(o.w, "Server timestamp: %d\n", s.ServerTimestamp)
}

func (o *Output) printChangesResult(c ChangesResult) {
	if c.HasChanges {
		_, _ = fmt.Fprintln(o.w, "Changes available")
	} else {
		_, _ = fmt.Fprintln(o.w, "No changes")
	}
	_, _ = fmt.Fprintf(o.w, "Server timestamp: %d\n", c.ServerTimestamp)
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
}

func formatStamp(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
