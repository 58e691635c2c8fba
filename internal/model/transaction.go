package model

import (
	"fmt"
	"strconv"
)

// HistoryRetention is the number of transactions kept per player
const HistoryRetention = 50

// TransactionID uniquely identifies a transaction across all players
type TransactionID int64

// DeltaKind identifies how a transaction changed a balance
type DeltaKind string

const (
	DeltaCredit DeltaKind = "credit" // balance increased by Amount
	DeltaDebit  DeltaKind = "debit"  // balance decreased by Amount
	DeltaSetTo  DeltaKind = "set"    // balance replaced with Amount
)

// Delta is the change a transaction applied. Amount is never negative; the
// direction is carried by Kind.
type Delta struct {
	Kind   DeltaKind
	Amount int64
}

// Credit returns a delta adding n
func Credit(n int64) Delta { return Delta{Kind: DeltaCredit, Amount: n} }

// Debit returns a delta removing n
func Debit(n int64) Delta { return Delta{Kind: DeltaDebit, Amount: n} }

// SetTo returns a delta replacing the balance with n
func SetTo(n int64) Delta { return Delta{Kind: DeltaSetTo, Amount: n} }

// DeltaFor returns the credit or debit delta for a signed adjustment
func DeltaFor(signed int64) Delta {
	if signed < 0 {
		return Debit(-signed)
	}
	return Credit(signed)
}

// Valid reports whether the delta has a known kind and a non-negative amount
func (d Delta) Valid() bool {
	switch d.Kind {
	case DeltaCredit, DeltaDebit, DeltaSetTo:
		return d.Amount >= 0
	}
	return false
}

// String renders the delta for display: +n, -n or =n
func (d Delta) String() string {
	amount := strconv.FormatInt(d.Amount, 10)
	switch d.Kind {
	case DeltaCredit:
		return "+" + amount
	case DeltaDebit:
		return "-" + amount
	case DeltaSetTo:
		return "=" + amount
	}
	return amount
}

// Transaction is an immutable audit entry for a balance change
type Transaction struct {
	ID           TransactionID
	PlayerID     PlayerID
	Delta        Delta
	BalanceAfter int64
	Description  string
	Timestamp    Stamp
}

// Default descriptions per operation
const (
	DescriptionCreated    = "Player created"
	DescriptionCredit     = "Money added"
	DescriptionDebit      = "Money subtracted"
	DescriptionSetBalance = "Balance set"
)

// DescribeAdjustment returns description, or the default label for the delta
func DescribeAdjustment(description string, delta Delta) string {
	if description != "" {
		return description
	}
	switch delta.Kind {
	case DeltaCredit:
		return DescriptionCredit
	case DeltaDebit:
		return DescriptionDebit
	default:
		return DescriptionSetBalance
	}
}

// DescribeSet returns the description for a set-balance entry, always noting
// the balance it replaced.
func DescribeSet(description string, prior int64) string {
	if description == "" {
		description = DescriptionSetBalance
	}
	return fmt.Sprintf("%s (was %d)", description, prior)
}
