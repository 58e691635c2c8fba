package model

// PlayerID uniquely identifies a player within a ledger. IDs are assigned by
// the store and never reused.
type PlayerID int64

// Player is a participant holding a balance
type Player struct {
	ID          PlayerID
	Name        string
	Balance     int64 // never negative
	LastUpdated Stamp // latest mutation, including creation
	CreatedAt   Stamp
}

// Tombstone marks a deleted player so incremental sync can report it
type Tombstone struct {
	PlayerID  PlayerID
	DeletedAt Stamp
}
