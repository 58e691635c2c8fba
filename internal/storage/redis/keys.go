package redis

import (
	"fmt"

	"github.com/mcoot/gamebank/internal/model"
)

// Key prefix for all ledger data
const keyPrefix = "gamebank"

// Key generation functions for each entity type

// clockKey holds the last stamp issued by the ledger clock.
// Every write sets it, so watching it detects any concurrent write.
func clockKey() string {
	return fmt.Sprintf("%s:clock", keyPrefix)
}

// playerSeqKey holds the last assigned player id
func playerSeqKey() string {
	return fmt.Sprintf("%s:seq:player", keyPrefix)
}

// transactionSeqKey holds the last assigned transaction id
func transactionSeqKey() string {
	return fmt.Sprintf("%s:seq:tx", keyPrefix)
}

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%d", keyPrefix, id)
}

// playersIndexKey returns the ZSET of live player ids, scored by id
func playersIndexKey() string {
	return fmt.Sprintf("%s:idx:players", keyPrefix)
}

// updatedIndexKey returns the ZSET of live player ids, scored by LastUpdated
func updatedIndexKey() string {
	return fmt.Sprintf("%s:idx:updated", keyPrefix)
}

// historyKey returns the ZSET of a player's transactions, scored by id
func historyKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:history:%d", keyPrefix, id)
}

// tombstonesKey returns the ZSET of deleted player ids, scored by deletion stamp
func tombstonesKey() string {
	return fmt.Sprintf("%s:tombstones", keyPrefix)
}
