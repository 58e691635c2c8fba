package model

import "time"

// Stamp is a point on the ledger clock, in milliseconds since the Unix epoch.
//
// The ledger clock is strictly monotonic: every mutation is stamped after the
// previous mutation and after every watermark already handed to a client, so
// comparing against a watermark never misses or repeats a change.
type Stamp int64

// StampOf converts a wall clock time to a Stamp
func StampOf(t time.Time) Stamp {
	return Stamp(t.UnixMilli())
}

// Time returns the Stamp as a time.Time
func (s Stamp) Time() time.Time {
	return time.UnixMilli(int64(s))
}

// NextStamp returns the stamp for a mutation happening at now, given the last
// stamp issued by the ledger.
func NextStamp(last Stamp, now time.Time) Stamp {
	next := StampOf(now)
	if next <= last {
		next = last + 1
	}
	return next
}

// WatermarkStamp returns the watermark to hand out at now. The result is never
// behind last, and once recorded as last it forces later mutations past it.
func WatermarkStamp(last Stamp, now time.Time) Stamp {
	mark := StampOf(now)
	if mark < last {
		mark = last
	}
	return mark
}
