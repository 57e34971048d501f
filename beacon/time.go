package beacon

import (
	"math"
	"time"
)

// TimeOfRound returns the unix time at which round is produced. Round 1 is
// produced at genesis.
func TimeOfRound(period time.Duration, genesis int64, round uint64) int64 {
	if round == 0 {
		return genesis
	}
	secs := uint64(period.Seconds())
	if secs == 0 {
		return genesis
	}
	if round-1 > uint64(math.MaxInt64-genesis)/secs {
		return math.MaxInt64
	}
	// - 1 because genesis time is for 1st round already
	return genesis + int64((round-1)*secs)
}

// CurrentRound returns the latest round produced at `now`, or 0 before genesis.
func CurrentRound(now int64, period time.Duration, genesis int64) uint64 {
	if now < genesis {
		return 0
	}
	secs := int64(period.Seconds())
	if secs <= 0 {
		return 1
	}
	return uint64((now-genesis)/secs) + 1
}

// NextRound returns the next upcoming round and its UNIX time given the genesis
// time and the period.
func NextRound(now int64, period time.Duration, genesis int64) (nextRound uint64, nextTime int64) {
	next := CurrentRound(now, period, genesis) + 1
	return next, TimeOfRound(period, genesis, next)
}
