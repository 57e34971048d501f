package beacon

import (
	"errors"
	"time"
)

// ErrBeforeGenesis is returned for a ceremony scheduled before the first
// round of the chain.
var ErrBeforeGenesis = errors.New("ceremony starts before chain genesis")

// Schedule maps ceremony cycles to drand rounds. Cycle cindex enters its
// assigning phase at CeremonyGenesis + cindex*CyclePeriod, and is seeded with
// the round current at that time.
type Schedule struct {
	CeremonyGenesis time.Time
	CyclePeriod     time.Duration
	Chain           *Info
}

// TimeOfCeremony returns the start of the assigning phase of cycle cindex.
func (s *Schedule) TimeOfCeremony(cindex uint32) time.Time {
	return s.CeremonyGenesis.Add(time.Duration(cindex) * s.CyclePeriod)
}

// CurrentCeremony returns the cycle running at t, 0 before the first one.
func (s *Schedule) CurrentCeremony(t time.Time) uint32 {
	if s.CyclePeriod <= 0 || t.Before(s.CeremonyGenesis) {
		return 0
	}
	return uint32(t.Sub(s.CeremonyGenesis) / s.CyclePeriod)
}

// RoundAt returns the latest round of the chain produced at t.
func (s *Schedule) RoundAt(t time.Time) uint64 {
	return CurrentRound(t.Unix(), s.Chain.Period, s.Chain.GenesisTime)
}

// RoundOfCeremony returns the round seeding cycle cindex.
func (s *Schedule) RoundOfCeremony(cindex uint32) (uint64, error) {
	r := s.RoundAt(s.TimeOfCeremony(cindex))
	if r == 0 {
		return 0, ErrBeforeGenesis
	}
	return r, nil
}
