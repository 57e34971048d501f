package beacon

import (
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Source provides the seed of a ceremony cycle. Every community of the cycle
// is assigned from the same seed.
type Source interface {
	Seed(ctx context.Context, cindex uint32) ([]byte, error)
}

// Fetcher returns verified beacons of one chain.
type Fetcher interface {
	Get(ctx context.Context, round uint64) (*Beacon, error)
}

// StaticSource derives seeds from a fixed secret, for dry runs and tests.
type StaticSource struct {
	secret []byte
}

// NewStaticSource returns a StaticSource over secret.
func NewStaticSource(secret []byte) *StaticSource {
	return &StaticSource{secret: secret}
}

// Seed returns blake2b-256(secret || cindex).
func (s *StaticSource) Seed(_ context.Context, cindex uint32) ([]byte, error) {
	buf := make([]byte, len(s.secret)+4)
	copy(buf, s.secret)
	binary.BigEndian.PutUint32(buf[len(s.secret):], cindex)
	seed := blake2b.Sum256(buf)
	return seed[:], nil
}

// ChainSource seeds each cycle with the drand round current when the cycle
// enters its assigning phase.
type ChainSource struct {
	fetcher  Fetcher
	schedule *Schedule
}

// NewChainSource returns a Source reading beacons from f.
func NewChainSource(f Fetcher, s *Schedule) *ChainSource {
	return &ChainSource{fetcher: f, schedule: s}
}

// Seed implements Source.
func (c *ChainSource) Seed(ctx context.Context, cindex uint32) ([]byte, error) {
	round, err := c.schedule.RoundOfCeremony(cindex)
	if err != nil {
		return nil, err
	}
	b, err := c.fetcher.Get(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("fetching round %d for ceremony %d: %w", round, cindex, err)
	}
	return b.Seed(), nil
}
