package beacon_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	clock "github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/drand/ceremony/beacon"
	"github.com/drand/ceremony/test"
)

func TestBeaconVerify(t *testing.T) {
	for _, chained := range []bool{true, false} {
		c := test.NewChain(t, 30*time.Second, 1595431050, chained)
		v := c.Info.Verifier()
		for r := uint64(1); r <= 3; r++ {
			b := c.Beacon(t, r)
			require.NoError(t, v.VerifyBeacon(b, c.Info.PublicKey))
			require.Equal(t, b.Randomness, b.Seed())
		}

		forged := *c.Beacon(t, 3)
		forged.Round = 4
		require.Error(t, v.VerifyBeacon(&forged, c.Info.PublicKey))

		other := test.NewChain(t, 30*time.Second, 1595431050, chained)
		require.Error(t, v.VerifyBeacon(c.Beacon(t, 2), other.Info.PublicKey))
	}
}

func TestBeaconMarshal(t *testing.T) {
	c := test.NewChain(t, 3*time.Second, 1000, true)
	b := c.Beacon(t, 2)
	buf, err := b.Marshal()
	require.NoError(t, err)
	var back beacon.Beacon
	require.NoError(t, back.Unmarshal(buf))
	require.True(t, b.Equal(&back))
	require.Contains(t, b.String(), "round: 2")
}

func TestInfoJSON(t *testing.T) {
	c := test.NewChain(t, 30*time.Second, 1595431050, true)
	var buf bytes.Buffer
	require.NoError(t, c.Info.ToJSON(&buf))
	info, err := beacon.InfoFromJSON(&buf)
	require.NoError(t, err)
	require.True(t, c.Info.Equal(info))
	require.Equal(t, c.Info.Hash(), info.Hash())
	require.True(t, info.Chained())

	unchained := test.NewChain(t, 3*time.Second, 1595431050, false)
	require.False(t, unchained.Info.Chained())
	require.NotEqual(t, c.Info.HashString(), unchained.Info.HashString())

	_, err = beacon.InfoFromJSON(bytes.NewBufferString("{}"))
	require.Error(t, err)
}

func TestRounds(t *testing.T) {
	clk := clock.NewFakeClock()
	period := 2 * time.Second
	// first round one second from now
	genesis := clk.Now().Add(time.Second).Unix()
	require.Equal(t, uint64(0), beacon.CurrentRound(clk.Now().Unix(), period, genesis))

	clk.Advance(time.Second)
	require.Equal(t, uint64(1), beacon.CurrentRound(clk.Now().Unix(), period, genesis))
	next, nextTime := beacon.NextRound(clk.Now().Unix(), period, genesis)
	require.Equal(t, uint64(2), next)
	require.Equal(t, genesis+2, nextTime)

	clk.Advance(3 * time.Second)
	require.Equal(t, uint64(2), beacon.CurrentRound(clk.Now().Unix(), period, genesis))
	require.Equal(t, genesis+4, beacon.TimeOfRound(period, genesis, 3))
	require.Equal(t, genesis, beacon.TimeOfRound(period, genesis, 0))
}

func TestSchedule(t *testing.T) {
	genesis := time.Date(2022, 12, 19, 0, 0, 0, 0, time.UTC)
	chain := test.NewChain(t, 30*time.Second, genesis.Unix(), true)
	s := &beacon.Schedule{CeremonyGenesis: genesis, CyclePeriod: 24 * time.Hour, Chain: chain.Info}

	require.Equal(t, genesis.Add(48*time.Hour), s.TimeOfCeremony(2))
	require.Equal(t, uint32(0), s.CurrentCeremony(genesis.Add(-time.Hour)))
	require.Equal(t, uint32(2), s.CurrentCeremony(genesis.Add(50*time.Hour)))

	r, err := s.RoundOfCeremony(1)
	require.NoError(t, err)
	require.Equal(t, uint64(24*3600/30+1), r)

	late := &beacon.Schedule{CeremonyGenesis: genesis.Add(-time.Hour), CyclePeriod: time.Hour, Chain: chain.Info}
	_, err = late.RoundOfCeremony(0)
	require.ErrorIs(t, err, beacon.ErrBeforeGenesis)
}

type mapFetcher map[uint64]*beacon.Beacon

func (m mapFetcher) Get(_ context.Context, round uint64) (*beacon.Beacon, error) {
	b, ok := m[round]
	if !ok {
		return nil, context.DeadlineExceeded
	}
	return b, nil
}

func TestSources(t *testing.T) {
	ctx := context.Background()
	s := beacon.NewStaticSource([]byte("secret"))
	s1, err := s.Seed(ctx, 1)
	require.NoError(t, err)
	s1b, _ := s.Seed(ctx, 1)
	s2, _ := s.Seed(ctx, 2)
	require.Len(t, s1, 32)
	require.Equal(t, s1, s1b)
	require.NotEqual(t, s1, s2)

	genesis := time.Unix(1000, 0)
	chain := test.NewChain(t, 10*time.Second, genesis.Unix(), true)
	sched := &beacon.Schedule{CeremonyGenesis: genesis, CyclePeriod: time.Minute, Chain: chain.Info}
	src := beacon.NewChainSource(mapFetcher{7: chain.Beacon(t, 7)}, sched)
	seed, err := src.Seed(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, chain.Beacon(t, 7).Seed(), seed)

	_, err = src.Seed(ctx, 2)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
