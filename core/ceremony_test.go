package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	clock "github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/drand/ceremony/assignment"
	"github.com/drand/ceremony/beacon"
	"github.com/drand/ceremony/ceremony"
	"github.com/drand/ceremony/metrics"
	"github.com/drand/ceremony/registry"
	"github.com/drand/ceremony/store"
	"github.com/drand/ceremony/store/memdb"
	"github.com/drand/ceremony/test"
	"github.com/drand/ceremony/validation"
)

func accounts(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

var zurich = assignment.Location{Lat: 47.3769, Lon: 8.5417}

// snapshot holds one community with a single meetup, one with two and one
// that is skipped.
func snapshot(cindex uint32) *registry.Snapshot {
	return &registry.Snapshot{
		Cindex: cindex,
		Communities: []*registry.Community{
			{
				ID:            "zurich",
				Bootstrappers: accounts("zb", 3),
				Reputables:    accounts("zr", 4),
				Newbies:       accounts("zn", 3),
				Locations:     []assignment.Location{zurich},
			},
			{
				ID:            "bern",
				Bootstrappers: accounts("bb", 3),
				Reputables:    accounts("br", 12),
				Endorsees:     accounts("be", 2),
				Newbies:       accounts("bn", 4),
				Locations:     []assignment.Location{{Lat: 46.948, Lon: 7.4474}, {Lat: 46.95, Lon: 7.44}},
			},
			{
				ID:            "basel",
				Bootstrappers: accounts("sb", 2),
				Locations:     []assignment.Location{{Lat: 47.5596, Lon: 7.5886}},
			},
		},
	}
}

func newCeremony(t *testing.T, opts ...ConfigOption) *Ceremony {
	opts = append([]ConfigOption{
		WithLogger(test.Logger(t)),
		WithSource(beacon.NewStaticSource([]byte("ceremony test"))),
		WithStore(memdb.NewStore()),
		WithClock(clock.NewFakeClock()),
	}, opts...)
	return NewCeremony(NewConfig(opts...))
}

func TestAssignCycle(t *testing.T) {
	ctx := context.Background()
	c := newCeremony(t)
	assigned := testutil.ToFloat64(metrics.CommunitiesAssigned)

	res, err := c.AssignCycle(ctx, 3, snapshot(3))
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)
	require.Equal(t, []string{"basel"}, res.Skipped)
	require.Len(t, res.Assignments, 2)
	require.Equal(t, "bern", res.Assignments[0].Community)
	require.Equal(t, "zurich", res.Assignments[1].Community)
	require.Equal(t, assigned+2, testutil.ToFloat64(metrics.CommunitiesAssigned))

	z := res.Assignments[1]
	require.Equal(t, uint64(1), z.MeetupCount)
	require.Equal(t, ceremony.AssignmentCount{Bootstrappers: 3, Reputables: 4, Newbies: 3}, z.Count)
	b := res.Assignments[0]
	require.Equal(t, uint64(2), b.MeetupCount)

	ids, err := c.Communities(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"bern", "zurich"}, ids)

	stored, err := c.Config().Store().Assignment(ctx, 3, "zurich")
	require.NoError(t, err)
	require.Equal(t, z.Digest(), stored.Digest())
}

func TestAssignCycleDeterministic(t *testing.T) {
	ctx := context.Background()
	r1, err := newCeremony(t).AssignCycle(ctx, 5, snapshot(5))
	require.NoError(t, err)

	// file order does not matter
	s := snapshot(5)
	s.Communities[0], s.Communities[2] = s.Communities[2], s.Communities[0]
	r2, err := newCeremony(t).AssignCycle(ctx, 5, s)
	require.NoError(t, err)
	require.Equal(t, r1.Seed, r2.Seed)
	require.Len(t, r2.Assignments, len(r1.Assignments))
	for i := range r1.Assignments {
		require.Equal(t, r1.Assignments[i].Digest(), r2.Assignments[i].Digest())
	}

	// another cycle gets another seed
	r3, err := newCeremony(t).AssignCycle(ctx, 6, snapshot(6))
	require.NoError(t, err)
	require.NotEqual(t, r1.Seed, r3.Seed)
}

func TestAssignCycleFailuresAreIsolated(t *testing.T) {
	ctx := context.Background()
	ref, err := newCeremony(t).AssignCycle(ctx, 2, snapshot(2))
	require.NoError(t, err)

	s := snapshot(2)
	// sorts before every other community, has no location
	s.Communities = append(s.Communities, &registry.Community{
		ID:            "aarau",
		Bootstrappers: accounts("ab", 5),
	})
	res, err := newCeremony(t).AssignCycle(ctx, 2, s)
	require.Error(t, err)
	require.ErrorIs(t, err, ceremony.ErrNoLocationsAvailable)
	require.Len(t, res.Assignments, 2)
	for i := range ref.Assignments {
		require.Equal(t, ref.Assignments[i].Digest(), res.Assignments[i].Digest())
	}
}

func TestAssignCycleInputs(t *testing.T) {
	ctx := context.Background()
	_, err := newCeremony(t).AssignCycle(ctx, 4, snapshot(3))
	require.ErrorIs(t, err, ErrWrongCycle)

	c := NewCeremony(NewConfig(WithLogger(test.Logger(t))))
	_, err = c.AssignCycle(ctx, 3, snapshot(3))
	require.ErrorIs(t, err, ErrNoSource)
}

func TestMeetups(t *testing.T) {
	ctx := context.Background()
	sched := &beacon.Schedule{
		CeremonyGenesis: time.Unix(1600000000, 0),
		CyclePeriod:     10 * 24 * time.Hour,
	}
	c := newCeremony(t, WithSchedule(sched, 7*24*time.Hour))
	_, err := c.AssignCycle(ctx, 1, snapshot(1))
	require.NoError(t, err)

	meetups, err := c.Meetups(ctx, 1, "zurich", snapshot(1))
	require.NoError(t, err)
	require.Len(t, meetups, 1)
	m := meetups[0]
	require.Equal(t, uint64(1), m.Index)
	require.Equal(t, zurich, m.Location)
	// attesting starts 17 days after genesis, zurich is 172 degrees west of +180
	require.Equal(t, uint64(1601468800000+172*240000), m.Time)
	want := append(append(accounts("zb", 3), accounts("zr", 4)...), accounts("zn", 3)...)
	require.Equal(t, want, m.Participants)

	meetups, err = c.Meetups(ctx, 1, "bern", snapshot(1))
	require.NoError(t, err)
	require.Len(t, meetups, 2)
	require.Len(t, append(meetups[0].Participants, meetups[1].Participants...), 20)

	_, err = c.Meetups(ctx, 1, "basel", snapshot(1))
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = c.Meetups(ctx, 1, "geneva", snapshot(1))
	require.ErrorIs(t, err, registry.ErrUnknownCommunity)

	unscheduled := newCeremony(t, WithMeetupTimeOffset(-time.Hour))
	_, err = unscheduled.AssignCycle(ctx, 1, snapshot(1))
	require.NoError(t, err)
	meetups, err = unscheduled.Meetups(ctx, 1, "zurich", snapshot(1))
	require.NoError(t, err)
	require.Zero(t, meetups[0].Time)
}

// zurichBallot has nine participants of the zurich meetup vote 10 and attest
// each other while the last newbie votes 9.
func zurichBallot(cindex uint32) *registry.Ballot {
	present := append(append(accounts("zb", 3), accounts("zr", 4)...), accounts("zn", 2)...)
	b := &registry.Ballot{Cindex: cindex, Community: "zurich", Meetup: 1}
	for _, a := range present {
		var attested []string
		for _, o := range present {
			if o != a {
				attested = append(attested, o)
			}
		}
		b.Votes = append(b.Votes, registry.Vote{Account: a, Vote: 10, Attested: attested})
	}
	b.Votes = append(b.Votes, registry.Vote{Account: "zn3", Vote: 9, Attested: present})
	return b
}

func TestJudge(t *testing.T) {
	ctx := context.Background()
	c := newCeremony(t)
	_, err := c.AssignCycle(ctx, 1, snapshot(1))
	require.NoError(t, err)
	wrong := testutil.ToFloat64(metrics.Exclusions.WithLabelValues(validation.WrongVote.String()))

	j, err := c.Judge(ctx, 1, "zurich", snapshot(1), zurichBallot(1))
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, j.Judgement.Legit)
	require.Equal(t, []validation.ExcludedParticipant{{Index: 9, Reason: validation.WrongVote}}, j.Judgement.Excluded)
	require.False(t, j.Judgement.EarlyRewardsPossible)
	require.Equal(t, wrong+1, testutil.ToFloat64(metrics.Exclusions.WithLabelValues(validation.WrongVote.String())))

	stored, err := c.Config().Store().Judgement(ctx, 1, "zurich", 1)
	require.NoError(t, err)
	require.Equal(t, j, stored)

	other := zurichBallot(2)
	_, err = c.Judge(ctx, 1, "zurich", snapshot(1), other)
	require.ErrorIs(t, err, ErrWrongCycle)

	empty := &registry.Ballot{Meetup: 1}
	_, err = c.Judge(ctx, 1, "zurich", snapshot(1), empty)
	require.ErrorIs(t, err, validation.ErrBallotEmpty)
}

func TestIssueRewards(t *testing.T) {
	ctx := context.Background()
	var rewards []*Reward
	rewarder := RewarderFunc(func(_ context.Context, r *Reward) error {
		rewards = append(rewards, r)
		return nil
	})
	c := newCeremony(t, WithRewarder(rewarder))
	_, err := c.AssignCycle(ctx, 1, snapshot(1))
	require.NoError(t, err)

	res, err := c.IssueRewards(ctx, 1, "zurich", snapshot(1), []*registry.Ballot{zurichBallot(1)})
	require.NoError(t, err)
	require.Empty(t, res.Undependable)
	require.Len(t, rewards, 1)
	require.Equal(t, res.Rewards, rewards)
	require.Equal(t, append(append(accounts("zb", 3), accounts("zr", 4)...), accounts("zn", 2)...), rewards[0].Accounts)

	res, err = c.IssueRewards(ctx, 1, "bern", snapshot(1), nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, res.Undependable)
	require.Empty(t, res.Rewards)

	_, err = c.IssueRewards(ctx, 1, "zurich", snapshot(1), []*registry.Ballot{{Meetup: 2}})
	require.ErrorIs(t, err, ceremony.ErrGetMeetupParticipants)
	_, err = c.IssueRewards(ctx, 1, "zurich", snapshot(1), []*registry.Ballot{zurichBallot(1), zurichBallot(1)})
	require.ErrorIs(t, err, registry.ErrInvalidBallot)
}

func TestIssueRewardsSinglePass(t *testing.T) {
	ctx := context.Background()
	c := newCeremony(t, WithSinglePass())
	_, err := c.AssignCycle(ctx, 1, snapshot(1))
	require.NoError(t, err)
	res, err := c.IssueRewards(ctx, 1, "zurich", snapshot(1), []*registry.Ballot{zurichBallot(1)})
	require.NoError(t, err)
	require.Len(t, res.Rewards, 1)
	require.Len(t, res.Rewards[0].Accounts, 9)
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	c := newCeremony(t, WithReputationLifetime(2))
	for cindex := uint32(1); cindex <= 4; cindex++ {
		_, err := c.AssignCycle(ctx, cindex, snapshot(cindex))
		require.NoError(t, err)
	}
	_, err := c.Judge(ctx, 1, "zurich", snapshot(1), zurichBallot(1))
	require.NoError(t, err)

	n, err := c.Purge(ctx, 2)
	require.NoError(t, err)
	require.Zero(t, n)

	// cycle 1: two assignments and one judgement
	n, err = c.Purge(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	ids, err := c.Communities(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, ids)
	ids, err = c.Communities(ctx, 2)
	require.NoError(t, err)
	require.Len(t, ids, 2)
}
