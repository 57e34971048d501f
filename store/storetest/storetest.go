// Package storetest holds the behaviour every store.Store implementation is
// tested against.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/ceremony/assignment"
	"github.com/drand/ceremony/ceremony"
	"github.com/drand/ceremony/store"
	"github.com/drand/ceremony/validation"
)

// NewAssignment returns a small assignment of community cid in cycle cindex.
func NewAssignment(cindex uint32, cid string) *ceremony.CommunityAssignment {
	return &ceremony.CommunityAssignment{
		Cindex:      cindex,
		Community:   cid,
		Count:       ceremony.AssignmentCount{Bootstrappers: 3, Reputables: 4, Newbies: 2},
		MeetupCount: 1,
		Params: ceremony.Assignment{
			BootstrappersReputables: assignment.Params{M: 7, S1: 3, S2: 5},
			Newbies:                 assignment.Params{M: 2, S1: 1, S2: 1},
			Locations:               assignment.Params{M: 1, S1: 1, S2: 0},
		},
	}
}

// NewJudgement returns a judgement of one meetup with a single excluded participant.
func NewJudgement(cindex uint32, cid string, meetup uint64) *store.MeetupJudgement {
	return &store.MeetupJudgement{
		Cindex:    cindex,
		Community: cid,
		Meetup:    meetup,
		Roster:    []string{"alice", "bob", "charlie", "dave"},
		Judgement: validation.Judgement{
			Legit:    []int{0, 1, 3},
			Excluded: []validation.ExcludedParticipant{{Index: 2, Reason: validation.WrongVote}},
		},
	}
}

// Run exercises s. It must be empty.
func Run(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Assignment(ctx, 1, "a")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Judgement(ctx, 1, "a", 1)
	require.ErrorIs(t, err, store.ErrNotFound)

	for cindex := uint32(1); cindex <= 3; cindex++ {
		// "ab" shares a key prefix with "a"
		for _, cid := range []string{"b", "a", "ab"} {
			require.NoError(t, s.PutAssignment(ctx, NewAssignment(cindex, cid)))
			for m := uint64(3); m >= 1; m-- {
				require.NoError(t, s.PutJudgement(ctx, NewJudgement(cindex, cid, m)))
			}
		}
	}

	a, err := s.Assignment(ctx, 2, "ab")
	require.NoError(t, err)
	require.Equal(t, NewAssignment(2, "ab"), a)
	require.Equal(t, NewAssignment(2, "ab").Digest(), a.Digest())

	all, err := s.Assignments(ctx, 2)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, cid := range []string{"a", "ab", "b"} {
		require.Equal(t, cid, all[i].Community)
		require.Equal(t, uint32(2), all[i].Cindex)
	}

	j, err := s.Judgement(ctx, 3, "a", 2)
	require.NoError(t, err)
	require.Equal(t, NewJudgement(3, "a", 2), j)
	require.Equal(t, []string{"alice", "bob", "dave"}, j.Legit())

	js, err := s.Judgements(ctx, 3, "a")
	require.NoError(t, err)
	require.Len(t, js, 3)
	for i, j := range js {
		require.Equal(t, "a", j.Community)
		require.Equal(t, uint64(i+1), j.Meetup)
	}

	// overwrite
	updated := NewAssignment(1, "a")
	updated.MeetupCount = 2
	require.NoError(t, s.PutAssignment(ctx, updated))
	a, err = s.Assignment(ctx, 1, "a")
	require.NoError(t, err)
	require.Equal(t, uint64(2), a.MeetupCount)

	// cycles 1 and 2: 3 assignments and 9 judgements each
	deleted, err := s.Purge(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 24, deleted)
	_, err = s.Assignment(ctx, 2, "a")
	require.ErrorIs(t, err, store.ErrNotFound)
	all, err = s.Assignments(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, all)
	all, err = s.Assignments(ctx, 3)
	require.NoError(t, err)
	require.Len(t, all, 3)

	deleted, err = s.Purge(ctx, 3)
	require.NoError(t, err)
	require.Zero(t, deleted)
}
