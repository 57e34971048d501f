package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/ceremony/validation"
)

const ballotTOML = `
cindex = 7
community = "zurich"
meetup = 1

[[votes]]
account = "alice"
vote = 4
attested = ["bob", "charlie", "dave"]

[[votes]]
account = "bob"
vote = 4
attested = ["alice", "charlie", "dave", "mallory"]

[[votes]]
account = "charlie"
vote = 4
attested = ["alice", "bob", "dave"]

[[votes]]
account = "dave"
vote = 4
attested = ["alice", "bob", "charlie"]

[[votes]]
account = "trudy"
vote = 9
`

func TestBallotInputs(t *testing.T) {
	b, err := DecodeBallot(strings.NewReader(ballotTOML))
	require.NoError(t, err)
	require.Equal(t, uint64(1), b.Meetup)
	require.Len(t, b.Votes, 5)

	roster := []string{"alice", "bob", "charlie", "dave", "eve"}
	in := b.Inputs(roster)
	require.Equal(t, []int{0, 1, 2, 3, 4}, in.Participants)
	require.Equal(t, []uint32{4, 4, 4, 4, 0}, in.Votes)
	require.Equal(t, [][]int{{1, 2, 3}, {0, 2, 3}, {0, 1, 3}, {0, 1, 2}, {}}, in.Attestations)
	require.Equal(t, []string{"mallory", "trudy"}, in.Ignored)

	j, err := validation.ParticipantJudgements(in.Participants, in.Votes, in.Attestations, validation.DefaultThreshold)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3}, j.Legit)
	require.Equal(t, []validation.ExcludedParticipant{{Index: 4, Reason: validation.NoVote}}, j.Excluded)
}

func TestBallotValidate(t *testing.T) {
	_, err := DecodeBallot(strings.NewReader("meetup = 0\n"))
	require.ErrorIs(t, err, ErrInvalidBallot)

	_, err = DecodeBallot(strings.NewReader(`
meetup = 2
[[votes]]
account = "a"
vote = 3
[[votes]]
account = "a"
vote = 4
`))
	require.ErrorIs(t, err, ErrInvalidBallot)

	path := filepath.Join(t.TempDir(), "ballot.toml")
	require.NoError(t, os.WriteFile(path, []byte(ballotTOML), 0o600))
	b, err := LoadBallot(path)
	require.NoError(t, err)
	require.Equal(t, "zurich", b.Community)
}
