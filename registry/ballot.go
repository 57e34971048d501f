package registry

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/BurntSushi/toml"
)

// ErrInvalidBallot is returned for a ballot that cannot be judged.
var ErrInvalidBallot = errors.New("invalid ballot")

// Vote is what one participant submitted after a meetup: the number of
// participants they counted and the accounts they attested.
type Vote struct {
	Account  string   `toml:"account"`
	Vote     uint32   `toml:"vote"`
	Attested []string `toml:"attested"`
}

// Ballot collects the votes of one meetup.
type Ballot struct {
	Cindex    uint32 `toml:"cindex"`
	Community string `toml:"community"`
	Meetup    uint64 `toml:"meetup"`
	Votes     []Vote `toml:"votes"`
}

// LoadBallot reads and validates the ballot file at path.
func LoadBallot(path string) (*Ballot, error) {
	b := new(Ballot)
	if _, err := toml.DecodeFile(path, b); err != nil {
		return nil, fmt.Errorf("reading ballot %s: %w", path, err)
	}
	return b, b.Validate()
}

// DecodeBallot reads and validates a ballot from r.
func DecodeBallot(r io.Reader) (*Ballot, error) {
	b := new(Ballot)
	if _, err := toml.NewDecoder(r).Decode(b); err != nil {
		return nil, fmt.Errorf("decoding ballot: %w", err)
	}
	return b, b.Validate()
}

// Encode writes the ballot as TOML.
func (b *Ballot) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(b)
}

// Validate rejects ballots without a meetup index or with two votes from the
// same account.
func (b *Ballot) Validate() error {
	if b.Meetup == 0 {
		return fmt.Errorf("%w: meetup index starts at 1", ErrInvalidBallot)
	}
	seen := make(map[string]bool, len(b.Votes))
	for _, v := range b.Votes {
		if seen[v.Account] {
			return fmt.Errorf("%w: %s voted twice", ErrInvalidBallot, v.Account)
		}
		seen[v.Account] = true
	}
	return nil
}

// Inputs are the judgement inputs of a meetup: participants are positions in
// the roster, votes and attestations are aligned with them.
type Inputs struct {
	Participants []int
	Votes        []uint32
	Attestations [][]int
	// Ignored lists accounts named in the ballot that are not on the roster.
	Ignored []string
}

// Inputs maps the ballot onto the meetup roster. Roster members without a
// vote get a vote of zero and no attestations.
func (b *Ballot) Inputs(roster []string) *Inputs {
	pos := make(map[string]int, len(roster))
	for i, a := range roster {
		pos[a] = i
	}
	in := &Inputs{
		Participants: make([]int, len(roster)),
		Votes:        make([]uint32, len(roster)),
		Attestations: make([][]int, len(roster)),
	}
	for i := range roster {
		in.Participants[i] = i
		in.Attestations[i] = []int{}
	}
	ignored := make(map[string]bool)
	for _, v := range b.Votes {
		i, ok := pos[v.Account]
		if !ok {
			ignored[v.Account] = true
			continue
		}
		in.Votes[i] = v.Vote
		for _, a := range v.Attested {
			j, ok := pos[a]
			if !ok {
				ignored[a] = true
				continue
			}
			in.Attestations[i] = append(in.Attestations[i], j)
		}
	}
	for a := range ignored {
		in.Ignored = append(in.Ignored, a)
	}
	sort.Strings(in.Ignored)
	return in
}
