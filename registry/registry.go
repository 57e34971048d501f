// Package registry reads the registry snapshot of a ceremony cycle and the
// ballots submitted at its meetups. Both are TOML files where participants are
// named by account id; the package maps them to the local indices the
// assignment and judgement code work with.
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/drand/ceremony/assignment"
	"github.com/drand/ceremony/ceremony"
)

// ErrUnknownCommunity is returned when a community id is not in the snapshot.
var ErrUnknownCommunity = errors.New("unknown community")

// ErrInvalidSnapshot is returned by Validate.
var ErrInvalidSnapshot = errors.New("invalid registry snapshot")

// Community holds the registered participants of a community for one cycle,
// each category in registration order.
type Community struct {
	ID            string                `toml:"id"`
	Bootstrappers []string              `toml:"bootstrappers"`
	Reputables    []string              `toml:"reputables"`
	Endorsees     []string              `toml:"endorsees"`
	Newbies       []string              `toml:"newbies"`
	Locations     []assignment.Location `toml:"locations"`
}

// Snapshot is the registry state at the end of the registering phase.
type Snapshot struct {
	Cindex      uint32       `toml:"cindex"`
	Communities []*Community `toml:"communities"`
}

// LoadSnapshot reads and validates the snapshot file at path.
func LoadSnapshot(path string) (*Snapshot, error) {
	s := new(Snapshot)
	if _, err := toml.DecodeFile(path, s); err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	return s, s.Validate()
}

// DecodeSnapshot reads and validates a snapshot from r.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	s := new(Snapshot)
	if _, err := toml.NewDecoder(r).Decode(s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return s, s.Validate()
}

// Encode writes the snapshot as TOML.
func (s *Snapshot) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(s)
}

func (s *Snapshot) String() string {
	var b bytes.Buffer
	_ = s.Encode(&b)
	return b.String()
}

// Validate checks that community ids are unique and non empty and that no
// account is registered twice within a community.
func (s *Snapshot) Validate() error {
	seen := make(map[string]bool, len(s.Communities))
	for _, c := range s.Communities {
		if c == nil || c.ID == "" {
			return fmt.Errorf("%w: community without id", ErrInvalidSnapshot)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: community %s listed twice", ErrInvalidSnapshot, c.ID)
		}
		seen[c.ID] = true
		if err := c.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Community returns the community with the given id.
func (s *Snapshot) Community(id string) (*Community, error) {
	for _, c := range s.Communities {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCommunity, id)
}

// Sorted returns the communities ordered by id, the order in which a cycle
// consumes randomness.
func (s *Snapshot) Sorted() []*Community {
	out := make([]*Community, len(s.Communities))
	copy(out, s.Communities)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Community) validate() error {
	accounts := make(map[string]ceremony.Category)
	for _, cat := range ceremony.Categories {
		for _, a := range c.Accounts(cat) {
			if a == "" {
				return fmt.Errorf("%w: community %s: empty account id", ErrInvalidSnapshot, c.ID)
			}
			if prev, ok := accounts[a]; ok {
				return fmt.Errorf("%w: community %s: %s registered as %s and %s",
					ErrInvalidSnapshot, c.ID, a, prev, cat)
			}
			accounts[a] = cat
		}
	}
	for _, l := range c.Locations {
		if !l.Valid() {
			return fmt.Errorf("%w: community %s: location %s out of range", ErrInvalidSnapshot, c.ID, l)
		}
	}
	return nil
}

// Accounts returns the registered accounts of a category.
func (c *Community) Accounts(cat ceremony.Category) []string {
	switch cat {
	case ceremony.Bootstrapper:
		return c.Bootstrappers
	case ceremony.Reputable:
		return c.Reputables
	case ceremony.Endorsee:
		return c.Endorsees
	case ceremony.Newbie:
		return c.Newbies
	}
	return nil
}

// Registered returns the number of registered participants per category.
func (c *Community) Registered() ceremony.AssignmentCount {
	return ceremony.AssignmentCount{
		Bootstrappers: uint64(len(c.Bootstrappers)),
		Reputables:    uint64(len(c.Reputables)),
		Endorsees:     uint64(len(c.Endorsees)),
		Newbies:       uint64(len(c.Newbies)),
	}
}

// Account returns the account id registered at the participant's local index.
func (c *Community) Account(p ceremony.Participant) (string, error) {
	accounts := c.Accounts(p.Category)
	if p.Index == 0 || p.Index > uint64(len(accounts)) {
		return "", fmt.Errorf("community %s: no %s", c.ID, p)
	}
	return accounts[p.Index-1], nil
}

// Participant returns the category and local index of an account.
func (c *Community) Participant(account string) (ceremony.Participant, bool) {
	for _, cat := range ceremony.Categories {
		for i, a := range c.Accounts(cat) {
			if a == account {
				return ceremony.Participant{Category: cat, Index: uint64(i + 1)}, true
			}
		}
	}
	return ceremony.Participant{}, false
}

// Roster returns the account ids assigned to the one based meetup meetupIdx,
// in roster order.
func (c *Community) Roster(a *ceremony.CommunityAssignment, meetupIdx uint64) ([]string, error) {
	participants, err := a.MeetupParticipants(meetupIdx)
	if err != nil {
		return nil, err
	}
	roster := make([]string, 0, len(participants))
	for _, p := range participants {
		account, err := c.Account(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ceremony.ErrGetMeetupParticipants, err)
		}
		roster = append(roster, account)
	}
	return roster, nil
}
