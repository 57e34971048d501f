// Package ceremony holds the per cycle assignment of a community: how many
// participants of each category get a seat, how many meetups are opened and
// the partition parameters placing every seated participant into a meetup.
package ceremony

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/drand/ceremony/assignment"
)

// Category is the trust level of a participant.
type Category int

const (
	Bootstrapper Category = iota
	Reputable
	Endorsee
	Newbie
)

// Categories lists every category in assignment order.
var Categories = []Category{Bootstrapper, Reputable, Endorsee, Newbie}

var categoryNames = map[Category]string{
	Bootstrapper: "bootstrapper",
	Reputable:    "reputable",
	Endorsee:     "endorsee",
	Newbie:       "newbie",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	s, ok := categoryNames[c]
	if !ok {
		return nil, fmt.Errorf("unknown category %d", int(c))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	for k, v := range categoryNames {
		if strings.EqualFold(v, string(text)) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", text)
}

// AssignmentCount holds a number of participants per category.
type AssignmentCount struct {
	Bootstrappers uint64 `json:"bootstrappers"`
	Reputables    uint64 `json:"reputables"`
	Endorsees     uint64 `json:"endorsees"`
	Newbies       uint64 `json:"newbies"`
}

// Of returns the count of category c.
func (a AssignmentCount) Of(c Category) uint64 {
	switch c {
	case Bootstrapper:
		return a.Bootstrappers
	case Reputable:
		return a.Reputables
	case Endorsee:
		return a.Endorsees
	case Newbie:
		return a.Newbies
	}
	return 0
}

// Total returns the number of participants over all categories.
func (a AssignmentCount) Total() uint64 {
	return a.Bootstrappers + a.Reputables + a.Endorsees + a.Newbies
}

// Assignment is the set of partition parameters of one community and cycle.
// Bootstrappers and reputables share one domain, reputables taking the local
// indices right after the bootstrappers.
type Assignment struct {
	BootstrappersReputables assignment.Params `json:"bootstrappers_reputables"`
	Endorsees               assignment.Params `json:"endorsees"`
	Newbies                 assignment.Params `json:"newbies"`
	Locations               assignment.Params `json:"locations"`
}

// CommunityAssignment is the complete outcome of the assigning phase for one
// community. It is computed once and never mutated afterwards.
type CommunityAssignment struct {
	Cindex      uint32          `json:"cindex"`
	Community   string          `json:"community"`
	Count       AssignmentCount `json:"count"`
	MeetupCount uint64          `json:"meetup_count"`
	Params      Assignment      `json:"params"`
}

// Digest returns a blake3 commitment over every field of the assignment. Two
// nodes derived the same assignment iff their digests match.
func (c *CommunityAssignment) Digest() []byte {
	h := blake3.New()
	var buf [8]byte
	write := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	write(uint64(c.Cindex))
	write(uint64(len(c.Community)))
	_, _ = h.Write([]byte(c.Community))
	for _, cat := range Categories {
		write(c.Count.Of(cat))
	}
	write(c.MeetupCount)
	for _, p := range []assignment.Params{
		c.Params.BootstrappersReputables,
		c.Params.Endorsees,
		c.Params.Newbies,
		c.Params.Locations,
	} {
		write(p.M)
		write(p.S1)
		write(p.S2)
	}
	return h.Sum(nil)
}

func (c *CommunityAssignment) String() string {
	return fmt.Sprintf("{cindex: %d, community: %s, meetups: %d, seated: %d}",
		c.Cindex, c.Community, c.MeetupCount, c.Count.Total())
}
