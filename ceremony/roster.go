package ceremony

import (
	"errors"
	"fmt"

	"github.com/drand/ceremony/assignment"
)

// ErrGetMeetupParticipants is returned when a meetup roster cannot be
// reconstructed from the recorded assignment, usually because the recorded
// counts and the registry disagree.
var ErrGetMeetupParticipants = errors.New("could not reconstruct meetup participants")

// ErrNotAssigned is returned for a participant that has no seat this cycle.
var ErrNotAssigned = errors.New("participant not assigned to a meetup")

// Participant identifies a registered participant by category and one based
// local index.
type Participant struct {
	Category Category `json:"category"`
	Index    uint64   `json:"index"`
}

func (p Participant) String() string {
	return fmt.Sprintf("%s#%d", p.Category, p.Index)
}

// domain returns the partition parameters and the zero based position of the
// participant within them.
func (c *CommunityAssignment) domain(p Participant) (assignment.Params, uint64, error) {
	if p.Index == 0 || p.Index > c.Count.Of(p.Category) {
		return assignment.Params{}, 0, ErrNotAssigned
	}
	i := p.Index - 1
	switch p.Category {
	case Bootstrapper:
		return c.Params.BootstrappersReputables, i, nil
	case Reputable:
		return c.Params.BootstrappersReputables, c.Count.Bootstrappers + i, nil
	case Endorsee:
		return c.Params.Endorsees, i, nil
	case Newbie:
		return c.Params.Newbies, i, nil
	}
	return assignment.Params{}, 0, fmt.Errorf("unknown category %d", int(p.Category))
}

// ParticipantMeetup returns the one based meetup index of a seated participant.
func (c *CommunityAssignment) ParticipantMeetup(p Participant) (uint64, error) {
	params, i, err := c.domain(p)
	if err != nil {
		return 0, err
	}
	if c.MeetupCount == 0 {
		return 0, ErrNotAssigned
	}
	if i >= params.M {
		return 0, fmt.Errorf("%w: index %d for a domain of %d", ErrGetMeetupParticipants, i, params.M)
	}
	return assignment.MeetupIndex(i, params, c.MeetupCount)
}

// MeetupParticipants returns the roster of the one based meetup meetupIdx:
// bootstrappers, reputables, endorsees then newbies, each by ascending index.
func (c *CommunityAssignment) MeetupParticipants(meetupIdx uint64) ([]Participant, error) {
	if meetupIdx == 0 || meetupIdx > c.MeetupCount {
		return nil, fmt.Errorf("%w: meetup %d of %d", ErrGetMeetupParticipants, meetupIdx, c.MeetupCount)
	}
	k := meetupIdx - 1
	var roster []Participant

	trusted, err := c.inverse(k, c.Params.BootstrappersReputables, c.Count.Bootstrappers+c.Count.Reputables)
	if err != nil {
		return nil, err
	}
	for _, i := range trusted {
		if i < c.Count.Bootstrappers {
			roster = append(roster, Participant{Category: Bootstrapper, Index: i + 1})
		}
	}
	for _, i := range trusted {
		if i >= c.Count.Bootstrappers {
			roster = append(roster, Participant{Category: Reputable, Index: i - c.Count.Bootstrappers + 1})
		}
	}

	for _, g := range []struct {
		cat    Category
		params assignment.Params
		count  uint64
	}{
		{Endorsee, c.Params.Endorsees, c.Count.Endorsees},
		{Newbie, c.Params.Newbies, c.Count.Newbies},
	} {
		idx, err := c.inverse(k, g.params, g.count)
		if err != nil {
			return nil, err
		}
		for _, i := range idx {
			roster = append(roster, Participant{Category: g.cat, Index: i + 1})
		}
	}
	return roster, nil
}

func (c *CommunityAssignment) inverse(k uint64, p assignment.Params, count uint64) ([]uint64, error) {
	if count == 0 {
		return nil, nil
	}
	if count > p.M {
		return nil, fmt.Errorf("%w: %d participants for a domain of %d", ErrGetMeetupParticipants, count, p.M)
	}
	idx, err := assignment.Inverse(k, p, c.MeetupCount, count)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGetMeetupParticipants, err)
	}
	return idx, nil
}

// MeetupLocation returns where the one based meetup meetupIdx is held.
func (c *CommunityAssignment) MeetupLocation(meetupIdx uint64, locations []assignment.Location) (assignment.Location, error) {
	if len(locations) == 0 {
		return assignment.Location{}, ErrNoLocationsAvailable
	}
	if meetupIdx == 0 || meetupIdx > c.MeetupCount {
		return assignment.Location{}, fmt.Errorf("%w: meetup %d of %d", ErrGetMeetupParticipants, meetupIdx, c.MeetupCount)
	}
	return assignment.MeetupLocation(meetupIdx, locations, c.Params.Locations)
}
