package ceremony

import (
	"errors"

	"github.com/drand/ceremony/assignment"
	"github.com/drand/ceremony/random"
)

// ErrNoLocationsAvailable is returned when a community has no registered
// location to hold meetups at.
var ErrNoLocationsAvailable = errors.New("no locations available")

// ErrCommunitySkipped is returned when a community has too few trusted
// participants to open any meetup this cycle. It is not a failure.
var ErrCommunitySkipped = errors.New("not enough trusted participants, community skipped")

// Default planner values.
const (
	DefaultMeetupSizeTarget   = 10
	DefaultMinTrusted         = 3
	DefaultNewbieLimitDivider = 2
)

// Planner decides how many participants of each category are seated and how
// many meetups are opened.
type Planner struct {
	// MeetupSizeTarget is the number of seats offered per meetup.
	MeetupSizeTarget uint64
	// MinTrusted is the minimum number of bootstrappers and reputables
	// needed to hold meetups at all.
	MinTrusted uint64
	// NewbieLimitDivider caps newbies to the trusted seats divided by it.
	NewbieLimitDivider uint64
}

// DefaultPlanner returns a Planner with the default values.
func DefaultPlanner() Planner {
	return Planner{
		MeetupSizeTarget:   DefaultMeetupSizeTarget,
		MinTrusted:         DefaultMinTrusted,
		NewbieLimitDivider: DefaultNewbieLimitDivider,
	}
}

// Plan is the outcome of the allocation planner.
type Plan struct {
	Seated      AssignmentCount
	MaxMeetups  uint64
	MeetupCount uint64
}

// Plan computes the seat allocation for the registered participants of a
// community with numLocations registered locations.
func (p Planner) Plan(registered AssignmentCount, numLocations uint64) (Plan, error) {
	if numLocations == 0 {
		return Plan{}, ErrNoLocationsAvailable
	}
	trusted := registered.Bootstrappers + registered.Reputables
	if trusted < registered.Bootstrappers {
		return Plan{}, assignment.ErrCheckedMath
	}
	if trusted < p.MinTrusted {
		return Plan{}, ErrCommunitySkipped
	}
	if p.NewbieLimitDivider == 0 || p.MeetupSizeTarget == 0 {
		return Plan{}, assignment.ErrCheckedMath
	}

	maxMeetups := assignment.FindPrimeBelow(trusted)
	if numLocations < maxMeetups {
		maxMeetups = numLocations
	}

	capacity, err := assignment.CheckedMul(maxMeetups, p.MeetupSizeTarget)
	if err != nil {
		return Plan{}, err
	}
	seats, err := assignment.CheckedSub(capacity, registered.Bootstrappers)
	if err != nil {
		return Plan{}, err
	}

	seated := AssignmentCount{Bootstrappers: registered.Bootstrappers}
	seated.Reputables = minUint64(registered.Reputables, seats)
	if seats, err = assignment.CheckedSub(seats, seated.Reputables); err != nil {
		return Plan{}, err
	}
	seated.Endorsees = minUint64(registered.Endorsees, seats)
	if seats, err = assignment.CheckedSub(seats, seated.Endorsees); err != nil {
		return Plan{}, err
	}
	newbieLimit := (seated.Bootstrappers + seated.Reputables + seated.Endorsees) / p.NewbieLimitDivider
	seated.Newbies = minUint64(minUint64(registered.Newbies, seats), newbieLimit)

	meetups, err := assignment.CheckedCeilDivision(seated.Total(), p.MeetupSizeTarget)
	if err != nil {
		return Plan{}, err
	}
	if meetups > maxMeetups {
		meetups = maxMeetups
	}
	return Plan{Seated: seated, MaxMeetups: maxMeetups, MeetupCount: meetups}, nil
}

// Generate plans the community and draws its partition parameters from src,
// in the fixed order bootstrappers and reputables, endorsees, newbies,
// locations. No randomness is consumed when planning fails.
func Generate(cindex uint32, cid string, registered AssignmentCount, numLocations uint64,
	p Planner, src random.Source) (*CommunityAssignment, error) {
	plan, err := p.Plan(registered, numLocations)
	if err != nil {
		return nil, err
	}
	n := plan.MeetupCount
	c := plan.Seated
	// draw order is part of the output
	var params Assignment
	params.BootstrappersReputables = assignment.GenerateParams(c.Bootstrappers+c.Reputables, n, src)
	params.Endorsees = assignment.GenerateParams(c.Endorsees, n, src)
	params.Newbies = assignment.GenerateParams(c.Newbies, n, src)
	params.Locations = assignment.GenerateParams(numLocations, n, src)
	return &CommunityAssignment{
		Cindex:      cindex,
		Community:   cid,
		Count:       c,
		MeetupCount: n,
		Params:      params,
	}, nil
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
