// Package core runs the phases of a ceremony cycle: assigning every community
// from the cycle seed, publishing meetup rosters, judging ballots and handing
// legit participants to the rewarder.
package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/drand/ceremony/assignment"
	"github.com/drand/ceremony/ceremony"
	"github.com/drand/ceremony/log"
	"github.com/drand/ceremony/metrics"
	"github.com/drand/ceremony/random"
	"github.com/drand/ceremony/registry"
	"github.com/drand/ceremony/store"
	"github.com/drand/ceremony/validation"
)

// ErrNoSource is returned when a cycle is assigned without a seed source.
var ErrNoSource = errors.New("no seed source configured")

// ErrWrongCycle is returned for a snapshot or ballot of another cycle or community.
var ErrWrongCycle = errors.New("input belongs to another cycle or community")

// Ceremony runs ceremony cycles.
type Ceremony struct {
	opts *Config
	log  log.Logger
}

// NewCeremony returns a Ceremony using c.
func NewCeremony(c *Config) *Ceremony {
	return &Ceremony{opts: c, log: c.logger.Named("ceremony")}
}

// Config returns the configuration of the ceremony.
func (c *Ceremony) Config() *Config {
	return c.opts
}

// Seed returns the seed of cycle cindex.
func (c *Ceremony) Seed(ctx context.Context, cindex uint32) ([]byte, error) {
	if c.opts.source == nil {
		return nil, ErrNoSource
	}
	return c.opts.source.Seed(ctx, cindex)
}

// CycleResult is the outcome of assigning a cycle.
type CycleResult struct {
	Cindex      uint32
	RunID       string
	Seed        []byte
	Assignments []*ceremony.CommunityAssignment
	// Skipped lists the communities with too few trusted participants.
	Skipped []string
}

// AssignCycle assigns every community of the snapshot, in community id order,
// from a single randomness cursor seeded for cycle cindex. A community that
// fails does not prevent the others from being assigned: the result holds
// every success and the returned error every failure.
func (c *Ceremony) AssignCycle(ctx context.Context, cindex uint32, snapshot *registry.Snapshot) (*CycleResult, error) {
	if snapshot.Cindex != 0 && snapshot.Cindex != cindex {
		return nil, fmt.Errorf("%w: snapshot of cycle %d", ErrWrongCycle, snapshot.Cindex)
	}
	res := &CycleResult{Cindex: cindex, RunID: uuid.New().String()}
	l := c.log.With("cindex", cindex, "run", res.RunID)
	ctx = log.ToContext(ctx, l)

	seed, err := c.Seed(ctx, cindex)
	if err != nil {
		return nil, fmt.Errorf("seeding cycle %d: %w", cindex, err)
	}
	res.Seed = seed
	src := random.New(seed)
	start := c.opts.clock.Now()

	var merr *multierror.Error
	for _, community := range snapshot.Sorted() {
		if err := ctx.Err(); err != nil {
			return res, multierror.Append(merr, err).ErrorOrNil()
		}
		a, err := ceremony.Generate(cindex, community.ID, community.Registered(),
			uint64(len(community.Locations)), c.opts.planner, src)
		switch {
		case errors.Is(err, ceremony.ErrCommunitySkipped):
			l.Infow("community skipped", "community", community.ID, "registered", community.Registered())
			metrics.CommunitiesSkipped.WithLabelValues("too_few_trusted").Inc()
			res.Skipped = append(res.Skipped, community.ID)
			continue
		case errors.Is(err, ceremony.ErrNoLocationsAvailable):
			metrics.CommunitiesSkipped.WithLabelValues("no_locations").Inc()
			merr = multierror.Append(merr, fmt.Errorf("community %s: %w", community.ID, err))
			continue
		case err != nil:
			metrics.CommunitiesSkipped.WithLabelValues("error").Inc()
			merr = multierror.Append(merr, fmt.Errorf("community %s: %w", community.ID, err))
			continue
		}

		if err := c.opts.store.PutAssignment(ctx, a); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("storing community %s: %w", community.ID, err))
			continue
		}
		l.Infow("community assigned", "community", community.ID, "meetups", a.MeetupCount,
			"seated", a.Count.Total(), "digest", fmt.Sprintf("%x", a.Digest()))
		metrics.CommunitiesAssigned.Inc()
		metrics.MeetupsOpened.WithLabelValues(community.ID).Set(float64(a.MeetupCount))
		for _, cat := range ceremony.Categories {
			metrics.SeatedParticipants.WithLabelValues(community.ID, cat.String()).Set(float64(a.Count.Of(cat)))
		}
		res.Assignments = append(res.Assignments, a)
	}
	metrics.CycleDuration.Observe(c.opts.clock.Since(start).Seconds())
	if merr != nil {
		l.Warnw("cycle assigned with failures", "failed", merr.Len())
	}
	return res, merr.ErrorOrNil()
}

// Meetup is a published meetup: where and when it is held and who attends.
type Meetup struct {
	Index    uint64              `json:"index"`
	Location assignment.Location `json:"location"`
	// Time is the meetup start in unix milliseconds, 0 when unscheduled.
	Time         uint64   `json:"time"`
	Participants []string `json:"participants"`
}

// Meetups returns the meetups of community cid in cycle cindex.
func (c *Ceremony) Meetups(ctx context.Context, cindex uint32, cid string, snapshot *registry.Snapshot) ([]*Meetup, error) {
	community, a, err := c.lookup(ctx, cindex, cid, snapshot)
	if err != nil {
		return nil, err
	}
	attestingStart, scheduled := c.opts.AttestingStart(cindex)

	meetups := make([]*Meetup, 0, a.MeetupCount)
	for m := uint64(1); m <= a.MeetupCount; m++ {
		roster, err := community.Roster(a, m)
		if err != nil {
			return nil, err
		}
		loc, err := a.MeetupLocation(m, community.Locations)
		if err != nil {
			return nil, err
		}
		meetup := &Meetup{Index: m, Location: loc, Participants: roster}
		if scheduled {
			meetup.Time = assignment.MeetupTime(loc, uint64(attestingStart.UnixMilli()),
				uint64(c.opts.oneDay.Milliseconds()), c.opts.meetupTimeOffset.Milliseconds())
		}
		meetups = append(meetups, meetup)
	}
	return meetups, nil
}

// Judge judges the ballot of one meetup of community cid and stores the
// judgement. Meetups without a dependable vote return validation.ErrBallotEmpty
// or validation.ErrNoDependableVote and store nothing.
func (c *Ceremony) Judge(ctx context.Context, cindex uint32, cid string, snapshot *registry.Snapshot,
	ballot *registry.Ballot) (*store.MeetupJudgement, error) {
	if (ballot.Cindex != 0 && ballot.Cindex != cindex) || (ballot.Community != "" && ballot.Community != cid) {
		return nil, fmt.Errorf("%w: ballot of %s in cycle %d", ErrWrongCycle, ballot.Community, ballot.Cindex)
	}
	community, a, err := c.lookup(ctx, cindex, cid, snapshot)
	if err != nil {
		return nil, err
	}
	l := log.FromContextOrDefault(ctx).With("cindex", cindex, "community", cid, "meetup", ballot.Meetup)

	roster, err := community.Roster(a, ballot.Meetup)
	if err != nil {
		return nil, err
	}
	in := ballot.Inputs(roster)
	if len(in.Ignored) > 0 {
		l.Warnw("ballot names accounts outside the meetup", "accounts", in.Ignored)
	}

	judge := validation.ParticipantJudgements
	if c.opts.singlePass {
		judge = validation.UpdatedParticipants
	}
	j, err := judge(in.Participants, in.Votes, in.Attestations, c.opts.threshold)
	if err != nil {
		if errors.Is(err, validation.ErrBallotEmpty) || errors.Is(err, validation.ErrNoDependableVote) {
			metrics.UndependableMeetups.Inc()
		}
		return nil, err
	}
	for _, e := range j.Excluded {
		metrics.Exclusions.WithLabelValues(e.Reason.String()).Inc()
	}

	mj := &store.MeetupJudgement{
		Cindex:    cindex,
		Community: cid,
		Meetup:    ballot.Meetup,
		Roster:    roster,
		Judgement: *j,
	}
	if err := c.opts.store.PutJudgement(ctx, mj); err != nil {
		return nil, err
	}
	l.Debugw("meetup judged", "legit", len(j.Legit), "excluded", len(j.Excluded),
		"early", j.EarlyRewardsPossible)
	return mj, nil
}

// RewardResult summarizes the rewards of one community.
type RewardResult struct {
	Rewards []*Reward
	// Undependable lists the meetups without a dependable vote.
	Undependable []uint64
}

// IssueRewards judges every meetup of community cid and hands the legit
// participants of each to the rewarder. A meetup without ballot is judged
// as if nobody voted.
func (c *Ceremony) IssueRewards(ctx context.Context, cindex uint32, cid string, snapshot *registry.Snapshot,
	ballots []*registry.Ballot) (*RewardResult, error) {
	_, a, err := c.lookup(ctx, cindex, cid, snapshot)
	if err != nil {
		return nil, err
	}
	l := c.log.With("cindex", cindex, "community", cid)
	ctx = log.ToContext(ctx, l)

	byMeetup := make(map[uint64]*registry.Ballot, len(ballots))
	for _, b := range ballots {
		if b.Meetup == 0 || b.Meetup > a.MeetupCount {
			return nil, fmt.Errorf("%w: ballot for meetup %d of %d", ceremony.ErrGetMeetupParticipants, b.Meetup, a.MeetupCount)
		}
		if _, dup := byMeetup[b.Meetup]; dup {
			return nil, fmt.Errorf("%w: two ballots for meetup %d", registry.ErrInvalidBallot, b.Meetup)
		}
		byMeetup[b.Meetup] = b
	}

	res := new(RewardResult)
	var merr *multierror.Error
	for m := uint64(1); m <= a.MeetupCount; m++ {
		b, ok := byMeetup[m]
		if !ok {
			b = &registry.Ballot{Cindex: cindex, Community: cid, Meetup: m}
		}
		j, err := c.Judge(ctx, cindex, cid, snapshot, b)
		if errors.Is(err, validation.ErrBallotEmpty) || errors.Is(err, validation.ErrNoDependableVote) {
			l.Warnw("meetup not rewarded", "meetup", m, "err", err)
			res.Undependable = append(res.Undependable, m)
			continue
		}
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("meetup %d: %w", m, err))
			continue
		}
		r := &Reward{
			Cindex:    cindex,
			Community: cid,
			Meetup:    m,
			Accounts:  j.Legit(),
			Early:     j.Judgement.EarlyRewardsPossible,
		}
		if err := c.opts.rewarder.Reward(ctx, r); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("rewarding meetup %d: %w", m, err))
			continue
		}
		metrics.RewardsIssued.Add(float64(len(r.Accounts)))
		res.Rewards = append(res.Rewards, r)
	}
	return res, merr.ErrorOrNil()
}

// Purge drops the records of every cycle older than the reputation lifetime,
// counted back from currentCindex.
func (c *Ceremony) Purge(ctx context.Context, currentCindex uint32) (int, error) {
	if currentCindex <= c.opts.reputationLifetime {
		return 0, nil
	}
	below := currentCindex - c.opts.reputationLifetime
	n, err := c.opts.store.Purge(ctx, below)
	if err != nil {
		return 0, err
	}
	c.log.Infow("purged", "below", below, "records", n)
	return n, nil
}

// Communities returns the ids of the communities assigned in cycle cindex.
func (c *Ceremony) Communities(ctx context.Context, cindex uint32) ([]string, error) {
	all, err := c.opts.store.Assignments(ctx, cindex)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for _, a := range all {
		ids = append(ids, a.Community)
	}
	sort.Strings(ids)
	return ids, nil
}

func (c *Ceremony) lookup(ctx context.Context, cindex uint32, cid string,
	snapshot *registry.Snapshot) (*registry.Community, *ceremony.CommunityAssignment, error) {
	if snapshot.Cindex != 0 && snapshot.Cindex != cindex {
		return nil, nil, fmt.Errorf("%w: snapshot of cycle %d", ErrWrongCycle, snapshot.Cindex)
	}
	community, err := snapshot.Community(cid)
	if err != nil {
		return nil, nil, err
	}
	a, err := c.opts.store.Assignment(ctx, cindex, cid)
	if err != nil {
		return nil, nil, fmt.Errorf("assignment of %s in cycle %d: %w", cid, cindex, err)
	}
	return community, a, nil
}

