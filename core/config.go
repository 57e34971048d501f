package core

import (
	"time"

	clock "github.com/jonboulle/clockwork"

	"github.com/drand/ceremony/beacon"
	"github.com/drand/ceremony/ceremony"
	"github.com/drand/ceremony/log"
	"github.com/drand/ceremony/store"
	"github.com/drand/ceremony/store/memdb"
	"github.com/drand/ceremony/validation"
)

// DefaultReputationLifetime is the number of cycles assignments and
// judgements are kept for.
const DefaultReputationLifetime = 6

// DefaultOneDay is the length of a day on the ceremony clock.
const DefaultOneDay = 24 * time.Hour

// ConfigOption is a function that applies a specific setting to a Config.
type ConfigOption func(*Config)

// Config holds everything a Ceremony needs to run cycles.
type Config struct {
	planner            ceremony.Planner
	reputationLifetime uint32
	meetupTimeOffset   time.Duration
	attestingDelay     time.Duration
	oneDay             time.Duration
	threshold          validation.ThresholdFn
	singlePass         bool
	schedule           *beacon.Schedule
	source             beacon.Source
	store              store.Store
	rewarder           Rewarder
	logger             log.Logger
	clock              clock.Clock
}

// NewConfig returns the config with the default options set and the updated
// values given by the options.
func NewConfig(opts ...ConfigOption) *Config {
	c := &Config{
		planner:            ceremony.DefaultPlanner(),
		reputationLifetime: DefaultReputationLifetime,
		oneDay:             DefaultOneDay,
		threshold:          validation.DefaultThreshold,
		logger:             log.DefaultLogger(),
		clock:              clock.NewRealClock(),
	}
	for i := range opts {
		opts[i](c)
	}
	if c.store == nil {
		c.store = memdb.NewStore()
	}
	if c.rewarder == nil {
		c.rewarder = &logRewarder{l: c.logger}
	}
	return c
}

// Planner returns the allocation planner settings.
func (c *Config) Planner() ceremony.Planner {
	return c.planner
}

// Logger returns the logger associated with this config.
func (c *Config) Logger() log.Logger {
	return c.logger
}

// Store returns the store assignments and judgements are kept in.
func (c *Config) Store() store.Store {
	return c.store
}

// ReputationLifetime returns the number of cycles records are kept for.
func (c *Config) ReputationLifetime() uint32 {
	return c.reputationLifetime
}

// AttestingStart returns when the attesting phase of cycle cindex begins. It
// is unknown without a schedule.
func (c *Config) AttestingStart(cindex uint32) (time.Time, bool) {
	if c.schedule == nil {
		return time.Time{}, false
	}
	return c.schedule.TimeOfCeremony(cindex).Add(c.attestingDelay), true
}

// WithMeetupSizeTarget sets the number of seats offered per meetup.
func WithMeetupSizeTarget(n uint64) ConfigOption {
	return func(c *Config) {
		c.planner.MeetupSizeTarget = n
	}
}

// WithMinTrusted sets the minimum number of bootstrappers and reputables a
// community needs to hold meetups.
func WithMinTrusted(n uint64) ConfigOption {
	return func(c *Config) {
		c.planner.MinTrusted = n
	}
}

// WithNewbieLimitDivider sets the divider capping newbies to a fraction of
// the other seated participants.
func WithNewbieLimitDivider(n uint64) ConfigOption {
	return func(c *Config) {
		c.planner.NewbieLimitDivider = n
	}
}

// WithReputationLifetime sets after how many cycles records are purged.
func WithReputationLifetime(cycles uint32) ConfigOption {
	return func(c *Config) {
		c.reputationLifetime = cycles
	}
}

// WithMeetupTimeOffset shifts every meetup time by d, which may be negative.
func WithMeetupTimeOffset(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.meetupTimeOffset = d
	}
}

// WithOneDay sets the length of a day on the ceremony clock.
func WithOneDay(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.oneDay = d
	}
}

// WithSchedule sets the cycle schedule and the delay between the start of a
// cycle and its attesting phase. Meetup times are only computed with it.
func WithSchedule(s *beacon.Schedule, attestingDelay time.Duration) ConfigOption {
	return func(c *Config) {
		c.schedule = s
		c.attestingDelay = attestingDelay
	}
}

// WithThreshold sets the attestation threshold function.
func WithThreshold(fn validation.ThresholdFn) ConfigOption {
	return func(c *Config) {
		c.threshold = fn
	}
}

// WithSinglePass judges attestations in a single exclusion pass instead of
// pruning until no participant is below the threshold.
func WithSinglePass() ConfigOption {
	return func(c *Config) {
		c.singlePass = true
	}
}

// WithSource sets where cycle seeds come from.
func WithSource(s beacon.Source) ConfigOption {
	return func(c *Config) {
		c.source = s
	}
}

// WithStore sets the store assignments and judgements are kept in.
func WithStore(s store.Store) ConfigOption {
	return func(c *Config) {
		c.store = s
	}
}

// WithRewarder sets who legit participants are handed to.
func WithRewarder(r Rewarder) ConfigOption {
	return func(c *Config) {
		c.rewarder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) ConfigOption {
	return func(c *Config) {
		c.logger = l
	}
}

// WithClock sets the clock cycle durations are measured with.
func WithClock(cl clock.Clock) ConfigOption {
	return func(c *Config) {
		c.clock = cl
	}
}
