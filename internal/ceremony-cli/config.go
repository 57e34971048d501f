package ceremonycli

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/drand/ceremony/beacon"
	"github.com/drand/ceremony/core"
)

// duration reads TOML strings such as "240h".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type scheduleConfig struct {
	Genesis        time.Time `toml:"genesis"`
	CyclePeriod    duration  `toml:"cycle_period"`
	AttestingDelay duration  `toml:"attesting_delay"`
}

type relayConfig struct {
	URL       string `toml:"url"`
	ChainHash string `toml:"chain_hash"`
}

// fileConfig is the optional TOML configuration file. Flags take precedence.
type fileConfig struct {
	MeetupSizeTarget   uint64          `toml:"meetup_size_target"`
	MinTrusted         uint64          `toml:"min_trusted"`
	NewbieLimitDivider uint64          `toml:"newbie_limit_divider"`
	ReputationLifetime uint32          `toml:"reputation_lifetime"`
	MeetupTimeOffset   duration        `toml:"meetup_time_offset"`
	SinglePass         bool            `toml:"single_pass"`
	Schedule           *scheduleConfig `toml:"schedule"`
	Relay              *relayConfig    `toml:"relay"`
}

// loadConfig reads the config file at path. Unknown keys are rejected so
// that typos do not silently fall back to defaults.
func loadConfig(path string) (*fileConfig, error) {
	conf := new(fileConfig)
	if path == "" {
		return conf, nil
	}
	md, err := toml.DecodeFile(path, conf)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if s := conf.Schedule; s != nil && s.CyclePeriod.Duration <= 0 {
		return nil, fmt.Errorf("config %s: schedule needs a positive cycle_period", path)
	}
	return conf, nil
}

// options returns the core options set by the file.
func (f *fileConfig) options() []core.ConfigOption {
	var opts []core.ConfigOption
	if f.MeetupSizeTarget != 0 {
		opts = append(opts, core.WithMeetupSizeTarget(f.MeetupSizeTarget))
	}
	if f.MinTrusted != 0 {
		opts = append(opts, core.WithMinTrusted(f.MinTrusted))
	}
	if f.NewbieLimitDivider != 0 {
		opts = append(opts, core.WithNewbieLimitDivider(f.NewbieLimitDivider))
	}
	if f.ReputationLifetime != 0 {
		opts = append(opts, core.WithReputationLifetime(f.ReputationLifetime))
	}
	if f.MeetupTimeOffset.Duration != 0 {
		opts = append(opts, core.WithMeetupTimeOffset(f.MeetupTimeOffset.Duration))
	}
	if f.SinglePass {
		opts = append(opts, core.WithSinglePass())
	}
	if f.Schedule != nil {
		opts = append(opts, core.WithSchedule(f.schedule(nil), f.Schedule.AttestingDelay.Duration))
	}
	return opts
}

// schedule returns the cycle schedule over chain, nil without a schedule section.
func (f *fileConfig) schedule(chain *beacon.Info) *beacon.Schedule {
	if f.Schedule == nil {
		return nil
	}
	return &beacon.Schedule{
		CeremonyGenesis: f.Schedule.Genesis,
		CyclePeriod:     f.Schedule.CyclePeriod.Duration,
		Chain:           chain,
	}
}
