package ceremonycli

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/nikkolasg/hexjson"
	"github.com/stretchr/testify/require"

	"github.com/drand/ceremony/beacon"
	"github.com/drand/ceremony/core"
	"github.com/drand/ceremony/registry"
)

const seedHex = "c0ffee"

const registryTOML = `
cindex = 3

[[communities]]
id = "zurich"
bootstrappers = ["zb1", "zb2", "zb3"]
reputables = ["zr1", "zr2", "zr3", "zr4"]
newbies = ["zn1", "zn2", "zn3"]

[[communities.locations]]
lat = 47.3769
lon = 8.5417

[[communities]]
id = "basel"
bootstrappers = ["sb1", "sb2"]

[[communities.locations]]
lat = 47.5596
lon = 7.5886
`

func captureOutput(t *testing.T) *bytes.Buffer {
	buf := new(bytes.Buffer)
	old := output
	output = buf
	t.Cleanup(func() { output = old })
	return buf
}

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func run(args ...string) error {
	return CLI().Run(append([]string{"ceremony"}, args...))
}

func TestCeremonyCycle(t *testing.T) {
	tmp := t.TempDir()
	db := filepath.Join(tmp, "db")
	reg := writeFile(t, tmp, "registry.toml", registryTOML)
	buf := captureOutput(t)

	require.NoError(t, run("assign", "--registry", reg, "--db", db, "--seed", seedHex))
	out := buf.String()
	require.Contains(t, out, "zurich: 1 meetups, 10 seated, digest ")
	require.Contains(t, out, "basel: skipped")

	meetupsFile := filepath.Join(tmp, "meetups.json")
	require.NoError(t, run("meetups", "--registry", reg, "--db", db, "--community", "zurich", "--out", meetupsFile))
	raw, err := os.ReadFile(meetupsFile)
	require.NoError(t, err)
	var meetups []*core.Meetup
	require.NoError(t, json.Unmarshal(raw, &meetups))
	require.Len(t, meetups, 1)
	roster := meetups[0].Participants
	require.Len(t, roster, 10)

	// everybody counts ten and attests everybody else
	ballot := &registry.Ballot{Cindex: 3, Community: "zurich", Meetup: 1}
	for _, acc := range roster {
		var others []string
		for _, o := range roster {
			if o != acc {
				others = append(others, o)
			}
		}
		ballot.Votes = append(ballot.Votes, registry.Vote{Account: acc, Vote: 10, Attested: others})
	}
	ballotDir := filepath.Join(tmp, "ballots")
	require.NoError(t, os.Mkdir(ballotDir, 0700))
	fd, err := os.Create(filepath.Join(ballotDir, "meetup-1.toml"))
	require.NoError(t, err)
	require.NoError(t, ballot.Encode(fd))
	require.NoError(t, fd.Close())

	buf.Reset()
	require.NoError(t, run("judge", "--registry", reg, "--db", db, "--community", "zurich", "--ballots", ballotDir))
	res := new(core.RewardResult)
	require.NoError(t, json.Unmarshal(buf.Bytes(), res))
	require.Len(t, res.Rewards, 1)
	require.ElementsMatch(t, roster, res.Rewards[0].Accounts)
	require.Empty(t, res.Undependable)

	buf.Reset()
	require.NoError(t, run("purge", "--cindex", "20", "--db", db))
	require.Equal(t, "purged 2 records\n", buf.String())
}

func TestAssignDryRun(t *testing.T) {
	tmp := t.TempDir()
	db := filepath.Join(tmp, "db")
	reg := writeFile(t, tmp, "registry.toml", registryTOML)
	buf := captureOutput(t)

	require.NoError(t, run("assign", "--registry", reg, "--db", db, "--dry-run", "--seed", seedHex))
	require.Contains(t, buf.String(), "zurich: 1 meetups")
	_, err := os.Stat(db)
	require.True(t, os.IsNotExist(err))
}

func TestAssignNeedsSeed(t *testing.T) {
	tmp := t.TempDir()
	reg := writeFile(t, tmp, "registry.toml", registryTOML)
	captureOutput(t)

	err := run("assign", "--registry", reg, "--db", filepath.Join(tmp, "db"))
	require.ErrorIs(t, err, errNoSeed)

	err = run("assign", "--registry", reg, "--db", filepath.Join(tmp, "db"), "--seed", "not hex")
	require.Error(t, err)

	err = run("assign", "--registry", reg, "--db", filepath.Join(tmp, "db"), "--cindex", "4", "--seed", seedHex)
	require.ErrorIs(t, err, core.ErrWrongCycle)
}

func TestShowSeed(t *testing.T) {
	buf := captureOutput(t)
	require.NoError(t, run("show-seed", "--cindex", "7", "--seed", seedHex))

	secret, err := hex.DecodeString(seedHex)
	require.NoError(t, err)
	seed, err := beacon.NewStaticSource(secret).Seed(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("%x\n", seed), buf.String())
}

func TestLoadConfig(t *testing.T) {
	tmp := t.TempDir()
	path := writeFile(t, tmp, "config.toml", `
meetup_size_target = 12
reputation_lifetime = 4
meetup_time_offset = "-30m"
single_pass = true

[schedule]
genesis = 2022-06-01T00:00:00Z
cycle_period = "240h"
attesting_delay = "48h"

[relay]
url = "https://api.drand.sh"
chain_hash = "8990e7a9aaed2ffed73dbd7092123d6f289930540d7651336225dc172e51b2ce"
`)
	conf, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, uint64(12), conf.MeetupSizeTarget)
	require.Equal(t, -30*time.Minute, conf.MeetupTimeOffset.Duration)
	require.Equal(t, "https://api.drand.sh", conf.Relay.URL)

	cfg := core.NewConfig(conf.options()...)
	require.Equal(t, uint64(12), cfg.Planner().MeetupSizeTarget)
	require.Equal(t, uint32(4), cfg.ReputationLifetime())
	start, ok := cfg.AttestingStart(2)
	require.True(t, ok)
	require.Equal(t, time.Date(2022, 6, 23, 0, 0, 0, 0, time.UTC), start.UTC())

	s := conf.schedule(nil)
	require.Equal(t, 240*time.Hour, s.CyclePeriod)

	empty, err := loadConfig("")
	require.NoError(t, err)
	require.Empty(t, empty.options())
	require.Nil(t, empty.schedule(nil))
}

func TestLoadConfigErrors(t *testing.T) {
	tmp := t.TempDir()
	for name, content := range map[string]string{
		"typo.toml":     "meetup_size_targett = 12\n",
		"period.toml":   "[schedule]\ncycle_period = \"0s\"\n",
		"duration.toml": "meetup_time_offset = \"soon\"\n",
	} {
		_, err := loadConfig(writeFile(t, tmp, name, content))
		require.Error(t, err, name)
	}
	_, err := loadConfig(filepath.Join(tmp, "missing.toml"))
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	buf := captureOutput(t)
	require.NoError(t, run("--version"))
	require.True(t, strings.HasPrefix(buf.String(), "ceremony master"))
}
