// Package ceremonycli is the command line interface of the ceremony engine.
package ceremonycli

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/drand/ceremony/fs"
	"github.com/drand/ceremony/log"
	"github.com/drand/ceremony/metrics"
	"github.com/drand/ceremony/metrics/pprof"
)

// default output of the commands, logs go to stderr
var output io.Writer = os.Stdout

// Automatically set through -ldflags
// Example: go install -ldflags "-X github.com/drand/ceremony/internal/ceremony-cli.version=`git describe --tags`"
var (
	version   = "master"
	gitCommit = "none"
	buildDate = "unknown"
)

var verboseFlag = &cli.BoolFlag{
	Name:    "verbose",
	Usage:   "If set, verbosity is at the debug level",
	EnvVars: []string{"CEREMONY_VERBOSE"},
}

var jsonLogsFlag = &cli.BoolFlag{
	Name:    "json-logs",
	Usage:   "Log in JSON instead of the console format",
	EnvVars: []string{"CEREMONY_JSON_LOGS"},
}

var metricsFlag = &cli.StringFlag{
	Name:    "metrics",
	Usage:   "Launch a metrics server at the specified (host:)port.",
	EnvVars: []string{"CEREMONY_METRICS"},
}

var configFlag = &cli.StringFlag{
	Name:    "config",
	Usage:   "TOML file with the planner settings, the cycle schedule and the drand relay",
	EnvVars: []string{"CEREMONY_CONFIG"},
}

var registryFlag = &cli.StringFlag{
	Name:     "registry",
	Usage:    "TOML registry snapshot of the cycle",
	Required: true,
	EnvVars:  []string{"CEREMONY_REGISTRY"},
}

var cindexFlag = &cli.UintFlag{
	Name:    "cindex",
	Usage:   "Ceremony cycle index. Defaults to the one of the registry snapshot.",
	EnvVars: []string{"CEREMONY_CINDEX"},
}

var currentCindexFlag = &cli.UintFlag{
	Name:     "cindex",
	Usage:    "Current ceremony cycle index",
	Required: true,
	EnvVars:  []string{"CEREMONY_CINDEX"},
}

var communityFlag = &cli.StringFlag{
	Name:     "community",
	Usage:    "Community id",
	Required: true,
	EnvVars:  []string{"CEREMONY_COMMUNITY"},
}

var dbFlag = &cli.StringFlag{
	Name:    "db",
	Value:   fs.DefaultFolder(),
	Usage:   "Folder of the assignment and judgement database",
	EnvVars: []string{"CEREMONY_DB"},
}

var dryRunFlag = &cli.BoolFlag{
	Name:  "dry-run",
	Usage: "Keep every record in memory instead of the database",
}

var seedFlag = &cli.StringFlag{
	Name:    "seed",
	Usage:   "Hex secret cycle seeds are derived from, instead of a drand relay",
	EnvVars: []string{"CEREMONY_SEED"},
}

var relayFlag = &cli.StringFlag{
	Name:    "relay",
	Usage:   "URL of the drand HTTP relay seeding the cycles",
	EnvVars: []string{"CEREMONY_RELAY"},
}

var chainHashFlag = &cli.StringFlag{
	Name:    "chain-hash",
	Usage:   "Hex hash of the drand chain info, the trust root of fetched beacons",
	EnvVars: []string{"CEREMONY_CHAIN_HASH"},
}

var ballotFlag = &cli.StringSliceFlag{
	Name:  "ballot",
	Usage: "TOML ballot of one meetup, can be repeated",
}

var ballotsFlag = &cli.StringFlag{
	Name:  "ballots",
	Usage: "Folder of TOML ballots, one per meetup",
}

var bindFlag = &cli.StringFlag{
	Name:    "bind",
	Value:   "localhost:8080",
	Usage:   "local host:port to bind the REST API",
	EnvVars: []string{"CEREMONY_BIND"},
}

var accessLogFlag = &cli.StringFlag{
	Name:  "access-log",
	Usage: "file to log http accesses to",
}

var outFlag = &cli.StringFlag{
	Name:  "out",
	Usage: "Write the result to this file instead of stdout",
}

var appCommands = []*cli.Command{
	{
		Name:  "assign",
		Usage: "Assign every community of the registry snapshot to meetups.",
		Flags: toArray(registryFlag, cindexFlag, dbFlag, dryRunFlag, seedFlag, relayFlag, chainHashFlag, outFlag),
		Action: func(c *cli.Context) error {
			return assignCmd(c)
		},
	},
	{
		Name:  "meetups",
		Usage: "Show the meetups of a community: location, time and participants.",
		Flags: toArray(registryFlag, cindexFlag, communityFlag, dbFlag, outFlag),
		Action: func(c *cli.Context) error {
			return meetupsCmd(c)
		},
	},
	{
		Name:  "judge",
		Usage: "Judge the ballots of a community and issue rewards to legit participants.",
		Flags: toArray(registryFlag, cindexFlag, communityFlag, dbFlag, ballotFlag, ballotsFlag, outFlag),
		Action: func(c *cli.Context) error {
			return judgeCmd(c)
		},
	},
	{
		Name:  "serve",
		Usage: "Serve assignments and judgements over a read only REST API.",
		Flags: toArray(dbFlag, bindFlag, accessLogFlag),
		Action: func(c *cli.Context) error {
			return serveCmd(c)
		},
	},
	{
		Name:  "purge",
		Usage: "Delete the records older than the reputation lifetime.",
		Flags: toArray(currentCindexFlag, dbFlag),
		Action: func(c *cli.Context) error {
			return purgeCmd(c)
		},
	},
	{
		Name:  "show-seed",
		Usage: "Print the seed of a cycle.",
		Flags: toArray(currentCindexFlag, seedFlag, relayFlag, chainHashFlag),
		Action: func(c *cli.Context) error {
			return showSeedCmd(c)
		},
	},
}

// CLI returns the ceremony application.
func CLI() *cli.App {
	app := cli.NewApp()
	app.Name = "ceremony"
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(output, "ceremony %v (date %v, commit %v)\n", version, buildDate, gitCommit)
	}
	app.ExitErrHandler = func(context *cli.Context, err error) {
		// override to prevent default behavior of calling OS.exit(1),
		// when tests expect to be able to run multiple commands.
	}
	app.Version = version
	app.Usage = "meetup assignment and attendance validation of proof of personhood ceremonies"
	app.Commands = appCommands
	app.Flags = toArray(verboseFlag, jsonLogsFlag, metricsFlag, configFlag)

	var metricsListener net.Listener
	app.Before = func(c *cli.Context) error {
		level := log.InfoLevel
		if c.Bool(verboseFlag.Name) {
			level = log.DebugLevel
		}
		l := log.New(os.Stderr, level, c.Bool(jsonLogsFlag.Name))
		c.Context = log.ToContext(c.Context, l)

		if c.IsSet(metricsFlag.Name) {
			var err error
			metricsListener, err = metrics.Start(l, c.String(metricsFlag.Name), pprof.WithProfile())
			if err != nil {
				return fmt.Errorf("starting metrics: %w", err)
			}
		}
		return nil
	}
	app.After = func(c *cli.Context) error {
		if metricsListener != nil {
			return metricsListener.Close()
		}
		return nil
	}
	return app
}

func toArray(flags ...cli.Flag) []cli.Flag {
	return flags
}
