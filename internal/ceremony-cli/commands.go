package ceremonycli

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/gorilla/handlers"
	json "github.com/nikkolasg/hexjson"
	"github.com/urfave/cli/v2"

	"github.com/drand/ceremony/beacon"
	bhttp "github.com/drand/ceremony/beacon/http"
	"github.com/drand/ceremony/core"
	"github.com/drand/ceremony/fs"
	chttp "github.com/drand/ceremony/http"
	"github.com/drand/ceremony/log"
	"github.com/drand/ceremony/registry"
	"github.com/drand/ceremony/store"
	"github.com/drand/ceremony/store/boltdb"
	"github.com/drand/ceremony/store/memdb"
)

const refreshRate = 500 * time.Millisecond

const accessLogPerm = 0666

var errNoSeed = errors.New("either --seed or a drand relay (--relay and --chain-hash) is needed")

// env bundles what every command needs.
type env struct {
	l        log.Logger
	conf     *fileConfig
	store    store.Store
	ceremony *core.Ceremony
	closers  []func() error
}

func (e *env) Close() error {
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// newEnv opens the store and, when withSource is set, the seed source.
func newEnv(c *cli.Context, withSource bool) (*env, error) {
	l := log.FromContextOrDefault(c.Context)
	conf, err := loadConfig(c.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	e := &env{l: l, conf: conf}

	if c.Bool(dryRunFlag.Name) {
		e.store = memdb.NewStore()
	} else {
		folder := c.String(dbFlag.Name)
		if err := fs.CreateSecureFolder(folder); err != nil {
			return nil, fmt.Errorf("database folder: %w", err)
		}
		s, err := boltdb.NewStore(c.Context, l, folder, nil)
		if err != nil {
			return nil, err
		}
		e.store = s
	}
	ctx := c.Context
	e.closers = append(e.closers, func() error { return e.store.Close(ctx) })

	opts := append(conf.options(), core.WithLogger(l), core.WithStore(e.store))
	if withSource {
		src, err := e.seedSource(c)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		opts = append(opts, core.WithSource(src))
	}
	e.ceremony = core.NewCeremony(core.NewConfig(opts...))
	return e, nil
}

func (e *env) seedSource(c *cli.Context) (beacon.Source, error) {
	if c.IsSet(seedFlag.Name) {
		secret, err := hex.DecodeString(c.String(seedFlag.Name))
		if err != nil {
			return nil, fmt.Errorf("invalid seed: %w", err)
		}
		return beacon.NewStaticSource(secret), nil
	}

	url, chainHash := c.String(relayFlag.Name), c.String(chainHashFlag.Name)
	if r := e.conf.Relay; r != nil {
		if url == "" {
			url = r.URL
		}
		if chainHash == "" {
			chainHash = r.ChainHash
		}
	}
	if url == "" || chainHash == "" {
		return nil, errNoSeed
	}
	if e.conf.Schedule == nil {
		return nil, errors.New("seeding from a drand relay needs a [schedule] section in the config")
	}
	hash, err := hex.DecodeString(chainHash)
	if err != nil {
		return nil, fmt.Errorf("invalid chain hash: %w", err)
	}
	client, err := bhttp.New(c.Context, e.l, url, hash)
	if err != nil {
		return nil, fmt.Errorf("contacting relay %s: %w", url, err)
	}
	e.closers = append(e.closers, client.Close)
	return &spinnerSource{Source: beacon.NewChainSource(client, e.conf.schedule(client.Info()))}, nil
}

// spinnerSource shows a spinner while the beacon of a cycle is fetched.
type spinnerSource struct {
	beacon.Source
}

func (s *spinnerSource) Seed(ctx context.Context, cindex uint32) ([]byte, error) {
	sp := spinner.New(spinner.CharSets[9], refreshRate, spinner.WithWriter(os.Stderr))
	sp.Suffix = fmt.Sprintf("  fetching the beacon of cycle %d", cindex)
	sp.Start()
	defer sp.Stop()
	return s.Source.Seed(ctx, cindex)
}

func loadSnapshot(c *cli.Context) (*registry.Snapshot, uint32, error) {
	snapshot, err := registry.LoadSnapshot(c.String(registryFlag.Name))
	if err != nil {
		return nil, 0, err
	}
	cindex := snapshot.Cindex
	if c.IsSet(cindexFlag.Name) {
		cindex = uint32(c.Uint(cindexFlag.Name))
	}
	if cindex == 0 {
		return nil, 0, errors.New("unknown cycle: set --cindex or the cindex of the registry")
	}
	return snapshot, cindex, nil
}

// writeJSON writes v to the --out file, or to the output.
func writeJSON(c *cli.Context, v interface{}) error {
	buff, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	buff = append(buff, '\n')
	if !c.IsSet(outFlag.Name) {
		_, err = output.Write(buff)
		return err
	}
	fd, err := fs.CreateSecureFile(c.String(outFlag.Name))
	if err != nil {
		return fmt.Errorf("creating %s: %w", c.String(outFlag.Name), err)
	}
	defer fd.Close()
	_, err = fd.Write(buff)
	return err
}

func assignCmd(c *cli.Context) error {
	snapshot, cindex, err := loadSnapshot(c)
	if err != nil {
		return err
	}
	e, err := newEnv(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.ceremony.AssignCycle(c.Context, cindex, snapshot)
	if res == nil {
		return err
	}
	for _, a := range res.Assignments {
		fmt.Fprintf(output, "%s: %d meetups, %d seated, digest %x\n",
			a.Community, a.MeetupCount, a.Count.Total(), a.Digest())
	}
	for _, id := range res.Skipped {
		fmt.Fprintf(output, "%s: skipped\n", id)
	}
	if c.IsSet(outFlag.Name) {
		if werr := writeJSON(c, res); werr != nil {
			return werr
		}
	}
	return err
}

func meetupsCmd(c *cli.Context) error {
	snapshot, cindex, err := loadSnapshot(c)
	if err != nil {
		return err
	}
	e, err := newEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	meetups, err := e.ceremony.Meetups(c.Context, cindex, c.String(communityFlag.Name), snapshot)
	if err != nil {
		return err
	}
	return writeJSON(c, meetups)
}

func loadBallots(c *cli.Context) ([]*registry.Ballot, error) {
	paths := c.StringSlice(ballotFlag.Name)
	if c.IsSet(ballotsFlag.Name) {
		files, err := fs.Files(c.String(ballotsFlag.Name), ".toml")
		if err != nil {
			return nil, err
		}
		paths = append(paths, files...)
	}
	ballots := make([]*registry.Ballot, 0, len(paths))
	for _, p := range paths {
		b, err := registry.LoadBallot(p)
		if err != nil {
			return nil, err
		}
		ballots = append(ballots, b)
	}
	return ballots, nil
}

func judgeCmd(c *cli.Context) error {
	snapshot, cindex, err := loadSnapshot(c)
	if err != nil {
		return err
	}
	ballots, err := loadBallots(c)
	if err != nil {
		return err
	}
	e, err := newEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.ceremony.IssueRewards(c.Context, cindex, c.String(communityFlag.Name), snapshot, ballots)
	if res == nil {
		return err
	}
	if werr := writeJSON(c, res); werr != nil {
		return werr
	}
	return err
}

func serveCmd(c *cli.Context) error {
	e, err := newEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	handler := chttp.New(e.store, version, e.l)
	if c.IsSet(accessLogFlag.Name) {
		logFile, err := os.OpenFile(c.String(accessLogFlag.Name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, accessLogPerm)
		if err != nil {
			return fmt.Errorf("failed to open access log: %w", err)
		}
		defer logFile.Close()
		handler = handlers.CombinedLoggingHandler(logFile, handler)
	} else {
		handler = handlers.CombinedLoggingHandler(os.Stdout, handler)
	}

	listener, err := net.Listen("tcp", c.String(bindFlag.Name))
	if err != nil {
		return err
	}
	server := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-c.Context.Done()
		server.Close()
	}()

	e.l.Infow("serving", "addr", listener.Addr().String())
	fmt.Fprintf(output, "Listening at %s\n", listener.Addr())
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func purgeCmd(c *cli.Context) error {
	e, err := newEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	n, err := e.ceremony.Purge(c.Context, uint32(c.Uint(currentCindexFlag.Name)))
	if err != nil {
		return err
	}
	fmt.Fprintf(output, "purged %d records\n", n)
	return nil
}

func showSeedCmd(c *cli.Context) error {
	conf, err := loadConfig(c.String(configFlag.Name))
	if err != nil {
		return err
	}
	e := &env{l: log.FromContextOrDefault(c.Context), conf: conf}
	defer e.Close()
	src, err := e.seedSource(c)
	if err != nil {
		return err
	}
	seed, err := src.Seed(c.Context, uint32(c.Uint(currentCindexFlag.Name)))
	if err != nil {
		return err
	}
	fmt.Fprintf(output, "%x\n", seed)
	return nil
}
