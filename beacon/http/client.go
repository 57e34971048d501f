// Package http fetches and verifies drand beacons from an HTTP relay.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	nhttp "net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	clock "github.com/jonboulle/clockwork"
	json "github.com/nikkolasg/hexjson"
	"golang.org/x/xerrors"

	"github.com/drand/ceremony/beacon"
	"github.com/drand/ceremony/log"
	"github.com/drand/ceremony/metrics"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultCacheSize   = 32
	userAgent          = "drand-ceremony/1.0"
)

// ErrRoundNotReady is returned for a round the chain has not produced yet.
var ErrRoundNotReady = xerrors.New("round not produced yet")

// Client fetches beacons of one chain from an HTTP relay, verifies them and
// caches the verified ones.
type Client struct {
	root     string
	client   *nhttp.Client
	info     *beacon.Info
	verifier *beacon.Verifier
	cache    *lru.ARCCache
	clock    clock.Clock
	l        log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport sets the round tripper used for requests.
func WithTransport(t nhttp.RoundTripper) Option {
	return func(c *Client) {
		c.client.Transport = t
	}
}

// WithClock sets the clock used to reject rounds from the future.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithInfo skips fetching /info and trusts the given chain info.
func WithInfo(info *beacon.Info) Option {
	return func(c *Client) {
		c.info = info
	}
}

// New returns a client for the relay at url. Unless the chain info is given
// with WithInfo, it is fetched and must hash to chainHash.
func New(ctx context.Context, l log.Logger, url string, chainHash []byte, opts ...Option) (*Client, error) {
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	cache, err := lru.NewARC(defaultCacheSize)
	if err != nil {
		return nil, err
	}
	c := &Client{
		root:   url,
		client: &nhttp.Client{Timeout: defaultHTTPTimeout, Transport: nhttp.DefaultTransport},
		cache:  cache,
		clock:  clock.NewRealClock(),
		l:      l.Named("beacon_http"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.info == nil {
		info, err := c.FetchChainInfo(ctx, chainHash)
		if err != nil {
			return nil, err
		}
		c.info = info
	}
	c.verifier = c.info.Verifier()
	return c, nil
}

func (c *Client) String() string {
	return fmt.Sprintf("HTTP(%q)", c.root)
}

// Info returns the chain info the client verifies against.
func (c *Client) Info() *beacon.Info {
	return c.info
}

func (c *Client) fetch(ctx context.Context, url string, decode func(io.Reader) error) error {
	start := c.clock.Now()
	req, err := nhttp.NewRequestWithContext(ctx, nhttp.MethodGet, url, nhttp.NoBody)
	if err != nil {
		return xerrors.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.BeaconFetches.WithLabelValues("error").Inc()
		return xerrors.Errorf("doing request: %w", err)
	}
	defer resp.Body.Close()
	metrics.BeaconFetches.WithLabelValues(fmt.Sprint(resp.StatusCode)).Inc()
	metrics.BeaconFetchLatency.Observe(c.clock.Since(start).Seconds())

	if resp.StatusCode != nhttp.StatusOK {
		return xerrors.Errorf("%s: unexpected status %s", url, resp.Status)
	}
	if err := decode(resp.Body); err != nil {
		return xerrors.Errorf("decoding response: %w", err)
	}
	return nil
}

// FetchChainInfo fetches the chain info of the relay and checks it against
// chainHash when one is given.
func (c *Client) FetchChainInfo(ctx context.Context, chainHash []byte) (*beacon.Info, error) {
	url := c.root + "info"
	if len(chainHash) > 0 {
		url = fmt.Sprintf("%s%x/info", c.root, chainHash)
	}
	var info *beacon.Info
	err := c.fetch(ctx, url, func(r io.Reader) (err error) {
		info, err = beacon.InfoFromJSON(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(chainHash) == 0 {
		c.l.Warnw("instantiated without trustroot", "chainHash", info.HashString())
	} else if !bytes.Equal(info.Hash(), chainHash) {
		return nil, xerrors.Errorf("%s does not advertise the expected drand chain (%x vs %x)", c.root, info.Hash(), chainHash)
	}
	return info, nil
}

// Get returns the verified beacon of round.
func (c *Client) Get(ctx context.Context, round uint64) (*beacon.Beacon, error) {
	if round == 0 {
		return nil, xerrors.New("round 0 is not a beacon")
	}
	if v, ok := c.cache.Get(round); ok {
		return v.(*beacon.Beacon), nil
	}
	if current := beacon.CurrentRound(c.clock.Now().Unix(), c.info.Period, c.info.GenesisTime); round > current {
		return nil, xerrors.Errorf("round %d, current %d: %w", round, current, ErrRoundNotReady)
	}

	b := new(beacon.Beacon)
	err := c.fetch(ctx, fmt.Sprintf("%s%x/public/%d", c.root, c.info.Hash(), round), func(r io.Reader) error {
		return json.NewDecoder(r).Decode(b)
	})
	if err != nil {
		return nil, err
	}
	if b.Round != round {
		return nil, xerrors.Errorf("relay answered round %d for round %d", b.Round, round)
	}
	if err := c.verifier.VerifyBeacon(b, c.info.PublicKey); err != nil {
		metrics.BeaconVerifyFailures.Inc()
		return nil, xerrors.Errorf("verifying round %d: %w", round, err)
	}
	c.l.Debugw("fetched beacon", "round", round, "beacon", b.String())
	c.cache.Add(round, b)
	return b, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
