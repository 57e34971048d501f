package test

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/drand/kyber"
	blssign "github.com/drand/kyber/sign/bls" //nolint:staticcheck
	"github.com/drand/kyber/util/random"
	json "github.com/nikkolasg/hexjson"
	"github.com/stretchr/testify/require"

	"github.com/drand/ceremony/beacon"
)

// Chain is a locally signed drand chain, for tests that need verifiable beacons.
type Chain struct {
	sync.Mutex
	Info *beacon.Info

	priv   kyber.Scalar
	signer interface {
		Sign(kyber.Scalar, []byte) ([]byte, error)
	}
	beacons []*beacon.Beacon
	// Latest is the round served as /public/latest; beyond it rounds are 404.
	Latest uint64
}

// NewChain returns a chain with a fresh key pair.
func NewChain(t testing.TB, period time.Duration, genesis int64, chained bool) *Chain {
	t.Helper()
	priv := beacon.KeyGroup.Scalar().Pick(random.New())
	pub := beacon.KeyGroup.Point().Mul(priv, nil)
	groupHash := sha256.Sum256([]byte(t.Name()))
	schemeID := beacon.UnchainedSchemeID
	if chained {
		schemeID = beacon.ChainedSchemeID
	}
	c := &Chain{
		Info: &beacon.Info{
			PublicKey:   pub,
			ID:          beacon.DefaultBeaconID,
			Period:      period,
			Scheme:      schemeID,
			GenesisTime: genesis,
			GroupHash:   groupHash[:],
		},
		priv:   priv,
		signer: blssign.NewSchemeOnG2(beacon.Pairing),
		Latest: 1 << 20,
	}
	return c
}

// Beacon returns the signed beacon of round, signing every round before it
// on a chained network.
func (c *Chain) Beacon(t testing.TB, round uint64) *beacon.Beacon {
	t.Helper()
	c.Lock()
	defer c.Unlock()
	for uint64(len(c.beacons)) < round {
		r := uint64(len(c.beacons)) + 1
		prev := c.Info.GroupHash
		if r > 1 {
			prev = c.beacons[r-2].Signature
		}
		b := &beacon.Beacon{Round: r}
		if c.Info.Chained() {
			b.PreviousSig = prev
		}
		sig, err := c.signer.Sign(c.priv, beacon.Message(r, b.PreviousSig, c.Info.Chained()))
		require.NoError(t, err)
		b.Signature = sig
		b.Randomness = b.Seed()
		c.beacons = append(c.beacons, b)
	}
	return c.beacons[round-1]
}

// Handler serves the chain the way a drand HTTP relay does: /info,
// /public/latest and /public/{round}, optionally prefixed by a chain hash.
func (c *Chain) Handler(t testing.TB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		// relays serve every chain under its hash, and the default one at the root
		if parts := strings.SplitN(path, "/", 2); len(parts) == 2 && len(parts[0]) == 64 {
			path = parts[1]
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case path == "info":
			_ = c.Info.ToJSON(w)
		case strings.HasPrefix(path, "public/"):
			arg := strings.TrimPrefix(path, "public/")
			round := c.Latest
			if arg != "latest" {
				var err error
				if round, err = strconv.ParseUint(arg, 10, 64); err != nil || round == 0 {
					http.Error(w, "bad round", http.StatusBadRequest)
					return
				}
			}
			if round > c.Latest {
				http.NotFound(w, r)
				return
			}
			buf, err := json.Marshal(c.Beacon(t, round))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			_, _ = w.Write(buf)
		default:
			http.Error(w, fmt.Sprintf("unknown path %s", r.URL.Path), http.StatusNotFound)
		}
	})
}
