package beacon

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/drand/kyber"
	json "github.com/nikkolasg/hexjson"
)

// Scheme identifiers advertised by drand networks.
const (
	ChainedSchemeID   = "pedersen-bls-chained"
	UnchainedSchemeID = "pedersen-bls-unchained"
	DefaultBeaconID   = "default"
)

// Info represents the public information that is necessary for a client to
// verify any beacon present in a randomness chain.
type Info struct {
	PublicKey   kyber.Point
	ID          string
	Period      time.Duration
	Scheme      string
	GenesisTime int64
	GroupHash   []byte
}

type infoJSON struct {
	PublicKey   []byte `json:"public_key"`
	Period      uint32 `json:"period"`
	GenesisTime int64  `json:"genesis_time"`
	Hash        []byte `json:"hash,omitempty"`
	GroupHash   []byte `json:"groupHash"`
	SchemeID    string `json:"schemeID,omitempty"`
	Metadata    *struct {
		BeaconID string `json:"beaconID"`
	} `json:"metadata,omitempty"`
}

// Chained reports whether every round signs the previous signature.
func (c *Info) Chained() bool {
	return c.Scheme == "" || c.Scheme == ChainedSchemeID
}

// Hash returns the canonical hash representing the chain information. A hash is
// consistent throughout the entirety of a chain, regardless of the network
// composition, the actual nodes, generating the randomness.
func (c *Info) Hash() []byte {
	h := sha256.New()
	_ = binary.Write(h, binary.BigEndian, uint32(c.Period.Seconds()))
	_ = binary.Write(h, binary.BigEndian, c.GenesisTime)

	if c.PublicKey != nil {
		buff, err := c.PublicKey.MarshalBinary()
		if err == nil {
			_, _ = h.Write(buff)
		}
	}
	_, _ = h.Write(c.GroupHash)

	if c.ID != "" && c.ID != DefaultBeaconID {
		_, _ = h.Write([]byte(c.ID))
	}
	return h.Sum(nil)
}

// HashString returns the value of Hash in string format
func (c *Info) HashString() string {
	return hex.EncodeToString(c.Hash())
}

// Equal indicates if two Chain Info objects are equivalent
func (c *Info) Equal(c2 *Info) bool {
	return c.GenesisTime == c2.GenesisTime &&
		c.Period == c2.Period &&
		c.PublicKey.Equal(c2.PublicKey) &&
		bytes.Equal(c.GroupHash, c2.GroupHash) &&
		c.ID == c2.ID &&
		c.Scheme == c2.Scheme
}

// Verifier returns the verifier used to verify the beacons of this chain.
func (c *Info) Verifier() *Verifier {
	return NewVerifier(c.Chained())
}

// InfoFromJSON returns a Info from JSON description in the given reader
func InfoFromJSON(r io.Reader) (*Info, error) {
	var raw infoJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("reading chain info: %w", err)
	}
	public := KeyGroup.Point()
	if err := public.UnmarshalBinary(raw.PublicKey); err != nil {
		return nil, fmt.Errorf("invalid chain info public key: %w", err)
	}
	info := &Info{
		PublicKey:   public,
		Period:      time.Duration(raw.Period) * time.Second,
		GenesisTime: raw.GenesisTime,
		GroupHash:   raw.GroupHash,
		Scheme:      raw.SchemeID,
	}
	if raw.Metadata != nil {
		info.ID = raw.Metadata.BeaconID
	}
	return info, nil
}

// ToJSON provides a json serialization of an info packet
func (c *Info) ToJSON(w io.Writer) error {
	pub, err := c.PublicKey.MarshalBinary()
	if err != nil {
		return err
	}
	raw := infoJSON{
		PublicKey:   pub,
		Period:      uint32(c.Period.Seconds()),
		GenesisTime: c.GenesisTime,
		Hash:        c.Hash(),
		GroupHash:   c.GroupHash,
		SchemeID:    c.Scheme,
	}
	if c.ID != "" {
		raw.Metadata = &struct {
			BeaconID string `json:"beaconID"`
		}{c.ID}
	}
	return json.NewEncoder(w).Encode(raw)
}
