// Package beacon models the drand randomness beacons a ceremony cycle is
// seeded from, and maps ceremony indices to beacon rounds.
package beacon

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	json "github.com/nikkolasg/hexjson"
)

// Beacon is one round of a drand chain as served by the HTTP relays.
type Beacon struct {
	Round       uint64 `json:"round"`
	Randomness  []byte `json:"randomness,omitempty"`
	Signature   []byte `json:"signature"`
	PreviousSig []byte `json:"previous_signature,omitempty"`
}

// Equal indicates if two beacons are equal
func (b *Beacon) Equal(b2 *Beacon) bool {
	return b.Round == b2.Round &&
		bytes.Equal(b.Signature, b2.Signature) &&
		bytes.Equal(b.PreviousSig, b2.PreviousSig)
}

// Marshal provides a JSON encoding of a beacon
func (b *Beacon) Marshal() ([]byte, error) {
	return json.Marshal(b)
}

// Unmarshal decodes a beacon from JSON
func (b *Beacon) Unmarshal(buff []byte) error {
	return json.Unmarshal(buff, b)
}

// Seed returns the randomness of the round, the sha256 of its signature.
func (b *Beacon) Seed() []byte {
	return RandomnessFromSignature(b.Signature)
}

// RandomnessFromSignature derives the round randomness from its signature
func RandomnessFromSignature(sig []byte) []byte {
	out := sha256.Sum256(sig)
	return out[:]
}

func (b *Beacon) String() string {
	return fmt.Sprintf("{ round: %d, sig: %s, prevSig: %s }", b.Round, shortSigStr(b.Signature), shortSigStr(b.PreviousSig))
}

// Message returns the digest signed for a round: H(prevSig || round) on
// chained networks, H(round) otherwise.
func Message(round uint64, prevSig []byte, chained bool) []byte {
	h := sha256.New()
	if chained {
		_, _ = h.Write(prevSig)
	}
	_, _ = h.Write(RoundToBytes(round))
	return h.Sum(nil)
}

// RoundToBytes serializes a round number to bytes (8 bytes fixed length big-endian).
func RoundToBytes(r uint64) []byte {
	var buff [8]byte
	binary.BigEndian.PutUint64(buff[:], r)
	return buff[:]
}

func shortSigStr(sig []byte) string {
	max := 3
	if len(sig) < max {
		max = len(sig)
	}
	return hex.EncodeToString(sig[0:max])
}
