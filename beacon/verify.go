package beacon

import (
	"github.com/drand/kyber"
	bls "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/sign/tbls"
)

// Pairing is the pairing suite drand networks sign with.
var Pairing = bls.NewBLS12381Suite()

// KeyGroup is the group of the chain public keys.
var KeyGroup = Pairing.G1()

// scheme verifies recovered threshold signatures on G2.
var scheme = tbls.NewThresholdSchemeOnG2(Pairing)

// Verifier checks beacon signatures against a chain public key.
type Verifier struct {
	chained bool
}

// NewVerifier returns a Verifier for chained or unchained networks.
func NewVerifier(chained bool) *Verifier {
	return &Verifier{chained: chained}
}

// DigestMessage returns the message signed for a round.
func (v *Verifier) DigestMessage(round uint64, prevSig []byte) []byte {
	return Message(round, prevSig, v.chained)
}

// VerifyBeacon returns an error if the given beacon does not verify given the
// public key.
func (v *Verifier) VerifyBeacon(b *Beacon, pubkey kyber.Point) error {
	return scheme.VerifyRecovered(pubkey, v.DigestMessage(b.Round, b.PreviousSig), b.Signature)
}
