// Package validation judges, from the votes and attestations reported by the
// participants of one meetup, which of them actually attended.
package validation

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

var (
	// ErrBallotEmpty is returned when no participant cast a usable vote.
	ErrBallotEmpty = errors.New("ballot empty")
	// ErrNoDependableVote is returned when no vote value has enough support
	// or when the two leading values tie.
	ErrNoDependableVote = errors.New("no dependable vote")
	// ErrIndexOutOfBounds is returned when a participant index has no vote or
	// attestation entry.
	ErrIndexOutOfBounds = errors.New("index out of bounds")
)

// MinDependableVotes is the support a vote value needs to be trusted.
const MinDependableVotes = 3

// ExclusionReason tells why a participant is not legit.
type ExclusionReason int

const (
	NoVote ExclusionReason = iota
	WrongVote
	TooFewIncomingAttestations
	TooFewOutgoingAttestations
)

var reasonNames = [...]string{
	NoVote:                     "noVote",
	WrongVote:                  "wrongVote",
	TooFewIncomingAttestations: "tooFewIncomingAttestations",
	TooFewOutgoingAttestations: "tooFewOutgoingAttestations",
}

func (r ExclusionReason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("reason(%d)", int(r))
	}
	return reasonNames[r]
}

// MarshalText implements encoding.TextMarshaler.
func (r ExclusionReason) MarshalText() ([]byte, error) {
	if r < 0 || int(r) >= len(reasonNames) {
		return nil, fmt.Errorf("unknown exclusion reason %d", int(r))
	}
	return []byte(reasonNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ExclusionReason) UnmarshalText(text []byte) error {
	for i, name := range reasonNames {
		if name == string(text) {
			*r = ExclusionReason(i)
			return nil
		}
	}
	return fmt.Errorf("unknown exclusion reason %q", text)
}

// ExcludedParticipant is a participant judged not legit.
type ExcludedParticipant struct {
	Index  int             `json:"index"`
	Reason ExclusionReason `json:"reason"`
}

// Judgement is the outcome of judging one meetup.
type Judgement struct {
	Legit                []int                 `json:"legit"`
	Excluded             []ExcludedParticipant `json:"excluded"`
	EarlyRewardsPossible bool                  `json:"early_rewards_possible"`
}

func newJudgement(participants []int) *Judgement {
	legit := make([]int, len(participants))
	copy(legit, participants)
	return &Judgement{Legit: legit, Excluded: []ExcludedParticipant{}}
}

// exclude moves the given participants from the legit set to the excluded list.
func (j *Judgement) exclude(excluded []ExcludedParticipant) {
	if len(excluded) == 0 {
		return
	}
	out := make(map[int]bool, len(excluded))
	for _, e := range excluded {
		out[e.Index] = true
	}
	legit := j.Legit[:0]
	for _, i := range j.Legit {
		if !out[i] {
			legit = append(legit, i)
		}
	}
	j.Legit = legit
	j.Excluded = append(j.Excluded, excluded...)
}

// Digest returns a blake3 commitment to the judgement.
func (j *Judgement) Digest() []byte {
	h := blake3.New()
	var buf [8]byte
	write := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	write(uint64(len(j.Legit)))
	for _, i := range j.Legit {
		write(uint64(i))
	}
	write(uint64(len(j.Excluded)))
	for _, e := range j.Excluded {
		write(uint64(e.Index))
		write(uint64(e.Reason))
	}
	if j.EarlyRewardsPossible {
		write(1)
	} else {
		write(0)
	}
	return h.Sum(nil)
}

// ThresholdFn returns the minimum number of attestations a participant must
// give and receive when remaining participants are still in the meetup.
type ThresholdFn func(remaining int) int

// DefaultThreshold tolerates one missing attestation in meetups of more than
// five participants.
func DefaultThreshold(remaining int) int {
	t := remaining - 1
	if remaining > 5 {
		t = remaining - 2
	}
	if t < 1 {
		return 1
	}
	return t
}
