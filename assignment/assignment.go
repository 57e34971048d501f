// Package assignment implements the pseudo-random partition of a participant
// category into meetups.
//
// A category of m seated participants is mapped to n meetups by
//
//	f(i) = ((i*s1 + s2) mod m) mod n
//
// Since s1 is coprime to m, i -> (i*s1 + s2) mod m is a permutation of Z_m and
// the final reduction splits it into n buckets whose sizes differ by at most
// one. The same parameters let anyone reconstruct a meetup roster with
// Inverse, without scanning the whole category.
package assignment

import (
	"sort"

	"github.com/drand/ceremony/random"
)

// Params defines the partition function of one category. M is the size of the
// permuted domain, S1 a random value coprime to M and S2 an additive offset.
type Params struct {
	M  uint64 `json:"m"`
	S1 uint64 `json:"s1"`
	S2 uint64 `json:"s2"`
}

// IsZero reports whether p describes an empty category.
func (p Params) IsZero() bool {
	return p.M == 0
}

// GenerateParams derives the partition parameters for numParticipants seated
// participants spread over numMeetups meetups, drawing randomness from src.
// No randomness is consumed when either count is zero. S2 is strictly below M
// so that 0 < S2 < M holds for M > 1. S1 falls back to 1, the identity
// permutation, when no coprime was drawn within the attempt bound.
func GenerateParams(numParticipants, numMeetups uint64, src random.Source) Params {
	if numParticipants == 0 || numMeetups == 0 {
		return Params{}
	}
	m := numParticipants
	s1, ok := FindRandomCoprimeBelow(m, src)
	if !ok {
		s1 = 1
	}
	return Params{
		M:  m,
		S1: s1,
		S2: primeOffset(m),
	}
}

// primeOffset returns the largest prime strictly below m, or m-1 when m <= 2.
func primeOffset(m uint64) uint64 {
	if m <= 2 {
		return m - 1
	}
	return FindPrimeBelow(m - 1)
}

// Fn returns the zero based meetup of participant i among n meetups.
func Fn(i uint64, p Params, n uint64) (uint64, error) {
	if p.M == 0 || n == 0 {
		return 0, ErrCheckedMath
	}
	v := addMod(mulMod(i, p.S1, p.M), p.S2%p.M, p.M)
	return v % n, nil
}

// MeetupIndex returns the one based meetup index of participant i.
func MeetupIndex(i uint64, p Params, n uint64) (uint64, error) {
	idx, err := Fn(i, p, n)
	if err != nil {
		return 0, err
	}
	return idx + 1, nil
}

// Inverse returns, in ascending order, every participant index below
// numParticipants that Fn maps to the zero based meetup k. Only the residues
// r < M with r mod n == k are visited.
func Inverse(k uint64, p Params, n, numParticipants uint64) ([]uint64, error) {
	if n == 0 || p.M == 0 || k >= n {
		return []uint64{}, nil
	}
	inv, err := ModInv(p.S1, p.M)
	if err != nil {
		return nil, err
	}
	s2 := p.S2 % p.M
	out := make([]uint64, 0, p.M/n+1)
	for r := k; r < p.M; {
		i := mulMod(subMod(r, s2, p.M), inv, p.M)
		if i < numParticipants {
			out = append(out, i)
		}
		if p.M-r <= n {
			break
		}
		r += n
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out, nil
}
