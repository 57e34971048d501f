// Package random provides the deterministic randomness cursor consumed while
// computing a ceremony cycle. Every validating node seeds a Generator with the
// same cycle seed and draws from it in the same order, so all of them derive
// identical assignments.
package random

import (
	"encoding/binary"
	"math"

	"golang.org/x/crypto/blake2b"
)

// Source is a sequential stream of pseudo-random numbers.
type Source interface {
	// PickUint64 returns a uniformly distributed value in [0, max].
	PickUint64(max uint64) uint64
}

// Generator is a Source obtained by hash-chaining a seed with blake2b-256.
// It is not safe for concurrent use: the draw order is part of its output.
type Generator struct {
	current [blake2b.Size256]byte
	offset  int
}

// New returns a Generator for the given seed.
func New(seed []byte) *Generator {
	return &Generator{current: blake2b.Sum256(seed)}
}

func (g *Generator) next() uint64 {
	if g.offset+8 > len(g.current) {
		g.current = blake2b.Sum256(g.current[:])
		g.offset = 0
	}
	v := binary.LittleEndian.Uint64(g.current[g.offset:])
	g.offset += 8
	return v
}

// PickUint64 implements Source. Values are rejection sampled so that the
// result is not biased towards the low end of the range.
func (g *Generator) PickUint64(max uint64) uint64 {
	if max == 0 {
		return 0
	}
	if max == math.MaxUint64 {
		return g.next()
	}
	bound := max + 1
	limit := math.MaxUint64 - math.MaxUint64%bound
	for {
		if v := g.next(); v < limit {
			return v % bound
		}
	}
}

// PickNonZero returns a value in [1, max] drawn from src. It returns 0 when max is 0.
func PickNonZero(src Source, max uint64) uint64 {
	if max == 0 {
		return 0
	}
	return src.PickUint64(max-1) + 1
}
