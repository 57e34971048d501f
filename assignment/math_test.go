package assignment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/ceremony/random"
)

// fixedSource replays a list of values, modulo the requested range.
type fixedSource struct {
	vals []uint64
	i    int
}

func (f *fixedSource) PickUint64(max uint64) uint64 {
	v := f.vals[f.i%len(f.vals)]
	f.i++
	if max == math.MaxUint64 {
		return v
	}
	return v % (max + 1)
}

func TestIsPrime(t *testing.T) {
	for _, n := range []uint64{2, 3, 5, 7, 113, 7919, 2147483647} {
		require.True(t, IsPrime(n), "%d", n)
	}
	for _, n := range []uint64{0, 1, 4, 9, 25, 114, 115, 7917, 1 << 20} {
		require.False(t, IsPrime(n), "%d", n)
	}
}

func TestFindPrimeBelow(t *testing.T) {
	tests := []struct {
		n   uint64
		exp uint64
	}{
		{0, 2},
		{1, 2},
		{2, 2},
		{5, 5},
		{10, 7},
		{113, 113},
		{118, 113},
		{2761, 2753},
	}
	for _, tt := range tests {
		require.Equal(t, tt.exp, FindPrimeBelow(tt.n), "n=%d", tt.n)
	}
}

func TestFindRandomCoprimeBelow(t *testing.T) {
	for _, m := range []uint64{0, 1, 2} {
		c, ok := FindRandomCoprimeBelow(m, random.New(nil))
		require.True(t, ok)
		require.Equal(t, uint64(1), c)
	}

	// candidates 5 and 9 share a factor with 15, 7 does not
	src := &fixedSource{vals: []uint64{4, 8, 6}}
	c, ok := FindRandomCoprimeBelow(15, src)
	require.True(t, ok)
	require.Equal(t, uint64(7), c)
	require.Equal(t, 3, src.i)

	// only 5 is ever drawn
	src = &fixedSource{vals: []uint64{4}}
	_, ok = FindRandomCoprimeBelow(15, src)
	require.False(t, ok)
	require.Equal(t, maxCoprimeAttempts, src.i)

	g := random.New([]byte("coprime"))
	for m := uint64(3); m < 500; m++ {
		c, ok := FindRandomCoprimeBelow(m, g)
		require.True(t, ok)
		require.True(t, c >= 1 && c < m)
		require.True(t, IsCoprime(c, m))
	}
}

func TestModInv(t *testing.T) {
	tests := []struct {
		a, m, exp uint64
	}{
		{2, 7, 4},
		{69, 113, 95},
		{111, 113, 56},
		{1, 1, 0},
	}
	for _, tt := range tests {
		inv, err := ModInv(tt.a, tt.m)
		require.NoError(t, err)
		require.Equal(t, tt.exp, inv)
	}

	for m := uint64(2); m < 200; m++ {
		for a := uint64(1); a < m; a++ {
			inv, err := ModInv(a, m)
			if !IsCoprime(a, m) {
				require.ErrorIs(t, err, ErrNotCoprime)
				continue
			}
			require.NoError(t, err)
			require.Equal(t, uint64(1), a*inv%m)
		}
	}

	_, err := ModInv(3, 0)
	require.ErrorIs(t, err, ErrCheckedMath)
	_, err = ModInv(4, 6)
	require.ErrorIs(t, err, ErrNotCoprime)
}

func TestCheckedMath(t *testing.T) {
	v, err := CheckedCeilDivision(10, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(4), v)
	v, err = CheckedCeilDivision(9, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(3), v)
	_, err = CheckedCeilDivision(1, 0)
	require.ErrorIs(t, err, ErrCheckedMath)

	_, err = CheckedModulo(1, 0)
	require.ErrorIs(t, err, ErrCheckedMath)
	_, err = CheckedSub(1, 2)
	require.ErrorIs(t, err, ErrCheckedMath)
	_, err = CheckedMul(math.MaxUint64, 2)
	require.ErrorIs(t, err, ErrCheckedMath)
	v, err = CheckedMul(1<<31, 1<<31)
	require.NoError(t, err)
	require.Equal(t, uint64(1<<62), v)
}

func TestModularHelpers(t *testing.T) {
	const m = math.MaxUint64 - 58 // largest 64 bit prime
	require.Equal(t, uint64(1), mulMod(m-1, m-1, m))
	require.Equal(t, uint64(m-2), addMod(m-1, m-1, m))
	require.Equal(t, uint64(m-1), subMod(0, 1, m))
	require.Equal(t, uint64(3), subMod(5, 2, m))
}
