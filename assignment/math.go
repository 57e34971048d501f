package assignment

import (
	"errors"
	"math"
	"math/bits"

	"github.com/drand/ceremony/random"
)

// ErrCheckedMath is returned when an operation would overflow, underflow or
// divide by zero.
var ErrCheckedMath = errors.New("checked math")

// ErrNotCoprime is returned by ModInv when the inverse does not exist.
var ErrNotCoprime = errors.New("values are not coprime")

// maxCoprimeAttempts bounds the rejection sampling in FindRandomCoprimeBelow.
// phi(m)/m stays above 0.13 for every 64 bit m, so running out of attempts is
// practically unreachable.
const maxCoprimeAttempts = 256

// IsPrime reports whether n is prime, by trial division.
func IsPrime(n uint64) bool {
	if n <= 3 {
		return n > 1
	}
	if n%2 == 0 || n%3 == 0 {
		return false
	}
	for i := uint64(5); i <= n/i; i += 6 {
		if n%i == 0 || n%(i+2) == 0 {
			return false
		}
	}
	return true
}

// FindPrimeBelow returns the largest prime <= n, and 2 when there is none.
func FindPrimeBelow(n uint64) uint64 {
	if n <= 2 {
		return 2
	}
	if n%2 == 0 {
		n--
	}
	for ; n > 2; n -= 2 {
		if IsPrime(n) {
			return n
		}
	}
	return 2
}

// GCD returns the greatest common divisor of a and b.
func GCD(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// IsCoprime reports whether gcd(a, b) == 1.
func IsCoprime(a, b uint64) bool {
	return GCD(a, b) == 1
}

// FindRandomCoprimeBelow samples candidates uniformly from [1, m) until one is
// coprime to m. It returns 1 for m <= 2, and false when every attempt drew a
// value sharing a factor with m.
func FindRandomCoprimeBelow(m uint64, src random.Source) (uint64, bool) {
	if m <= 2 {
		return 1, true
	}
	for i := 0; i < maxCoprimeAttempts; i++ {
		c := random.PickNonZero(src, m-1)
		if IsCoprime(c, m) {
			return c, true
		}
	}
	return 0, false
}

// ModInv returns x in [0, m) such that a*x = 1 (mod m).
func ModInv(a, m uint64) (uint64, error) {
	if m == 0 || m > math.MaxInt64 {
		return 0, ErrCheckedMath
	}
	a %= m
	if !IsCoprime(a, m) {
		return 0, ErrNotCoprime
	}
	// extended euclid, coefficients stay bounded by m
	r0, r1 := int64(m), int64(a)
	x0, x1 := int64(0), int64(1)
	for r1 != 0 {
		q := r0 / r1
		r0, r1 = r1, r0-q*r1
		x0, x1 = x1, x0-q*x1
	}
	if x0 < 0 {
		x0 += int64(m)
	}
	return uint64(x0) % m, nil
}

// CheckedCeilDivision returns ceil(a / b).
func CheckedCeilDivision(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrCheckedMath
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return q, nil
}

// CheckedModulo returns a mod b.
func CheckedModulo(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrCheckedMath
	}
	return a % b, nil
}

// CheckedSub returns a - b, failing instead of wrapping around.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrCheckedMath
	}
	return a - b, nil
}

// CheckedMul returns a * b, failing on overflow.
func CheckedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrCheckedMath
	}
	return lo, nil
}

// mulMod returns a*b mod m without overflowing. m must be non zero.
func mulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a%m, b%m)
	return bits.Rem64(hi, lo, m)
}

// addMod returns a+b mod m for a, b < m.
func addMod(a, b, m uint64) uint64 {
	if a >= m-b {
		return a - (m - b)
	}
	return a + b
}

// subMod returns a-b mod m for a, b < m.
func subMod(a, b, m uint64) uint64 {
	if a >= b {
		return a - b
	}
	return m - (b - a)
}
