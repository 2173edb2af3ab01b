// Package field implements the modular arithmetic and Shamir secret-sharing
// primitives the MPC engine is built on: share generation, Lagrange
// reconstruction, matrix inversion mod p, and modular square roots.
//
// Every value here lives in Z_p for a prime p < 2^32 (see ErrFieldTooLarge);
// intermediate products are carried in uint64 to avoid overflow before
// reduction.
package field

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrFieldTooLarge is returned when a prime does not fit the 32-bit share
// encoding used on the wire (§6 of the spec).
var ErrFieldTooLarge = errors.New("field: prime must be smaller than 2^32")

// ErrSingularMatrix is returned by Inverse when no pivot can be found for a
// row; this should not occur for the primes this system is configured with.
var ErrSingularMatrix = errors.New("field: matrix is not invertible")

// ErrNotEnoughShares is returned by Reconstruct when no points are supplied,
// or when two points share an x. Reconstruct does not compare the number of
// points against a reconstruction threshold.
var ErrNotEnoughShares = errors.New("field: not enough distinct shares to reconstruct")

// CheckPrime validates that p fits the wire's 32-bit share width.
func CheckPrime(p uint64) error {
	if p == 0 || p >= (1<<32) {
		return ErrFieldTooLarge
	}
	return nil
}

// Point is a single Shamir share: the polynomial evaluated at X.
type Point struct {
	X uint64
	Y uint64
}

func mulmod(a, b, p uint64) uint64 {
	return (a % p) * (b % p) % p
}

func addmod(a, b, p uint64) uint64 {
	return (a + b) % p
}

func submod(a, b, p uint64) uint64 {
	return (a%p + p - b%p) % p
}

func powmod(base, exp, p uint64) uint64 {
	base %= p
	result := uint64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result = mulmod(result, base, p)
		}
		base = mulmod(base, base, p)
		exp >>= 1
	}
	return result
}

// invmod returns a^-1 mod p via Fermat's little theorem; p must be prime.
func invmod(a, p uint64) uint64 {
	return powmod(a, p-2, p)
}

// Threshold returns the reconstruction threshold t = floor((D+1)/2) for a
// clique of D talliers, ported from utils.py's clean_gen_shamir call site
// (config.py's res.t = (res.D + 1) // 2) — floor, not ceil: bgw_multiply
// recombines a degree-2(t-1) product from exactly D points in one round,
// which only holds when 2(t-1) <= D-1. Ceiling division breaks that bound
// for every even D.
func Threshold(d int) int {
	return (d + 1) / 2
}

// GenShares samples a degree-(threshold-1) polynomial with f(0) = value and
// returns the D evaluations f(1)..f(D), ports clean_gen_shamir from the
// source's utils.py. The zero coefficient is value itself; the rest are
// drawn uniformly from [0, p).
func GenShares(value uint64, count, threshold int, p uint64) []uint64 {
	coeffs := make([]uint64, threshold)
	coeffs[0] = value % p
	for i := 1; i < threshold; i++ {
		coeffs[i] = uint64(rand.Int63n(int64(p)))
	}
	shares := make([]uint64, count)
	for x := 1; x <= count; x++ {
		shares[x-1] = evalPoly(coeffs, uint64(x), p)
	}
	return shares
}

// GenSharePoints is like GenShares but returns (x, y) pairs, porting
// gen_shamir; used where callers need the evaluation points explicitly
// (e.g. to feed Reconstruct).
func GenSharePoints(value uint64, count, threshold int, p uint64) []Point {
	shares := GenShares(value, count, threshold, p)
	points := make([]Point, count)
	for i, y := range shares {
		points[i] = Point{X: uint64(i + 1), Y: y}
	}
	return points
}

func evalPoly(coeffs []uint64, x, p uint64) uint64 {
	var result uint64
	xPow := uint64(1)
	for _, c := range coeffs {
		result = addmod(result, mulmod(c, xPow, p), p)
		xPow = mulmod(xPow, x, p)
	}
	return result
}

// Reconstruct performs Lagrange interpolation at 0 over the given points,
// porting utils.resolve. It fails if two points share an X.
func Reconstruct(points []Point, p uint64) (uint64, error) {
	if len(points) == 0 {
		return 0, ErrNotEnoughShares
	}
	seen := make(map[uint64]bool, len(points))
	for _, pt := range points {
		if seen[pt.X] {
			return 0, ErrNotEnoughShares
		}
		seen[pt.X] = true
	}

	var sum uint64
	for _, pt := range points {
		c1, c2 := uint64(1), uint64(1)
		for _, other := range points {
			if other.X != pt.X {
				c1 = mulmod(c1, other.X, p)
				c2 = mulmod(c2, submod(other.X, pt.X, p), p)
			}
		}
		lambda := mulmod(c1, invmod(c2, p), p)
		sum = addmod(sum, mulmod(lambda, pt.Y, p), p)
	}
	return sum, nil
}

// Inverse computes the modular inverse of a square matrix mod p via
// Gauss-Jordan elimination, porting utils.inverse. The input is not
// mutated.
func Inverse(a [][]uint64, p uint64) ([][]uint64, error) {
	n := len(a)
	aug := make([][]uint64, n)
	for i := range a {
		if len(a[i]) != n {
			return nil, fmt.Errorf("field: matrix must be square, row %d has %d columns", i, len(a[i]))
		}
		row := make([]uint64, 2*n)
		copy(row, a[i])
		row[n+i] = 1
		aug[i] = row
	}

	eliminate := func(r1, r2 []uint64, col int, target uint64) {
		fac := mulmod(submod(r2[col], target, p), invmod(r1[col], p), p)
		for i := range r2 {
			r2[i] = submod(r2[i], mulmod(fac, r1[i], p), p)
		}
	}

	for i := 0; i < n; i++ {
		if aug[i][i] == 0 {
			swapped := false
			for j := i + 1; j < n; j++ {
				if aug[j][i] != 0 {
					aug[i], aug[j] = aug[j], aug[i]
					swapped = true
					break
				}
			}
			if !swapped {
				return nil, ErrSingularMatrix
			}
		}
		for j := i + 1; j < n; j++ {
			eliminate(aug[i], aug[j], i, 0)
		}
	}
	for i := n - 1; i >= 0; i-- {
		for j := i - 1; j >= 0; j-- {
			eliminate(aug[i], aug[j], i, 0)
		}
	}
	for i := 0; i < n; i++ {
		eliminate(aug[i], aug[i], i, 1)
	}

	out := make([][]uint64, n)
	for i := range out {
		out[i] = append([]uint64(nil), aug[i][n:]...)
	}
	return out, nil
}

// VandermondeFirstRow precomputes the first row of the inverse Vandermonde
// matrix over evaluation points 1..D, the lambda_i coefficients used by
// BgwMultiply's single-round degree reduction, porting MpcBase's
// vandermond_first_row.
func VandermondeFirstRow(d int, p uint64) ([]uint64, error) {
	m := make([][]uint64, d)
	for i := 0; i < d; i++ {
		row := make([]uint64, d)
		for j := 0; j < d; j++ {
			row[j] = powmod(uint64(i+1), uint64(j), p)
		}
		m[i] = row
	}
	inv, err := Inverse(m, p)
	if err != nil {
		return nil, err
	}
	return inv[0], nil
}

// ModSqrt finds r with r^2 = a (mod p) via Tonelli-Shanks; p must be an odd
// prime. Returns 0 if a is a quadratic non-residue (ports utils.modular_sqrt;
// see pkg/mpc.RandomBit, which treats that 0 as a retry signal, not an
// error).
func ModSqrt(a, p uint64) uint64 {
	a %= p
	if a == 0 || p == 2 {
		return a
	}
	legendre := func(a uint64) int64 {
		ls := powmod(a, (p-1)/2, p)
		if ls == p-1 {
			return -1
		}
		return int64(ls)
	}
	if legendre(a) != 1 {
		return 0
	}
	if p%4 == 3 {
		return powmod(a, (p+1)/4, p)
	}

	s, e := p-1, uint64(0)
	for s%2 == 0 {
		s /= 2
		e++
	}

	n := uint64(2)
	for legendre(n) != -1 {
		n++
	}

	x := powmod(a, (s+1)/2, p)
	b := powmod(a, s, p)
	g := powmod(n, s, p)
	r := e

	for {
		t := b
		m := uint64(0)
		for ; m < r; m++ {
			if t == 1 {
				break
			}
			t = mulmod(t, t, p)
		}
		if m == 0 {
			return x
		}
		gs := powmod(g, uint64(1)<<(r-m-1), p)
		g = mulmod(gs, gs, p)
		x = mulmod(x, gs, p)
		b = mulmod(b, g, p)
		r = m
	}
}

// LagrangePolynomial returns the coefficients (ascending powers) of the
// unique polynomial through the given points, porting
// utils.lagrange_polynomial. Used to build the fan-in-OR discriminator
// polynomial in pkg/mpc.
func LagrangePolynomial(points []Point, p uint64) []uint64 {
	res := make([]uint64, len(points))

	var coeffsOf func(xs []uint64) []uint64
	coeffsOf = func(xs []uint64) []uint64 {
		if len(xs) == 0 {
			return []uint64{1}
		}
		if len(xs) == 1 {
			return []uint64{submod(0, xs[0], p), 1}
		}
		sub := coeffsOf(xs[1:])
		out := make([]uint64, len(sub)+1)
		for i := range out {
			var left, right uint64
			if i < len(sub) {
				left = sub[i]
			}
			if i > 0 {
				right = sub[i-1]
			}
			out[i] = submod(right, mulmod(left, xs[0], p), p)
		}
		return out
	}

	for j, pj := range points {
		var others []uint64
		for k, pk := range points {
			if k != j {
				others = append(others, pk.X)
			}
		}
		denom := uint64(1)
		for _, x := range others {
			denom = mulmod(denom, submod(pj.X, x, p), p)
		}
		q := invmod(denom, p)
		lj := coeffsOf(others)
		for i := range res {
			if i < len(lj) {
				res[i] = addmod(res[i], mulmod(mulmod(lj[i], q, p), pj.Y, p), p)
			}
		}
	}
	return res
}
