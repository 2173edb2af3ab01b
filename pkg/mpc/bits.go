package mpc

import (
	"context"
	"math"
	"math/bits"

	"github.com/arthurzam/securevote/pkg/field"
	"golang.org/x/sync/errgroup"
)

func modp(v int64, p uint64) uint64 {
	m := v % int64(p)
	if m < 0 {
		m += int64(p)
	}
	return uint64(m)
}

// fanInOrCoefficients returns the Lagrange coefficients for the degree-length
// discriminator polynomial through (1,0),(2,1),(3,1),...,(length+1,1), caching
// by length since the polynomial depends only on e.P and the input length,
// porting MpcWinner.__fan_in_or_coefficients.
func (e *Engine) fanInOrCoefficients(length int) []uint64 {
	e.foCacheMu.Lock()
	defer e.foCacheMu.Unlock()
	if c, ok := e.foCache[length]; ok {
		return c
	}
	points := make([]field.Point, length+1)
	points[0] = field.Point{X: 1, Y: 0}
	for i := 0; i < length; i++ {
		points[i+1] = field.Point{X: uint64(i + 2), Y: 1}
	}
	coeffs := field.LagrangePolynomial(points, e.P)
	e.foCache[length] = coeffs
	return coeffs
}

// FanInOr computes the secure OR of an arbitrary number of (0/1-valued)
// shares, computing the powers of A = 1 + sum(a) with len(a)-1 sequential
// multiplications, porting MpcWinner.fan_in_or.
func (e *Engine) FanInOr(ctx context.Context, msgid uint32, a []uint64) (uint64, error) {
	var sum uint64
	for _, v := range a {
		sum = (sum + v) % e.P
	}
	A := (1 + sum) % e.P
	alpha := e.fanInOrCoefficients(len(a))

	res := (alpha[0] + alpha[1]*A) % e.P
	mulA := A
	for i := 1; i < len(a); i++ {
		var err error
		mulA, err = e.mulS(ctx, msgid, A, mulA)
		if err != nil {
			return 0, err
		}
		res = (res + alpha[i+1]*mulA) % e.P
	}
	return res, nil
}

func (e *Engine) calcMul(ctx context.Context, msgbase uint32, first uint64, seconds []uint64) ([]uint64, error) {
	out := make([]uint64, len(seconds))
	g, ctx := errgroup.WithContext(ctx)
	for i, v := range seconds {
		i, v := i, v
		g.Go(func() error {
			r, err := e.mulS(ctx, msgbase+uint32(i), first, v)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// PrefixOr computes, for a list of 0/1 shares a_0..a_{n-1}, the list of
// running ORs b_i = a_0 OR ... OR a_i, in O(sqrt(n)) rounds. Ports
// MpcWinner.prefix_or.
func (e *Engine) PrefixOr(ctx context.Context, msgid uint32, a []uint64) ([]uint64, error) {
	origLen := len(a)
	lam := int(math.Ceil(math.Sqrt(float64(origLen))))
	padded := make([]uint64, lam*lam)
	copy(padded, a)

	aIJ := make([][]uint64, lam)
	for i := 0; i < lam; i++ {
		aIJ[i] = padded[i*lam : (i+1)*lam]
	}

	xI := make([]uint64, lam)
	{
		g, ctx := errgroup.WithContext(ctx)
		for i := 0; i < lam; i++ {
			i := i
			g.Go(func() error {
				v, err := e.FanInOr(ctx, msgid+uint32(2*lam*i), aIJ[i])
				if err != nil {
					return err
				}
				xI[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	yI := make([]uint64, lam)
	{
		g, ctx := errgroup.WithContext(ctx)
		for i := 0; i < lam; i++ {
			i := i
			g.Go(func() error {
				v, err := e.FanInOr(ctx, msgid+uint32(2*i*lam), xI[:i+1])
				if err != nil {
					return err
				}
				yI[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	fI := make([]uint64, lam)
	fI[0] = yI[0]
	for i := 1; i < lam; i++ {
		fI[i] = modp(int64(yI[i])-int64(yI[i-1]), e.P)
	}

	gIJ := make([][]uint64, lam)
	{
		g, ctx := errgroup.WithContext(ctx)
		for i := 0; i < lam; i++ {
			i := i
			g.Go(func() error {
				v, err := e.calcMul(ctx, msgid+uint32(lam*i), fI[i], aIJ[i])
				if err != nil {
					return err
				}
				gIJ[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	cJ := make([]uint64, lam)
	for j := 0; j < lam; j++ {
		var sum uint64
		for i := 0; i < lam; i++ {
			sum = (sum + gIJ[i][j]) % e.P
		}
		cJ[j] = sum
	}

	hJ := make([]uint64, lam)
	{
		g, ctx := errgroup.WithContext(ctx)
		for j := 0; j < lam; j++ {
			j := j
			g.Go(func() error {
				v, err := e.FanInOr(ctx, msgid+uint32(2*j*lam), cJ[:j+1])
				if err != nil {
					return err
				}
				hJ[j] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	sIJ := make([][]uint64, lam)
	{
		g, ctx := errgroup.WithContext(ctx)
		for i := 0; i < lam; i++ {
			i := i
			g.Go(func() error {
				v, err := e.calcMul(ctx, msgid+uint32(lam*i), fI[i], hJ)
				if err != nil {
					return err
				}
				sIJ[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := make([]uint64, 0, lam*lam)
	for i := 0; i < lam; i++ {
		for j := 0; j < lam; j++ {
			out = append(out, modp(int64(sIJ[i][j])+int64(yI[i])-int64(fI[i]), e.P))
		}
	}
	return out[:origLen], nil
}

// Xor computes the secure XOR of two equal-length 0/1 share lists.
func (e *Engine) Xor(ctx context.Context, msgid uint32, a, b []uint64) ([]uint64, error) {
	c := make([]uint64, len(a))
	g, ctx := errgroup.WithContext(ctx)
	for i := range a {
		i := i
		g.Go(func() error {
			v, err := e.mulS(ctx, msgid+uint32(i), a[i], b[i])
			if err != nil {
				return err
			}
			c[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]uint64, len(a))
	for i := range a {
		out[i] = modp(int64(a[i])+int64(b[i])-2*int64(c[i]), e.P)
	}
	return out, nil
}

// LessBitwise returns 1 if the bitstring a (LSB first) is numerically less
// than b (LSB first), 0 otherwise, porting MpcWinner.less_bitwise.
func (e *Engine) LessBitwise(ctx context.Context, msgid uint32, a, b []uint64) (uint64, error) {
	c, err := e.Xor(ctx, msgid, a, b)
	if err != nil {
		return 0, err
	}
	reverse(c)
	d, err := e.PrefixOr(ctx, msgid, c)
	if err != nil {
		return 0, err
	}
	reverse(d)
	n := len(a)
	eVals := make([]uint64, n)
	for i := 0; i < n-1; i++ {
		eVals[i] = modp(int64(d[i])-int64(d[i+1]), e.P)
	}
	eVals[n-1] = d[n-1]

	h := make([]uint64, n)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			v, err := e.mulS(ctx, msgid+uint32(i), eVals[i], b[i])
			if err != nil {
				return err
			}
			h[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	var sum uint64
	for _, v := range h {
		sum = (sum + v) % e.P
	}
	return sum, nil
}

func reverse(s []uint64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// RandomBit performs Joint Random Bit Sharing: draws a random shared value,
// resolves its square, and uses the resolved modular square root to fold it
// to a uniform bit. Retries on the unlikely event the square resolves to 0.
// Ports MpcWinner.random_bit.
func (e *Engine) RandomBit(ctx context.Context, msgid uint32) (uint64, error) {
	for {
		r, err := e.randomNumberS(ctx, msgid)
		if err != nil {
			return 0, err
		}
		rr, err := e.mulS(ctx, msgid, r, r)
		if err != nil {
			return 0, err
		}
		r2, err := e.resolveS(ctx, msgid, rr)
		if err != nil {
			return 0, err
		}
		if r2 == 0 {
			continue
		}
		root := field.ModSqrt(r2, e.P)
		rootInv := modInverse(root, e.P)
		two := modInverse(2, e.P)
		return (modp(int64(r)*int64(rootInv)+1, e.P) * two) % e.P, nil
	}
}

func modInverse(a, p uint64) uint64 {
	return powmodLocal(a, p-2, p)
}

func powmodLocal(base, exp, p uint64) uint64 {
	base %= p
	result := uint64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result = result * base % p
		}
		base = base * base % p
		exp >>= 1
	}
	return result
}

func bitsOf(v uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		out[i] = uint64((v >> uint(i)) & 1)
	}
	return out
}

// RandomNumberBits performs Joint Random Number Bitwise-Sharing: produces
// bitsCount independent random bits whose numeric value (as a bitstring) is
// guaranteed less than p, retrying the whole batch otherwise. Ports
// MpcWinner.random_number_bits.
func (e *Engine) RandomNumberBits(ctx context.Context, msgid uint32, bitsCount int) ([]uint64, error) {
	pBits := bitsOf(e.P, bitsCount)
	for {
		r := make([]uint64, bitsCount)
		g, ctx := errgroup.WithContext(ctx)
		for i := 0; i < bitsCount; i++ {
			i := i
			g.Go(func() error {
				v, err := e.RandomBit(ctx, msgid+uint32(i))
				if err != nil {
					return err
				}
				r[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		lt, err := e.LessBitwise(ctx, msgid, r, pBits)
		if err != nil {
			return nil, err
		}
		check, err := e.resolveS(ctx, msgid, lt)
		if err != nil {
			return nil, err
		}
		if check == 1 {
			return r, nil
		}
	}
}

// IsOdd returns the LSB of the cleartext number x represents, without
// revealing x, porting MpcWinner.is_odd.
func (e *Engine) IsOdd(ctx context.Context, msgid uint32, x uint64) (uint64, error) {
	bitsCount := bits.Len64(e.P)
	rI, err := e.RandomNumberBits(ctx, msgid, bitsCount)
	if err != nil {
		return 0, err
	}
	var r uint64
	for idx, b := range rI {
		r = (r + b*powmodLocal(2, uint64(idx), e.P)) % e.P
	}
	c, err := e.resolveS(ctx, msgid, (x+r)%e.P)
	if err != nil {
		return 0, err
	}
	var d uint64
	if c%2 == 0 {
		d = rI[0]
	} else {
		d = modp(1-int64(rI[0]), e.P)
	}
	cI := bitsOf(c, len(rI))
	eVal, err := e.LessBitwise(ctx, msgid, cI, rI)
	if err != nil {
		return 0, err
	}
	m, err := e.mulS(ctx, msgid, eVal, d)
	if err != nil {
		return 0, err
	}
	return modp(int64(eVal)+int64(d)-2*int64(m), e.P), nil
}

// LessMiddle returns 1 if a (mod p) is less than p/2, porting
// MpcWinner.less_middle.
func (e *Engine) LessMiddle(ctx context.Context, msgid uint32, a uint64) (uint64, error) {
	odd, err := e.IsOdd(ctx, msgid, (2*a)%e.P)
	if err != nil {
		return 0, err
	}
	return modp(1-int64(odd), e.P), nil
}

// Less returns 1 if a < b (mod p, interpreted as signed residues), porting
// MpcWinner.less.
func (e *Engine) Less(ctx context.Context, msgid uint32, a, b uint64) (uint64, error) {
	var w, x, y uint64
	g, ctx2 := errgroup.WithContext(ctx)
	g.Go(func() (err error) { w, err = e.LessMiddle(ctx2, msgid, a); return })
	g.Go(func() (err error) { x, err = e.LessMiddle(ctx2, msgid+uint32(e.BlockSize), b); return })
	g.Go(func() (err error) {
		y, err = e.LessMiddle(ctx2, msgid+uint32(2*e.BlockSize), modp(int64(a)-int64(b), e.P))
		return
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	c, err := e.mulS(ctx, msgid, x, y)
	if err != nil {
		return 0, err
	}
	d := modp(int64(x)+int64(y)-int64(c), e.P)
	m, err := e.mulS(ctx, msgid, w, modp(int64(d)-int64(c), e.P))
	if err != nil {
		return 0, err
	}
	return modp(int64(m)+1-int64(d), e.P), nil
}
