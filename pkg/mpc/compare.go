package mpc

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type indexedValue struct {
	index uint64
	value uint64
}

// maxIndex folds two (index, value) pairs into the one carrying the larger
// value, porting MpcWinner.__max_index.
func (e *Engine) maxIndex(ctx context.Context, msgid uint32, a, b indexedValue) (indexedValue, error) {
	c, err := e.Less(ctx, msgid, a.value, b.value)
	if err != nil {
		return indexedValue{}, err
	}
	var v1, i1, v2, i2 uint64
	g, ctx2 := errgroup.WithContext(ctx)
	g.Go(func() (err error) { v1, err = e.mulS(ctx2, msgid, c, b.value); return })
	g.Go(func() (err error) { i1, err = e.mulS(ctx2, msgid+1, c, b.index); return })
	g.Go(func() (err error) { v2, err = e.mulS(ctx2, msgid+2, modp(1-int64(c), e.P), a.value); return })
	g.Go(func() (err error) { i2, err = e.mulS(ctx2, msgid+3, modp(1-int64(c), e.P), a.index); return })
	if err := g.Wait(); err != nil {
		return indexedValue{}, err
	}
	return indexedValue{index: (i1 + i2) % e.P, value: (v1 + v2) % e.P}, nil
}

// Max returns the index (resolved in the clear) of the largest of votes,
// porting MpcWinner.max. It returns 0 for fewer than two candidates, matching
// the source's short-circuit.
func (e *Engine) Max(ctx context.Context, msgbase uint32, votes []uint64) (uint64, error) {
	if len(votes) <= 1 {
		return 0, nil
	}
	cur := make([]indexedValue, len(votes))
	for i, v := range votes {
		cur[i] = indexedValue{index: uint64(i), value: v}
	}
	for len(cur) > 1 {
		pairs := len(cur) / 2
		next := make([]indexedValue, pairs)
		g, ctx2 := errgroup.WithContext(ctx)
		for i := 0; i < pairs; i++ {
			i := i
			g.Go(func() error {
				v, err := e.maxIndex(ctx2, msgbase+uint32(3*i*e.BlockSize), cur[2*i], cur[2*i+1])
				if err != nil {
					return err
				}
				next[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
		if len(cur)%2 == 1 {
			next = append(next, cur[len(cur)-1])
		}
		cur = next
	}
	return e.resolveS(ctx, msgbase, cur[0].index)
}

// Min returns the smallest of values, as a (still shared) value, porting
// MpcWinner.min.
func (e *Engine) Min(ctx context.Context, msgbase uint32, values []uint64) (uint64, error) {
	if len(values) <= 1 {
		return 0, errProtocolMisuse("mpc: Min requires at least two values")
	}
	cur := append([]uint64(nil), values...)
	combine := func(ctx context.Context, msgid uint32, a, b uint64) (uint64, error) {
		lt, err := e.Less(ctx, msgid, a, b)
		if err != nil {
			return 0, err
		}
		m, err := e.mulS(ctx, msgid, modp(int64(a)-int64(b), e.P), lt)
		if err != nil {
			return 0, err
		}
		return (b + m) % e.P, nil
	}
	for len(cur) > 1 {
		pairs := len(cur) / 2
		next := make([]uint64, pairs)
		g, ctx2 := errgroup.WithContext(ctx)
		for i := 0; i < pairs; i++ {
			i := i
			g.Go(func() error {
				v, err := combine(ctx2, msgbase+uint32(3*i*e.BlockSize), cur[2*i], cur[2*i+1])
				if err != nil {
					return err
				}
				next[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
		if len(cur)%2 == 1 {
			next = append(next, cur[len(cur)-1])
		}
		cur = next
	}
	return cur[0], nil
}

// IsZero returns 1 if a (mod p) is zero, computed via Fermat's little
// theorem entirely through secure multiplications (a^(p-1) is 1 for every
// nonzero a), porting MpcWinner.is_zero.
func (e *Engine) IsZero(ctx context.Context, msgid uint32, a uint64) (uint64, error) {
	n := e.P - 1
	result := uint64(1)
	for n > 0 {
		var err error
		if n%2 == 1 {
			result, err = e.mulS(ctx, msgid, result, a)
			if err != nil {
				return 0, err
			}
		}
		a, err = e.mulS(ctx, msgid, a, a)
		if err != nil {
			return 0, err
		}
		n /= 2
	}
	return modp(int64(e.P)+1-int64(result), e.P), nil
}

// IsPositive returns 1 if a, interpreted as a signed residue in
// (-p/2, p/2], is positive, porting MpcWinner.is_positive.
func (e *Engine) IsPositive(ctx context.Context, msgid uint32, a uint64) (uint64, error) {
	val := modp(2*int64(e.P)-2*int64(a), e.P)
	return e.IsOdd(ctx, msgid, val)
}

type protocolMisuseError string

func (p protocolMisuseError) Error() string { return string(p) }

func errProtocolMisuse(msg string) error { return protocolMisuseError(msg) }
