package mpc

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// gammaIndex maps an ordered candidate pair (m1 < m2) to its slot in the
// packed upper-triangular pairwise-comparison vote vector (one slot per
// unordered pair of M candidates), matching the source's gamma() closures
// in copeland_scores/maximin_scores/validate_copeland/validate_maximin.
func gammaIndex(M int) func(m1, m2 int) int {
	return func(m1, m2 int) int {
		if m1 == m2 {
			return -1
		}
		return m2 - m1 - 1 + m1*M - m1*(m1+1)/2
	}
}

// CopelandScores computes every candidate's Copeland score from the packed
// pairwise-comparison vector: s points for a tie, t points for a win. Ports
// MpcWinner.copeland_scores.
func (e *Engine) CopelandScores(ctx context.Context, msgbase uint32, m int, s, t uint64, votes []uint64) ([]uint64, error) {
	gamma := gammaIndex(m)
	calcWidth := (m - 1) * (1 + e.BlockSize)

	scores := make([]uint64, m)
	g, ctx := errgroup.WithContext(ctx)
	for cand := 0; cand < m; cand++ {
		cand := cand
		g.Go(func() error {
			base := msgbase + uint32(cand*calcWidth)

			positives := make([]uint64, 0, m-1)
			zeros := make([]uint64, 0, m-1)
			for m2 := cand + 1; m2 < m; m2++ {
				v := votes[gamma(cand, m2)]
				positives = append(positives, v)
				zeros = append(zeros, v)
			}
			for m2 := 0; m2 < cand; m2++ {
				v := votes[gamma(m2, cand)]
				positives = append(positives, modp(int64(e.P)-int64(v), e.P))
				zeros = append(zeros, v)
			}

			zeroResults := make([]uint64, len(zeros))
			posResults := make([]uint64, len(positives))
			gg, ctx2 := errgroup.WithContext(ctx)
			for i, v := range zeros {
				i, v := i, v
				gg.Go(func() error {
					r, err := e.IsZero(ctx2, base+uint32(i), v)
					if err != nil {
						return err
					}
					zeroResults[i] = r
					return nil
				})
			}
			for i, v := range positives {
				i, v := i, v
				gg.Go(func() error {
					r, err := e.IsPositive(ctx2, base+uint32(m-1)+uint32(i*e.BlockSize), v)
					if err != nil {
						return err
					}
					posResults[i] = r
					return nil
				})
			}
			if err := gg.Wait(); err != nil {
				return err
			}

			var sumPos, sumZero uint64
			for _, v := range posResults {
				sumPos = (sumPos + v) % e.P
			}
			for _, v := range zeroResults {
				sumZero = (sumZero + v) % e.P
			}
			scores[cand] = modp(int64(t)*int64(sumPos)+int64(s)*int64(sumZero), e.P)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// MaximinScores computes every candidate's Maximin score: the smallest
// margin it holds against any single opponent. Ports
// MpcWinner.maximin_scores.
func (e *Engine) MaximinScores(ctx context.Context, msgbase uint32, m int, votes []uint64) ([]uint64, error) {
	gamma := gammaIndex(m)
	width := 3 * e.BlockSize * ((m - 1) / 2)

	scores := make([]uint64, m)
	g, ctx := errgroup.WithContext(ctx)
	for cand := 0; cand < m; cand++ {
		cand := cand
		g.Go(func() error {
			values := make([]uint64, 0, m-1)
			for m2 := cand + 1; m2 < m; m2++ {
				values = append(values, votes[gamma(cand, m2)])
			}
			for m2 := 0; m2 < cand; m2++ {
				values = append(values, modp(int64(e.P)-int64(votes[gamma(m2, cand)]), e.P))
			}
			if len(values) == 1 {
				scores[cand] = values[0]
				return nil
			}
			v, err := e.Min(ctx, msgbase+uint32(cand*width), values)
			if err != nil {
				return err
			}
			scores[cand] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}
