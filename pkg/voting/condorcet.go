package voting

import (
	"context"

	"github.com/arthurzam/securevote/pkg/mpc"
)

// qMatrix expands a packed pairwise-comparison vote vector into a full M×M
// antisymmetric matrix: Q[m1][m2] = votes[pair index] for m1 < m2, the
// negation mod p for m1 > m2, and 0 on the diagonal. Copeland and maximin
// share this construction and, per spec.md §4.F ("same validate_condorcet as
// above (single shared implementation)"), also share the Condorcet validator
// itself — the source's validate_maximin instead calls
// __validate_condorcer with a mismatched argument list (a q_m margin tuple
// where a Q matrix is expected), which cannot be the intended call; this
// port uses the one shared Q construction for both rules.
func qMatrix(votes []uint64, m int, p uint64) [][]uint64 {
	q := make([][]uint64, m)
	for i := range q {
		q[i] = make([]uint64, m)
	}
	for _, pr := range mpc.PairCombinations(m) {
		m1, m2 := pr[0], pr[1]
		v := votes[mpc.PairIndex(m1, m2, m)]
		q[m1][m2] = v
		q[m2][m1] = modp(-int64(v), p)
	}
	return q
}

func pos(shares []uint64, m1, m2, m int, p uint64) uint64 {
	if m1 == m2 {
		return 0
	}
	if m2 < m1 {
		return modp(-int64(pos(shares, m2, m1, m, p)), p)
	}
	return shares[mpc.PairIndex(m1, m2, m)]
}

// validateCopeland ports MpcValidation.validate_copeland.
func validateCopeland(ctx context.Context, eng *mpc.Engine, msgbase uint32, votes []uint64, m int) (bool, error) {
	return validateCondorcet(ctx, eng, msgbase, qMatrix(votes, m, eng.P), m)
}

// validateMaximin ports MpcValidation.validate_maximin, using the same Q
// construction as copeland (see qMatrix's doc comment).
func validateMaximin(ctx context.Context, eng *mpc.Engine, msgbase uint32, votes []uint64, m int) (bool, error) {
	return validateCondorcet(ctx, eng, msgbase, qMatrix(votes, m, eng.P), m)
}

// validateCondorcet is the zero-knowledge check that a packed
// pairwise-comparison ballot Q encodes a consistent tournament (sub-protocol
// 3 in the source paper), porting MpcValidation.__validate_condorcer. Every
// step below reuses the same msgbase: each step fully resolves before the
// next starts, so FIFO-per-msgid ordering on the wire keeps them from
// interleaving, exactly as the source's sequential awaits do.
func validateCondorcet(ctx context.Context, eng *mpc.Engine, msgbase uint32, q [][]uint64, m int) (bool, error) {
	p := eng.P
	combos := mpc.PairCombinations(m)

	// lines 6-10: every entry must be in {p-1, 0, 1}.
	qvec := make([]uint64, len(combos))
	qPlus1 := make([]uint64, len(combos))
	qMinus1 := make([]uint64, len(combos))
	for i, pr := range combos {
		v := q[pr[0]][pr[1]]
		qvec[i] = v
		qPlus1[i] = modp(int64(v)+1, p)
		qMinus1[i] = modp(int64(v)-1, p)
	}
	x, err := eng.Multiply(ctx, msgbase, qvec, qPlus1)
	if err != nil {
		return false, err
	}
	x, err = eng.Multiply(ctx, msgbase, x, qMinus1)
	if err != nil {
		return false, err
	}
	x, err = eng.Resolve(ctx, msgbase, x)
	if err != nil {
		return false, err
	}
	if !allZero(x) {
		return false, nil
	}

	// lines 11-17: no row inconsistency on tied (zero) entries.
	xi, err := eng.IsZeroVector(ctx, msgbase, qvec)
	if err != nil {
		return false, err
	}
	for k := 0; k < m; k++ {
		diff := make([]uint64, len(combos))
		for i, pr := range combos {
			diff[i] = modp(int64(q[pr[0]][k])-int64(q[pr[1]][k]), p)
		}
		pi, err := eng.Multiply(ctx, msgbase, xi, diff)
		if err != nil {
			return false, err
		}
		pi, err = eng.Resolve(ctx, msgbase, pi)
		if err != nil {
			return false, err
		}
		if !allZero(pi) {
			return false, nil
		}
	}

	// lines 18-19: eta_m selects "uncontested" rows.
	tuples := make([][]uint64, m)
	for mm := 0; mm < m; mm++ {
		tuple := make([]uint64, mm)
		for mp := 0; mp < mm; mp++ {
			tuple[mp] = modp(1-int64(pos(xi, mp, mm, m, p)), p)
		}
		tuples[mm] = tuple
	}
	eta, err := eng.MultiProducts(ctx, msgbase, tuples)
	if err != nil {
		return false, err
	}

	// lines 20-21: Q_m[m] = sum over m2 != m of eta[m2] * Q[m][m2]. The
	// M(M-1) ordered pairs exceed the engine width, so they are multiplied
	// in Width-sized chunks.
	type pair struct{ m, m2 int }
	ordered := make([]pair, 0, m*(m-1))
	firsts := make([]uint64, 0, m*(m-1))
	seconds := make([]uint64, 0, m*(m-1))
	for mm := 0; mm < m; mm++ {
		for m2 := 0; m2 < m; m2++ {
			if m2 == mm {
				continue
			}
			ordered = append(ordered, pair{mm, m2})
			firsts = append(firsts, eta[m2])
			seconds = append(seconds, q[mm][m2])
		}
	}
	products := make([]uint64, 0, len(firsts))
	for start := 0; start < len(firsts); start += eng.Width {
		end := start + eng.Width
		if end > len(firsts) {
			end = len(firsts)
		}
		part, err := eng.Multiply(ctx, msgbase, firsts[start:end], seconds[start:end])
		if err != nil {
			return false, err
		}
		products = append(products, part...)
	}
	qM := make([]uint64, m)
	for i, pr := range ordered {
		qM[pr.m] = (qM[pr.m] + products[i]) % p
	}

	// lines 22-29: random-masked discriminator, must be nonzero everywhere.
	diffQm := make([]uint64, len(combos))
	etaFirst := make([]uint64, len(combos))
	etaSecond := make([]uint64, len(combos))
	for i, pr := range combos {
		diffQm[i] = modp(int64(qM[pr[0]])-int64(qM[pr[1]]), p)
		etaFirst[i] = eta[pr[0]]
		etaSecond[i] = eta[pr[1]]
	}
	etaMul, err := eng.Multiply(ctx, msgbase, etaFirst, etaSecond)
	if err != nil {
		return false, err
	}
	gamma, err := eng.Multiply(ctx, msgbase, etaMul, diffQm)
	if err != nil {
		return false, err
	}
	for i := range gamma {
		gamma[i] = modp(1-int64(etaMul[i])+int64(gamma[i]), p)
	}
	r, err := eng.RandomNumber(ctx, msgbase, len(gamma))
	if err != nil {
		return false, err
	}
	x, err = eng.Multiply(ctx, msgbase, r, gamma)
	if err != nil {
		return false, err
	}
	x, err = eng.Resolve(ctx, msgbase, x)
	if err != nil {
		return false, err
	}
	for _, v := range x {
		if v == 0 {
			return false, nil
		}
	}
	return true, nil
}
