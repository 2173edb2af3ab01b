package voting

import (
	"context"
	"fmt"

	"github.com/arthurzam/securevote/pkg/mpc"
	"golang.org/x/sync/errgroup"
)

// MessageSize is the vector-engine width S(election) a ballot's mesh must be
// formed with, ports MpcValidation.message_size. Range and borda have no
// closed-form answer in the source (NotImplementedError); this resolves
// that per SPEC_FULL.md §4.F: both use width M, since their validate
// protocols only ever hold one shared coordinate per candidate. Maximin
// uses copeland's width M(M-1)/2, since both run the same Condorcet
// validator over the M(M-1)/2 packed pairwise entries.
func MessageSize(e Election) (int, error) {
	m := e.M()
	switch e.Type {
	case Approval:
		return m, nil
	case Plurality, Veto:
		return m + 1, nil
	case Range, Borda:
		return m, nil
	case Copeland, Maximin:
		return m * (m - 1) / 2, nil
	default:
		return 0, fmt.Errorf("voting: unknown election type %v", e.Type)
	}
}

func modp(v int64, p uint64) uint64 {
	m := v % int64(p)
	if m < 0 {
		m += int64(p)
	}
	return uint64(m)
}

// calcComplement returns (complement - a) mod p elementwise, porting
// MpcValidation.__calc_complement.
func calcComplement(votes []uint64, complement, p uint64) []uint64 {
	out := make([]uint64, len(votes))
	for i, a := range votes {
		out[i] = modp(int64(complement)-int64(a), p)
	}
	return out
}

func sumMod(votes []uint64, p uint64) uint64 {
	var s uint64
	for _, v := range votes {
		s = (s + v) % p
	}
	return s
}

func allZero(a []uint64) bool {
	for _, v := range a {
		if v != 0 {
			return false
		}
	}
	return true
}

// Validate dispatches to the per-rule validate procedure, porting
// MpcValidation.validate's enum-keyed if-chain as a Go type switch.
func Validate(ctx context.Context, eng *mpc.Engine, msgid uint32, election Election, votes []uint64) (bool, error) {
	switch election.Type {
	case Approval:
		return validateApproval(ctx, eng, msgid, votes)
	case Plurality:
		return validatePlurality(ctx, eng, msgid, votes)
	case Veto:
		return validateVeto(ctx, eng, msgid, votes, election.M())
	case Range:
		return validateRange(ctx, eng, msgid, votes, election.RangeBound)
	case Borda:
		return validateBorda(ctx, eng, msgid, votes)
	case Copeland:
		return validateCopeland(ctx, eng, msgid, votes, election.M())
	case Maximin:
		return validateMaximin(ctx, eng, msgid, votes, election.M())
	default:
		return false, fmt.Errorf("voting: unknown election type %v", election.Type)
	}
}

// validateApproval ports MpcValidation.validate_approval: every coordinate
// must be a 0/1 indicator.
func validateApproval(ctx context.Context, eng *mpc.Engine, msgid uint32, votes []uint64) (bool, error) {
	a, err := eng.Multiply(ctx, msgid, votes, calcComplement(votes, 1, eng.P))
	if err != nil {
		return false, err
	}
	a, err = eng.Resolve(ctx, msgid, a)
	if err != nil {
		return false, err
	}
	return allZero(a), nil
}

// validatePlurality ports MpcValidation.validate_plurality: approval check
// plus exactly one coordinate set.
func validatePlurality(ctx context.Context, eng *mpc.Engine, msgid uint32, votes []uint64) (bool, error) {
	a, err := eng.Multiply(ctx, msgid, votes, calcComplement(votes, 1, eng.P))
	if err != nil {
		return false, err
	}
	combined := append([]uint64{sumMod(votes, eng.P)}, a...)
	resolved, err := eng.Resolve(ctx, msgid, combined)
	if err != nil {
		return false, err
	}
	return resolved[0] == 1 && allZero(resolved[1:]), nil
}

// validateVeto ports MpcValidation.validate_veto: approval check plus
// exactly M-1 coordinates set.
func validateVeto(ctx context.Context, eng *mpc.Engine, msgid uint32, votes []uint64, m int) (bool, error) {
	a, err := eng.Multiply(ctx, msgid, votes, calcComplement(votes, 1, eng.P))
	if err != nil {
		return false, err
	}
	combined := append([]uint64{sumMod(votes, eng.P)}, a...)
	resolved, err := eng.Resolve(ctx, msgid, combined)
	if err != nil {
		return false, err
	}
	return resolved[0] == uint64(m-1) && allZero(resolved[1:]), nil
}

// validateRange ports MpcValidation.validate_range: each coordinate's shared
// value must lie in {0..maxValue}, checked by resolving
// vote*(1-vote)*...*(maxValue-vote) to 0.
func validateRange(ctx context.Context, eng *mpc.Engine, msgbase uint32, votes []uint64, maxValue uint64) (bool, error) {
	results := make([]bool, len(votes))
	g, ctx := errgroup.WithContext(ctx)
	for i, vote := range votes {
		i, vote, msgid := i, vote, msgbase+uint32(i)
		g.Go(func() error {
			mul := []uint64{vote}
			for k := uint64(0); k < maxValue; k++ {
				term := []uint64{modp(int64(k)+1-int64(vote), eng.P)}
				var err error
				mul, err = eng.Multiply(ctx, msgid, mul, term)
				if err != nil {
					return err
				}
			}
			resolved, err := eng.Resolve(ctx, msgid, mul)
			if err != nil {
				return err
			}
			results[i] = resolved[0] == 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return allTrue(results), nil
}

func allTrue(bs []bool) bool {
	for _, b := range bs {
		if !b {
			return false
		}
	}
	return true
}

// validateBorda ports MpcValidation.validate_borda: a borda ballot must be a
// permutation of {0..M-1}, checked by a range(M-1) bound on every coordinate
// plus a randomized pairwise-distinctness pass.
//
// The source's check_pair multiplies a len(votes)-wide random tuple by a
// scalar difference and compares the resolved tuple against the integer 0
// with !=, which in Python always evaluates true regardless of content — a
// vacuous check. This reimplements the check (reject when any coordinate
// pair is equal): mask each pairwise difference
// with a single random scalar and resolve, retrying with fresh randomness
// once (the "two independent passes, accept if either succeeds" in
// spec.md's §4.F table) to bound the false-reject probability from an
// unlucky zero mask.
func validateBorda(ctx context.Context, eng *mpc.Engine, msgbase uint32, votes []uint64) (bool, error) {
	m := len(votes)
	var rangeOK, permuteOK bool
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rangeOK, err = validateRange(ctx, eng, msgbase, votes, uint64(m-1))
		return
	})
	g.Go(func() (err error) {
		permuteOK, err = twoStagePermute(ctx, eng, msgbase+uint32(m), votes)
		return
	})
	if err := g.Wait(); err != nil {
		return false, err
	}
	return rangeOK && permuteOK, nil
}

func twoStagePermute(ctx context.Context, eng *mpc.Engine, msgid uint32, votes []uint64) (bool, error) {
	pairs := mpc.PairCombinations(len(votes))
	ok, err := checkPairsDistinct(ctx, eng, msgid, votes, pairs)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return checkPairsDistinct(ctx, eng, msgid, votes, pairs)
}

func checkPairsDistinct(ctx context.Context, eng *mpc.Engine, msgid uint32, votes []uint64, pairs [][2]int) (bool, error) {
	results := make([]bool, len(pairs))
	g, ctx := errgroup.WithContext(ctx)
	for k, pair := range pairs {
		k, pair, thisMsgid := k, pair, msgid+uint32(k)
		g.Go(func() error {
			r, err := eng.RandomNumber(ctx, thisMsgid, 1)
			if err != nil {
				return err
			}
			diff := modp(int64(votes[pair[0]])-int64(votes[pair[1]]), eng.P)
			mul, err := eng.Multiply(ctx, thisMsgid, r, []uint64{diff})
			if err != nil {
				return err
			}
			resolved, err := eng.Resolve(ctx, thisMsgid, mul)
			if err != nil {
				return err
			}
			results[k] = resolved[0] != 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return allTrue(results), nil
}
