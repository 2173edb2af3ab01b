package mpc

import "context"

// IsZeroVector is the vector-engine counterpart of IsZero: it runs the same
// Fermat's little theorem exponentiation, but elementwise across an entire
// tuple in each multiply round instead of one scalar at a time, porting
// MpcValidation.is_zero. Used by pkg/voting's Condorcet validator, which
// needs is_zero over a whole packed pairwise-comparison vector at once.
func (e *Engine) IsZeroVector(ctx context.Context, msgid uint32, a []uint64) ([]uint64, error) {
	n := e.P - 1
	result := make([]uint64, len(a))
	for i := range result {
		result[i] = 1
	}
	for n > 0 {
		var err error
		if n%2 == 1 {
			result, err = e.Multiply(ctx, msgid, result, a)
			if err != nil {
				return nil, err
			}
		}
		a, err = e.Multiply(ctx, msgid, a, a)
		if err != nil {
			return nil, err
		}
		n /= 2
	}
	out := make([]uint64, len(a))
	for i, r := range result {
		out[i] = modp(int64(e.P)+1-int64(r), e.P)
	}
	return out, nil
}
