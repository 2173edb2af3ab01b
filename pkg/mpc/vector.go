package mpc

import "context"

// MultiProducts reduces a batch of independent share tuples to their
// per-tuple products in O(log max-length) rounds by repeatedly halving and
// multiplying pairwise, batching every tuple's pairs into one wide Multiply
// call per round. Tuples shorter than 2 are returned unchanged (length 0
// folds to the multiplicative identity 1). Ports
// MpcValidation.multi_products.
func (e *Engine) MultiProducts(ctx context.Context, msgid uint32, muls [][]uint64) ([]uint64, error) {
	work := make([][]uint64, len(muls))
	for i, m := range muls {
		work[i] = append([]uint64(nil), m...)
	}

	anyLong := func() bool {
		for _, m := range work {
			if len(m) > 1 {
				return true
			}
		}
		return false
	}

	for anyLong() {
		amounts := make([]int, len(work))
		var pairsA, pairsB []uint64
		for i, m := range work {
			amount := len(m) / 2
			amounts[i] = amount
			for k := 0; k < amount; k++ {
				pairsA = append(pairsA, m[2*k])
				pairsB = append(pairsB, m[2*k+1])
			}
		}
		products, err := e.Multiply(ctx, msgid, pairsA, pairsB)
		if err != nil {
			return nil, err
		}
		offset := 0
		for i, m := range work {
			amount := amounts[i]
			next := append(append([]uint64(nil), products[offset:offset+amount]...), m[2*amount:]...)
			work[i] = next
			offset += amount
		}
	}

	out := make([]uint64, len(work))
	for i, m := range work {
		if len(m) == 0 {
			out[i] = 1
		} else {
			out[i] = m[0]
		}
	}
	return out, nil
}
