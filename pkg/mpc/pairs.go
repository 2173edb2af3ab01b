package mpc

// PairIndex maps an ordered candidate pair m1 < m2 (out of M candidates) to
// its slot in the packed upper-triangular pairwise-comparison vector, the
// same layout spec.md §3 describes for the copeland/maximin vote vector.
// Panics if m1 >= m2 or either index is out of [0, M).
func PairIndex(m1, m2, M int) int {
	if m1 < 0 || m2 >= M || m1 >= m2 {
		panic("mpc: PairIndex requires 0 <= m1 < m2 < M")
	}
	return m2 - m1 - 1 + m1*M - m1*(m1+1)/2
}

// PairCombinations returns every (m1, m2) with m1 < m2 < M, in the same
// order PairIndex assigns slots — i.e. combinations(range(M), 2) order.
func PairCombinations(M int) [][2]int {
	out := make([][2]int, 0, M*(M-1)/2)
	for m1 := 0; m1 < M; m1++ {
		for m2 := m1 + 1; m2 < M; m2++ {
			out = append(out, [2]int{m1, m2})
		}
	}
	return out
}
