package mpc_test

import (
	"context"
	"testing"
	"time"

	"github.com/arthurzam/securevote/pkg/field"
	"github.com/arthurzam/securevote/pkg/mpc"
	"github.com/arthurzam/securevote/pkg/mpctest"
	"github.com/stretchr/testify/require"
)

const testPrime = uint64(2147483647)

// runShared shares each of values across a fresh D-party mesh, lets every
// party run op against its own share of every value, and resolves the
// parties' results back to the clear for comparison.
func runShared(t *testing.T, d int, preferRnd bool, values []uint64, op func(ctx context.Context, e *mpc.Engine, msgid uint32, shares []uint64) (uint64, error)) uint64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mesh, err := mpctest.NewMesh(ctx, testPrime, d, 1, preferRnd)
	require.NoError(t, err)
	defer mesh.Close()

	threshold := field.Threshold(d)
	perValueShares := make([][]uint64, len(values))
	for i, v := range values {
		perValueShares[i] = field.GenShares(v, d, threshold, testPrime)
	}

	type result struct {
		idx int
		v   uint64
		err error
	}
	results := make(chan result, d)
	for p := 0; p < d; p++ {
		p := p
		go func() {
			shares := make([]uint64, len(values))
			for i := range values {
				shares[i] = perValueShares[i][p]
			}
			v, err := op(ctx, mesh.Engines[p], 1000, shares)
			results <- result{p, v, err}
		}()
	}

	resultShares := make([]field.Point, d)
	for i := 0; i < d; i++ {
		r := <-results
		require.NoError(t, r.err)
		resultShares[r.idx] = field.Point{X: uint64(r.idx + 1), Y: r.v}
	}
	out, err := field.Reconstruct(resultShares, testPrime)
	require.NoError(t, err)
	return out
}

func TestBgwMultiply(t *testing.T) {
	got := runShared(t, 5, false, []uint64{6, 7}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s []uint64) (uint64, error) {
		r, err := e.BgwMultiply(ctx, msgid, []uint64{s[0]}, []uint64{s[1]})
		if err != nil {
			return 0, err
		}
		return r[0], nil
	})
	require.EqualValues(t, 42, got)
}

func TestRndMultiply(t *testing.T) {
	got := runShared(t, 5, true, []uint64{11, 13}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s []uint64) (uint64, error) {
		r, err := e.RndMultiply(ctx, msgid, []uint64{s[0]}, []uint64{s[1]})
		if err != nil {
			return 0, err
		}
		return r[0], nil
	})
	require.EqualValues(t, 143, got)
}

func TestResolve(t *testing.T) {
	got := runShared(t, 5, false, []uint64{999}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s []uint64) (uint64, error) {
		r, err := e.Resolve(ctx, msgid, []uint64{s[0]})
		if err != nil {
			return 0, err
		}
		return r[0], nil
	})
	require.EqualValues(t, 999, got)
}

func TestIsZero(t *testing.T) {
	require.EqualValues(t, 1, runShared(t, 5, false, []uint64{0}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s []uint64) (uint64, error) {
		return e.IsZero(ctx, msgid, s[0])
	}))
	require.EqualValues(t, 0, runShared(t, 5, false, []uint64{5}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s []uint64) (uint64, error) {
		return e.IsZero(ctx, msgid, s[0])
	}))
}

func TestIsPositive(t *testing.T) {
	require.EqualValues(t, 1, runShared(t, 5, false, []uint64{5}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s []uint64) (uint64, error) {
		return e.IsPositive(ctx, msgid, s[0])
	}))
	require.EqualValues(t, 0, runShared(t, 5, false, []uint64{testPrime - 5}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s []uint64) (uint64, error) {
		return e.IsPositive(ctx, msgid, s[0])
	}))
}

func TestLess(t *testing.T) {
	require.EqualValues(t, 1, runShared(t, 5, false, []uint64{3, 9}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s []uint64) (uint64, error) {
		return e.Less(ctx, msgid, s[0], s[1])
	}))
	require.EqualValues(t, 0, runShared(t, 5, false, []uint64{9, 3}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s []uint64) (uint64, error) {
		return e.Less(ctx, msgid, s[0], s[1])
	}))
}

func TestMax(t *testing.T) {
	got := runShared(t, 5, false, []uint64{3, 9, 1, 7}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s []uint64) (uint64, error) {
		return e.Max(ctx, msgid, s)
	})
	require.EqualValues(t, 1, got) // index 1 (value 9) is the max
}

func TestMin(t *testing.T) {
	got := runShared(t, 5, false, []uint64{3, 9, 1, 7}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s []uint64) (uint64, error) {
		return e.Min(ctx, msgid, s)
	})
	require.EqualValues(t, 1, got)
}

func TestFanInOr(t *testing.T) {
	require.EqualValues(t, 0, runShared(t, 5, false, []uint64{0, 0, 0}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s []uint64) (uint64, error) {
		return e.FanInOr(ctx, msgid, s)
	}))
	require.EqualValues(t, 1, runShared(t, 5, false, []uint64{0, 1, 0}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s []uint64) (uint64, error) {
		return e.FanInOr(ctx, msgid, s)
	}))
}

func TestCopelandScores(t *testing.T) {
	// 3 candidates: 0 beats 1 by 5, 0 beats 2 by 3, 1 ties 2.
	// Packing order is gamma(0,1), gamma(0,2), gamma(1,2).
	// Expected Copeland scores with s=1 (tie), t=2 (win):
	//   candidate 0: two wins           -> 4
	//   candidate 1: one loss, one tie  -> 1
	//   candidate 2: one loss, one tie  -> 1
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mesh, err := mpctest.NewMesh(ctx, testPrime, 5, 1, false)
	require.NoError(t, err)
	defer mesh.Close()

	votes := []uint64{5, 3, 0}
	threshold := field.Threshold(5)
	shares := make([][]uint64, len(votes))
	for i, v := range votes {
		shares[i] = field.GenShares(v, 5, threshold, testPrime)
	}

	type result struct {
		idx int
		v   []uint64
		err error
	}
	results := make(chan result, 5)
	for p := 0; p < 5; p++ {
		p := p
		go func() {
			own := make([]uint64, len(votes))
			for i := range votes {
				own[i] = shares[i][p]
			}
			v, err := mesh.Engines[p].CopelandScores(ctx, 2000, 3, 1, 2, own)
			results <- result{p, v, err}
		}()
	}
	perCand := make([][]field.Point, 3)
	for i := range perCand {
		perCand[i] = make([]field.Point, 5)
	}
	for i := 0; i < 5; i++ {
		r := <-results
		require.NoError(t, r.err)
		for c := 0; c < 3; c++ {
			perCand[c][r.idx] = field.Point{X: uint64(r.idx + 1), Y: r.v[c]}
		}
	}
	want := []uint64{4, 1, 1}
	for c := 0; c < 3; c++ {
		v, err := field.Reconstruct(perCand[c], testPrime)
		require.NoError(t, err)
		require.EqualValuesf(t, want[c], v, "candidate %d score", c)
	}
}

func TestPrefixOr(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mesh, err := mpctest.NewMesh(ctx, testPrime, 5, 1, false)
	require.NoError(t, err)
	defer mesh.Close()

	bits := []uint64{0, 0, 1, 0, 0}
	threshold := field.Threshold(5)
	shares := make([][]uint64, len(bits))
	for i, v := range bits {
		shares[i] = field.GenShares(v, 5, threshold, testPrime)
	}

	type result struct {
		idx int
		v   []uint64
		err error
	}
	results := make(chan result, 5)
	for p := 0; p < 5; p++ {
		p := p
		go func() {
			own := make([]uint64, len(bits))
			for i := range bits {
				own[i] = shares[i][p]
			}
			v, err := mesh.Engines[p].PrefixOr(ctx, 3000, own)
			results <- result{p, v, err}
		}()
	}
	perPos := make([][]field.Point, len(bits))
	for i := range perPos {
		perPos[i] = make([]field.Point, 5)
	}
	for i := 0; i < 5; i++ {
		r := <-results
		require.NoError(t, r.err)
		for k := range bits {
			perPos[k][r.idx] = field.Point{X: uint64(r.idx + 1), Y: r.v[k]}
		}
	}
	want := []uint64{0, 0, 1, 1, 1}
	for k := range bits {
		v, err := field.Reconstruct(perPos[k], testPrime)
		require.NoError(t, err)
		require.EqualValuesf(t, want[k], v, "position %d", k)
	}
}
