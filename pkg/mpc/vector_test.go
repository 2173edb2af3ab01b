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

// runSharedVector mirrors runShared but for the vector (width>1) engine,
// where every value in a call is itself a tuple of shares.
func runSharedVector(t *testing.T, d, width, outputWidth int, tuples [][]uint64, op func(ctx context.Context, e *mpc.Engine, msgid uint32, shares [][]uint64) ([]uint64, error)) []uint64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mesh, err := mpctest.NewMesh(ctx, testPrime, d, width, false)
	require.NoError(t, err)
	defer mesh.Close()

	threshold := field.Threshold(d)
	perTupleShares := make([][][]uint64, len(tuples)) // [tuple][coord][party]
	for ti, tup := range tuples {
		perTupleShares[ti] = make([][]uint64, len(tup))
		for ci, v := range tup {
			perTupleShares[ti][ci] = field.GenShares(v, d, threshold, testPrime)
		}
	}

	type result struct {
		idx int
		v   []uint64
		err error
	}
	results := make(chan result, d)
	for p := 0; p < d; p++ {
		p := p
		go func() {
			shares := make([][]uint64, len(tuples))
			for ti := range tuples {
				shares[ti] = make([]uint64, len(tuples[ti]))
				for ci := range tuples[ti] {
					shares[ti][ci] = perTupleShares[ti][ci][p]
				}
			}
			v, err := op(ctx, mesh.Engines[p], 1000, shares)
			results <- result{p, v, err}
		}()
	}

	width2 := outputWidth
	perCoord := make([][]field.Point, width2)
	for i := range perCoord {
		perCoord[i] = make([]field.Point, d)
	}
	for i := 0; i < d; i++ {
		r := <-results
		require.NoError(t, r.err)
		for c := 0; c < width2; c++ {
			perCoord[c][r.idx] = field.Point{X: uint64(r.idx + 1), Y: r.v[c]}
		}
	}
	out := make([]uint64, width2)
	for c := 0; c < width2; c++ {
		v, err := field.Reconstruct(perCoord[c], testPrime)
		require.NoError(t, err)
		out[c] = v
	}
	return out
}

func TestVectorBgwMultiply(t *testing.T) {
	got := runSharedVector(t, 5, 3, 3, [][]uint64{{2, 3, 4}, {5, 6, 7}}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s [][]uint64) ([]uint64, error) {
		return e.BgwMultiply(ctx, msgid, s[0], s[1])
	})
	require.Equal(t, []uint64{10, 18, 28}, got)
}

func TestMultiProducts(t *testing.T) {
	got := runSharedVector(t, 5, 4, 1, [][]uint64{{2, 3, 4, 5}}, func(ctx context.Context, e *mpc.Engine, msgid uint32, s [][]uint64) ([]uint64, error) {
		return e.MultiProducts(ctx, msgid, [][]uint64{s[0]})
	})
	require.Equal(t, []uint64{120}, got)
}
