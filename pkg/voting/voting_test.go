package voting_test

import (
	"context"
	"testing"
	"time"

	"github.com/arthurzam/securevote/pkg/field"
	"github.com/arthurzam/securevote/pkg/mpctest"
	"github.com/arthurzam/securevote/pkg/voting"
	"github.com/stretchr/testify/require"
)

const testPrime = uint64(2147483647)

// runValidate shares a ballot across a D-party vector mesh and runs validate
// concurrently on every party, returning the (identical) decision.
func runValidate(t *testing.T, d int, election voting.Election, votes []uint64) bool {
	t.Helper()
	width, err := voting.MessageSize(election)
	require.NoError(t, err)
	require.GreaterOrEqual(t, width, len(votes))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	mesh, err := mpctest.NewMesh(ctx, election.P, d, width, false)
	require.NoError(t, err)
	defer mesh.Close()

	threshold := field.Threshold(d)
	perCoordShares := make([][]uint64, len(votes))
	for i, v := range votes {
		perCoordShares[i] = field.GenShares(v, d, threshold, election.P)
	}

	type result struct {
		ok  bool
		err error
	}
	results := make(chan result, d)
	for p := 0; p < d; p++ {
		p := p
		go func() {
			shares := make([]uint64, len(votes))
			for i := range votes {
				shares[i] = perCoordShares[i][p]
			}
			ok, err := voting.Validate(ctx, mesh.Engines[p], 1000, election, shares)
			results <- result{ok, err}
		}()
	}
	var decision bool
	for i := 0; i < d; i++ {
		r := <-results
		require.NoError(t, r.err)
		decision = r.ok
	}
	return decision
}

func TestValidateApproval(t *testing.T) {
	e := voting.Election{P: testPrime, Type: voting.Approval, Candidates: []string{"a", "b", "c"}}
	require.True(t, runValidate(t, 5, e, []uint64{1, 0, 1}))
	require.False(t, runValidate(t, 5, e, []uint64{1, 2, 1}))
}

func TestValidatePlurality(t *testing.T) {
	e := voting.Election{P: testPrime, Type: voting.Plurality, Candidates: []string{"a", "b", "c"}}
	require.True(t, runValidate(t, 5, e, []uint64{0, 1, 0}))
	require.False(t, runValidate(t, 5, e, []uint64{1, 1, 0}))
	require.False(t, runValidate(t, 5, e, []uint64{2, 0, 0}))
}

func TestValidateVeto(t *testing.T) {
	e := voting.Election{P: testPrime, Type: voting.Veto, Candidates: []string{"a", "b", "c"}}
	require.True(t, runValidate(t, 5, e, []uint64{1, 0, 1}))
	require.False(t, runValidate(t, 5, e, []uint64{1, 1, 1}))
}

func TestValidateRange(t *testing.T) {
	e := voting.Election{P: testPrime, Type: voting.Range, Candidates: []string{"a", "b"}, RangeBound: 5}
	require.True(t, runValidate(t, 5, e, []uint64{0, 5}))
	require.False(t, runValidate(t, 5, e, []uint64{0, 6}))
}

func TestValidateBorda(t *testing.T) {
	e := voting.Election{P: testPrime, Type: voting.Borda, Candidates: []string{"a", "b", "c"}}
	require.True(t, runValidate(t, 5, e, []uint64{0, 1, 2}))
	require.False(t, runValidate(t, 5, e, []uint64{0, 0, 2}))
}

func TestValidateCopeland(t *testing.T) {
	e := voting.Election{P: testPrime, Type: voting.Copeland, Candidates: []string{"a", "b", "c"}}
	// A beats B, A beats C, B beats C: consistent tournament.
	require.True(t, runValidate(t, 5, e, []uint64{1, 1, 1}))
}

func TestCalcWinners(t *testing.T) {
	e := voting.Election{
		P:           testPrime,
		Type:        voting.Approval,
		Candidates:  []string{"alice", "bob", "charlie"},
		WinnerCount: 2,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	mesh, err := mpctest.NewMesh(ctx, testPrime, 5, 1, false)
	require.NoError(t, err)
	defer mesh.Close()

	scores := []uint64{2, 5, 3}
	threshold := field.Threshold(5)
	perCand := make([][]uint64, len(scores))
	for i, v := range scores {
		perCand[i] = field.GenShares(v, 5, threshold, testPrime)
	}

	type result struct {
		winners []string
		err     error
	}
	results := make(chan result, 5)
	for p := 0; p < 5; p++ {
		p := p
		go func() {
			shares := make([]uint64, len(scores))
			for i := range scores {
				shares[i] = perCand[i][p]
			}
			w, err := voting.CalcWinners(ctx, mesh.Engines[p], 2000, e, shares)
			results <- result{w, err}
		}()
	}
	var got []string
	for i := 0; i < 5; i++ {
		r := <-results
		require.NoError(t, r.err)
		got = r.winners
	}
	require.Equal(t, []string{"bob", "charlie"}, got)
}
