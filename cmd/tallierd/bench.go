package main

import (
	"context"
	"fmt"
	"time"

	"github.com/arthurzam/securevote/pkg/field"
	"github.com/arthurzam/securevote/pkg/mpctest"
	"github.com/arthurzam/securevote/pkg/voting"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const benchPrime = uint64(2147483647)

// runBench mirrors threshold-cli's benchmarkKeygen: run an operation N
// times against a fixed-size in-process mesh and report min/avg/max.
func runBench(cmd *cobra.Command, args []string) error {
	const d = 5
	election := voting.Election{
		ID:          uuid.New(),
		Type:        voting.Approval,
		Candidates:  []string{"alice", "bob", "charlie"},
		WinnerCount: 1,
		P:           benchPrime,
	}
	width, err := voting.MessageSize(election)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== validate benchmark (%d-party, %d iterations) ===\n", d, iterations)
	if err := benchValidate(d, width, election); err != nil {
		return err
	}

	fmt.Printf("\n=== calc_winners benchmark (%d-party, %d iterations) ===\n", d, iterations)
	return benchCalcWinners(d, election)
}

func benchValidate(d, width int, election voting.Election) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var total, min, max time.Duration
	min = time.Hour
	for iter := 0; iter < iterations; iter++ {
		mesh, err := mpctest.NewMesh(ctx, election.P, d, width, false)
		if err != nil {
			return err
		}
		ballot := []uint64{1, 0, 1}
		threshold := field.Threshold(d)
		perCoord := make([][]uint64, len(ballot))
		for i, v := range ballot {
			perCoord[i] = field.GenShares(v, d, threshold, election.P)
		}

		start := time.Now()
		errCh := make(chan error, d)
		for p := 0; p < d; p++ {
			p := p
			go func() {
				shares := make([]uint64, len(ballot))
				for i := range ballot {
					shares[i] = perCoord[i][p]
				}
				_, err := voting.Validate(ctx, mesh.Engines[p], 0, election, shares)
				errCh <- err
			}()
		}
		for p := 0; p < d; p++ {
			if err := <-errCh; err != nil {
				mesh.Close()
				return err
			}
		}
		elapsed := time.Since(start)
		mesh.Close()

		total += elapsed
		if elapsed < min {
			min = elapsed
		}
		if elapsed > max {
			max = elapsed
		}
	}
	fmt.Printf("  Average: %v\n  Min:     %v\n  Max:     %v\n", total/time.Duration(iterations), min, max)
	return nil
}

func benchCalcWinners(d int, election voting.Election) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var total, min, max time.Duration
	min = time.Hour
	for iter := 0; iter < iterations; iter++ {
		mesh, err := mpctest.NewMesh(ctx, election.P, d, 1, false)
		if err != nil {
			return err
		}
		scores := []uint64{2, 5, 3}
		threshold := field.Threshold(d)
		perCand := make([][]uint64, len(scores))
		for i, v := range scores {
			perCand[i] = field.GenShares(v, d, threshold, election.P)
		}

		start := time.Now()
		errCh := make(chan error, d)
		for p := 0; p < d; p++ {
			p := p
			go func() {
				shares := make([]uint64, len(scores))
				for i := range scores {
					shares[i] = perCand[i][p]
				}
				_, err := voting.CalcWinners(ctx, mesh.Engines[p], 0, election, shares)
				errCh <- err
			}()
		}
		for p := 0; p < d; p++ {
			if err := <-errCh; err != nil {
				mesh.Close()
				return err
			}
		}
		elapsed := time.Since(start)
		mesh.Close()

		total += elapsed
		if elapsed < min {
			min = elapsed
		}
		if elapsed > max {
			max = elapsed
		}
	}
	fmt.Printf("  Average: %v\n  Min:     %v\n  Max:     %v\n", total/time.Duration(iterations), min, max)
	return nil
}
