// Package store defines the persistence interface the orchestrator
// consumes, store-agnostic per spec.md §6, plus an in-memory adapter (used
// by the orchestrator tests) and a
// github.com/jackc/pgx/v5-backed Postgres adapter porting
// original_source/src/tallier/db.py's schema.
package store

import (
	"context"
	"errors"

	"github.com/arthurzam/securevote/pkg/voting"
	"github.com/google/uuid"
)

// ErrNotFound is returned when an election, voter, or running-vote record
// does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyExists is returned by StartElection when a running election
// already exists for the given id, porting asyncpg.UniqueViolationError's
// role in db.py's start_election.
var ErrAlreadyExists = errors.New("store: already exists")

// NotVotedState is the sentinel meaning "this voter has not yet cast a
// ballot", ported from db.create_election's election.p + 1 default — always
// strictly greater than any legal field element since p < 2^32.
const NotVotedState = uint64(1) << 32

// VotedState is the state a voter transitions to once their ballot has been
// accumulated (successfully or not — the MPC layer hides which via the
// votes_scale gate, so state alone never leaks the outcome).
const VotedState = uint64(0)

// Store is the persistence interface the orchestrator consumes. Every
// method is store-agnostic; concrete adapters are Memory (tests) and
// Postgres (production, via pgx).
type Store interface {
	// GetElection returns the immutable election record.
	GetElection(ctx context.Context, id uuid.UUID) (voting.Election, error)
	// StartElection initializes the running vote vector to N(election)
	// zeros. Returns ErrAlreadyExists if one is already running.
	StartElection(ctx context.Context, election voting.Election) error
	// StopElection returns the aggregated share vector and deletes the
	// running-election record, or (nil, false, nil) if none was running.
	StopElection(ctx context.Context, election voting.Election) ([]uint64, bool, error)
	// StopAllElections deletes every running-election record (start-of-epoch
	// reset, ported from db.stop_all_elections).
	StopAllElections(ctx context.Context) error
	// VoterState returns the voter's current vote_state, NotVotedState if
	// they have not yet voted.
	VoterState(ctx context.Context, electionID uuid.UUID, voter string) (uint64, error)
	// Vote share-wise adds ballot (mod p) into the running vote vector and
	// updates the voter's state, porting db.vote.
	Vote(ctx context.Context, election voting.Election, ballot []uint64, voter string, newState uint64) error
	// FinishElection records the winner list, porting db.finish_election.
	FinishElection(ctx context.Context, election voting.Election, winners []string) error
}
