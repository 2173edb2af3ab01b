package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/arthurzam/securevote/pkg/voting"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Store backed by github.com/jackc/pgx/v5, porting the schema
// and queries in original_source/src/tallier/db.py's DBconn (elections,
// running_election, election_votes, finished_election tables).
type Postgres struct {
	pool *pgxpool.Pool
}

// schemaSQL mirrors db.py's CREATE TABLE statements (the Python creates them
// lazily via __create_tables; this repo runs them once at startup instead).
const schemaSQL = `
CREATE TABLE IF NOT EXISTS elections (
	election_id              uuid PRIMARY KEY,
	selected_election_type   smallint NOT NULL,
	candidates               text[] NOT NULL,
	winner_count             integer NOT NULL,
	p                        bigint NOT NULL,
	l                        bigint NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS election_votes (
	election_id uuid NOT NULL REFERENCES elections(election_id),
	email       text NOT NULL,
	vote_state  bigint NOT NULL,
	PRIMARY KEY (election_id, email)
);
CREATE TABLE IF NOT EXISTS running_election (
	election_id uuid PRIMARY KEY REFERENCES elections(election_id),
	vote_vector bigint[] NOT NULL
);
CREATE TABLE IF NOT EXISTS finished_election (
	election_id uuid PRIMARY KEY REFERENCES elections(election_id),
	winners     text[] NOT NULL
);
`

// ConnectPostgres opens a pool against connStr and ensures the schema above
// exists.
func ConnectPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) GetElection(ctx context.Context, id uuid.UUID) (voting.Election, error) {
	var (
		ruleInt     int
		candidates  []string
		winnerCount int
		prime       int64
		rangeBound  int64
	)
	err := p.pool.QueryRow(ctx, `
		SELECT selected_election_type, candidates, winner_count, p, l
		FROM elections WHERE election_id = $1
	`, id).Scan(&ruleInt, &candidates, &winnerCount, &prime, &rangeBound)
	if errors.Is(err, pgx.ErrNoRows) {
		return voting.Election{}, ErrNotFound
	}
	if err != nil {
		return voting.Election{}, fmt.Errorf("store: get election: %w", err)
	}
	return voting.Election{
		ID:          id,
		Type:        voting.ElectionType(ruleInt),
		Candidates:  candidates,
		WinnerCount: winnerCount,
		P:           uint64(prime),
		RangeBound:  uint64(rangeBound),
	}, nil
}

// CreateElection inserts the election record and its eligible voters (all
// starting at NotVotedState), porting db.create_election.
func (p *Postgres) CreateElection(ctx context.Context, election voting.Election, voters []string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: create election: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO elections(election_id, selected_election_type, candidates, winner_count, p, l)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, election.ID, int(election.Type), election.Candidates, election.WinnerCount, int64(election.P), int64(election.RangeBound))
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("store: create election: %w", err)
	}

	batch := &pgx.Batch{}
	for _, voter := range voters {
		batch.Queue(`
			INSERT INTO election_votes(election_id, email, vote_state) VALUES ($1, $2, $3)
		`, election.ID, voter, int64(NotVotedState))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("store: seed voters: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) StartElection(ctx context.Context, election voting.Election) error {
	vector := make([]int64, election.VoteVectorSize())
	_, err := p.pool.Exec(ctx, `
		INSERT INTO running_election(election_id, vote_vector) VALUES ($1, $2)
	`, election.ID, vector)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("store: start election: %w", err)
	}
	return nil
}

func (p *Postgres) StopElection(ctx context.Context, election voting.Election) ([]uint64, bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("store: stop election: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var vector []int64
	err = tx.QueryRow(ctx, `SELECT vote_vector FROM running_election WHERE election_id = $1`, election.ID).Scan(&vector)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: stop election: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM running_election WHERE election_id = $1`, election.ID); err != nil {
		return nil, false, fmt.Errorf("store: stop election: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("store: stop election: %w", err)
	}
	out := make([]uint64, len(vector))
	for i, v := range vector {
		out[i] = uint64(v)
	}
	return out, true, nil
}

func (p *Postgres) StopAllElections(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM running_election`); err != nil {
		return fmt.Errorf("store: stop all elections: %w", err)
	}
	return nil
}

func (p *Postgres) VoterState(ctx context.Context, electionID uuid.UUID, voter string) (uint64, error) {
	var state int64
	err := p.pool.QueryRow(ctx, `
		SELECT vote_state FROM election_votes WHERE election_id = $1 AND email = $2
	`, electionID, voter).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("store: voter state: %w", err)
	}
	return uint64(state), nil
}

func (p *Postgres) Vote(ctx context.Context, election voting.Election, ballot []uint64, voter string, newState uint64) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: vote: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ballotInt := make([]int64, len(ballot))
	for i, v := range ballot {
		ballotInt[i] = int64(v)
	}
	// sum_int_arrays(ballot, vote_vector, p) mod-adds elementwise, ported
	// from db.py's postgres function of the same name.
	tag, err := tx.Exec(ctx, `
		UPDATE running_election
		SET vote_vector = (
			SELECT ARRAY(SELECT (a + b) % $3 FROM UNNEST($2::bigint[], vote_vector) AS t(a, b))
		)
		WHERE election_id = $1
	`, election.ID, ballotInt, int64(election.P))
	if err != nil {
		return fmt.Errorf("store: vote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	tag, err = tx.Exec(ctx, `
		UPDATE election_votes SET vote_state = $1 WHERE election_id = $2 AND email = $3
	`, int64(newState), election.ID, voter)
	if err != nil {
		return fmt.Errorf("store: vote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (p *Postgres) FinishElection(ctx context.Context, election voting.Election, winners []string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO finished_election(election_id, winners) VALUES ($1, $2)
	`, election.ID, winners)
	if err != nil {
		return fmt.Errorf("store: finish election: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
