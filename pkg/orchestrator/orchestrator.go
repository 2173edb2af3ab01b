// Package orchestrator ties the clique, MPC, voting, and storage layers
// together into the two operations a front door drives: casting a ballot
// and stopping an election to reveal its winners. Ports
// mpc_manager.py's TallierManager.start_election_voting/calc_winners plus
// the votes_scale combination logic described in spec.md's design notes.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/arthurzam/securevote/pkg/channel"
	"github.com/arthurzam/securevote/pkg/clique"
	"github.com/arthurzam/securevote/pkg/mpc"
	"github.com/arthurzam/securevote/pkg/store"
	"github.com/arthurzam/securevote/pkg/voting"
	"github.com/google/uuid"
)

// msgbase0 is the message-id namespace every fresh mesh starts at: each
// SubmitBallot/StopElection call opens its own clique connection (porting
// start_election_voting/calc_winners building a brand new TallierConn per
// call), so msgids never collide across calls the way they would on a
// long-lived connection.
const msgbase0 = uint32(0)

// Orchestrator holds the persistence and clique-rendezvous layers an
// election's lifecycle needs, per spec.md's "thread through the
// Orchestrator" design note.
type Orchestrator struct {
	store  store.Store
	clique *clique.Manager
	peers  []clique.Address
	selfID int
	logger *log.Logger
}

// New resets any running elections left over from a previous process
// (ported from db.stop_all_elections, called once at startup per spec.md
// §9) and returns a ready Orchestrator.
func New(ctx context.Context, st store.Store, cq *clique.Manager, peers []clique.Address, selfID int, logger *log.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = log.Default()
	}
	if st != nil {
		if err := st.StopAllElections(ctx); err != nil {
			return nil, fmt.Errorf("orchestrator: reset running elections: %w", err)
		}
	}
	return &Orchestrator{store: st, clique: cq, peers: peers, selfID: selfID, logger: logger}, nil
}

// Shutdown clears every running-election record, the same reset New
// performs at startup, so a restarted process never resumes a half-tallied
// election.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	return o.store.StopAllElections(ctx)
}

// buildEngine establishes a fresh clique for eid at the given tuple width
// and wraps it in an mpc.Engine, substituting a SelfChannel at selfID and
// spawning every peer's ReceiveLoop.
func (o *Orchestrator) buildEngine(ctx context.Context, eid uuid.UUID, p uint64, width int) (*mpc.Engine, error) {
	factory := func(conn net.Conn) channel.Channel {
		return channel.NewTCPChannel(conn, width)
	}
	chans, err := o.clique.StartClique(ctx, eid, o.peers, o.selfID, factory)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: start clique: %w", err)
	}
	chans[o.selfID] = channel.NewSelfChannel(width)
	for i, c := range chans {
		i, c := i, c
		go func() {
			if err := c.ReceiveLoop(ctx); err != nil && ctx.Err() == nil {
				o.logger.Printf("[orchestrator] receive loop %d for %s closed: %v", i, eid, err)
			}
		}()
	}
	eng, err := mpc.New(p, chans, o.selfID, width, false)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build engine: %w", err)
	}
	return eng, nil
}

// StartElection initializes the running vote vector for election, porting
// db.create_election's accompanying running_election row.
func (o *Orchestrator) StartElection(ctx context.Context, electionID uuid.UUID) error {
	election, err := o.store.GetElection(ctx, electionID)
	if err != nil {
		return fmt.Errorf("orchestrator: start election: %w", err)
	}
	if err := o.store.StartElection(ctx, election); err != nil {
		return fmt.Errorf("orchestrator: start election: %w", err)
	}
	return nil
}

// SubmitBallot validates a voter's secret-shared ballot against election's
// voting rule, scales it by votes_scale = validate · db_status ·
// not_abstain, and accumulates it into the running vote vector.
// not_abstain is fixed at 1: the abstain mechanic the original's open
// question alludes to is never named by any MODULE in the spec, so there
// is nothing for it to gate here — see DESIGN.md.
//
// dbStatus must be 0 or 1 (spec.md's explicit resolution of the
// votes_scale open question: treat db_status strictly as a boolean,
// reject anything else rather than silently coercing it).
func (o *Orchestrator) SubmitBallot(ctx context.Context, electionID uuid.UUID, voter string, ballot []uint64, dbStatus uint64) error {
	if dbStatus != 0 && dbStatus != 1 {
		return fmt.Errorf("orchestrator: submit ballot: db_status must be 0 or 1, got %d", dbStatus)
	}
	election, err := o.store.GetElection(ctx, electionID)
	if err != nil {
		return fmt.Errorf("orchestrator: submit ballot: %w", err)
	}
	width, err := voting.MessageSize(election)
	if err != nil {
		return fmt.Errorf("orchestrator: submit ballot: %w", err)
	}
	if len(ballot) != election.VoteVectorSize() {
		return fmt.Errorf("orchestrator: submit ballot: ballot length %d does not match vote vector size %d", len(ballot), election.VoteVectorSize())
	}

	eng, err := o.buildEngine(ctx, electionID, election.P, width)
	if err != nil {
		return fmt.Errorf("orchestrator: submit ballot: %w", err)
	}
	defer func() { _ = eng.Close() }()

	valid, err := voting.Validate(ctx, eng, msgbase0, election, ballot)
	if err != nil {
		return fmt.Errorf("orchestrator: submit ballot: validate: %w", err)
	}

	const notAbstain = uint64(1)
	scale := boolToUint64(valid) * dbStatus % election.P * notAbstain % election.P
	scaled := make([]uint64, len(ballot))
	for i, v := range ballot {
		scaled[i] = v * scale % election.P
	}

	if err := o.store.Vote(ctx, election, scaled, voter, store.VotedState); err != nil {
		return fmt.Errorf("orchestrator: submit ballot: %w", err)
	}
	return nil
}

func boolToUint64(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// StopElection ends voting, tallies the accumulated vote vector against
// election's rule, and returns the winner list, porting
// TallierManager.calc_winners plus db.stop_election/finish_election.
func (o *Orchestrator) StopElection(ctx context.Context, electionID uuid.UUID) ([]string, error) {
	election, err := o.store.GetElection(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: stop election: %w", err)
	}
	vector, ok, err := o.store.StopElection(ctx, election)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: stop election: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("orchestrator: stop election: %w", store.ErrNotFound)
	}

	eng, err := o.buildEngine(ctx, electionID, election.P, 1)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: stop election: %w", err)
	}
	defer func() { _ = eng.Close() }()

	scores, err := voting.Score(ctx, eng, msgbase0, election, vector)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: stop election: score: %w", err)
	}
	winners, err := voting.CalcWinners(ctx, eng, msgbase0, election, scores)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: stop election: calc winners: %w", err)
	}

	if err := o.store.FinishElection(ctx, election, winners); err != nil {
		return nil, fmt.Errorf("orchestrator: stop election: %w", err)
	}
	return winners, nil
}
