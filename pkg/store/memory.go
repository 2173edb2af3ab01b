package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/arthurzam/securevote/pkg/voting"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type runningElection struct {
	vector []uint64
}

type finishedElection struct {
	winners []string
}

// Memory is an in-process Store, used by the orchestrator tests in place of
// Postgres.
type Memory struct {
	mu         sync.Mutex
	elections  map[uuid.UUID]voting.Election
	running    map[uuid.UUID]*runningElection
	finished   map[uuid.UUID]*finishedElection
	voterState map[uuid.UUID]map[string]uint64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		elections:  make(map[uuid.UUID]voting.Election),
		running:    make(map[uuid.UUID]*runningElection),
		finished:   make(map[uuid.UUID]*finishedElection),
		voterState: make(map[uuid.UUID]map[string]uint64),
	}
}

// PutElection registers an election record and its eligible voters — the
// in-memory analogue of db.create_election, used by tests to seed fixtures.
func (m *Memory) PutElection(election voting.Election, voters []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elections[election.ID] = election
	states := make(map[string]uint64, len(voters))
	for _, v := range voters {
		states[v] = NotVotedState
	}
	m.voterState[election.ID] = states
}

func (m *Memory) GetElection(ctx context.Context, id uuid.UUID) (voting.Election, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.elections[id]
	if !ok {
		return voting.Election{}, ErrNotFound
	}
	return e, nil
}

func (m *Memory) StartElection(ctx context.Context, election voting.Election) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.running[election.ID]; ok {
		return ErrAlreadyExists
	}
	m.running[election.ID] = &runningElection{vector: make([]uint64, election.VoteVectorSize())}
	return nil
}

func (m *Memory) StopElection(ctx context.Context, election voting.Election) ([]uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.running[election.ID]
	if !ok {
		return nil, false, nil
	}
	delete(m.running, election.ID)
	return append([]uint64(nil), r.vector...), true, nil
}

func (m *Memory) StopAllElections(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = make(map[uuid.UUID]*runningElection)
	return nil
}

func (m *Memory) VoterState(ctx context.Context, electionID uuid.UUID, voter string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	states, ok := m.voterState[electionID]
	if !ok {
		return 0, ErrNotFound
	}
	s, ok := states[voter]
	if !ok {
		return 0, ErrNotFound
	}
	return s, nil
}

func (m *Memory) Vote(ctx context.Context, election voting.Election, ballot []uint64, voter string, newState uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.running[election.ID]
	if !ok {
		return ErrNotFound
	}
	if len(ballot) != len(r.vector) {
		return fmt.Errorf("store: ballot length %d does not match vote vector length %d", len(ballot), len(r.vector))
	}
	for i, v := range ballot {
		r.vector[i] = (r.vector[i] + v) % election.P
	}
	states, ok := m.voterState[election.ID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := states[voter]; !ok {
		return ErrNotFound
	}
	states[voter] = newState
	return nil
}

func (m *Memory) FinishElection(ctx context.Context, election voting.Election, winners []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[election.ID] = &finishedElection{winners: append([]string(nil), winners...)}
	return nil
}

// electionSnapshot is the cbor wire shape for Snapshot/Restore — only the
// election records, not the running vote vectors or voter state, since
// those are only meaningful within the epoch they were accumulated in
// (StopAllElections already discards them at every restart).
type electionSnapshot struct {
	Elections []voting.Election `cbor:"elections"`
}

// Snapshot cbor-encodes every registered election record, the in-memory
// adapter's analogue of caching config.json's CANDIDATES/TALLIERS between
// runs — the teacher encodes round-message bodies with this same library
// in pkg/protocol/handler.go; here it serializes election configuration
// instead of protocol messages.
func (m *Memory) Snapshot() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := electionSnapshot{Elections: make([]voting.Election, 0, len(m.elections))}
	for _, e := range m.elections {
		snap.Elections = append(snap.Elections, e)
	}
	data, err := cbor.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("store: snapshot: %w", err)
	}
	return data, nil
}

// RestoreSnapshot loads election records previously produced by Snapshot,
// seeding each with no voters (callers re-add voters via PutElection if
// needed).
func (m *Memory) RestoreSnapshot(data []byte) error {
	var snap electionSnapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("store: restore snapshot: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range snap.Elections {
		m.elections[e.ID] = e
		if _, ok := m.voterState[e.ID]; !ok {
			m.voterState[e.ID] = make(map[string]uint64)
		}
	}
	return nil
}
