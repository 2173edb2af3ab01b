// Package voting implements ballot validation, scoring, and winner
// extraction for every rule the source supports, built on pkg/mpc's scalar
// and vector engines. Ports mpc.py's MpcValidation.validate_* family and
// MpcWinner's scoring/max-based winner extraction.
package voting

import (
	"fmt"

	"github.com/google/uuid"
)

// ElectionType mirrors mytypes.ElectionType; values are kept identical to
// the source so wire dumps and fixtures stay comparable.
type ElectionType int

const (
	Plurality ElectionType = 1
	Range     ElectionType = 2
	Approval  ElectionType = 3
	Veto      ElectionType = 4
	Borda     ElectionType = 5
	Copeland  ElectionType = 6
	Maximin   ElectionType = 7
)

func (t ElectionType) String() string {
	switch t {
	case Plurality:
		return "plurality"
	case Range:
		return "range"
	case Approval:
		return "approval"
	case Veto:
		return "veto"
	case Borda:
		return "borda"
	case Copeland:
		return "copeland"
	case Maximin:
		return "maximin"
	default:
		return fmt.Sprintf("ElectionType(%d)", int(t))
	}
}

// Election is an immutable election record, ported from mytypes.Election.
type Election struct {
	ID          uuid.UUID
	Type        ElectionType
	Candidates  []string
	WinnerCount int
	P           uint64
	RangeBound  uint64 // L, only meaningful for Type == Range
}

// M is the candidate count.
func (e Election) M() int {
	return len(e.Candidates)
}

// VoteVectorSize is N(election): M for most rules, M(M-1)/2 for the
// Condorcet rules (copeland, maximin). Ports Election.vote_vector_size.
func (e Election) VoteVectorSize() int {
	m := e.M()
	switch e.Type {
	case Copeland, Maximin:
		return m * (m - 1) / 2
	default:
		return m
	}
}
