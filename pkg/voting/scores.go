package voting

import (
	"context"
	"fmt"

	"github.com/arthurzam/securevote/pkg/mpc"
)

// copelandWeights are the source's hard-coded α_s (tie) / α_t (win) scoring
// weights: one point for an indifference, two for a win.
const (
	copelandTieWeight = 1
	copelandWinWeight = 2
)

// Score computes the shared per-candidate score vector for rules that need
// one (copeland, maximin); other rules use the raw aggregated vote vector
// directly as their score (plurality/approval/veto/borda: one coordinate
// per candidate already is the tally).
func Score(ctx context.Context, eng *mpc.Engine, msgbase uint32, election Election, votes []uint64) ([]uint64, error) {
	m := election.M()
	switch election.Type {
	case Copeland:
		return eng.CopelandScores(ctx, msgbase, m, copelandTieWeight, copelandWinWeight, votes)
	case Maximin:
		return eng.MaximinScores(ctx, msgbase, m, votes)
	case Plurality, Approval, Veto, Borda, Range:
		if len(votes) != m {
			return nil, fmt.Errorf("voting: score vector width %d does not match candidate count %d", len(votes), m)
		}
		return votes, nil
	default:
		return nil, fmt.Errorf("voting: unknown election type %v", election.Type)
	}
}

// CalcWinners extracts the top-K candidate names from a shared score vector,
// porting mpc_manager.py's calc_winners: repeatedly resolve the current
// argmax, record its name, then drop it from the live pool.
func CalcWinners(ctx context.Context, eng *mpc.Engine, msgbase uint32, election Election, scores []uint64) ([]string, error) {
	if len(scores) != election.M() {
		return nil, fmt.Errorf("voting: score vector width %d does not match candidate count %d", len(scores), election.M())
	}
	liveScores := append([]uint64(nil), scores...)
	liveNames := append([]string(nil), election.Candidates...)

	winners := make([]string, 0, election.WinnerCount)
	for round := 0; round < election.WinnerCount; round++ {
		if len(liveScores) == 0 {
			break
		}
		// Each round fully resolves before the next starts (sequential
		// awaits in the source), so msgbase is safe to reuse round to round.
		w, err := eng.Max(ctx, msgbase, liveScores)
		if err != nil {
			return nil, err
		}
		winners = append(winners, liveNames[w])
		liveScores = append(liveScores[:w], liveScores[w+1:]...)
		liveNames = append(liveNames[:w], liveNames[w+1:]...)
	}
	return winners, nil
}
