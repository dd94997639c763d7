package engine

import (
	"github.com/hailam/chesscore/internal/board"
	"github.com/samber/lo"
)

// CorrectionHistorySize is the number of entries per side.
const CorrectionHistorySize = 1 << 16
const CorrectionHistoryMask = CorrectionHistorySize - 1

// CorrectionHistory learns how far the static evaluation misses the search
// result for a given pawn structure and adds that error back to later evals.
type CorrectionHistory struct {
	table [2][CorrectionHistorySize]int16
}

func (ch *CorrectionHistory) index(pawnKey uint64) int {
	return int((pawnKey ^ (pawnKey >> 18)) & CorrectionHistoryMask)
}

// Get returns the correction to add to the raw evaluation of pos.
func (ch *CorrectionHistory) Get(pos *board.Position) int {
	return int(ch.table[pos.SideToMove][ch.index(pos.PawnKey)])
}

// Update records the error between a search result and the raw static eval.
// Uses gravity update: new = old + (target - old) / 16
func (ch *CorrectionHistory) Update(pos *board.Position, searchScore, staticEval, depth int) {
	if depth < 1 {
		return
	}
	bonus := lo.Clamp((searchScore-staticEval)*depth/8, -256, 256)
	e := &ch.table[pos.SideToMove][ch.index(pos.PawnKey)]
	old := int(*e)
	*e = int16(lo.Clamp(old+(bonus-old)/16, -16000, 16000))
}

// Clear resets all correction values.
func (ch *CorrectionHistory) Clear() {
	ch.table = [2][CorrectionHistorySize]int16{}
}
