package engine

import (
	"github.com/hailam/chesscore/internal/board"
	"github.com/samber/lo"
)

// historyMax bounds every history counter.
const historyMax = 16384

// Stat is a single history counter.
type Stat int16

// Update moves the counter toward bonus by the remaining headroom, so
// repeated updates saturate at +-historyMax instead of overflowing.
func (s *Stat) Update(bonus int) {
	bonus = lo.Clamp(bonus, -historyMax, historyMax)
	v := int(*s)
	v += bonus - v*abs(bonus)/historyMax
	*s = Stat(v)
}

// ButterflyHistory scores quiet moves by side and from/to squares.
type ButterflyHistory [2][64][64]Stat

func (h *ButterflyHistory) Get(c board.Color, m board.Move) int {
	return int(h[c][m.From()][m.To()])
}

func (h *ButterflyHistory) Update(c board.Color, m board.Move, bonus int) {
	h[c][m.From()][m.To()].Update(bonus)
}

// CaptureHistory scores captures by moving piece, destination and captured type.
type CaptureHistory [board.PieceNB][64][6]Stat

func (h *CaptureHistory) Get(pc board.Piece, to board.Square, captured board.PieceType) int {
	return int(h[pc][to][captured])
}

func (h *CaptureHistory) Update(pc board.Piece, to board.Square, captured board.PieceType, bonus int) {
	h[pc][to][captured].Update(bonus)
}

// PieceToHistory scores a move by moving piece and destination.
type PieceToHistory [board.PieceNB][64]Stat

func (h *PieceToHistory) Get(pc board.Piece, to board.Square) int {
	return int(h[pc][to])
}

func (h *PieceToHistory) Update(pc board.Piece, to board.Square, bonus int) {
	h[pc][to].Update(bonus)
}

// ContinuationHistory holds one PieceToHistory per previous (piece, to).
type ContinuationHistory [board.PieceNB][64]PieceToHistory

// histories are the per-thread ordering and evaluation tables. They live
// across searches and are only reset by a new game.
type histories struct {
	main       ButterflyHistory
	capture    CaptureHistory
	cont       ContinuationHistory
	correction CorrectionHistory
	pawns      *PawnTable

	// sentinel is referenced by stack entries that hold no real move.
	sentinel PieceToHistory
}

func newHistories() *histories {
	return &histories{pawns: NewPawnTable(1)}
}

func (h *histories) clear() {
	h.main = ButterflyHistory{}
	h.capture = CaptureHistory{}
	h.cont = ContinuationHistory{}
	h.correction.Clear()
	h.pawns.Clear()
	h.sentinel = PieceToHistory{}
}

// statBonus is the history reward for a move that caused a cutoff at depth.
func statBonus(depth int) int {
	return min(170*depth-90, 1600)
}

// statMalus is the penalty for moves tried before the cutoff move.
func statMalus(depth int) int {
	return min(200*depth-100, 1400)
}
