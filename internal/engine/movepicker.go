package engine

import "github.com/hailam/chesscore/internal/board"

// Move ordering priorities
const (
	promotionScore   = 4_000_000
	goodCaptureScore = 2_000_000
	killerScore      = 1_000_000
	quietCheckScore  = 100_000
	badCaptureScore  = -2_000_000
)

type pickStage uint8

const (
	stageTTMove pickStage = iota
	stageGenerate
	stagePick
)

// MovePicker yields the TT move first, then generates the remaining legal
// moves once and hands them out best first by selection.
type MovePicker struct {
	pos    *board.Position
	hist   *histories
	cont   [4]*PieceToHistory
	ttMove board.Move
	killer board.Move

	noisyOnly  bool
	skipQuiets bool

	stage  pickStage
	moves  board.MoveList
	scores [board.MaxMoves]int
	cur    int
}

// init prepares the picker for pos. cont holds the continuation tables of
// plies -1, -2, -4 and -6. With noisyOnly, only captures and promotions
// are generated.
func (mp *MovePicker) init(pos *board.Position, hist *histories, cont [4]*PieceToHistory, ttMove, killer board.Move, noisyOnly bool) {
	mp.pos = pos
	mp.hist = hist
	mp.cont = cont
	mp.killer = killer
	mp.noisyOnly = noisyOnly
	mp.skipQuiets = false
	mp.moves.Clear()
	mp.cur = 0

	if ttMove != board.NoMove && pos.IsPseudoLegal(ttMove) && pos.IsLegal(ttMove) &&
		(!noisyOnly || !pos.IsQuiet(ttMove)) {
		mp.ttMove = ttMove
		mp.stage = stageTTMove
	} else {
		mp.ttMove = board.NoMove
		mp.stage = stageGenerate
	}
}

// Next returns the next move, or NoMove when the picker is exhausted.
func (mp *MovePicker) Next() board.Move {
	switch mp.stage {
	case stageTTMove:
		mp.stage = stageGenerate
		return mp.ttMove

	case stageGenerate:
		if mp.noisyOnly {
			mp.pos.GenerateCaptures(&mp.moves)
		} else {
			mp.pos.GenerateLegal(&mp.moves)
		}
		mp.score()
		mp.stage = stagePick
		fallthrough

	case stagePick:
		n := mp.moves.Len()
		for mp.cur < n {
			best := mp.cur
			for i := mp.cur + 1; i < n; i++ {
				if mp.scores[i] > mp.scores[best] {
					best = i
				}
			}
			mp.moves.Swap(mp.cur, best)
			mp.scores[mp.cur], mp.scores[best] = mp.scores[best], mp.scores[mp.cur]

			m := mp.moves.Get(mp.cur)
			mp.cur++
			if m == mp.ttMove {
				continue
			}
			// Quiet checks survive late move pruning.
			if mp.skipQuiets && mp.pos.IsQuiet(m) && !mp.pos.GivesCheck(m) {
				continue
			}
			return m
		}
	}
	return board.NoMove
}

func (mp *MovePicker) score() {
	pos := mp.pos
	us := pos.SideToMove
	for i, m := range mp.moves.Moves() {
		pc := pos.MovedPiece(m)
		to := m.To()
		switch {
		case m.IsPromotion():
			mp.scores[i] = promotionScore + board.SeeValue[m.Promotion()]
		case pos.IsCapture(m):
			victim := pos.CapturedPiece(m).Type()
			s := 8*board.SeeValue[victim] + mp.hist.capture.Get(pc, to, victim)/16
			if pos.SeeGE(m, -20) {
				s += goodCaptureScore
			} else {
				s += badCaptureScore
			}
			mp.scores[i] = s
		case m == mp.killer:
			mp.scores[i] = killerScore
		default:
			mp.scores[i] = mp.hist.main.Get(us, m) +
				mp.cont[0].Get(pc, to) +
				mp.cont[1].Get(pc, to) +
				mp.cont[2].Get(pc, to)/2
			if pos.GivesCheck(m) {
				mp.scores[i] += quietCheckScore
			}
		}
	}
}

// captureKind is the captured piece type used to index capture history.
// Non-capturing promotions use the king slot, which no real capture fills.
func captureKind(pos *board.Position, m board.Move) board.PieceType {
	pt := pos.CapturedPiece(m).Type()
	if pt == board.NoPieceType {
		return board.King
	}
	return pt
}
