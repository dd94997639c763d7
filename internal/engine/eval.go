package engine

import "github.com/hailam/chesscore/internal/board"

// Classical evaluation, used when no network is loaded.

// Material values by piece type (middlegame, endgame)
var (
	materialMg = [6]int{82, 337, 365, 477, 1025, 0}
	materialEg = [6]int{94, 281, 297, 512, 936, 0}
)

// phaseWeight is each piece type's contribution to the game phase.
var phaseWeight = [6]int{0, 1, 1, 2, 4, 0}

const maxPhase = 24

// Passed pawn bonuses by relative rank
var passedPawnBonus = [8]int{0, 10, 20, 40, 70, 120, 200, 0}

// Mobility weights per piece type
var mobilityMgWeight = [6]int{0, 4, 5, 2, 1, 0}
var mobilityEgWeight = [6]int{0, 3, 4, 4, 2, 0}

const (
	bishopPairMg = 25
	bishopPairEg = 50

	rookOpenFileMg     = 20
	rookOpenFileEg     = 25
	rookSemiOpenFileMg = 10
	rookSemiOpenFileEg = 15

	doubledPawnMg  = -15
	doubledPawnEg  = -20
	isolatedPawnMg = -20
	isolatedPawnEg = -25

	passedFreePathEg = 30

	tempoBonus = 10
)

// Piece-square tables, drawn from White's side with the eighth rank first.
var pstMg = [6][64]int{
	{ // pawn
		0, 0, 0, 0, 0, 0, 0, 0,
		50, 50, 50, 50, 50, 50, 50, 50,
		10, 10, 20, 30, 30, 20, 10, 10,
		5, 5, 10, 25, 25, 10, 5, 5,
		0, 0, 0, 20, 20, 0, 0, 0,
		5, -5, -10, 0, 0, -10, -5, 5,
		5, 10, 10, -20, -20, 10, 10, 5,
		0, 0, 0, 0, 0, 0, 0, 0,
	},
	{ // knight
		-50, -40, -30, -30, -30, -30, -40, -50,
		-40, -20, 0, 0, 0, 0, -20, -40,
		-30, 0, 10, 15, 15, 10, 0, -30,
		-30, 5, 15, 20, 20, 15, 5, -30,
		-30, 0, 15, 20, 20, 15, 0, -30,
		-30, 5, 10, 15, 15, 10, 5, -30,
		-40, -20, 0, 5, 5, 0, -20, -40,
		-50, -40, -30, -30, -30, -30, -40, -50,
	},
	{ // bishop
		-20, -10, -10, -10, -10, -10, -10, -20,
		-10, 0, 0, 0, 0, 0, 0, -10,
		-10, 0, 5, 10, 10, 5, 0, -10,
		-10, 5, 5, 10, 10, 5, 5, -10,
		-10, 0, 10, 10, 10, 10, 0, -10,
		-10, 10, 10, 10, 10, 10, 10, -10,
		-10, 5, 0, 0, 0, 0, 5, -10,
		-20, -10, -10, -10, -10, -10, -10, -20,
	},
	{ // rook
		0, 0, 0, 0, 0, 0, 0, 0,
		5, 10, 10, 10, 10, 10, 10, 5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		0, 0, 0, 5, 5, 0, 0, 0,
	},
	{ // queen
		-20, -10, -10, -5, -5, -10, -10, -20,
		-10, 0, 0, 0, 0, 0, 0, -10,
		-10, 0, 5, 5, 5, 5, 0, -10,
		-5, 0, 5, 5, 5, 5, 0, -5,
		0, 0, 5, 5, 5, 5, 0, -5,
		-10, 5, 5, 5, 5, 5, 0, -10,
		-10, 0, 5, 0, 0, 0, 0, -10,
		-20, -10, -10, -5, -5, -10, -10, -20,
	},
	{ // king
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-20, -30, -30, -40, -40, -30, -30, -20,
		-10, -20, -20, -20, -20, -20, -20, -10,
		20, 20, 0, 0, 0, 0, 20, 20,
		20, 30, 10, 0, 0, 10, 30, 20,
	},
}

var kingEndgamePST = [64]int{
	-50, -40, -30, -20, -20, -30, -40, -50,
	-30, -20, -10, 0, 0, -10, -20, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -30, 0, 0, 0, 0, -30, -30,
	-50, -30, -30, -30, -30, -30, -30, -50,
}

var (
	adjacentFiles [8]board.Bitboard
	// passedMask[c][sq] covers the squares in front of a c pawn on sq,
	// on its own and adjacent files.
	passedMask [2][64]board.Bitboard
)

func init() {
	for f := 0; f < 8; f++ {
		if f > 0 {
			adjacentFiles[f] |= board.FileBB(f - 1)
		}
		if f < 7 {
			adjacentFiles[f] |= board.FileBB(f + 1)
		}
	}
	for sq := board.A1; sq <= board.H8; sq++ {
		files := adjacentFiles[sq.File()] | board.FileBB(sq.File())
		for r := sq.Rank() + 1; r < 8; r++ {
			passedMask[board.White][sq] |= files & board.RankBB(r)
		}
		for r := sq.Rank() - 1; r >= 0; r-- {
			passedMask[board.Black][sq] |= files & board.RankBB(r)
		}
	}
}

// pstIndex maps a square to the table layout for color c.
func pstIndex(c board.Color, sq board.Square) int {
	if c == board.White {
		return int(sq.Mirror())
	}
	return int(sq)
}

// Evaluate returns the static evaluation from the side to move's view.
// pt may be nil.
func Evaluate(pos *board.Position, pt *PawnTable) int {
	var mg, eg, phase int

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		for p := board.Pawn; p <= board.King; p++ {
			for bb := pos.Pieces[c][p]; bb != 0; {
				idx := pstIndex(c, bb.PopLSB())
				mg += sign * (materialMg[p] + pstMg[p][idx])
				if p == board.King {
					eg += sign * kingEndgamePST[idx]
				} else {
					eg += sign * (materialEg[p] + pstMg[p][idx])
				}
				phase += phaseWeight[p]
			}
		}
	}

	psMg, psEg, passed := pawnStructure(pos, pt)
	mg += psMg
	eg += psEg

	// Passed pawns whose stop square is empty.
	for bb := passed & pos.Pieces[board.White][board.Pawn]; bb != 0; {
		if pos.IsEmpty(bb.PopLSB() + 8) {
			eg += passedFreePathEg
		}
	}
	for bb := passed & pos.Pieces[board.Black][board.Pawn]; bb != 0; {
		if pos.IsEmpty(bb.PopLSB() - 8) {
			eg -= passedFreePathEg
		}
	}

	pcMg, pcEg := pieceTerms(pos)
	mg += pcMg
	eg += pcEg

	phase = min(phase, maxPhase)
	score := (mg*phase + eg*(maxPhase-phase)) / maxPhase

	if pos.SideToMove == board.Black {
		score = -score
	}
	return score + tempoBonus
}

// pawnStructure scores doubled, isolated and passed pawns from White's view
// and returns the passed pawns of both sides, caching both by pawn key.
func pawnStructure(pos *board.Position, pt *PawnTable) (mg, eg int, passed board.Bitboard) {
	if pt != nil {
		if e := pt.Probe(pos.PawnKey); e != nil {
			return int(e.MgScore), int(e.EgScore), e.Passed
		}
	}
	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		own := pos.Pieces[c][board.Pawn]
		enemy := pos.Pieces[c.Other()][board.Pawn]

		for f := 0; f < 8; f++ {
			if n := (own & board.FileBB(f)).Count(); n > 1 {
				mg += sign * doubledPawnMg * (n - 1)
				eg += sign * doubledPawnEg * (n - 1)
			}
		}

		for bb := own; bb != 0; {
			sq := bb.PopLSB()
			if own&adjacentFiles[sq.File()] == 0 {
				mg += sign * isolatedPawnMg
				eg += sign * isolatedPawnEg
			}
			if enemy&passedMask[c][sq] == 0 {
				passed |= board.SquareBB(sq)
				bonus := passedPawnBonus[sq.RelativeRank(c)]
				mg += sign * bonus / 2
				eg += sign * bonus
			}
		}
	}

	if pt != nil {
		pt.Store(pos.PawnKey, mg, eg, passed)
	}
	return mg, eg, passed
}

// pieceTerms scores mobility, the bishop pair and rooks on open files
// from White's view.
func pieceTerms(pos *board.Position) (mg, eg int) {
	occ := pos.AllOccupied
	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		them := c.Other()

		var enemyPawnAttacks board.Bitboard
		for bb := pos.Pieces[them][board.Pawn]; bb != 0; {
			enemyPawnAttacks |= board.PawnAttacks(bb.PopLSB(), them)
		}
		safe := ^pos.Occupied[c] &^ enemyPawnAttacks

		for p := board.Knight; p <= board.Queen; p++ {
			for bb := pos.Pieces[c][p]; bb != 0; {
				sq := bb.PopLSB()
				var attacks board.Bitboard
				switch p {
				case board.Knight:
					attacks = board.KnightAttacks(sq)
				case board.Bishop:
					attacks = board.BishopAttacks(sq, occ)
				case board.Rook:
					attacks = board.RookAttacks(sq, occ)
				case board.Queen:
					attacks = board.QueenAttacks(sq, occ)
				}
				n := (attacks & safe).Count()
				mg += sign * mobilityMgWeight[p] * n
				eg += sign * mobilityEgWeight[p] * n

				if p == board.Rook {
					file := board.FileBB(sq.File())
					switch {
					case pos.Pieces[c][board.Pawn]&file != 0:
					case pos.Pieces[them][board.Pawn]&file == 0:
						mg += sign * rookOpenFileMg
						eg += sign * rookOpenFileEg
					default:
						mg += sign * rookSemiOpenFileMg
						eg += sign * rookSemiOpenFileEg
					}
				}
			}
		}

		if pos.Pieces[c][board.Bishop].Many() {
			mg += sign * bishopPairMg
			eg += sign * bishopPairEg
		}
	}
	return mg, eg
}
