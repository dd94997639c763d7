package nnue

import "github.com/hailam/chesscore/internal/board"

// kingBucket maps a king square, seen from its owner's side, to an input bucket:
// back rank queen side, back rank king side, ranks 2-3, everything else.
var kingBucket [64]int

func init() {
	for sq := board.A1; sq <= board.H8; sq++ {
		switch {
		case sq.Rank() == 0 && sq.File() < 4:
			kingBucket[sq] = 0
		case sq.Rank() == 0:
			kingBucket[sq] = 1
		case sq.Rank() <= 2:
			kingBucket[sq] = 2
		default:
			kingBucket[sq] = 3
		}
	}
}

func relative(persp board.Color, sq board.Square) board.Square {
	if persp == board.Black {
		return sq.Mirror()
	}
	return sq
}

// KingBucket returns the bucket of persp's king standing on ksq.
func KingBucket(persp board.Color, ksq board.Square) int {
	return kingBucket[relative(persp, ksq)]
}

// FeatureIndex returns the input row of piece pc on sq for perspective persp
// whose king stands on ksq.
func FeatureIndex(persp board.Color, ksq board.Square, pc board.Piece, sq board.Square) int {
	side := 0
	if pc.Color() != persp {
		side = 1
	}
	return KingBucket(persp, ksq)*FeatureCount + side*384 + int(pc.Type())*64 + int(relative(persp, sq))
}

// ActiveFeatures appends the rows of every piece on the board for persp.
func ActiveFeatures(pos *board.Position, persp board.Color, dst []int) []int {
	ksq := pos.KingSquare[persp]
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			pc := board.NewPiece(pt, c)
			for bb := pos.Pieces[c][pt]; bb != 0; {
				dst = append(dst, FeatureIndex(persp, ksq, pc, bb.PopLSB()))
			}
		}
	}
	return dst
}

// delta lists the rows a move adds to and removes from one perspective.
type delta struct {
	add, sub   [2]int
	nAdd, nSub int
}

func (d *delta) added(i int) {
	d.add[d.nAdd] = i
	d.nAdd++
}

func (d *delta) removed(i int) {
	d.sub[d.nSub] = i
	d.nSub++
}

// moveDelta computes the feature changes of m for persp on the position
// before m is made. ok is false when persp's king changes bucket.
func moveDelta(pos *board.Position, m board.Move, persp board.Color) (d delta, ok bool) {
	us := pos.SideToMove
	from, to := m.From(), m.To()
	piece := pos.PieceAt(from)

	ksq := pos.KingSquare[persp]
	if piece.Type() == board.King && us == persp {
		if KingBucket(persp, from) != KingBucket(persp, to) {
			return d, false
		}
		ksq = to
	}

	d.removed(FeatureIndex(persp, ksq, piece, from))
	if m.IsPromotion() {
		d.added(FeatureIndex(persp, ksq, board.NewPiece(m.Promotion(), us), to))
	} else {
		d.added(FeatureIndex(persp, ksq, piece, to))
	}

	switch {
	case m.IsCastling():
		rookFrom, rookTo := castlingRook(to)
		rook := board.NewPiece(board.Rook, us)
		d.removed(FeatureIndex(persp, ksq, rook, rookFrom))
		d.added(FeatureIndex(persp, ksq, rook, rookTo))
	case m.IsEnPassant():
		capSq := to - 8
		if us == board.Black {
			capSq = to + 8
		}
		d.removed(FeatureIndex(persp, ksq, board.NewPiece(board.Pawn, us.Other()), capSq))
	default:
		if captured := pos.PieceAt(to); captured != board.NoPiece {
			d.removed(FeatureIndex(persp, ksq, captured, to))
		}
	}
	return d, true
}

func castlingRook(kingTo board.Square) (board.Square, board.Square) {
	switch kingTo {
	case board.G1:
		return board.H1, board.F1
	case board.C1:
		return board.A1, board.D1
	case board.G8:
		return board.H8, board.F8
	default:
		return board.A8, board.D8
	}
}
