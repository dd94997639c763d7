package board

// MakeMove plays a legal move and returns what UnmakeMove needs to take it back.
func (p *Position) MakeMove(m Move) UndoInfo {
	undo := UndoInfo{
		Captured:       NoPiece,
		CastlingRights: p.CastlingRights,
		EnPassant:      p.EnPassant,
		HalfMoveClock:  p.HalfMoveClock,
		Hash:           p.Hash,
		PawnKey:        p.PawnKey,
		Checkers:       p.Checkers,
		KingSquare:     p.KingSquare,
		Pieces:         p.Pieces,
		Occupied:       p.Occupied,
		AllOccupied:    p.AllOccupied,
	}

	us, them := p.SideToMove, p.SideToMove.Other()
	from, to := m.From(), m.To()
	piece := p.PieceAt(from)
	pt := piece.Type()

	h := p.Hash ^ zobristSideToMove ^ zobristCastling[p.CastlingRights]
	if p.EnPassant != NoSquare {
		h ^= zobristEnPassant[p.EnPassant.File()]
	}
	p.EnPassant = NoSquare

	switch {
	case m.IsEnPassant():
		capSq := to - 8
		if us == Black {
			capSq = to + 8
		}
		undo.Captured = NewPiece(Pawn, them)
		p.removePiece(undo.Captured, capSq)
		h ^= zobristPiece[them][Pawn][capSq]
		p.PawnKey ^= zobristPiece[them][Pawn][capSq]
	case m.IsCastling():
	default:
		if captured := p.PieceAt(to); captured != NoPiece {
			undo.Captured = captured
			p.removePiece(captured, to)
			h ^= zobristPiece[them][captured.Type()][to]
			if captured.Type() == Pawn {
				p.PawnKey ^= zobristPiece[them][Pawn][to]
			}
		}
	}

	p.movePiece(piece, from, to)
	h ^= zobristPiece[us][pt][from] ^ zobristPiece[us][pt][to]

	if pt == Pawn {
		p.PawnKey ^= zobristPiece[us][Pawn][from] ^ zobristPiece[us][Pawn][to]
		if m.IsPromotion() {
			promo := m.Promotion()
			p.Pieces[us][Pawn] &^= SquareBB(to)
			p.Pieces[us][promo] |= SquareBB(to)
			h ^= zobristPiece[us][Pawn][to] ^ zobristPiece[us][promo][to]
			p.PawnKey ^= zobristPiece[us][Pawn][to]
		} else if int(to)-int(from) == 16 || int(from)-int(to) == 16 {
			ep := Square((int(from) + int(to)) / 2)
			p.EnPassant = ep
			h ^= zobristEnPassant[ep.File()]
		}
	}

	if m.IsCastling() {
		rookFrom, rookTo := castlingRookSquares(to)
		p.movePiece(NewPiece(Rook, us), rookFrom, rookTo)
		h ^= zobristPiece[us][Rook][rookFrom] ^ zobristPiece[us][Rook][rookTo]
	}

	p.CastlingRights &= castlingMask[from] & castlingMask[to]
	h ^= zobristCastling[p.CastlingRights]

	if pt == Pawn || undo.Captured != NoPiece {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}
	if us == Black {
		p.FullMoveNumber++
	}

	p.SideToMove = them
	p.Hash = h
	p.updateCheckers()
	return undo
}

// UnmakeMove restores the position saved by the matching MakeMove.
func (p *Position) UnmakeMove(m Move, undo UndoInfo) {
	p.SideToMove = p.SideToMove.Other()
	if p.SideToMove == Black {
		p.FullMoveNumber--
	}
	p.CastlingRights = undo.CastlingRights
	p.EnPassant = undo.EnPassant
	p.HalfMoveClock = undo.HalfMoveClock
	p.Hash = undo.Hash
	p.PawnKey = undo.PawnKey
	p.Checkers = undo.Checkers
	p.KingSquare = undo.KingSquare
	p.Pieces = undo.Pieces
	p.Occupied = undo.Occupied
	p.AllOccupied = undo.AllOccupied
}

// MakeNullMove passes the turn. Not allowed while in check.
func (p *Position) MakeNullMove() NullUndo {
	undo := NullUndo{EnPassant: p.EnPassant, Hash: p.Hash, Checkers: p.Checkers, HalfMove: p.HalfMoveClock}
	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
		p.EnPassant = NoSquare
	}
	p.Hash ^= zobristSideToMove
	p.HalfMoveClock++
	p.SideToMove = p.SideToMove.Other()
	p.updateCheckers()
	return undo
}

// UnmakeNullMove takes back a null move.
func (p *Position) UnmakeNullMove(undo NullUndo) {
	p.SideToMove = p.SideToMove.Other()
	p.EnPassant = undo.EnPassant
	p.Hash = undo.Hash
	p.Checkers = undo.Checkers
	p.HalfMoveClock = undo.HalfMove
}

// castlingRookSquares maps the king's destination to the rook's origin and destination.
func castlingRookSquares(kingTo Square) (Square, Square) {
	switch kingTo {
	case G1:
		return H1, F1
	case C1:
		return A1, D1
	case G8:
		return H8, F8
	default:
		return A8, D8
	}
}
