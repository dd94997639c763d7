package board

type genKind uint8

const (
	genAll genKind = iota
	genNoisy
)

// GenerateLegal fills ml with every legal move.
func (p *Position) GenerateLegal(ml *MoveList) {
	ml.Clear()
	p.generate(ml, genAll)
	p.filterLegal(ml)
}

// GenerateCaptures fills ml with legal captures and promotions.
func (p *Position) GenerateCaptures(ml *MoveList) {
	ml.Clear()
	p.generate(ml, genNoisy)
	p.filterLegal(ml)
}

// GeneratePseudoLegal fills ml with moves that may leave the king in check.
func (p *Position) GeneratePseudoLegal(ml *MoveList) {
	ml.Clear()
	p.generate(ml, genAll)
}

// HasLegalMoves reports whether the side to move can move at all.
func (p *Position) HasLegalMoves() bool {
	var ml MoveList
	p.GenerateLegal(&ml)
	return ml.Len() > 0
}

// IsCheckmate reports a mated side to move.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsStalemate reports a side to move with no legal move and not in check.
func (p *Position) IsStalemate() bool {
	return !p.InCheck() && !p.HasLegalMoves()
}

func (p *Position) generate(ml *MoveList, kind genKind) {
	us, them := p.SideToMove, p.SideToMove.Other()
	targets := ^p.Occupied[us]
	if kind == genNoisy {
		targets = p.Occupied[them]
	}

	p.generatePawnMoves(ml, kind)

	for pt := Knight; pt <= King; pt++ {
		for pieces := p.Pieces[us][pt]; pieces != 0; {
			from := pieces.PopLSB()
			var attacks Bitboard
			switch pt {
			case Knight:
				attacks = knightAttacks[from]
			case Bishop:
				attacks = BishopAttacks(from, p.AllOccupied)
			case Rook:
				attacks = RookAttacks(from, p.AllOccupied)
			case Queen:
				attacks = QueenAttacks(from, p.AllOccupied)
			case King:
				attacks = kingAttacks[from]
			}
			for attacks &= targets; attacks != 0; {
				ml.Add(NewMove(from, attacks.PopLSB()))
			}
		}
	}

	if kind == genAll && !p.InCheck() {
		p.generateCastling(ml)
	}
}

func (p *Position) generatePawnMoves(ml *MoveList, kind genKind) {
	us, them := p.SideToMove, p.SideToMove.Other()
	pawns := p.Pieces[us][Pawn]
	empty := ^p.AllOccupied
	enemies := p.Occupied[them]

	var push1, push2, capL, capR, lastRank Bitboard
	var up int
	if us == White {
		push1 = pawns.north() & empty
		push2 = (push1 & Rank3).north() & empty
		capL = pawns.northWest() & enemies
		capR = pawns.northEast() & enemies
		lastRank, up = Rank8, 8
	} else {
		push1 = pawns.south() & empty
		push2 = (push1 & Rank6).south() & empty
		capL = pawns.southWest() & enemies
		capR = pawns.southEast() & enemies
		lastRank, up = Rank1, -8
	}

	// Push promotions count as noisy moves.
	for bb := push1 & lastRank; bb != 0; {
		to := bb.PopLSB()
		addPromotions(ml, Square(int(to)-up), to)
	}
	for bb := capL & lastRank; bb != 0; {
		to := bb.PopLSB()
		addPromotions(ml, Square(int(to)-up+1), to)
	}
	for bb := capR & lastRank; bb != 0; {
		to := bb.PopLSB()
		addPromotions(ml, Square(int(to)-up-1), to)
	}
	for bb := capL &^ lastRank; bb != 0; {
		to := bb.PopLSB()
		ml.Add(NewMove(Square(int(to)-up+1), to))
	}
	for bb := capR &^ lastRank; bb != 0; {
		to := bb.PopLSB()
		ml.Add(NewMove(Square(int(to)-up-1), to))
	}
	if p.EnPassant != NoSquare {
		for bb := pawnAttacks[them][p.EnPassant] & pawns; bb != 0; {
			ml.Add(NewEnPassant(bb.PopLSB(), p.EnPassant))
		}
	}

	if kind == genNoisy {
		return
	}
	for bb := push1 &^ lastRank; bb != 0; {
		to := bb.PopLSB()
		ml.Add(NewMove(Square(int(to)-up), to))
	}
	for bb := push2; bb != 0; {
		to := bb.PopLSB()
		ml.Add(NewMove(Square(int(to)-2*up), to))
	}
}

func addPromotions(ml *MoveList, from, to Square) {
	ml.Add(NewPromotion(from, to, Queen))
	ml.Add(NewPromotion(from, to, Knight))
	ml.Add(NewPromotion(from, to, Rook))
	ml.Add(NewPromotion(from, to, Bishop))
}

type castlingPath struct {
	right          CastlingRights
	king, kingTo   Square
	empty, transit Bitboard
}

var castlingPaths = [2][2]castlingPath{
	{
		{WhiteKingSide, E1, G1, SquareBB(F1) | SquareBB(G1), SquareBB(F1) | SquareBB(G1)},
		{WhiteQueenSide, E1, C1, SquareBB(B1) | SquareBB(C1) | SquareBB(D1), SquareBB(C1) | SquareBB(D1)},
	},
	{
		{BlackKingSide, E8, G8, SquareBB(F8) | SquareBB(G8), SquareBB(F8) | SquareBB(G8)},
		{BlackQueenSide, E8, C8, SquareBB(B8) | SquareBB(C8) | SquareBB(D8), SquareBB(C8) | SquareBB(D8)},
	},
}

// generateCastling adds castling moves whose path is empty and unattacked.
// The caller guarantees the king is not in check.
func (p *Position) generateCastling(ml *MoveList) {
	us := p.SideToMove
	for _, cp := range castlingPaths[us] {
		if p.castlingAllowed(cp) {
			ml.Add(NewCastling(cp.king, cp.kingTo))
		}
	}
}

func (p *Position) castlingAllowed(cp castlingPath) bool {
	if p.CastlingRights&cp.right == 0 || p.AllOccupied&cp.empty != 0 {
		return false
	}
	them := p.SideToMove.Other()
	for t := cp.transit; t != 0; {
		if p.IsSquareAttacked(t.PopLSB(), them) {
			return false
		}
	}
	return true
}

// Pinned returns the side-to-move pieces pinned to their own king.
func (p *Position) Pinned() Bitboard {
	us, them := p.SideToMove, p.SideToMove.Other()
	ksq := p.KingSquare[us]
	var pinned Bitboard
	snipers := RookAttacks(ksq, 0)&(p.Pieces[them][Rook]|p.Pieces[them][Queen]) |
		BishopAttacks(ksq, 0)&(p.Pieces[them][Bishop]|p.Pieces[them][Queen])
	for snipers != 0 {
		blockers := Between(snipers.PopLSB(), ksq) & p.AllOccupied
		if blockers != 0 && !blockers.Many() && blockers&p.Occupied[us] != 0 {
			pinned |= blockers
		}
	}
	return pinned
}

func (p *Position) filterLegal(ml *MoveList) {
	pinned := p.Pinned()
	n := 0
	for i := 0; i < ml.n; i++ {
		m := ml.moves[i]
		if p.legal(m, pinned) {
			ml.moves[n] = m
			n++
		}
	}
	ml.n = n
}

// IsLegal reports whether the pseudo-legal move m leaves the own king safe.
func (p *Position) IsLegal(m Move) bool {
	return p.legal(m, p.Pinned())
}

func (p *Position) legal(m Move, pinned Bitboard) bool {
	us, them := p.SideToMove, p.SideToMove.Other()
	from, to := m.From(), m.To()
	ksq := p.KingSquare[us]

	if from == ksq {
		if m.IsCastling() {
			return p.Checkers == 0
		}
		return p.AttackersByColor(to, them, p.AllOccupied&^SquareBB(from)) == 0
	}

	if m.IsEnPassant() {
		capSq := to - 8
		if us == Black {
			capSq = to + 8
		}
		occ := (p.AllOccupied &^ SquareBB(from) &^ SquareBB(capSq)) | SquareBB(to)
		diag := p.Pieces[them][Bishop] | p.Pieces[them][Queen]
		orth := p.Pieces[them][Rook] | p.Pieces[them][Queen]
		if BishopAttacks(ksq, occ)&diag != 0 || RookAttacks(ksq, occ)&orth != 0 {
			return false
		}
		if p.Checkers != 0 {
			// Only a pawn check can be answered by taking that pawn en passant.
			return !p.Checkers.Many() && (p.Checkers.Has(capSq) || Between(p.Checkers.LSB(), ksq).Has(to))
		}
		return true
	}

	if p.Checkers != 0 {
		if p.Checkers.Many() {
			return false
		}
		checker := p.Checkers.LSB()
		if !(SquareBB(checker) | Between(checker, ksq)).Has(to) {
			return false
		}
	}

	return pinned&SquareBB(from) == 0 || Aligned(from, to, ksq)
}
