package board

// DecodeMove rebuilds a full move from a 12-bit origin/destination pair, as
// stored by the transposition table. Promotions decode to queen promotions.
// Returns NoMove when the origin holds no piece of the side to move.
func (p *Position) DecodeMove(fromTo uint16) Move {
	from, to := Square(fromTo&0x3F), Square((fromTo>>6)&0x3F)
	if from == to || !p.Occupied[p.SideToMove].Has(from) {
		return NoMove
	}
	switch p.PieceAt(from).Type() {
	case King:
		if d := int(to) - int(from); d == 2 || d == -2 {
			return NewCastling(from, to)
		}
	case Pawn:
		if to == p.EnPassant {
			return NewEnPassant(from, to)
		}
		if r := to.Rank(); r == 0 || r == 7 {
			return NewPromotion(from, to, Queen)
		}
	}
	return NewMove(from, to)
}

// IsPseudoLegal reports whether m could have been produced by the move
// generator in this position, ignoring whether it leaves the king in check.
func (p *Position) IsPseudoLegal(m Move) bool {
	if m == NoMove {
		return false
	}
	us, them := p.SideToMove, p.SideToMove.Other()
	from, to := m.From(), m.To()
	piece := p.PieceAt(from)
	if piece == NoPiece || piece.Color() != us || p.Occupied[us].Has(to) {
		return false
	}
	pt := piece.Type()

	if m.IsCastling() {
		if pt != King || p.InCheck() {
			return false
		}
		for _, cp := range castlingPaths[us] {
			if cp.king == from && cp.kingTo == to {
				return p.castlingAllowed(cp)
			}
		}
		return false
	}

	if pt != Pawn {
		if m.Flag() != FlagNormal {
			return false
		}
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
		return attacks.Has(to)
	}

	if m.IsEnPassant() {
		return to == p.EnPassant && pawnAttacks[us][from].Has(to)
	}

	lastRank := Rank8
	up := 8
	if us == Black {
		lastRank, up = Rank1, -8
	}
	if lastRank.Has(to) != m.IsPromotion() {
		return false
	}
	if pawnAttacks[us][from].Has(to) {
		return p.Occupied[them].Has(to)
	}
	if int(to) == int(from)+up {
		return p.IsEmpty(to)
	}
	if int(to) == int(from)+2*up && from.RelativeRank(us) == 1 {
		return p.IsEmpty(to) && p.IsEmpty(Square(int(from)+up))
	}
	return false
}
