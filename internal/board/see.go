package board

// SeeGE reports whether the static exchange on m's destination wins at least
// threshold for the side to move. Castling, en passant and promotions are
// scored as an even exchange.
func (p *Position) SeeGE(m Move, threshold int) bool {
	if m.Flag() != FlagNormal {
		return 0 >= threshold
	}

	from, to := m.From(), m.To()
	swap := SeeValue[p.PieceAt(to).Type()] - threshold
	if swap < 0 {
		return false
	}
	swap = SeeValue[p.PieceAt(from).Type()] - swap
	if swap <= 0 {
		return true
	}

	occ := p.AllOccupied ^ SquareBB(from) ^ SquareBB(to)
	stm := p.SideToMove
	attackers := p.AttackersTo(to, occ)
	diag := p.Pieces[White][Bishop] | p.Pieces[Black][Bishop] | p.Pieces[White][Queen] | p.Pieces[Black][Queen]
	orth := p.Pieces[White][Rook] | p.Pieces[Black][Rook] | p.Pieces[White][Queen] | p.Pieces[Black][Queen]
	res := 1

	for {
		stm = stm.Other()
		attackers &= occ
		mine := attackers & p.Occupied[stm]
		if mine == 0 {
			break
		}
		res ^= 1

		var pt PieceType
		for pt = Pawn; pt < King; pt++ {
			if mine&p.Pieces[stm][pt] != 0 {
				break
			}
		}
		if pt == King {
			// The king may only take last, when nothing defends the square.
			if attackers&^p.Occupied[stm] != 0 {
				return res^1 != 0
			}
			return res != 0
		}

		swap = SeeValue[pt] - swap
		if swap < res {
			break
		}
		occ ^= SquareBB((mine & p.Pieces[stm][pt]).LSB())
		switch pt {
		case Pawn, Bishop:
			attackers |= BishopAttacks(to, occ) & diag
		case Rook:
			attackers |= RookAttacks(to, occ) & orth
		case Queen:
			attackers |= BishopAttacks(to, occ)&diag | RookAttacks(to, occ)&orth
		}
	}
	return res != 0
}
