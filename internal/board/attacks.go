package board

var (
	knightAttacks [64]Bitboard
	kingAttacks   [64]Bitboard
	pawnAttacks   [2][64]Bitboard

	betweenBB [64][64]Bitboard
	lineBB    [64][64]Bitboard
)

func init() {
	for sq := A1; sq <= H8; sq++ {
		b := SquareBB(sq)
		knightAttacks[sq] = (b<<17)&notFileA | (b<<15)&notFileH | (b>>17)&notFileH | (b>>15)&notFileA |
			(b<<10)&notFileAB | (b<<6)&notFileGH | (b>>10)&notFileGH | (b>>6)&notFileAB
		kingAttacks[sq] = b.north() | b.south() | b.east() | b.west() |
			b.northEast() | b.northWest() | b.southEast() | b.southWest()
		pawnAttacks[White][sq] = b.northEast() | b.northWest()
		pawnAttacks[Black][sq] = b.southEast() | b.southWest()
	}

	initMagics()

	for a := A1; a <= H8; a++ {
		for b := A1; b <= H8; b++ {
			if a == b {
				continue
			}
			switch {
			case bishopAttacksSlow(a, 0).Has(b):
				lineBB[a][b] = (bishopAttacksSlow(a, 0) & bishopAttacksSlow(b, 0)) | SquareBB(a) | SquareBB(b)
				betweenBB[a][b] = bishopAttacksSlow(a, SquareBB(b)) & bishopAttacksSlow(b, SquareBB(a))
			case rookAttacksSlow(a, 0).Has(b):
				lineBB[a][b] = (rookAttacksSlow(a, 0) & rookAttacksSlow(b, 0)) | SquareBB(a) | SquareBB(b)
				betweenBB[a][b] = rookAttacksSlow(a, SquareBB(b)) & rookAttacksSlow(b, SquareBB(a))
			}
		}
	}
}

// KnightAttacks returns the knight attack set of sq.
func KnightAttacks(sq Square) Bitboard { return knightAttacks[sq] }

// KingAttacks returns the king attack set of sq.
func KingAttacks(sq Square) Bitboard { return kingAttacks[sq] }

// PawnAttacks returns the squares a pawn of color c on sq attacks.
func PawnAttacks(sq Square, c Color) Bitboard { return pawnAttacks[c][sq] }

// Between returns the squares strictly between a and b, empty when unaligned.
func Between(a, b Square) Bitboard { return betweenBB[a][b] }

// Aligned reports whether the three squares share a rank, file or diagonal.
func Aligned(a, b, c Square) bool {
	return lineBB[a][b].Has(c)
}

// AttackersTo returns every piece of either color attacking sq under occupancy occ.
func (p *Position) AttackersTo(sq Square, occ Bitboard) Bitboard {
	diag := p.Pieces[White][Bishop] | p.Pieces[Black][Bishop] | p.Pieces[White][Queen] | p.Pieces[Black][Queen]
	orth := p.Pieces[White][Rook] | p.Pieces[Black][Rook] | p.Pieces[White][Queen] | p.Pieces[Black][Queen]
	return pawnAttacks[Black][sq]&p.Pieces[White][Pawn] |
		pawnAttacks[White][sq]&p.Pieces[Black][Pawn] |
		knightAttacks[sq]&(p.Pieces[White][Knight]|p.Pieces[Black][Knight]) |
		kingAttacks[sq]&(p.Pieces[White][King]|p.Pieces[Black][King]) |
		BishopAttacks(sq, occ)&diag |
		RookAttacks(sq, occ)&orth
}

// AttackersByColor returns the pieces of color c attacking sq under occupancy occ.
func (p *Position) AttackersByColor(sq Square, c Color, occ Bitboard) Bitboard {
	return p.AttackersTo(sq, occ) & p.Occupied[c]
}

// IsSquareAttacked reports whether color by attacks sq in the current position.
func (p *Position) IsSquareAttacked(sq Square, by Color) bool {
	pc := &p.Pieces[by]
	return pawnAttacks[by.Other()][sq]&pc[Pawn] != 0 ||
		knightAttacks[sq]&pc[Knight] != 0 ||
		kingAttacks[sq]&pc[King] != 0 ||
		BishopAttacks(sq, p.AllOccupied)&(pc[Bishop]|pc[Queen]) != 0 ||
		RookAttacks(sq, p.AllOccupied)&(pc[Rook]|pc[Queen]) != 0
}

func (p *Position) updateCheckers() {
	us := p.SideToMove
	if p.Pieces[us][King] == 0 {
		p.Checkers = 0
		return
	}
	p.Checkers = p.AttackersByColor(p.KingSquare[us], us.Other(), p.AllOccupied)
}

// GivesCheck reports whether the legal move m checks the opponent's king,
// directly or by discovery.
func (p *Position) GivesCheck(m Move) bool {
	us := p.SideToMove
	ksq := p.KingSquare[us.Other()]
	from, to := m.From(), m.To()
	pt := p.PieceAt(from).Type()

	occ := p.AllOccupied&^SquareBB(from) | SquareBB(to)
	moved := SquareBB(from)
	switch {
	case m.IsPromotion():
		pt = m.Promotion()
	case m.IsEnPassant():
		if us == White {
			occ &^= SquareBB(to - 8)
		} else {
			occ &^= SquareBB(to + 8)
		}
	case m.IsCastling():
		rookFrom, rookTo := castlingRookSquares(to)
		occ = occ&^SquareBB(rookFrom) | SquareBB(rookTo)
		moved |= SquareBB(rookFrom)
		pt, to = Rook, rookTo
	}

	var direct Bitboard
	switch pt {
	case Pawn:
		direct = PawnAttacks(to, us)
	case Knight:
		direct = KnightAttacks(to)
	case Bishop:
		direct = BishopAttacks(to, occ)
	case Rook:
		direct = RookAttacks(to, occ)
	case Queen:
		direct = QueenAttacks(to, occ)
	}
	if direct.Has(ksq) {
		return true
	}

	diag := (p.Pieces[us][Bishop] | p.Pieces[us][Queen]) & BishopAttacks(ksq, occ)
	line := (p.Pieces[us][Rook] | p.Pieces[us][Queen]) & RookAttacks(ksq, occ)
	return (diag|line)&^moved != 0
}
