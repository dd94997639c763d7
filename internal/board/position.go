package board

import (
	"fmt"
	"strings"
)

// Position is a complete, mutable chess position.
type Position struct {
	Pieces      [2][6]Bitboard
	Occupied    [2]Bitboard
	AllOccupied Bitboard

	SideToMove     Color
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	FullMoveNumber int

	// Hash is the zobrist key; PawnKey covers pawns only.
	Hash    uint64
	PawnKey uint64

	KingSquare [2]Square
	Checkers   Bitboard
}

// NewPosition returns the standard starting position.
func NewPosition() *Position {
	pos, err := ParseFEN(StartFEN)
	if err != nil {
		panic(err)
	}
	return pos
}

// Copy returns an independent copy of the position.
func (p *Position) Copy() *Position {
	c := *p
	return &c
}

// PieceAt returns the piece on sq, or NoPiece.
func (p *Position) PieceAt(sq Square) Piece {
	bb := SquareBB(sq)
	if p.AllOccupied&bb == 0 {
		return NoPiece
	}
	c := White
	if p.Occupied[Black]&bb != 0 {
		c = Black
	}
	for pt := Pawn; pt <= King; pt++ {
		if p.Pieces[c][pt]&bb != 0 {
			return NewPiece(pt, c)
		}
	}
	return NoPiece
}

// IsEmpty reports whether no piece stands on sq.
func (p *Position) IsEmpty(sq Square) bool {
	return p.AllOccupied&SquareBB(sq) == 0
}

// InCheck reports whether the side to move is in check.
func (p *Position) InCheck() bool {
	return p.Checkers != 0
}

// MovedPiece returns the piece standing on the origin square of m.
func (p *Position) MovedPiece(m Move) Piece {
	return p.PieceAt(m.From())
}

// CapturedPiece returns the piece m would capture, NoPiece for quiet moves.
func (p *Position) CapturedPiece(m Move) Piece {
	if m.IsEnPassant() {
		return NewPiece(Pawn, p.SideToMove.Other())
	}
	if m.IsCastling() {
		return NoPiece
	}
	return p.PieceAt(m.To())
}

// IsCapture reports whether m removes an enemy piece.
func (p *Position) IsCapture(m Move) bool {
	return m.IsEnPassant() || (!m.IsCastling() && p.Occupied[p.SideToMove.Other()].Has(m.To()))
}

// IsQuiet reports whether m neither captures nor promotes.
func (p *Position) IsQuiet(m Move) bool {
	return !m.IsPromotion() && !p.IsCapture(m)
}

// HasNonPawnMaterial reports whether c owns a knight, bishop, rook or queen.
func (p *Position) HasNonPawnMaterial(c Color) bool {
	pc := &p.Pieces[c]
	return pc[Knight]|pc[Bishop]|pc[Rook]|pc[Queen] != 0
}

// NonPawnMaterial returns c's non-pawn material on the SeeValue scale.
func (p *Position) NonPawnMaterial(c Color) int {
	v := 0
	for pt := Knight; pt <= Queen; pt++ {
		v += p.Pieces[c][pt].Count() * SeeValue[pt]
	}
	return v
}

// PieceCount returns the number of pieces on the board, kings included.
func (p *Position) PieceCount() int {
	return p.AllOccupied.Count()
}

// IsInsufficientMaterial reports bare kings or a single minor piece against a bare king.
func (p *Position) IsInsufficientMaterial() bool {
	heavy := p.Pieces[White][Pawn] | p.Pieces[Black][Pawn] |
		p.Pieces[White][Rook] | p.Pieces[Black][Rook] |
		p.Pieces[White][Queen] | p.Pieces[Black][Queen]
	if heavy != 0 {
		return false
	}
	minors := p.Pieces[White][Knight] | p.Pieces[White][Bishop] |
		p.Pieces[Black][Knight] | p.Pieces[Black][Bishop]
	return !minors.Many()
}

func (p *Position) setPiece(piece Piece, sq Square) {
	c, pt := piece.Color(), piece.Type()
	bb := SquareBB(sq)
	p.Pieces[c][pt] |= bb
	p.Occupied[c] |= bb
	p.AllOccupied |= bb
	if pt == King {
		p.KingSquare[c] = sq
	}
}

func (p *Position) removePiece(piece Piece, sq Square) {
	c, pt := piece.Color(), piece.Type()
	bb := SquareBB(sq)
	p.Pieces[c][pt] &^= bb
	p.Occupied[c] &^= bb
	p.AllOccupied &^= bb
}

func (p *Position) movePiece(piece Piece, from, to Square) {
	c, pt := piece.Color(), piece.Type()
	bb := SquareBB(from) | SquareBB(to)
	p.Pieces[c][pt] ^= bb
	p.Occupied[c] ^= bb
	p.AllOccupied ^= bb
	if pt == King {
		p.KingSquare[c] = to
	}
}

// Validate rejects positions the search cannot handle.
func (p *Position) Validate() error {
	if p.Pieces[White][King].Count() != 1 || p.Pieces[Black][King].Count() != 1 {
		return fmt.Errorf("each side needs exactly one king")
	}
	if (p.Pieces[White][Pawn]|p.Pieces[Black][Pawn])&(Rank1|Rank8) != 0 {
		return fmt.Errorf("pawns on the first or last rank")
	}
	if p.IsSquareAttacked(p.KingSquare[p.SideToMove.Other()], p.SideToMove) {
		return fmt.Errorf("side not to move is in check")
	}
	return nil
}

// String draws the board followed by the FEN and hash.
func (p *Position) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		fmt.Fprintf(&sb, "%d ", rank+1)
		for file := 0; file < 8; file++ {
			pc := p.PieceAt(NewSquare(file, rank))
			if pc == NoPiece {
				sb.WriteString(" .")
			} else {
				sb.WriteString(" " + pc.String())
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("   a b c d e f g h\n\n")
	fmt.Fprintf(&sb, "Fen: %s\nKey: %016X\n", p.ToFEN(), p.Hash)
	return sb.String()
}
