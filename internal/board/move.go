package board

import "fmt"

// Move packs a move into 16 bits:
// bits 0-5 from, bits 6-11 to, bits 12-13 promotion (N,B,R,Q), bits 14-15 flag.
type Move uint16

const (
	FlagNormal    uint16 = 0 << 14
	FlagPromotion uint16 = 1 << 14
	FlagEnPassant uint16 = 2 << 14
	FlagCastling  uint16 = 3 << 14
)

// NoMove is the null/absent move (a1a1 is never a real move).
const NoMove Move = 0

// NullMove marks a passed turn on the search stack (b1b1, never generated).
const NullMove Move = 65

func NewMove(from, to Square) Move {
	return Move(from) | Move(to)<<6
}

func NewPromotion(from, to Square, promo PieceType) Move {
	return Move(from) | Move(to)<<6 | Move(promo-Knight)<<12 | Move(FlagPromotion)
}

func NewEnPassant(from, to Square) Move {
	return Move(from) | Move(to)<<6 | Move(FlagEnPassant)
}

// NewCastling encodes castling as the king's two-square step.
func NewCastling(from, to Square) Move {
	return Move(from) | Move(to)<<6 | Move(FlagCastling)
}

func (m Move) From() Square { return Square(m & 0x3F) }
func (m Move) To() Square { return Square((m >> 6) & 0x3F) }
func (m Move) Flag() uint16 { return uint16(m) & 0xC000 }

// FromTo returns the 12-bit origin/destination part of the move.
func (m Move) FromTo() uint16 { return uint16(m) & 0x0FFF }

// Promotion returns the promoted piece type; only meaningful for promotions.
func (m Move) Promotion() PieceType {
	return PieceType((m>>12)&3) + Knight
}

func (m Move) IsPromotion() bool { return m.Flag() == FlagPromotion }
func (m Move) IsEnPassant() bool { return m.Flag() == FlagEnPassant }
func (m Move) IsCastling() bool { return m.Flag() == FlagCastling }

// String returns long algebraic notation, "0000" for NoMove.
func (m Move) String() string {
	if m == NoMove || m == NullMove {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	if m.IsPromotion() {
		s += string("nbrq"[m.Promotion()-Knight])
	}
	return s
}

// ParseMove resolves a long algebraic move against the legal moves of p.
func (p *Position) ParseMove(s string) (Move, error) {
	if len(s) < 4 || len(s) > 5 {
		return NoMove, fmt.Errorf("invalid move %q", s)
	}
	var ml MoveList
	p.GenerateLegal(&ml)
	for _, m := range ml.Moves() {
		if m.String() == s {
			return m, nil
		}
	}
	return NoMove, fmt.Errorf("illegal move %q", s)
}

// MaxMoves bounds the number of legal moves in any reachable position.
const MaxMoves = 256

// MoveList is a fixed-capacity move buffer that lives on the caller's stack.
type MoveList struct {
	moves [MaxMoves]Move
	n     int
}

func (ml *MoveList) Add(m Move) {
	ml.moves[ml.n] = m
	ml.n++
}

func (ml *MoveList) Len() int { return ml.n }
func (ml *MoveList) Get(i int) Move { return ml.moves[i] }
func (ml *MoveList) Swap(i, j int) { ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i] }
func (ml *MoveList) Clear() { ml.n = 0 }
func (ml *MoveList) Moves() []Move { return ml.moves[:ml.n] }

func (ml *MoveList) Contains(m Move) bool {
	for _, x := range ml.moves[:ml.n] {
		if x == m {
			return true
		}
	}
	return false
}

// UndoInfo is the state MakeMove overwrites and UnmakeMove restores.
type UndoInfo struct {
	Captured       Piece
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	Hash           uint64
	PawnKey        uint64
	Checkers       Bitboard
	KingSquare     [2]Square
	Pieces         [2][6]Bitboard
	Occupied       [2]Bitboard
	AllOccupied    Bitboard
}

// NullUndo is the state a null move overwrites.
type NullUndo struct {
	EnPassant Square
	Hash      uint64
	Checkers  Bitboard
	HalfMove  int
}
