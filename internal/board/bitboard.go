package board

import (
	"math/bits"
	"strings"
)

// Bitboard is a set of squares, bit i standing for Square(i).
type Bitboard uint64

const (
	FileA Bitboard = 0x0101010101010101
	FileH Bitboard = 0x8080808080808080
	Rank1 Bitboard = 0x00000000000000FF
	Rank2 Bitboard = 0x000000000000FF00
	Rank3 Bitboard = 0x0000000000FF0000
	Rank6 Bitboard = 0x0000FF0000000000
	Rank7 Bitboard = 0x00FF000000000000
	Rank8 Bitboard = 0xFF00000000000000

	notFileA  = ^FileA
	notFileH  = ^FileH
	notFileAB = ^(FileA | FileA<<1)
	notFileGH = ^(FileH | FileH>>1)
)

// SquareBB returns the singleton set {sq}.
func SquareBB(sq Square) Bitboard {
	return 1 << sq
}

// Has reports whether sq is in the set.
func (b Bitboard) Has(sq Square) bool {
	return b&(1<<sq) != 0
}

// Count returns the number of squares in the set.
func (b Bitboard) Count() int {
	return bits.OnesCount64(uint64(b))
}

// Many reports whether the set has more than one square.
func (b Bitboard) Many() bool {
	return b&(b-1) != 0
}

// LSB returns the lowest square, or NoSquare for the empty set.
func (b Bitboard) LSB() Square {
	if b == 0 {
		return NoSquare
	}
	return Square(bits.TrailingZeros64(uint64(b)))
}

// PopLSB removes and returns the lowest square.
func (b *Bitboard) PopLSB() Square {
	sq := Square(bits.TrailingZeros64(uint64(*b)))
	*b &= *b - 1
	return sq
}

func (b Bitboard) north() Bitboard     { return b << 8 }
func (b Bitboard) south() Bitboard     { return b >> 8 }
func (b Bitboard) east() Bitboard      { return (b << 1) & notFileA }
func (b Bitboard) west() Bitboard      { return (b >> 1) & notFileH }
func (b Bitboard) northEast() Bitboard { return (b << 9) & notFileA }
func (b Bitboard) northWest() Bitboard { return (b << 7) & notFileH }
func (b Bitboard) southEast() Bitboard { return (b >> 7) & notFileA }
func (b Bitboard) southWest() Bitboard { return (b >> 9) & notFileH }

// String renders the set as an 8x8 grid, rank 8 first.
func (b Bitboard) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		sb.WriteByte(byte('1' + rank))
		for file := 0; file < 8; file++ {
			if b.Has(NewSquare(file, rank)) {
				sb.WriteString(" 1")
			} else {
				sb.WriteString(" .")
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  a b c d e f g h\n")
	return sb.String()
}

// FileBB returns every square on file f (0 = a-file).
func FileBB(f int) Bitboard { return FileA << f }

// RankBB returns every square on rank r (0 = first rank).
func RankBB(r int) Bitboard { return Rank1 << (8 * r) }
