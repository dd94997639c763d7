package board

// Fancy magic bitboards for sliders. Magic multipliers are searched at start-up
// with a fixed seed so the tables are identical on every run.

type magic struct {
	mask   Bitboard
	magic  uint64
	shift  uint8
	offset uint32
}

var (
	bishopMagics [64]magic
	rookMagics   [64]magic

	bishopTable [5248]Bitboard
	rookTable   [102400]Bitboard
)

func initMagics() {
	rng := prng{state: 0x9E3779B97F4A7C15}
	fillMagics(&bishopMagics, bishopTable[:], bishopAttacksSlow, &rng)
	fillMagics(&rookMagics, rookTable[:], rookAttacksSlow, &rng)
}

func fillMagics(magics *[64]magic, table []Bitboard, slow func(Square, Bitboard) Bitboard, rng *prng) {
	var occupancy, reference [4096]Bitboard
	var epoch [4096]int
	var offset uint32
	attempt := 0

	for sq := A1; sq <= H8; sq++ {
		edges := ((Rank1 | Rank8) &^ rankMask(sq)) | ((FileA | FileH) &^ fileMask(sq))
		mask := slow(sq, 0) &^ edges
		n := mask.Count()
		size := 1 << n

		// Carry-rippler enumeration of every subset of the mask.
		var subset Bitboard
		for i := 0; i < size; i++ {
			occupancy[i] = subset
			reference[i] = slow(sq, subset)
			subset = (subset - mask) & mask
		}

		m := &magics[sq]
		m.mask = mask
		m.shift = uint8(64 - n)
		m.offset = offset
		entries := table[offset : offset+uint32(size)]

		for {
			m.magic = rng.sparse()
			if bits := (uint64(mask) * m.magic) >> 56; Bitboard(bits).Count() < 6 {
				continue
			}
			attempt++
			ok := true
			for i := 0; i < size; i++ {
				idx := (uint64(occupancy[i]) * m.magic) >> m.shift
				if epoch[idx] < attempt {
					epoch[idx] = attempt
					entries[idx] = reference[i]
				} else if entries[idx] != reference[i] {
					ok = false
					break
				}
			}
			if ok {
				break
			}
		}
		offset += uint32(size)
	}
}

func rankMask(sq Square) Bitboard { return Rank1 << (8 * uint(sq.Rank())) }
func fileMask(sq Square) Bitboard { return FileA << uint(sq.File()) }

func slide(sq Square, occupied Bitboard, dirs [4][2]int) Bitboard {
	var attacks Bitboard
	for _, d := range dirs {
		f, r := sq.File()+d[0], sq.Rank()+d[1]
		for f >= 0 && f <= 7 && r >= 0 && r <= 7 {
			s := NewSquare(f, r)
			attacks |= SquareBB(s)
			if occupied.Has(s) {
				break
			}
			f, r = f+d[0], r+d[1]
		}
	}
	return attacks
}

func bishopAttacksSlow(sq Square, occupied Bitboard) Bitboard {
	return slide(sq, occupied, [4][2]int{{1, 1}, {-1, 1}, {1, -1}, {-1, -1}})
}

func rookAttacksSlow(sq Square, occupied Bitboard) Bitboard {
	return slide(sq, occupied, [4][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}})
}

// BishopAttacks returns the bishop attack set from sq given the occupancy.
func BishopAttacks(sq Square, occupied Bitboard) Bitboard {
	m := &bishopMagics[sq]
	return bishopTable[m.offset+uint32((uint64(occupied&m.mask)*m.magic)>>m.shift)]
}

// RookAttacks returns the rook attack set from sq given the occupancy.
func RookAttacks(sq Square, occupied Bitboard) Bitboard {
	m := &rookMagics[sq]
	return rookTable[m.offset+uint32((uint64(occupied&m.mask)*m.magic)>>m.shift)]
}

// QueenAttacks is the union of bishop and rook attacks.
func QueenAttacks(sq Square, occupied Bitboard) Bitboard {
	return BishopAttacks(sq, occupied) | RookAttacks(sq, occupied)
}
