package engine

import "github.com/hailam/chesscore/internal/board"

// PawnEntry stores cached pawn structure evaluation.
type PawnEntry struct {
	Key     uint64
	MgScore int16 // Middlegame score
	EgScore int16 // Endgame score
	Passed  board.Bitboard
}

// PawnTable is a hash table for caching pawn structure evaluations,
// keyed by the position's pawn key.
type PawnTable struct {
	entries []PawnEntry
	mask    uint64
}

// NewPawnTable creates a new pawn hash table with the given size in MB.
func NewPawnTable(sizeMB int) *PawnTable {
	// Each entry is 24 bytes, round to power of 2
	numEntries := (sizeMB * 1024 * 1024) / 24

	size := 1
	for size*2 <= numEntries {
		size *= 2
	}

	return &PawnTable{
		entries: make([]PawnEntry, size),
		mask:    uint64(size - 1),
	}
}

// Probe returns the cached entry for key, or nil.
func (pt *PawnTable) Probe(key uint64) *PawnEntry {
	e := &pt.entries[key&pt.mask]
	if e.Key == key && key != 0 {
		return e
	}
	return nil
}

// Store caches the pawn structure scores and passed pawns for key.
func (pt *PawnTable) Store(key uint64, mg, eg int, passed board.Bitboard) *PawnEntry {
	e := &pt.entries[key&pt.mask]
	e.Key = key
	e.MgScore = int16(mg)
	e.EgScore = int16(eg)
	e.Passed = passed
	return e
}

// Clear clears the pawn hash table.
func (pt *PawnTable) Clear() {
	clear(pt.entries)
}
