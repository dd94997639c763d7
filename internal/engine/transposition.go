package engine

import (
	"math"
	"sync/atomic"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Bound is the kind of result stored for a position.
type Bound uint8

const (
	BoundNone  Bound = 0
	BoundUpper Bound = 1 // failed low
	BoundLower Bound = 2 // failed high
	BoundExact Bound = BoundUpper | BoundLower
)

// DepthQS marks entries written by quiescence search.
const DepthQS = -1

// Packed data word layout.
const (
	boundShift  = 12
	depthShift  = 14
	evalShift   = 22
	valueShift  = 38
	genShift    = 54
	depthOffset = 7
)

// TTData is a decoded table entry.
type TTData struct {
	Move  uint16 // from/to only; resolve with Position.DecodeMove
	Bound Bound
	Depth int
	Eval  int
	Value int
}

func clampInt16(v int) int {
	return lo.Clamp(v, math.MinInt16, math.MaxInt16)
}

func packData(move uint16, bound Bound, depth, eval, value int, gen uint8) uint64 {
	d := lo.Clamp(depth+depthOffset, 0, 255)
	return uint64(move&0x0FFF) |
		uint64(bound&3)<<boundShift |
		uint64(d)<<depthShift |
		uint64(uint16(int16(clampInt16(eval))))<<evalShift |
		uint64(uint16(int16(clampInt16(value))))<<valueShift |
		uint64(gen)<<genShift
}

func dataMove(d uint64) uint16 { return uint16(d & 0x0FFF) }
func dataBound(d uint64) Bound { return Bound((d >> boundShift) & 3) }
func dataDepth(d uint64) int   { return int((d>>depthShift)&0xFF) - depthOffset }
func dataEval(d uint64) int    { return int(int16(uint16(d >> evalShift))) }
func dataValue(d uint64) int   { return int(int16(uint16(d >> valueShift))) }
func dataGen(d uint64) uint8   { return uint8(d >> genShift) }

func unpackData(d uint64) TTData {
	return TTData{
		Move:  dataMove(d),
		Bound: dataBound(d),
		Depth: dataDepth(d),
		Eval:  dataEval(d),
		Value: dataValue(d),
	}
}

func signature(key uint64) uint64 {
	return key >> 48
}

// verifySignature reports whether a check/data pair was written together for key.
func verifySignature(key, check, data uint64) bool {
	return check^data == signature(key)
}

type ttSlot struct {
	data  atomic.Uint64
	check atomic.Uint64
}

// TranspositionTable is a lock-free, single slot per index position cache
// shared by all search threads. Concurrent writes may tear a slot; a torn
// slot fails signature verification and reads as a miss.
type TranspositionTable struct {
	slots      []ttSlot
	mask       uint64
	generation uint8
}

// NewTranspositionTable creates a transposition table with the given size in MB.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	tt := &TranspositionTable{}
	tt.Resize(sizeMB)
	return tt
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2.
func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Resize reallocates the table. Only call between searches.
func (tt *TranspositionTable) Resize(sizeMB int) {
	sizeMB = max(sizeMB, 1)
	n := roundDownToPowerOf2(uint64(sizeMB) * 1024 * 1024 / 16)
	tt.slots = make([]ttSlot, n)
	tt.mask = n - 1
	tt.generation = 0
}

// Size returns the number of slots.
func (tt *TranspositionTable) Size() int {
	return len(tt.slots)
}

// NewSearch advances the generation so older entries lose priority.
func (tt *TranspositionTable) NewSearch() {
	tt.generation++
}

// Probe looks up key. ok is false on a miss or a slot that fails verification.
func (tt *TranspositionTable) Probe(key uint64) (TTData, bool) {
	s := &tt.slots[key&tt.mask]
	data := s.data.Load()
	check := s.check.Load()
	if !verifySignature(key, check, data) || dataBound(data) == BoundNone {
		return TTData{}, false
	}
	return unpackData(data), true
}

// Store writes a result for key. An existing entry for the same position
// survives when it is an exact result at least as deep from this search,
// or when it is much deeper.
func (tt *TranspositionTable) Store(key uint64, move uint16, bound Bound, depth, eval, value int) {
	s := &tt.slots[key&tt.mask]
	old := s.data.Load()
	same := verifySignature(key, s.check.Load(), old) && dataBound(old) != BoundNone

	if same {
		if move == 0 {
			move = dataMove(old)
		}
		if bound != BoundExact && dataGen(old) == tt.generation {
			oldDepth := dataDepth(old)
			if dataBound(old) == BoundExact && oldDepth >= depth {
				return
			}
			if depth+4 <= oldDepth {
				return
			}
		}
	}

	data := packData(move, bound, depth, eval, value, tt.generation)
	s.data.Store(data)
	s.check.Store(signature(key) ^ data)
}

// Clear zeroes every slot using the given number of goroutines.
// Only call between searches.
func (tt *TranspositionTable) Clear(threads int) error {
	threads = max(threads, 1)
	chunk := (len(tt.slots) + threads - 1) / threads

	var g errgroup.Group
	for begin := 0; begin < len(tt.slots); begin += chunk {
		begin, end := begin, min(begin+chunk, len(tt.slots))
		g.Go(func() error {
			for i := begin; i < end; i++ {
				tt.slots[i].data.Store(0)
				tt.slots[i].check.Store(0)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	tt.generation = 0
	return nil
}

// HashFull returns the permille of sampled slots written during this search.
func (tt *TranspositionTable) HashFull() int {
	sample := min(1000, len(tt.slots))
	used := 0
	for i := 0; i < sample; i++ {
		d := tt.slots[i].data.Load()
		if dataBound(d) != BoundNone && dataGen(d) == tt.generation {
			used++
		}
	}
	return used * 1000 / sample
}
