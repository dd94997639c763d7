package engine

import (
	"math"
	"testing"
)

func TestPackDataFieldBoundaries(t *testing.T) {
	tests := []struct {
		name                string
		move                uint16
		bound               Bound
		depth, eval, value  int
		gen                 uint8
		wantDepth           int
		wantEval, wantValue int
	}{
		{"zero", 0, BoundUpper, 0, 0, 0, 0, 0, 0, 0},
		{"qsearch depth", 0x0FFF, BoundLower, DepthQS, -1, 1, 1, DepthQS, -1, 1},
		{"lowest depth", 1, BoundExact, -7, 5, -5, 255, -7, 5, -5},
		{"highest depth", 1, BoundExact, 248, 5, -5, 255, 248, 5, -5},
		{"depth clamped low", 1, BoundExact, -20, 0, 0, 3, -7, 0, 0},
		{"depth clamped high", 1, BoundExact, 400, 0, 0, 3, 248, 0, 0},
		{"mate values", 0x0ABC, BoundLower, 30, ValueNone, ValueMate - 1, 9, 30, ValueNone, ValueMate - 1},
		{"mated values", 0x0ABC, BoundUpper, 30, -ValueMate + 2, -ValueMate + 1, 9, 30, -ValueMate + 2, -ValueMate + 1},
		{"int16 limits", 0x0FFF, BoundExact, 1, math.MaxInt16, math.MinInt16, 200, 1, math.MaxInt16, math.MinInt16},
		{"int16 clamped", 0x0FFF, BoundExact, 1, 40000, -40000, 200, 1, math.MaxInt16, math.MinInt16},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := packData(tc.move, tc.bound, tc.depth, tc.eval, tc.value, tc.gen)
			if got := dataMove(d); got != tc.move {
				t.Errorf("move = %#x, want %#x", got, tc.move)
			}
			if got := dataBound(d); got != tc.bound {
				t.Errorf("bound = %d, want %d", got, tc.bound)
			}
			if got := dataDepth(d); got != tc.wantDepth {
				t.Errorf("depth = %d, want %d", got, tc.wantDepth)
			}
			if got := dataEval(d); got != tc.wantEval {
				t.Errorf("eval = %d, want %d", got, tc.wantEval)
			}
			if got := dataValue(d); got != tc.wantValue {
				t.Errorf("value = %d, want %d", got, tc.wantValue)
			}
			if got := dataGen(d); got != tc.gen {
				t.Errorf("gen = %d, want %d", got, tc.gen)
			}
			if d>>62 != 0 {
				t.Errorf("bits above the generation are set: %#x", d)
			}
		})
	}
}

func TestVerifySignature(t *testing.T) {
	key := uint64(0x9E3779B97F4A7C15)
	other := key ^ 1<<63
	data := packData(0x123, BoundExact, 12, 34, 56, 7)
	check := signature(key) ^ data

	if !verifySignature(key, check, data) {
		t.Fatalf("signature of the writing key rejected")
	}
	if verifySignature(other, check, data) {
		t.Errorf("signature accepted for a different key")
	}
	torn := packData(0x123, BoundExact, 13, 34, 56, 7)
	if verifySignature(key, check, torn) {
		t.Errorf("data word from another write accepted")
	}
}

func TestStoreThenProbe(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(0xDEADBEEFCAFEF00D)

	if _, ok := tt.Probe(key); ok {
		t.Fatalf("hit in an empty table")
	}

	tt.Store(key, 0x345, BoundLower, 9, -120, 250)
	got, ok := tt.Probe(key)
	if !ok {
		t.Fatalf("miss after store")
	}
	want := TTData{Move: 0x345, Bound: BoundLower, Depth: 9, Eval: -120, Value: 250}
	if got != want {
		t.Errorf("probe = %+v, want %+v", got, want)
	}

	if _, ok := tt.Probe(key ^ 1<<56); ok {
		t.Errorf("hit for a key sharing the slot but not the signature")
	}
}

func TestTornSlotIsMiss(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(0x0123456789ABCDEF)
	tt.Store(key, 0x111, BoundExact, 5, 1, 2)

	s := &tt.slots[key&tt.mask]
	s.data.Store(packData(0x222, BoundExact, 7, 3, 4, tt.generation))
	if _, ok := tt.Probe(key); ok {
		t.Errorf("torn slot probed as a hit")
	}
}

func TestStoreReplacement(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(0x1111222233334444)

	tt.Store(key, 0x0AA, BoundExact, 10, 0, 50)

	tt.Store(key, 0x0BB, BoundLower, 8, 0, 60)
	if e, _ := tt.Probe(key); e.Depth != 10 || e.Move != 0x0AA {
		t.Fatalf("shallower bound replaced a deeper exact entry: %+v", e)
	}

	tt.Store(key, 0x0CC, BoundExact, 3, 0, 70)
	if e, _ := tt.Probe(key); e.Depth != 3 || e.Move != 0x0CC || e.Bound != BoundExact {
		t.Fatalf("exact result did not replace: %+v", e)
	}

	tt.Store(key, 0, BoundUpper, 4, 0, -10)
	e, _ := tt.Probe(key)
	if e.Depth != 4 || e.Bound != BoundUpper {
		t.Fatalf("deeper bound did not replace a shallow exact entry: %+v", e)
	}
	if e.Move != 0x0CC {
		t.Errorf("move = %#x, want the previous move kept", e.Move)
	}

	tt.Store(key, 0x0DD, BoundLower, 20, 0, 100)
	tt.Store(key, 0x0EE, BoundUpper, 16, 0, -100)
	if e, _ := tt.Probe(key); e.Depth != 20 {
		t.Errorf("much shallower entry replaced: %+v", e)
	}
	tt.Store(key, 0x0EE, BoundUpper, 17, 0, -100)
	if e, _ := tt.Probe(key); e.Depth != 17 {
		t.Errorf("entry within the depth margin not replaced: %+v", e)
	}

	tt.NewSearch()
	tt.Store(key, 0x0FF, BoundUpper, 1, 0, 0)
	if e, _ := tt.Probe(key); e.Depth != 1 || e.Move != 0x0FF {
		t.Errorf("entry from an older search not replaced: %+v", e)
	}
}

func TestClearAndHashFull(t *testing.T) {
	tt := NewTranspositionTable(1)
	for i := uint64(0); i < 1000; i++ {
		tt.Store(i|0xABCD<<48, 1, BoundExact, 1, 0, 0)
	}
	if got := tt.HashFull(); got != 1000 {
		t.Errorf("HashFull = %d, want 1000", got)
	}
	tt.NewSearch()
	if got := tt.HashFull(); got != 0 {
		t.Errorf("HashFull after NewSearch = %d, want 0", got)
	}

	if err := tt.Clear(4); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for i := uint64(0); i < 1000; i++ {
		if _, ok := tt.Probe(i | 0xABCD<<48); ok {
			t.Fatalf("slot %d survived Clear", i)
		}
	}
}

func TestResizeRoundsToPowerOfTwo(t *testing.T) {
	tt := NewTranspositionTable(3)
	n := tt.Size()
	if n == 0 || n&(n-1) != 0 {
		t.Fatalf("size %d is not a power of two", n)
	}
	tt.Resize(1)
	if tt.Size() >= n {
		t.Errorf("Resize(1) size %d, want below %d", tt.Size(), n)
	}
}

func TestValueToTTRoundTrip(t *testing.T) {
	for _, v := range []int{0, 150, -150, MateIn(3), MatedIn(4), ValueNone} {
		for _, ply := range []int{0, 1, 17} {
			if got := valueFromTT(valueToTT(v, ply), ply); got != v {
				t.Errorf("value %d at ply %d: got %d", v, ply, got)
			}
		}
	}
	if got := valueFromTT(valueToTT(MateIn(5), 3), 1); got != MateIn(3) {
		t.Errorf("mate from ply 3 read at ply 1 = %d, want %d", got, MateIn(3))
	}
}
