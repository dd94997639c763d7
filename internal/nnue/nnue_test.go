package nnue

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hailam/chesscore/internal/board"
	"lukechampine.com/frand"
)

var testNet = RandomNetwork(7)

func freshValues(t *testing.T, pos *board.Position) [2][Hidden]int16 {
	t.Helper()
	var s AccumulatorStack
	s.net = testNet
	s.Reset(pos)
	return s.stack[0].Values
}

func TestIncrementalMatchesRefresh(t *testing.T) {
	starts := []string{
		board.StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	}
	rng := frand.NewCustom(make([]byte, 32), 1024, 12)

	for _, fen := range starts {
		pos, err := board.ParseFEN(fen)
		if err != nil {
			t.Fatalf("ParseFEN: %v", err)
		}
		ev := NewEvaluator(testNet)
		ev.Reset(pos)
		rootEval := ev.Evaluate(pos)

		var played []board.Move
		var undos []board.UndoInfo
		for ply := 0; ply < 80; ply++ {
			var ml board.MoveList
			pos.GenerateLegal(&ml)
			if ml.Len() == 0 {
				break
			}
			m := ml.Get(rng.Intn(ml.Len()))
			ev.Push(pos, m)
			undos = append(undos, pos.MakeMove(m))
			played = append(played, m)

			got := ev.stack.current(pos).Values
			if got != freshValues(t, pos) {
				t.Fatalf("%s: accumulator diverged after %v at ply %d (%s)", fen, m, ply, pos.ToFEN())
			}
		}

		for i := len(played) - 1; i >= 0; i-- {
			pos.UnmakeMove(played[i], undos[i])
			ev.Pop()
		}
		if got := ev.Evaluate(pos); got != rootEval {
			t.Errorf("%s: root eval %d after unwinding, want %d", fen, got, rootEval)
		}
	}
}

func TestIncrementalWithBogusEnPassant(t *testing.T) {
	pos, err := board.ParseFEN("4k3/8/8/3P4/8/8/8/4K3 w - e6 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	ev := NewEvaluator(testNet)
	ev.Reset(pos)

	var ml board.MoveList
	pos.GenerateLegal(&ml)
	for _, m := range ml.Moves() {
		ev.Push(pos, m)
		undo := pos.MakeMove(m)
		if got := ev.stack.current(pos).Values; got != freshValues(t, pos) {
			t.Errorf("accumulator diverged after %v", m)
		}
		pos.UnmakeMove(m, undo)
		ev.Pop()
	}
}

func TestNullPushKeepsValues(t *testing.T) {
	pos := board.NewPosition()
	ev := NewEvaluator(testNet)
	ev.Reset(pos)
	before := ev.Evaluate(pos)

	ev.PushNull()
	undo := pos.MakeNullMove()
	if ev.stack.current(pos).Values != freshValues(t, pos) {
		t.Fatalf("null push changed the accumulator")
	}
	pos.UnmakeNullMove(undo)
	ev.Pop()
	if got := ev.Evaluate(pos); got != before {
		t.Errorf("eval %d after null pop, want %d", got, before)
	}
}

func TestEvaluateColorSymmetric(t *testing.T) {
	a, err := board.ParseFEN("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	b, err := board.ParseFEN("rnbqkbnr/pppp1ppp/8/4p3/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	ea, eb := NewEvaluator(testNet), NewEvaluator(testNet)
	ea.Reset(a)
	eb.Reset(b)
	if va, vb := ea.Evaluate(a), eb.Evaluate(b); va != vb {
		t.Errorf("mirrored positions evaluate to %d and %d", va, vb)
	}
}

func TestEvaluateClamped(t *testing.T) {
	pos := board.NewPosition()
	ev := NewEvaluator(testNet)
	ev.Reset(pos)
	if v := ev.Evaluate(pos); v > MaxEval || v < -MaxEval {
		t.Errorf("eval %d outside +-%d", v, MaxEval)
	}
}

func TestKingBuckets(t *testing.T) {
	tests := []struct {
		persp board.Color
		sq    board.Square
		want  int
	}{
		{board.White, board.C1, 0},
		{board.White, board.G1, 1},
		{board.White, board.E2, 2},
		{board.White, board.E4, 3},
		{board.Black, board.C8, 0},
		{board.Black, board.G8, 1},
		{board.Black, board.D6, 2},
		{board.Black, board.A1, 3},
	}
	for _, tc := range tests {
		if got := KingBucket(tc.persp, tc.sq); got != tc.want {
			t.Errorf("KingBucket(%v, %v) = %d, want %d", tc.persp, tc.sq, got, tc.want)
		}
	}
}

func TestReadRejectsWrongSize(t *testing.T) {
	for _, size := range []int{0, FileSize - 2, FileSize + 2} {
		_, err := Read(bytes.NewReader(make([]byte, size)))
		if !errors.Is(err, ErrSize) {
			t.Errorf("size %d: err = %v, want ErrSize", size, err)
		}
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.bin")
	if err := testNet.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	pos, err := board.ParseFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	a, b := NewEvaluator(testNet), NewEvaluator(loaded)
	a.Reset(pos)
	b.Reset(pos)
	if va, vb := a.Evaluate(pos), b.Evaluate(pos); va != vb {
		t.Errorf("loaded network evaluates %d, original %d", vb, va)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Errorf("Load of a missing file succeeded")
	}
}
