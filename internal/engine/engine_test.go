package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/nnue"
)

func TestParallelSearchReuse(t *testing.T) {
	eng := NewEngine(Options{HashMB: 8, Threads: 4})
	defer eng.Close()

	pos := board.NewPosition()
	for i := 0; i < 3; i++ {
		res := eng.Search(pos, nil, Limits{Depth: 6})
		if !isLegal(pos, res.Move) {
			t.Fatalf("search %d: illegal best move %v", i, res.Move)
		}
		if res.Depth < 6 {
			t.Errorf("search %d: depth %d, want 6", i, res.Depth)
		}
	}

	if err := eng.SetThreads(2); err != nil {
		t.Fatalf("SetThreads: %v", err)
	}
	res := eng.Search(pos, nil, Limits{Depth: 4})
	if !isLegal(pos, res.Move) {
		t.Errorf("illegal best move %v after resize", res.Move)
	}
	if got := eng.Options().Threads; got != 2 {
		t.Errorf("Threads = %d, want 2", got)
	}
}

func TestSearchWithNetwork(t *testing.T) {
	eng := NewEngine(Options{HashMB: 4, Threads: 2})
	defer eng.Close()
	eng.SetNetwork(nnue.RandomNetwork(7))

	pos := mustParse(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	res := eng.Search(pos, nil, Limits{Depth: 5})
	if !isLegal(pos, res.Move) {
		t.Fatalf("illegal best move %v", res.Move)
	}
	if v := eng.Evaluate(pos); IsMateScore(v) {
		t.Errorf("static eval %d in the mate range", v)
	}
}

func TestBarrierReuse(t *testing.T) {
	const parties = 5
	b := newBarrier(parties)

	var mu sync.Mutex
	phase := make([]int, parties)
	var wg sync.WaitGroup
	for i := 0; i < parties; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := 0; round < 100; round++ {
				mu.Lock()
				phase[i] = round
				mu.Unlock()
				b.Wait()

				mu.Lock()
				for j, p := range phase {
					if p < round {
						t.Errorf("party %d passed round %d while party %d was at %d", i, round, j, p)
					}
				}
				mu.Unlock()
				b.Wait()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("barrier deadlocked")
	}
}

func TestStatGravityBounds(t *testing.T) {
	var s Stat
	for i := 0; i < 1000; i++ {
		s.Update(statBonus(20))
		if s > historyMax {
			t.Fatalf("stat %d above %d", s, historyMax)
		}
	}
	if s < historyMax*9/10 {
		t.Errorf("stat %d did not saturate", s)
	}
	for i := 0; i < 1000; i++ {
		s.Update(-statMalus(20))
		if s < -historyMax {
			t.Fatalf("stat %d below %d", s, -historyMax)
		}
	}
	s.Update(1 << 20)
	if s > historyMax {
		t.Errorf("oversized bonus pushed stat to %d", s)
	}
}

func TestMovePickerYieldsEachMoveOnce(t *testing.T) {
	fens := []string{
		board.StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	}
	hist := newHistories()
	cont := [4]*PieceToHistory{&hist.sentinel, &hist.sentinel, &hist.sentinel, &hist.sentinel}

	for _, fen := range fens {
		pos := mustParse(t, fen)
		var legal board.MoveList
		pos.GenerateLegal(&legal)
		ttMove := legal.Get(legal.Len() - 1)

		var mp MovePicker
		mp.init(pos, hist, cont, ttMove, board.NoMove, false)
		seen := map[board.Move]bool{}
		first := true
		for m := mp.Next(); m != board.NoMove; m = mp.Next() {
			if first && m != ttMove {
				t.Errorf("%s: first move %v, want tt move %v", fen, m, ttMove)
			}
			first = false
			if seen[m] {
				t.Errorf("%s: %v yielded twice", fen, m)
			}
			seen[m] = true
		}
		if len(seen) != legal.Len() {
			t.Errorf("%s: yielded %d moves, want %d", fen, len(seen), legal.Len())
		}
	}
}

func TestMovePickerQuietChecks(t *testing.T) {
	pos := mustParse(t, "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	mate := board.NewMove(board.A1, board.A8)
	hist := newHistories()
	cont := [4]*PieceToHistory{&hist.sentinel, &hist.sentinel, &hist.sentinel, &hist.sentinel}

	var mp MovePicker
	mp.init(pos, hist, cont, board.NoMove, board.NoMove, false)
	if m := mp.Next(); m != mate {
		t.Errorf("first move %v, want the checking move %v", m, mate)
	}

	// With quiets skipped only the check is left.
	mp.init(pos, hist, cont, board.NoMove, board.NoMove, false)
	mp.skipQuiets = true
	var got []board.Move
	for m := mp.Next(); m != board.NoMove; m = mp.Next() {
		got = append(got, m)
	}
	if len(got) != 1 || got[0] != mate {
		t.Errorf("skipping quiets yielded %v, want [%v]", got, mate)
	}
}

func TestMovePickerRejectsIllegalTTMove(t *testing.T) {
	pos := board.NewPosition()
	hist := newHistories()
	cont := [4]*PieceToHistory{&hist.sentinel, &hist.sentinel, &hist.sentinel, &hist.sentinel}

	var mp MovePicker
	mp.init(pos, hist, cont, board.NewMove(board.E2, board.E5), board.NoMove, false)
	n := 0
	for m := mp.Next(); m != board.NoMove; m = mp.Next() {
		if m == board.NewMove(board.E2, board.E5) {
			t.Fatalf("illegal tt move yielded")
		}
		n++
	}
	if n != 20 {
		t.Errorf("yielded %d moves, want 20", n)
	}
}

func TestPawnHashTable(t *testing.T) {
	pt := NewPawnTable(1)

	pos := board.NewPosition()
	if pt.Probe(pos.PawnKey) != nil {
		t.Fatalf("hit in an empty table")
	}

	pt.Store(pos.PawnKey, -15, -20, board.SquareBB(board.E4))
	e := pt.Probe(pos.PawnKey)
	if e == nil {
		t.Fatalf("miss after store")
	}
	if e.MgScore != -15 || e.EgScore != -20 || e.Passed != board.SquareBB(board.E4) {
		t.Errorf("entry = %+v", *e)
	}

	oldKey := pos.PawnKey
	m := board.NewMove(board.E2, board.E4)
	undo := pos.MakeMove(m)
	if pos.PawnKey == oldKey {
		t.Errorf("pawn key unchanged by a pawn move")
	}
	pos.UnmakeMove(m, undo)
	if pos.PawnKey != oldKey {
		t.Errorf("pawn key not restored on unmake")
	}

	pt.Clear()
	if pt.Probe(oldKey) != nil {
		t.Errorf("hit after Clear")
	}
}

func TestClassicalEvalSymmetric(t *testing.T) {
	pairs := [][2]string{
		{board.StartFEN, board.StartFEN},
		{
			"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
			"rnbqkbnr/pppp1ppp/8/4p3/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		},
		{
			"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
			"r3k2r/pppbbppp/2n2q1P/1P2p3/3pn3/BN2PNP1/P1PPQPB1/R3K2R b KQkq - 0 1",
		},
		{"8/5k2/8/3P4/8/8/2K5/8 w - - 0 1", "8/2k5/8/8/3p4/8/5K2/8 b - - 0 1"},
	}
	for _, p := range pairs {
		a, b := mustParse(t, p[0]), mustParse(t, p[1])
		va, vb := Evaluate(a, nil), Evaluate(b, NewPawnTable(1))
		if va != vb {
			t.Errorf("eval(%s) = %d, mirrored %d", p[0], va, vb)
		}
	}
}

func TestClassicalEvalMaterial(t *testing.T) {
	up := mustParse(t, "4k3/8/8/8/8/8/8/3QK3 w - - 0 1")
	if v := Evaluate(up, nil); v < 700 {
		t.Errorf("queen up scores %d", v)
	}
	up.SideToMove = board.Black
	if v := Evaluate(up, nil); v > -700 {
		t.Errorf("queen down scores %d", v)
	}
}

func TestTimeManager(t *testing.T) {
	tm := NewTimeManager()

	tm.Init(Limits{MoveTime: time.Second}, board.White, 0, 50*time.Millisecond)
	if tm.OptimumTime() != 950*time.Millisecond || tm.MaximumTime() != 950*time.Millisecond {
		t.Errorf("movetime: optimum %v maximum %v", tm.OptimumTime(), tm.MaximumTime())
	}

	tm.Init(Limits{Infinite: true}, board.White, 0, 0)
	if tm.MaximumTime() < time.Hour {
		t.Errorf("infinite maximum %v", tm.MaximumTime())
	}

	tests := []struct {
		name   string
		limits Limits
		us     board.Color
	}{
		{"sudden death", Limits{Time: [2]time.Duration{60 * time.Second, 60 * time.Second}}, board.White},
		{"increment", Limits{Time: [2]time.Duration{10 * time.Second, 3 * time.Second}, Inc: [2]time.Duration{0, 2 * time.Second}}, board.Black},
		{"moves to go", Limits{Time: [2]time.Duration{30 * time.Second, 30 * time.Second}, MovesToGo: 5}, board.White},
		{"low time", Limits{Time: [2]time.Duration{200 * time.Millisecond, time.Minute}}, board.White},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tm.Init(tc.limits, tc.us, 40, 10*time.Millisecond)
			opt, maxT := tm.OptimumTime(), tm.MaximumTime()
			if opt <= 0 || opt > maxT {
				t.Fatalf("optimum %v maximum %v", opt, maxT)
			}
			if maxT >= tc.limits.Time[tc.us] {
				t.Errorf("maximum %v uses the whole clock %v", maxT, tc.limits.Time[tc.us])
			}

			tm.AdjustForStability(0, 5)
			if tm.OptimumTime() > maxT {
				t.Errorf("unstable optimum %v above maximum %v", tm.OptimumTime(), maxT)
			}
			tm.AdjustForStability(8, 0)
			if tm.OptimumTime() >= opt {
				t.Errorf("stable optimum %v not below base %v", tm.OptimumTime(), opt)
			}
			tm.AdjustForStability(0, 0)
			if tm.OptimumTime() != opt {
				t.Errorf("adjustments compound: %v, want %v", tm.OptimumTime(), opt)
			}
		})
	}
}

func TestTimeManagerBestMoveChanges(t *testing.T) {
	a, b := board.NewMove(board.E2, board.E4), board.NewMove(board.D2, board.D4)
	tests := []struct {
		recent []board.Move
		want   int
	}{
		{nil, 0},
		{[]board.Move{a}, 0},
		{[]board.Move{a, a, a, a, a}, 0},
		{[]board.Move{a, b, b, a, a}, 2},
		{[]board.Move{a, b, a, b, a}, stabilityWindow - 1},
	}
	for _, tc := range tests {
		if got := bestMoveChanges(tc.recent); got != tc.want {
			t.Errorf("bestMoveChanges(%v) = %d, want %d", tc.recent, got, tc.want)
		}
	}

	tm := NewTimeManager()
	tm.Init(Limits{Time: [2]time.Duration{time.Minute, time.Minute}}, board.White, 40, 10*time.Millisecond)
	base := tm.OptimumTime()
	tm.AdjustForStability(0, 3)
	if got := tm.OptimumTime(); got != base*150/100 {
		t.Errorf("3 changes: optimum %v, want %v", got, base*150/100)
	}
	tm.AdjustForStability(0, bestMoveChanges([]board.Move{a, b, a, b, a}))
	if got := tm.OptimumTime(); got != base*2 {
		t.Errorf("4 changes: optimum %v, want %v", got, base*2)
	}
}

func TestTimeManagerMissingOwnClock(t *testing.T) {
	tm := NewTimeManager()
	tm.Init(Limits{Time: [2]time.Duration{0, time.Minute}}, board.White, 10, 0)
	if tm.MaximumTime() != noClockTime || tm.OptimumTime() != noClockTime {
		t.Errorf("optimum %v maximum %v, want %v", tm.OptimumTime(), tm.MaximumTime(), noClockTime)
	}

	tm.Init(Limits{Depth: 5}, board.White, 10, 0)
	if tm.MaximumTime() < time.Hour {
		t.Errorf("depth-only search limited to %v", tm.MaximumTime())
	}
}

func TestPerft(t *testing.T) {
	pos := board.NewPosition()
	if got := Perft(pos, 3); got != 8902 {
		t.Errorf("Perft(3) = %d, want 8902", got)
	}
	var sum uint64
	for _, n := range Divide(pos, 3) {
		sum += n
	}
	if sum != 8902 {
		t.Errorf("Divide(3) sums to %d", sum)
	}
}

func TestScoreString(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, "cp 0"},
		{-35, "cp -35"},
		{MateIn(1), "mate 1"},
		{MateIn(4), "mate 2"},
		{MatedIn(2), "mate -1"},
		{MatedIn(5), "mate -2"},
	}
	for _, tc := range tests {
		if got := ScoreString(tc.score); got != tc.want {
			t.Errorf("ScoreString(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}
