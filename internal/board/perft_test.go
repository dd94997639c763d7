package board

import (
	"sort"
	"strings"
	"testing"

	"github.com/dylhunn/dragontoothmg"
	"lukechampine.com/frand"
)

func perft(p *Position, depth int) int64 {
	var ml MoveList
	p.GenerateLegal(&ml)
	if depth == 1 {
		return int64(ml.Len())
	}

	var nodes int64
	for _, m := range ml.Moves() {
		undo := p.MakeMove(m)
		nodes += perft(p, depth-1)
		p.UnmakeMove(m, undo)
	}
	return nodes
}

func TestPerft(t *testing.T) {
	tests := []struct {
		name     string
		fen      string
		depth    int
		expected int64
	}{
		{"start", StartFEN, 1, 20},
		{"start", StartFEN, 2, 400},
		{"start", StartFEN, 3, 8902},
		{"start", StartFEN, 4, 197281},
		{"kiwipete", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -", 1, 48},
		{"kiwipete", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -", 2, 2039},
		{"kiwipete", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -", 3, 97862},
		{"position3", "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -", 4, 43238},
		{"position4", "r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1", 3, 9467},
		{"position5", "rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8", 3, 62379},
		{"ep pin", "8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1", 2, 94},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos, err := ParseFEN(tc.fen)
			if err != nil {
				t.Fatalf("ParseFEN: %v", err)
			}
			before := *pos
			if got := perft(pos, tc.depth); got != tc.expected {
				t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.expected)
			}
			if *pos != before {
				t.Errorf("position changed after perft")
			}
		})
	}
}

func TestEnPassantHorizontalPin(t *testing.T) {
	pos, err := ParseFEN("8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	var ml MoveList
	pos.GenerateLegal(&ml)
	for _, m := range ml.Moves() {
		if m.IsEnPassant() {
			t.Errorf("en passant %v exposes the king", m)
		}
	}
}

func sortedMoves(p *Position) []string {
	var ml MoveList
	p.GenerateLegal(&ml)
	out := make([]string, 0, ml.Len())
	for _, m := range ml.Moves() {
		out = append(out, m.String())
	}
	sort.Strings(out)
	return out
}

func oracleMoves(fen string) []string {
	b := dragontoothmg.ParseFen(fen)
	moves := b.GenerateLegalMoves()
	out := make([]string, 0, len(moves))
	for i := range moves {
		out = append(out, strings.ToLower(moves[i].String()))
	}
	sort.Strings(out)
	return out
}

// Random playouts compared move-for-move with an independent generator.
func TestLegalMovesMatchOracle(t *testing.T) {
	starts := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	}
	rng := frand.NewCustom(make([]byte, 32), 1024, 12)

	for _, fen := range starts {
		for game := 0; game < 8; game++ {
			pos, err := ParseFEN(fen)
			if err != nil {
				t.Fatalf("ParseFEN: %v", err)
			}
			for ply := 0; ply < 60; ply++ {
				cur := pos.ToFEN()
				got, want := sortedMoves(pos), oracleMoves(cur)
				if strings.Join(got, " ") != strings.Join(want, " ") {
					t.Fatalf("%s\n got  %v\n want %v", cur, got, want)
				}
				if len(got) == 0 {
					break
				}
				m, err := pos.ParseMove(got[rng.Intn(len(got))])
				if err != nil {
					t.Fatalf("ParseMove: %v", err)
				}
				pos.MakeMove(m)
				if pos.Hash != pos.ComputeHash() || pos.PawnKey != pos.ComputePawnKey() {
					t.Fatalf("incremental keys diverged after %v in %s", m, cur)
				}
			}
		}
	}
}
