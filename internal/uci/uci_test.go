package uci

import (
	"bufio"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/storage"
)

// session drives a UCI loop over pipes.
type session struct {
	t     *testing.T
	in    *io.PipeWriter
	lines chan string
	done  chan error
}

func newSession(t *testing.T, store *storage.Storage) *session {
	t.Helper()
	eng := engine.NewEngine(engine.Options{HashMB: 4, Threads: 1})
	t.Cleanup(func() { _ = eng.Close() })

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	s := &session{t: t, in: inW, lines: make(chan string, 1024), done: make(chan error, 1)}

	u := New(eng, store, outW)
	go func() {
		err := u.Run(inR)
		outW.Close()
		s.done <- err
	}()
	go func() {
		sc := bufio.NewScanner(outR)
		for sc.Scan() {
			s.lines <- sc.Text()
		}
		close(s.lines)
	}()
	return s
}

func (s *session) send(cmd string) {
	s.t.Helper()
	if _, err := io.WriteString(s.in, cmd+"\n"); err != nil {
		s.t.Fatalf("write %q: %v", cmd, err)
	}
}

// until collects output lines up to and including the first line with prefix.
func (s *session) until(prefix string) []string {
	s.t.Helper()
	var got []string
	timeout := time.After(20 * time.Second)
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				s.t.Fatalf("output closed waiting for %q; got %q", prefix, got)
			}
			got = append(got, line)
			if strings.HasPrefix(line, prefix) {
				return got
			}
		case <-timeout:
			s.t.Fatalf("timed out waiting for %q; got %q", prefix, got)
		}
	}
}

func (s *session) quit() {
	s.t.Helper()
	s.send("quit")
	select {
	case err := <-s.done:
		if err != nil {
			s.t.Errorf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		s.t.Fatalf("Run did not return after quit")
	}
}

func TestTranscript(t *testing.T) {
	s := newSession(t, nil)

	s.send("uci")
	lines := s.until("uciok")
	for _, want := range []string{"id name chesscore", "option name Hash type spin default 4", "option name Threads", "option name Move Overhead", "option name EvalFile", "option name Clear Hash type button"} {
		found := false
		for _, l := range lines {
			if strings.HasPrefix(l, want) {
				found = true
			}
		}
		if !found {
			t.Errorf("uci output lacks %q: %q", want, lines)
		}
	}

	s.send("isready")
	s.until("readyok")

	s.send("position startpos moves e2e4 e7e5")
	s.send("go depth 4")
	lines = s.until("bestmove")

	infos := 0
	for _, l := range lines {
		if !strings.HasPrefix(l, "info depth") {
			continue
		}
		infos++
		for _, field := range []string{" seldepth ", " multipv 1 ", " score ", " nodes ", " nps ", " hashfull ", " time ", " pv "} {
			if !strings.Contains(l, field) {
				t.Errorf("info line lacks %q: %s", field, l)
			}
		}
	}
	if infos != 4 {
		t.Errorf("got %d info lines, want 4: %q", infos, lines)
	}

	pos := board.NewPosition()
	for _, mv := range []string{"e2e4", "e7e5"} {
		m, _ := pos.ParseMove(mv)
		pos.MakeMove(m)
	}
	best := strings.Fields(lines[len(lines)-1])
	if len(best) != 2 {
		t.Fatalf("malformed bestmove line %q", lines[len(lines)-1])
	}
	if _, err := pos.ParseMove(best[1]); err != nil {
		t.Errorf("bestmove %s is not legal: %v", best[1], err)
	}

	s.send("isready")
	s.until("readyok")
	s.quit()
}

func TestStopGivesOneBestmove(t *testing.T) {
	s := newSession(t, nil)

	s.send("position fen r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	s.send("go infinite")
	time.Sleep(100 * time.Millisecond)
	s.send("stop")
	s.until("bestmove")

	s.send("isready")
	lines := s.until("readyok")
	for _, l := range lines {
		if strings.HasPrefix(l, "bestmove") {
			t.Errorf("second bestmove after stop: %q", lines)
		}
	}
	s.quit()
}

func TestPositionIgnoredWhileSearching(t *testing.T) {
	s := newSession(t, nil)
	s.send("go infinite")
	s.send("position startpos moves e2e4")
	s.until("info string position: ignored while searching")
	s.send("stop")
	s.until("bestmove")

	s.send("d")
	lines := s.until("Fen:")
	if got := lines[len(lines)-1]; got != "Fen: "+board.StartFEN {
		t.Errorf("position changed during search: %q", got)
	}
	s.quit()
}

func TestQuitDuringSearchPrintsBestmove(t *testing.T) {
	s := newSession(t, nil)
	s.send("go infinite")
	time.Sleep(50 * time.Millisecond)
	s.send("quit")
	s.until("bestmove")
	if err := <-s.done; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestMalformedInputIgnored(t *testing.T) {
	s := newSession(t, nil)

	s.send("position startpos moves e2e4")
	s.send("position fen not/a/fen w - - 0 1")
	s.until("info string invalid fen")
	s.send("position startpos moves e2e5")
	s.until("info string invalid move")
	s.send("frobnicate")
	s.until("info string unknown command")
	s.send("setoption name Hash value lots")
	s.until("info string invalid value")

	// The position from the last valid command is still current.
	s.send("d")
	lines := s.until("Fen:")
	want := "Fen: rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
	if got := lines[len(lines)-1]; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	s.quit()
}

func TestPerftCommand(t *testing.T) {
	s := newSession(t, nil)
	s.send("perft 3")
	lines := s.until("Nodes searched")
	if got := lines[len(lines)-1]; got != "Nodes searched: 8902" {
		t.Errorf("got %q", got)
	}
	if moves := len(lines) - 2; moves != 20 {
		t.Errorf("divide printed %d moves, want 20", moves)
	}
	s.quit()
}

func TestSetOptionPersists(t *testing.T) {
	store, err := storage.Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	s := newSession(t, store)
	s.send("setoption name Hash value 8")
	s.send("setoption name Threads value 2")
	s.send("setoption name Move Overhead value 25")
	s.send("setoption name EvalFile value /nonexistent/net.nnue")
	s.until("info string failed to load")
	s.send("isready")
	s.until("readyok")
	s.quit()

	opts, err := store.LoadOptions()
	if err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}
	if opts.Hash != 8 || opts.Threads != 2 || opts.MoveOverhead != 25 || opts.EvalFile != "" {
		t.Errorf("saved options = %+v", opts)
	}
}

func TestParseGoOptions(t *testing.T) {
	tests := []struct {
		args string
		want GoOptions
	}{
		{"depth 7", GoOptions{Depth: 7}},
		{"wtime 1000 btime 2000 winc 10 binc 20 movestogo 5", GoOptions{
			WTime: time.Second, BTime: 2 * time.Second, WInc: 10 * time.Millisecond, BInc: 20 * time.Millisecond, MovesToGo: 5,
		}},
		{"movetime 250 nodes 1000", GoOptions{MoveTime: 250 * time.Millisecond, Nodes: 1000}},
		{"infinite", GoOptions{Infinite: true}},
		{"depth x nodes -5 wtime -100", GoOptions{}},
		{"depth", GoOptions{}},
	}
	for _, tc := range tests {
		if got := parseGoOptions(strings.Fields(tc.args)); got != tc.want {
			t.Errorf("parseGoOptions(%q) = %+v, want %+v", tc.args, got, tc.want)
		}
	}
}

func TestParseSetOption(t *testing.T) {
	tests := []struct {
		args, name, value string
	}{
		{"name Hash value 128", "Hash", "128"},
		{"name Move Overhead value 30", "Move Overhead", "30"},
		{"name Clear Hash", "Clear Hash", ""},
		{"name EvalFile value /path/with value/in it.nnue", "EvalFile", "/path/with value/in it.nnue"},
	}
	for _, tc := range tests {
		name, value := parseSetOption(strings.Fields(tc.args))
		if name != tc.name || value != tc.value {
			t.Errorf("parseSetOption(%q) = %q, %q", tc.args, name, value)
		}
	}
}
