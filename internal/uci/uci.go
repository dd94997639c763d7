// Package uci implements the Universal Chess Interface protocol loop.
package uci

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/storage"
)

const (
	engineName   = "chesscore"
	engineAuthor = "the chesscore authors"
)

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	engine   *engine.Engine
	store    *storage.Storage
	position *board.Position

	// Hash keys of the game positions before the current one, for
	// repetition detection.
	positionHashes []uint64

	evalFile string

	outMu sync.Mutex
	out   io.Writer

	// searchDone is closed once the running search printed its bestmove.
	searchDone chan struct{}
}

// New creates a protocol handler writing to out. store may be nil.
func New(eng *engine.Engine, store *storage.Storage, out io.Writer) *UCI {
	return &UCI{
		engine:   eng,
		store:    store,
		position: board.NewPosition(),
		out:      out,
	}
}

// SetEvalFile records the weight file already loaded by the caller, so
// the option is reported and persisted.
func (u *UCI) SetEvalFile(path string) {
	u.evalFile = path
}

func (u *UCI) send(format string, args ...any) {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	fmt.Fprintf(u.out, format+"\n", args...)
}

func (u *UCI) sendString(format string, args ...any) {
	u.send("info string "+format, args...)
}

// Run reads commands from in until "quit" or end of input. A running
// search is stopped and its bestmove printed before Run returns.
func (u *UCI) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	defer u.handleStop()

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]
		log.Debug().Str("line", line).Msg("uci-command")

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			u.send("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "quit":
			return nil
		case "setoption":
			u.handleSetOption(args)
		// Debug commands
		case "d":
			u.handleDisplay()
		case "eval":
			u.send("static eval %d (side to move)", u.engine.Evaluate(u.position))
		case "perft":
			u.handlePerft(args)
		default:
			u.sendString("unknown command: %s", cmd)
		}
	}
	return scanner.Err()
}

// handleUCI responds to the "uci" command.
func (u *UCI) handleUCI() {
	opts := u.engine.Options()
	evalFile := u.evalFile
	if evalFile == "" {
		evalFile = "<empty>"
	}

	u.send("id name %s", engineName)
	u.send("id author %s", engineAuthor)
	u.send("")
	u.send("option name Hash type spin default %d min %d max %d", opts.HashMB, engine.MinHashMB, engine.MaxHashMB)
	u.send("option name Threads type spin default %d min 1 max %d", opts.Threads, engine.MaxThreads)
	u.send("option name Move Overhead type spin default %d min 0 max %d", opts.MoveOverhead.Milliseconds(), engine.MaxOverhead.Milliseconds())
	u.send("option name EvalFile type string default %s", evalFile)
	u.send("option name Clear Hash type button")
	u.send("uciok")
}

// handleNewGame resets the engine for a new game.
func (u *UCI) handleNewGame() {
	u.handleStop()
	if err := u.engine.Clear(); err != nil {
		log.Error().Err(err).Msg("new-game-clear-failed")
		u.sendString("%v", err)
	}
	u.position = board.NewPosition()
	u.positionHashes = nil
}

// handlePosition parses and sets up a position.
// Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
//
// The current position is left unchanged when the command is malformed.
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		u.sendString("position: missing argument")
		return
	}
	if u.searching() {
		u.sendString("position: ignored while searching")
		return
	}

	movesAt := lo.IndexOf(args, "moves")
	if movesAt < 0 {
		movesAt = len(args)
	}

	var pos *board.Position
	switch args[0] {
	case "startpos":
		pos = board.NewPosition()
	case "fen":
		p, err := board.ParseFEN(strings.Join(args[1:movesAt], " "))
		if err != nil {
			u.sendString("invalid fen: %v", err)
			return
		}
		pos = p
	default:
		u.sendString("position: expected startpos or fen, got %s", args[0])
		return
	}

	var hashes []uint64
	if movesAt < len(args) {
		for _, s := range args[movesAt+1:] {
			m, err := pos.ParseMove(strings.ToLower(s))
			if err != nil {
				u.sendString("invalid move: %s", s)
				return
			}
			hashes = append(hashes, pos.Hash)
			pos.MakeMove(m)
		}
	}

	u.position = pos
	u.positionHashes = hashes
}

// GoOptions holds parsed "go" command options.
type GoOptions struct {
	Depth     int
	Nodes     uint64
	MoveTime  time.Duration
	Infinite  bool
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
}

// parseGoOptions parses "go" command arguments. Malformed values are
// skipped.
func parseGoOptions(args []string) GoOptions {
	opts := GoOptions{}

	next := func(i *int) (int64, bool) {
		if *i+1 >= len(args) {
			return 0, false
		}
		*i++
		v, err := strconv.ParseInt(args[*i], 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	ms := func(v int64) time.Duration {
		return time.Duration(max(v, 0)) * time.Millisecond
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			if v, ok := next(&i); ok && v > 0 {
				opts.Depth = int(v)
			}
		case "nodes":
			if v, ok := next(&i); ok && v > 0 {
				opts.Nodes = uint64(v)
			}
		case "movetime":
			if v, ok := next(&i); ok {
				opts.MoveTime = ms(v)
			}
		case "infinite":
			opts.Infinite = true
		case "wtime":
			if v, ok := next(&i); ok {
				opts.WTime = ms(v)
			}
		case "btime":
			if v, ok := next(&i); ok {
				opts.BTime = ms(v)
			}
		case "winc":
			if v, ok := next(&i); ok {
				opts.WInc = ms(v)
			}
		case "binc":
			if v, ok := next(&i); ok {
				opts.BInc = ms(v)
			}
		case "movestogo":
			if v, ok := next(&i); ok && v > 0 {
				opts.MovesToGo = int(v)
			}
		}
	}

	return opts
}

// Limits converts the options into engine limits.
func (o GoOptions) Limits() engine.Limits {
	return engine.Limits{
		Time:      [2]time.Duration{o.WTime, o.BTime},
		Inc:       [2]time.Duration{o.WInc, o.BInc},
		MovesToGo: o.MovesToGo,
		MoveTime:  o.MoveTime,
		Depth:     o.Depth,
		Nodes:     o.Nodes,
		Infinite:  o.Infinite,
	}
}

// searching reports whether a search runs or its bestmove is still pending.
func (u *UCI) searching() bool {
	if u.engine.Searching() {
		return true
	}
	if u.searchDone == nil {
		return false
	}
	select {
	case <-u.searchDone:
		return false
	default:
		return true
	}
}

// handleGo starts a search with the given parameters. The bestmove line
// is printed when it ends.
func (u *UCI) handleGo(args []string) {
	if u.searching() {
		u.sendString("go: already searching")
		return
	}

	limits := parseGoOptions(args).Limits()
	root := u.position.Copy()
	u.engine.OnInfo = func(info engine.Info) {
		u.sendInfo(root, info)
	}

	results := u.engine.Start(u.position, u.positionHashes, limits)
	done := make(chan struct{})
	u.searchDone = done

	go func() {
		defer close(done)
		res := <-results
		move := res.Move
		if move != board.NoMove && !isLegal(root, move) {
			log.Error().Str("move", move.String()).Str("fen", root.ToFEN()).Msg("illegal-bestmove")
			move = board.NoMove
		}
		if move == board.NoMove {
			var ml board.MoveList
			root.GenerateLegal(&ml)
			if ml.Len() > 0 {
				move = ml.Get(0)
			}
		}
		u.send("bestmove %s", move)
	}()
}

func isLegal(pos *board.Position, m board.Move) bool {
	var ml board.MoveList
	pos.GenerateLegal(&ml)
	return ml.Contains(m)
}

// sendInfo outputs search info in UCI format.
func (u *UCI) sendInfo(root *board.Position, info engine.Info) {
	parts := []string{
		fmt.Sprintf("depth %d", info.Depth),
		fmt.Sprintf("seldepth %d", info.SelDepth),
		"multipv 1",
		"score " + engine.ScoreString(info.Score),
		fmt.Sprintf("nodes %d", info.Nodes),
		fmt.Sprintf("nps %d", info.NPS),
		fmt.Sprintf("hashfull %d", info.HashFull),
		fmt.Sprintf("time %d", info.Time.Milliseconds()),
	}

	// PV - stop at the first move that is not legal in the line
	if len(info.PV) > 0 {
		pos := root.Copy()
		pv := make([]string, 0, len(info.PV))
		for _, m := range info.PV {
			if !isLegal(pos, m) {
				break
			}
			pv = append(pv, m.String())
			pos.MakeMove(m)
		}
		if len(pv) > 0 {
			parts = append(parts, "pv "+strings.Join(pv, " "))
		}
	}

	u.send("info %s", strings.Join(parts, " "))
}

// handleStop stops the current search and waits for its bestmove.
func (u *UCI) handleStop() {
	if u.searchDone == nil {
		return
	}
	u.engine.Stop()
	<-u.searchDone
}

// parseSetOption splits "name <name> value <value>"; both may contain spaces.
func parseSetOption(args []string) (name, value string) {
	var nameParts, valueParts []string
	readingName, readingValue := false, false

	for _, arg := range args {
		switch {
		case arg == "name" && !readingValue:
			readingName = true
		case arg == "value" && readingName:
			readingName, readingValue = false, true
		case readingName:
			nameParts = append(nameParts, arg)
		case readingValue:
			valueParts = append(valueParts, arg)
		}
	}
	return strings.Join(nameParts, " "), strings.Join(valueParts, " ")
}

// handleSetOption processes "setoption" commands.
func (u *UCI) handleSetOption(args []string) {
	name, value := parseSetOption(args)
	if u.searching() {
		u.sendString("setoption: ignored while searching")
		return
	}

	spin := func(low, high int) (int, bool) {
		n, err := strconv.Atoi(value)
		if err != nil || n < low || n > high {
			u.sendString("invalid value for %s: %q", name, value)
			return 0, false
		}
		return n, true
	}

	switch strings.ToLower(name) {
	case "hash":
		n, ok := spin(engine.MinHashMB, engine.MaxHashMB)
		if !ok {
			return
		}
		u.engine.SetHash(n)
	case "threads":
		n, ok := spin(1, engine.MaxThreads)
		if !ok {
			return
		}
		if err := u.engine.SetThreads(n); err != nil {
			u.sendString("failed to set threads: %v", err)
			return
		}
	case "move overhead":
		n, ok := spin(0, int(engine.MaxOverhead.Milliseconds()))
		if !ok {
			return
		}
		u.engine.SetMoveOverhead(time.Duration(n) * time.Millisecond)
	case "evalfile":
		if value == "" || value == "<empty>" {
			u.engine.SetNetwork(nil)
			u.evalFile = ""
			u.sendString("using classical evaluation")
			break
		}
		if err := u.engine.LoadNetwork(value); err != nil {
			log.Error().Err(err).Str("file", value).Msg("evalfile-load-failed")
			u.sendString("failed to load %s: %v", value, err)
			return
		}
		u.evalFile = value
		u.sendString("network loaded from %s", value)
	case "clear hash":
		if err := u.engine.Clear(); err != nil {
			log.Error().Err(err).Msg("clear-hash-failed")
			u.sendString("%v", err)
		}
		return
	default:
		u.sendString("unknown option: %s", name)
		return
	}
	u.saveOptions()
}

// saveOptions persists the current options when a store is attached.
func (u *UCI) saveOptions() {
	if u.store == nil {
		return
	}
	opts := u.engine.Options()
	err := u.store.SaveOptions(&storage.EngineOptions{
		Hash:         opts.HashMB,
		Threads:      opts.Threads,
		MoveOverhead: int(opts.MoveOverhead.Milliseconds()),
		EvalFile:     u.evalFile,
	})
	if err != nil {
		log.Warn().Err(err).Msg("options-save-failed")
	}
}

// handleDisplay prints the board, its FEN and key.
func (u *UCI) handleDisplay() {
	u.send("%s", u.position.String())
	u.send("Fen: %s", u.position.ToFEN())
	u.send("Key: %016X", u.position.Hash)
	if u.position.Checkers != 0 {
		checkers := u.position.Checkers
		var squares []string
		for checkers != 0 {
			squares = append(squares, checkers.PopLSB().String())
		}
		u.send("Checkers: %s", strings.Join(squares, " "))
	}
}

// handlePerft runs a perft test with a per-move breakdown.
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		d, err := strconv.Atoi(args[0])
		if err != nil || d < 1 {
			u.sendString("perft: invalid depth %q", args[0])
			return
		}
		depth = d
	}

	start := time.Now()
	divide := engine.Divide(u.position.Copy(), depth)
	elapsed := time.Since(start)

	moves := lo.Keys(divide)
	sort.Slice(moves, func(i, j int) bool { return moves[i].String() < moves[j].String() })
	var nodes uint64
	for _, m := range moves {
		u.send("%s: %d", m, divide[m])
		nodes += divide[m]
	}
	u.send("")
	u.send("Nodes searched: %d", nodes)
	log.Debug().Int("depth", depth).Uint64("nodes", nodes).Dur("elapsed", elapsed).Msg("perft")
}
