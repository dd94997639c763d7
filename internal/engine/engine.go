package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/nnue"
)

// Option ranges
const (
	DefaultHashMB = 64
	MinHashMB     = 1
	MaxHashMB     = 65536
	MaxThreads    = 256
	MaxOverhead   = 5000 * time.Millisecond
)

// Options configures a new engine.
type Options struct {
	HashMB       int
	Threads      int
	MoveOverhead time.Duration
}

// AnalysisStore remembers search results across sessions. A stored move
// for the root is used to order the first iteration.
type AnalysisStore interface {
	Lookup(pos *board.Position) (board.Move, bool)
	Record(pos *board.Position, res Result) error
}

// Engine is the entry point of the search: it owns the transposition
// table, the network and the thread pool.
type Engine struct {
	mu    sync.Mutex
	tt    *TranspositionTable
	net   *nnue.Network
	pool  *ThreadPool
	opts  Options
	store AnalysisStore

	// done is closed when the running search has been collected.
	done chan struct{}

	// Callbacks
	OnInfo func(Info)
}

// NewEngine creates an engine with idle workers.
func NewEngine(opts Options) *Engine {
	if opts.HashMB <= 0 {
		opts.HashMB = DefaultHashMB
	}
	opts.HashMB = lo.Clamp(opts.HashMB, MinHashMB, MaxHashMB)
	opts.Threads = lo.Clamp(opts.Threads, 1, MaxThreads)
	opts.MoveOverhead = lo.Clamp(opts.MoveOverhead, 0, MaxOverhead)

	tt := NewTranspositionTable(opts.HashMB)
	e := &Engine{
		tt:   tt,
		opts: opts,
		pool: NewThreadPool(opts.Threads, tt, nil),
	}
	e.pool.overhead = opts.MoveOverhead
	return e
}

// Options returns the current configuration.
func (e *Engine) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// SetAnalysisStore installs the store consulted before and updated after
// each search. nil disables it.
func (e *Engine) SetAnalysisStore(s AnalysisStore) {
	e.waitIdle()
	e.mu.Lock()
	e.store = s
	e.mu.Unlock()
}

// Start launches a search of pos and returns a channel that receives the
// result once all workers are idle. history holds the hash keys of the game
// positions before pos, oldest first.
func (e *Engine) Start(pos *board.Position, history []uint64, limits Limits) <-chan Result {
	e.waitIdle()
	e.mu.Lock()
	defer e.mu.Unlock()

	hint := board.NoMove
	if e.store != nil {
		if m, ok := e.store.Lookup(pos); ok {
			hint = m
		}
	}

	done := make(chan struct{})
	out := make(chan Result, 1)
	e.done = done
	e.pool.onInfo = e.OnInfo
	e.pool.StartThinking(pos, history, limits, hint)

	root := pos.Copy()
	pool, store := e.pool, e.store
	go func() {
		defer close(done)
		pool.Wait()
		res := pool.result()
		if store != nil && res.Depth > 0 {
			if err := store.Record(root, res); err != nil {
				log.Error().Err(err).Str("fen", root.ToFEN()).Msg("analysis-record-failed")
			}
		}
		log.Debug().
			Str("move", res.Move.String()).
			Int("score", res.Score).
			Int("depth", res.Depth).
			Uint64("nodes", res.Nodes).
			Msg("search-finished")
		out <- res
	}()
	return out
}

// Search runs a search to completion.
func (e *Engine) Search(pos *board.Position, history []uint64, limits Limits) Result {
	return <-e.Start(pos, history, limits)
}

// Stop signals the running search to stop. The result is still delivered
// on the channel returned by Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	pool := e.pool
	e.mu.Unlock()
	pool.Stop()
}

// Searching reports whether a search is in progress.
func (e *Engine) Searching() bool {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (e *Engine) waitIdle() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Clear resets the transposition table and every history table.
func (e *Engine) Clear() error {
	e.waitIdle()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.tt.Clear(e.pool.Size()); err != nil {
		return fmt.Errorf("failed to clear hash: %w", err)
	}
	e.pool.ClearHistories()
	return nil
}

// SetHash resizes the transposition table, dropping its contents.
func (e *Engine) SetHash(mb int) {
	e.waitIdle()
	e.mu.Lock()
	defer e.mu.Unlock()
	mb = lo.Clamp(mb, MinHashMB, MaxHashMB)
	e.tt.Resize(mb)
	e.opts.HashMB = mb
	log.Info().Int("mb", mb).Int("entries", e.tt.Size()).Msg("hash-resized")
}

// SetThreads replaces the worker pool. Histories start empty.
func (e *Engine) SetThreads(n int) error {
	e.waitIdle()
	e.mu.Lock()
	defer e.mu.Unlock()
	n = lo.Clamp(n, 1, MaxThreads)
	if n == e.pool.Size() {
		return nil
	}
	if err := e.pool.Close(); err != nil {
		return fmt.Errorf("failed to stop workers: %w", err)
	}
	e.pool = NewThreadPool(n, e.tt, e.net)
	e.pool.overhead = e.opts.MoveOverhead
	e.opts.Threads = n
	log.Info().Int("threads", n).Msg("pool-resized")
	return nil
}

// SetMoveOverhead sets the time reserved per move for communication lag.
func (e *Engine) SetMoveOverhead(d time.Duration) {
	e.waitIdle()
	e.mu.Lock()
	defer e.mu.Unlock()
	d = lo.Clamp(d, 0, MaxOverhead)
	e.opts.MoveOverhead = d
	e.pool.overhead = d
}

// LoadNetwork reads a weight file and evaluates with it from the next search.
// On error the current evaluator is kept.
func (e *Engine) LoadNetwork(filename string) error {
	net, err := nnue.Load(filename)
	if err != nil {
		return fmt.Errorf("failed to load network: %w", err)
	}
	e.SetNetwork(net)
	log.Info().Str("file", filename).Msg("network-loaded")
	return nil
}

// SetNetwork installs net, or the classical evaluation when nil.
func (e *Engine) SetNetwork(net *nnue.Network) {
	e.waitIdle()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.net = net
	e.pool.SetNetwork(net)
}

// Evaluate returns the static evaluation of pos from the side to move.
func (e *Engine) Evaluate(pos *board.Position) int {
	e.mu.Lock()
	net := e.net
	e.mu.Unlock()
	if net != nil {
		ev := nnue.NewEvaluator(net)
		ev.Reset(pos)
		return clampEval(ev.Evaluate(pos))
	}
	return clampEval(Evaluate(pos, nil))
}

// Close stops the workers. The engine must not be used afterwards.
func (e *Engine) Close() error {
	e.Stop()
	e.waitIdle()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Close()
}

// Perft counts the leaf nodes of the legal move tree to depth.
func Perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	var ml board.MoveList
	pos.GenerateLegal(&ml)
	if depth == 1 {
		return uint64(ml.Len())
	}

	var nodes uint64
	for _, m := range ml.Moves() {
		undo := pos.MakeMove(m)
		nodes += Perft(pos, depth-1)
		pos.UnmakeMove(m, undo)
	}
	return nodes
}

// Divide returns the perft count below each root move.
func Divide(pos *board.Position, depth int) map[board.Move]uint64 {
	var ml board.MoveList
	pos.GenerateLegal(&ml)
	out := make(map[board.Move]uint64, ml.Len())
	for _, m := range ml.Moves() {
		undo := pos.MakeMove(m)
		out[m] = Perft(pos, depth-1)
		pos.UnmakeMove(m, undo)
	}
	return out
}

// ScoreString formats a score the way the UCI protocol expects.
func ScoreString(score int) string {
	if IsMateScore(score) {
		return fmt.Sprintf("mate %d", MateMoves(score))
	}
	return fmt.Sprintf("cp %d", score)
}
