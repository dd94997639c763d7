package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/nnue"
)

// barrier is a reusable rendezvous for a fixed number of parties.
type barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	waiting int
	gen     uint64
}

func newBarrier(parties int) *barrier {
	b := &barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all parties have called Wait for the current generation.
func (b *barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.gen
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.gen++
		b.cond.Broadcast()
		return
	}
	for gen == b.gen {
		b.cond.Wait()
	}
}

// SharedState is everything the workers of one pool share.
type SharedState struct {
	TT  *TranspositionTable
	Net *nnue.Network

	stop     atomic.Bool
	started  *barrier
	finished *barrier
	quit     bool
}

// Info is the progress report published after each completed depth.
type Info struct {
	Depth    int
	SelDepth int
	Score    int
	Nodes    uint64
	NPS      uint64
	HashFull int
	Time     time.Duration
	PV       []board.Move
}

// Result is the outcome of a search.
type Result struct {
	Move  board.Move
	Score int
	Depth int
	Nodes uint64
	PV    []board.Move
}

// ThreadPool owns the workers of a lazy SMP search. Workers sit between two
// barriers while idle and run iterative deepening once released.
type ThreadPool struct {
	shared  *SharedState
	workers []*Worker
	group   errgroup.Group

	tm       *TimeManager
	limits   Limits
	overhead time.Duration
	onInfo   func(Info)
}

// NewThreadPool starts n idle workers sharing tt and net.
func NewThreadPool(n int, tt *TranspositionTable, net *nnue.Network) *ThreadPool {
	n = max(n, 1)
	p := &ThreadPool{
		shared: &SharedState{
			TT:       tt,
			Net:      net,
			started:  newBarrier(n + 1),
			finished: newBarrier(n + 1),
		},
		tm: NewTimeManager(),
	}
	p.workers = make([]*Worker, n)
	for i := range p.workers {
		p.workers[i] = newWorker(i, p)
	}
	for _, w := range p.workers {
		w := w
		p.group.Go(func() error {
			w.idleLoop()
			return nil
		})
	}
	// Let the workers pass their first finished barrier.
	p.shared.finished.Wait()

	log.Debug().Int("threads", n).Msg("pool-started")
	return p
}

func (w *Worker) idleLoop() {
	for {
		w.shared.finished.Wait()
		w.shared.started.Wait()
		if w.shared.quit {
			return
		}
		w.iterativeDeepening()
	}
}

// Size returns the number of workers.
func (p *ThreadPool) Size() int {
	return len(p.workers)
}

// SetNetwork changes the evaluator used by the next search.
func (p *ThreadPool) SetNetwork(net *nnue.Network) {
	p.shared.Net = net
}

// StartThinking primes every worker with the root and releases them.
// The pool must be idle.
func (p *ThreadPool) StartThinking(pos *board.Position, history []uint64, limits Limits, hint board.Move) {
	p.limits = limits
	p.shared.stop.Store(false)
	p.shared.TT.NewSearch()
	p.tm.Init(limits, pos.SideToMove, len(history), p.overhead)

	for _, w := range p.workers {
		w.prime(pos, history, limits, hint)
	}
	p.shared.started.Wait()
}

// Wait blocks until every worker has finished the current search.
func (p *ThreadPool) Wait() {
	p.shared.finished.Wait()
}

// Stop asks the workers to unwind.
func (p *ThreadPool) Stop() {
	p.shared.stop.Store(true)
}

// Close stops the workers and waits for their goroutines. The pool must be idle.
func (p *ThreadPool) Close() error {
	p.shared.quit = true
	p.shared.started.Wait()
	return p.group.Wait()
}

// Nodes returns the nodes searched by all workers.
func (p *ThreadPool) Nodes() uint64 {
	return lo.SumBy(p.workers, func(w *Worker) uint64 { return w.Nodes() })
}

// ClearHistories resets every worker's history tables.
func (p *ThreadPool) ClearHistories() {
	for _, w := range p.workers {
		w.hist.clear()
	}
}

// checkLimits is polled by the main worker during the search.
func (p *ThreadPool) checkLimits() {
	if p.limits.Nodes > 0 && p.Nodes() >= p.limits.Nodes {
		p.shared.stop.Store(true)
		return
	}
	if !p.limits.Infinite && p.tm.ShouldStop() {
		p.shared.stop.Store(true)
	}
}

func (p *ThreadPool) report(w *Worker, depth int) {
	if p.onInfo == nil {
		return
	}
	elapsed := p.tm.Elapsed()
	nodes := p.Nodes()
	nps := uint64(0)
	if ms := elapsed.Milliseconds(); ms > 0 {
		nps = nodes * 1000 / uint64(ms)
	}
	p.onInfo(Info{
		Depth:    depth,
		SelDepth: w.seldepth,
		Score:    w.bestScore,
		Nodes:    nodes,
		NPS:      nps,
		HashFull: p.shared.TT.HashFull(),
		Time:     elapsed,
		PV:       append([]board.Move(nil), w.bestPV...),
	})
}

// bestThread picks the worker whose result is reported. A helper wins over
// the main worker when it completed a deeper iteration without a worse
// score, or the same depth with a better one.
func (p *ThreadPool) bestThread() *Worker {
	best := p.workers[0]
	for _, w := range p.workers[1:] {
		if w.bestMove == board.NoMove || w.completedDepth == 0 {
			continue
		}
		deeper := w.completedDepth > best.completedDepth && w.bestScore >= best.bestScore
		better := w.completedDepth == best.completedDepth && w.bestScore > best.bestScore
		if deeper || better {
			best = w
		}
	}
	return best
}

// result collects the outcome once the pool is idle.
func (p *ThreadPool) result() Result {
	w := p.bestThread()
	res := Result{
		Move:  w.bestMove,
		Score: w.bestScore,
		Depth: w.completedDepth,
		Nodes: p.Nodes(),
		PV:    append([]board.Move(nil), w.bestPV...),
	}
	if res.Move == board.NoMove && len(w.rootMoves) > 0 {
		res.Move = w.rootMoves[0]
		res.PV = []board.Move{res.Move}
	}
	if w.rootDrawn {
		res.Score = ValueDraw
	}
	return res
}
