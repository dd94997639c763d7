package engine

import (
	"time"

	"github.com/samber/lo"

	"github.com/hailam/chesscore/internal/board"
)

// Aspiration window parameters
const (
	aspirationDelta  = 25
	aspirationGrowth = 4
	stabilityWindow  = 5
)

// aspirate runs search inside a window around prev until the score lands
// strictly inside it. search returns false when it was interrupted; the
// last score is then returned as is.
func aspirate(prev, depth int, search func(alpha, beta int) (int, bool)) (int, bool) {
	alpha, beta := -ValueInfinite, ValueInfinite
	delta := aspirationDelta
	if depth > 1 {
		alpha = max(prev-delta, -ValueInfinite)
		beta = min(prev+delta, ValueInfinite)
	}

	for {
		score, ok := search(alpha, beta)
		if !ok {
			return score, false
		}

		switch {
		case score <= alpha && alpha > -ValueInfinite:
			beta = (alpha + beta) / 2
			alpha = max(score-delta, -ValueInfinite)
		case score >= beta && beta < ValueInfinite:
			beta = min(score+delta, ValueInfinite)
		default:
			return score, true
		}
		delta *= aspirationGrowth
	}
}

// iterativeDeepening searches the root at increasing depth until a limit
// or the stop flag ends it. Every worker runs it; only the main worker
// reports progress and manages time.
func (w *Worker) iterativeDeepening() {
	pool := w.pool
	maxDepth := MaxPly - 1
	if w.limits.Depth > 0 {
		maxDepth = min(w.limits.Depth, MaxPly-1)
	}

	if len(w.rootMoves) == 0 {
		if w.pos.InCheck() {
			w.bestScore = MatedIn(0)
		} else {
			w.bestScore = ValueDraw
		}
		w.waitForStop()
		return
	}

	prevScore := 0
	var recent []board.Move
	stability := 0

	for depth := 1; depth <= maxDepth; depth++ {
		if w.isMain() && depth > 1 && pool.tm.PastOptimum() && !w.limits.Infinite {
			break
		}
		if w.checkStopFlag() {
			break
		}

		w.rootDepth = depth
		w.seldepth = 0
		w.iterBest = board.NoMove

		score, completed := aspirate(prevScore, depth, func(alpha, beta int) (int, bool) {
			v := w.search(true, alpha, beta, depth, 0, false)
			return v, !w.stopped
		})

		if !completed {
			// Keep the move that last raised alpha in the interrupted iteration.
			if w.iterBest != board.NoMove && w.iterBest != w.bestMove {
				w.bestMove = w.iterBest
				w.bestPV = []board.Move{w.iterBest}
			}
			break
		}

		prevScore = score
		w.completedDepth = depth
		w.bestScore = score
		if w.rootDrawn {
			w.bestScore = ValueDraw
		}
		if w.pvLen[0] > 0 {
			w.bestPV = append(w.bestPV[:0], w.pv[0][:w.pvLen[0]]...)
			w.bestMove = w.bestPV[0]
		} else if w.iterBest != board.NoMove {
			w.bestMove = w.iterBest
			w.bestPV = append(w.bestPV[:0], w.iterBest)
		}

		if !w.isMain() {
			continue
		}

		pool.report(w, depth)

		if len(recent) > 0 && recent[len(recent)-1] == w.bestMove {
			stability++
		} else {
			stability = 0
		}
		recent = append(recent, w.bestMove)
		if len(recent) > stabilityWindow {
			recent = recent[1:]
		}
		if w.limits.UseTimeManagement() {
			pool.tm.AdjustForStability(stability, bestMoveChanges(recent))
		}

		if w.limits.Nodes > 0 && pool.Nodes() >= w.limits.Nodes {
			break
		}
	}

	if w.bestMove == board.NoMove {
		w.bestMove = w.rootMoves[0]
		w.bestPV = []board.Move{w.bestMove}
	}
	w.waitForStop()
}

// bestMoveChanges counts the best move changes between consecutive depths.
func bestMoveChanges(recent []board.Move) int {
	if len(recent) < 2 {
		return 0
	}
	return lo.Count(lo.Map(recent[1:], func(m board.Move, i int) bool {
		return m != recent[i]
	}), true)
}

// checkStopFlag reports whether the search was stopped and records it.
func (w *Worker) checkStopFlag() bool {
	if w.shared.stop.Load() {
		w.stopped = true
	}
	return w.stopped
}

// waitForStop lets the main worker finish the search: in infinite mode it
// waits for the host's stop before the other workers are told to unwind.
func (w *Worker) waitForStop() {
	if !w.isMain() {
		return
	}
	for w.limits.Infinite && !w.shared.stop.Load() {
		time.Sleep(time.Millisecond)
	}
	w.shared.stop.Store(true)
}
