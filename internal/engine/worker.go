package engine

import (
	"math"
	"sync/atomic"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/nnue"
)

// LMR reduction table: r(i) = 21.46 * ln(i), reductions[d][m] = r(d)*r(m)/1024
var reductions [MaxPly][board.MaxMoves + 1]int

func init() {
	for d := 1; d < MaxPly; d++ {
		for m := 1; m <= board.MaxMoves; m++ {
			rd := 21.46 * math.Log(float64(d))
			rm := 21.46 * math.Log(float64(m))
			reductions[d][m] = int(rd * rm / 1024)
		}
	}
}

func reduction(depth, moveCount int) int {
	return reductions[min(depth, MaxPly-1)][min(moveCount, board.MaxMoves)]
}

const (
	rfpMaxDepth      = 8
	rfpMargin        = 80
	razorBase        = 300
	razorDepthFactor = 250
	nmpVerifyDepth   = 12
	iirMinDepth      = 6
	seMinDepth       = 8
	futilityBase     = 100
	futilityDepth    = 120
	qsFutilityMargin = 150
	stopCheckPeriod  = 1024
	maxTriedMoves    = 64
)

// stackOffset is the number of sentinel entries below ply 0.
const stackOffset = 6

// stackEntry is the per-ply search state.
type stackEntry struct {
	contHist      *PieceToHistory
	move          board.Move
	killer        board.Move
	excluded      board.Move
	staticEval    int
	rawEval       int
	statScore     int
	moveCount     int
	pliesFromNull int
	inCheck       bool
}

// Worker runs one thread's iterative deepening over its own position copy.
// Only the transposition table, the stop flag and the network are shared.
type Worker struct {
	id     int
	pool   *ThreadPool
	shared *SharedState

	pos   *board.Position
	eval  *nnue.Evaluator
	hist  *histories
	stack [MaxPly + stackOffset + 2]stackEntry

	pv    [MaxPly + 2][MaxPly + 2]board.Move
	pvLen [MaxPly + 2]int

	// keys holds the game history, then the root, then one key per ply.
	keys      []uint64
	rootIndex int

	limits    Limits
	rootMoves []board.Move
	rootHint  board.Move
	rootDrawn bool

	nodes     atomic.Uint64
	seldepth  int
	rootDepth int
	callsCnt  int
	nmpMinPly int
	stopped   bool

	// iterBest is the last root move that raised alpha in the current iteration.
	iterBest board.Move

	completedDepth int
	bestMove       board.Move
	bestScore      int
	bestPV         []board.Move
}

func newWorker(id int, pool *ThreadPool) *Worker {
	return &Worker{
		id:     id,
		pool:   pool,
		shared: pool.shared,
		hist:   newHistories(),
		keys:   make([]uint64, 0, 512),
	}
}

func (w *Worker) isMain() bool {
	return w.id == 0
}

// Nodes returns the number of nodes searched by this worker.
func (w *Worker) Nodes() uint64 {
	return w.nodes.Load()
}

func (w *Worker) ss(ply int) *stackEntry {
	return &w.stack[ply+stackOffset]
}

// prime loads a new root position. history holds the keys of the game
// positions before the root, oldest first.
func (w *Worker) prime(pos *board.Position, history []uint64, limits Limits, hint board.Move) {
	w.pos = pos.Copy()
	w.keys = append(w.keys[:0], history...)
	w.rootIndex = len(w.keys)
	w.keys = append(w.keys, w.pos.Hash)

	w.limits = limits
	w.rootHint = hint
	w.nodes.Store(0)
	w.seldepth = 0
	w.callsCnt = 0
	w.nmpMinPly = 0
	w.stopped = false
	w.iterBest = board.NoMove
	w.completedDepth = 0
	w.bestMove = board.NoMove
	w.bestScore = -ValueInfinite
	w.bestPV = nil

	if net := w.shared.Net; net != nil {
		if w.eval == nil || w.eval.Network() != net {
			w.eval = nnue.NewEvaluator(net)
		}
		w.eval.Reset(w.pos)
	} else {
		w.eval = nil
	}

	for i := range w.stack {
		w.stack[i] = stackEntry{staticEval: ValueNone, rawEval: ValueNone, contHist: &w.hist.sentinel}
	}
	w.ss(0).pliesFromNull = w.rootIndex

	var ml board.MoveList
	w.pos.GenerateLegal(&ml)
	w.rootMoves = append(w.rootMoves[:0], ml.Moves()...)
	w.rootDrawn = w.isDraw(0)
}

// evaluate returns the raw static evaluation of the current position.
func (w *Worker) evaluate() int {
	if w.eval != nil {
		return clampEval(w.eval.Evaluate(w.pos))
	}
	return clampEval(Evaluate(w.pos, w.hist.pawns))
}

func (w *Worker) makeMove(m board.Move) board.UndoInfo {
	if w.eval != nil {
		w.eval.Push(w.pos, m)
	}
	undo := w.pos.MakeMove(m)
	w.keys = append(w.keys, w.pos.Hash)
	return undo
}

func (w *Worker) unmakeMove(m board.Move, undo board.UndoInfo) {
	w.pos.UnmakeMove(m, undo)
	w.keys = w.keys[:len(w.keys)-1]
	if w.eval != nil {
		w.eval.Pop()
	}
}

func (w *Worker) makeNullMove() board.NullUndo {
	if w.eval != nil {
		w.eval.PushNull()
	}
	undo := w.pos.MakeNullMove()
	w.keys = append(w.keys, w.pos.Hash)
	return undo
}

func (w *Worker) unmakeNullMove(undo board.NullUndo) {
	w.pos.UnmakeNullMove(undo)
	w.keys = w.keys[:len(w.keys)-1]
	if w.eval != nil {
		w.eval.Pop()
	}
}

// checkStop polls the shared stop flag and, on the main thread, the clock
// and node budget. Once set, w.stopped stays set until the next search.
func (w *Worker) checkStop() bool {
	if w.stopped {
		return true
	}
	w.callsCnt++
	if w.callsCnt >= stopCheckPeriod {
		w.callsCnt = 0
		if w.isMain() {
			w.pool.checkLimits()
		}
	}
	if w.shared.stop.Load() {
		w.stopped = true
	}
	return w.stopped
}

// isDraw applies the fifty-move rule, insufficient material and repetition.
func (w *Worker) isDraw(ply int) bool {
	pos := w.pos
	if pos.HalfMoveClock >= 100 && (!pos.InCheck() || pos.HasLegalMoves()) {
		return true
	}
	if pos.IsInsufficientMaterial() {
		return true
	}
	return w.isRepetition(ply)
}

// isRepetition reports a repeated position. A repetition inside the search
// tree is enough; positions from before the root need two earlier occurrences.
func (w *Worker) isRepetition(ply int) bool {
	end := min(w.pos.HalfMoveClock, w.ss(ply).pliesFromNull)
	cur := len(w.keys) - 1
	count := 0
	for i := 4; i <= end; i += 2 {
		idx := cur - i
		if idx < 0 {
			break
		}
		if w.keys[idx] != w.pos.Hash {
			continue
		}
		if idx > w.rootIndex {
			return true
		}
		count++
		if count >= 2 {
			return true
		}
	}
	return false
}

func (w *Worker) updatePV(ply int, m board.Move) {
	w.pv[ply][ply] = m
	next := max(w.pvLen[ply+1], ply+1)
	copy(w.pv[ply][ply+1:next], w.pv[ply+1][ply+1:next])
	w.pvLen[ply] = next
}

func (w *Worker) contHistories(ply int) [4]*PieceToHistory {
	return [4]*PieceToHistory{
		w.ss(ply - 1).contHist,
		w.ss(ply - 2).contHist,
		w.ss(ply - 4).contHist,
		w.ss(ply - 6).contHist,
	}
}

func boundFor(failHigh bool) Bound {
	if failHigh {
		return BoundLower
	}
	return BoundUpper
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// search is the negamax alpha-beta search. It returns 0 once w.stopped is
// set; callers must check w.stopped before using the result.
func (w *Worker) search(pvNode bool, alpha, beta, depth, ply int, cutNode bool) int {
	pos := w.pos
	rootNode := ply == 0
	ss := w.ss(ply)

	if pvNode {
		w.pvLen[ply] = ply
	}
	if w.checkStop() {
		return 0
	}

	if !rootNode {
		if w.isDraw(ply) {
			return ValueDraw
		}
		// Mate distance pruning: no line from here can beat a mate already
		// found closer to the root.
		alpha = max(MatedIn(ply), alpha)
		beta = min(MateIn(ply+1), beta)
		if alpha >= beta {
			return alpha
		}
	}

	if depth <= 0 || ply >= MaxPly-1 {
		return w.qsearch(pvNode, alpha, beta, ply)
	}

	w.nodes.Add(1)
	if pvNode && w.seldepth < ply+1 {
		w.seldepth = ply + 1
	}

	us := pos.SideToMove
	ss.inCheck = pos.InCheck()
	ss.moveCount = 0
	w.ss(ply + 1).excluded = board.NoMove
	w.ss(ply + 2).killer = board.NoMove
	excluded := ss.excluded

	// Transposition table lookup
	key := pos.Hash
	tte, ttHit := w.shared.TT.Probe(key)
	ttValue := ValueNone
	ttMove := board.NoMove
	if ttHit {
		ttValue = valueFromTT(tte.Value, ply)
		ttMove = pos.DecodeMove(tte.Move)
	}
	// The root tries the previous iteration's best move first, then the
	// stored analysis hint.
	if rootNode {
		if w.bestMove != board.NoMove {
			ttMove = w.bestMove
		} else if ttMove == board.NoMove {
			ttMove = w.rootHint
		}
	}
	if ttMove != board.NoMove && !(pos.IsPseudoLegal(ttMove) && pos.IsLegal(ttMove)) {
		ttMove = board.NoMove
	}

	// TT cutoff at non-PV nodes when the stored bound proves the result.
	if !pvNode && excluded == board.NoMove && ttHit && tte.Depth >= depth &&
		ttValue != ValueNone && tte.Bound&boundFor(ttValue >= beta) != 0 {
		return ttValue
	}

	// Static evaluation
	var eval int
	improving := false
	switch {
	case ss.inCheck:
		ss.staticEval = ValueNone
		ss.rawEval = ValueNone
		eval = ValueNone
	case excluded != board.NoMove:
		eval = ss.staticEval
	default:
		// The TT keeps the raw eval, so a hit skips the evaluator.
		if ttHit && tte.Eval != ValueNone {
			ss.rawEval = tte.Eval
		} else {
			ss.rawEval = w.evaluate()
		}
		ss.staticEval = clampEval(ss.rawEval + w.hist.correction.Get(pos))
		eval = ss.staticEval
		if ttHit && ttValue != ValueNone && tte.Bound&boundFor(ttValue > eval) != 0 {
			eval = ttValue
		}
	}

	// Improving: our eval rose since our previous move. Pruning is more
	// careful when it did.
	if !ss.inCheck {
		if prev := w.ss(ply - 2).staticEval; prev != ValueNone {
			improving = ss.staticEval > prev
		} else if prev := w.ss(ply - 4).staticEval; prev != ValueNone {
			improving = ss.staticEval > prev
		}
	}

	if !ss.inCheck && excluded == board.NoMove && !pvNode {
		// Razoring: far below alpha, only a tactical shot can save the node,
		// so let quiescence decide.
		if eval < alpha-razorBase-razorDepthFactor*depth*depth {
			v := w.qsearch(false, alpha-1, alpha, ply)
			if w.stopped {
				return 0
			}
			if v < alpha && !IsMateScore(v) {
				return v
			}
		}

		// Reverse futility pruning: the static eval beats beta by a margin that
		// grows with depth, so assume a quiet move keeps it there.
		if depth <= rfpMaxDepth && eval-rfpMargin*(depth-b2i(improving)) >= beta &&
			eval < ValueMateInMaxPly && beta > ValueMatedInMaxPly {
			return (eval + beta) / 2
		}

		// Null move pruning: passing and still failing high against a reduced
		// search means the position is good enough to cut. Zugzwang is rare
		// with pieces on the board, hence the non-pawn material condition.
		if eval >= beta && ss.staticEval >= beta && ply >= w.nmpMinPly &&
			w.ss(ply-1).move != board.NullMove && pos.HasNonPawnMaterial(us) &&
			beta > ValueMatedInMaxPly {
			r := 4 + depth/4 + min((eval-beta)/200, 3)

			ss.move = board.NullMove
			ss.contHist = &w.hist.sentinel
			w.ss(ply + 1).pliesFromNull = 0
			undo := w.makeNullMove()
			nullValue := -w.search(false, -beta, -beta+1, depth-r, ply+1, !cutNode)
			w.unmakeNullMove(undo)
			if w.stopped {
				return 0
			}

			if nullValue >= beta && nullValue < ValueMateInMaxPly {
				if w.nmpMinPly != 0 || depth < nmpVerifyDepth {
					return nullValue
				}
				// At high depth the cutoff is confirmed by a normal search with
				// null moves disabled for the next plies, which catches zugzwang.
				w.nmpMinPly = ply + 3*(depth-r)/4
				v := w.search(false, beta-1, beta, depth-r, ply, false)
				w.nmpMinPly = 0
				if w.stopped {
					return 0
				}
				if v >= beta {
					return nullValue
				}
			}
		}
	}

	// Internal iterative reduction: a PV node without a TT move is searched
	// shallower; the next iteration finds it with a move to try first.
	if pvNode && depth >= iirMinDepth && ttMove == board.NoMove {
		depth -= 2
	}

	cont := w.contHistories(ply)
	var mp MovePicker
	mp.init(pos, w.hist, cont, ttMove, ss.killer, false)

	bestValue := -ValueInfinite
	bestMove := board.NoMove
	moveCount := 0
	var quiets, captures [maxTriedMoves]board.Move
	nQuiets, nCaptures := 0, 0

	for m := mp.Next(); m != board.NoMove; m = mp.Next() {
		if m == excluded {
			continue
		}
		moveCount++

		capture := pos.IsCapture(m)
		quiet := !capture && !m.IsPromotion()
		piece := pos.MovedPiece(m)
		to := m.To()
		givesCheck := pos.GivesCheck(m)
		newDepth := depth - 1

		// Shallow depth pruning. Late move pruning stops the picker from
		// yielding more quiets; futility drops quiets that cannot reach alpha;
		// SEE drops moves that lose too much material.
		if !rootNode && pos.HasNonPawnMaterial(us) && bestValue > ValueMatedInMaxPly {
			if moveCount >= (3+depth*depth)/(2-b2i(improving)) {
				mp.skipQuiets = true
			}
			lmrDepth := newDepth - reduction(depth, moveCount)
			if !quiet {
				if !pos.SeeGE(m, -200*depth) {
					continue
				}
			} else {
				if !ss.inCheck && !givesCheck && lmrDepth < 8 && ss.staticEval+futilityBase+futilityDepth*lmrDepth <= alpha {
					continue
				}
				lmrDepth = max(lmrDepth, 0)
				if !pos.SeeGE(m, -25*lmrDepth*lmrDepth) {
					continue
				}
			}
		}

		// Singular extension: when every other move fails low against a bound
		// just under the TT value, the TT move is the only good one and gets
		// searched deeper.
		extension := 0
		if !rootNode && m == ttMove && excluded == board.NoMove && depth >= seMinDepth &&
			ttHit && tte.Bound&BoundLower != 0 && tte.Depth >= depth-3 &&
			!IsMateScore(ttValue) && ttValue != ValueNone && ply < 2*w.rootDepth {
			singularBeta := ttValue - 2*depth
			ss.excluded = m
			v := w.search(false, singularBeta-1, singularBeta, (depth-1)/2, ply, cutNode)
			ss.excluded = board.NoMove
			if w.stopped {
				return 0
			}
			if v < singularBeta {
				extension = 1
				if !pvNode && v < singularBeta-20 {
					extension = 2
				}
			} else if singularBeta >= beta {
				// Multi-cut: a second move also beats beta, so the node cuts.
				return singularBeta
			}
		}
		newDepth += extension

		if quiet {
			ss.statScore = 2*w.hist.main.Get(us, m) + cont[0].Get(piece, to) + cont[1].Get(piece, to) + cont[3].Get(piece, to)
		} else {
			ss.statScore = 0
		}

		ss.moveCount = moveCount
		ss.move = m
		ss.contHist = &w.hist.cont[piece][to]
		w.ss(ply + 1).pliesFromNull = ss.pliesFromNull + 1
		undo := w.makeMove(m)

		// Late move reductions: moves ordered late are searched shallower with
		// a null window and re-searched at full depth only if they beat alpha.
		var value int
		if depth >= 2 && moveCount > 1+b2i(rootNode) {
			r := reduction(depth, moveCount)
			r += b2i(!pvNode) + b2i(cutNode) + b2i(!improving)
			r -= b2i(givesCheck) + b2i(m == ttMove)
			// Good history earns back depth, bad history loses more.
			r -= ss.statScore / 8192

			d := max(1, min(newDepth-r, newDepth+1))
			value = -w.search(false, -(alpha + 1), -alpha, d, ply+1, true)
			if value > alpha && d < newDepth && !w.stopped {
				value = -w.search(false, -(alpha + 1), -alpha, newDepth, ply+1, !cutNode)
			}
		} else if !pvNode || moveCount > 1 {
			value = -w.search(false, -(alpha + 1), -alpha, newDepth, ply+1, !cutNode)
		}

		// PVS: the first move and any null-window improvement at a PV node
		// get a full-window search.
		if pvNode && (moveCount == 1 || value > alpha) && !w.stopped {
			value = -w.search(true, -beta, -alpha, newDepth, ply+1, false)
		}

		w.unmakeMove(m, undo)
		if w.stopped {
			return 0
		}

		if value > bestValue {
			bestValue = value
			if value > alpha {
				bestMove = m
				if rootNode {
					w.iterBest = m
				}
				if pvNode {
					w.updatePV(ply, m)
				}
				if value >= beta {
					break
				}
				alpha = value
			}
		}

		if m != bestMove {
			if quiet && nQuiets < maxTriedMoves {
				quiets[nQuiets] = m
				nQuiets++
			} else if !quiet && nCaptures < maxTriedMoves {
				captures[nCaptures] = m
				nCaptures++
			}
		}
	}

	// No legal move: mate or stalemate. A singular search with every
	// other move excluded just fails low.
	if moveCount == 0 {
		if excluded != board.NoMove {
			return alpha
		}
		if ss.inCheck {
			return MatedIn(ply)
		}
		return ValueDraw
	}

	if bestValue >= beta && bestMove != board.NoMove {
		w.updateStats(ply, bestMove, depth, quiets[:nQuiets], captures[:nCaptures])
	}

	// Singular verification searches share the node's key and must not
	// overwrite its entry.
	if excluded == board.NoMove {
		bound := BoundUpper
		if bestValue >= beta {
			bound = BoundLower
		} else if pvNode && bestMove != board.NoMove {
			bound = BoundExact
		}
		w.shared.TT.Store(key, bestMove.FromTo(), bound, depth, ss.rawEval, valueToTT(bestValue, ply))

		if !ss.inCheck && !IsMateScore(bestValue) &&
			(bestMove == board.NoMove || pos.IsQuiet(bestMove)) &&
			!(bound == BoundLower && bestValue <= ss.staticEval) &&
			!(bound == BoundUpper && bestValue >= ss.staticEval) {
			// Teach the correction history how far the eval was off.
			w.hist.correction.Update(pos, bestValue, ss.rawEval, depth)
		}
	}

	return bestValue
}

// qsearch resolves captures (or all evasions when in check) so that leaves
// are only evaluated in quiet positions.
func (w *Worker) qsearch(pvNode bool, alpha, beta, ply int) int {
	pos := w.pos
	ss := w.ss(ply)

	if pvNode {
		w.pvLen[ply] = ply
		if w.seldepth < ply+1 {
			w.seldepth = ply + 1
		}
	}
	if w.checkStop() {
		return 0
	}
	w.nodes.Add(1)

	if ply > 0 && w.isDraw(ply) {
		return ValueDraw
	}
	inCheck := pos.InCheck()
	ss.inCheck = inCheck
	if ply >= MaxPly-1 {
		if inCheck {
			return ValueDraw
		}
		return w.evaluate()
	}

	key := pos.Hash
	tte, ttHit := w.shared.TT.Probe(key)
	ttValue := ValueNone
	ttMove := board.NoMove
	if ttHit {
		ttValue = valueFromTT(tte.Value, ply)
		ttMove = pos.DecodeMove(tte.Move)
	}
	if !pvNode && ttHit && tte.Depth >= DepthQS && ttValue != ValueNone &&
		tte.Bound&boundFor(ttValue >= beta) != 0 {
		return ttValue
	}

	bestValue := -ValueInfinite
	rawEval := ValueNone
	futility := -ValueInfinite
	if !inCheck {
		if ttHit && tte.Eval != ValueNone {
			rawEval = tte.Eval
		} else {
			rawEval = w.evaluate()
		}
		standPat := clampEval(rawEval + w.hist.correction.Get(pos))
		bestValue = standPat
		if ttHit && ttValue != ValueNone && tte.Bound&boundFor(ttValue > bestValue) != 0 {
			bestValue = ttValue
		}
		if bestValue >= beta {
			// Stand pat cutoff; the eval is cached for the next visit.
			if !ttHit {
				w.shared.TT.Store(key, 0, BoundLower, DepthQS, rawEval, valueToTT(bestValue, ply))
			}
			return bestValue
		}
		alpha = max(alpha, bestValue)
		futility = standPat + qsFutilityMargin
	}
	ss.staticEval = ValueNone
	ss.rawEval = rawEval

	var mp MovePicker
	mp.init(pos, w.hist, w.contHistories(ply), ttMove, board.NoMove, !inCheck)

	bestMove := board.NoMove
	moveCount := 0
	for m := mp.Next(); m != board.NoMove; m = mp.Next() {
		moveCount++

		if !inCheck && bestValue > ValueMatedInMaxPly {
			// Delta pruning: even winning the captured piece stays below alpha.
			if !m.IsPromotion() {
				if fv := futility + board.SeeValue[pos.CapturedPiece(m).Type()]; fv <= alpha {
					bestValue = max(bestValue, fv)
					continue
				}
			}
			// Losing captures cannot improve a quiet position.
			if !pos.SeeGE(m, 0) {
				continue
			}
		}

		ss.move = m
		ss.contHist = &w.hist.cont[pos.MovedPiece(m)][m.To()]
		w.ss(ply + 1).pliesFromNull = ss.pliesFromNull + 1
		undo := w.makeMove(m)
		value := -w.qsearch(pvNode, -beta, -alpha, ply+1)
		w.unmakeMove(m, undo)
		if w.stopped {
			return 0
		}

		if value > bestValue {
			bestValue = value
			if value > alpha {
				bestMove = m
				if pvNode {
					w.updatePV(ply, m)
				}
				if value >= beta {
					break
				}
				alpha = value
			}
		}
	}

	// Every evasion was generated, so none means mate.
	if inCheck && moveCount == 0 {
		return MatedIn(ply)
	}

	w.shared.TT.Store(key, bestMove.FromTo(), boundFor(bestValue >= beta), DepthQS, rawEval, valueToTT(bestValue, ply))
	return bestValue
}

// updateStats rewards the move that failed high and penalizes the moves
// of the same node that were tried before it.
func (w *Worker) updateStats(ply int, best board.Move, depth int, quiets, captures []board.Move) {
	pos := w.pos
	us := pos.SideToMove
	bonus, malus := statBonus(depth), statMalus(depth)
	piece := pos.MovedPiece(best)

	if pos.IsQuiet(best) {
		w.ss(ply).killer = best
		w.hist.main.Update(us, best, bonus)
		w.updateContinuation(ply, piece, best.To(), bonus)
		for _, m := range quiets {
			w.hist.main.Update(us, m, -malus)
			w.updateContinuation(ply, pos.MovedPiece(m), m.To(), -malus)
		}
	} else {
		w.hist.capture.Update(piece, best.To(), captureKind(pos, best), bonus)
	}

	for _, m := range captures {
		w.hist.capture.Update(pos.MovedPiece(m), m.To(), captureKind(pos, m), -malus)
	}
}

// updateContinuation updates the continuation tables of plies -1, -2, -4 and -6.
func (w *Worker) updateContinuation(ply int, pc board.Piece, to board.Square, bonus int) {
	for _, back := range [...]int{1, 2, 4, 6} {
		if w.ss(ply).inCheck && back > 2 {
			break
		}
		prev := w.ss(ply - back)
		if prev.move == board.NoMove || prev.move == board.NullMove {
			continue
		}
		prev.contHist.Update(pc, to, bonus)
	}
}
