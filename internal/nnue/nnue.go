// Package nnue implements the efficiently updatable evaluation network:
// king-bucketed piece-square features, an incrementally maintained
// accumulator per ply, and a squared clipped ReLU output layer.
package nnue

import "github.com/hailam/chesscore/internal/board"

// Network architecture constants
const (
	FeatureCount  = 768 // 2 sides * 6 piece types * 64 squares
	KingBuckets   = 4
	InputSize     = FeatureCount * KingBuckets
	Hidden        = 256
	OutputBuckets = 8

	// Quantization constants
	QA    = 255
	QB    = 64
	Scale = 400
)

// MaxEval keeps network output out of mate-score territory.
const MaxEval = 31000

// Evaluator pairs a read-only network with one search thread's accumulator stack.
type Evaluator struct {
	net   *Network
	stack AccumulatorStack
}

// NewEvaluator creates an evaluator for net. Several evaluators may share a network.
func NewEvaluator(net *Network) *Evaluator {
	e := &Evaluator{net: net}
	e.stack.net = net
	return e
}

// Network returns the weights this evaluator reads.
func (e *Evaluator) Network() *Network {
	return e.net
}

// Reset makes pos the root of the stack and refreshes it from the board.
func (e *Evaluator) Reset(pos *board.Position) {
	e.stack.Reset(pos)
}

// Push derives the accumulator after m. Call before MakeMove.
func (e *Evaluator) Push(pos *board.Position, m board.Move) {
	e.stack.Push(pos, m)
}

// PushNull copies the current accumulator for a null move.
func (e *Evaluator) PushNull() {
	e.stack.PushNull()
}

// Pop returns to the parent ply. Call after UnmakeMove.
func (e *Evaluator) Pop() {
	e.stack.Pop()
}

// Evaluate returns the score of pos in centipawns from the side to move's view.
func (e *Evaluator) Evaluate(pos *board.Position) int {
	acc := e.stack.current(pos)
	us := pos.SideToMove
	v := e.net.Forward(&acc.Values[us], &acc.Values[us.Other()], OutputBucket(pos))

	material := 100*(pos.Pieces[board.White][board.Pawn]|pos.Pieces[board.Black][board.Pawn]).Count() +
		pos.NonPawnMaterial(board.White) + pos.NonPawnMaterial(board.Black)
	v = v * (700 + material/32) / 1024

	if v > MaxEval {
		return MaxEval
	}
	if v < -MaxEval {
		return -MaxEval
	}
	return v
}

// OutputBucket selects the output layer by the number of pieces on the board.
func OutputBucket(pos *board.Position) int {
	b := (pos.PieceCount() - 2) / 4
	if b >= OutputBuckets {
		b = OutputBuckets - 1
	}
	return b
}
