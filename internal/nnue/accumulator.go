package nnue

import "github.com/hailam/chesscore/internal/board"

// stackSize covers the deepest search line plus the root.
const stackSize = 256

// Accumulator holds the hidden layer of both perspectives for one ply.
// A perspective marked dirty is rebuilt from the board when evaluated.
type Accumulator struct {
	Values [2][Hidden]int16
	dirty  [2]bool
}

// AccumulatorStack keeps one accumulator per ply of the current search line.
type AccumulatorStack struct {
	net   *Network
	stack [stackSize]Accumulator
	top   int
}

// Reset clears the stack and rebuilds the root accumulator from pos.
func (s *AccumulatorStack) Reset(pos *board.Position) {
	s.top = 0
	acc := &s.stack[0]
	for c := board.White; c <= board.Black; c++ {
		s.refresh(acc, pos, c)
	}
}

// Push derives the child accumulator for m from the current one.
// pos must still be the position before m.
func (s *AccumulatorStack) Push(pos *board.Position, m board.Move) {
	parent := &s.stack[s.top]
	s.top++
	child := &s.stack[s.top]

	for c := board.White; c <= board.Black; c++ {
		if parent.dirty[c] {
			child.dirty[c] = true
			continue
		}
		d, ok := moveDelta(pos, m, c)
		if !ok {
			child.dirty[c] = true
			continue
		}
		s.apply(&child.Values[c], &parent.Values[c], &d)
		child.dirty[c] = false
	}
}

// PushNull copies the current accumulator.
func (s *AccumulatorStack) PushNull() {
	s.stack[s.top+1] = s.stack[s.top]
	s.top++
}

// Pop moves back to the parent ply.
func (s *AccumulatorStack) Pop() {
	if s.top > 0 {
		s.top--
	}
}

// current returns the accumulator of the current ply with dirty
// perspectives rebuilt from pos.
func (s *AccumulatorStack) current(pos *board.Position) *Accumulator {
	acc := &s.stack[s.top]
	for c := board.White; c <= board.Black; c++ {
		if acc.dirty[c] {
			s.refresh(acc, pos, c)
		}
	}
	return acc
}

func (s *AccumulatorStack) refresh(acc *Accumulator, pos *board.Position, persp board.Color) {
	var buf [32]int
	vals := &acc.Values[persp]
	*vals = s.net.FeatureBias
	for _, f := range ActiveFeatures(pos, persp, buf[:0]) {
		row := s.net.row(f)
		for i := range vals {
			vals[i] += row[i]
		}
	}
	acc.dirty[persp] = false
}

func (s *AccumulatorStack) apply(dst, src *[Hidden]int16, d *delta) {
	*dst = *src
	for k := 0; k < d.nAdd; k++ {
		row := s.net.row(d.add[k])
		for i := range dst {
			dst[i] += row[i]
		}
	}
	for k := 0; k < d.nSub; k++ {
		row := s.net.row(d.sub[k])
		for i := range dst {
			dst[i] -= row[i]
		}
	}
}
