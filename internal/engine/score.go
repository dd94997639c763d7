package engine

// Search score bounds. Mate at ply p scores ValueMate - p.
const (
	MaxPly = 128

	ValueDraw     = 0
	ValueMate     = 32000
	ValueInfinite = 32001
	ValueNone     = 32002

	ValueMateInMaxPly  = ValueMate - MaxPly
	ValueMatedInMaxPly = -ValueMateInMaxPly
)

// MateIn returns the score of giving mate at ply.
func MateIn(ply int) int {
	return ValueMate - ply
}

// MatedIn returns the score of being mated at ply.
func MatedIn(ply int) int {
	return -ValueMate + ply
}

// IsMateScore reports whether v announces a forced mate for either side.
func IsMateScore(v int) bool {
	return v >= ValueMateInMaxPly || v <= ValueMatedInMaxPly
}

// MateMoves converts a mate score into full moves, negative when being mated.
func MateMoves(v int) int {
	if v > 0 {
		return (ValueMate - v + 1) / 2
	}
	return -(ValueMate + v) / 2
}

// valueToTT makes mate scores relative to the stored node instead of the root.
func valueToTT(v, ply int) int {
	switch {
	case v == ValueNone:
		return v
	case v >= ValueMateInMaxPly:
		return v + ply
	case v <= ValueMatedInMaxPly:
		return v - ply
	}
	return v
}

// valueFromTT is the inverse of valueToTT.
func valueFromTT(v, ply int) int {
	switch {
	case v == ValueNone:
		return v
	case v >= ValueMateInMaxPly:
		return v - ply
	case v <= ValueMatedInMaxPly:
		return v + ply
	}
	return v
}

// clampEval keeps static evaluations clear of the mate range.
func clampEval(v int) int {
	if v >= ValueMateInMaxPly {
		return ValueMateInMaxPly - 1
	}
	if v <= ValueMatedInMaxPly {
		return ValueMatedInMaxPly + 1
	}
	return v
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
