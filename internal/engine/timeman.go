package engine

import (
	"time"

	"github.com/hailam/chesscore/internal/board"
)

// Limits contains the constraints of one search.
type Limits struct {
	Time      [2]time.Duration // wtime, btime (remaining time for each color)
	Inc       [2]time.Duration // winc, binc (increment per move)
	MovesToGo int              // moves until next time control (0 = sudden death)
	MoveTime  time.Duration    // fixed time per move (overrides other time controls)
	Depth     int              // maximum search depth (0 = no limit)
	Nodes     uint64           // maximum nodes to search (0 = no limit)
	Infinite  bool             // search until stopped
}

// UseTimeManagement reports whether the clock governs the search.
func (l Limits) UseTimeManagement() bool {
	return l.Time[board.White] > 0 || l.Time[board.Black] > 0
}

// noClockTime is the budget when the clock of the side to move is missing.
const noClockTime = 100 * time.Millisecond

// TimeManager converts the clock into a soft (optimum) and hard (maximum)
// deadline for the current move.
type TimeManager struct {
	baseOptimum time.Duration
	optimumTime time.Duration // Target time for this move
	maximumTime time.Duration // Maximum time allowed
	startTime   time.Time     // When search started
}

// NewTimeManager creates a new time manager.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init initializes the time manager for a new search.
// ply is the current game ply; overhead is reserved per move for I/O lag.
func (tm *TimeManager) Init(limits Limits, us board.Color, ply int, overhead time.Duration) {
	tm.startTime = time.Now()

	// Fixed move time mode
	if limits.MoveTime > 0 {
		t := max(limits.MoveTime-overhead, time.Millisecond)
		tm.set(t, t)
		return
	}

	if limits.Infinite || !limits.UseTimeManagement() {
		tm.set(time.Hour*24, time.Hour*24)
		return
	}
	if limits.Time[us] == 0 {
		// Only the opponent's clock was sent.
		tm.set(noClockTime, noClockTime)
		return
	}

	timeLeft := max(limits.Time[us]-overhead, time.Millisecond)
	inc := limits.Inc[us]

	mtg := limits.MovesToGo
	if mtg == 0 {
		// Sudden death: fewer moves expected later in the game
		mtg = min(max(50-ply/4, 10), 50)
	}

	optimum := timeLeft/time.Duration(mtg) + inc*9/10
	if ply < 8 {
		optimum = optimum * 85 / 100
	}

	// Maximum time: 5x optimum or 80% of remaining, whichever is smaller
	maximum := min(optimum*5, timeLeft*8/10)
	maximum = min(maximum, timeLeft*95/100)

	optimum = max(optimum, 10*time.Millisecond)
	maximum = max(maximum, 50*time.Millisecond)
	optimum = min(optimum, maximum)
	tm.set(optimum, maximum)
}

func (tm *TimeManager) set(optimum, maximum time.Duration) {
	tm.baseOptimum = optimum
	tm.optimumTime = optimum
	tm.maximumTime = maximum
}

// Elapsed returns the time elapsed since search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// OptimumTime returns the target time for this move.
func (tm *TimeManager) OptimumTime() time.Duration {
	return tm.optimumTime
}

// MaximumTime returns the maximum time allowed.
func (tm *TimeManager) MaximumTime() time.Duration {
	return tm.maximumTime
}

// ShouldStop returns true if we should stop searching.
func (tm *TimeManager) ShouldStop() bool {
	return tm.Elapsed() >= tm.maximumTime
}

// PastOptimum returns true if we've exceeded the optimum time.
func (tm *TimeManager) PastOptimum() bool {
	return tm.Elapsed() >= tm.optimumTime
}

// AdjustForStability rescales the optimum from the best move's stability
// (consecutive depths with the same best move) and the number of recent
// best move changes.
func (tm *TimeManager) AdjustForStability(stability, changes int) {
	opt := tm.baseOptimum
	switch {
	case stability >= 6:
		opt = opt * 40 / 100
	case stability >= 4:
		opt = opt * 60 / 100
	case stability >= 2:
		opt = opt * 80 / 100
	}
	switch {
	case changes >= 4:
		opt *= 2
	case changes >= 2:
		opt = opt * 150 / 100
	}
	tm.optimumTime = min(opt, tm.maximumTime)
}
