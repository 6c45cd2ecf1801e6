package board

// LineKind identifies which kind of line a strike completed.
type LineKind int

const (
	LineRow LineKind = iota
	LineCol
	LineMainDiagonal
	LineAntiDiagonal
)

func (k LineKind) String() string {
	switch k {
	case LineRow:
		return "row"
	case LineCol:
		return "col"
	case LineMainDiagonal:
		return "main_diagonal"
	case LineAntiDiagonal:
		return "anti_diagonal"
	}
	return "unknown"
}

// Line is a completed row, column or diagonal. Index is unused for diagonals.
type Line struct {
	Kind  LineKind
	Index int
}

// MarkResult describes what a single Mark call changed.
type MarkResult struct {
	Found   bool
	Lines   []Line
	Strikes int
	// Won is true only on the call that first reaches the threshold.
	Won bool
}

// Tracker counts completed lines on one board as numbers are called.
// It is owned by a single player and is not safe for concurrent use.
type Tracker struct {
	board        *Board
	strikesToWin int
	markedRows   map[int]bool
	markedCols   map[int]bool
	diagonals    [2]bool
	strikes      int
	won          bool
}

func NewTracker(b *Board, strikesToWin int) *Tracker {
	return &Tracker{
		board:        b,
		strikesToWin: strikesToWin,
		markedRows:   make(map[int]bool, b.size),
		markedCols:   make(map[int]bool, b.size),
	}
}

// Mark clears number on the board and records every line it completes.
// Numbers not on the board are ignored; marking a number twice adds nothing.
func (t *Tracker) Mark(number int) MarkResult {
	pos, ok := t.board.Lookup(number)
	if !ok {
		return MarkResult{Strikes: t.strikes}
	}
	t.board.clear(pos)

	var lines []Line
	if !t.markedRows[pos.Row] && t.board.rowCleared(pos.Row) {
		t.markedRows[pos.Row] = true
		lines = append(lines, Line{Kind: LineRow, Index: pos.Row})
	}
	if !t.markedCols[pos.Col] && t.board.colCleared(pos.Col) {
		t.markedCols[pos.Col] = true
		lines = append(lines, Line{Kind: LineCol, Index: pos.Col})
	}
	if pos.Row == pos.Col && !t.diagonals[0] && t.board.mainDiagonalCleared() {
		t.diagonals[0] = true
		lines = append(lines, Line{Kind: LineMainDiagonal})
	}
	if pos.Row+pos.Col == t.board.size-1 && !t.diagonals[1] && t.board.antiDiagonalCleared() {
		t.diagonals[1] = true
		lines = append(lines, Line{Kind: LineAntiDiagonal})
	}
	t.strikes += len(lines)

	res := MarkResult{Found: true, Lines: lines, Strikes: t.strikes}
	if !t.won && t.strikes >= t.strikesToWin {
		t.won = true
		res.Won = true
	}
	return res
}

// Strikes returns the number of completed lines so far.
func (t *Tracker) Strikes() int {
	return t.strikes
}

// HasWon reports whether the threshold has been reached.
func (t *Tracker) HasWon() bool {
	return t.won
}

func (t *Tracker) Board() *Board {
	return t.board
}
