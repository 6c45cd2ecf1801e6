package board

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markAll(tr *Tracker, numbers ...int) {
	for _, n := range numbers {
		tr.Mark(n)
	}
}

func TestTracker_NumberNotOnBoard(t *testing.T) {
	b, err := FromRows([][]int{{1, 2}, {3, 4}})
	require.NoError(t, err)
	tr := NewTracker(b, 1)

	res := tr.Mark(99)
	assert.False(t, res.Found)
	assert.Empty(t, res.Lines)
	assert.Equal(t, 0, tr.Strikes())
}

func TestTracker_ClearsCellWithoutStrike(t *testing.T) {
	b := sequentialBoard(t)
	tr := NewTracker(b, 5)

	// 7 sits on row 1 here; nothing completes.
	res := tr.Mark(7)
	assert.True(t, res.Found)
	assert.Empty(t, res.Lines)
	assert.Equal(t, Cleared, b.Cell(1, 1))
	assert.Equal(t, 0, tr.Strikes())
}

func TestTracker_RowStrike(t *testing.T) {
	tr := NewTracker(sequentialBoard(t), 5)
	markAll(tr, 11, 12, 14, 15)

	res := tr.Mark(13)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, Line{Kind: LineRow, Index: 2}, res.Lines[0])
	assert.Equal(t, 1, res.Strikes)
}

func TestTracker_MarkTwiceIsIdempotent(t *testing.T) {
	tr := NewTracker(sequentialBoard(t), 5)
	markAll(tr, 1, 2, 3, 4, 5)
	require.Equal(t, 1, tr.Strikes())

	res := tr.Mark(5)
	assert.True(t, res.Found)
	assert.Empty(t, res.Lines)
	assert.Equal(t, 1, tr.Strikes())
}

func TestTracker_CornerCompletesThreeLines(t *testing.T) {
	tr := NewTracker(sequentialBoard(t), 5)
	markAll(tr, 2, 3, 4, 5, 6, 11, 16, 21, 7, 13, 19, 25)
	require.Equal(t, 0, tr.Strikes())

	res := tr.Mark(1)
	assert.ElementsMatch(t, []Line{
		{Kind: LineRow, Index: 0},
		{Kind: LineCol, Index: 0},
		{Kind: LineMainDiagonal},
	}, res.Lines)
	assert.Equal(t, 3, tr.Strikes())
}

func TestTracker_CenterCompletesFourLines(t *testing.T) {
	tr := NewTracker(sequentialBoard(t), 5)
	markAll(tr,
		11, 12, 14, 15, // row 2
		3, 8, 18, 23, // col 2
		1, 7, 19, 25, // main diagonal
		5, 9, 17, 21, // anti diagonal
	)
	require.Equal(t, 0, tr.Strikes())

	res := tr.Mark(13)
	assert.Len(t, res.Lines, 4)
	assert.Equal(t, 4, res.Strikes)
	assert.False(t, res.Won)
}

func TestTracker_WinIsEdgeTriggered(t *testing.T) {
	tr := NewTracker(sequentialBoard(t), 1)

	markAll(tr, 1, 2, 3, 4)
	res := tr.Mark(5)
	assert.True(t, res.Won)
	assert.True(t, tr.HasWon())

	wins := 0
	for n := 6; n <= 25; n++ {
		if tr.Mark(n).Won {
			wins++
		}
	}
	assert.Zero(t, wins)
	assert.Equal(t, 12, tr.Strikes())
}

func TestTracker_FullBoardSignalsOnce(t *testing.T) {
	b, err := Generate(5, 25, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	tr := NewTracker(b, 5)

	wins := 0
	for _, n := range rand.New(rand.NewSource(9)).Perm(25) {
		if tr.Mark(n + 1).Won {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 12, tr.Strikes())
	assert.Empty(t, b.Remaining())
}
