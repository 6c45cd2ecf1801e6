// board/board.go
package board

import (
	"errors"
	"fmt"
	"math/rand"
)

// Cleared marks a called cell. Legal board numbers start at 1.
const Cleared = 0

var ErrInvalidDimensions = errors.New("board: max number must equal grid size squared")

// Position 棋盘上的坐标
type Position struct {
	Row int
	Col int
}

// Board is one player's N×N grid of the numbers 1..N*N.
type Board struct {
	size      int
	cells     [][]int
	positions map[int]Position
}

// Generate shuffles 1..maxNumber with rng and lays the permutation out row-major.
// The position index is built in the same pass and never rebuilt.
func Generate(gridSize, maxNumber int, rng *rand.Rand) (*Board, error) {
	if gridSize <= 0 || gridSize*gridSize != maxNumber {
		return nil, fmt.Errorf("%w: grid %d, max %d", ErrInvalidDimensions, gridSize, maxNumber)
	}

	numbers := make([]int, maxNumber)
	for i := range numbers {
		numbers[i] = i + 1
	}
	// Fisher-Yates
	rng.Shuffle(len(numbers), func(i, j int) {
		numbers[i], numbers[j] = numbers[j], numbers[i]
	})

	return fromPermutation(gridSize, numbers), nil
}

// FromRows builds a board from explicit rows, mainly for fixtures.
func FromRows(rows [][]int) (*Board, error) {
	size := len(rows)
	if size == 0 {
		return nil, ErrInvalidDimensions
	}
	flat := make([]int, 0, size*size)
	seen := make(map[int]bool, size*size)
	for _, row := range rows {
		if len(row) != size {
			return nil, fmt.Errorf("%w: row length %d, want %d", ErrInvalidDimensions, len(row), size)
		}
		for _, n := range row {
			if n < 1 || n > size*size || seen[n] {
				return nil, fmt.Errorf("board: number %d is out of range or repeated", n)
			}
			seen[n] = true
			flat = append(flat, n)
		}
	}
	return fromPermutation(size, flat), nil
}

func fromPermutation(size int, numbers []int) *Board {
	b := &Board{
		size:      size,
		cells:     make([][]int, size),
		positions: make(map[int]Position, len(numbers)),
	}
	for row := 0; row < size; row++ {
		b.cells[row] = make([]int, size)
		for col := 0; col < size; col++ {
			n := numbers[row*size+col]
			b.cells[row][col] = n
			b.positions[n] = Position{Row: row, Col: col}
		}
	}
	return b
}

// Size returns N.
func (b *Board) Size() int {
	return b.size
}

// Lookup returns where number sits on this board.
func (b *Board) Lookup(number int) (Position, bool) {
	pos, ok := b.positions[number]
	return pos, ok
}

// Cell returns the current value at (row, col); Cleared once called.
func (b *Board) Cell(row, col int) int {
	return b.cells[row][col]
}

// Rows returns a copy of the grid.
func (b *Board) Rows() [][]int {
	rows := make([][]int, b.size)
	for i, row := range b.cells {
		rows[i] = append([]int(nil), row...)
	}
	return rows
}

// Remaining lists the numbers not yet cleared, in row-major order.
func (b *Board) Remaining() []int {
	var out []int
	for _, row := range b.cells {
		for _, n := range row {
			if n != Cleared {
				out = append(out, n)
			}
		}
	}
	return out
}

func (b *Board) clear(pos Position) {
	b.cells[pos.Row][pos.Col] = Cleared
}

func (b *Board) rowCleared(row int) bool {
	for _, n := range b.cells[row] {
		if n != Cleared {
			return false
		}
	}
	return true
}

func (b *Board) colCleared(col int) bool {
	for row := 0; row < b.size; row++ {
		if b.cells[row][col] != Cleared {
			return false
		}
	}
	return true
}

func (b *Board) mainDiagonalCleared() bool {
	for k := 0; k < b.size; k++ {
		if b.cells[k][k] != Cleared {
			return false
		}
	}
	return true
}

func (b *Board) antiDiagonalCleared() bool {
	for k := 0; k < b.size; k++ {
		if b.cells[k][b.size-1-k] != Cleared {
			return false
		}
	}
	return true
}
