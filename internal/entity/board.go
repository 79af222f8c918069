package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Mark is the content of a single board cell.
type Mark string

const (
	Empty   Mark = ""
	PlayerX Mark = "X" // human, always moves first
	PlayerO Mark = "O" // computer
)

const BoardSize = 9

var ErrInvalidBoard = errors.New("invalid board")

// Board is a 3x3 grid stored row-major: index = row*3 + col.
type Board [BoardSize]Mark

func (that Board) Count(mark Mark) int {
	n := 0
	for _, cell := range that {
		if cell == mark {
			n++
		}
	}

	return n
}

// EmptyCells returns the indices of empty cells in ascending order.
func (that Board) EmptyCells() []int {
	cells := make([]int, 0, BoardSize)
	for i, cell := range that {
		if cell == Empty {
			cells = append(cells, i)
		}
	}

	return cells
}

func (that Board) IsFull() bool {
	return that.Count(Empty) == 0
}

// Balanced reports whether the marks respect strict alternation with X first.
func (that Board) Balanced() bool {
	x, o := that.Count(PlayerX), that.Count(PlayerO)
	return o <= x && x <= o+1
}

// String renders the board as three rows, empty cells as '.'.
func (that Board) String() string {
	var sb strings.Builder
	for i, cell := range that {
		if cell == Empty {
			sb.WriteByte('.')
		} else {
			sb.WriteString(string(cell))
		}

		if i%3 == 2 && i != BoardSize-1 {
			sb.WriteByte('/')
		}
	}

	return sb.String()
}

// ParseBoard reads the String form back. '.', '_' and '-' mark empty cells;
// '/', '|' and whitespace are ignored.
func ParseBoard(s string) (Board, error) {
	var board Board

	i := 0
	for _, r := range s {
		switch r {
		case '/', '|', ' ', '\n', '\t':
			continue
		}

		if i >= BoardSize {
			return Board{}, fmt.Errorf("%w: more than %d cells in %q", ErrInvalidBoard, BoardSize, s)
		}

		switch r {
		case 'X', 'x':
			board[i] = PlayerX
		case 'O', 'o':
			board[i] = PlayerO
		case '.', '_', '-':
			board[i] = Empty
		default:
			return Board{}, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidBoard, r, s)
		}
		i++
	}

	if i != BoardSize {
		return Board{}, fmt.Errorf("%w: %d cells in %q", ErrInvalidBoard, i, s)
	}

	return board, nil
}

// MustParseBoard is ParseBoard for fixtures.
func MustParseBoard(s string) Board {
	board, err := ParseBoard(s)
	if err != nil {
		panic(err)
	}

	return board
}
