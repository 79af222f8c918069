package entity

type Status string

const (
	StatusInProgress   Status = "in_progress"
	StatusHumanWins    Status = "human_wins"
	StatusComputerWins Status = "computer_wins"
	StatusDraw         Status = "draw"
)

// WinCombos lists the winning lines in scan order: rows top to bottom,
// columns left to right, main diagonal, anti-diagonal.
var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Outcome is derived from a board, never stored.
type Outcome struct {
	Status Status `json:"status"`
	Winner Mark   `json:"winner,omitempty"`
	Line   []int  `json:"line,omitempty"`
}

func (that Outcome) IsOver() bool {
	return that.Status != StatusInProgress
}

// DetectOutcome reports the first complete line in WinCombos order, a draw
// when the board is full without one, and in-progress otherwise.
func DetectOutcome(board Board) Outcome {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != Empty && a == b && b == c {
			return Outcome{
				Status: winStatus(a),
				Winner: a,
				Line:   []int{combo[0], combo[1], combo[2]},
			}
		}
	}

	// the game continues until all the cells are taken
	if !board.IsFull() {
		return Outcome{Status: StatusInProgress}
	}

	return Outcome{Status: StatusDraw}
}

func winStatus(mark Mark) Status {
	if mark == PlayerX {
		return StatusHumanWins
	}

	return StatusComputerWins
}
