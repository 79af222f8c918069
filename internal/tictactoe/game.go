package tictactoe

import (
	"github.com/rocketscienceinc/breakgame/internal/apperror"
	"github.com/rocketscienceinc/breakgame/internal/entity"
)

type Phase string

const (
	PhaseHumanTurn       Phase = "human_turn"
	PhaseComputerPending Phase = "computer_pending"
	PhaseGameOver        Phase = "game_over"
)

// Game is the state of one human-vs-computer match. The human plays X and
// always moves first; TurnActive is true while the human holds the move.
type Game struct {
	Board      entity.Board `json:"board"`
	TurnActive bool         `json:"turn_active"`
}

func New() *Game {
	return &Game{TurnActive: true}
}

func (that *Game) Outcome() entity.Outcome {
	return entity.DetectOutcome(that.Board)
}

func (that *Game) Phase() Phase {
	switch {
	case that.Outcome().IsOver():
		return PhaseGameOver
	case that.TurnActive:
		return PhaseHumanTurn
	default:
		return PhaseComputerPending
	}
}

// ComputerToMove reports whether the computer step should run now.
func (that *Game) ComputerToMove() bool {
	return that.Phase() == PhaseComputerPending &&
		that.Board.Count(entity.PlayerX) > that.Board.Count(entity.PlayerO)
}

// ApplyHumanMove places X and hands the move to the computer. A rejected
// move leaves the game untouched.
func (that *Game) ApplyHumanMove(cell int) error {
	if err := that.validateHumanMove(cell); err != nil {
		return err
	}

	that.Board[cell] = entity.PlayerX
	that.TurnActive = false

	return nil
}

// validateHumanMove - checks if the human move is valid.
func (that *Game) validateHumanMove(cell int) error {
	if that.Outcome().IsOver() {
		return apperror.ErrGameFinished
	}

	if !that.TurnActive {
		return apperror.ErrNotYourTurn
	}

	if cell < 0 || cell >= len(that.Board) {
		return apperror.ErrInvalidCell
	}

	if that.Board[cell] != entity.Empty {
		return apperror.ErrCellOccupied
	}

	return nil
}

// ApplyComputerMove places O and gives the move back to the human. An
// occupied cell is skipped but the turn is still handed back.
func (that *Game) ApplyComputerMove(cell int) error {
	if that.Outcome().IsOver() {
		return apperror.ErrGameFinished
	}

	if !that.ComputerToMove() {
		return apperror.ErrNotYourTurn
	}

	if cell < 0 || cell >= len(that.Board) {
		return apperror.ErrInvalidCell
	}

	if that.Board[cell] == entity.Empty {
		that.Board[cell] = entity.PlayerO
	}
	that.TurnActive = true

	return nil
}

// YieldTurn returns the move to the human when the computer has none.
func (that *Game) YieldTurn() {
	that.TurnActive = true
}

func (that *Game) Reset() {
	that.Board = entity.Board{}
	that.TurnActive = true
}
