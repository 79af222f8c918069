package usecase

import (
	"github.com/rocketscienceinc/breakgame/internal/entity"
	"github.com/rocketscienceinc/breakgame/internal/tictactoe"
)

const (
	messageHumanTurn    = "Your turn (X)"
	messageThinking     = "Computer (O) thinking..."
	messageHumanWins    = "Game Over! You Win!"
	messageComputerWins = "Game Over! Computer Wins!"
	messageDraw         = "Draw!"
)

// Snapshot is a read-only view of a session handed to the presentation layer.
type Snapshot struct {
	ID         string          `json:"id"`
	Board      entity.Board    `json:"board"`
	TurnActive bool            `json:"turn_active"`
	Phase      tictactoe.Phase `json:"phase"`
	Status     entity.Status   `json:"status"`
	Winner     entity.Mark     `json:"winner,omitempty"`
	Line       []int           `json:"line,omitempty"`
	Message    string          `json:"message"`
}

func newSnapshot(id string, game *tictactoe.Game) Snapshot {
	outcome := game.Outcome()

	return Snapshot{
		ID:         id,
		Board:      game.Board,
		TurnActive: game.TurnActive,
		Phase:      game.Phase(),
		Status:     outcome.Status,
		Winner:     outcome.Winner,
		Line:       outcome.Line,
		Message:    statusMessage(game, outcome),
	}
}

func statusMessage(game *tictactoe.Game, outcome entity.Outcome) string {
	switch {
	case outcome.Status == entity.StatusHumanWins:
		return messageHumanWins
	case outcome.Status == entity.StatusComputerWins:
		return messageComputerWins
	case outcome.Status == entity.StatusDraw:
		return messageDraw
	case !game.TurnActive && game.Board.Count(entity.Empty) < entity.BoardSize:
		return messageThinking
	default:
		return messageHumanTurn
	}
}
