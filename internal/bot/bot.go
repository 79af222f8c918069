package bot

import (
	"fmt"

	"github.com/rocketscienceinc/breakgame/internal/apperror"
	"github.com/rocketscienceinc/breakgame/internal/entity"
	"github.com/rocketscienceinc/breakgame/internal/tictactoe"
)

const centerCell = 4

var cornerCells = [4]int{0, 2, 6, 8}

// ComputeMove picks the computer's reply. Rules, first match wins:
// complete an own line, block a human line, take the center, take a random
// free corner, take a random free cell. It looks one ply ahead only, so a
// human fork beats it. ok is false when the board is full.
func ComputeMove(board entity.Board, chooser Chooser) (int, bool) {
	free := board.EmptyCells()
	if len(free) == 0 {
		return 0, false
	}

	if cell, found := completingCell(board, entity.PlayerO); found {
		return cell, true
	}

	if cell, found := completingCell(board, entity.PlayerX); found {
		return cell, true
	}

	if board[centerCell] == entity.Empty {
		return centerCell, true
	}

	corners := make([]int, 0, len(cornerCells))
	for _, cell := range cornerCells {
		if board[cell] == entity.Empty {
			corners = append(corners, cell)
		}
	}

	if len(corners) > 0 {
		return corners[chooser.Intn(len(corners))], true
	}

	return free[chooser.Intn(len(free))], true
}

// completingCell finds the first line holding two of mark and one empty cell.
func completingCell(board entity.Board, mark entity.Mark) (int, bool) {
	for _, combo := range entity.WinCombos {
		count, empty := 0, -1
		for _, cell := range combo {
			switch board[cell] {
			case mark:
				count++
			case entity.Empty:
				empty = cell
			}
		}

		if count == 2 && empty >= 0 {
			return empty, true
		}
	}

	return 0, false
}

// Service plays the computer's side of a game.
type Service interface {
	MakeTurn(game *tictactoe.Game) (int, error)
}

type botService struct {
	chooser Chooser
}

func NewBotService(chooser Chooser) Service {
	return &botService{chooser: chooser}
}

// MakeTurn computes and applies the computer's move. With no legal move it
// hands the turn back and returns ErrNoAvailableMoves.
func (that *botService) MakeTurn(game *tictactoe.Game) (int, error) {
	cell, ok := ComputeMove(game.Board, that.chooser)
	if !ok {
		game.YieldTurn()
		return 0, apperror.ErrNoAvailableMoves
	}

	if err := game.ApplyComputerMove(cell); err != nil {
		return 0, fmt.Errorf("bot failed to make turn: %w", err)
	}

	return cell, nil
}
