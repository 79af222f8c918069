package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrInvalidCell      = errors.New("invalid cell index")
	ErrNoAvailableMoves = errors.New("no available moves")
	ErrGameNotFound     = errors.New("game not found")
)

// IsRejectedMove reports whether err is one of the move rejections that
// callers are expected to swallow as a no-op.
func IsRejectedMove(err error) bool {
	return errors.Is(err, ErrGameFinished) ||
		errors.Is(err, ErrNotYourTurn) ||
		errors.Is(err, ErrCellOccupied) ||
		errors.Is(err, ErrInvalidCell)
}
