package entity

import "time"

// GameState is the persisted form of one session's game.
type GameState struct {
	ID         string    `json:"id"`
	Board      Board     `json:"board"`
	TurnActive bool      `json:"turn_active"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Result records a finished game.
type Result struct {
	GameID     string
	Status     Status
	Moves      int
	FinishedAt time.Time
}

type Stats struct {
	HumanWins    int `json:"human_wins"`
	ComputerWins int `json:"computer_wins"`
	Draws        int `json:"draws"`
}

func (that Stats) Total() int {
	return that.HumanWins + that.ComputerWins + that.Draws
}
