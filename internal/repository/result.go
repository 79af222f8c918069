package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rocketscienceinc/breakgame/internal/entity"
)

type ResultRepository interface {
	Save(ctx context.Context, result *entity.Result) error
	Stats(ctx context.Context) (entity.Stats, error)
}

type dbResult struct {
	conn *sqlx.DB
}

// NewResultRepository stores finished games in the sqlite results table.
func NewResultRepository(conn *sqlx.DB) ResultRepository {
	return &dbResult{conn: conn}
}

func (that *dbResult) Save(ctx context.Context, result *entity.Result) error {
	query := `INSERT INTO results (game_id, status, moves, finished_at) VALUES (?, ?, ?, ?)`

	_, err := that.conn.ExecContext(ctx, query, result.GameID, string(result.Status), result.Moves, result.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	return nil
}

func (that *dbResult) Stats(ctx context.Context) (entity.Stats, error) {
	query := `SELECT status, COUNT(*) AS count FROM results GROUP BY status`

	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}

	if err := that.conn.SelectContext(ctx, &rows, query); err != nil {
		return entity.Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}

	var stats entity.Stats
	for _, row := range rows {
		switch entity.Status(row.Status) {
		case entity.StatusHumanWins:
			stats.HumanWins = row.Count
		case entity.StatusComputerWins:
			stats.ComputerWins = row.Count
		case entity.StatusDraw:
			stats.Draws = row.Count
		}
	}

	return stats, nil
}
