package usecase

import (
	"context"

	"github.com/rocketscienceinc/breakgame/internal/entity"
	"github.com/stretchr/testify/mock"
)

type mockGameRepo struct {
	mock.Mock
}

func (m *mockGameRepo) CreateOrUpdate(ctx context.Context, game *entity.GameState) error {
	return m.Called(ctx, game).Error(0)
}

func (m *mockGameRepo) GetByID(ctx context.Context, id string) (*entity.GameState, error) {
	args := m.Called(ctx, id)

	game, _ := args.Get(0).(*entity.GameState)
	return game, args.Error(1)
}

func (m *mockGameRepo) DeleteByID(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockResultRepo struct {
	mock.Mock
}

func (m *mockResultRepo) Save(ctx context.Context, result *entity.Result) error {
	return m.Called(ctx, result).Error(0)
}

func (m *mockResultRepo) Stats(ctx context.Context) (entity.Stats, error) {
	args := m.Called(ctx)

	return args.Get(0).(entity.Stats), args.Error(1)
}

// resultWith matches a saved result by status and move count.
func resultWith(status entity.Status, moves int) interface{} {
	return mock.MatchedBy(func(result *entity.Result) bool {
		return result.Status == status && result.Moves == moves
	})
}
