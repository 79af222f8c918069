package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/breakgame/internal/apperror"
	"github.com/rocketscienceinc/breakgame/internal/bot"
	"github.com/rocketscienceinc/breakgame/internal/entity"
	"github.com/rocketscienceinc/breakgame/internal/scheduler"
	"github.com/rocketscienceinc/breakgame/internal/tictactoe"
)

const (
	DefaultThinkingDelay = 500 * time.Millisecond

	computerTurnTimeout = 5 * time.Second
)

type gameRepo interface {
	CreateOrUpdate(ctx context.Context, game *entity.GameState) error
	GetByID(ctx context.Context, id string) (*entity.GameState, error)
	DeleteByID(ctx context.Context, id string) error
}

type resultRepo interface {
	Save(ctx context.Context, result *entity.Result) error
	Stats(ctx context.Context) (entity.Stats, error)
}

type session struct {
	id   string
	game *tictactoe.Game

	// pending is the scheduled computer step, zero when none.
	pending scheduler.Handle
	// generation changes on reset and close so stale computer steps drop out.
	generation uint64
	recorded   bool

	subs map[*subscriber]struct{}
}

type subscriber struct {
	ch   chan Snapshot
	done chan struct{}
}

// GameManager owns every running session. All engine access happens under
// mu: the computer step fires on a timer goroutine.
type GameManager struct {
	logger *slog.Logger

	gameRepo   gameRepo
	resultRepo resultRepo
	bot        bot.Service
	scheduler  scheduler.Scheduler

	thinkingDelay time.Duration
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type Option func(*GameManager)

// WithThinkingDelay overrides the pause before the computer replies.
func WithThinkingDelay(d time.Duration) Option {
	return func(that *GameManager) {
		that.thinkingDelay = d
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(that *GameManager) {
		that.now = now
	}
}

func NewGameManager(
	logger *slog.Logger,
	gameRepo gameRepo,
	resultRepo resultRepo,
	botService bot.Service,
	sched scheduler.Scheduler,
	opts ...Option,
) *GameManager {
	manager := &GameManager{
		logger: logger.With("component", "game_manager"),

		gameRepo:   gameRepo,
		resultRepo: resultRepo,
		bot:        botService,
		scheduler:  sched,

		thinkingDelay: DefaultThinkingDelay,
		now:           time.Now,

		sessions: make(map[string]*session),
	}

	for _, opt := range opts {
		opt(manager)
	}

	return manager
}

// CreateGame starts a new session with the human to move.
func (that *GameManager) CreateGame(ctx context.Context) (Snapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	s := &session{
		id:   uuid.NewString(),
		game: tictactoe.New(),
		subs: make(map[*subscriber]struct{}),
	}

	if err := that.saveGame(ctx, s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to create game: %w", err)
	}

	that.sessions[s.id] = s
	that.logger.Info("game created", "gameID", s.id)

	return newSnapshot(s.id, s.game), nil
}

func (that *GameManager) GetGame(ctx context.Context, id string) (Snapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	s, err := that.getSession(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}

	return newSnapshot(s.id, s.game), nil
}

// MakeTurn applies the human move. A move the engine rejects is a no-op:
// the unchanged snapshot comes back without an error.
func (that *GameManager) MakeTurn(ctx context.Context, id string, cell int) (Snapshot, error) {
	log := that.logger.With("method", "MakeTurn", "gameID", id, "cell", cell)

	that.mu.Lock()
	defer that.mu.Unlock()

	s, err := that.getSession(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}

	before := *s.game
	if err = s.game.ApplyHumanMove(cell); err != nil {
		if apperror.IsRejectedMove(err) {
			log.Debug("move ignored", "reason", err)
			return newSnapshot(s.id, s.game), nil
		}

		return Snapshot{}, fmt.Errorf("failed make turn: %w", err)
	}

	// the computer has no reply on a full board
	if s.game.Board.IsFull() {
		s.game.YieldTurn()
	}

	if err = that.afterMove(ctx, s); err != nil {
		// an unsaved move would leave the computer pending with nothing scheduled
		*s.game = before
		return Snapshot{}, err
	}

	if s.game.ComputerToMove() {
		that.scheduleComputerTurn(s)
	}

	return newSnapshot(s.id, s.game), nil
}

// ResetGame clears the board. A computer step still waiting is cancelled.
func (that *GameManager) ResetGame(ctx context.Context, id string) (Snapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	s, err := that.getSession(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}

	that.cancelPending(s)
	s.game.Reset()
	s.recorded = false

	if err = that.saveGame(ctx, s); err != nil {
		return Snapshot{}, fmt.Errorf("failed reset game: %w", err)
	}

	that.publish(s)
	that.logger.Info("game reset", "gameID", id)

	return newSnapshot(s.id, s.game), nil
}

// CloseGame tears a session down: the pending computer step is cancelled,
// subscribers are released and the stored game is removed.
func (that *GameManager) CloseGame(ctx context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	s, inMemory := that.sessions[id]
	if inMemory {
		that.cancelPending(s)
		that.closeSubscribers(s)
		delete(that.sessions, id)
	}

	err := that.gameRepo.DeleteByID(ctx, id)
	switch {
	case errors.Is(err, apperror.ErrGameNotFound) && inMemory:
		// never persisted or already expired
	case err != nil:
		return fmt.Errorf("failed delete game: %w", err)
	}

	that.logger.Info("game closed", "gameID", id)

	return nil
}

// Subscribe streams snapshots of a session. A subscriber that falls behind
// only sees the latest snapshot. The returned func unsubscribes; cancelling
// ctx does the same.
func (that *GameManager) Subscribe(ctx context.Context, id string) (<-chan Snapshot, func(), error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	s, err := that.getSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	sub := &subscriber{
		ch:   make(chan Snapshot, 1),
		done: make(chan struct{}),
	}
	sub.ch <- newSnapshot(s.id, s.game)
	s.subs[sub] = struct{}{}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			that.mu.Lock()
			defer that.mu.Unlock()

			that.dropSubscriber(s, sub)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-sub.done:
		}
	}()

	return sub.ch, unsubscribe, nil
}

func (that *GameManager) Stats(ctx context.Context) (entity.Stats, error) {
	stats, err := that.resultRepo.Stats(ctx)
	if err != nil {
		return entity.Stats{}, fmt.Errorf("failed get stats: %w", err)
	}

	that.logger.Debug("stats read", "games", stats.Total())

	return stats, nil
}

// Shutdown cancels every pending computer step and releases subscribers.
func (that *GameManager) Shutdown() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, s := range that.sessions {
		that.cancelPending(s)
		that.closeSubscribers(s)
	}
}

// getSession returns the live session, restoring it from storage if the
// process does not hold it. Caller must hold mu.
func (that *GameManager) getSession(ctx context.Context, id string) (*session, error) {
	if s, ok := that.sessions[id]; ok {
		return s, nil
	}

	state, err := that.gameRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	if !state.Board.Balanced() {
		return nil, fmt.Errorf("failed to restore game %s: %w: %s", id, entity.ErrInvalidBoard, state.Board)
	}

	s := &session{
		id:   state.ID,
		game: &tictactoe.Game{Board: state.Board, TurnActive: state.TurnActive},
		subs: make(map[*subscriber]struct{}),
	}

	// stored between turns with the flag off: the human holds the move
	if !s.game.TurnActive && s.game.Phase() == tictactoe.PhaseComputerPending && !s.game.ComputerToMove() {
		s.game.TurnActive = true
	}
	s.recorded = s.game.Outcome().IsOver()
	that.sessions[id] = s

	// the process stopped while the computer was thinking
	if s.game.ComputerToMove() {
		that.scheduleComputerTurn(s)
	}

	that.logger.Info("game restored", "gameID", id, "board", s.game.Board.String())

	return s, nil
}

// scheduleComputerTurn arms the delayed computer step. Caller must hold mu.
func (that *GameManager) scheduleComputerTurn(s *session) {
	generation := s.generation
	s.pending = that.scheduler.ScheduleAfter(that.thinkingDelay, func() {
		that.computerTurn(s.id, generation)
	})
}

func (that *GameManager) computerTurn(id string, generation uint64) {
	log := that.logger.With("method", "computerTurn", "gameID", id)

	ctx, cancel := context.WithTimeout(context.Background(), computerTurnTimeout)
	defer cancel()

	that.mu.Lock()
	defer that.mu.Unlock()

	s, ok := that.sessions[id]
	if !ok || s.generation != generation || !s.game.ComputerToMove() {
		log.Debug("stale computer turn dropped")
		return
	}
	s.pending = 0

	cell, err := that.bot.MakeTurn(s.game)
	switch {
	case errors.Is(err, apperror.ErrNoAvailableMoves):
		log.Debug("no move available")
	case err != nil:
		log.Error("bot failed to make turn", "error", err)
		return
	default:
		log.Debug("computer moved", "cell", cell)
	}

	if err = that.afterMove(ctx, s); err != nil {
		log.Error("failed to store computer turn", "error", err)
	}
}

// afterMove persists, publishes and records a finished game. Caller must
// hold mu.
func (that *GameManager) afterMove(ctx context.Context, s *session) error {
	if err := that.saveGame(ctx, s); err != nil {
		return fmt.Errorf("failed update game: %w", err)
	}

	that.publish(s)

	if outcome := s.game.Outcome(); outcome.IsOver() && !s.recorded {
		that.recordResult(ctx, s, outcome)
	}

	return nil
}

func (that *GameManager) recordResult(ctx context.Context, s *session, outcome entity.Outcome) {
	log := that.logger.With("method", "recordResult", "gameID", s.id)

	result := &entity.Result{
		GameID:     s.id,
		Status:     outcome.Status,
		Moves:      entity.BoardSize - s.game.Board.Count(entity.Empty),
		FinishedAt: that.now(),
	}

	if err := that.resultRepo.Save(ctx, result); err != nil {
		log.Error("failed to save result", "error", err)
		return
	}
	s.recorded = true

	log.Info("game finished", "status", outcome.Status, "moves", result.Moves)
}

func (that *GameManager) saveGame(ctx context.Context, s *session) error {
	state := &entity.GameState{
		ID:         s.id,
		Board:      s.game.Board,
		TurnActive: s.game.TurnActive,
		UpdatedAt:  that.now(),
	}

	if err := that.gameRepo.CreateOrUpdate(ctx, state); err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}

	return nil
}

// cancelPending drops the scheduled computer step, if any, and invalidates
// one that already fired but is waiting for mu. Caller must hold mu.
func (that *GameManager) cancelPending(s *session) {
	if s.pending != 0 {
		that.scheduler.Cancel(s.pending)
		s.pending = 0
	}
	s.generation++
}

// publish hands the current snapshot to every subscriber, replacing one it
// has not read yet. Caller must hold mu.
func (that *GameManager) publish(s *session) {
	snapshot := newSnapshot(s.id, s.game)

	for sub := range s.subs {
		select {
		case <-sub.ch:
		default:
		}

		select {
		case sub.ch <- snapshot:
		default:
		}
	}
}

func (that *GameManager) closeSubscribers(s *session) {
	for sub := range s.subs {
		that.dropSubscriber(s, sub)
	}
}

// dropSubscriber closes a subscriber once. Caller must hold mu.
func (that *GameManager) dropSubscriber(s *session, sub *subscriber) {
	if _, ok := s.subs[sub]; !ok {
		return
	}

	delete(s.subs, sub)
	close(sub.ch)
	close(sub.done)
}
