package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketscienceinc/breakgame/internal/bot"
	"github.com/rocketscienceinc/breakgame/internal/config"
	"github.com/rocketscienceinc/breakgame/internal/repository"
	"github.com/rocketscienceinc/breakgame/internal/repository/storage"
	"github.com/rocketscienceinc/breakgame/internal/repository/storage/sqlite"
	"github.com/rocketscienceinc/breakgame/internal/scheduler"
	"github.com/rocketscienceinc/breakgame/internal/usecase"
	"github.com/rocketscienceinc/breakgame/transport/rest"
)

const shutdownTimeout = 5 * time.Second

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	gameRepo, closeGames, err := initGameRepository(ctx, conf)
	if err != nil {
		return err
	}

	defer func() {
		if err = closeGames(); err != nil {
			log.Error("could not close game storage", "error", err)
		}
	}()

	sqliteStorage, err := sqlite.New(conf.SQLiteStoragePath)
	if err != nil {
		return fmt.Errorf("could not open sqlite storage: %w", err)
	}

	defer func() {
		if err = sqliteStorage.Close(); err != nil {
			log.Error("could not close sqlite storage", "error", err)
		}
	}()

	if err = sqliteStorage.Init(ctx); err != nil {
		return fmt.Errorf("could not init sqlite storage: %w", err)
	}

	resultRepo := repository.NewResultRepository(sqliteStorage.Connection)
	botService := bot.NewBotService(bot.NewRandomChooser(conf.RandomSeed))
	gameUseCase := usecase.NewGameManager(
		logger,
		gameRepo,
		resultRepo,
		botService,
		scheduler.NewTimerScheduler(),
		usecase.WithThinkingDelay(conf.ThinkingDelay),
	)
	defer gameUseCase.Shutdown()

	// run HTTP server
	server := rest.New(logger, conf.HTTPPort, gameUseCase)
	httpErrCh := make(chan error, 1)
	go func() {
		if httpErr := server.Start(); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// open event streams end when the game manager shuts down
	gameUseCase.Shutdown()

	if err = server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return nil
}

// initGameRepository picks the game storage named in the config.
func initGameRepository(ctx context.Context, conf *config.Config) (repository.GameRepository, func() error, error) {
	if conf.Storage == config.StorageMemory {
		return repository.NewMemoryGameRepository(), func() error { return nil }, nil
	}

	if conf.Redis.Host == "" {
		return nil, nil, ErrAddrNotFound
	}
	redisAddrString := conf.Redis.GetRedisAddr()

	redisStorage, err := storage.NewRedis(ctx, redisAddrString, conf.Redis.Password, conf.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	return repository.NewGameRepository(redisStorage, conf.Redis.TTL), redisStorage.Close, nil
}
