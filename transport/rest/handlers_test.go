package rest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/breakgame/internal/bot"
	"github.com/rocketscienceinc/breakgame/internal/entity"
	"github.com/rocketscienceinc/breakgame/internal/repository"
	"github.com/rocketscienceinc/breakgame/internal/repository/storage/sqlite"
	"github.com/rocketscienceinc/breakgame/internal/scheduler"
	"github.com/rocketscienceinc/breakgame/internal/tictactoe"
	"github.com/rocketscienceinc/breakgame/internal/usecase"
)

type testServer struct {
	handler http.Handler
	clock   *scheduler.Manual
	games   *usecase.GameManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Init(context.Background()))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := scheduler.NewManual()
	games := usecase.NewGameManager(
		logger,
		repository.NewMemoryGameRepository(),
		repository.NewResultRepository(st.Connection),
		bot.NewBotService(bot.FixedChooser(0)),
		clock,
	)

	return &testServer{handler: NewRouter(logger, games), clock: clock, games: games}
}

func (that *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	that.handler.ServeHTTP(rr, req)

	return rr
}

func (that *testServer) create(t *testing.T) usecase.Snapshot {
	t.Helper()

	rr := that.do(t, http.MethodPost, "/games", "")
	require.Equal(t, http.StatusCreated, rr.Code)

	return decodeSnapshot(t, rr.Body)
}

func decodeSnapshot(t *testing.T, body io.Reader) usecase.Snapshot {
	t.Helper()

	var snapshot usecase.Snapshot
	require.NoError(t, json.NewDecoder(body).Decode(&snapshot))

	return snapshot
}

func TestPing(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodGet, "/ping", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pong", rr.Body.String())
}

func TestCreateAndGet(t *testing.T) {
	t.Run("Created game can be fetched", func(t *testing.T) {
		// Given: a created game
		srv := newTestServer(t)
		created := srv.create(t)

		// When: it is fetched by id
		rr := srv.do(t, http.MethodGet, "/games/"+created.ID, "")

		// Then: the same empty board comes back
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		got := decodeSnapshot(t, rr.Body)
		assert.Equal(t, created, got)
		assert.Equal(t, entity.Board{}, got.Board)
		assert.Equal(t, "Your turn (X)", got.Message)
	})

	t.Run("Unknown game is 404", func(t *testing.T) {
		srv := newTestServer(t)

		rr := srv.do(t, http.MethodGet, "/games/missing", "")

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Contains(t, rr.Body.String(), "game not found")
	})
}

func TestTurn(t *testing.T) {
	t.Run("Human move hands control to the computer", func(t *testing.T) {
		// Given: a new game
		srv := newTestServer(t)
		game := srv.create(t)

		// When: the human takes the center
		rr := srv.do(t, http.MethodPost, "/games/"+game.ID+"/turn", `{"cell": 4}`)

		// Then: the computer is thinking
		require.Equal(t, http.StatusOK, rr.Code)
		snapshot := decodeSnapshot(t, rr.Body)
		assert.Equal(t, entity.PlayerX, snapshot.Board[4])
		assert.False(t, snapshot.TurnActive)
		assert.Equal(t, tictactoe.PhaseComputerPending, snapshot.Phase)

		// When: the thinking delay elapses
		srv.clock.Advance(usecase.DefaultThinkingDelay)

		// Then: the computer answered
		rr = srv.do(t, http.MethodGet, "/games/"+game.ID, "")
		snapshot = decodeSnapshot(t, rr.Body)
		assert.Equal(t, entity.PlayerO, snapshot.Board[0])
		assert.True(t, snapshot.TurnActive)
	})

	t.Run("Rejected move returns the unchanged game", func(t *testing.T) {
		// Given: the computer is thinking
		srv := newTestServer(t)
		game := srv.create(t)
		srv.do(t, http.MethodPost, "/games/"+game.ID+"/turn", `{"cell": 4}`)

		// When: the human clicks again
		rr := srv.do(t, http.MethodPost, "/games/"+game.ID+"/turn", `{"cell": 0}`)

		// Then: it is not an error and nothing changed
		require.Equal(t, http.StatusOK, rr.Code)
		snapshot := decodeSnapshot(t, rr.Body)
		assert.Equal(t, entity.Empty, snapshot.Board[0])
		assert.Equal(t, 1, snapshot.Board.Count(entity.PlayerX))
	})

	t.Run("Malformed body is 400", func(t *testing.T) {
		srv := newTestServer(t)
		game := srv.create(t)

		for _, body := range []string{`{"cell":`, `{}`, `{"cell": "four"}`} {
			rr := srv.do(t, http.MethodPost, "/games/"+game.ID+"/turn", body)

			assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		}
	})

	t.Run("Unknown game is 404", func(t *testing.T) {
		srv := newTestServer(t)

		rr := srv.do(t, http.MethodPost, "/games/missing/turn", `{"cell": 4}`)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestReset(t *testing.T) {
	// Given: the computer is thinking
	srv := newTestServer(t)
	game := srv.create(t)
	srv.do(t, http.MethodPost, "/games/"+game.ID+"/turn", `{"cell": 4}`)

	// When: the game is reset and the delay elapses
	rr := srv.do(t, http.MethodPost, "/games/"+game.ID+"/reset", "")
	srv.clock.Advance(time.Second)

	// Then: the board is empty and stays empty
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, entity.Board{}, decodeSnapshot(t, rr.Body).Board)

	rr = srv.do(t, http.MethodGet, "/games/"+game.ID, "")
	assert.Equal(t, entity.Board{}, decodeSnapshot(t, rr.Body).Board)
}

func TestClose(t *testing.T) {
	// Given: a game
	srv := newTestServer(t)
	game := srv.create(t)

	// When: it is deleted
	rr := srv.do(t, http.MethodDelete, "/games/"+game.ID, "")

	// Then: it is gone
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/games/"+game.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodDelete, "/games/"+game.ID, "").Code)
}

func TestStats(t *testing.T) {
	// Given: a game the computer wins
	srv := newTestServer(t)
	game := srv.create(t)
	for _, cell := range []string{"1", "2", "3"} {
		rr := srv.do(t, http.MethodPost, "/games/"+game.ID+"/turn", `{"cell": `+cell+`}`)
		require.Equal(t, http.StatusOK, rr.Code)
		srv.clock.Advance(usecase.DefaultThinkingDelay)
	}

	// When: the stats are requested
	rr := srv.do(t, http.MethodGet, "/stats", "")

	// Then: the win is counted
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"human_wins":0,"computer_wins":1,"draws":0}`, rr.Body.String())
}

type failingGames struct {
	gameUseCase
}

func (failingGames) Stats(context.Context) (entity.Stats, error) {
	return entity.Stats{}, errors.New("database is locked")
}

func TestInternalError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewRouter(logger, failingGames{})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "database is locked")
}

// readEvent returns the next line starting with prefix, skipping the rest.
func readEvent(t *testing.T, r *bufio.Reader, prefix string) string {
	t.Helper()

	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)

		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
}

func TestEvents(t *testing.T) {
	t.Run("Streams snapshots until the game is closed", func(t *testing.T) {
		// Given: a subscribed client
		srv := newTestServer(t)
		ts := httptest.NewServer(srv.handler)
		defer ts.Close()

		game := srv.create(t)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/games/"+game.ID+"/events", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
		stream := bufio.NewReader(resp.Body)

		// Then: the current game arrives first
		assert.Equal(t, "game", readEvent(t, stream, "event: "))
		first := decodeSnapshot(t, strings.NewReader(readEvent(t, stream, "data: ")))
		assert.Equal(t, game.ID, first.ID)

		// When: the human moves
		srv.do(t, http.MethodPost, "/games/"+game.ID+"/turn", `{"cell": 4}`)

		// Then: the move is streamed
		moved := decodeSnapshot(t, strings.NewReader(readEvent(t, stream, "data: ")))
		assert.Equal(t, entity.PlayerX, moved.Board[4])

		// When: the game is closed
		srv.do(t, http.MethodDelete, "/games/"+game.ID, "")

		// Then: the stream ends
		_, err = io.ReadAll(stream)
		require.NoError(t, err)
	})

	t.Run("Heartbeat keeps the stream alive", func(t *testing.T) {
		interval := heartbeatInterval
		heartbeatInterval = 10 * time.Millisecond
		defer func() { heartbeatInterval = interval }()

		srv := newTestServer(t)
		ts := httptest.NewServer(srv.handler)
		defer ts.Close()
		game := srv.create(t)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/games/"+game.ID+"/events", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, "ping", readEvent(t, bufio.NewReader(resp.Body), ": "))
	})

	t.Run("Unknown game is 404", func(t *testing.T) {
		srv := newTestServer(t)
		ts := httptest.NewServer(srv.handler)
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/games/missing/events")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
