package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rocketscienceinc/breakgame/internal/apperror"
	"github.com/rocketscienceinc/breakgame/internal/entity"
	"github.com/rocketscienceinc/breakgame/internal/usecase"
)

var heartbeatInterval = 15 * time.Second

type gameUseCase interface {
	CreateGame(ctx context.Context) (usecase.Snapshot, error)
	GetGame(ctx context.Context, id string) (usecase.Snapshot, error)
	MakeTurn(ctx context.Context, id string, cell int) (usecase.Snapshot, error)
	ResetGame(ctx context.Context, id string) (usecase.Snapshot, error)
	CloseGame(ctx context.Context, id string) error
	Subscribe(ctx context.Context, id string) (<-chan usecase.Snapshot, func(), error)
	Stats(ctx context.Context) (entity.Stats, error)
}

type handlers struct {
	logger *slog.Logger
	games  gameUseCase
}

type turnRequest struct {
	Cell *int `json:"cell"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (that *handlers) create(w http.ResponseWriter, r *http.Request) {
	snapshot, err := that.games.CreateGame(r.Context())
	if err != nil {
		that.fail(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusCreated, snapshot)
}

func (that *handlers) get(w http.ResponseWriter, r *http.Request) {
	snapshot, err := that.games.GetGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.fail(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, snapshot)
}

// turn answers 200 with the unchanged game when the move is not allowed.
func (that *handlers) turn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		that.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if req.Cell == nil {
		that.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "cell is required"})
		return
	}

	snapshot, err := that.games.MakeTurn(r.Context(), chi.URLParam(r, "id"), *req.Cell)
	if err != nil {
		that.fail(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, snapshot)
}

func (that *handlers) reset(w http.ResponseWriter, r *http.Request) {
	snapshot, err := that.games.ResetGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.fail(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, snapshot)
}

func (that *handlers) close(w http.ResponseWriter, r *http.Request) {
	if err := that.games.CloseGame(r.Context(), chi.URLParam(r, "id")); err != nil {
		that.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (that *handlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := that.games.Stats(r.Context())
	if err != nil {
		that.fail(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, stats)
}

// events streams every snapshot of the game as a server-sent event until the
// client goes away or the game is closed.
func (that *handlers) events(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "events", "gameID", chi.URLParam(r, "id"))

	flusher, ok := w.(http.Flusher)
	if !ok {
		that.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	ctx := r.Context()
	updates, unsubscribe, err := that.games.Subscribe(ctx, chi.URLParam(r, "id"))
	if err != nil {
		that.fail(w, r, err)
		return
	}
	defer unsubscribe()

	// the stream outlives the server write timeout
	if err = http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("failed to clear write deadline", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case snapshot, open := <-updates:
			if !open {
				return
			}

			data, err := json.Marshal(snapshot)
			if err != nil {
				log.Error("failed to encode snapshot", "error", err)
				return
			}

			_, _ = fmt.Fprintf(w, "event: game\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (that *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, apperror.ErrGameNotFound) {
		that.writeJSON(w, http.StatusNotFound, errorResponse{Error: apperror.ErrGameNotFound.Error()})
		return
	}

	that.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"requestID", middleware.GetReqID(r.Context()),
		"error", err,
	)
	that.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}

func (that *handlers) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		that.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestID", middleware.GetReqID(r.Context()),
		)
	})
}
