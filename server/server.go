// Package server exposes the chat and tool endpoints over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"toolchat/model"
	"toolchat/storage"
	"toolchat/tools"
)

const maxBodyBytes = 4 << 20

// Models resolves model ids to providers. *provider.Registry implements it.
type Models interface {
	Resolve(modelID string) (model.Provider, model.ChatOptions, error)
	Models() []model.ModelInfo
	Default() string
}

// Store is the chat persistence the handlers need. *storage.Store implements it.
type Store interface {
	EnsureChat(ctx context.Context, chatID, modelID, firstMessage string) (string, error)
	SaveMessage(ctx context.Context, chatID, role, content string) (*storage.Message, error)
	DeleteChat(ctx context.Context, chatID string) error
	Ping(ctx context.Context) error
}

type Server struct {
	models  Models
	store   Store
	invoker *tools.Invoker
	logger  *slog.Logger
}

func New(models Models, store Store, invoker *tools.Invoker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		models:  models,
		store:   store,
		invoker: invoker,
		logger:  logger.With("component", "server"),
	}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("DELETE /api/chat", s.handleDeleteChat)
	mux.HandleFunc("POST /api/tools/chat", s.handleToolChat)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /api/tools", s.handleTools)
	mux.HandleFunc("POST /api/tools/invoke", s.handleInvoke)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streams flushing through the wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Models  []model.ModelInfo `json:"models"`
		Default string            `json:"default"`
	}{s.models.Models(), s.models.Default()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chatID := q.Get("id")
	if chatID == "" {
		chatID = q.Get("chatId")
	}
	if chatID == "" {
		writeError(w, http.StatusBadRequest, "Chat ID is required")
		return
	}

	err := s.store.DeleteChat(r.Context(), chatID)
	switch {
	case errors.Is(err, storage.ErrChatNotFound):
		writeError(w, http.StatusNotFound, "Chat not found")
	case err != nil:
		s.logger.Error("failed to delete chat", "chat", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error deleting chat")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": chatID})
	}
}
