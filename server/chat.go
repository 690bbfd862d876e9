package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"toolchat/model"
	"toolchat/provider"
	"toolchat/storage"
	"toolchat/stream"
)

// genericChatError is shown for every setup failure; backend details stay
// in the log.
const genericChatError = "An error occurred during chat completion"

type chatRequest struct {
	Messages []model.Message `json:"messages"`
	ChatID   string          `json:"chatId,omitempty"`
	ModelID  string          `json:"modelId,omitempty"`
}

// runner is implemented by *stream.Relay and *stream.Reemitter.
type runner interface {
	Run(ctx context.Context, upstream io.Reader, w *stream.Writer) error
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.serveChat(w, r, false)
}

func (s *Server) handleToolChat(w http.ResponseWriter, r *http.Request) {
	s.serveChat(w, r, true)
}

// serveChat validates the request, records the chat and user turn, starts
// the completion and streams it back. Everything that can fail before the
// first byte is answered with a JSON error; afterwards the stream just ends.
func (s *Server) serveChat(w http.ResponseWriter, r *http.Request, withTools bool) {
	ctx := r.Context()

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.logger.Warn("invalid chat request body", "error", err)
		writeError(w, http.StatusBadRequest, genericChatError)
		return
	}
	if withTools && req.ModelID == "" {
		writeError(w, http.StatusBadRequest, "Model ID is required")
		return
	}
	if err := model.ValidateConversation(req.Messages); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, opts, err := s.models.Resolve(req.ModelID)
	if err != nil {
		s.logger.Warn("model not available", "model", req.ModelID, "error", err)
		writeError(w, http.StatusBadRequest, genericChatError)
		return
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = s.models.Default()
	}

	chatID, err := s.store.EnsureChat(ctx, req.ChatID, modelID, model.FirstContent(req.Messages))
	if err != nil {
		s.logger.Error("failed to record chat", "chat", req.ChatID, "error", err)
		writeError(w, http.StatusInternalServerError, genericChatError)
		return
	}
	if last, _ := model.Last(req.Messages); last.Role == model.RoleUser {
		if _, err := s.store.SaveMessage(ctx, chatID, string(last.Role), last.Content); err != nil {
			if errors.Is(err, storage.ErrChatNotFound) {
				writeError(w, http.StatusNotFound, "Chat not found")
				return
			}
			s.logger.Error("failed to save user message", "chat", chatID, "error", err)
			writeError(w, http.StatusInternalServerError, genericChatError)
			return
		}
	}

	if withTools {
		opts.Tools = s.invoker.Registry().Tools()
	}

	upstream, err := p.GenerateChatCompletion(ctx, req.Messages, opts)
	if err != nil {
		s.logger.Error("chat completion failed", "model", modelID, "provider", p.ID(), "error", err)
		writeError(w, setupStatus(err), genericChatError)
		return
	}
	defer upstream.Close()

	streamOpts := []stream.Option{
		stream.WithLogger(s.logger),
		stream.WithChatID(chatID),
		stream.OnComplete(func(text string) {
			// The client may already be gone; the reply is still worth keeping.
			saveCtx := context.WithoutCancel(ctx)
			if _, err := s.store.SaveMessage(saveCtx, chatID, string(model.RoleAssistant), text); err != nil {
				s.logger.Error("failed to save assistant response", "chat", chatID, "error", err)
			}
		}),
	}

	var run runner
	if withTools {
		run = stream.NewReemitter(s.invoker, streamOpts...)
	} else {
		run = stream.NewRelay(streamOpts...)
	}

	stream.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	if err := run.Run(ctx, upstream, stream.NewWriter(w)); err != nil {
		s.logger.Warn("chat stream ended early", "chat", chatID, "model", modelID, "error", err)
	}
}

// setupStatus maps a failure to start a completion onto a response status.
func setupStatus(err error) int {
	var statusErr *provider.StatusError
	if errors.As(err, &statusErr) {
		return http.StatusBadGateway
	}
	if errors.Is(err, context.Canceled) {
		return http.StatusRequestTimeout
	}
	return http.StatusServiceUnavailable
}
