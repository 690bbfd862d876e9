package server

import (
	"net/http"

	"toolchat/model"
	"toolchat/tools"
)

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Tools []model.ToolDefinition `json:"tools"`
	}{s.invoker.Registry().Definitions()})
}

type invokeRequest struct {
	Calls []tools.Call `json:"calls"`
}

type invokeResponse struct {
	Results   []tools.Result `json:"results"`
	Summary   string         `json:"summary"`
	Formatted string         `json:"formatted"`
}

// handleInvoke runs a batch of tool calls outside any chat stream. Calls run
// concurrently and results keep the request order.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Calls) == 0 {
		writeError(w, http.StatusBadRequest, "calls must not be empty")
		return
	}
	for i := range req.Calls {
		if req.Calls[i].Name == "" {
			writeError(w, http.StatusBadRequest, "every call needs a name")
			return
		}
	}

	results := s.invoker.InvokeAll(r.Context(), req.Calls)
	writeJSON(w, http.StatusOK, invokeResponse{
		Results:   results,
		Summary:   tools.Summary(results),
		Formatted: tools.FormatResults(results),
	})
}
