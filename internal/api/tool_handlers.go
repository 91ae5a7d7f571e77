package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/p-arndt/codebox/protocol"
)

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.tools.List()})
}

// handleNamedToolCall takes the tool from the URL and the arguments object
// as the whole request body.
func (s *Server) handleNamedToolCall(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := ValidateToolName(name); err != nil {
		writeValidationError(w, err.Error(), nil)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		writeValidationError(w, err.Error(), map[string]any{"limit_bytes": maxJSONBodyBytes})
		return
	}

	s.invoke(w, r, name, json.RawMessage(body))
}

// handleToolCall takes a protocol.ToolCall envelope.
func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	var call protocol.ToolCall
	if err := decodeJSONBody(w, r, &call); err != nil {
		writeValidationError(w, err.Error(), nil)
		return
	}
	if err := ValidateToolName(call.Name); err != nil {
		writeValidationError(w, err.Error(), nil)
		return
	}

	s.invoke(w, r, call.Name, call.Arguments)
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request, name string, args json.RawMessage) {
	reqID := requestID(r.Context())
	s.logger.Debug("tool call", "tool", name, "request_id", reqID)

	start := time.Now()
	result, err := s.tools.Call(r.Context(), name, args)
	if err != nil {
		s.logger.Warn("tool call failed", "tool", name, "request_id", reqID, "error", err)
		writeAPIError(w, err)
		return
	}

	s.logger.Info("tool call", "tool", name, "request_id", reqID, "duration", time.Since(start))
	writeJSON(w, http.StatusOK, protocol.ToolResult{Tool: name, Result: result})
}
