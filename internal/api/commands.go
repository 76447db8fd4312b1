package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/focuserd/internal/focuser"
)

// CommandResponse is the body of every command endpoint.
type CommandResponse struct {
	Result int    `json:"result"`
	Label  string `json:"label"`
}

type stopRequest struct {
	Channel string `json:"channel"`
}

type positionRequest struct {
	Position *float64 `json:"position"`
	Offset   bool     `json:"offset"`
}

type lightRequest struct {
	On *bool `json:"on"`
}

func writeResult(w http.ResponseWriter, result focuser.Result) {
	writeJSON(w, http.StatusOK, CommandResponse{Result: int(result), Label: result.String()})
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.focuser.Initialize(r.Context()))
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.focuser.Home(r.Context()))
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.focuser.Shutdown(r.Context()))
}

// handleStop stops one channel, or all of them when the channel is empty
// or the body is omitted.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	writeResult(w, s.focuser.Stop(r.Context(), req.Channel))
}

func (s *Server) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Position == nil {
		writeBadRequest(w, "position is required")
		return
	}
	channel := chi.URLParam(r, "channel")
	writeResult(w, s.focuser.SetChannel(r.Context(), channel, *req.Position, req.Offset))
}

func (s *Server) handleLight(w http.ResponseWriter, r *http.Request) {
	var req lightRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.On == nil {
		writeBadRequest(w, "on is required")
		return
	}
	writeResult(w, s.focuser.SetLight(r.Context(), *req.On))
}
