package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/nerrad567/focuserd/internal/history"
)

// maxQueryParamLen bounds free-text query parameters.
const maxQueryParamLen = 64

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.focuser.ReportStatus())
}

func (s *Server) handleTemperatureLabels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.focuser.TemperatureLabels())
}

// handleHistory lists recorded commands, newest first. Query parameters:
// command, channel, limit (default 50, max 200) and offset.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "command history is not configured")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{
		Command: q.Get("command"),
		Channel: q.Get("channel"),
	}
	if len(filter.Command) > maxQueryParamLen || len(filter.Channel) > maxQueryParamLen {
		writeBadRequest(w, "query parameter too long")
		return
	}

	var err error
	if filter.Limit, err = parseNonNegative(q.Get("limit"), "limit"); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if filter.Offset, err = parseNonNegative(q.Get("offset"), "offset"); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing command history", "error", err)
		writeInternalError(w, "failed to list command history")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseNonNegative(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
