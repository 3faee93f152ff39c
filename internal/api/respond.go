package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmagar/glances-mcp/internal/baseline"
	"github.com/jmagar/glances-mcp/internal/glances"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]ErrorResponse{"error": {Code: code, Message: message}})
}

// writeOperationError maps façade errors onto HTTP statuses: unknown aliases
// and missing baselines are 404, upstream agent failures are 502, anything
// else is an invalid request.
func writeOperationError(w http.ResponseWriter, err error) {
	var apiErr *glances.APIError
	switch {
	case errors.Is(err, glances.ErrUnknownServer):
		writeError(w, http.StatusNotFound, "unknown_server", err.Error())
	case errors.Is(err, baseline.ErrInsufficientData):
		writeError(w, http.StatusNotFound, "insufficient_data", err.Error())
	case errors.As(err, &apiErr):
		writeError(w, http.StatusBadGateway, "source_unavailable", err.Error())
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	}
}
