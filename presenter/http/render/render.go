package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/logging"
)

var ErrBadRequest = errors.New("bad request")

func JSON(w http.ResponseWriter, r *http.Request, status int, res interface{}) {
	enc := json.NewEncoder(w)

	if pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty")); pretty {
		enc.SetIndent("", "  ")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := enc.Encode(res); err != nil {
		logging.LoggerFromContext(r.Context()).WithError(err).Error("failed to marshal JSON result")
	}
}

type errorResult struct {
	Error string `json:"error"`
}

// Error maps err to a status code: 404 for missing rows, 400 for rejected
// parameters, 500 otherwise.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, db.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrBadRequest):
		status = http.StatusBadRequest
	}
	logger := logging.LoggerFromContext(r.Context()).WithError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request handling failed")
		msg = http.StatusText(status)
	} else {
		logger.Debug("request rejected")
	}
	JSON(w, r, status, errorResult{Error: msg})
}

func BadRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrBadRequest)
}
