package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"imaged/internal/manager"
	"imaged/pkg/types"
)

// statusFor maps service errors to an HTTP status and a short reason used
// for logs and backpressure metrics.
func statusFor(err error) (int, string) {
	switch {
	// A load failure may wrap the cause that made a reload fail, such as a
	// pruned artifact, and still maps to 500.
	case manager.IsLoadFailure(err):
		return http.StatusInternalServerError, "load_failed"
	case manager.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case manager.IsLoaderNotFound(err):
		return http.StatusUnprocessableEntity, "no_loader"
	case manager.IsNotLoaded(err):
		return http.StatusConflict, "not_loaded"
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests, "busy"
	case manager.IsInvalidRequest(err):
		return http.StatusBadRequest, "invalid"
	case manager.IsStorageError(err):
		return http.StatusInternalServerError, "storage"
	case manager.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable, "dependency"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

// writeServiceError maps err and writes it, counting 429s as backpressure.
func writeServiceError(w http.ResponseWriter, err error) int {
	status, reason := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure(reason)
	}
	writeJSONError(w, status, err.Error())
	return status
}
