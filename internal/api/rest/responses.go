package rest

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/Fiore0312/controlli-sub000/internal/domain/errors"
)

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps application errors onto HTTP responses. Unknown errors
// become opaque 500s so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		writeJSON(w, appErr.StatusCode, errorEnvelope{Error: errorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}})
}
