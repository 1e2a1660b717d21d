package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
)

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		// The status line is already out; an encode failure can only be logged
		// by the caller's middleware.
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps structured application errors onto their HTTP status and
// hides everything else behind a generic 500.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		status := appErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if status >= 500 {
			logger.Error("request failed", zap.Error(err))
		}
		writeJSON(w, status, errorResponse{Error: errorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}})
		return
	}

	logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{
		Code:    "INTERNAL_ERROR",
		Message: "An internal error occurred",
	}})
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
		Code:    code,
		Message: message,
	}})
}
