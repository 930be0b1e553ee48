package api

import (
	"encoding/json"
	"net/http"

	apperrors "safety-rating/internal/common/errors"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError omits Details, which may carry driver messages.
func writeError(w http.ResponseWriter, err *apperrors.StandardError) {
	writeJSON(w, apperrors.HTTPStatus(err.Code), errorBody{Error: errorDetail{
		Code:      string(err.Code),
		Message:   err.Message,
		Retryable: err.Retryable,
	}})
}
