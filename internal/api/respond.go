package api

import (
	"encoding/json"
	"net/http"

	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Category   errors.ErrorCategory `json:"category"`
	Code       errors.ErrorCode     `json:"code"`
	Message    string               `json:"message"`
	Suggestion string               `json:"suggestion,omitempty"`
	RequestID  string               `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").WithError(err).Warn("Failed to encode response")
	}
}

func ok(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// fail writes err as an error envelope. Errors outside the taxonomy become
// internal errors. Server side failures are logged at error level.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	rerr := errors.WrapIfNeeded(err, errors.CategoryInternal, errors.CodeUnexpectedError, "unexpected error")
	status := rerr.HTTPStatus()
	requestID := RequestIDFrom(r.Context())

	log := s.logger.WithFields(logger.Fields{
		"request_id": requestID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     status,
		"category":   string(rerr.Category),
		"code":       string(rerr.Code),
	}).WithError(err)
	if rerr.IsFatal() {
		log.Error("Request failed")
	} else {
		log.Debug("Request rejected")
	}

	writeJSON(w, status, envelope{
		Success: false,
		Error: &errorBody{
			Category:   rerr.Category,
			Code:       rerr.Code,
			Message:    rerr.Message,
			Suggestion: rerr.Suggestion,
			RequestID:  requestID,
		},
	})
}
