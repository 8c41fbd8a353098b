package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"familyboard/internal/api"
	"familyboard/internal/board"
	"familyboard/internal/logging"
)

const maxBodyBytes = 1 << 20

// statusFor maps an error kind onto its HTTP status.
func statusFor(kind board.Kind) int {
	switch kind {
	case board.KindInvalidStage, board.KindInvalidPosition:
		return http.StatusUnprocessableEntity
	case board.KindOrderNotFound:
		return http.StatusNotFound
	case board.KindStageInUse:
		return http.StatusConflict
	case board.KindUnauthorized:
		return http.StatusUnauthorized
	case board.KindInvalidInput:
		return http.StatusBadRequest
	case board.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func errorPayload(message, kind string) api.ErrorResponse {
	return api.ErrorResponse{Error: message, Kind: kind}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeError classifies err and writes the error body. Internal failures are
// logged and their detail is withheld from the caller.
func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := board.KindOf(err)
	status := statusFor(kind)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("request failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
		message = "internal error"
	}
	s.writeJSON(w, status, errorPayload(message, string(kind)))
}

func (s *apiServer) decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			s.writeError(w, r, board.InvalidInputf("request body is required"))
			return false
		}
		s.writeError(w, r, board.InvalidInputf("decode request body: %v", err))
		return false
	}
	return true
}

// writeStandaloneError writes an error body for middleware that has no
// server at hand.
func writeStandaloneError(w http.ResponseWriter, err error) {
	kind := board.KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(kind))
	_ = json.NewEncoder(w).Encode(errorPayload(err.Error(), string(kind)))
}
