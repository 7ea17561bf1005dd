package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/go-chi/chi/v5/middleware"
)

const internalMessage = common.InternalErrorMessage

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func statusFor(kind common.Kind) int {
	switch kind {
	case common.KindBadRequest:
		return http.StatusBadRequest
	case common.KindUnauthorized:
		return http.StatusUnauthorized
	case common.KindForbidden:
		return http.StatusForbidden
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindConflict:
		return http.StatusConflict
	case common.KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error to a response. Domain errors keep their
// message; anything else is logged and reported generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := common.KindOf(err)
	if kind == common.KindInternal {
		s.logger.Error(r.Context(), "request failed", "error", err,
			"request_id", middleware.GetReqID(r.Context()))
		writeMessage(w, http.StatusInternalServerError, internalMessage)
		return
	}
	writeMessage(w, statusFor(kind), err.Error())
}

func (s *Server) badBody(w http.ResponseWriter) {
	writeMessage(w, http.StatusBadRequest, "Invalid request body")
}
