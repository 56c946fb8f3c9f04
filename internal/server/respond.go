package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/postersmith/postersmith/pkg/errors"
	"github.com/postersmith/postersmith/pkg/interfaces"
)

type errorPayload struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (s *Server) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Response encoding failed", interfaces.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	errType := errors.TypeOf(err)
	message := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	s.respond(w, statusForType(errType), errorPayload{
		Type:  string(errType),
		Error: message,
	})
}

func statusForType(t errors.ErrorType) int {
	switch t {
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound
	case errors.ErrorTypeBadRequest:
		return http.StatusBadRequest
	case errors.ErrorTypeConflict:
		return http.StatusConflict
	case errors.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body; an empty body decodes into the zero value so
// optional request bodies keep working.
func decode(r *http.Request, out interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return errors.Wrap(errors.ErrorTypeBadRequest, "decoding request body", err)
	}
	return nil
}
