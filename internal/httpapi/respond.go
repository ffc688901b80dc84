package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/DoyleJ11/santa-draw-backend/internal/engine"
	"github.com/DoyleJ11/santa-draw-backend/internal/lobby"
	"github.com/DoyleJ11/santa-draw-backend/internal/session"
	"github.com/DoyleJ11/santa-draw-backend/internal/types"
)

const maxBodyBytes = 1 << 16

var errBadBody = errors.New("malformed request body")

// statusFor maps an error to its HTTP status and wire code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrInvalidSession):
		return http.StatusUnauthorized, string(engine.KindAuthorization)
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest, string(engine.KindValidation)
	case errors.Is(err, lobby.ErrClosed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, string(engine.KindInternal)
	}

	kind := engine.KindOf(err)
	switch kind {
	case engine.KindValidation:
		return http.StatusBadRequest, string(kind)
	case engine.KindPhase:
		return http.StatusConflict, string(kind)
	case engine.KindAuthorization:
		return http.StatusForbidden, string(kind)
	case engine.KindConcurrency:
		return http.StatusLocked, string(kind)
	default:
		return http.StatusInternalServerError, string(kind)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.String("code", code), zap.Error(err))
	}
	writeJSON(w, status, types.ErrorResponse{Error: err.Error(), Code: code})
}

// decode reads a JSON body into dst and validates its struct tags.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed %q", errBadBody, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}
