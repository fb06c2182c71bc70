package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hengadev/errsx"
	"go.uber.org/zap"

	"github.com/hongminglow/medimate-be/internal/apperr"
	"github.com/hongminglow/medimate-be/internal/fieldcrypt"
	"github.com/hongminglow/medimate-be/internal/http/respond"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

// statusFor maps a domain error to its HTTP status. Operation-specific
// overrides (login, refresh) are applied by the callers.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrDuplicateEmail),
		errors.Is(err, apperr.ErrInvalidOrExpired),
		errors.Is(err, apperr.ErrAlreadyVerified):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrIncorrectPassword),
		errors.Is(err, apperr.ErrInvalidCredentials),
		errors.Is(err, apperr.ErrInvalidRefreshToken):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrEmailNotVerified):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, apperr.ErrDeliveryFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.failWithStatus(w, r, err, statusFor(err))
}

func (h *AuthHandler) failWithStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	var throttle *apperr.ThrottleError
	if errors.As(err, &throttle) {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(throttle.RetryAfter.Seconds()))))
		respond.Error(w, http.StatusTooManyRequests, "too many verification emails requested, please try again later")
		return
	}

	var v *apperr.Validation
	if errors.As(err, &v) {
		respond.JSON(w, http.StatusBadRequest, "validation failed", fieldMessages(v.Fields))
		return
	}

	if status >= http.StatusInternalServerError {
		fields := []zap.Field{
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.Error(err),
		}
		if errors.Is(err, fieldcrypt.ErrTamperOrKeyMismatch) {
			h.logger.Error("stored field failed integrity check", fields...)
		} else if status == http.StatusBadGateway {
			h.logger.Warn("email delivery failed", fields...)
		} else {
			h.logger.Error("request failed", fields...)
		}
	}

	switch status {
	case http.StatusInternalServerError:
		respond.Error(w, status, "internal server error")
	case http.StatusBadGateway:
		respond.Error(w, status, "failed to send verification email, please try again later")
	default:
		respond.Error(w, status, publicMessage(err))
	}
}

func publicMessage(err error) string {
	for _, known := range []error{
		apperr.ErrDuplicateEmail,
		apperr.ErrUserNotFound,
		apperr.ErrIncorrectPassword,
		apperr.ErrInvalidCredentials,
		apperr.ErrEmailNotVerified,
		apperr.ErrInvalidOrExpired,
		apperr.ErrInvalidRefreshToken,
		apperr.ErrAlreadyVerified,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "request failed"
}

func fieldMessages(err error) map[string]string {
	out := make(map[string]string)
	m, ok := err.(errsx.Map)
	if !ok {
		out["error"] = fmt.Sprint(err)
		return out
	}
	for key, msg := range m {
		out[key] = fmt.Sprint(msg)
	}
	return out
}
