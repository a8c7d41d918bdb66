package api

import (
	"errors"
	"net/http"
	"strconv"

	"ledger-core/pkg/ledger"
	"ledger-core/pkg/store"

	"go.uber.org/zap"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error             string `json:"error"`
	Code              string `json:"code"`
	Field             string `json:"field,omitempty"`
	AttemptsRemaining *int   `json:"attemptsRemaining,omitempty"`
	SecondsRemaining  *int   `json:"secondsRemaining,omitempty"`
}

// statusFor maps a ledger error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInvalidCredentials),
		errors.Is(err, ledger.ErrNoSession),
		errors.Is(err, ledger.ErrPinMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrPinRequired):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, ledger.ErrNoPendingTransaction):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateEmail),
		errors.Is(err, ledger.ErrDuplicateReference),
		errors.Is(err, ledger.ErrCardBlocked),
		errors.Is(err, ledger.ErrCommitAbandoned):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrDailyLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrAccountLocked):
		return http.StatusLocked
	case store.IsCircuitOpen(err), store.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Code: ledger.ClassifyError(err)}

	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	var mismatch *ledger.PinMismatchError
	if errors.As(err, &mismatch) {
		n := mismatch.AttemptsRemaining
		resp.AttemptsRemaining = &n
	}
	var locked *ledger.LockedError
	if errors.As(err, &locked) {
		n := locked.SecondsRemaining
		resp.SecondsRemaining = &n
		w.Header().Set("Retry-After", strconv.Itoa(n))
	}

	if status >= http.StatusInternalServerError {
		// Internal details stay in the log.
		s.logger.Error("Request failed", zap.Error(err))
		resp.Error = http.StatusText(status)
	}

	writeJSON(w, status, resp)
}
