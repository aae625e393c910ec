package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warp/payroll-engine/labor"
)

const (
	codeValidation        = "validation_error"
	codeInvalidPayload    = "invalid_payload"
	codeUnauthorized      = "unauthorized"
	codeForbidden         = "forbidden"
	codeNotFound          = "not_found"
	codeInvalidTransition = "invalid_transition"
	codeDispatchFailed    = "dispatch_failed"
	codeNegativeOvertime  = "negative_overtime"
	codeRuleNotConfigured = "rule_not_configured"
	codeInternal          = "internal_server_error"
)

// classify maps a domain error to status, code and public message.
// Dispatch failures are checked first: they also unwrap to their cause.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, labor.ErrDispatchFailed):
		return http.StatusUnprocessableEntity, codeDispatchFailed, "Approval could not be applied"
	case errors.Is(err, labor.ErrNegativeOvertime):
		return http.StatusUnprocessableEntity, codeNegativeOvertime, "Overtime would become negative"
	case errors.Is(err, labor.ErrNotFound):
		return http.StatusNotFound, codeNotFound, "Not found"
	case errors.Is(err, labor.ErrInvalidTransition), errors.Is(err, labor.ErrConcurrentModification):
		return http.StatusConflict, codeInvalidTransition, "Request already processed"
	case errors.Is(err, labor.ErrRuleNotConfigured):
		return http.StatusPreconditionFailed, codeRuleNotConfigured, "Payroll rule not configured"
	case labor.IsClientError(err):
		return http.StatusBadRequest, codeValidation, "Invalid input"
	default:
		return http.StatusInternalServerError, codeInternal, "Internal error"
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, code, message := classify(err)
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs.
		writeError(w, status, code, message, nil)
		return
	}
	writeError(w, status, code, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
