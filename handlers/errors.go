package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ferreirogomes/greenfund/services"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor mapeia os erros do cliente para status HTTP.
func statusFor(err error) (int, string) {
	var (
		insufficient *services.InsufficientFundsError
		unauthorized *services.UnauthorizedError
		timeout      *services.ConfirmationTimeoutError
		failed       *services.TransactionFailedError
		query        *services.ChainQueryError
	)
	switch {
	case errors.As(err, &insufficient):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.As(err, &unauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout, "confirmation_timeout"
	case errors.As(err, &failed):
		return http.StatusBadGateway, "transaction_failed"
	case errors.As(err, &query):
		return http.StatusServiceUnavailable, "chain_query_failed"
	case errors.Is(err, services.ErrWriteInProgress):
		return http.StatusConflict, "write_in_progress"
	case errors.Is(err, services.ErrNotConnected), errors.Is(err, services.ErrAccountChanged), errors.Is(err, services.ErrNoAccounts):
		return http.StatusConflict, "not_connected"
	case errors.Is(err, services.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	writeJSON(w, status, errorResponse{Error: kind, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
