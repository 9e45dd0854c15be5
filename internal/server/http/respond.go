package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lootlocal/voucherd/internal/errs"
)

// errorResponse is the JSON shape for every non-2xx outcome.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps sentinel errors onto stable HTTP statuses and codes.
// Policy violations and exhaustion are expected outcomes with structured
// bodies; anything unrecognized is an opaque internal error.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "invalid_input", Message: err.Error(),
		})
	case errors.Is(err, errs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error: "not_found", Message: "No matching record found.",
		})
	case errors.Is(err, errs.ErrNoDiscounts):
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error: "no_discounts_available", Message: "No discounts available. Please try again later.",
		})
	case errors.Is(err, errs.ErrAlreadyClaimed):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: "already_claimed", Message: "You have already claimed a voucher today.",
		})
	case errors.Is(err, errs.ErrNoRerolls):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: "no_rerolls", Message: "No rerolls left for today.",
		})
	case errors.Is(err, errs.ErrNoActiveClaim):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: "no_active_claim", Message: "No unclaimed voucher to act on.",
		})
	case errors.Is(err, errs.ErrAlreadyRedeemed):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: "already_redeemed", Message: "Voucher is already redeemed.",
		})
	case errors.Is(err, errs.ErrExpired):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: "expired", Message: "Looks like this voucher is past its expiry time.",
		})
	case errors.Is(err, errs.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error: "rate_limited", Message: "Too many requests, slow down.",
		})
	default:
		log.Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "internal", Message: "An unexpected error occurred.",
		})
	}
}
