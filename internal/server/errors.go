package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
)

// statusFor maps a hub error onto the HTTP status reported to the caller.
func statusFor(err error) int {
	switch {
	case errors.Is(err, hub.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, consolidation.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, hub.ErrConflict),
		errors.Is(err, lifecycle.ErrTerminalState),
		errors.Is(err, hub.ErrRefundRequired):
		return http.StatusConflict
	case errors.Is(err, consolidation.ErrRuleViolation),
		errors.Is(err, consolidation.ErrStorageBlocked),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, hub.ErrManualTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, hub.ErrChargeNotSucceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, billing.ErrAllocationMismatch):
		return http.StatusBadGateway
	case errors.Is(err, hub.ErrInvalidInput),
		errors.Is(err, lifecycle.ErrUnknownStatus),
		errors.Is(err, billing.ErrNegativeAmount),
		errors.Is(err, billing.ErrEmptyInvoice),
		errors.Is(err, billing.ErrNoInvoices),
		errors.Is(err, billing.ErrDuplicateShare):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, status, "Error: internal error")
		return
	}
	respondError(w, status, "Error: "+err.Error())
}
