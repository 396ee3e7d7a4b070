package grpcserver

import (
	"errors"

	"google.golang.org/grpc/codes"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
)

// codeFor maps a hub error onto the gRPC status code reported to the caller.
func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, hub.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, consolidation.ErrNotOwner):
		return codes.PermissionDenied
	case errors.Is(err, hub.ErrConflict):
		return codes.Aborted
	case errors.Is(err, lifecycle.ErrTerminalState),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, hub.ErrManualTransition),
		errors.Is(err, hub.ErrRefundRequired),
		errors.Is(err, consolidation.ErrRuleViolation),
		errors.Is(err, consolidation.ErrStorageBlocked),
		errors.Is(err, hub.ErrChargeNotSucceeded),
		errors.Is(err, billing.ErrAllocationMismatch):
		return codes.FailedPrecondition
	case errors.Is(err, hub.ErrInvalidInput),
		errors.Is(err, lifecycle.ErrUnknownStatus),
		errors.Is(err, billing.ErrNegativeAmount),
		errors.Is(err, billing.ErrEmptyInvoice),
		errors.Is(err, billing.ErrNoInvoices),
		errors.Is(err, billing.ErrDuplicateShare):
		return codes.InvalidArgument
	}
	return codes.Internal
}
