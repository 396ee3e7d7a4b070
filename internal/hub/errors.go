package hub

import (
	"errors"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

var (
	ErrConflict = consolidation.ErrConflict
	ErrNotFound = repository.ErrObjectNotFound

	ErrInvalidInput       = errors.New("invalid input")
	ErrChargeNotSucceeded = errors.New("gateway charge has not succeeded")
	ErrRefundRequired     = errors.New("paid group must be refunded before it can be cancelled")
	ErrManualTransition   = errors.New("status can only be reached through its dedicated operation")
)
