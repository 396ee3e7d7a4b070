package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

type PreAlertRequest struct {
	OwnerID         string
	CarrierTracking string
	Description     string
	Weight          float64
	Dimensions      billing.Dimensions
	DeclaredValue   money.Money
}

type IntakeRequest struct {
	TrackingCode  string
	OwnerID       string
	Description   string
	Weight        float64
	Dimensions    billing.Dimensions
	DeclaredValue money.Money
}

type PickupKind string

const (
	PickupHub           PickupKind = "HUB_PICKUP"
	PickupLocalDelivery PickupKind = "LOCAL_DELIVERY"
	PickupStorageOnly   PickupKind = "STORAGE_ONLY"
)

// PickupCompletion reports a finished pickup request. Goods that physically
// reached the hub enter intake; a pure local delivery ends without a parcel.
type PickupCompletion struct {
	RequestID    string
	Kind         PickupKind
	GoodsArrived bool
	Intake       IntakeRequest
}

// CreatePreAlert records a parcel the customer expects to arrive.
func (s *Service) CreatePreAlert(ctx context.Context, req PreAlertRequest) (*model.Parcel, error) {
	tracking := strings.TrimSpace(req.CarrierTracking)
	if req.OwnerID == "" || tracking == "" {
		return nil, fmt.Errorf("%w: owner and carrier tracking are required", ErrInvalidInput)
	}
	if req.Weight < 0 || req.DeclaredValue < 0 {
		return nil, fmt.Errorf("%w: weight and declared value must not be negative", ErrInvalidInput)
	}

	now := s.now()
	p := &model.Parcel{
		ID:              uuid.NewString(),
		HubCode:         newHubCode(),
		CarrierTracking: tracking,
		OwnerID:         req.OwnerID,
		Description:     req.Description,
		Weight:          req.Weight,
		Dimensions:      req.Dimensions,
		DeclaredValue:   req.DeclaredValue,
		Status:          lifecycle.ParcelPreAlert,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.inTx(ctx, "create_pre_alert", func(tx db.Tx) error {
		if _, err := s.parcels.GetByCarrierTrackingTx(ctx, tx, tracking); err == nil {
			return fmt.Errorf("%w: tracking %s is already registered", ErrConflict, tracking)
		} else if !errors.Is(err, repository.ErrObjectNotFound) {
			return fmt.Errorf("failed to look up tracking %s: %w", tracking, err)
		}

		if err := s.parcels.CreateTx(ctx, tx, parcelToRow(p)); err != nil {
			return fmt.Errorf("failed to add parcel: %w", err)
		}
		if err := s.recordTx(ctx, tx, repository.EntityParcel, p.ID, string(p.Status), "pre-alert", now); err != nil {
			return err
		}
		return s.emitTx(ctx, tx, Event{
			Type:       EventPreAlertCreated,
			OccurredAt: now,
			OwnerID:    p.OwnerID,
			ParcelID:   p.ID,
			Status:     string(p.Status),
			Data:       map[string]string{"carrier_tracking": tracking},
		})
	})
	if err != nil {
		return nil, err
	}

	s.cacheParcels(p)
	return p, nil
}

// IntakeParcel registers a parcel physically received at the hub. A pending
// pre-alert with the same carrier tracking is promoted in place.
func (s *Service) IntakeParcel(ctx context.Context, req IntakeRequest) (*model.Parcel, error) {
	if req.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if req.Weight < 0 || req.DeclaredValue < 0 {
		return nil, fmt.Errorf("%w: weight and declared value must not be negative", ErrInvalidInput)
	}
	tracking := strings.TrimSpace(req.TrackingCode)
	log := s.logger.With(zap.String("op", "intake"), zap.String("tracking", tracking))

	var (
		result   *model.Parcel
		promoted bool
	)
	now := s.now()
	err := s.inTx(ctx, "intake_parcel", func(tx db.Tx) error {
		var existing *model.Parcel
		if tracking != "" {
			row, err := s.parcels.GetByCarrierTrackingTx(ctx, tx, tracking)
			switch {
			case err == nil:
				existing = parcelFromRow(row)
			case !errors.Is(err, repository.ErrObjectNotFound):
				return fmt.Errorf("failed to look up tracking %s: %w", tracking, err)
			}
		}

		if existing != nil {
			if existing.Status != lifecycle.ParcelPreAlert {
				return fmt.Errorf("%w: parcel with tracking %s already received", ErrConflict, tracking)
			}
			if existing.OwnerID != req.OwnerID {
				return fmt.Errorf("%w: pre-alert %s", consolidation.ErrNotOwner, existing.ID)
			}
			applyIntake(existing, req)
			arrived := now
			existing.ArrivedAt = &arrived
			if err := s.walkParcel(ctx, tx, existing, lifecycle.ParcelReceivedAtHub, "received at hub", now); err != nil {
				return err
			}
			if err := s.saveParcelTx(ctx, tx, existing); err != nil {
				return err
			}
			result, promoted = existing, true
		} else {
			arrived := now
			p := &model.Parcel{
				ID:              uuid.NewString(),
				HubCode:         newHubCode(),
				CarrierTracking: tracking,
				OwnerID:         req.OwnerID,
				Status:          lifecycle.ParcelReceivedAtHub,
				ArrivedAt:       &arrived,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			applyIntake(p, req)
			if err := s.parcels.CreateTx(ctx, tx, parcelToRow(p)); err != nil {
				return fmt.Errorf("failed to add parcel: %w", err)
			}
			if err := s.recordTx(ctx, tx, repository.EntityParcel, p.ID, string(p.Status), "received at hub", now); err != nil {
				return err
			}
			result = p
		}

		return s.emitTx(ctx, tx, Event{
			Type:       EventParcelReceived,
			OccurredAt: now,
			OwnerID:    result.OwnerID,
			ParcelID:   result.ID,
			Status:     string(result.Status),
			Data:       map[string]string{"hub_code": result.HubCode},
		})
	})
	if err != nil {
		return nil, err
	}

	source := "new"
	if promoted {
		source = "pre_alert"
	}
	metrics.ParcelsReceivedTotal.WithLabelValues(source).Inc()
	log.Info("parcel received", zap.String("parcel_id", result.ID), zap.String("source", source))

	s.cacheParcels(result)
	return result, nil
}

// CompletePickup applies a finished pickup request. It returns nil when the
// request ended without goods reaching the hub.
func (s *Service) CompletePickup(ctx context.Context, req PickupCompletion) (*model.Parcel, error) {
	switch req.Kind {
	case PickupHub, PickupStorageOnly, PickupLocalDelivery:
	default:
		return nil, fmt.Errorf("%w: unknown pickup kind %q", ErrInvalidInput, req.Kind)
	}

	if req.Kind == PickupLocalDelivery || !req.GoodsArrived {
		s.logger.Info("pickup completed without intake",
			zap.String("request_id", req.RequestID), zap.String("kind", string(req.Kind)))
		return nil, nil
	}
	return s.IntakeParcel(ctx, req.Intake)
}

// applyIntake copies the measured values onto p, keeping pre-alert values the
// hub did not re-measure.
func applyIntake(p *model.Parcel, req IntakeRequest) {
	if req.Description != "" {
		p.Description = req.Description
	}
	if req.Weight > 0 {
		p.Weight = req.Weight
	}
	if req.Dimensions != (billing.Dimensions{}) {
		p.Dimensions = req.Dimensions
	}
	if req.DeclaredValue > 0 {
		p.DeclaredValue = req.DeclaredValue
	}
}
