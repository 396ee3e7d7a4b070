package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
)

var _ HubServer = (*Server)(nil)

type Hub interface {
	GetParcel(ctx context.Context, id string) (*model.ParcelView, error)
	CreateGroup(ctx context.Context, auth *consolidation.GroupAuthorization, weight float64, dims billing.Dimensions) (*model.ShipmentGroup, error)
	SettlePayment(ctx context.Context, charge hub.GatewayCharge, allocations []hub.InvoiceAllocation) (*hub.Settlement, error)
	Dispatch(ctx context.Context, req hub.DispatchRequest) (*hub.DispatchResult, error)
}

type Server struct {
	hub    Hub
	logger *zap.Logger
}

func NewServer(h Hub, logger *zap.Logger) *Server {
	return &Server{
		hub:    h,
		logger: logger,
	}
}

type getParcelRequest struct {
	ID string `json:"id" validate:"required"`
}

type createGroupRequest struct {
	OwnerID    string             `json:"owner_id" validate:"required"`
	ParcelIDs  []string           `json:"parcel_ids" validate:"required,min=1,dive,required"`
	Weight     float64            `json:"weight" validate:"gte=0"`
	Dimensions billing.Dimensions `json:"dimensions"`
}

type settleRequest struct {
	Charge struct {
		ID     string      `json:"id" validate:"required"`
		Status string      `json:"status" validate:"required"`
		Amount money.Money `json:"amount" validate:"gte=0"`
	} `json:"charge"`
	Allocations []struct {
		GroupID  string      `json:"group_id" validate:"required"`
		Subtotal money.Money `json:"subtotal" validate:"gte=0"`
	} `json:"allocations" validate:"required,min=1,dive"`
}

type dispatchRequest struct {
	GroupID         string `json:"group_id" validate:"required_without=ParcelID"`
	ParcelID        string `json:"parcel_id"`
	Target          string `json:"target" validate:"required"`
	CarrierTracking string `json:"carrier_tracking"`
	DeliveredBy     string `json:"delivered_by"`
	PhotoRef        string `json:"photo_ref"`
	SignatureRef    string `json:"signature_ref"`
}

// Serve registers the hub and health services on lis and serves until ctx
// is cancelled, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	gs := grpc.NewServer()
	RegisterHubServer(gs, s)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(gs, healthSrv)
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting gRPC server", zap.String("addr", lis.Addr().String()))
		errCh <- gs.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down gRPC server")
		healthSrv.Shutdown()
		gs.GracefulStop()
		return nil
	case err := <-errCh:
		return fmt.Errorf("gRPC server failed: %w", err)
	}
}

func (s *Server) Run(ctx context.Context, port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port %s: %w", port, err)
	}
	return s.Serve(ctx, lis)
}

func (s *Server) GetParcel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	l := s.logger.With(zap.String("rpc_method", methodGetParcel))
	l.Debug("RPC call received")

	var req getParcelRequest
	if err := decode(in, &req); err != nil {
		return nil, s.invalid(l, "get_parcel", err)
	}

	view, err := s.hub.GetParcel(ctx, req.ID)
	if err != nil {
		return nil, s.serviceError(l, "get_parcel", err)
	}

	return encode(view)
}

func (s *Server) CreateGroup(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	l := s.logger.With(zap.String("rpc_method", methodCreateGroup))
	l.Debug("RPC call received")

	var req createGroupRequest
	if err := decode(in, &req); err != nil {
		return nil, s.invalid(l, "create_group", err)
	}

	auth := &consolidation.GroupAuthorization{OwnerID: req.OwnerID, ParcelIDs: req.ParcelIDs}
	group, err := s.hub.CreateGroup(ctx, auth, req.Weight, req.Dimensions)
	if err != nil {
		return nil, s.serviceError(l, "create_group", err)
	}

	l.Info("group created", zap.String("group_id", group.ID), zap.Int("parcels", len(group.ParcelIDs)))
	return encode(group)
}

func (s *Server) SettlePayment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	l := s.logger.With(zap.String("rpc_method", methodSettlePayment))
	l.Debug("RPC call received")

	var req settleRequest
	if err := decode(in, &req); err != nil {
		return nil, s.invalid(l, "settle_payment", err)
	}

	allocations := make([]hub.InvoiceAllocation, len(req.Allocations))
	for i, a := range req.Allocations {
		allocations[i] = hub.InvoiceAllocation{GroupID: a.GroupID, Subtotal: a.Subtotal}
	}
	settlement, err := s.hub.SettlePayment(ctx, hub.GatewayCharge{
		ID:     req.Charge.ID,
		Status: req.Charge.Status,
		Amount: req.Charge.Amount,
	}, allocations)
	if err != nil {
		return nil, s.serviceError(l, "settle_payment", err)
	}

	l.Info("payment settled", zap.String("charge_id", settlement.ChargeID), zap.Bool("replayed", settlement.Replayed))
	return encode(settlement)
}

func (s *Server) Dispatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	l := s.logger.With(zap.String("rpc_method", methodDispatch))
	l.Debug("RPC call received")

	var req dispatchRequest
	if err := decode(in, &req); err != nil {
		return nil, s.invalid(l, "dispatch", err)
	}

	result, err := s.hub.Dispatch(ctx, hub.DispatchRequest{
		GroupID:         req.GroupID,
		ParcelID:        req.ParcelID,
		Target:          req.Target,
		CarrierTracking: req.CarrierTracking,
		DeliveredBy:     req.DeliveredBy,
		PhotoRef:        req.PhotoRef,
		SignatureRef:    req.SignatureRef,
	})
	if err != nil {
		return nil, s.serviceError(l, "dispatch", err)
	}

	return encode(result)
}

func (s *Server) invalid(l *zap.Logger, op string, err error) error {
	l.Warn("Validation failed", zap.Error(err))
	metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
	return status.Error(codes.InvalidArgument, err.Error())
}

func (s *Server) serviceError(l *zap.Logger, op string, err error) error {
	metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
	code := codeFor(err)
	if code == codes.Internal {
		l.Error("RPC failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
	l.Warn("RPC rejected", zap.Stringer("code", code), zap.Error(err))
	return status.Error(code, err.Error())
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a Struct document into dst through its JSON form.
func decode(in *structpb.Struct, dst interface{}) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return errors.New("Invalid request body")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.New("Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			if fe.Tag() == "required" || fe.Tag() == "required_without" {
				msgs = append(msgs, fe.Field()+" is required")
				continue
			}
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("Validation failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func encode(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}
