package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository/memory"
)

type testEnv struct {
	ctx    context.Context
	svc    *hub.Service
	client *HubClient
	health healthpb.HealthClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	svc := hub.New(store, store.Repositories(), hub.WithLogger(zap.NewNop()))

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(svc, zap.NewNop()).Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		assert.NoError(t, <-done)
	})
	return &testEnv{
		ctx:    context.Background(),
		svc:    svc,
		client: NewHubClient(conn),
		health: healthpb.NewHealthClient(conn),
	}
}

func (e *testEnv) intake(t *testing.T, owner string) string {
	t.Helper()
	p, err := e.svc.IntakeParcel(e.ctx, hub.IntakeRequest{
		OwnerID:    owner,
		Weight:     1,
		Dimensions: billing.Dimensions{Length: 10, Width: 10, Height: 10},
	})
	require.NoError(t, err)
	return p.ID
}

func mustStruct(t *testing.T, v map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(v)
	require.NoError(t, err)
	return s
}

func assertCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	st, ok := status.FromError(err)
	require.True(t, ok, "not a gRPC status: %v", err)
	assert.Equal(t, code, st.Code(), st.Message())
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	resp, err := e.health.Check(e.ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestGroupLifecycleOverGRPC(t *testing.T) {
	e := newTestEnv(t)
	a, b := e.intake(t, "u-1"), e.intake(t, "u-1")

	created, err := e.client.CreateGroup(e.ctx, mustStruct(t, map[string]interface{}{
		"owner_id":   "u-1",
		"parcel_ids": []interface{}{a, b},
	}))
	require.NoError(t, err)
	groupID := created.Fields["id"].GetStringValue()
	require.NotEmpty(t, groupID)
	assert.Equal(t, string(lifecycle.GroupPendingProcessing), created.Fields["status"].GetStringValue())

	_, err = e.client.CreateGroup(e.ctx, mustStruct(t, map[string]interface{}{
		"owner_id":   "u-1",
		"parcel_ids": []interface{}{a},
	}))
	assertCode(t, err, codes.Aborted)

	g, err := e.svc.QuoteGroup(e.ctx, groupID, hub.QuoteRequest{Weight: 2, ShippingSubtotal: money.MustParse("100.00")})
	require.NoError(t, err)

	settled, err := e.client.SettlePayment(e.ctx, mustStruct(t, map[string]interface{}{
		"charge": map[string]interface{}{"id": "ch-1", "status": "succeeded", "amount": g.Total.String()},
		"allocations": []interface{}{
			map[string]interface{}{"group_id": groupID, "subtotal": g.Subtotal.String()},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, "ch-1", settled.Fields["charge_id"].GetStringValue())
	groups := settled.Fields["groups"].GetListValue().GetValues()
	require.Len(t, groups, 1)
	assert.Equal(t, string(lifecycle.GroupPaid), groups[0].GetStructValue().Fields["status"].GetStringValue())

	for _, step := range []map[string]interface{}{
		{"group_id": groupID, "target": "shipped", "carrier_tracking": "DHL-1"},
		{"group_id": groupID, "target": "delivered", "delivered_by": "ana"},
	} {
		_, err := e.client.Dispatch(e.ctx, mustStruct(t, step))
		require.NoError(t, err)
	}

	parcel, err := e.client.GetParcel(e.ctx, mustStruct(t, map[string]interface{}{"id": a}))
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.ParcelDelivered), parcel.Fields["status"].GetStringValue())

	_, err = e.client.Dispatch(e.ctx, mustStruct(t, map[string]interface{}{
		"group_id": groupID, "target": "delivered", "delivered_by": "ana",
	}))
	assertCode(t, err, codes.FailedPrecondition)

	_, err = e.client.Dispatch(e.ctx, mustStruct(t, map[string]interface{}{
		"parcel_id": b, "target": "delivered", "delivered_by": "ana",
	}))
	assertCode(t, err, codes.FailedPrecondition)
}

func TestRequestErrors(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{
			name: "unknown parcel",
			call: func() error {
				_, err := e.client.GetParcel(e.ctx, mustStruct(t, map[string]interface{}{"id": "missing"}))
				return err
			},
			code: codes.NotFound,
		},
		{
			name: "missing parcel id",
			call: func() error {
				_, err := e.client.GetParcel(e.ctx, mustStruct(t, map[string]interface{}{}))
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "group without owner",
			call: func() error {
				_, err := e.client.CreateGroup(e.ctx, mustStruct(t, map[string]interface{}{"parcel_ids": []interface{}{"p-1"}}))
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "charge not succeeded",
			call: func() error {
				_, err := e.client.SettlePayment(e.ctx, mustStruct(t, map[string]interface{}{
					"charge":      map[string]interface{}{"id": "ch-1", "status": "pending", "amount": 1},
					"allocations": []interface{}{map[string]interface{}{"group_id": "g-1", "subtotal": 1}},
				}))
				return err
			},
			code: codes.FailedPrecondition,
		},
		{
			name: "dispatch needs a target entity",
			call: func() error {
				_, err := e.client.Dispatch(e.ctx, mustStruct(t, map[string]interface{}{"target": "shipped"}))
				return err
			},
			code: codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertCode(t, tt.call(), tt.code)
		})
	}
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("parcel p-1: %w", hub.ErrNotFound), codes.NotFound},
		{consolidation.ErrNotOwner, codes.PermissionDenied},
		{consolidation.ErrAlreadyConsumed, codes.Aborted},
		{&lifecycle.TerminalStateError{Entity: "parcel", State: "DELIVERED"}, codes.FailedPrecondition},
		{&lifecycle.InvalidTransitionError{Entity: "parcel", From: "PRE_ALERT", To: "DELIVERED"}, codes.FailedPrecondition},
		{hub.ErrChargeNotSucceeded, codes.FailedPrecondition},
		{&billing.AllocationMismatchError{}, codes.FailedPrecondition},
		{fmt.Errorf("%w: bad", hub.ErrInvalidInput), codes.InvalidArgument},
		{billing.ErrDuplicateShare, codes.InvalidArgument},
		{errors.New("connection reset"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, codeFor(tt.err))
		})
	}
}
