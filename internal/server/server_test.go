package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	mock_database "gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	mock_hub "gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub/mocks"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
	mock_server "gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/server/mocks"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]AuditLogEntry
	err     error
}

func (s *recordingSink) WriteAudit(_ context.Context, batch []AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordingSink) entries() []AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AuditLogEntry
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

type testServer struct {
	*Server
	hub   *mock_server.MockHub
	staff *mock_server.MockStaffRepo
}

func newTestServer(t *testing.T) *testServer {
	ctrl := gomock.NewController(t)
	mockHub := mock_server.NewMockHub(ctrl)
	mockStaff := mock_server.NewMockStaffRepo(ctrl)
	mockStaff.EXPECT().ValidateUser(gomock.Any(), "admin", "secret").Return(true, nil).AnyTimes()

	return &testServer{
		Server: New(mockHub, mockStaff, &recordingSink{}, zap.NewNop()),
		hub:    mockHub,
		staff:  mockStaff,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("admin", "secret")
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)
	return rr
}

func TestBasicAuth(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockHub := mock_server.NewMockHub(ctrl)
	mockStaff := mock_server.NewMockStaffRepo(ctrl)
	srv := New(mockHub, mockStaff, &recordingSink{}, zap.NewNop())

	tests := []struct {
		name       string
		setAuth    func(r *http.Request)
		setupMocks func()
	}{
		{
			name:       "missing credentials",
			setAuth:    func(*http.Request) {},
			setupMocks: func() {},
		},
		{
			name:    "wrong password",
			setAuth: func(r *http.Request) { r.SetBasicAuth("admin", "nope") },
			setupMocks: func() {
				mockStaff.EXPECT().ValidateUser(gomock.Any(), "admin", "nope").Return(false, nil)
			},
		},
		{
			name:    "repository failure",
			setAuth: func(r *http.Request) { r.SetBasicAuth("admin", "secret") },
			setupMocks: func() {
				mockStaff.EXPECT().ValidateUser(gomock.Any(), "admin", "secret").Return(false, errors.New("db down"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()
			req := httptest.NewRequest(http.MethodGet, "/parcels/p-1", nil)
			tt.setAuth(req)
			rr := httptest.NewRecorder()

			srv.Routes().ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, `Basic realm="Restricted"`, rr.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestHandleIntakeParcel(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name           string
		requestBody    interface{}
		setupMocks     func()
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "successful intake",
			requestBody: map[string]interface{}{
				"tracking_code":  "1Z999",
				"owner_id":       "u-1",
				"weight":         2.5,
				"dimensions":     map[string]float64{"length": 10, "width": 8, "height": 4},
				"declared_value": "49.90",
			},
			setupMocks: func() {
				srv.hub.EXPECT().
					IntakeParcel(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, req hub.IntakeRequest) (*model.Parcel, error) {
						assert.Equal(t, "1Z999", req.TrackingCode)
						assert.Equal(t, "u-1", req.OwnerID)
						assert.Equal(t, 2.5, req.Weight)
						assert.Equal(t, billing.Dimensions{Length: 10, Width: 8, Height: 4}, req.Dimensions)
						assert.Equal(t, money.MustParse("49.90"), req.DeclaredValue)
						return &model.Parcel{ID: "p-1", OwnerID: "u-1", Status: lifecycle.ParcelReceivedAtHub}, nil
					})
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"status":"RECEIVED_AT_HUB"`,
		},
		{
			name:           "invalid request body",
			requestBody:    "{not json",
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Invalid request body"}`,
		},
		{
			name:           "missing owner",
			requestBody:    map[string]interface{}{"tracking_code": "1Z999"},
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "owner_id is required",
		},
		{
			name:           "negative weight",
			requestBody:    map[string]interface{}{"owner_id": "u-1", "weight": -1},
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "weight must not be negative",
		},
		{
			name:        "already received",
			requestBody: map[string]interface{}{"tracking_code": "1Z999", "owner_id": "u-1"},
			setupMocks: func() {
				srv.hub.EXPECT().IntakeParcel(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: parcel with tracking 1Z999 already received", hub.ErrConflict))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   "already received",
		},
		{
			name:        "unexpected failure is not leaked",
			requestBody: map[string]interface{}{"owner_id": "u-1"},
			setupMocks: func() {
				srv.hub.EXPECT().IntakeParcel(gomock.Any(), gomock.Any()).
					Return(nil, errors.New("pq: password authentication failed"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"Error: internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()
			rr := srv.do(t, http.MethodPost, "/parcels/intake", tt.requestBody)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
		})
	}
}

func TestHandleCompletePickup(t *testing.T) {
	srv := newTestServer(t)

	srv.hub.EXPECT().
		CompletePickup(gomock.Any(), hub.PickupCompletion{RequestID: "r-1", Kind: hub.PickupLocalDelivery, GoodsArrived: true}).
		Return(nil, nil)
	rr := srv.do(t, http.MethodPost, "/pickups/complete", map[string]interface{}{
		"request_id": "r-1", "kind": "LOCAL_DELIVERY", "goods_arrived": true,
	})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "without intake")

	rr = srv.do(t, http.MethodPost, "/pickups/complete", map[string]interface{}{"request_id": "r-2", "kind": "TELEPORT"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "kind must be one of")

	srv.hub.EXPECT().
		CompletePickup(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req hub.PickupCompletion) (*model.Parcel, error) {
			assert.Equal(t, "u-1", req.Intake.OwnerID)
			return &model.Parcel{ID: "p-9", Status: lifecycle.ParcelReceivedAtHub}, nil
		})
	rr = srv.do(t, http.MethodPost, "/pickups/complete", map[string]interface{}{
		"request_id": "r-3", "kind": "STORAGE_ONLY", "goods_arrived": true,
		"intake": map[string]interface{}{"owner_id": "u-1", "weight": 3},
	})
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestHandleTransitionParcel(t *testing.T) {
	srv := newTestServer(t)
	srv.hub.EXPECT().GetParcel(gomock.Any(), "p-1").
		Return(&model.ParcelView{Parcel: &model.Parcel{ID: "p-1", Status: lifecycle.ParcelReceivedAtHub}}, nil).
		AnyTimes()

	tests := []struct {
		name           string
		status         string
		setupMocks     func()
		expectedStatus int
	}{
		{
			name:   "legacy synonym",
			status: "pendiente retiro",
			setupMocks: func() {
				srv.hub.EXPECT().TransitionParcel(gomock.Any(), "p-1", lifecycle.ParcelPendingPickup, "").
					Return(&model.Parcel{ID: "p-1", Status: lifecycle.ParcelPendingPickup}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown status",
			status:         "teleported",
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "status owned by another operation",
			status: "IN_TRANSIT",
			setupMocks: func() {
				srv.hub.EXPECT().TransitionParcel(gomock.Any(), "p-1", lifecycle.ParcelInTransit, "").
					Return(nil, fmt.Errorf("%w: IN_TRANSIT", hub.ErrManualTransition))
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:   "terminal parcel",
			status: "CANCELLED",
			setupMocks: func() {
				srv.hub.EXPECT().TransitionParcel(gomock.Any(), "p-1", lifecycle.ParcelCancelled, "").
					Return(nil, &lifecycle.TerminalStateError{Entity: "parcel", State: "DELIVERED"})
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()
			rr := srv.do(t, http.MethodPut, "/parcels/p-1/status", map[string]string{"status": tt.status})
			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestHandleCreateGroup(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name           string
		requestBody    interface{}
		setupMocks     func()
		expectedStatus int
	}{
		{
			name:        "group created",
			requestBody: map[string]interface{}{"owner_id": "u-1", "parcel_ids": []string{"p-2", "p-1"}},
			setupMocks: func() {
				srv.hub.EXPECT().
					CreateGroup(gomock.Any(), &consolidation.GroupAuthorization{OwnerID: "u-1", ParcelIDs: []string{"p-2", "p-1"}}, 0.0, billing.Dimensions{}).
					Return(&model.ShipmentGroup{ID: "g-1", Status: lifecycle.GroupPendingProcessing}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "empty selection",
			requestBody:    map[string]interface{}{"owner_id": "u-1", "parcel_ids": []string{}},
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "parcel already consumed",
			requestBody: map[string]interface{}{"owner_id": "u-1", "parcel_ids": []string{"p-1"}},
			setupMocks: func() {
				srv.hub.EXPECT().CreateGroup(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: p-1 is in group g-0", consolidation.ErrAlreadyConsumed))
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:        "storage debt",
			requestBody: map[string]interface{}{"owner_id": "u-1", "parcel_ids": []string{"p-1"}},
			setupMocks: func() {
				srv.hub.EXPECT().CreateGroup(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: p-1 owes 0.94", consolidation.ErrStorageBlocked))
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:        "heavy parcel",
			requestBody: map[string]interface{}{"owner_id": "u-1", "parcel_ids": []string{"p-1", "p-2"}},
			setupMocks: func() {
				srv.hub.EXPECT().CreateGroup(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, &consolidation.RuleViolation{Rule: consolidation.RuleHeavy, Detail: "p-1 weighs 60 lb"})
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:        "foreign parcel",
			requestBody: map[string]interface{}{"owner_id": "u-1", "parcel_ids": []string{"p-1"}},
			setupMocks: func() {
				srv.hub.EXPECT().CreateGroup(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: p-1", consolidation.ErrNotOwner))
			},
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()
			rr := srv.do(t, http.MethodPost, "/groups", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestHandleSettlePayment(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]interface{}{
		"charge":      map[string]interface{}{"id": "ch-1", "status": "succeeded", "amount": "107.27"},
		"allocations": []map[string]interface{}{{"group_id": "g-1", "subtotal": 100}},
	}

	tests := []struct {
		name           string
		requestBody    interface{}
		setupMocks     func()
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "settled",
			requestBody: body,
			setupMocks: func() {
				srv.hub.EXPECT().
					SettlePayment(gomock.Any(),
						hub.GatewayCharge{ID: "ch-1", Status: "succeeded", Amount: money.MustParse("107.27")},
						[]hub.InvoiceAllocation{{GroupID: "g-1", Subtotal: money.MustParse("100.00")}}).
					Return(&hub.Settlement{
						ChargeID: "ch-1",
						Groups:   []*model.ShipmentGroup{{ID: "g-1", Status: lifecycle.GroupPaid, Total: money.MustParse("107.27")}},
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"total":107.27`,
		},
		{
			name:        "allocation mismatch",
			requestBody: body,
			setupMocks: func() {
				srv.hub.EXPECT().SettlePayment(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, &billing.AllocationMismatchError{
						Charged: money.MustParse("107.27"), Allocated: money.MustParse("100.00"), Tolerance: money.Cent,
					})
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   "allocation mismatch",
		},
		{
			name:        "charge not succeeded",
			requestBody: body,
			setupMocks: func() {
				srv.hub.EXPECT().SettlePayment(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, hub.ErrChargeNotSucceeded)
			},
			expectedStatus: http.StatusPaymentRequired,
		},
		{
			name: "no allocations",
			requestBody: map[string]interface{}{
				"charge": map[string]interface{}{"id": "ch-1", "status": "succeeded", "amount": 10},
			},
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "allocations is required",
		},
		{
			name: "allocation without group",
			requestBody: map[string]interface{}{
				"charge":      map[string]interface{}{"id": "ch-1", "status": "succeeded", "amount": 10},
				"allocations": []map[string]interface{}{{"subtotal": 10}},
			},
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "allocations[0].group_id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()
			rr := srv.do(t, http.MethodPost, "/payments/settle", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
		})
	}
}

func TestHandleDispatch(t *testing.T) {
	srv := newTestServer(t)

	srv.hub.EXPECT().
		Dispatch(gomock.Any(), hub.DispatchRequest{GroupID: "g-1", Target: "SHIPPED", CarrierTracking: "DHL-1"}).
		Return(&hub.DispatchResult{Group: &model.ShipmentGroup{ID: "g-1", Status: lifecycle.GroupShipped}}, nil)
	rr := srv.do(t, http.MethodPost, "/groups/g-1/dispatch", map[string]string{"target": "SHIPPED", "carrier_tracking": "DHL-1"})
	assert.Equal(t, http.StatusOK, rr.Code)

	srv.hub.EXPECT().
		Dispatch(gomock.Any(), hub.DispatchRequest{ParcelID: "p-1", Target: "DELIVERED", DeliveredBy: "ana"}).
		Return(nil, fmt.Errorf("%w: parcel p-1 owes 0.94", consolidation.ErrStorageBlocked))
	rr = srv.do(t, http.MethodPost, "/parcels/p-1/dispatch", map[string]string{"target": "DELIVERED", "delivered_by": "ana"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandleCancelGroup(t *testing.T) {
	srv := newTestServer(t)

	srv.hub.EXPECT().CancelGroup(gomock.Any(), "g-1", "").
		Return(nil, fmt.Errorf("group g-1 is PAID: %w", hub.ErrRefundRequired))
	rr := srv.do(t, http.MethodPost, "/groups/g-1/cancel", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	srv.hub.EXPECT().CancelGroup(gomock.Any(), "g-2", "duplicate").
		Return(&model.ShipmentGroup{ID: "g-2", Status: lifecycle.GroupCancelled}, nil)
	rr = srv.do(t, http.MethodPost, "/groups/g-2/cancel", map[string]string{"reason": "duplicate"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleListParcels(t *testing.T) {
	srv := newTestServer(t)

	srv.hub.EXPECT().ListOwnerParcels(gomock.Any(), "u-1", 5, true).Return([]model.ParcelView{}, nil)
	rr := srv.do(t, http.MethodGet, "/users/u-1/parcels?last=5&active=true", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = srv.do(t, http.MethodGet, "/users/u-1/parcels?last=-2", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	srv.hub.EXPECT().GetParcel(gomock.Any(), "missing").Return(nil, fmt.Errorf("parcel missing: %w", hub.ErrNotFound))
	rr = srv.do(t, http.MethodGet, "/parcels/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("group g: %w", repository.ErrObjectNotFound), http.StatusNotFound},
		{consolidation.ErrAlreadyConsumed, http.StatusConflict},
		{&lifecycle.InvalidTransitionError{Entity: "parcel", From: "A", To: "B"}, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: bad", hub.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: x", lifecycle.ErrUnknownStatus), http.StatusBadRequest},
		{billing.ErrDuplicateShare, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestAuditMiddleware_RecordsTransition(t *testing.T) {
	srv := newTestServer(t)
	sink := &recordingSink{}
	srv.AuditManager = NewAuditManager(1, 10, 10*time.Millisecond, sink, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.AuditManager.Start(ctx)

	srv.hub.EXPECT().GetParcel(gomock.Any(), "p-1").
		Return(&model.ParcelView{Parcel: &model.Parcel{ID: "p-1", Status: lifecycle.ParcelReceivedAtHub}}, nil)
	srv.hub.EXPECT().TransitionParcel(gomock.Any(), "p-1", lifecycle.ParcelAwaitingPickup, "").
		Return(&model.Parcel{ID: "p-1", Status: lifecycle.ParcelAwaitingPickup}, nil)

	rr := srv.do(t, http.MethodPut, "/parcels/p-1/status", map[string]string{"status": "AWAITING_PICKUP"})
	require.Equal(t, http.StatusOK, rr.Code)

	require.Eventually(t, func() bool { return len(sink.entries()) == 1 }, time.Second, 5*time.Millisecond)
	entry := sink.entries()[0]
	assert.Equal(t, "handleTransitionParcel", entry.Handler)
	assert.Equal(t, "admin", entry.Staff)
	assert.Equal(t, "p-1", entry.EntityID)
	assert.Equal(t, "RECEIVED_AT_HUB", entry.OldStatus)
	assert.Equal(t, "AWAITING_PICKUP", entry.NewStatus)
	assert.Equal(t, http.StatusOK, entry.StatusCode)
}

func TestAuditManager(t *testing.T) {
	t.Run("flushes by size and on shutdown", func(t *testing.T) {
		sink := &recordingSink{}
		m := NewAuditManager(2, 2, time.Hour, sink, zap.NewNop())
		m.Start(context.Background())

		for i := 0; i < 5; i++ {
			m.LogEntry(context.Background(), AuditLogEntry{Handler: fmt.Sprintf("h%d", i)})
		}
		require.Eventually(t, func() bool { return len(sink.entries()) >= 4 }, time.Second, 5*time.Millisecond)

		m.Shutdown(context.Background())
		assert.Len(t, sink.entries(), 5)
		assert.Zero(t, m.Pending())
	})

	t.Run("sink failure falls back to the log", func(t *testing.T) {
		sink := &recordingSink{err: errors.New("outbox unavailable")}
		m := NewAuditManager(1, 1, time.Hour, sink, zap.NewNop())
		m.Start(context.Background())

		m.LogEntry(context.Background(), AuditLogEntry{Handler: "h"})
		require.Eventually(t, func() bool { return m.Pending() == 0 }, time.Second, 5*time.Millisecond)
		m.Shutdown(context.Background())
		assert.Empty(t, sink.entries())
	})
}

func TestOutboxAuditSink(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB := mock_database.NewMockDB(ctrl)
	mockTx := mock_database.NewMockTx(ctrl)
	outbox := mock_hub.NewMockOutboxTaskRepository(ctrl)
	ctx := context.Background()

	mockDB.EXPECT().BeginTx(ctx).Return(mockTx, nil)
	outbox.EXPECT().CreateTx(ctx, mockTx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ db.Tx, task *repository.OutboxTask) error {
			assert.Equal(t, "audit_logs", task.Topic)
			var entry AuditLogEntry
			require.NoError(t, json.Unmarshal(task.Payload, &entry))
			assert.NotEmpty(t, entry.Handler)
			return nil
		}).Times(2)
	mockTx.EXPECT().Commit(ctx).Return(nil)

	sink := NewOutboxAuditSink(mockDB, outbox, "audit_logs")
	err := sink.WriteAudit(ctx, []AuditLogEntry{{Handler: "a"}, {Handler: "b"}})
	assert.NoError(t, err)
}
