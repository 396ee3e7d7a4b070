//go:generate mockgen -source ./server.go -destination=./mocks/server.go -package=mock_server
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/referral"
)

type Hub interface {
	CreatePreAlert(ctx context.Context, req hub.PreAlertRequest) (*model.Parcel, error)
	IntakeParcel(ctx context.Context, req hub.IntakeRequest) (*model.Parcel, error)
	CompletePickup(ctx context.Context, req hub.PickupCompletion) (*model.Parcel, error)
	GetParcel(ctx context.Context, id string) (*model.ParcelView, error)
	ListOwnerParcels(ctx context.Context, ownerID string, limit int, activeOnly bool) ([]model.ParcelView, error)
	BlockedParcels(ctx context.Context, ownerID string) ([]model.ParcelView, error)
	TransitionParcel(ctx context.Context, id string, to lifecycle.ParcelStatus, note string) (*model.Parcel, error)
	History(ctx context.Context, entityType, entityID string) ([]model.HistoryEntry, error)

	ValidateConsolidation(ctx context.Context, parcelIDs []string, ownerID string) (*consolidation.GroupAuthorization, error)
	CreateGroup(ctx context.Context, auth *consolidation.GroupAuthorization, weight float64, dims billing.Dimensions) (*model.ShipmentGroup, error)
	GetGroup(ctx context.Context, id string) (*model.ShipmentGroup, error)
	ListOwnerGroups(ctx context.Context, ownerID string, limit int) ([]*model.ShipmentGroup, error)
	QuoteGroup(ctx context.Context, groupID string, req hub.QuoteRequest) (*model.ShipmentGroup, error)
	CancelGroup(ctx context.Context, groupID, reason string) (*model.ShipmentGroup, error)
	CreateStorageInvoice(ctx context.Context, ownerID string, parcelIDs []string, withHandling bool) (*model.ShipmentGroup, error)
	Dispatch(ctx context.Context, req hub.DispatchRequest) (*hub.DispatchResult, error)

	SettlePayment(ctx context.Context, charge hub.GatewayCharge, allocations []hub.InvoiceAllocation) (*hub.Settlement, error)
	EvaluateReferralReward(ctx context.Context, userID, groupID string) (*referral.Decision, error)
	RegisterUser(ctx context.Context, req hub.RegisterUserRequest) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
}

type StaffRepo interface {
	ValidateUser(ctx context.Context, username, password string) (bool, error)
}

type Server struct {
	hub          Hub
	staff        StaffRepo
	logger       *zap.Logger
	server       *http.Server
	AuditManager *AuditManager
}

func New(h Hub, staff StaffRepo, sink AuditSink, logger *zap.Logger) *Server {
	return &Server{
		hub:          h,
		staff:        staff,
		logger:       logger,
		AuditManager: NewAuditManager(2, 5, 500*time.Millisecond, sink, logger),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port string) error {
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.AuditManager.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("port", port))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("http server shutdown completed")

	s.AuditManager.Shutdown(ctx)
	s.logger.Info("server shutdown completed")
	return nil
}

// Routes builds the staff API. Everything except /metrics requires basic auth
// and is audited.
func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(s.auditLogMiddleware, s.basicAuthMiddleware)

	api.HandleFunc("/parcels/pre-alerts", s.handleCreatePreAlert).Methods(http.MethodPost).Name("handleCreatePreAlert")
	api.HandleFunc("/parcels/intake", s.handleIntakeParcel).Methods(http.MethodPost).Name("handleIntakeParcel")
	api.HandleFunc("/parcels/{id}", s.handleGetParcel).Methods(http.MethodGet).Name("handleGetParcel")
	api.HandleFunc("/parcels/{id}/status", s.handleTransitionParcel).Methods(http.MethodPut).Name("handleTransitionParcel")
	api.HandleFunc("/parcels/{id}/dispatch", s.handleDispatchParcel).Methods(http.MethodPost).Name("handleDispatchParcel")
	api.HandleFunc("/parcels/{id}/history", s.handleParcelHistory).Methods(http.MethodGet).Name("handleParcelHistory")
	api.HandleFunc("/pickups/complete", s.handleCompletePickup).Methods(http.MethodPost).Name("handleCompletePickup")

	api.HandleFunc("/consolidations/validate", s.handleValidateConsolidation).Methods(http.MethodPost).Name("handleValidateConsolidation")
	api.HandleFunc("/groups", s.handleCreateGroup).Methods(http.MethodPost).Name("handleCreateGroup")
	api.HandleFunc("/groups/{id}", s.handleGetGroup).Methods(http.MethodGet).Name("handleGetGroup")
	api.HandleFunc("/groups/{id}/quote", s.handleQuoteGroup).Methods(http.MethodPost).Name("handleQuoteGroup")
	api.HandleFunc("/groups/{id}/cancel", s.handleCancelGroup).Methods(http.MethodPost).Name("handleCancelGroup")
	api.HandleFunc("/groups/{id}/dispatch", s.handleDispatchGroup).Methods(http.MethodPost).Name("handleDispatchGroup")
	api.HandleFunc("/groups/{id}/history", s.handleGroupHistory).Methods(http.MethodGet).Name("handleGroupHistory")
	api.HandleFunc("/storage-invoices", s.handleCreateStorageInvoice).Methods(http.MethodPost).Name("handleCreateStorageInvoice")

	api.HandleFunc("/payments/settle", s.handleSettlePayment).Methods(http.MethodPost).Name("handleSettlePayment")
	api.HandleFunc("/referrals/evaluate", s.handleEvaluateReferral).Methods(http.MethodPost).Name("handleEvaluateReferral")

	api.HandleFunc("/users", s.handleRegisterUser).Methods(http.MethodPost).Name("handleRegisterUser")
	api.HandleFunc("/users/{userID}", s.handleGetUser).Methods(http.MethodGet).Name("handleGetUser")
	api.HandleFunc("/users/{userID}/parcels", s.handleListParcels).Methods(http.MethodGet).Name("handleListParcels")
	api.HandleFunc("/users/{userID}/parcels/blocked", s.handleBlockedParcels).Methods(http.MethodGet).Name("handleBlockedParcels")
	api.HandleFunc("/users/{userID}/groups", s.handleListGroups).Methods(http.MethodGet).Name("handleListGroups")

	return router
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		valid, err := s.staff.ValidateUser(r.Context(), username, password)
		if err != nil {
			s.logger.Error("failed to validate staff credentials", zap.String("username", username), zap.Error(err))
		}
		if err != nil || !valid {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
