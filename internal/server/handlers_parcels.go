package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

type preAlertRequest struct {
	OwnerID         string             `json:"owner_id" validate:"required"`
	CarrierTracking string             `json:"carrier_tracking" validate:"required"`
	Description     string             `json:"description"`
	Weight          float64            `json:"weight" validate:"gte=0"`
	Dimensions      billing.Dimensions `json:"dimensions"`
	DeclaredValue   money.Money        `json:"declared_value" validate:"gte=0"`
}

type intakeRequest struct {
	TrackingCode  string             `json:"tracking_code"`
	OwnerID       string             `json:"owner_id" validate:"required"`
	Description   string             `json:"description"`
	Weight        float64            `json:"weight" validate:"gte=0"`
	Dimensions    billing.Dimensions `json:"dimensions"`
	DeclaredValue money.Money        `json:"declared_value" validate:"gte=0"`
}

func (r intakeRequest) toHub() hub.IntakeRequest {
	return hub.IntakeRequest{
		TrackingCode:  r.TrackingCode,
		OwnerID:       r.OwnerID,
		Description:   r.Description,
		Weight:        r.Weight,
		Dimensions:    r.Dimensions,
		DeclaredValue: r.DeclaredValue,
	}
}

type pickupRequest struct {
	RequestID    string         `json:"request_id" validate:"required"`
	Kind         string         `json:"kind" validate:"required,oneof=HUB_PICKUP LOCAL_DELIVERY STORAGE_ONLY"`
	GoodsArrived bool           `json:"goods_arrived"`
	Intake       *intakeRequest `json:"intake"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

type dispatchRequest struct {
	Target          string `json:"target" validate:"required"`
	CarrierTracking string `json:"carrier_tracking"`
	DeliveredBy     string `json:"delivered_by"`
	PhotoRef        string `json:"photo_ref"`
	SignatureRef    string `json:"signature_ref"`
}

func (s *Server) handleCreatePreAlert(w http.ResponseWriter, r *http.Request) {
	var req preAlertRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	parcel, err := s.hub.CreatePreAlert(r.Context(), hub.PreAlertRequest{
		OwnerID:         req.OwnerID,
		CarrierTracking: req.CarrierTracking,
		Description:     req.Description,
		Weight:          req.Weight,
		Dimensions:      req.Dimensions,
		DeclaredValue:   req.DeclaredValue,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, parcel)
}

func (s *Server) handleIntakeParcel(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	parcel, err := s.hub.IntakeParcel(r.Context(), req.toHub())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, parcel)
}

func (s *Server) handleCompletePickup(w http.ResponseWriter, r *http.Request) {
	var req pickupRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	completion := hub.PickupCompletion{
		RequestID:    req.RequestID,
		Kind:         hub.PickupKind(req.Kind),
		GoodsArrived: req.GoodsArrived,
	}
	if req.Intake != nil {
		completion.Intake = req.Intake.toHub()
	}

	parcel, err := s.hub.CompletePickup(r.Context(), completion)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if parcel == nil {
		respondJSON(w, http.StatusOK, map[string]string{
			"message": "Pickup completed without intake",
		})
		return
	}

	respondJSON(w, http.StatusCreated, parcel)
}

func (s *Server) handleGetParcel(w http.ResponseWriter, r *http.Request) {
	parcel, err := s.hub.GetParcel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, parcel)
}

func (s *Server) handleTransitionParcel(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := lifecycle.ParseParcelStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Error: "+err.Error())
		return
	}

	parcel, err := s.hub.TransitionParcel(r.Context(), mux.Vars(r)["id"], status, req.Note)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, parcel)
}

func (s *Server) handleDispatchParcel(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "", mux.Vars(r)["id"])
}

func (s *Server) handleDispatchGroup(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, mux.Vars(r)["id"], "")
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, groupID, parcelID string) {
	var req dispatchRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.hub.Dispatch(r.Context(), hub.DispatchRequest{
		GroupID:         groupID,
		ParcelID:        parcelID,
		Target:          req.Target,
		CarrierTracking: req.CarrierTracking,
		DeliveredBy:     req.DeliveredBy,
		PhotoRef:        req.PhotoRef,
		SignatureRef:    req.SignatureRef,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleParcelHistory(w http.ResponseWriter, r *http.Request) {
	s.history(w, r, repository.EntityParcel)
}

func (s *Server) handleGroupHistory(w http.ResponseWriter, r *http.Request) {
	s.history(w, r, repository.EntityGroup)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request, entityType string) {
	history, err := s.hub.History(r.Context(), entityType, mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleListParcels(w http.ResponseWriter, r *http.Request) {
	lastN := 0
	activeOnly := false

	if lastNStr := r.URL.Query().Get("last"); lastNStr != "" {
		var err error
		lastN, err = strconv.Atoi(lastNStr)
		if err != nil || lastN <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid value for 'last' parameter")
			return
		}
	}

	if activeStr := r.URL.Query().Get("active"); activeStr == "true" {
		activeOnly = true
	}

	parcels, err := s.hub.ListOwnerParcels(r.Context(), mux.Vars(r)["userID"], lastN, activeOnly)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, parcels)
}

func (s *Server) handleBlockedParcels(w http.ResponseWriter, r *http.Request) {
	parcels, err := s.hub.BlockedParcels(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, parcels)
}
