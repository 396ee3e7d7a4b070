package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
)

type chargeRequest struct {
	ID     string      `json:"id" validate:"required"`
	Status string      `json:"status" validate:"required"`
	Amount money.Money `json:"amount" validate:"gte=0"`
}

type allocationRequest struct {
	GroupID  string      `json:"group_id" validate:"required"`
	Subtotal money.Money `json:"subtotal" validate:"gte=0"`
}

type settleRequest struct {
	Charge      chargeRequest       `json:"charge" validate:"required"`
	Allocations []allocationRequest `json:"allocations" validate:"required,min=1,dive"`
}

type referralRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	GroupID string `json:"group_id" validate:"required"`
}

type registerUserRequest struct {
	ID           string `json:"id"`
	ReferralCode string `json:"referral_code"`
}

func (s *Server) handleSettlePayment(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	allocations := make([]hub.InvoiceAllocation, len(req.Allocations))
	for i, a := range req.Allocations {
		allocations[i] = hub.InvoiceAllocation{GroupID: a.GroupID, Subtotal: a.Subtotal}
	}

	settlement, err := s.hub.SettlePayment(r.Context(), hub.GatewayCharge{
		ID:     req.Charge.ID,
		Status: req.Charge.Status,
		Amount: req.Charge.Amount,
	}, allocations)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, settlement)
}

func (s *Server) handleEvaluateReferral(w http.ResponseWriter, r *http.Request) {
	var req referralRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := s.hub.EvaluateReferralReward(r.Context(), req.UserID, req.GroupID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, decision)
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.hub.RegisterUser(r.Context(), hub.RegisterUserRequest{ID: req.ID, ReferralCode: req.ReferralCode})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.hub.GetUser(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}
