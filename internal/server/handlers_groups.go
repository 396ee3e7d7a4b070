package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
)

type selectionRequest struct {
	OwnerID   string   `json:"owner_id" validate:"required"`
	ParcelIDs []string `json:"parcel_ids" validate:"required,min=1,dive,required"`
}

type createGroupRequest struct {
	OwnerID    string             `json:"owner_id" validate:"required"`
	ParcelIDs  []string           `json:"parcel_ids" validate:"required,min=1,dive,required"`
	Weight     float64            `json:"weight" validate:"gte=0"`
	Dimensions billing.Dimensions `json:"dimensions"`
}

type quoteRequest struct {
	Weight           float64            `json:"weight" validate:"gte=0"`
	Dimensions       billing.Dimensions `json:"dimensions"`
	ShippingSubtotal money.Money        `json:"shipping_subtotal" validate:"gte=0"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type storageInvoiceRequest struct {
	OwnerID      string   `json:"owner_id" validate:"required"`
	ParcelIDs    []string `json:"parcel_ids" validate:"required,min=1,dive,required"`
	WithHandling bool     `json:"with_handling"`
}

func (s *Server) handleValidateConsolidation(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	auth, err := s.hub.ValidateConsolidation(r.Context(), req.ParcelIDs, req.OwnerID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, auth)
}

// handleCreateGroup re-validates the selection under lock, so a stale
// authorization from the validate call cannot consume a parcel twice.
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	auth := &consolidation.GroupAuthorization{OwnerID: req.OwnerID, ParcelIDs: req.ParcelIDs}
	group, err := s.hub.CreateGroup(r.Context(), auth, req.Weight, req.Dimensions)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, group)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.hub.GetGroup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleQuoteGroup(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	group, err := s.hub.QuoteGroup(r.Context(), mux.Vars(r)["id"], hub.QuoteRequest{
		Weight:           req.Weight,
		Dimensions:       req.Dimensions,
		ShippingSubtotal: req.ShippingSubtotal,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleCancelGroup(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decodeRequest(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	group, err := s.hub.CancelGroup(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleCreateStorageInvoice(w http.ResponseWriter, r *http.Request) {
	var req storageInvoiceRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	invoice, err := s.hub.CreateStorageInvoice(r.Context(), req.OwnerID, req.ParcelIDs, req.WithHandling)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, invoice)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	lastN := 0
	if lastNStr := r.URL.Query().Get("last"); lastNStr != "" {
		var err error
		lastN, err = strconv.Atoi(lastNStr)
		if err != nil || lastN <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid value for 'last' parameter")
			return
		}
	}

	groups, err := s.hub.ListOwnerGroups(r.Context(), mux.Vars(r)["userID"], lastN)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, groups)
}
