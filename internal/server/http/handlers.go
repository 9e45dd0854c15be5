// Package http exposes the voucher engine over a JSON HTTP API.
package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lootlocal/voucherd/internal/errs"
	"github.com/lootlocal/voucherd/internal/model"
	"github.com/lootlocal/voucherd/internal/places"
	"github.com/lootlocal/voucherd/internal/service"
)

// VoucherHandler serves the voucher lifecycle endpoints.
type VoucherHandler struct {
	svc service.Voucher
	log *zap.Logger
}

// NewVoucherHandler constructs the lifecycle handler.
func NewVoucherHandler(svc service.Voucher, log *zap.Logger) *VoucherHandler {
	return &VoucherHandler{svc: svc, log: log}
}

// Request bodies are typed per endpoint and validated before the engine
// sees them.

type stateRequest struct {
	DeviceID string `json:"device_id"`
}

type rollRequest struct {
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Category  string  `json:"category"`
}

type claimRequest struct {
	DeviceID string `json:"device_id"`
}

type storeResponse struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Website string  `json:"website"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type discountResponse struct {
	ID           int64  `json:"id"`
	Details      string `json:"details"`
	Category     string `json:"category"`
	UnlimitedUse bool   `json:"unlimited_use"`
	Remaining    int    `json:"remaining"`
}

type voucherResponse struct {
	Store    storeResponse    `json:"store"`
	Discount discountResponse `json:"discount"`
	Category string           `json:"category"`
	RollTime time.Time        `json:"roll_time"`
}

type claimedVoucherResponse struct {
	voucherResponse
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type stateResponse struct {
	State      model.State             `json:"state"`
	Categories []string                `json:"categories,omitempty"`
	Voucher    *voucherResponse        `json:"voucher,omitempty"`
	Claimed    *claimedVoucherResponse `json:"claimed,omitempty"`
}

type redeemResponse struct {
	Message string `json:"message"`
}

func toVoucherResponse(v *model.Voucher) *voucherResponse {
	return &voucherResponse{
		Store: storeResponse{
			ID: v.Store.ID, Name: v.Store.Name, Website: v.Store.Website,
			Lat: v.Store.Lat, Lng: v.Store.Lng,
		},
		Discount: discountResponse{
			ID: v.Discount.ID, Details: v.Discount.Details, Category: v.Discount.Category,
			UnlimitedUse: v.Discount.UnlimitedUse, Remaining: v.Discount.Remaining,
		},
		Category: v.Claim.Category,
		RollTime: v.Claim.RollTime,
	}
}

func toClaimedResponse(cv *service.ClaimedVoucher) *claimedVoucherResponse {
	return &claimedVoucherResponse{
		voucherResponse: *toVoucherResponse(&cv.Voucher),
		Token:           cv.Voucher.Claim.Token,
		ExpiresAt:       cv.ExpiresAt,
	}
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", errs.ErrInvalidInput)
	}
	return nil
}

// HandleState handles POST /api/state: the initial-load state derivation.
func (h *VoucherHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	res, err := h.svc.State(r.Context(), req.DeviceID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	out := stateResponse{State: res.State}
	switch res.State {
	case model.StateHome:
		cats, err := h.svc.Categories(r.Context())
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		out.Categories = cats
	case model.StateReroll:
		out.Voucher = toVoucherResponse(res.Voucher)
	case model.StateVoucher:
		out.Claimed = toClaimedResponse(&service.ClaimedVoucher{
			Voucher:   *res.Voucher,
			ExpiresAt: res.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleRoll handles POST /api/roll.
func (h *VoucherHandler) HandleRoll(w http.ResponseWriter, r *http.Request) {
	var req rollRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	v, err := h.svc.Roll(r.Context(), service.RollInput{
		DeviceID: req.DeviceID,
		Lat:      req.Latitude,
		Lng:      req.Longitude,
		Timezone: req.Timezone,
		Category: req.Category,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherResponse(v))
}

// HandleReroll handles POST /api/reroll.
func (h *VoucherHandler) HandleReroll(w http.ResponseWriter, r *http.Request) {
	var req rollRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	v, err := h.svc.Reroll(r.Context(), service.RollInput{
		DeviceID: req.DeviceID,
		Lat:      req.Latitude,
		Lng:      req.Longitude,
		Timezone: req.Timezone,
		Category: req.Category,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherResponse(v))
}

// HandleClaim handles POST /api/claim: finalizes the pending voucher.
func (h *VoucherHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	cv, err := h.svc.Finalize(r.Context(), req.DeviceID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimedResponse(cv))
}

// HandleRedeem handles POST /api/redeem/{token}: merchant-side redemption.
func (h *VoucherHandler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if _, err := h.svc.Redeem(r.Context(), token); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, redeemResponse{Message: "Voucher redeemed successfully."})
}

// HandleStores handles GET /api/stores.
func (h *VoucherHandler) HandleStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.svc.Stores(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]storeResponse, 0, len(stores))
	for _, s := range stores {
		out = append(out, storeResponse{
			ID: s.ID, Name: s.Name, Website: s.Website, Lat: s.Lat, Lng: s.Lng,
		})
	}
	writeJSON(w, http.StatusOK, map[string][]storeResponse{"stores": out})
}

// HandleCategories handles GET /api/categories.
func (h *VoucherHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Categories(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": cats})
}

// PlacesHandler proxies location autocomplete and place details.
type PlacesHandler struct {
	client *places.Client
	log    *zap.Logger
}

// NewPlacesHandler constructs the places proxy handler.
func NewPlacesHandler(client *places.Client, log *zap.Logger) *PlacesHandler {
	return &PlacesHandler{client: client, log: log}
}

type autocompleteRequest struct {
	Query string `json:"query"`
}

type placeDetailsRequest struct {
	PlaceID string `json:"place_id"`
}

// HandleAutocomplete handles POST /api/places/autocomplete.
func (h *PlacesHandler) HandleAutocomplete(w http.ResponseWriter, r *http.Request) {
	var req autocompleteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.Query == "" {
		writeError(w, h.log, fmt.Errorf("%w: query required", errs.ErrInvalidInput))
		return
	}

	preds, err := h.client.Autocomplete(r.Context(), req.Query)
	if err != nil {
		h.log.Error("autocomplete proxy failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: "upstream", Message: "Unable to fetch autocomplete results.",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]places.Prediction{"predictions": preds})
}

// HandleDetails handles POST /api/places/details.
func (h *PlacesHandler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	var req placeDetailsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.PlaceID == "" {
		writeError(w, h.log, fmt.Errorf("%w: place_id required", errs.ErrInvalidInput))
		return
	}

	pt, err := h.client.Details(r.Context(), req.PlaceID)
	if err != nil {
		h.log.Error("place details proxy failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: "upstream", Message: "Unable to fetch place details.",
		})
		return
	}
	writeJSON(w, http.StatusOK, pt)
}
