package plan

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/usagegate/usagegate/internal/api"
)

type Handler struct {
	store    *Store
	registry Registry
}

func NewHandler(store *Store, registry Registry) *Handler {
	return &Handler{store: store, registry: registry}
}

type assignRequest struct {
	Tier string `json:"tier"`
}

type planResponse struct {
	UserID string `json:"user_id"`
	Tier   Tier   `json:"tier"`
	Limits Limits `json:"limits"`
}

// Assign handles PUT /plans/{userID}. Billing webhooks call this on
// subscription changes; quota and rate-limit records pick the new tier up
// on their next access.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	userID, ok := api.UserIDParam(r)
	if !ok {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	tier := Tier(req.Tier)
	if !Valid(tier) {
		api.HandleError(w, api.NewBadRequestError("unknown tier"))
		return
	}

	if err := h.store.SetTier(r.Context(), userID, tier); err != nil {
		slog.Error("plan assignment failed", "error", err, "user_id", userID, "tier", tier)
		api.HandleStorageError(w)
		return
	}

	api.JSON(w, http.StatusOK, planResponse{
		UserID: userID.String(),
		Tier:   tier,
		Limits: h.registry.Limits(tier),
	})
}

// Get handles GET /plans/{userID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := api.UserIDParam(r)
	if !ok {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	tier, err := h.store.Tier(r.Context(), userID)
	if err != nil {
		slog.Error("plan lookup failed", "error", err, "user_id", userID)
		api.HandleStorageError(w)
		return
	}

	api.JSON(w, http.StatusOK, planResponse{
		UserID: userID.String(),
		Tier:   tier,
		Limits: h.registry.Limits(tier),
	})
}
