package account

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/usagegate/usagegate/internal/api"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

type ManageRequest struct {
	Action         string `json:"action" validate:"required,oneof=add_credits use_credits"`
	UserID         string `json:"user_id" validate:"required,uuid"`
	SubscriptionID string `json:"subscription_id" validate:"required,uuid"`
	AmountCents    int64  `json:"amount_cents" validate:"required,min=1"`
	CreditSource   string `json:"credit_source" validate:"max=255"`
}

// Manage handles POST /accounts/credits.
func (h *Handler) Manage(w http.ResponseWriter, r *http.Request) {
	var req ManageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	subscriptionID, err := uuid.Parse(req.SubscriptionID)
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	var result *Result
	switch req.Action {
	case ActionAddCredits:
		result, err = h.svc.AddCredits(r.Context(), userID, subscriptionID, req.AmountCents, req.CreditSource)
	case ActionUseCredits:
		result, err = h.svc.UseCredits(r.Context(), userID, subscriptionID, req.AmountCents, req.CreditSource)
	}
	if err != nil {
		slog.Error("account credits failed", "error", err, "user_id", userID, "action", req.Action)
		api.HandleStorageError(w)
		return
	}

	if !result.Success {
		api.JSON(w, http.StatusBadRequest, result)
		return
	}

	api.JSON(w, http.StatusOK, result)
}

// Get handles GET /accounts/{userID}/{subscriptionID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := api.UserIDParam(r)
	if !ok {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	subscriptionID, err := uuid.Parse(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	acc, err := h.svc.Get(r.Context(), userID, subscriptionID)
	if err != nil {
		slog.Error("account lookup failed", "error", err, "user_id", userID)
		api.HandleStorageError(w)
		return
	}

	api.JSON(w, http.StatusOK, acc)
}
