package quota

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

type ConsumeRequest struct {
	UserID       string `json:"user_id" validate:"required,uuid"`
	ResourceType string `json:"resource_type" validate:"required"`
	Amount       int64  `json:"amount" validate:"omitempty,min=1"`
}

// Check handles GET /quota/{userID}/{resourceType}.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := api.UserIDParam(r)
	if !ok {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	rt := ResourceType(chi.URLParam(r, "resourceType"))
	if !rt.Valid() {
		api.HandleError(w, api.NewBadRequestError("unknown resource type"))
		return
	}

	status, err := h.svc.Check(r.Context(), userID, rt)
	if err != nil {
		slog.Error("quota check failed", "error", err, "user_id", userID, "resource_type", rt)
		api.HandleStorageError(w)
		return
	}

	api.JSON(w, http.StatusOK, status)
}

// Consume handles POST /quota/consume.
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	var req ConsumeRequest
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

	rt := ResourceType(req.ResourceType)
	if !rt.Valid() {
		api.HandleError(w, api.NewBadRequestError("unknown resource type"))
		return
	}

	status, err := h.svc.Consume(r.Context(), userID, rt, req.Amount)
	if err != nil {
		slog.Error("quota consume failed", "error", err, "user_id", userID, "resource_type", rt)
		api.HandleStorageError(w)
		return
	}

	if !status.Allowed {
		api.JSON(w, http.StatusTooManyRequests, status)
		return
	}

	api.JSON(w, http.StatusOK, status)
}
