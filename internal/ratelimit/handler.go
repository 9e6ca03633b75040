package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

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

type CheckRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Cost   int64  `json:"cost" validate:"omitempty,min=1"`
}

// Check handles POST /ratelimit/check.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
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

	decision, err := h.svc.CheckAndConsume(r.Context(), userID, req.Cost)
	if err != nil {
		slog.Error("rate limit check failed", "error", err, "user_id", userID)
		api.HandleStorageError(w)
		return
	}

	if !decision.Allowed {
		w.Header().Set("Retry-After", strconv.FormatInt(decision.RetryAfterSeconds, 10))
		api.JSON(w, http.StatusTooManyRequests, decision)
		return
	}

	api.JSON(w, http.StatusOK, decision)
}

type statusResponse struct {
	Usage     Remaining `json:"usage"`
	Limits    Remaining `json:"limits"`
	Remaining Remaining `json:"remaining"`
}

// Status handles GET /ratelimit/status/{userID}.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := api.UserIDParam(r)
	if !ok {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	rec, err := h.svc.Status(r.Context(), userID)
	if err != nil {
		slog.Error("rate limit status failed", "error", err, "user_id", userID)
		api.HandleStorageError(w)
		return
	}

	api.JSON(w, http.StatusOK, statusResponse{
		Usage:     Remaining{Minute: rec.UsageMinute, Day: rec.UsageDay, Month: rec.UsageMonth},
		Limits:    Remaining{Minute: rec.LimitMinute, Day: rec.LimitDay, Month: rec.LimitMonth},
		Remaining: rec.Remaining(),
	})
}
