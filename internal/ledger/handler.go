package ledger

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

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
	UserID        string `json:"user_id" validate:"required,uuid"`
	CreditsNeeded int64  `json:"credits_needed" validate:"omitempty,min=1"`
	Reference     string `json:"reference" validate:"max=255"`
}

type consumeResponse struct {
	Success         bool        `json:"success"`
	CreditsConsumed int64       `json:"credits_consumed"`
	BucketsUsed     []BucketUse `json:"buckets_used"`
}

// Consume handles POST /credits/consume.
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

	receipt, consumed, err := h.svc.Consume(r.Context(), userID, req.CreditsNeeded, req.Reference)
	if err != nil {
		slog.Error("credit consume failed", "error", err, "user_id", userID)
		api.HandleStorageError(w)
		return
	}

	if !consumed {
		api.JSONErrorMessage(w, http.StatusBadRequest, "insufficient_credits")
		return
	}

	api.JSON(w, http.StatusOK, consumeResponse{
		Success:         true,
		CreditsConsumed: receipt.CreditsConsumed,
		BucketsUsed:     receipt.BucketsUsed,
	})
}

type GrantRequest struct {
	UserID     string `json:"user_id" validate:"required,uuid"`
	BucketType string `json:"bucket_type" validate:"required"`
	Priority   int    `json:"priority" validate:"min=0"`
	Credits    int64  `json:"credits" validate:"required,min=1"`
	ExpiresAt  string `json:"expires_at" validate:"required"`
}

// Grant handles POST /credits/grant.
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
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

	bt := BucketType(req.BucketType)
	if !bt.Valid() {
		api.HandleError(w, api.NewBadRequestError("unknown bucket type"))
		return
	}

	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("expires_at must be RFC3339"))
		return
	}

	bucket, err := h.svc.Grant(r.Context(), userID, bt, req.Priority, req.Credits, expiresAt)
	if err != nil {
		slog.Error("credit grant failed", "error", err, "user_id", userID)
		api.HandleStorageError(w)
		return
	}

	api.JSON(w, http.StatusCreated, bucket)
}

// Balance handles GET /credits/balance/{userID}.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := api.UserIDParam(r)
	if !ok {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	summary, err := h.svc.Balance(r.Context(), userID)
	if err != nil {
		slog.Error("credit balance failed", "error", err, "user_id", userID)
		api.HandleStorageError(w)
		return
	}

	api.JSON(w, http.StatusOK, summary)
}

type RefundRequest struct {
	UserID    string      `json:"user_id" validate:"required,uuid"`
	Reference string      `json:"reference" validate:"max=255"`
	Buckets   []BucketUse `json:"buckets" validate:"required,min=1,dive"`
}

type refundResponse struct {
	CreditsRestored int64 `json:"credits_restored"`
}

// Refund handles POST /credits/refund. Compensation for callers whose own
// action failed after a consumption committed.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
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

	restored, err := h.svc.Refund(r.Context(), userID, req.Buckets, req.Reference)
	if err != nil {
		slog.Error("credit refund failed", "error", err, "user_id", userID)
		api.HandleStorageError(w)
		return
	}

	api.JSON(w, http.StatusOK, refundResponse{CreditsRestored: restored})
}
