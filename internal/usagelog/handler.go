package usagelog

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/usagegate/usagegate/internal/api"
)

// Handler serves the usage report endpoint for reporting collaborators.
type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List returns paginated usage log entries.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)

	entries, total, err := h.repo.List(r.Context(), params)
	if err != nil {
		slog.Error("listing usage log", "error", err)
		api.HandleStorageError(w)
		return
	}

	api.JSONPaginated(w, http.StatusOK, entries, total, params.Page, params.PageSize)
}

func parseListParams(r *http.Request) ListParams {
	params := DefaultListParams()

	if u := r.URL.Query().Get("user_id"); u != "" {
		if id, err := uuid.Parse(u); err == nil {
			params.UserID = &id
		}
	}
	if c := r.URL.Query().Get("component"); c != "" {
		params.Component = c
	}
	if o := r.URL.Query().Get("outcome"); o != "" {
		params.Outcome = o
	}
	if p := r.URL.Query().Get("page"); p != "" {
		if page, err := strconv.Atoi(p); err == nil && page > 0 {
			params.Page = page
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if pageSize, err := strconv.Atoi(ps); err == nil && pageSize > 0 && pageSize <= 100 {
			params.PageSize = pageSize
		}
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			params.From = &t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			params.To = &t
		}
	}

	return params
}
