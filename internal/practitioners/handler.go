package practitioners

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clearslot/clearslot/pkg/logging"
)

// Handler exposes the practitioner catalog over HTTP.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /practitioners.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("practitioner list failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"practitioners": list})
}

// Get handles GET /practitioners/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	practitioner, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("practitioner lookup failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, practitioner)
}

// UpdateRate handles PUT /admin/practitioners/{id}/rate. Bookings copy the
// rate at creation time, so the change only affects future bookings.
func (h *Handler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HourlyRateMinor int64 `json:"hourly_rate_minor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.HourlyRateMinor < 0 {
		writeJSONError(w, http.StatusBadRequest, "hourly_rate_minor must be non-negative")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.repo.UpdateHourlyRate(r.Context(), id, req.HourlyRateMinor); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("practitioner rate update failed", "error", err, "practitioner_id", id)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                id,
		"hourly_rate_minor": req.HourlyRateMinor,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
