package telemetry

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

type Handler struct {
	repo Repository
	now  func() time.Time
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo, now: time.Now}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/stats?days=N
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "days must be a positive integer"})
			return
		}
		days = n
	}
	since := h.now().AddDate(0, 0, -days)

	events, err := h.repo.GetEvents(since, nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "could not load events"})
		return
	}
	stats, err := CalculateStats(events, since)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "could not compute stats"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
