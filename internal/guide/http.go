package guide

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/a-h/templ"

	"galway/internal/olive"
	"galway/internal/telemetry"
)

type Handler struct {
	gen    *olive.Generator
	guide  Guide
	events telemetry.Repository
	logger *log.Logger
}

func NewHandler(gen *olive.Generator, events telemetry.Repository, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{gen: gen, guide: Build(), events: events, logger: logger}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/olive/rarity
func (h *Handler) Rarity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.guide)
}

// GET /api/olive/sample
func (h *Handler) Sample(w http.ResponseWriter, r *http.Request) {
	b := h.gen.Generate()
	meta := telemetry.BranchMetadata(b)
	meta["source"] = "sample"
	telemetry.Record(h.events, h.logger, telemetry.EventBranchGenerated, meta)
	writeJSON(w, http.StatusOK, map[string]any{
		"branch":  b,
		"shortId": b.ShortID(),
		"overall": b.Rarity.Overall(),
	})
}

// Page serves GET /rarity.
func (h *Handler) Page() http.Handler {
	return templ.Handler(RarityPage(h.guide))
}
