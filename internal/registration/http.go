package registration

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"galway/internal/config"
	"galway/internal/inventory"
	"galway/internal/olive"
	"galway/internal/profile"
	"galway/internal/telemetry"
)

type Handler struct {
	gen         *olive.Generator
	maxAttempts int
	maxItems    int
	events      telemetry.Repository
	logger      *log.Logger

	repoResolver      func(*http.Request) *FileRepo
	profileResolver   func(*http.Request) *profile.FileRepo
	inventoryResolver func(*http.Request) *inventory.FileRepo
}

func NewHandler(gen *olive.Generator, cfg *config.Config, events telemetry.Repository, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		gen:         gen,
		maxAttempts: cfg.Registration.MaxAttempts,
		maxItems:    cfg.Inventory.MaxItems,
		events:      events,
		logger:      logger,
	}
}

func (h *Handler) SetRepoResolver(fn func(*http.Request) *FileRepo) {
	h.repoResolver = fn
}

func (h *Handler) SetProfileResolver(fn func(*http.Request) *profile.FileRepo) {
	h.profileResolver = fn
}

func (h *Handler) SetInventoryResolver(fn func(*http.Request) *inventory.FileRepo) {
	h.inventoryResolver = fn
}

func (h *Handler) repoForRequest(r *http.Request) *FileRepo {
	if h.repoResolver == nil {
		return nil
	}
	return h.repoResolver(r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func writeRepoErr(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrAttemptsExhausted):
		writeErr(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrAlreadyConfirmed), errors.Is(err, inventory.ErrInventoryFull):
		writeErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnknownCandidate):
		writeErr(w, http.StatusNotFound, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, fallback)
	}
}

// POST /api/olive-branches/generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	repo := h.repoForRequest(r)
	if repo == nil {
		writeErr(w, http.StatusInternalServerError, "registration repository unavailable")
		return
	}
	c, left, err := repo.AddCandidate(h.gen.Generate, h.maxAttempts, time.Now())
	if err != nil {
		writeRepoErr(w, err, "could not generate branch")
		return
	}
	telemetry.Record(h.events, h.logger, telemetry.EventBranchGenerated, telemetry.BranchMetadata(c.Branch))
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":           true,
		"candidate":    c,
		"attemptsLeft": left,
	})
}

// GET /api/olive-branches/candidates
func (h *Handler) Candidates(w http.ResponseWriter, r *http.Request) {
	repo := h.repoForRequest(r)
	if repo == nil {
		writeErr(w, http.StatusInternalServerError, "registration repository unavailable")
		return
	}
	st := repo.State()
	left := h.maxAttempts - st.Attempts
	if left < 0 {
		left = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"candidates":   st.Candidates,
		"attemptsLeft": left,
		"confirmedId":  st.ConfirmedID,
	})
}

// POST /api/olive-branches/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	repo := h.repoForRequest(r)
	if repo == nil || h.profileResolver == nil || h.inventoryResolver == nil {
		writeErr(w, http.StatusInternalServerError, "registration repository unavailable")
		return
	}
	var in struct {
		BranchID string `json:"branchId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if in.BranchID == "" {
		writeErr(w, http.StatusBadRequest, `missing field "branchId"`)
		return
	}

	c, err := repo.Claim(in.BranchID)
	if err != nil {
		writeRepoErr(w, err, "could not confirm branch")
		return
	}
	now := time.Now()
	item, err := h.inventoryResolver(r).AddBranch(c.Branch, h.maxItems, now)
	if err != nil {
		if rerr := repo.Release(c.ID); rerr != nil {
			h.logger.Printf("[registration] release %s: %v", c.ID, rerr)
		}
		writeRepoErr(w, err, "could not store branch")
		return
	}
	p, err := h.profileResolver(r).CompleteRegistration(item.ID, c.Branch, now)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "could not update profile")
		return
	}
	telemetry.Record(h.events, h.logger, telemetry.EventBranchConfirmed, telemetry.BranchMetadata(c.Branch))
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"item":    item,
		"profile": p,
	})
}
