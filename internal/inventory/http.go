package inventory

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"galway/internal/config"
	"galway/internal/olive"
	"galway/internal/profile"
	"galway/internal/telemetry"
)

type Handler struct {
	gen       *olive.Generator
	limits    Limits
	seedGrant int
	events    telemetry.Repository
	logger    *log.Logger

	repoResolver    func(*http.Request) *FileRepo
	profileResolver func(*http.Request) *profile.FileRepo
}

func NewHandler(gen *olive.Generator, cfg config.InventoryConfig, events telemetry.Repository, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		gen: gen,
		limits: Limits{
			ItemsPerPage: cfg.ItemsPerPage,
			MaxPages:     cfg.MaxPages,
			MaxItems:     cfg.MaxItems,
		},
		seedGrant: cfg.DemoSeedGrant,
		events:    events,
		logger:    logger,
	}
}

func (h *Handler) SetRepoResolver(fn func(*http.Request) *FileRepo) {
	h.repoResolver = fn
}

func (h *Handler) SetProfileResolver(fn func(*http.Request) *profile.FileRepo) {
	h.profileResolver = fn
}

func (h *Handler) repos(w http.ResponseWriter, r *http.Request) (*FileRepo, *profile.FileRepo, bool) {
	if h.repoResolver == nil || h.profileResolver == nil {
		writeErr(w, http.StatusInternalServerError, "inventory repository unavailable")
		return nil, nil, false
	}
	repo, prof := h.repoResolver(r), h.profileResolver(r)
	if repo == nil || prof == nil {
		writeErr(w, http.StatusInternalServerError, "inventory repository unavailable")
		return nil, nil, false
	}
	return repo, prof, true
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
	case errors.Is(err, ErrItemNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoSeeds), errors.Is(err, ErrInventoryFull), errors.Is(err, ErrActiveBranch), errors.Is(err, ErrSeedStackFull):
		writeErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrNotBranch), errors.Is(err, ErrUnknownSortOrder):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, fallback)
	}
}

// GET /api/inventory?sort=newest|oldest|rarity&page=N
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	repo, prof, ok := h.repos(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	order, err := ParseSortOrder(q.Get("sort"))
	if err != nil {
		writeRepoErr(w, err, "")
		return
	}
	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "page must be an integer")
			return
		}
		page = n
	}

	out := Paginate(Sorted(repo.Items(), order), page, h.limits)
	writeJSON(w, http.StatusOK, map[string]any{
		"inventory":      out,
		"sort":           order,
		"activeBranchId": prof.Get().ActiveBranchID,
	})
}

// POST /api/inventory/seeds
func (h *Handler) AddSeeds(w http.ResponseWriter, r *http.Request) {
	repo, _, ok := h.repos(w, r)
	if !ok {
		return
	}
	var in struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if in.Quantity == 0 {
		in.Quantity = h.seedGrant
	}
	if in.Quantity < 0 || in.Quantity > MaxSeedGrant {
		writeErr(w, http.StatusBadRequest, "quantity must be between 1 and "+strconv.Itoa(MaxSeedGrant))
		return
	}
	item, err := repo.AddSeeds(in.Quantity, h.limits.MaxItems, time.Now())
	if err != nil {
		writeRepoErr(w, err, "could not add seeds")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "item": item, "seedCount": item.Quantity})
}

// POST /api/inventory/plant
func (h *Handler) Plant(w http.ResponseWriter, r *http.Request) {
	repo, _, ok := h.repos(w, r)
	if !ok {
		return
	}
	item, remaining, err := repo.Plant(h.gen.Generate, h.limits.MaxItems, time.Now())
	if err != nil {
		writeRepoErr(w, err, "could not plant seed")
		return
	}
	telemetry.Record(h.events, h.logger, telemetry.EventSeedPlanted, telemetry.BranchMetadata(*item.Branch))
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "item": item, "seedCount": remaining})
}

// DELETE /api/inventory/items/{id}?quantity=N
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	repo, prof, ok := h.repos(w, r)
	if !ok {
		return
	}
	quantity := 1
	if v := r.URL.Query().Get("quantity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeRepoErr(w, ErrInvalidQuantity, "")
			return
		}
		quantity = n
	}
	item, removed, err := repo.Remove(chi.URLParam(r, "id"), quantity, prof.Get().ActiveBranchID)
	if err != nil {
		writeRepoErr(w, err, "could not remove item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"removed":   removed,
		"item":      item,
		"seedCount": repo.SeedCount(),
	})
}

// POST /api/inventory/items/{id}/activate
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	repo, prof, ok := h.repos(w, r)
	if !ok {
		return
	}
	item, found := repo.Get(chi.URLParam(r, "id"))
	if !found {
		writeRepoErr(w, ErrItemNotFound, "")
		return
	}
	if item.Type != ItemBranch || item.Branch == nil {
		writeRepoErr(w, ErrNotBranch, "")
		return
	}
	p, err := prof.SetActiveBranch(item.ID, *item.Branch, time.Now())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "could not activate branch")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "activeBranchId": p.ActiveBranchID})
}
