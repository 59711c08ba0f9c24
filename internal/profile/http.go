package profile

import (
	"encoding/json"
	"net/http"
	"time"

	"galway/internal/auth"
)

type Handler struct {
	repoResolver func(*http.Request) *FileRepo
}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) SetRepoResolver(fn func(*http.Request) *FileRepo) {
	h.repoResolver = fn
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

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

// GET /api/settings
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	repo := h.repoForRequest(r)
	if repo == nil {
		writeErr(w, http.StatusInternalServerError, "profile repository unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    u.Public(),
		"profile": repo.Get(),
	})
}

// PATCH /api/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	repo := h.repoForRequest(r)
	if repo == nil {
		writeErr(w, http.StatusInternalServerError, "profile repository unavailable")
		return
	}
	var in Patch
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	var fields []auth.FieldError
	if in.Bio != nil {
		if msg := auth.BioProblem(*in.Bio); msg != "" {
			fields = append(fields, auth.FieldError{Path: "bio", Msg: msg})
		}
	}
	if in.Phone != nil {
		if msg := auth.PhoneProblem(*in.Phone); msg != "" {
			fields = append(fields, auth.FieldError{Path: "phone", Msg: msg})
		}
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"errors": fields,
		})
		return
	}

	p, err := repo.Update(in, time.Now())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "could not update settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "profile": p})
}
