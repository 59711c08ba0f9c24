package forum

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"galway/internal/auth"
	"galway/internal/profile"
)

type Handler struct {
	svc             *Service
	profileResolver func(*http.Request) *profile.FileRepo
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// SetProfileResolver supplies the poster's profile so posts carry their active branch.
func (h *Handler) SetProfileResolver(fn func(*http.Request) *profile.FileRepo) {
	h.profileResolver = fn
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

func writeServiceErr(w http.ResponseWriter, err error) {
	var lengthErr *LengthError
	var cooldownErr *CooldownError
	switch {
	case errors.As(err, &lengthErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"errors": []map[string]string{{"path": lengthErr.Field, "msg": lengthErr.Error()}},
		})
	case errors.As(err, &cooldownErr):
		secs := int(math.Ceil(cooldownErr.Wait.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":      cooldownErr.Error(),
			"retryAfter": secs,
		})
	case errors.Is(err, ErrUnverified):
		writeErr(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrThreadNotFound), errors.Is(err, ErrReplyNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnknownCategory), errors.Is(err, ErrUnknownSort),
		errors.Is(err, ErrBannedContent), errors.Is(err, ErrInvalidReport):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) poster(r *http.Request) (Poster, bool) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		return Poster{}, false
	}
	p := Poster{
		UserID:   u.ID,
		Username: u.Username,
		Role:     string(u.Role),
		Verified: u.EmailVerified,
	}
	if h.profileResolver != nil {
		if repo := h.profileResolver(r); repo != nil {
			if prof := repo.Get(); prof.ActiveBranch != nil {
				p.BranchSVG = prof.ActiveBranch.SVG
			}
		}
	}
	return p, true
}

// GET /api/forum/{category}?sort=
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	category, err := ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	order, err := ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	threads, err := h.svc.ListThreads(r.Context(), category, order)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"sort":     order,
		"threads":  threads,
	})
}

// POST /api/forum/{category}/threads
func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	p, ok := h.poster(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	category, err := ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	t, err := h.svc.CreateThread(r.Context(), p, category, req.Title, req.Content)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"thread": t})
}

// GET /api/forum/threads/{id}?page=
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = n
	}
	out, err := h.svc.ThreadPage(r.Context(), chi.URLParam(r, "id"), page)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /api/forum/threads/{id}/replies
func (h *Handler) CreateReply(w http.ResponseWriter, r *http.Request) {
	p, ok := h.poster(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	rep, t, err := h.svc.CreateReply(r.Context(), p, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"reply": rep, "thread": t})
}

// POST /api/forum/threads/{id}/like
func (h *Handler) LikeThread(w http.ResponseWriter, r *http.Request) {
	p, ok := h.poster(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	t, liked, err := h.svc.ToggleThreadLike(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread": t, "liked": liked, "likes": len(t.Likes)})
}

// POST /api/forum/replies/{id}/like
func (h *Handler) LikeReply(w http.ResponseWriter, r *http.Request) {
	p, ok := h.poster(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	rep, liked, err := h.svc.ToggleReplyLike(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reply": rep, "liked": liked, "likes": len(rep.Likes)})
}

// POST /api/forum/report
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	p, ok := h.poster(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		TargetType TargetType `json:"targetType"`
		TargetID   string     `json:"targetId"`
		Reason     string     `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	rep, err := h.svc.Report(r.Context(), p, req.TargetType, req.TargetID, req.Reason)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"report": rep})
}
