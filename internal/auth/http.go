package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
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

// writeServiceErr maps service errors to status codes.
func writeServiceErr(w http.ResponseWriter, err error, fallback string) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"errors": ve.Fields,
		})
	case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrEmailTaken), errors.Is(err, ErrAlreadyVerified):
		writeErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCodeFormat), errors.Is(err, ErrConfirmMismatch):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidCode), errors.Is(err, ErrCodeExpired):
		writeErr(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrTooManyCodeAttempts):
		writeErr(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrSkipNotAllowed):
		writeErr(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUserNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, fallback)
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (User, bool) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
	}
	return u, ok
}

// POST /api/auth/check-username
func (h *Handler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	available, similar, err := h.service.CheckUsername(in.Username)
	if err != nil {
		writeServiceErr(w, err, "could not check username")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available": available,
		"similar":   similar,
	})
}

// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	u, token, exp, err := h.service.Register(in, time.Now())
	if err != nil {
		writeServiceErr(w, err, "could not register")
		return
	}

	h.service.SetSessionCookie(w, r, token, exp)
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":        true,
		"user":      u.Public(),
		"expiresAt": exp.Format(time.RFC3339),
	})
}

// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	identifier := in.Username
	if identifier == "" {
		identifier = in.Email
	}

	u, token, exp, err := h.service.Login(identifier, in.Password, time.Now())
	if err != nil {
		writeServiceErr(w, err, "could not log in")
		return
	}

	h.service.SetSessionCookie(w, r, token, exp)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"user":      u.Public(),
		"expiresAt": exp.Format(time.RFC3339),
	})
}

// POST /api/auth/verify-email
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := h.service.VerifyEmail(u.ID, in.Code, time.Now())
	if err != nil {
		writeServiceErr(w, err, "could not verify email")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": u.Public()})
}

// POST /api/auth/resend-verification
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	exp, err := h.service.ResendVerification(u.ID, time.Now())
	if err != nil {
		writeServiceErr(w, err, "could not send verification code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"expiresAt": exp.Format(time.RFC3339),
	})
}

// POST /api/auth/skip-verification
func (h *Handler) SkipVerification(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	u, err := h.service.SkipVerification(u.ID)
	if err != nil {
		writeServiceErr(w, err, "could not skip verification")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": u.Public()})
}

// GET /api/auth/session
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	u, sess, ok := h.service.AuthenticateRequest(r, time.Now())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"user": u.Public(),
		"session": map[string]any{
			"id":        sess.ID,
			"expiresAt": sess.ExpiresAt.Format(time.RFC3339),
			"lastSeen":  sess.LastSeen.Format(time.RFC3339),
		},
	})
}

// POST /api/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.RevokeSessionForRequest(r)
	h.service.ClearSessionCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// POST /api/settings/username
func (h *Handler) ChangeUsername(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := h.service.ChangeUsername(u.ID, in.Username)
	if err != nil {
		writeServiceErr(w, err, "could not change username")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": u.Public()})
}

// POST /api/settings/email
func (h *Handler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := h.service.ChangeEmail(u.ID, in.Email, time.Now())
	if err != nil {
		writeServiceErr(w, err, "could not change email")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": u.Public()})
}

// POST /api/settings/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.service.ChangePassword(u.ID, in.CurrentPassword, in.NewPassword); err != nil {
		writeServiceErr(w, err, "could not change password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// DELETE /api/settings/account
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.service.DeleteAccount(u.ID, in.Username, in.Password); err != nil {
		writeServiceErr(w, err, "could not delete account")
		return
	}
	h.service.ClearSessionCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
