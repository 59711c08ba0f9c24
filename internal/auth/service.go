package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"golang.org/x/crypto/bcrypt"

	"galway/internal/config"
)

var (
	ErrUsernameTaken       = errors.New("username is already taken")
	ErrEmailTaken          = errors.New("email is already registered")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrInvalidCodeFormat   = errors.New("verification code must be 6 digits")
	ErrInvalidCode         = errors.New("invalid verification code")
	ErrCodeExpired         = errors.New("verification code expired")
	ErrTooManyCodeAttempts = errors.New("too many invalid verification attempts")
	ErrAlreadyVerified     = errors.New("email is already verified")
	ErrSkipNotAllowed      = errors.New("skipping verification is disabled")
	ErrUserNotFound        = errors.New("user not found")
	ErrConfirmMismatch     = errors.New("username confirmation does not match")
)

// Hooks let other packages react to account lifecycle changes.
type Hooks struct {
	OnRegistered func(u User, in RegisterInput)
	OnDeleted    func(userID string)
}

type Service struct {
	repo   *FileRepo
	mailer Mailer
	hooks  Hooks

	logger *log.Logger

	cookieName     string
	cookiePath     string
	cookieDomain   string
	cookieSameSite http.SameSite
	codeTTL        time.Duration
	sessionTTL     time.Duration
	maxAttempts    int
	bcryptCost     int
	allowSkip      bool
	similarLimit   int
}

func NewService(repo *FileRepo, cfg config.AuthConfig, mailer Mailer, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}
	s := &Service{
		repo:           repo,
		mailer:         mailer,
		logger:         logger,
		cookieName:     cfg.CookieName,
		cookiePath:     "/",
		cookieSameSite: http.SameSiteLaxMode,
		codeTTL:        cfg.CodeTTL(),
		sessionTTL:     cfg.SessionTTL(),
		maxAttempts:    cfg.MaxCodeAttempts,
		bcryptCost:     cfg.BcryptCost,
		allowSkip:      cfg.AllowSkipVerify,
		similarLimit:   cfg.SimilarNameLimit,
	}
	if s.cookieName == "" {
		s.cookieName = "galway_session"
	}
	if s.codeTTL <= 0 {
		s.codeTTL = 10 * time.Minute
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 7 * 24 * time.Hour
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 5
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	if s.similarLimit <= 0 {
		s.similarLimit = 5
	}
	if v := strings.TrimSpace(os.Getenv("GALWAY_COOKIE_PATH")); v != "" {
		s.cookiePath = v
	}
	s.cookieDomain = strings.TrimSpace(os.Getenv("GALWAY_COOKIE_DOMAIN"))
	switch strings.ToLower(strings.TrimSpace(os.Getenv("GALWAY_COOKIE_SAMESITE"))) {
	case "strict":
		s.cookieSameSite = http.SameSiteStrictMode
	case "none":
		s.cookieSameSite = http.SameSiteNoneMode
	}
	return s
}

func (s *Service) SetHooks(h Hooks) { s.hooks = h }

func (s *Service) Repo() *FileRepo { return s.repo }

func hashCode(email, code string) string {
	sum := sha256.Sum256([]byte(email + ":" + code))
	return hex.EncodeToString(sum[:])
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomDigits(n int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < n; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v.Int64()), nil
}

func generateToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

// CheckUsername reports availability and lists existing names one edit away.
func (s *Service) CheckUsername(username string) (bool, []string, error) {
	username = normalizeUsername(username)
	if msg := usernameProblem(username); msg != "" {
		return false, nil, &ValidationError{Fields: []FieldError{{Path: "username", Msg: msg}}}
	}
	_, taken := s.repo.GetUserByUsername(username)

	similar := []string{}
	for _, existing := range s.repo.Usernames() {
		if existing == username {
			continue
		}
		if levenshtein.ComputeDistance(existing, username) <= 1 {
			similar = append(similar, existing)
		}
	}
	sort.Strings(similar)
	if len(similar) > s.similarLimit {
		similar = similar[:s.similarLimit]
	}
	return !taken, similar, nil
}

// Register creates the account, mails a verification code and opens a session.
func (s *Service) Register(in RegisterInput, now time.Time) (User, string, time.Time, error) {
	in.Username = normalizeUsername(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.Bio = strings.TrimSpace(in.Bio)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validateRegistration(in); err != nil {
		return User{}, "", time.Time{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return User{}, "", time.Time{}, err
	}
	idNo, err := randomDigits(6)
	if err != nil {
		return User{}, "", time.Time{}, err
	}

	u := User{
		ID:           newID("usr"),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         RoleOperative,
		IDNo:         idNo,
		CreatedAt:    now,
	}
	if err := s.repo.CreateUser(u); err != nil {
		return User{}, "", time.Time{}, err
	}
	if s.hooks.OnRegistered != nil {
		s.hooks.OnRegistered(u, in)
	}

	if _, err := s.sendCode(u.Email, now); err != nil {
		s.logger.Printf("[auth] could not send verification code to %s: %v", u.Email, err)
	}

	token, exp, err := s.startSession(u.ID, now)
	if err != nil {
		return User{}, "", time.Time{}, err
	}
	return u, token, exp, nil
}

func (s *Service) sendCode(email string, now time.Time) (time.Time, error) {
	code, err := randomDigits(6)
	if err != nil {
		return time.Time{}, err
	}
	ch := VerificationChallenge{
		Email:       email,
		CodeHash:    hashCode(email, code),
		ExpiresAt:   now.Add(s.codeTTL),
		RequestedAt: now,
	}
	if err := s.repo.PutChallenge(ch); err != nil {
		return time.Time{}, err
	}
	if err := s.mailer.SendVerificationCode(email, code, ch.ExpiresAt); err != nil {
		return time.Time{}, err
	}
	return ch.ExpiresAt, nil
}

func (s *Service) ResendVerification(userID string, now time.Time) (time.Time, error) {
	u, ok := s.repo.GetUserByID(userID)
	if !ok {
		return time.Time{}, ErrUserNotFound
	}
	if u.EmailVerified {
		return time.Time{}, ErrAlreadyVerified
	}
	return s.sendCode(u.Email, now)
}

func (s *Service) VerifyEmail(userID, code string, now time.Time) (User, error) {
	if err := validateCode(code); err != nil {
		return User{}, err
	}
	u, ok := s.repo.GetUserByID(userID)
	if !ok {
		return User{}, ErrUserNotFound
	}
	if u.EmailVerified {
		return u, ErrAlreadyVerified
	}

	ch, ok := s.repo.GetChallenge(u.Email)
	if !ok {
		return User{}, ErrInvalidCode
	}
	if now.After(ch.ExpiresAt) {
		_ = s.repo.DeleteChallenge(u.Email)
		return User{}, ErrCodeExpired
	}
	if ch.Attempts >= s.maxAttempts {
		_ = s.repo.DeleteChallenge(u.Email)
		return User{}, ErrTooManyCodeAttempts
	}
	if hashCode(u.Email, code) != ch.CodeHash {
		ch.Attempts++
		if ch.Attempts >= s.maxAttempts {
			_ = s.repo.DeleteChallenge(u.Email)
			return User{}, ErrTooManyCodeAttempts
		}
		_ = s.repo.PutChallenge(ch)
		return User{}, ErrInvalidCode
	}

	if err := s.repo.DeleteChallenge(u.Email); err != nil {
		return User{}, err
	}
	u.EmailVerified = true
	u.VerificationSkipped = false
	if err := s.repo.UpdateUser(u); err != nil {
		return User{}, err
	}
	return u, nil
}

// SkipVerification lets the user continue unverified; forum posting stays locked.
func (s *Service) SkipVerification(userID string) (User, error) {
	if !s.allowSkip {
		return User{}, ErrSkipNotAllowed
	}
	u, ok := s.repo.GetUserByID(userID)
	if !ok {
		return User{}, ErrUserNotFound
	}
	if u.EmailVerified {
		return u, ErrAlreadyVerified
	}
	u.VerificationSkipped = true
	if err := s.repo.UpdateUser(u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Login accepts either a username or an email as identifier.
func (s *Service) Login(identifier, password string, now time.Time) (User, string, time.Time, error) {
	identifier = strings.TrimSpace(identifier)
	var (
		u  User
		ok bool
	)
	if strings.Contains(identifier, "@") {
		u, ok = s.repo.GetUserByEmail(normalizeEmail(identifier))
	} else {
		u, ok = s.repo.GetUserByUsername(identifier)
	}
	if !ok {
		return User{}, "", time.Time{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, "", time.Time{}, ErrInvalidCredentials
	}
	token, exp, err := s.startSession(u.ID, now)
	if err != nil {
		return User{}, "", time.Time{}, err
	}
	return u, token, exp, nil
}

func (s *Service) startSession(userID string, now time.Time) (string, time.Time, error) {
	token, err := generateToken()
	if err != nil {
		return "", time.Time{}, err
	}
	exp := now.Add(s.sessionTTL)
	sess := Session{
		ID:        newID("sess"),
		UserID:    userID,
		TokenHash: hashToken(token),
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: exp,
	}
	if err := s.repo.CreateSession(sess); err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (s *Service) ChangeUsername(userID, username string) (User, error) {
	username = normalizeUsername(username)
	if msg := usernameProblem(username); msg != "" {
		return User{}, &ValidationError{Fields: []FieldError{{Path: "username", Msg: msg}}}
	}
	u, ok := s.repo.GetUserByID(userID)
	if !ok {
		return User{}, ErrUserNotFound
	}
	if u.Username == username {
		return u, nil
	}
	u.Username = username
	if err := s.repo.UpdateUser(u); err != nil {
		return User{}, err
	}
	return u, nil
}

// ChangeEmail resets verification and mails a code to the new address.
func (s *Service) ChangeEmail(userID, email string, now time.Time) (User, error) {
	email = normalizeEmail(email)
	if msg := emailProblem(email); msg != "" {
		return User{}, &ValidationError{Fields: []FieldError{{Path: "email", Msg: msg}}}
	}
	u, ok := s.repo.GetUserByID(userID)
	if !ok {
		return User{}, ErrUserNotFound
	}
	if u.Email == email {
		return u, nil
	}
	previous := u.Email
	u.Email = email
	u.EmailVerified = false
	u.VerificationSkipped = false
	if err := s.repo.UpdateUser(u); err != nil {
		return User{}, err
	}
	_ = s.repo.DeleteChallenge(previous)
	if _, err := s.sendCode(email, now); err != nil {
		s.logger.Printf("[auth] could not send verification code to %s: %v", email, err)
	}
	return u, nil
}

func (s *Service) ChangePassword(userID, current, next string) error {
	u, ok := s.repo.GetUserByID(userID)
	if !ok {
		return ErrUserNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	if msg := passwordProblem(next); msg != "" {
		return &ValidationError{Fields: []FieldError{{Path: "newPassword", Msg: msg}}}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.bcryptCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return s.repo.UpdateUser(u)
}

// DeleteAccount requires the username typed back and the current password.
func (s *Service) DeleteAccount(userID, username, password string) error {
	u, ok := s.repo.GetUserByID(userID)
	if !ok {
		return ErrUserNotFound
	}
	if strings.TrimSpace(username) != u.Username {
		return ErrConfirmMismatch
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	if err := s.repo.DeleteUser(userID); err != nil {
		return err
	}
	if s.hooks.OnDeleted != nil {
		s.hooks.OnDeleted(userID)
	}
	return nil
}

func (s *Service) AuthenticateRequest(r *http.Request, now time.Time) (User, Session, bool) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return User{}, Session{}, false
	}

	sess, ok := s.repo.GetSessionByTokenHash(hashToken(cookie.Value))
	if !ok {
		return User{}, Session{}, false
	}

	if now.After(sess.ExpiresAt) {
		_ = s.repo.DeleteSessionByID(sess.ID)
		return User{}, Session{}, false
	}

	u, ok := s.repo.GetUserByID(sess.UserID)
	if !ok {
		_ = s.repo.DeleteSessionByID(sess.ID)
		return User{}, Session{}, false
	}

	// Throttled to keep writes down.
	if now.Sub(sess.LastSeen) >= 5*time.Minute {
		_ = s.repo.TouchSession(sess.ID, now)
		sess.LastSeen = now
	}

	return u, sess, true
}

func (s *Service) RevokeSessionForRequest(r *http.Request) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return
	}
	_ = s.repo.DeleteSessionByTokenHash(hashToken(cookie.Value))
}

func (s *Service) shouldUseSecureCookie(r *http.Request) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("GALWAY_COOKIE_SECURE"))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}

func (s *Service) cookie(r *http.Request, value string, expiresAt time.Time) *http.Cookie {
	secure := s.shouldUseSecureCookie(r)
	sameSite := s.cookieSameSite
	// Browsers drop SameSite=None cookies that are not Secure.
	if sameSite == http.SameSiteNoneMode && !secure {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    value,
		Path:     s.cookiePath,
		Domain:   s.cookieDomain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	}
}

func (s *Service) SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, s.cookie(r, token, expiresAt))
}

func (s *Service) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	c := s.cookie(r, "", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func (s *Service) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, sess, ok := s.AuthenticateRequest(r, time.Now())
		if !ok {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "unauthorized"})
			return
		}
		ctx := withSessionContext(withUserContext(r.Context(), u), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
