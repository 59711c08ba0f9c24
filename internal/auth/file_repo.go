package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

type state struct {
	UsersByID            map[string]User                  `json:"usersById"`
	UserIDByEmail        map[string]string                `json:"userIdByEmail"`
	UserIDByUsername     map[string]string                `json:"userIdByUsername"`
	ChallengesByEmail    map[string]VerificationChallenge `json:"challengesByEmail"`
	SessionsByID         map[string]Session               `json:"sessionsById"`
	SessionIDByTokenHash map[string]string                `json:"sessionIdByTokenHash"`
}

func newState() state {
	return state{
		UsersByID:            map[string]User{},
		UserIDByEmail:        map[string]string{},
		UserIDByUsername:     map[string]string{},
		ChallengesByEmail:    map[string]VerificationChallenge{},
		SessionsByID:         map[string]Session{},
		SessionIDByTokenHash: map[string]string{},
	}
}

type FileRepo struct {
	mu   sync.RWMutex
	path string
	s    state
}

func NewFileRepo(dataDir string) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	r := &FileRepo{
		path: filepath.Join(dataDir, "auth.json"),
		s:    newState(),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRepo) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.s = newState()
			return nil
		}
		return err
	}
	loaded := newState()
	if err := json.Unmarshal(b, &loaded); err != nil {
		return err
	}
	if loaded.UsersByID == nil {
		loaded.UsersByID = map[string]User{}
	}
	if loaded.UserIDByEmail == nil {
		loaded.UserIDByEmail = map[string]string{}
	}
	if loaded.UserIDByUsername == nil {
		loaded.UserIDByUsername = map[string]string{}
	}
	if loaded.ChallengesByEmail == nil {
		loaded.ChallengesByEmail = map[string]VerificationChallenge{}
	}
	if loaded.SessionsByID == nil {
		loaded.SessionsByID = map[string]Session{}
	}
	if loaded.SessionIDByTokenHash == nil {
		loaded.SessionIDByTokenHash = map[string]string{}
	}
	r.s = loaded
	return nil
}

func (r *FileRepo) saveLocked() error {
	b, err := json.MarshalIndent(r.s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, b, 0o644)
}

func newID(prefix string) string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return prefix + "_" + hex.EncodeToString(b[:])
}

func (r *FileRepo) CreateUser(u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.s.UserIDByUsername[u.Username]; ok {
		return ErrUsernameTaken
	}
	if _, ok := r.s.UserIDByEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	r.s.UsersByID[u.ID] = u
	r.s.UserIDByEmail[u.Email] = u.ID
	r.s.UserIDByUsername[u.Username] = u.ID
	return r.saveLocked()
}

// UpdateUser rewrites the record and its username/email indexes.
func (r *FileRepo) UpdateUser(u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.s.UsersByID[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	if prev.Username != u.Username {
		if _, taken := r.s.UserIDByUsername[u.Username]; taken {
			return ErrUsernameTaken
		}
	}
	if prev.Email != u.Email {
		if _, taken := r.s.UserIDByEmail[u.Email]; taken {
			return ErrEmailTaken
		}
	}
	delete(r.s.UserIDByUsername, prev.Username)
	delete(r.s.UserIDByEmail, prev.Email)
	r.s.UsersByID[u.ID] = u
	r.s.UserIDByUsername[u.Username] = u.ID
	r.s.UserIDByEmail[u.Email] = u.ID
	return r.saveLocked()
}

// DeleteUser removes the user with their sessions and pending challenge.
func (r *FileRepo) DeleteUser(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.s.UsersByID[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(r.s.UsersByID, id)
	delete(r.s.UserIDByUsername, u.Username)
	delete(r.s.UserIDByEmail, u.Email)
	delete(r.s.ChallengesByEmail, u.Email)
	for sid, sess := range r.s.SessionsByID {
		if sess.UserID == id {
			delete(r.s.SessionsByID, sid)
			delete(r.s.SessionIDByTokenHash, sess.TokenHash)
		}
	}
	return r.saveLocked()
}

func (r *FileRepo) GetUserByID(id string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.s.UsersByID[id]
	return u, ok
}

func (r *FileRepo) GetUserByEmail(email string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.s.UserIDByEmail[email]
	if !ok {
		return User{}, false
	}
	u, ok := r.s.UsersByID[id]
	return u, ok
}

func (r *FileRepo) GetUserByUsername(username string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.s.UserIDByUsername[username]
	if !ok {
		return User{}, false
	}
	u, ok := r.s.UsersByID[id]
	return u, ok
}

func (r *FileRepo) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.s.UserIDByUsername))
	for name := range r.s.UserIDByUsername {
		out = append(out, name)
	}
	return out
}

// Users returns every account ordered by username.
func (r *FileRepo) Users() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]User, 0, len(r.s.UsersByID))
	for _, u := range r.s.UsersByID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// LastSeen is the most recent activity across the user's sessions. The
// second result is false when the user has never had a session.
func (r *FileRepo) LastSeen(userID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var last time.Time
	found := false
	for _, s := range r.s.SessionsByID {
		if s.UserID != userID {
			continue
		}
		seen := s.LastSeen
		if seen.IsZero() {
			seen = s.CreatedAt
		}
		if !found || seen.After(last) {
			last = seen
			found = true
		}
	}
	return last, found
}

func (r *FileRepo) PutChallenge(ch VerificationChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.ChallengesByEmail[ch.Email] = ch
	return r.saveLocked()
}

func (r *FileRepo) GetChallenge(email string) (VerificationChallenge, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.s.ChallengesByEmail[email]
	return ch, ok
}

func (r *FileRepo) DeleteChallenge(email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.s.ChallengesByEmail, email)
	return r.saveLocked()
}

func (r *FileRepo) CreateSession(s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.SessionsByID[s.ID] = s
	r.s.SessionIDByTokenHash[s.TokenHash] = s.ID
	return r.saveLocked()
}

func (r *FileRepo) GetSessionByTokenHash(tokenHash string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.s.SessionIDByTokenHash[tokenHash]
	if !ok {
		return Session{}, false
	}
	s, ok := r.s.SessionsByID[id]
	return s, ok
}

func (r *FileRepo) DeleteSessionByID(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.s.SessionsByID[sessionID]
	if !ok {
		return nil
	}
	delete(r.s.SessionsByID, sessionID)
	delete(r.s.SessionIDByTokenHash, s.TokenHash)
	return r.saveLocked()
}

func (r *FileRepo) DeleteSessionByTokenHash(tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.s.SessionIDByTokenHash[tokenHash]
	if !ok {
		return nil
	}
	delete(r.s.SessionIDByTokenHash, tokenHash)
	delete(r.s.SessionsByID, id)
	return r.saveLocked()
}

func (r *FileRepo) TouchSession(sessionID string, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.s.SessionsByID[sessionID]
	if !ok {
		return nil
	}
	s.LastSeen = lastSeen
	r.s.SessionsByID[sessionID] = s
	return r.saveLocked()
}
