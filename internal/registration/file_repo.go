package registration

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"galway/internal/olive"
)

var (
	ErrAttemptsExhausted = errors.New("no generation attempts left")
	ErrUnknownCandidate  = errors.New("branch was not generated for this registration")
	ErrAlreadyConfirmed  = errors.New("registration branch already confirmed")
)

// Candidate is one generated branch offered during sign-up.
type Candidate struct {
	ID        string               `json:"id"`
	Branch    olive.BranchArtifact `json:"branch"`
	CreatedAt time.Time            `json:"createdAt"`
}

type State struct {
	Attempts    int         `json:"attempts"`
	Candidates  []Candidate `json:"candidates"`
	ConfirmedID string      `json:"confirmedId,omitempty"`
}

type fileState struct {
	Users map[string]State `json:"users"`
}

type store struct {
	mu   sync.RWMutex
	path string
	s    fileState
}

type FileRepo struct {
	store  *store
	userID string
}

func NewFileRepo(dataDir string) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	st := &store{
		path: filepath.Join(dataDir, "registration.json"),
		s:    fileState{Users: map[string]State{}},
	}
	if err := st.load(); err != nil {
		return nil, err
	}
	return &FileRepo{store: st, userID: "default"}, nil
}

func (s *store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.s = fileState{Users: map[string]State{}}
			return nil
		}
		return err
	}
	var loaded fileState
	if err := json.Unmarshal(b, &loaded); err != nil {
		return err
	}
	if loaded.Users == nil {
		loaded.Users = map[string]State{}
	}
	s.s = loaded
	return nil
}

func (s *store) saveLocked() error {
	b, err := json.MarshalIndent(s.s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}

func (r *FileRepo) ForUser(userID string) *FileRepo {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "default"
	}
	return &FileRepo{store: r.store, userID: userID}
}

func (r *FileRepo) State() State {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	st := r.store.s.Users[r.userID]
	st.Candidates = append([]Candidate(nil), st.Candidates...)
	return st
}

// AddCandidate spends one attempt. generate is only called when an attempt
// is still available.
func (r *FileRepo) AddCandidate(generate func() olive.BranchArtifact, maxAttempts int, now time.Time) (Candidate, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	st := r.store.s.Users[r.userID]
	if st.ConfirmedID != "" {
		return Candidate{}, 0, ErrAlreadyConfirmed
	}
	if st.Attempts >= maxAttempts {
		return Candidate{}, 0, ErrAttemptsExhausted
	}
	c := Candidate{ID: uuid.NewString(), Branch: generate(), CreatedAt: now}
	st.Attempts++
	st.Candidates = append(append([]Candidate(nil), st.Candidates...), c)
	r.store.s.Users[r.userID] = st
	if err := r.store.saveLocked(); err != nil {
		return Candidate{}, 0, err
	}
	return c, maxAttempts - st.Attempts, nil
}

// Claim marks the candidate as the confirmed branch and returns it. Only one
// claim per user can succeed until Release is called.
func (r *FileRepo) Claim(id string) (Candidate, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	st := r.store.s.Users[r.userID]
	if st.ConfirmedID != "" {
		return Candidate{}, ErrAlreadyConfirmed
	}
	for _, c := range st.Candidates {
		if c.ID != id {
			continue
		}
		st.ConfirmedID = id
		r.store.s.Users[r.userID] = st
		if err := r.store.saveLocked(); err != nil {
			st.ConfirmedID = ""
			r.store.s.Users[r.userID] = st
			return Candidate{}, err
		}
		return c, nil
	}
	return Candidate{}, ErrUnknownCandidate
}

// Release undoes a Claim of id. It is a no-op when id is not the claimed one.
func (r *FileRepo) Release(id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	st, ok := r.store.s.Users[r.userID]
	if !ok || st.ConfirmedID != id {
		return nil
	}
	st.ConfirmedID = ""
	r.store.s.Users[r.userID] = st
	return r.store.saveLocked()
}

func (r *FileRepo) Delete() error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.s.Users[r.userID]; !ok {
		return nil
	}
	delete(r.store.s.Users, r.userID)
	return r.store.saveLocked()
}
