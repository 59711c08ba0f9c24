package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"galway/internal/olive"
)

type store struct {
	mu   sync.RWMutex
	path string
	s    fileState
}

// FileRepo is scoped to one user; ForUser returns a view over the same file.
type FileRepo struct {
	store  *store
	userID string
}

func NewFileRepo(dataDir string) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	st := &store{
		path: filepath.Join(dataDir, "profiles.json"),
		s:    fileState{Users: map[string]Profile{}},
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
			s.s = fileState{Users: map[string]Profile{}}
			return nil
		}
		return err
	}
	var loaded fileState
	if err := json.Unmarshal(b, &loaded); err != nil {
		return err
	}
	if loaded.Users == nil {
		loaded.Users = map[string]Profile{}
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

func (r *FileRepo) UserID() string { return r.userID }

func (r *FileRepo) Get() Profile {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return cloneProfile(r.store.s.Users[r.userID])
}

func (r *FileRepo) mutate(now time.Time, fn func(p *Profile)) (Profile, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p := r.store.s.Users[r.userID]
	fn(&p)
	p.UpdatedAt = now
	r.store.s.Users[r.userID] = p
	if err := r.store.saveLocked(); err != nil {
		return Profile{}, err
	}
	return cloneProfile(p), nil
}

// Init seeds the profile from the sign-up form.
func (r *FileRepo) Init(d Details, now time.Time) (Profile, error) {
	return r.mutate(now, func(p *Profile) {
		p.Bio = strings.TrimSpace(d.Bio)
		p.Phone = strings.TrimSpace(d.Phone)
		p.Birthday = strings.TrimSpace(d.Birthday)
		p.Country = strings.TrimSpace(d.Country)
		p.City = strings.TrimSpace(d.City)
	})
}

func (r *FileRepo) Update(in Patch, now time.Time) (Profile, error) {
	return r.mutate(now, func(p *Profile) {
		if in.Bio != nil {
			p.Bio = strings.TrimSpace(*in.Bio)
		}
		if in.Phone != nil {
			p.Phone = strings.TrimSpace(*in.Phone)
		}
		if in.Birthday != nil {
			p.Birthday = strings.TrimSpace(*in.Birthday)
		}
		if in.Country != nil {
			p.Country = strings.TrimSpace(*in.Country)
		}
		if in.City != nil {
			p.City = strings.TrimSpace(*in.City)
		}
		if in.InventoryPublic != nil {
			p.InventoryPublic = *in.InventoryPublic
		}
	})
}

func (r *FileRepo) SetActiveBranch(itemID string, b olive.BranchArtifact, now time.Time) (Profile, error) {
	return r.mutate(now, func(p *Profile) {
		p.ActiveBranchID = itemID
		p.ActiveBranch = &b
	})
}

// CompleteRegistration records the confirmed signature branch.
func (r *FileRepo) CompleteRegistration(itemID string, b olive.BranchArtifact, now time.Time) (Profile, error) {
	return r.mutate(now, func(p *Profile) {
		p.ActiveBranchID = itemID
		p.ActiveBranch = &b
		p.RegistrationComplete = true
	})
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
