package inventory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"galway/internal/olive"
)

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
		path: filepath.Join(dataDir, "inventory.json"),
		s:    fileState{Users: map[string][]Item{}},
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
			s.s = fileState{Users: map[string][]Item{}}
			return nil
		}
		return err
	}
	var loaded fileState
	if err := json.Unmarshal(b, &loaded); err != nil {
		return err
	}
	if loaded.Users == nil {
		loaded.Users = map[string][]Item{}
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

func (r *FileRepo) Items() []Item {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return cloneItems(r.store.s.Users[r.userID])
}

func (r *FileRepo) Get(id string) (Item, bool) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, it := range r.store.s.Users[r.userID] {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func seedIndex(items []Item) int {
	for i, it := range items {
		if it.Type == ItemSeed {
			return i
		}
	}
	return -1
}

func (r *FileRepo) SeedCount() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	items := r.store.s.Users[r.userID]
	if i := seedIndex(items); i >= 0 {
		return items[i].Quantity
	}
	return 0
}

// AddSeeds stacks into the single seed item, creating it when missing.
func (r *FileRepo) AddSeeds(n, maxItems int, now time.Time) (Item, error) {
	if n <= 0 || n > MaxSeedStack {
		return Item{}, ErrInvalidQuantity
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	items := r.store.s.Users[r.userID]
	if i := seedIndex(items); i >= 0 {
		if items[i].Quantity > MaxSeedStack-n {
			return Item{}, ErrSeedStackFull
		}
		items[i].Quantity += n
		r.store.s.Users[r.userID] = items
		if err := r.store.saveLocked(); err != nil {
			return Item{}, err
		}
		return items[i], nil
	}
	if maxItems > 0 && len(items) >= maxItems {
		return Item{}, ErrInventoryFull
	}
	seed := Item{ID: uuid.NewString(), Type: ItemSeed, Quantity: n, CreatedAt: now}
	r.store.s.Users[r.userID] = append(items, seed)
	if err := r.store.saveLocked(); err != nil {
		return Item{}, err
	}
	return seed, nil
}

func newBranchItem(b olive.BranchArtifact, now time.Time) Item {
	info := b.Rarity
	return Item{
		ID:        uuid.NewString(),
		Type:      ItemBranch,
		Branch:    &b,
		Rarity:    &info,
		CreatedAt: now,
	}
}

func (r *FileRepo) AddBranch(b olive.BranchArtifact, maxItems int, now time.Time) (Item, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	items := r.store.s.Users[r.userID]
	if maxItems > 0 && len(items) >= maxItems {
		return Item{}, ErrInventoryFull
	}
	it := newBranchItem(b, now)
	r.store.s.Users[r.userID] = append(items, it)
	if err := r.store.saveLocked(); err != nil {
		return Item{}, err
	}
	return it, nil
}

// Plant consumes one seed and stores the grown branch. grow runs only once
// both the seed and the free slot are confirmed.
func (r *FileRepo) Plant(grow func() olive.BranchArtifact, maxItems int, now time.Time) (Item, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	items := cloneItems(r.store.s.Users[r.userID])
	si := seedIndex(items)
	if si < 0 || items[si].Quantity <= 0 {
		return Item{}, 0, ErrNoSeeds
	}

	remaining := items[si].Quantity - 1
	slots := len(items) + 1
	if remaining == 0 {
		slots--
	}
	if maxItems > 0 && slots > maxItems {
		return Item{}, items[si].Quantity, ErrInventoryFull
	}

	if remaining == 0 {
		items = append(items[:si], items[si+1:]...)
	} else {
		items[si].Quantity = remaining
	}
	it := newBranchItem(grow(), now)
	items = append(items, it)

	r.store.s.Users[r.userID] = items
	if err := r.store.saveLocked(); err != nil {
		return Item{}, 0, err
	}
	return it, remaining, nil
}

// Remove discards quantity seeds from a stack, or the whole item for
// branches and for quantities covering the full stack.
func (r *FileRepo) Remove(id string, quantity int, activeID string) (Item, bool, error) {
	if quantity <= 0 {
		quantity = 1
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	items := cloneItems(r.store.s.Users[r.userID])
	idx := -1
	for i, it := range items {
		if it.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Item{}, false, ErrItemNotFound
	}
	it := items[idx]
	if it.Type == ItemBranch && it.ID == activeID {
		return Item{}, false, ErrActiveBranch
	}

	removed := true
	if it.Type == ItemSeed && it.Quantity > quantity {
		items[idx].Quantity -= quantity
		it = items[idx]
		removed = false
	} else {
		items = append(items[:idx], items[idx+1:]...)
	}

	r.store.s.Users[r.userID] = items
	if err := r.store.saveLocked(); err != nil {
		return Item{}, false, err
	}
	return it, removed, nil
}

func (r *FileRepo) DeleteAll() error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.s.Users[r.userID]; !ok {
		return nil
	}
	delete(r.store.s.Users, r.userID)
	return r.store.saveLocked()
}
