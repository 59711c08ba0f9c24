package forum

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

type fileState struct {
	Threads map[string]Thread `json:"threads"`
	Replies map[string]Reply  `json:"replies"`
	Reports []Report          `json:"reports"`
}

func newFileState() fileState {
	return fileState{
		Threads: map[string]Thread{},
		Replies: map[string]Reply{},
		Reports: []Report{},
	}
}

// FileRepo keeps the whole forum in one JSON document.
type FileRepo struct {
	mu   sync.RWMutex
	path string
	s    fileState
}

var _ Repository = (*FileRepo)(nil)

func NewFileRepo(dataDir string) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	r := &FileRepo{
		path: filepath.Join(dataDir, "forum.json"),
		s:    newFileState(),
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
			r.s = newFileState()
			return nil
		}
		return err
	}
	loaded := newFileState()
	if err := json.Unmarshal(b, &loaded); err != nil {
		return err
	}
	if loaded.Threads == nil {
		loaded.Threads = map[string]Thread{}
	}
	if loaded.Replies == nil {
		loaded.Replies = map[string]Reply{}
	}
	if loaded.Reports == nil {
		loaded.Reports = []Report{}
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

func (r *FileRepo) Seed(_ context.Context, threads []Thread, replies []Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.s.Threads) > 0 {
		return nil
	}
	for _, t := range threads {
		normalizeThread(&t)
		r.s.Threads[t.ID] = t
	}
	for _, rep := range replies {
		normalizeReply(&rep)
		r.s.Replies[rep.ID] = rep
	}
	return r.saveLocked()
}

func (r *FileRepo) ListThreads(_ context.Context, category Category) ([]Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Thread, 0, len(r.s.Threads))
	for _, t := range r.s.Threads {
		if category != "" && t.Category != category {
			continue
		}
		t.Likes = append([]string{}, t.Likes...)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *FileRepo) GetThread(_ context.Context, id string) (Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.s.Threads[id]
	if !ok {
		return Thread{}, ErrThreadNotFound
	}
	t.Likes = append([]string{}, t.Likes...)
	return t, nil
}

func (r *FileRepo) CreateThread(_ context.Context, t Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	normalizeThread(&t)
	r.s.Threads[t.ID] = t
	return r.saveLocked()
}

func (r *FileRepo) ListReplies(_ context.Context, threadID string) ([]Reply, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Reply{}
	for _, rep := range r.s.Replies {
		if rep.ThreadID != threadID {
			continue
		}
		rep.Likes = append([]string{}, rep.Likes...)
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *FileRepo) CreateReply(_ context.Context, rep Reply) (Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.s.Threads[rep.ThreadID]
	if !ok {
		return Thread{}, ErrThreadNotFound
	}
	normalizeReply(&rep)
	r.s.Replies[rep.ID] = rep

	t.ReplyCount++
	t.UpdatedAt = rep.CreatedAt
	t.LastReply = &LastReply{Author: rep.Author.Username, Timestamp: rep.CreatedAt}
	r.s.Threads[t.ID] = t
	if err := r.saveLocked(); err != nil {
		return Thread{}, err
	}
	return t, nil
}

func (r *FileRepo) ToggleThreadLike(_ context.Context, id, userID string) (Thread, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.s.Threads[id]
	if !ok {
		return Thread{}, false, ErrThreadNotFound
	}
	var liked bool
	t.Likes, liked = toggle(t.Likes, userID)
	r.s.Threads[id] = t
	if err := r.saveLocked(); err != nil {
		return Thread{}, false, err
	}
	return t, liked, nil
}

func (r *FileRepo) ToggleReplyLike(_ context.Context, id, userID string) (Reply, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep, ok := r.s.Replies[id]
	if !ok {
		return Reply{}, false, ErrReplyNotFound
	}
	var liked bool
	rep.Likes, liked = toggle(rep.Likes, userID)
	r.s.Replies[id] = rep
	if err := r.saveLocked(); err != nil {
		return Reply{}, false, err
	}
	return rep, liked, nil
}

func (r *FileRepo) CreateReport(_ context.Context, rep Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch rep.TargetType {
	case TargetThread:
		t, ok := r.s.Threads[rep.TargetID]
		if !ok {
			return ErrThreadNotFound
		}
		t.IsReported = true
		r.s.Threads[t.ID] = t
	case TargetReply:
		reply, ok := r.s.Replies[rep.TargetID]
		if !ok {
			return ErrReplyNotFound
		}
		reply.IsReported = true
		r.s.Replies[reply.ID] = reply
	default:
		return ErrInvalidReport
	}
	r.s.Reports = append(r.s.Reports, rep)
	return r.saveLocked()
}

func (r *FileRepo) LastThreadAt(_ context.Context, userID string) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last time.Time
	for _, t := range r.s.Threads {
		if t.Author.UserID == userID && t.CreatedAt.After(last) {
			last = t.CreatedAt
		}
	}
	return last, nil
}

func (r *FileRepo) LastReplyAt(_ context.Context, userID string) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last time.Time
	for _, rep := range r.s.Replies {
		if rep.Author.UserID == userID && rep.CreatedAt.After(last) {
			last = rep.CreatedAt
		}
	}
	return last, nil
}
