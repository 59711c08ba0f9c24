package forum

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"galway/internal/config"
	"galway/internal/telemetry"
)

const (
	titleMin, titleMax     = 3, 120
	contentMin, contentMax = 10, 10000
	replyMin, replyMax     = 3, 5000
	reasonMax              = 500
)

// Poster is the signed-in user acting on the forum.
type Poster struct {
	UserID    string
	Username  string
	Role      string
	Verified  bool
	BranchSVG string
}

func (p Poster) author() Author {
	a := Author{UserID: p.UserID, Username: p.Username, Role: p.Role}
	if p.BranchSVG != "" {
		a.OliveBranch = &BranchRef{SVG: p.BranchSVG}
	}
	return a
}

// ThreadPage is a thread with one page of its replies.
type ThreadPage struct {
	Thread       Thread  `json:"thread"`
	Replies      []Reply `json:"replies"`
	Page         int     `json:"page"`
	TotalPages   int     `json:"totalPages"`
	TotalReplies int     `json:"totalReplies"`
}

// Service holds the posting rules on top of a Repository.
type Service struct {
	repo   Repository
	cfg    config.ForumConfig
	events telemetry.Repository
	logger *log.Logger
	now    func() time.Time
}

func NewService(repo Repository, cfg config.ForumConfig, events telemetry.Repository, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.RepliesPerPage <= 0 {
		cfg.RepliesPerPage = 10
	}
	return &Service{
		repo:   repo,
		cfg:    cfg,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source; tests use it to step past cooldowns.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Repo() Repository { return s.repo }

// Seed installs the welcome content when the forum is empty and seeding is enabled.
func (s *Service) Seed(ctx context.Context) error {
	if !s.cfg.SeedThreads {
		return nil
	}
	threads, replies := SeedContent(s.now())
	if err := s.repo.Seed(ctx, threads, replies); err != nil {
		return fmt.Errorf("seed forum: %w", err)
	}
	return nil
}

func (s *Service) ListThreads(ctx context.Context, category Category, order SortOrder) ([]Thread, error) {
	threads, err := s.repo.ListThreads(ctx, category)
	if err != nil {
		return nil, err
	}
	SortThreads(threads, order)
	return threads, nil
}

// SortThreads orders threads in place. Newest uses the last activity time.
func SortThreads(threads []Thread, order SortOrder) {
	sort.SliceStable(threads, func(i, j int) bool {
		a, b := threads[i], threads[j]
		switch order {
		case SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case SortMostLiked:
			if len(a.Likes) != len(b.Likes) {
				return len(a.Likes) > len(b.Likes)
			}
		case SortMostReplies:
			if a.ReplyCount != b.ReplyCount {
				return a.ReplyCount > b.ReplyCount
			}
		default:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
		}
		return a.ID < b.ID
	})
}

// ThreadPage returns the thread and the requested page of replies. Pages
// outside the range are clamped.
func (s *Service) ThreadPage(ctx context.Context, id string, page int) (ThreadPage, error) {
	t, err := s.repo.GetThread(ctx, id)
	if err != nil {
		return ThreadPage{}, err
	}
	replies, err := s.repo.ListReplies(ctx, id)
	if err != nil {
		return ThreadPage{}, err
	}

	per := s.cfg.RepliesPerPage
	total := (len(replies) + per - 1) / per
	if total < 1 {
		total = 1
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	start := (page - 1) * per
	end := start + per
	if end > len(replies) {
		end = len(replies)
	}
	return ThreadPage{
		Thread:       t,
		Replies:      replies[start:end],
		Page:         page,
		TotalPages:   total,
		TotalReplies: len(replies),
	}, nil
}

func (s *Service) containsBanned(texts ...string) bool {
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, w := range s.cfg.BannedWords {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" && strings.Contains(lower, w) {
				return true
			}
		}
	}
	return false
}

func checkLength(field, v string, min, max int) error {
	n := utf8.RuneCountInString(v)
	if n < min || n > max {
		return &LengthError{Field: field, Min: min, Max: max}
	}
	return nil
}

func (s *Service) checkCooldown(action string, last time.Time, cooldown time.Duration) error {
	if last.IsZero() || cooldown <= 0 {
		return nil
	}
	wait := last.Add(cooldown).Sub(s.now())
	if wait > 0 {
		return &CooldownError{Action: action, Wait: wait}
	}
	return nil
}

func (s *Service) CreateThread(ctx context.Context, p Poster, category Category, title, content string) (Thread, error) {
	if !p.Verified {
		return Thread{}, ErrUnverified
	}
	title, content = strings.TrimSpace(title), strings.TrimSpace(content)
	if err := checkLength("title", title, titleMin, titleMax); err != nil {
		return Thread{}, err
	}
	if err := checkLength("content", content, contentMin, contentMax); err != nil {
		return Thread{}, err
	}
	if s.containsBanned(title, content) {
		return Thread{}, ErrBannedContent
	}

	last, err := s.repo.LastThreadAt(ctx, p.UserID)
	if err != nil {
		return Thread{}, err
	}
	if err := s.checkCooldown("thread creation", last, s.cfg.ThreadCooldown()); err != nil {
		return Thread{}, err
	}

	now := s.now().UTC()
	t := Thread{
		ID:        "thread-" + uuid.NewString()[:8],
		Category:  category,
		Title:     title,
		Content:   content,
		Author:    p.author(),
		CreatedAt: now,
		UpdatedAt: now,
		Likes:     []string{},
	}
	if err := s.repo.CreateThread(ctx, t); err != nil {
		return Thread{}, err
	}
	telemetry.Record(s.events, s.logger, telemetry.EventThreadCreated, telemetry.EventMetadata{
		"thread_id": t.ID,
		"category":  string(category),
	})
	return t, nil
}

func (s *Service) CreateReply(ctx context.Context, p Poster, threadID, content string) (Reply, Thread, error) {
	if !p.Verified {
		return Reply{}, Thread{}, ErrUnverified
	}
	content = strings.TrimSpace(content)
	if err := checkLength("reply", content, replyMin, replyMax); err != nil {
		return Reply{}, Thread{}, err
	}
	if s.containsBanned(content) {
		return Reply{}, Thread{}, ErrBannedContent
	}

	last, err := s.repo.LastReplyAt(ctx, p.UserID)
	if err != nil {
		return Reply{}, Thread{}, err
	}
	if err := s.checkCooldown("reply", last, s.cfg.ReplyCooldown()); err != nil {
		return Reply{}, Thread{}, err
	}

	rep := Reply{
		ID:        "reply-" + uuid.NewString()[:8],
		ThreadID:  threadID,
		Content:   content,
		Author:    p.author(),
		CreatedAt: s.now().UTC(),
		Likes:     []string{},
	}
	t, err := s.repo.CreateReply(ctx, rep)
	if err != nil {
		return Reply{}, Thread{}, err
	}
	telemetry.Record(s.events, s.logger, telemetry.EventReplyCreated, telemetry.EventMetadata{
		"thread_id": threadID,
		"reply_id":  rep.ID,
	})
	return rep, t, nil
}

func (s *Service) ToggleThreadLike(ctx context.Context, p Poster, id string) (Thread, bool, error) {
	if p.UserID == "" {
		return Thread{}, false, ErrUnverified
	}
	return s.repo.ToggleThreadLike(ctx, id, p.UserID)
}

func (s *Service) ToggleReplyLike(ctx context.Context, p Poster, id string) (Reply, bool, error) {
	if p.UserID == "" {
		return Reply{}, false, ErrUnverified
	}
	return s.repo.ToggleReplyLike(ctx, id, p.UserID)
}

func (s *Service) Report(ctx context.Context, p Poster, target TargetType, targetID, reason string) (Report, error) {
	reason = strings.TrimSpace(reason)
	targetID = strings.TrimSpace(targetID)
	if targetID == "" || reason == "" || utf8.RuneCountInString(reason) > reasonMax {
		return Report{}, ErrInvalidReport
	}
	rep := Report{
		ID:         "report-" + uuid.NewString()[:8],
		TargetType: target,
		TargetID:   targetID,
		Reason:     reason,
		ReporterID: p.UserID,
		Reporter:   p.Username,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.CreateReport(ctx, rep); err != nil {
		return Report{}, err
	}
	s.logger.Printf("[forum] %s reported %s %s", p.Username, target, targetID)
	return rep, nil
}
