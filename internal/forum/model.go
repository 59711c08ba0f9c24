package forum

import (
	"errors"
	"fmt"
	"time"
)

type Category string

const (
	CategoryResearch Category = "research"
	CategoryGeneral  Category = "general"
)

var Categories = []Category{CategoryResearch, CategoryGeneral}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", ErrUnknownCategory
}

var (
	ErrUnknownCategory = errors.New("unknown forum category")
	ErrThreadNotFound  = errors.New("thread not found")
	ErrReplyNotFound   = errors.New("reply not found")
	ErrUnverified      = errors.New("verify your email to post")
	ErrBannedContent   = errors.New("your post contains prohibited content")
	ErrInvalidReport   = errors.New("report needs a target and a reason")
	ErrUnknownSort     = errors.New("unknown sort order")
)

// LengthError reports a field outside its allowed length.
type LengthError struct {
	Field    string
	Min, Max int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s must be between %d and %d characters", e.Field, e.Min, e.Max)
}

// CooldownError is returned while the author is rate limited.
type CooldownError struct {
	Action string
	Wait   time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s on cooldown, retry in %s", e.Action, e.Wait.Round(time.Second))
}

type BranchRef struct {
	SVG string `json:"svg"`
}

type Author struct {
	UserID      string     `json:"userId,omitempty"`
	Username    string     `json:"username"`
	Role        string     `json:"role"`
	OliveBranch *BranchRef `json:"oliveBranch,omitempty"`
}

type LastReply struct {
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

type Thread struct {
	ID         string     `json:"id"`
	Category   Category   `json:"category"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Author     Author     `json:"author"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Likes      []string   `json:"likes"`
	ReplyCount int        `json:"replyCount"`
	LastReply  *LastReply `json:"lastReply,omitempty"`
	IsReported bool       `json:"isReported"`
}

type Reply struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId"`
	Content    string    `json:"content"`
	Author     Author    `json:"author"`
	CreatedAt  time.Time `json:"createdAt"`
	Likes      []string  `json:"likes"`
	IsReported bool      `json:"isReported"`
}

type TargetType string

const (
	TargetThread TargetType = "thread"
	TargetReply  TargetType = "reply"
)

type Report struct {
	ID         string     `json:"id"`
	TargetType TargetType `json:"targetType"`
	TargetID   string     `json:"targetId"`
	Reason     string     `json:"reason"`
	ReporterID string     `json:"reporterId"`
	Reporter   string     `json:"reporter"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type SortOrder string

const (
	SortNewest      SortOrder = "newest"
	SortOldest      SortOrder = "oldest"
	SortMostLiked   SortOrder = "most-liked"
	SortMostReplies SortOrder = "most-replies"
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case "", SortNewest:
		return SortNewest, nil
	case SortOldest, SortMostLiked, SortMostReplies:
		return SortOrder(s), nil
	}
	return "", ErrUnknownSort
}

// toggle adds or removes id, reporting whether it is now present.
func toggle(likes []string, id string) ([]string, bool) {
	out := make([]string, 0, len(likes)+1)
	found := false
	for _, l := range likes {
		if l == id {
			found = true
			continue
		}
		out = append(out, l)
	}
	if found {
		return out, false
	}
	return append(out, id), true
}

func normalizeThread(t *Thread) {
	if t.Likes == nil {
		t.Likes = []string{}
	}
}

func normalizeReply(r *Reply) {
	if r.Likes == nil {
		r.Likes = []string{}
	}
}
