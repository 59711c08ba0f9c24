package forum

import (
	"context"
	"time"
)

// Repository is implemented by the JSON file store and by Postgres.
type Repository interface {
	// Seed inserts the given content only when the forum is empty.
	Seed(ctx context.Context, threads []Thread, replies []Reply) error

	ListThreads(ctx context.Context, category Category) ([]Thread, error)
	GetThread(ctx context.Context, id string) (Thread, error)
	CreateThread(ctx context.Context, t Thread) error

	// ListReplies returns replies oldest first.
	ListReplies(ctx context.Context, threadID string) ([]Reply, error)
	// CreateReply stores r and bumps the parent thread's counters.
	CreateReply(ctx context.Context, r Reply) (Thread, error)

	// Likes are keyed by user id so they survive username changes.
	ToggleThreadLike(ctx context.Context, id, userID string) (Thread, bool, error)
	ToggleReplyLike(ctx context.Context, id, userID string) (Reply, bool, error)

	// CreateReport stores the report and flags its target.
	CreateReport(ctx context.Context, rep Report) error

	// LastThreadAt and LastReplyAt return the zero time when userID never posted.
	LastThreadAt(ctx context.Context, userID string) (time.Time, error)
	LastReplyAt(ctx context.Context, userID string) (time.Time, error)
}
