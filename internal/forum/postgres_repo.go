package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS forum_threads (
	id                TEXT PRIMARY KEY,
	category          TEXT NOT NULL,
	title             TEXT NOT NULL,
	content           TEXT NOT NULL,
	author_id         TEXT NOT NULL DEFAULT '',
	author_username   TEXT NOT NULL,
	author_role       TEXT NOT NULL,
	author_svg        TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	likes             TEXT[] NOT NULL DEFAULT '{}',
	reply_count       INTEGER NOT NULL DEFAULT 0,
	last_reply_author TEXT,
	last_reply_at     TIMESTAMPTZ,
	is_reported       BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS forum_threads_category_idx ON forum_threads (category);
CREATE INDEX IF NOT EXISTS forum_threads_author_idx ON forum_threads (author_id, created_at);

CREATE TABLE IF NOT EXISTS forum_replies (
	id              TEXT PRIMARY KEY,
	thread_id       TEXT NOT NULL REFERENCES forum_threads (id) ON DELETE CASCADE,
	content         TEXT NOT NULL,
	author_id       TEXT NOT NULL DEFAULT '',
	author_username TEXT NOT NULL,
	author_role     TEXT NOT NULL,
	author_svg      TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	likes           TEXT[] NOT NULL DEFAULT '{}',
	is_reported     BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS forum_replies_thread_idx ON forum_replies (thread_id, created_at);
CREATE INDEX IF NOT EXISTS forum_replies_author_idx ON forum_replies (author_id, created_at);

CREATE TABLE IF NOT EXISTS forum_reports (
	id          TEXT PRIMARY KEY,
	target_type TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	reason      TEXT NOT NULL,
	reporter_id TEXT NOT NULL DEFAULT '',
	reporter    TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
ALTER TABLE forum_reports ADD COLUMN IF NOT EXISTS reporter_id TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS forum_reports_reporter_idx ON forum_reports (reporter_id);
`

const threadColumns = `id, category, title, content, author_id, author_username, author_role, author_svg,
	created_at, updated_at, likes, reply_count, last_reply_author, last_reply_at, is_reported`

const replyColumns = `id, thread_id, content, author_id, author_username, author_role, author_svg,
	created_at, likes, is_reported`

// PostgresRepo stores the forum in PostgreSQL through lib/pq.
type PostgresRepo struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepo)(nil)

// OpenPostgres connects, pings and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	r := &PostgresRepo{db: db}
	if err := r.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate forum schema: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepo) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func authorSVG(a Author) string {
	if a.OliveBranch == nil {
		return ""
	}
	return a.OliveBranch.SVG
}

func authorFrom(id, username, role, svg string) Author {
	a := Author{UserID: id, Username: username, Role: role}
	if svg != "" {
		a.OliveBranch = &BranchRef{SVG: svg}
	}
	return a
}

func scanThread(s rowScanner) (Thread, error) {
	var (
		t                        Thread
		authorID, username, role string
		svg                      string
		likes                    pq.StringArray
		lastAuthor               sql.NullString
		lastAt                   sql.NullTime
	)
	err := s.Scan(&t.ID, &t.Category, &t.Title, &t.Content, &authorID, &username, &role, &svg,
		&t.CreatedAt, &t.UpdatedAt, &likes, &t.ReplyCount, &lastAuthor, &lastAt, &t.IsReported)
	if err != nil {
		return Thread{}, err
	}
	t.Author = authorFrom(authorID, username, role, svg)
	t.Likes = []string(likes)
	if lastAuthor.Valid && lastAt.Valid {
		t.LastReply = &LastReply{Author: lastAuthor.String, Timestamp: lastAt.Time}
	}
	normalizeThread(&t)
	return t, nil
}

func scanReply(s rowScanner) (Reply, error) {
	var (
		rep                      Reply
		authorID, username, role string
		svg                      string
		likes                    pq.StringArray
	)
	err := s.Scan(&rep.ID, &rep.ThreadID, &rep.Content, &authorID, &username, &role, &svg,
		&rep.CreatedAt, &likes, &rep.IsReported)
	if err != nil {
		return Reply{}, err
	}
	rep.Author = authorFrom(authorID, username, role, svg)
	rep.Likes = []string(likes)
	normalizeReply(&rep)
	return rep, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertThread(ctx context.Context, db execer, t Thread) error {
	var lastAuthor sql.NullString
	var lastAt sql.NullTime
	if t.LastReply != nil {
		lastAuthor = sql.NullString{String: t.LastReply.Author, Valid: true}
		lastAt = sql.NullTime{Time: t.LastReply.Timestamp, Valid: true}
	}
	_, err := db.ExecContext(ctx, `INSERT INTO forum_threads (`+threadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.Category, t.Title, t.Content, t.Author.UserID, t.Author.Username, t.Author.Role, authorSVG(t.Author),
		t.CreatedAt, t.UpdatedAt, pq.Array(t.Likes), t.ReplyCount, lastAuthor, lastAt, t.IsReported)
	return err
}

func insertReply(ctx context.Context, db execer, rep Reply) error {
	_, err := db.ExecContext(ctx, `INSERT INTO forum_replies (`+replyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rep.ID, rep.ThreadID, rep.Content, rep.Author.UserID, rep.Author.Username, rep.Author.Role, authorSVG(rep.Author),
		rep.CreatedAt, pq.Array(rep.Likes), rep.IsReported)
	return err
}

func (r *PostgresRepo) Seed(ctx context.Context, threads []Thread, replies []Reply) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM forum_threads`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, t := range threads {
		normalizeThread(&t)
		if err := insertThread(ctx, tx, t); err != nil {
			return fmt.Errorf("seed thread %s: %w", t.ID, err)
		}
	}
	for _, rep := range replies {
		normalizeReply(&rep)
		if err := insertReply(ctx, tx, rep); err != nil {
			return fmt.Errorf("seed reply %s: %w", rep.ID, err)
		}
	}
	return tx.Commit()
}

func (r *PostgresRepo) ListThreads(ctx context.Context, category Category) ([]Thread, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+threadColumns+` FROM forum_threads
		WHERE ($1 = '' OR category = $1) ORDER BY id`, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Thread{}
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetThread(ctx context.Context, id string) (Thread, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM forum_threads WHERE id = $1`, id)
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Thread{}, ErrThreadNotFound
	}
	return t, err
}

func (r *PostgresRepo) CreateThread(ctx context.Context, t Thread) error {
	normalizeThread(&t)
	return insertThread(ctx, r.db, t)
}

func (r *PostgresRepo) ListReplies(ctx context.Context, threadID string) ([]Reply, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+replyColumns+` FROM forum_replies
		WHERE thread_id = $1 ORDER BY created_at, id`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Reply{}
	for rows.Next() {
		rep, err := scanReply(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CreateReply(ctx context.Context, rep Reply) (Thread, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Thread{}, err
	}
	defer func() { _ = tx.Rollback() }()

	normalizeReply(&rep)
	row := tx.QueryRowContext(ctx, `UPDATE forum_threads
		SET reply_count = reply_count + 1, updated_at = $2, last_reply_author = $3, last_reply_at = $2
		WHERE id = $1 RETURNING `+threadColumns, rep.ThreadID, rep.CreatedAt, rep.Author.Username)
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Thread{}, ErrThreadNotFound
	}
	if err != nil {
		return Thread{}, err
	}
	if err := insertReply(ctx, tx, rep); err != nil {
		return Thread{}, err
	}
	if err := tx.Commit(); err != nil {
		return Thread{}, err
	}
	return t, nil
}

func (r *PostgresRepo) ToggleThreadLike(ctx context.Context, id, userID string) (Thread, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Thread{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var likes pq.StringArray
	err = tx.QueryRowContext(ctx, `SELECT likes FROM forum_threads WHERE id = $1 FOR UPDATE`, id).Scan(&likes)
	if errors.Is(err, sql.ErrNoRows) {
		return Thread{}, false, ErrThreadNotFound
	}
	if err != nil {
		return Thread{}, false, err
	}
	next, liked := toggle(likes, userID)
	row := tx.QueryRowContext(ctx, `UPDATE forum_threads SET likes = $2 WHERE id = $1 RETURNING `+threadColumns,
		id, pq.Array(next))
	t, err := scanThread(row)
	if err != nil {
		return Thread{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Thread{}, false, err
	}
	return t, liked, nil
}

func (r *PostgresRepo) ToggleReplyLike(ctx context.Context, id, userID string) (Reply, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Reply{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var likes pq.StringArray
	err = tx.QueryRowContext(ctx, `SELECT likes FROM forum_replies WHERE id = $1 FOR UPDATE`, id).Scan(&likes)
	if errors.Is(err, sql.ErrNoRows) {
		return Reply{}, false, ErrReplyNotFound
	}
	if err != nil {
		return Reply{}, false, err
	}
	next, liked := toggle(likes, userID)
	row := tx.QueryRowContext(ctx, `UPDATE forum_replies SET likes = $2 WHERE id = $1 RETURNING `+replyColumns,
		id, pq.Array(next))
	rep, err := scanReply(row)
	if err != nil {
		return Reply{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Reply{}, false, err
	}
	return rep, liked, nil
}

func (r *PostgresRepo) CreateReport(ctx context.Context, rep Report) error {
	var (
		table    string
		notFound error
	)
	switch rep.TargetType {
	case TargetThread:
		table, notFound = "forum_threads", ErrThreadNotFound
	case TargetReply:
		table, notFound = "forum_replies", ErrReplyNotFound
	default:
		return ErrInvalidReport
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE `+table+` SET is_reported = TRUE WHERE id = $1`, rep.TargetID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO forum_reports (id, target_type, target_id, reason, reporter_id, reporter, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, rep.ID, rep.TargetType, rep.TargetID, rep.Reason, rep.ReporterID, rep.Reporter, rep.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresRepo) lastAt(ctx context.Context, query, userID string) (time.Time, error) {
	var last sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&last); err != nil {
		return time.Time{}, err
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time, nil
}

func (r *PostgresRepo) LastThreadAt(ctx context.Context, userID string) (time.Time, error) {
	return r.lastAt(ctx, `SELECT max(created_at) FROM forum_threads WHERE author_id = $1`, userID)
}

func (r *PostgresRepo) LastReplyAt(ctx context.Context, userID string) (time.Time, error) {
	return r.lastAt(ctx, `SELECT max(created_at) FROM forum_replies WHERE author_id = $1`, userID)
}
