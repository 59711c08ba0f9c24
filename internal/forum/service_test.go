package forum

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galway/internal/auth"
	"galway/internal/config"
	"galway/internal/telemetry"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*Service, *clock, *telemetry.MemoryRepository) {
	t.Helper()
	repo, err := NewFileRepo(t.TempDir())
	require.NoError(t, err)
	events := telemetry.NewMemoryRepository()
	svc := NewService(repo, config.Default().Forum, events, log.New(io.Discard, "", 0))
	c := &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc.SetClock(c.now)
	require.NoError(t, svc.Seed(context.Background()))
	return svc, c, events
}

var ana = Poster{UserID: "usr_ana", Username: "ana", Role: "operative", Verified: true, BranchSVG: "<svg/>"}

func TestListThreads_Sorts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	newest, err := svc.ListThreads(ctx, CategoryResearch, SortNewest)
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, "thread-a1b2c3", newest[0].ID)

	oldest, err := svc.ListThreads(ctx, CategoryResearch, SortOldest)
	require.NoError(t, err)
	assert.Equal(t, "thread-d4e5f6", oldest[0].ID)

	liked, err := svc.ListThreads(ctx, CategoryResearch, SortMostLiked)
	require.NoError(t, err)
	assert.Equal(t, "thread-d4e5f6", liked[0].ID)

	replied, err := svc.ListThreads(ctx, CategoryResearch, SortMostReplies)
	require.NoError(t, err)
	assert.Equal(t, "thread-a1b2c3", replied[0].ID)
}

func TestCreateThread_Rules(t *testing.T) {
	svc, c, events := newTestService(t)
	ctx := context.Background()

	unverified := ana
	unverified.Verified = false
	_, err := svc.CreateThread(ctx, unverified, CategoryGeneral, "Hello there", "A long enough body")
	assert.ErrorIs(t, err, ErrUnverified)

	_, err = svc.CreateThread(ctx, ana, CategoryGeneral, "Hi", "A long enough body")
	var lengthErr *LengthError
	require.ErrorAs(t, err, &lengthErr)
	assert.Equal(t, "title", lengthErr.Field)

	_, err = svc.CreateThread(ctx, ana, CategoryGeneral, "Hello there", "too short")
	require.ErrorAs(t, err, &lengthErr)
	assert.Equal(t, "content", lengthErr.Field)

	_, err = svc.CreateThread(ctx, ana, CategoryGeneral, "Buy SPAM now", "A long enough body")
	assert.ErrorIs(t, err, ErrBannedContent)

	th, err := svc.CreateThread(ctx, ana, CategoryGeneral, "  Hello there  ", "A long enough body")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", th.Title)
	assert.Equal(t, "usr_ana", th.Author.UserID)
	require.NotNil(t, th.Author.OliveBranch)

	c.advance(5 * time.Minute)
	_, err = svc.CreateThread(ctx, ana, CategoryGeneral, "Second one", "Another long enough body")
	var cooldown *CooldownError
	require.ErrorAs(t, err, &cooldown)
	assert.Equal(t, 5*time.Minute, cooldown.Wait)

	c.advance(5 * time.Minute)
	_, err = svc.CreateThread(ctx, ana, CategoryGeneral, "Second one", "Another long enough body")
	require.NoError(t, err)

	created, err := events.GetEvents(time.Time{}, []telemetry.EventType{telemetry.EventThreadCreated})
	require.NoError(t, err)
	assert.Len(t, created, 2)
}

func TestThreadPage_PaginatesReplies(t *testing.T) {
	svc, c, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		c.advance(time.Minute)
		_, _, err := svc.CreateReply(ctx, ana, "thread-a1b2c3", fmt.Sprintf("reply number %d", i))
		require.NoError(t, err)
	}

	first, err := svc.ThreadPage(ctx, "thread-a1b2c3", 1)
	require.NoError(t, err)
	assert.Equal(t, 13, first.TotalReplies)
	assert.Equal(t, 2, first.TotalPages)
	assert.Len(t, first.Replies, 10)
	assert.Equal(t, "reply-001", first.Replies[0].ID)
	assert.Equal(t, 13, first.Thread.ReplyCount)
	require.NotNil(t, first.Thread.LastReply)
	assert.Equal(t, "ana", first.Thread.LastReply.Author)

	last, err := svc.ThreadPage(ctx, "thread-a1b2c3", 99)
	require.NoError(t, err)
	assert.Equal(t, 2, last.Page)
	assert.Len(t, last.Replies, 3)

	_, err = svc.ThreadPage(ctx, "thread-missing", 1)
	assert.ErrorIs(t, err, ErrThreadNotFound)
}

func TestCreateReply_Cooldown(t *testing.T) {
	svc, c, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.CreateReply(ctx, ana, "thread-g7h8i9", "hi all")
	require.NoError(t, err)

	c.advance(30 * time.Second)
	_, _, err = svc.CreateReply(ctx, ana, "thread-g7h8i9", "me again")
	var cooldown *CooldownError
	require.ErrorAs(t, err, &cooldown)

	_, _, err = svc.CreateReply(ctx, ana, "thread-g7h8i9", "ok")
	var lengthErr *LengthError
	assert.ErrorAs(t, err, &lengthErr)
	assert.False(t, errors.As(err, &cooldown))
}

func newTestRouter(svc *Service, u *auth.User) http.Handler {
	h := NewHandler(svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if u != nil {
				req = req.WithContext(auth.ContextWithUser(req.Context(), *u))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/api/forum/threads/{id}", h.GetThread)
	r.Post("/api/forum/threads/{id}/replies", h.CreateReply)
	r.Post("/api/forum/threads/{id}/like", h.LikeThread)
	r.Post("/api/forum/replies/{id}/like", h.LikeReply)
	r.Post("/api/forum/report", h.Report)
	r.Get("/api/forum/{category}", h.ListThreads)
	r.Post("/api/forum/{category}/threads", h.CreateThread)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, rdr))
	return rec
}

func TestHandler_Flow(t *testing.T) {
	svc, _, _ := newTestService(t)
	user := &auth.User{ID: "usr_ana", Username: "ana", Role: auth.RoleOperative, EmailVerified: true}
	h := newTestRouter(svc, user)

	rec := doJSON(t, h, http.MethodGet, "/api/forum/general?sort=most-liked", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var listed struct {
		Threads []Thread `json:"threads"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	require.Len(t, listed.Threads, 1)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodGet, "/api/forum/memes", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodGet, "/api/forum/general?sort=random", nil).Code)

	rec = doJSON(t, h, http.MethodPost, "/api/forum/general/threads", map[string]string{
		"title": "Greetings", "content": "New operative checking in.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/forum/general/threads", map[string]string{
		"title": "Again", "content": "Another operative checking in.",
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = doJSON(t, h, http.MethodPost, "/api/forum/threads/thread-g7h8i9/replies", map[string]string{"content": "Hello!"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/forum/threads/thread-g7h8i9/like", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var like struct {
		Liked bool `json:"liked"`
		Likes int  `json:"likes"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&like))
	assert.True(t, like.Liked)
	assert.Equal(t, 4, like.Likes)

	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/api/forum/replies/reply-001/like", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodPost, "/api/forum/replies/nope/like", nil).Code)

	rec = doJSON(t, h, http.MethodPost, "/api/forum/report", map[string]string{
		"targetType": "thread", "targetId": "thread-d4e5f6", "reason": "misleading",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/forum/threads/thread-d4e5f6", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page ThreadPage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.True(t, page.Thread.IsReported)
}

func TestHandler_RequiresVerifiedUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	anon := newTestRouter(svc, nil)
	rec := doJSON(t, anon, http.MethodPost, "/api/forum/threads/thread-g7h8i9/replies", map[string]string{"content": "Hello!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	unverified := newTestRouter(svc, &auth.User{ID: "usr_bo", Username: "bo", Role: auth.RoleOperative})
	rec = doJSON(t, unverified, http.MethodPost, "/api/forum/threads/thread-g7h8i9/replies", map[string]string{"content": "Hello!"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "verify"))
}

func TestHandler_LikesFollowUserIDAcrossRenames(t *testing.T) {
	svc, _, _ := newTestService(t)
	user := &auth.User{ID: "usr_ren", Username: "olduser", Role: auth.RoleOperative, EmailVerified: true}
	h := newTestRouter(svc, user)

	like := func() (bool, int) {
		rec := doJSON(t, h, http.MethodPost, "/api/forum/threads/thread-g7h8i9/like", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out struct {
			Liked bool `json:"liked"`
			Likes int  `json:"likes"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
		return out.Liked, out.Likes
	}

	liked, n := like()
	assert.True(t, liked)
	assert.Equal(t, 4, n)

	user.Username = "newuser"
	liked, n = like()
	assert.False(t, liked)
	assert.Equal(t, 3, n)

	successor := newTestRouter(svc, &auth.User{ID: "usr_other", Username: "olduser", Role: auth.RoleOperative, EmailVerified: true})
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/api/forum/threads/thread-g7h8i9/like", nil).Code)
	rec := doJSON(t, successor, http.MethodPost, "/api/forum/threads/thread-g7h8i9/like", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	th, err := svc.Repo().GetThread(context.Background(), "thread-g7h8i9")
	require.NoError(t, err)
	assert.Contains(t, th.Likes, "usr_ren")
	assert.Contains(t, th.Likes, "usr_other")
	assert.Len(t, th.Likes, 5)
}

func TestReport_RecordsReporterID(t *testing.T) {
	svc, _, _ := newTestService(t)
	rep, err := svc.Report(context.Background(), ana, TargetThread, "thread-d4e5f6", "misleading")
	require.NoError(t, err)
	assert.Equal(t, "usr_ana", rep.ReporterID)
	assert.Equal(t, "ana", rep.Reporter)

	_, _, err = svc.ToggleThreadLike(context.Background(), Poster{Username: "ghost"}, "thread-d4e5f6")
	assert.ErrorIs(t, err, ErrUnverified)
}
