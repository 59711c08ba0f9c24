package registration

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galway/internal/config"
	"galway/internal/inventory"
	"galway/internal/olive"
	"galway/internal/profile"
	"galway/internal/telemetry"
)

type fixture struct {
	h      *Handler
	repo   *FileRepo
	prof   *profile.FileRepo
	inv    *inventory.FileRepo
	events *telemetry.MemoryRepository
}

func newFixture(t *testing.T, userID string) fixture {
	t.Helper()
	dir := t.TempDir()
	repo, err := NewFileRepo(dir)
	require.NoError(t, err)
	profiles, err := profile.NewFileRepo(dir)
	require.NoError(t, err)
	items, err := inventory.NewFileRepo(dir)
	require.NoError(t, err)

	f := fixture{
		repo:   repo.ForUser(userID),
		prof:   profiles.ForUser(userID),
		inv:    items.ForUser(userID),
		events: telemetry.NewMemoryRepository(),
	}
	f.h = NewHandler(olive.NewSeeded(21), config.Default(), f.events, log.New(io.Discard, "", 0))
	f.h.SetRepoResolver(func(*http.Request) *FileRepo { return f.repo })
	f.h.SetProfileResolver(func(*http.Request) *profile.FileRepo { return f.prof })
	f.h.SetInventoryResolver(func(*http.Request) *inventory.FileRepo { return f.inv })
	return f
}

func generate(t *testing.T, f fixture) Candidate {
	t.Helper()
	rec := httptest.NewRecorder()
	f.h.Generate(rec, httptest.NewRequest(http.MethodPost, "/api/olive-branches/generate", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Candidate Candidate `json:"candidate"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out.Candidate
}

func confirmReq(id string) *http.Request {
	b, _ := json.Marshal(map[string]any{"branchId": id})
	return httptest.NewRequest(http.MethodPost, "/api/olive-branches/confirm", bytes.NewReader(b))
}

func TestGenerate_CapsAttempts(t *testing.T) {
	f := newFixture(t, "usr_a")

	for i := 0; i < 3; i++ {
		c := generate(t, f)
		assert.NotEmpty(t, c.Branch.SVG)
	}

	rec := httptest.NewRecorder()
	f.h.Generate(rec, httptest.NewRequest(http.MethodPost, "/api/olive-branches/generate", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, f.repo.State().Candidates, 3)

	listRec := httptest.NewRecorder()
	f.h.Candidates(listRec, httptest.NewRequest(http.MethodGet, "/api/olive-branches/candidates", nil))
	require.Equal(t, http.StatusOK, listRec.Code)
	var listed struct {
		Candidates   []Candidate `json:"candidates"`
		AttemptsLeft int         `json:"attemptsLeft"`
	}
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&listed))
	assert.Len(t, listed.Candidates, 3)
	assert.Zero(t, listed.AttemptsLeft)

	generated, err := f.events.GetEvents(time.Time{}, []telemetry.EventType{telemetry.EventBranchGenerated})
	require.NoError(t, err)
	assert.Len(t, generated, 3)
}

func TestConfirm_StoresBranchEverywhere(t *testing.T) {
	f := newFixture(t, "usr_b")
	generate(t, f)
	second := generate(t, f)

	rec := httptest.NewRecorder()
	f.h.Confirm(rec, confirmReq(second.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p := f.prof.Get()
	assert.True(t, p.RegistrationComplete)
	require.NotNil(t, p.ActiveBranch)
	assert.Equal(t, second.Branch.SVG, p.ActiveBranch.SVG)

	items := f.inv.Items()
	require.Len(t, items, 1)
	assert.Equal(t, p.ActiveBranchID, items[0].ID)
	assert.Equal(t, inventory.ItemBranch, items[0].Type)

	again := httptest.NewRecorder()
	f.h.Confirm(again, confirmReq(second.ID))
	assert.Equal(t, http.StatusConflict, again.Code)

	gen := httptest.NewRecorder()
	f.h.Generate(gen, httptest.NewRequest(http.MethodPost, "/api/olive-branches/generate", nil))
	assert.Equal(t, http.StatusConflict, gen.Code)
}

func TestConfirm_OnlyOwnCandidates(t *testing.T) {
	alice := newFixture(t, "usr_alice")
	bob := newFixture(t, "usr_bob")
	theirs := generate(t, alice)
	generate(t, bob)

	rec := httptest.NewRecorder()
	bob.h.Confirm(rec, confirmReq(theirs.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, bob.prof.Get().RegistrationComplete)
	assert.Empty(t, bob.inv.Items())

	missing := httptest.NewRecorder()
	bob.h.Confirm(missing, confirmReq(""))
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestConfirm_ConcurrentRequestsStoreOneBranch(t *testing.T) {
	f := newFixture(t, "usr_race")
	first := generate(t, f)
	second := generate(t, f)

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := first.ID
			if i%2 == 1 {
				id = second.ID
			}
			rec := httptest.NewRecorder()
			f.h.Confirm(rec, confirmReq(id))
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	ok, conflict := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflict++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflict)
	require.Len(t, f.inv.Items(), 1)
	assert.Equal(t, f.prof.Get().ActiveBranchID, f.inv.Items()[0].ID)
}

func TestConfirm_FullInventoryReleasesClaim(t *testing.T) {
	f := newFixture(t, "usr_full")
	c := generate(t, f)
	_, err := f.inv.AddSeeds(1, 0, time.Now())
	require.NoError(t, err)

	f.h.maxItems = 1
	rec := httptest.NewRecorder()
	f.h.Confirm(rec, confirmReq(c.ID))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, f.repo.State().ConfirmedID)
	assert.False(t, f.prof.Get().RegistrationComplete)

	f.h.maxItems = 2
	retry := httptest.NewRecorder()
	f.h.Confirm(retry, confirmReq(c.ID))
	require.Equal(t, http.StatusOK, retry.Code, retry.Body.String())
	assert.Equal(t, c.ID, f.repo.State().ConfirmedID)
	assert.Len(t, f.inv.Items(), 2)
}

func TestClaim_UnknownCandidateLeavesStateOpen(t *testing.T) {
	f := newFixture(t, "usr_claim")
	c := generate(t, f)

	_, err := f.repo.Claim("nope")
	assert.ErrorIs(t, err, ErrUnknownCandidate)
	assert.Empty(t, f.repo.State().ConfirmedID)

	got, err := f.repo.Claim(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	_, err = f.repo.Claim(c.ID)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)

	require.NoError(t, f.repo.Release("other"))
	assert.Equal(t, c.ID, f.repo.State().ConfirmedID)
	require.NoError(t, f.repo.Release(c.ID))
	assert.Empty(t, f.repo.State().ConfirmedID)
}
