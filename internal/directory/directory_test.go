package directory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galway/internal/auth"
	"galway/internal/inventory"
	"galway/internal/olive"
	"galway/internal/profile"
)

type fixture struct {
	auth      *auth.FileRepo
	profiles  *profile.FileRepo
	inventory *inventory.FileRepo
	router    http.Handler
}

var joined = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	a, err := auth.NewFileRepo(dir)
	require.NoError(t, err)
	p, err := profile.NewFileRepo(dir)
	require.NoError(t, err)
	inv, err := inventory.NewFileRepo(dir)
	require.NoError(t, err)

	users := []auth.User{
		{ID: "usr_ana", Username: "Ana_Grove", Email: "ana@example.com", Role: auth.RoleOperative, IDNo: "GW-0001"},
		{ID: "usr_bea", Username: "bea.roots", Email: "bea@example.com", Role: auth.RoleContributor, IDNo: "GW-0002"},
		{ID: "usr_cian", Username: "cian", Email: "cian@example.com", Role: auth.RoleModerator, IDNo: "GW-0003"},
		{ID: "usr_dara", Username: "dara_grove", Email: "dara@example.com", Role: auth.RoleOperative, IDNo: "GW-0004"},
	}
	for _, u := range users {
		u.CreatedAt = joined
		require.NoError(t, a.CreateUser(u))
	}

	h := NewHandler(New(a, p, inv))
	r := chi.NewRouter()
	r.Get("/api/users", h.List)
	r.Get("/api/users/{username}", h.Get)
	return &fixture{auth: a, profiles: p, inventory: inv, router: r}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func usernames(l Listing) []string {
	out := make([]string, 0, len(l.Members))
	for _, m := range l.Members {
		out = append(out, m.Username)
	}
	return out
}

func TestList_SearchIsCaseInsensitiveSubstring(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/users?search=GROVE")
	require.Equal(t, http.StatusOK, rec.Code)
	var out Listing
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, []string{"Ana_Grove", "dara_grove"}, usernames(out))
	assert.Equal(t, 2, out.Total)
}

func TestList_RoleFilterAndCounts(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/users?role=operative&search=ana")
	require.Equal(t, http.StatusOK, rec.Code)
	var out Listing
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, []string{"Ana_Grove"}, usernames(out))
	assert.Equal(t, map[string]int{
		"operative":   2,
		"contributor": 1,
		"beta-tester": 0,
		"moderator":   1,
	}, out.Roles, "role counts ignore the filters")

	rec = f.get(t, "/api/users?role=all")
	require.Equal(t, http.StatusOK, rec.Code)
	out = Listing{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, 4, out.Total)

	rec = f.get(t, "/api/users?role=admin")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestList_NeverExposesContactDetails(t *testing.T) {
	f := newFixture(t)
	_, err := f.profiles.ForUser("usr_bea").Init(profile.Details{
		Bio:   "Roots first, branches later.",
		Phone: "+353 91 555 0100",
		City:  "Galway",
	}, joined)
	require.NoError(t, err)

	rec := f.get(t, "/api/users")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "bea@example.com")
	assert.NotContains(t, body, "555 0100")
	assert.NotContains(t, body, "passwordHash")
	assert.Contains(t, body, "Roots first, branches later.")
}

func TestCard_ShowsInventoryOnlyWhenPublic(t *testing.T) {
	f := newFixture(t)
	now := joined.Add(time.Hour)
	b := olive.NewSeeded(11).Generate()

	inv := f.inventory.ForUser("usr_cian")
	item, err := inv.AddBranch(b, 80, now)
	require.NoError(t, err)
	_, err = inv.AddSeeds(3, 80, now)
	require.NoError(t, err)

	prof := f.profiles.ForUser("usr_cian")
	_, err = prof.Init(profile.Details{Bio: "Keeps the threads tidy.", Country: "Ireland", City: "Galway"}, joined)
	require.NoError(t, err)
	_, err = prof.CompleteRegistration(item.ID, b, now)
	require.NoError(t, err)

	rec := f.get(t, "/api/users/cian")
	require.Equal(t, http.StatusOK, rec.Code)
	var card Card
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&card))
	assert.Equal(t, auth.RoleModerator, card.Role)
	assert.Equal(t, "GW-0003", card.IDNo)
	assert.Equal(t, "03/14/2026", card.Onset)
	assert.Equal(t, "Keeps the threads tidy.", card.Bio)
	assert.Equal(t, "Ireland", card.Country)
	assert.Equal(t, "Galway", card.City)
	require.NotNil(t, card.ActiveBranch)
	assert.Equal(t, b.SVG, card.ActiveBranch.SVG)
	assert.False(t, card.InventoryPublic)
	assert.Nil(t, card.Inventory)
	assert.NotContains(t, rec.Body.String(), `"inventory":`)

	open := true
	_, err = prof.Update(profile.Patch{InventoryPublic: &open}, now)
	require.NoError(t, err)

	rec = f.get(t, "/api/users/cian")
	require.Equal(t, http.StatusOK, rec.Code)
	card = Card{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&card))
	assert.True(t, card.InventoryPublic)
	require.Len(t, card.Inventory, 2)
	assert.Equal(t, inventory.ItemSeed, card.Inventory[0].Type, "seeds lead")
	assert.Equal(t, item.ID, card.Inventory[1].ID)
}

func TestCard_LastSeenFollowsLatestSession(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/users/dara_grove")
	require.Equal(t, http.StatusOK, rec.Code)
	var card Card
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&card))
	assert.True(t, card.LastSeen.Equal(joined), "no sessions falls back to the join date")

	early := joined.Add(24 * time.Hour)
	late := joined.Add(72 * time.Hour)
	require.NoError(t, f.auth.CreateSession(auth.Session{ID: "ses_1", UserID: "usr_dara", TokenHash: "h1", CreatedAt: early, LastSeen: early}))
	require.NoError(t, f.auth.CreateSession(auth.Session{ID: "ses_2", UserID: "usr_dara", TokenHash: "h2", CreatedAt: early, LastSeen: early}))
	require.NoError(t, f.auth.TouchSession("ses_2", late))
	require.NoError(t, f.auth.CreateSession(auth.Session{ID: "ses_3", UserID: "usr_ana", TokenHash: "h3", CreatedAt: late.Add(time.Hour), LastSeen: late.Add(time.Hour)}))

	rec = f.get(t, "/api/users/dara_grove")
	require.Equal(t, http.StatusOK, rec.Code)
	card = Card{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&card))
	assert.True(t, card.LastSeen.Equal(late), "got %v", card.LastSeen)
}

func TestCard_UnknownMember(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/users/nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
