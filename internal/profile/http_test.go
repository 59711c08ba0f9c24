package profile

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"galway/internal/auth"
	"galway/internal/olive"
)

func jsonReq(method, path string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSettingsEndpoints(t *testing.T) {
	repo, err := NewFileRepo(t.TempDir())
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	repo = repo.ForUser("usr_settings")
	if _, err := repo.Init(Details{Bio: "Keeper of the northern grove.", City: "Galway"}, time.Now()); err != nil {
		t.Fatalf("init: %v", err)
	}

	h := NewHandler()
	h.SetRepoResolver(func(_ *http.Request) *FileRepo { return repo })
	user := auth.User{ID: "usr_settings", Username: "grove.keeper", Email: "grove@example.com"}

	getReq := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	getReq = getReq.WithContext(auth.ContextWithUser(getReq.Context(), user))
	getRec := httptest.NewRecorder()
	h.Settings(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("settings expected 200, got %d", getRec.Code)
	}
	var out struct {
		User    auth.Public `json:"user"`
		Profile Profile     `json:"profile"`
	}
	if err := json.NewDecoder(getRec.Body).Decode(&out); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if out.User.Username != "grove.keeper" || out.Profile.City != "Galway" {
		t.Fatalf("unexpected settings: %+v", out)
	}

	badRec := httptest.NewRecorder()
	h.UpdateSettings(badRec, jsonReq(http.MethodPatch, "/api/settings", map[string]any{"bio": "short", "phone": "12"}))
	if badRec.Code != http.StatusBadRequest {
		t.Fatalf("invalid patch expected 400, got %d", badRec.Code)
	}

	okRec := httptest.NewRecorder()
	h.UpdateSettings(okRec, jsonReq(http.MethodPatch, "/api/settings", map[string]any{"country": "Ireland"}))
	if okRec.Code != http.StatusOK {
		t.Fatalf("patch expected 200, got %d body=%s", okRec.Code, okRec.Body.String())
	}
	p := repo.Get()
	if p.Country != "Ireland" || p.Bio != "Keeper of the northern grove." {
		t.Fatalf("patch should only touch country: %+v", p)
	}
}

func TestFileRepo_ActiveBranchSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFileRepo(dir)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	b := olive.NewSeeded(7).Generate()
	if _, err := repo.ForUser("u1").CompleteRegistration("item-1", b, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	reloaded, err := NewFileRepo(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	p := reloaded.ForUser("u1").Get()
	if !p.RegistrationComplete || p.ActiveBranchID != "item-1" || p.ActiveBranch == nil {
		t.Fatalf("unexpected profile after reload: %+v", p)
	}
	if p.ActiveBranch.SVG != b.SVG {
		t.Fatalf("branch svg changed across reload")
	}

	if err := reloaded.ForUser("u1").Delete(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if reloaded.ForUser("u1").Get().RegistrationComplete {
		t.Fatalf("expected empty profile after delete")
	}
}

func TestUpdateSettings_TogglesInventoryPublic(t *testing.T) {
	repo, err := NewFileRepo(t.TempDir())
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	repo = repo.ForUser("usr_public")
	if _, err := repo.Init(Details{Bio: "Keeper of the southern grove.", City: "Galway"}, time.Now()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if repo.Get().InventoryPublic {
		t.Fatalf("inventory should start private")
	}

	h := NewHandler()
	h.SetRepoResolver(func(_ *http.Request) *FileRepo { return repo })

	rec := httptest.NewRecorder()
	h.UpdateSettings(rec, jsonReq(http.MethodPatch, "/api/settings", map[string]any{"inventoryPublic": true}))
	if rec.Code != http.StatusOK {
		t.Fatalf("patch expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if p := repo.Get(); !p.InventoryPublic || p.City != "Galway" {
		t.Fatalf("inventoryPublic should be set and other fields kept: %+v", p)
	}

	rec = httptest.NewRecorder()
	h.UpdateSettings(rec, jsonReq(http.MethodPatch, "/api/settings", map[string]any{"city": "Clifden"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("patch expected 200, got %d", rec.Code)
	}
	if !repo.Get().InventoryPublic {
		t.Fatalf("omitting inventoryPublic must leave it unchanged")
	}

	rec = httptest.NewRecorder()
	h.UpdateSettings(rec, jsonReq(http.MethodPatch, "/api/settings", map[string]any{"inventoryPublic": false}))
	if rec.Code != http.StatusOK || repo.Get().InventoryPublic {
		t.Fatalf("inventoryPublic should be cleared, code=%d", rec.Code)
	}
}
