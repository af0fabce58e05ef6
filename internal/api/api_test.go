package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/accounts"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/auth"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/db"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/fulfillment"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/ident"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/shipping"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/store"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/storefront"
)

const testJWTSecret = "test-secret"

type denyAfter struct {
	allowed int
	calls   int
}

func (d *denyAfter) Allow(context.Context, string, int64, time.Duration) (bool, error) {
	d.calls++
	return d.calls <= d.allowed, nil
}

type recordingPublisher struct {
	files  []string
	images []string
}

func (p *recordingPublisher) Configured() bool { return true }

func (p *recordingPublisher) PublishFile(_ context.Context, repoPath string, _ []byte, _ string) error {
	p.files = append(p.files, repoPath)
	return nil
}

func (p *recordingPublisher) PublishImage(_ context.Context, _, repoPath string) error {
	p.images = append(p.images, repoPath)
	return nil
}

type testEnv struct {
	server   *httptest.Server
	accounts *accounts.Store
	deps     Deps
	token    string
}

func setupTestServer(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	dir := t.TempDir()
	now := func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	accts := accounts.New(db.NewTestDB(t))
	inv, err := store.OpenInventory(filepath.Join(dir, "inventory.json"))
	if err != nil {
		t.Fatal(err)
	}
	subs, err := store.OpenSubscriptions(filepath.Join(dir, "subscriptions.json"), now)
	if err != nil {
		t.Fatal(err)
	}
	leads, err := store.OpenLeads(filepath.Join(dir, "leads.json"), now)
	if err != nil {
		t.Fatal(err)
	}
	weather := shipping.PlaceholderProvider{}

	d := Deps{
		Accounts:      accts,
		JWTSecret:     testJWTSecret,
		Inventory:     inv,
		Subscriptions: subs,
		Leads:         leads,
		Fulfillment:   &fulfillment.Coordinator{Inventory: inv, Subscriptions: subs, Weather: weather, Now: now},
		Weather:       weather,
		ItemIDs:       ident.NewRandomSuffix(),
		Layout: storefront.Layout{
			AssetsDir:       filepath.Join(dir, "Assets"),
			RepoCatalogPath: "docs/inventory.json",
			RepoAssetsDir:   "docs/Assets",
		},
		Now: now,
	}
	for _, m := range mutate {
		m(&d)
	}

	server := httptest.NewServer(NewRouter(d))
	t.Cleanup(server.Close)

	if _, err := accts.CreateUser(context.Background(), "admin", "password123", model.RoleAdmin); err != nil {
		t.Fatalf("creating admin: %v", err)
	}
	env := &testEnv{server: server, accounts: accts, deps: d}
	env.token = env.login(t, "admin", "password123")
	return env
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := e.do(t, "POST", "/api/auth/login", "", map[string]string{"username": username, "password": password})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}
	var out loginResponse
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Token == "" {
		t.Fatal("empty token from login")
	}
	return out.Token
}

func (e *testEnv) tokenFor(t *testing.T, username, role string) string {
	t.Helper()
	user, err := e.accounts.CreateUser(context.Background(), username, "password123", role)
	if err != nil {
		t.Fatal(err)
	}
	token, err := auth.GenerateToken(testJWTSecret, user)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int, into any) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong-password"})
	expectStatus(t, resp, http.StatusUnauthorized, nil)

	resp = env.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "admin"})
	expectStatus(t, resp, http.StatusBadRequest, nil)
}

func TestLoginRateLimit(t *testing.T) {
	limiter := &denyAfter{allowed: 1}
	env := setupTestServer(t, func(d *Deps) {
		d.Limiter = limiter
		d.LoginsPerMinute = 1
	})

	// setupTestServer used the one allowed attempt.
	resp := env.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "password123"})
	expectStatus(t, resp, http.StatusTooManyRequests, nil)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	expectStatus(t, env.do(t, "POST", "/api/auth/logout", env.token, nil), http.StatusOK, nil)
	expectStatus(t, env.do(t, "GET", "/api/items", env.token, nil), http.StatusUnauthorized, nil)
}

func TestChangePassword(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "PUT", "/api/auth/password", env.token, map[string]string{
		"current_password": "wrong-password",
		"new_password":     "new-password-1",
	})
	expectStatus(t, resp, http.StatusUnauthorized, nil)

	resp = env.do(t, "PUT", "/api/auth/password", env.token, map[string]string{
		"current_password": "password123",
		"new_password":     "new-password-1",
	})
	expectStatus(t, resp, http.StatusOK, nil)
	env.login(t, "admin", "new-password-1")
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	expectStatus(t, env.do(t, "GET", "/api/items", "", nil), http.StatusUnauthorized, nil)
	expectStatus(t, env.do(t, "GET", "/api/items", "not-a-token", nil), http.StatusUnauthorized, nil)

	// The storefront endpoints are public.
	expectStatus(t, env.do(t, "GET", "/api/catalog", "", nil), http.StatusOK, nil)
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)
	viewer := env.tokenFor(t, "visitor", model.RoleViewer)
	staff := env.tokenFor(t, "keeper", model.RoleStaff)

	item := map[string]any{"category": "pantry", "name": "Crickets", "price": 5}
	expectStatus(t, env.do(t, "POST", "/api/items", viewer, item), http.StatusForbidden, nil)
	expectStatus(t, env.do(t, "GET", "/api/users", staff, nil), http.StatusForbidden, nil)
	expectStatus(t, env.do(t, "GET", "/api/items", viewer, nil), http.StatusOK, nil)

	var created model.Item
	expectStatus(t, env.do(t, "POST", "/api/items", staff, item), http.StatusCreated, &created)
	expectStatus(t, env.do(t, "POST", "/api/items/"+created.ID+"/sell", staff, nil), http.StatusOK, nil)
	expectStatus(t, env.do(t, "POST", "/api/items/"+created.ID+"/reinstate", staff, map[string]string{"reason": "refund"}), http.StatusForbidden, nil)
}

func TestItemsAPIFlow(t *testing.T) {
	env := setupTestServer(t)

	var snake model.Item
	resp := env.do(t, "POST", "/api/items", env.token, map[string]any{
		"category":        "animals",
		"name":            "Ball Python",
		"variant":         "Pastel Het Clown",
		"price":           150,
		"quantity":        1,
		"verified_feeder": true,
	})
	expectStatus(t, resp, http.StatusCreated, &snake)
	if !strings.HasPrefix(snake.ID, "AN-2") {
		t.Errorf("expected generated animal id, got %q", snake.ID)
	}
	if snake.Status != model.ItemStatusAvailable {
		t.Errorf("expected AVAILABLE, got %s", snake.Status)
	}

	resp = env.do(t, "POST", "/api/items", env.token, map[string]any{
		"id": "PT-0001", "category": "pantry", "name": "Dubia Roaches", "variant": "Medium", "price": 25, "quantity": 10,
	})
	expectStatus(t, resp, http.StatusCreated, nil)
	resp = env.do(t, "POST", "/api/items", env.token, map[string]any{
		"id": "PT-0001", "category": "pantry", "name": "Duplicate",
	})
	expectStatus(t, resp, http.StatusConflict, nil)
	expectStatus(t, env.do(t, "POST", "/api/items", env.token, map[string]any{"category": "reptiles", "name": "x"}), http.StatusBadRequest, nil)

	var found []model.Item
	expectStatus(t, env.do(t, "GET", "/api/items?category=animals&q=clown", env.token, nil), http.StatusOK, &found)
	if len(found) != 1 || found[0].ID != snake.ID {
		t.Fatalf("search: expected the python, got %+v", found)
	}
	expectStatus(t, env.do(t, "GET", "/api/items?q=ROACH", env.token, nil), http.StatusOK, &found)
	if len(found) != 1 || found[0].ID != "PT-0001" {
		t.Fatalf("search across categories: got %+v", found)
	}

	// Reserve, then update a field without sending the status.
	snake.Status = model.ItemStatusReserved
	expectStatus(t, env.do(t, "PUT", "/api/items/"+snake.ID, env.token, snake), http.StatusOK, nil)
	var updated model.Item
	resp = env.do(t, "PUT", "/api/items/"+snake.ID, env.token, map[string]any{"name": "Ball Python", "variant": "Pastel Het Clown", "price": 140, "quantity": 1})
	expectStatus(t, resp, http.StatusOK, &updated)
	if updated.Status != model.ItemStatusReserved || updated.Price != 140 {
		t.Errorf("expected RESERVED at 140, got %s at %v", updated.Status, updated.Price)
	}

	var fed model.Item
	resp = env.do(t, "POST", "/api/items/"+snake.ID+"/feedings", env.token, map[string]string{"date": "2026-02-28", "food_type": "Frozen/Thawed Mouse"})
	expectStatus(t, resp, http.StatusCreated, &fed)
	if len(fed.FeedingLog) != 1 {
		t.Errorf("expected one feeding, got %d", len(fed.FeedingLog))
	}
	expectStatus(t, env.do(t, "POST", "/api/items/PT-0001/feedings", env.token, map[string]string{"food_type": "x"}), http.StatusBadRequest, nil)

	var sold model.Item
	expectStatus(t, env.do(t, "POST", "/api/items/"+snake.ID+"/sell", env.token, nil), http.StatusOK, &sold)
	if sold.Status != model.ItemStatusSold || sold.Price != 140 {
		t.Errorf("sell changed more than the status: %+v", sold)
	}

	sold.Status = model.ItemStatusAvailable
	expectStatus(t, env.do(t, "PUT", "/api/items/"+snake.ID, env.token, sold), http.StatusConflict, nil)
	expectStatus(t, env.do(t, "POST", "/api/items/"+snake.ID+"/reinstate", env.token, map[string]string{}), http.StatusBadRequest, nil)
	expectStatus(t, env.do(t, "POST", "/api/items/"+snake.ID+"/reinstate", env.token, map[string]string{"reason": "buyer cancelled"}), http.StatusOK, nil)

	expectStatus(t, env.do(t, "DELETE", "/api/items/PT-0001", env.token, nil), http.StatusOK, nil)
	expectStatus(t, env.do(t, "GET", "/api/items/PT-0001", env.token, nil), http.StatusNotFound, nil)
	expectStatus(t, env.do(t, "DELETE", "/api/items/PT-0001", env.token, nil), http.StatusNotFound, nil)
}

func TestShipAPI(t *testing.T) {
	env := setupTestServer(t)
	if err := env.deps.Inventory.Add(model.Item{ID: "AN-1", Category: model.CategoryAnimals, Name: "Crested Gecko"}); err != nil {
		t.Fatal(err)
	}

	// Placeholder reads 25F for 0xxxx ZIPs.
	var denied struct {
		Error  string             `json:"error"`
		Safety model.SafetyResult `json:"safety"`
	}
	expectStatus(t, env.do(t, "POST", "/api/items/AN-1/ship", env.token, map[string]string{"destination": "02134"}), http.StatusUnprocessableEntity, &denied)
	if denied.Safety.Classification != model.ClassificationDenied {
		t.Errorf("expected DENIED, got %s", denied.Safety.Classification)
	}
	if item, _ := env.deps.Inventory.Get("AN-1"); item.Status != model.ItemStatusAvailable {
		t.Errorf("denied shipment changed status to %s", item.Status)
	}

	var out fulfillment.Outcome
	expectStatus(t, env.do(t, "POST", "/api/items/AN-1/ship", env.token, map[string]string{"destination": "90210"}), http.StatusOK, &out)
	if out.Item.Status != model.ItemStatusSold || out.Safety.Classification != model.ClassificationSafe {
		t.Errorf("unexpected outcome %+v", out)
	}
	expectStatus(t, env.do(t, "POST", "/api/items/AN-1/ship", env.token, map[string]string{"destination": "90210"}), http.StatusConflict, nil)
}

func TestShippingCheck(t *testing.T) {
	env := setupTestServer(t)

	var res model.SafetyResult
	expectStatus(t, env.do(t, "GET", "/api/shipping/check?zip=33101", env.token, nil), http.StatusOK, &res)
	if res.Classification != model.ClassificationDenied || res.Temperature != 95 {
		t.Errorf("unexpected result %+v", res)
	}
	expectStatus(t, env.do(t, "GET", "/api/shipping/check", env.token, nil), http.StatusBadRequest, nil)
}

func TestSubscriptionsAPI(t *testing.T) {
	env := setupTestServer(t)

	var sub model.Subscription
	resp := env.do(t, "POST", "/api/subscriptions", env.token, map[string]any{"user_id": "user_1", "item": "100x Medium Dubia Roaches", "frequency_weeks": 2})
	expectStatus(t, resp, http.StatusCreated, &sub)
	if sub.ID != "SUB-0001" || sub.NextShipDate != "2026-03-15" {
		t.Fatalf("unexpected subscription %+v", sub)
	}
	expectStatus(t, env.do(t, "POST", "/api/subscriptions", env.token, map[string]any{"item": "x", "frequency_weeks": 0}), http.StatusBadRequest, nil)

	var due []model.Subscription
	expectStatus(t, env.do(t, "GET", "/api/subscriptions/due", env.token, nil), http.StatusOK, &due)
	if len(due) != 0 {
		t.Errorf("expected nothing due today, got %d", len(due))
	}
	expectStatus(t, env.do(t, "GET", "/api/subscriptions/due?as_of=2026-03-15", env.token, nil), http.StatusOK, &due)
	if len(due) != 1 {
		t.Errorf("expected one due, got %d", len(due))
	}

	expectStatus(t, env.do(t, "POST", "/api/subscriptions/SUB-0001/advance", env.token, nil), http.StatusOK, &sub)
	if sub.NextShipDate != "2026-03-29" {
		t.Errorf("expected 2026-03-29, got %s", sub.NextShipDate)
	}

	expectStatus(t, env.do(t, "PUT", "/api/subscriptions/SUB-0001/status", env.token, map[string]string{"status": "PAUSED"}), http.StatusOK, nil)
	expectStatus(t, env.do(t, "POST", "/api/subscriptions/SUB-0001/advance", env.token, nil), http.StatusConflict, nil)
	expectStatus(t, env.do(t, "POST", "/api/subscriptions/SUB-0404/advance", env.token, nil), http.StatusNotFound, nil)
}

func TestLeadsAPI(t *testing.T) {
	env := setupTestServer(t)
	viewer := env.tokenFor(t, "visitor", model.RoleViewer)

	resp := env.do(t, "POST", "/api/leads", "", map[string]string{"name": "Ana", "email": "ana@example.com", "message": "Do you ship to Ohio?"})
	expectStatus(t, resp, http.StatusCreated, nil)
	expectStatus(t, env.do(t, "POST", "/api/leads", "", map[string]string{"name": "Ana", "email": "nope"}), http.StatusBadRequest, nil)

	expectStatus(t, env.do(t, "GET", "/api/leads", viewer, nil), http.StatusForbidden, nil)
	var leads []model.Lead
	expectStatus(t, env.do(t, "GET", "/api/leads", env.token, nil), http.StatusOK, &leads)
	if len(leads) != 1 || leads[0].Status != model.LeadStatusNew {
		t.Fatalf("unexpected leads %+v", leads)
	}
}

func TestCatalogAndPublish(t *testing.T) {
	pub := &recordingPublisher{}
	env := setupTestServer(t, func(d *Deps) { d.Publisher = pub })
	if err := env.deps.Inventory.Add(model.Item{ID: "HB-1", Category: model.CategoryHabitats, Name: "40 Gallon Tank", Price: 89.99}); err != nil {
		t.Fatal(err)
	}

	resp := env.do(t, "GET", "/api/catalog", "", nil)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	want, _ := env.deps.Inventory.CatalogJSON()
	if !bytes.Equal(body, want) {
		t.Errorf("catalog body differs from persisted form:\n%s\nvs\n%s", body, want)
	}

	expectStatus(t, env.do(t, "POST", "/api/publish", env.token, nil), http.StatusOK, nil)
	if len(pub.files) != 1 || pub.files[0] != "docs/inventory.json" {
		t.Errorf("unexpected published files %v", pub.files)
	}
}

func TestPublishNotConfigured(t *testing.T) {
	env := setupTestServer(t)
	expectStatus(t, env.do(t, "POST", "/api/publish", env.token, nil), http.StatusServiceUnavailable, nil)
}

func TestUploadImage(t *testing.T) {
	pub := &recordingPublisher{}
	env := setupTestServer(t, func(d *Deps) { d.Publisher = pub })
	if err := env.deps.Inventory.Add(model.Item{ID: "AN-7", Category: model.CategoryAnimals, Name: "Blue Tongue Skink"}); err != nil {
		t.Fatal(err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.Set(1, 1, color.RGBA{10, 200, 30, 255})
	var pngData bytes.Buffer
	png.Encode(&pngData, img)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, _ := mw.CreateFormFile("image", "skink.png")
	fw.Write(pngData.Bytes())
	mw.Close()

	req, _ := http.NewRequest("PUT", env.server.URL+"/api/items/AN-7/image", &form)
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		Image     string `json:"image"`
		Published bool   `json:"published"`
	}
	expectStatus(t, resp, http.StatusOK, &out)
	if out.Image != "Assets/AN-7.jpg" || !out.Published {
		t.Errorf("unexpected upload result %+v", out)
	}
	if item, _ := env.deps.Inventory.Get("AN-7"); item.Image != "Assets/AN-7.jpg" {
		t.Errorf("item image not updated: %q", item.Image)
	}
	if _, err := os.Stat(filepath.Join(env.deps.Layout.AssetsDir, "AN-7.jpg")); err != nil {
		t.Errorf("image not written: %v", err)
	}
	if len(pub.images) != 1 || pub.images[0] != "docs/Assets/AN-7.jpg" {
		t.Errorf("unexpected published images %v", pub.images)
	}
}

func TestUsersAPI(t *testing.T) {
	env := setupTestServer(t)

	var user model.User
	resp := env.do(t, "POST", "/api/users", env.token, map[string]string{"username": "keeper", "password": "password123", "role": "staff"})
	expectStatus(t, resp, http.StatusCreated, &user)
	expectStatus(t, env.do(t, "POST", "/api/users", env.token, map[string]string{"username": "x", "password": "password123", "role": "owner"}), http.StatusBadRequest, nil)
	expectStatus(t, env.do(t, "POST", "/api/users", env.token, map[string]string{"username": "keeper", "password": "password123", "role": "staff"}), http.StatusConflict, nil)

	var users []model.User
	expectStatus(t, env.do(t, "GET", "/api/users", env.token, nil), http.StatusOK, &users)
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	path := "/api/users/" + strconv.FormatInt(user.ID, 10)
	expectStatus(t, env.do(t, "PUT", path+"/password", env.token, map[string]string{"password": "short"}), http.StatusBadRequest, nil)
	expectStatus(t, env.do(t, "PUT", path+"/password", env.token, map[string]string{"password": "another-pass"}), http.StatusOK, nil)
	env.login(t, "keeper", "another-pass")

	expectStatus(t, env.do(t, "DELETE", path, env.token, nil), http.StatusOK, nil)
	expectStatus(t, env.do(t, "DELETE", path, env.token, nil), http.StatusNotFound, nil)
}
