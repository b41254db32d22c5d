package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ridwanullahh/qurandb/internal/auth"
	"github.com/ridwanullahh/qurandb/internal/blobstore"
	"github.com/ridwanullahh/qurandb/internal/docstore"
)

type testEnv struct {
	srv *httptest.Server
	db  *docstore.Store
}

func newEnv(t *testing.T, limiter *Limiter) *testEnv {
	t.Helper()
	db := docstore.New(blobstore.NewMemStore(), "db", slog.Default())
	db.RetryBase = 0
	authSvc := auth.New(db, nil, auth.Config{}, slog.Default())
	srv := httptest.NewServer(New(db, authSvc, limiter, slog.Default()))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, db: db}
}

// call sends a JSON request and decodes the JSON response into out when out
// is non-nil.
func (e *testEnv) call(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, payload)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("%s %s: decoding response: %s", method, path, err)
		}
	}
	return resp.StatusCode
}

// session registers an account and returns a bearer token for it.
func (e *testEnv) session(t *testing.T, email string, roles []any) string {
	t.Helper()
	profile := map[string]any{}
	if roles != nil {
		profile["roles"] = roles
	}
	if code := e.call(t, "POST", "/api/auth/register", "", map[string]any{
		"email": email, "password": "pw", "profile": profile,
	}, nil); code != http.StatusCreated {
		t.Fatalf("register = %d", code)
	}
	var res auth.LoginResult
	if code := e.call(t, "POST", "/api/auth/login", "", map[string]any{
		"email": email, "password": "pw",
	}, &res); code != http.StatusOK {
		t.Fatalf("login = %d", code)
	}
	return res.Token
}

func TestHealth(t *testing.T) {
	e := newEnv(t, nil)
	var st docstore.Status
	if code := e.call(t, "GET", "/api/health", "", nil, &st); code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t, nil)
	token := e.session(t, "reader@example.com", nil)
	var me map[string]any
	if code := e.call(t, "GET", "/api/auth/me", token, nil, &me); code != http.StatusOK {
		t.Fatalf("me = %d", code)
	}
	if me["email"] != "reader@example.com" {
		t.Fatalf("me = %v", me)
	}
	if _, ok := me["password"]; ok {
		t.Fatal("me leaks password hash")
	}
	if code := e.call(t, "POST", "/api/auth/refresh", token, nil, nil); code != http.StatusNoContent {
		t.Fatalf("refresh = %d", code)
	}
	if code := e.call(t, "POST", "/api/auth/logout", token, nil, nil); code != http.StatusNoContent {
		t.Fatalf("logout = %d", code)
	}
	if code := e.call(t, "GET", "/api/auth/me", token, nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d", code)
	}
}

func TestCollectionCRUD(t *testing.T) {
	e := newEnv(t, nil)
	item := map[string]any{"surahNumber": 2, "verseNumber": 255}

	if code := e.call(t, "POST", "/api/collections/bookmarks", "", item, nil); code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated insert = %d", code)
	}
	token := e.session(t, "reader@example.com", nil)

	var doc map[string]any
	if code := e.call(t, "POST", "/api/collections/bookmarks", token, item, &doc); code != http.StatusCreated {
		t.Fatalf("insert = %d", code)
	}
	id, _ := doc["id"].(string)
	if id == "" {
		t.Fatalf("inserted doc = %v", doc)
	}

	// Reads are public.
	var got map[string]any
	if code := e.call(t, "GET", "/api/collections/bookmarks/"+id, "", nil, &got); code != http.StatusOK {
		t.Fatalf("get item = %d", code)
	}
	if got["uid"] != doc["uid"] {
		t.Fatalf("got %v, want %v", got, doc)
	}

	if code := e.call(t, "PUT", "/api/collections/bookmarks/"+id, token, map[string]any{"note": "memorize"}, &got); code != http.StatusOK {
		t.Fatalf("update = %d", code)
	}
	if got["note"] != "memorize" {
		t.Fatalf("updated doc = %v", got)
	}

	if code := e.call(t, "DELETE", "/api/collections/bookmarks/"+id, token, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete = %d", code)
	}
	if code := e.call(t, "DELETE", "/api/collections/bookmarks/"+id, token, nil, nil); code != http.StatusNotFound {
		t.Fatalf("double delete = %d", code)
	}
}

func TestQueryParameters(t *testing.T) {
	e := newEnv(t, nil)
	token := e.session(t, "reader@example.com", nil)
	for i := range 5 {
		if code := e.call(t, "POST", "/api/collections/bookmarks", token, map[string]any{"surahNumber": 5 - i}, nil); code != http.StatusCreated {
			t.Fatalf("insert %d failed", i)
		}
	}
	var docs []map[string]any
	if code := e.call(t, "GET", "/api/collections/bookmarks?sort=surahNumber&dir=asc&limit=2&offset=1", "", nil, &docs); code != http.StatusOK {
		t.Fatalf("query = %d", code)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0]["surahNumber"].(float64) != 2 || docs[1]["surahNumber"].(float64) != 3 {
		t.Fatalf("docs = %v", docs)
	}
	if code := e.call(t, "GET", "/api/collections/bookmarks?limit=x", "", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad limit = %d", code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	e := newEnv(t, nil)
	userToken := e.session(t, "reader@example.com", nil)
	adminToken := e.session(t, "admin@example.com", []any{"admin"})

	if code := e.call(t, "GET", "/api/collections/bookmarks/audit", userToken, nil, nil); code != http.StatusForbidden {
		t.Fatalf("audit as user = %d", code)
	}
	if code := e.call(t, "GET", "/api/collections/bookmarks/audit", adminToken, nil, nil); code != http.StatusOK {
		t.Fatalf("audit as admin = %d", code)
	}

	if code := e.call(t, "POST", "/api/collections/surahs/import?overwrite=true", userToken,
		[]map[string]any{{"name": "Al-Fatiha"}}, nil); code != http.StatusForbidden {
		t.Fatalf("import as user = %d", code)
	}
	var imported map[string]int
	if code := e.call(t, "POST", "/api/collections/surahs/import?overwrite=true", adminToken,
		[]map[string]any{{"name": "Al-Fatiha"}}, &imported); code != http.StatusOK {
		t.Fatalf("import as admin = %d", code)
	}
	if imported["imported"] != 1 {
		t.Fatalf("imported = %v", imported)
	}
	var exported []map[string]any
	if code := e.call(t, "GET", "/api/collections/surahs/export", adminToken, nil, &exported); code != http.StatusOK {
		t.Fatalf("export = %d", code)
	}
	if len(exported) != 1 {
		t.Fatalf("exported = %v", exported)
	}
}

func TestRoleManagement(t *testing.T) {
	e := newEnv(t, nil)
	adminToken := e.session(t, "admin@example.com", []any{"admin"})
	var user map[string]any
	if code := e.call(t, "POST", "/api/auth/register", "", map[string]any{
		"email": "editor@example.com", "password": "pw",
	}, &user); code != http.StatusCreated {
		t.Fatal("register failed")
	}
	uid := user["uid"].(string)
	var updated map[string]any
	if code := e.call(t, "POST", "/api/users/"+uid+"/roles", adminToken, map[string]any{"role": "editor"}, &updated); code != http.StatusOK {
		t.Fatalf("assign role = %d", code)
	}
	roles := updated["roles"].([]any)
	if len(roles) != 2 {
		t.Fatalf("roles = %v", roles)
	}
	if code := e.call(t, "DELETE", "/api/users/"+uid+"/roles/editor", adminToken, nil, &updated); code != http.StatusOK {
		t.Fatalf("remove role = %d", code)
	}
	if len(updated["roles"].([]any)) != 1 {
		t.Fatalf("roles after removal = %v", updated["roles"])
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewLimiter(1, 2)
	defer limiter.Close()
	e := newEnv(t, limiter)
	codes := map[int]int{}
	for i := range 5 {
		code := e.call(t, "POST", "/api/auth/login", "", map[string]any{
			"email": fmt.Sprintf("u%d@example.com", i), "password": "pw",
		}, nil)
		codes[code]++
	}
	if codes[http.StatusTooManyRequests] == 0 {
		t.Fatalf("no request was limited: %v", codes)
	}
	// The health endpoint is never limited.
	if code := e.call(t, "GET", "/api/health", "", nil, nil); code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}
}

func TestErrorShape(t *testing.T) {
	e := newEnv(t, nil)
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if code := e.call(t, "GET", "/api/collections/bookmarks/404", "", nil, &resp); code != http.StatusNotFound {
		t.Fatalf("status = %d", code)
	}
	if resp.Error.Code != "NOT_FOUND" || resp.Error.Message == "" {
		t.Fatalf("error body = %+v", resp)
	}
}
