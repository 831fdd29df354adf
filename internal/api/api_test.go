package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/starford/ansuz/internal/comments"
	"github.com/starford/ansuz/internal/content"
	"github.com/starford/ansuz/internal/postservice"
	"github.com/starford/ansuz/internal/prefs"
	"github.com/starford/ansuz/internal/search"
	"github.com/starford/ansuz/internal/testutil"
)

// testEnv sets up a temp posts directory, prefs DB, service, and router.
// authToken="" means auth disabled; non-empty means token mode.
func testEnv(t *testing.T, authToken string) (*postservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithRoot(t, authToken)
	return svc, router
}

func testEnvWithRoot(t *testing.T, authToken string) (*postservice.Service, http.Handler, string) {
	t.Helper()

	dir, provider := testutil.TestPostsDir(t)
	store := content.NewStore(provider, nil)
	if err := store.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	engine := search.NewEngine(store, nil)
	cs := comments.NewService("", "", "", nil)
	svc := postservice.NewService(provider, store, engine, cs)

	dbFile, err := os.CreateTemp("", "ansuz-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	db, err := prefs.Open(dbFile.Name(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	enabled := authToken != ""
	router := NewRouter(svc, engine, db, search.DefaultSettings(), enabled, authToken, nil, dir, "")
	return svc, router, dir
}

func createPost(t *testing.T, router http.Handler, slug, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(CreatePostRequest{Slug: slug, Content: content})
	req := httptest.NewRequest(http.MethodPost, "/posts", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetPost(t *testing.T) {
	_, router := testEnv(t, "")

	w := createPost(t, router, "hello-world", "---\ntitle: Hello\ntags: [intro]\n---\nWorld.")
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/posts/hello-world", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var post PostDetail
	_ = json.Unmarshal(w.Body.Bytes(), &post)
	if post.Slug != "hello-world" {
		t.Errorf("slug = %q", post.Slug)
	}
	if post.Title != "Hello" {
		t.Errorf("title = %q, want Hello", post.Title)
	}
	if post.Checksum == "" {
		t.Error("checksum missing")
	}
	if w.Header().Get("ETag") != `"`+post.Checksum+`"` {
		t.Errorf("etag = %q", w.Header().Get("ETag"))
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")

	if w := createPost(t, router, "dup", "a"); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := createPost(t, router, "dup", "a"); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	w := createPost(t, router, "lock", "v1")
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	var created PostDetail
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	updateBody, _ := json.Marshal(UpdatePostRequest{Content: "v2"})
	req := httptest.NewRequest(http.MethodPut, "/posts/lock", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", created.Checksum)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	// The same checksum is stale now.
	req = httptest.NewRequest(http.MethodPut, "/posts/lock", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", created.Checksum)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")

	createPost(t, router, "nolock", "v1")
	updateBody, _ := json.Marshal(UpdatePostRequest{Content: "v2"})
	req := httptest.NewRequest(http.MethodPut, "/posts/nolock", bytes.NewReader(updateBody))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d, want 200", w.Code)
	}
}

func TestDeletePost(t *testing.T) {
	_, router := testEnv(t, "")

	createPost(t, router, "bye", "gone")
	req := httptest.NewRequest(http.MethodDelete, "/posts/bye", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/posts/bye", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestListPostsAndTags(t *testing.T) {
	_, router := testEnv(t, "")

	createPost(t, router, "a", "---\ntitle: A\ntags: [go]\ndate: 2025-02-01\n---\nbody")
	createPost(t, router, "b", "---\ntitle: B\ntags: [go, web]\ndate: 2025-01-01\n---\nbody")

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var list PostListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 || len(list.Posts) != 2 {
		t.Errorf("list = %+v", list)
	}

	req = httptest.NewRequest(http.MethodGet, "/posts?tag=web", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || list.Posts[0].Slug != "b" {
		t.Errorf("tag filter = %+v", list)
	}

	req = httptest.NewRequest(http.MethodGet, "/posts?limit=1&offset=1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 || len(list.Posts) != 1 || list.Posts[0].Slug != "b" {
		t.Errorf("page = %+v", list)
	}

	req = httptest.NewRequest(http.MethodGet, "/tags", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var tags TagsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &tags)
	if len(tags.Tags) != 2 {
		t.Fatalf("tags = %+v", tags)
	}
	if tags.Tags[0].Tag != "go" || tags.Tags[0].Count != 2 {
		t.Errorf("tags[0] = %+v", tags.Tags[0])
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	createPost(t, router, "find", "---\ntitle: Uniquetoken post\n---\nbody here")

	req := httptest.NewRequest(http.MethodGet, "/search?q=uniquetoken", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Query != "uniquetoken" {
		t.Errorf("query = %q", resp.Query)
	}
	if resp.State != "complete" {
		t.Errorf("state = %q, want complete", resp.State)
	}
	if resp.Location != "q=uniquetoken" {
		t.Errorf("location = %q", resp.Location)
	}
	if len(resp.Results) != 1 || resp.Results[0].Slug != "find" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchEndpoint_EmptyQueryIdles(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.State != "idle" {
		t.Errorf("state = %q, want idle", resp.State)
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("results = %v, want empty list", resp.Results)
	}
}

func TestSearchEndpoint_SettingOverrides(t *testing.T) {
	_, router := testEnv(t, "")

	createPost(t, router, "strict", "---\ntitle: Precision post\n---\nbody")

	// A zero threshold still admits exact matches.
	req := httptest.NewRequest(http.MethodGet, "/search?q=precision&threshold=0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 {
		t.Errorf("exact under zero threshold = %+v", resp.Results)
	}

	// ...but rejects a misspelling the default threshold would accept.
	req = httptest.NewRequest(http.MethodGet, "/search?q=precison&threshold=0", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 0 {
		t.Errorf("fuzzy under zero threshold = %+v", resp.Results)
	}
}

func TestPreferencesRoundtrip(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(prefs.Preferences{
		Theme:     "dark",
		FontSize:  18,
		Bookmarks: []string{"hello-world"},
		Progress:  map[string]float64{"hello-world": 0.7},
	})
	req := httptest.NewRequest(http.MethodPut, "/preferences/reader-1", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("put = %d, body = %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/preferences/reader-1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var p prefs.Preferences
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if p.Theme != "dark" || p.FontSize != 18 {
		t.Errorf("prefs = %+v", p)
	}

	req = httptest.NewRequest(http.MethodDelete, "/preferences/reader-1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/preferences/reader-1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if p.Theme != "auto" {
		t.Errorf("theme = %q, want default after delete", p.Theme)
	}
}

func TestCommentsUnconfigured(t *testing.T) {
	_, router := testEnv(t, "")
	createPost(t, router, "quiet", "---\ntitle: Quiet\n---\nbody")

	req := httptest.NewRequest(http.MethodGet, "/posts/quiet/comments", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("comments = %d, want 503 without a configured repo", w.Code)
	}
}

func TestAddComment_RequiresToken(t *testing.T) {
	_, router := testEnv(t, "")
	createPost(t, router, "quiet", "---\ntitle: Quiet\n---\nbody")

	body, _ := json.Marshal(AddCommentRequest{Body: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/posts/quiet/comments", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("comment without token = %d, want 401", w.Code)
	}
}

func TestCoverUploadAndServe(t *testing.T) {
	_, router, dir := testEnvWithRoot(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "sunrise.jpg")
	io.WriteString(part, "jpegbytes")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/covers", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp CoverUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Filename != "sunrise.jpg" || resp.URL != "/covers/sunrise.jpg" {
		t.Errorf("resp = %+v", resp)
	}

	// Serving goes through the standalone handler outside /api.
	ch := NewCoverHandler(dir)
	r := chi.NewRouter()
	r.Get("/covers/{filename}", ch.ServeFile)
	req = httptest.NewRequest(http.MethodGet, "/covers/sunrise.jpg", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("serve = %d", w.Code)
	}
	if w.Body.String() != "jpegbytes" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestCoverServe_TraversalRejected(t *testing.T) {
	dir := t.TempDir()
	ch := NewCoverHandler(dir)
	r := chi.NewRouter()
	r.Get("/covers/{filename}", ch.ServeFile)

	req := httptest.NewRequest(http.MethodGet, "/covers/..%2fsecret.md", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code == http.StatusOK {
		t.Errorf("traversal = %d, want an error status", w.Code)
	}
}

func TestAuthMiddleware_MutatingRoutes(t *testing.T) {
	_, router := testEnv(t, "secret123")

	// Reads stay public.
	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("public read = %d, want 200", w.Code)
	}

	// Writes without a token are rejected.
	if w := createPost(t, router, "auth", "test"); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed create = %d, want 401", w.Code)
	}

	body, _ := json.Marshal(CreatePostRequest{Slug: "auth", Content: "test"})
	req = httptest.NewRequest(http.MethodPost, "/posts", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/posts", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestGetPost_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/posts/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing post = %d, want 404", w.Code)
	}
}
