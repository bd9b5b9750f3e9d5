// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verso-cms/verso/internal/middleware"
	"github.com/verso-cms/verso/internal/scheduler"
	"github.com/verso-cms/verso/internal/service"
	"github.com/verso-cms/verso/internal/session"
	"github.com/verso-cms/verso/internal/storage"
	"github.com/verso-cms/verso/internal/store"
	"github.com/verso-cms/verso/internal/testutil"
)

const (
	testEmail    = "robin@example.com"
	testPassword = "correct-horse-battery"
	testName     = "Robin Writer"
)

// apiTest runs the real router over httptest with a cookie jar, so
// requests carry the session exactly like a browser client would.
// CSRF is covered by its own middleware tests and left off here.
type apiTest struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
	sched  *scheduler.Scheduler
	user   *store.User
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	logger := testutil.TestLoggerSilent()

	fileStore, err := storage.NewLocal(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	sched := scheduler.New(logger)
	sched.Start()
	t.Cleanup(func() { sched.Stop(10 * time.Second) })

	postService := service.NewPostService(db, logger, nil)
	versionService := service.NewVersionService(db, logger, nil)
	userService := service.NewUserService(db, logger)
	mediaService := service.NewMediaService(db, fileStore, sched, logger)

	user, err := userService.CreateAuthor(context.Background(), service.AnonymousID, testEmail, testPassword, testName)
	require.NoError(t, err)

	sessionManager := session.New(db, true)
	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())

	apiHandler := NewHandler(postService, versionService, userService, mediaService, logger)
	authHandler := NewAuthHandler(userService, sessionManager, loginProtection, logger)
	adminHandler := NewAdminHandler(db, logger)

	r := chi.NewRouter()
	r.Use(sessionManager.LoadAndSave)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.LoadUser(sessionManager, db))

		r.Get("/status", apiHandler.Status)

		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/viewer", apiHandler.Viewer)

		r.Get("/posts", apiHandler.ListPosts)
		r.Get("/posts/search", apiHandler.SearchPosts)
		r.Get("/posts/slug/{slug}", apiHandler.GetPostBySlug)
		r.Get("/posts/{id}", apiHandler.GetPost)
		r.Get("/authors", apiHandler.ListUsers)
		r.Get("/authors/{slug}", apiHandler.GetUserBySlug)
		r.Get("/images/{id}", apiHandler.GetImage)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessionManager))

			r.Get("/slug-check", apiHandler.CheckSlug)
			r.Post("/versions", apiHandler.SaveDraft)
			r.Get("/versions/{id}", apiHandler.GetVersion)
			r.Post("/versions/{id}/publish", apiHandler.PublishPost)
			r.Get("/posts/{id}/history", apiHandler.GetPostHistory)
			r.Post("/users/slug", apiHandler.EnsureUserSlug)
			r.Put("/users/{id}", apiHandler.UpdateProfile)
			r.Post("/images", apiHandler.UploadImage)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin())

			r.Get("/admin/events", adminHandler.ListEvents)
		})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &apiTest{
		t:      t,
		server: server,
		client: &http.Client{Jar: jar},
		sched:  sched,
		user:   user,
	}
}

// do sends a request and decodes the JSON body into a generic map.
func (at *apiTest) do(method, path string, body any) (int, map[string]any) {
	at.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(at.t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, at.server.URL+"/api/v1"+path, reader)
	require.NoError(at.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := at.client.Do(req)
	require.NoError(at.t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(at.t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (at *apiTest) login() {
	at.t.Helper()
	status, body := at.do(http.MethodPost, "/auth/login", map[string]string{
		"email":    testEmail,
		"password": testPassword,
	})
	require.Equal(at.t, http.StatusOK, status, "login failed: %v", body)
}

// data unwraps the response envelope.
func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func dataList(t *testing.T, body map[string]any) []any {
	t.Helper()
	d, ok := body["data"].([]any)
	require.True(t, ok, "response has no data array: %v", body)
	return d
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "response has no error object: %v", body)
	code, _ := e["code"].(string)
	return code
}

func draftPayload(slug string) map[string]any {
	return map[string]any{
		"title":   "A Perfectly Good Title",
		"slug":    slug,
		"summary": "A summary long enough to pass validation.",
		"content": "Some *markdown* content about a seedling in spring.",
	}
}

func TestAPI_Status(t *testing.T) {
	at := newAPITest(t)

	status, body := at.do(http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", data(t, body)["status"])
}

func TestAPI_LoginLogout(t *testing.T) {
	at := newAPITest(t)

	// Anonymous viewer is null, not an error.
	status, body := at.do(http.MethodGet, "/auth/viewer", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["data"])

	// Wrong password is rejected without hinting which part failed.
	status, body = at.do(http.MethodPost, "/auth/login", map[string]string{
		"email":    testEmail,
		"password": "not-the-password",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", errorCode(t, body))

	status, body = at.do(http.MethodPost, "/auth/login", map[string]string{
		"email":    testEmail,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, status)
	viewer := data(t, body)
	assert.Equal(t, testEmail, viewer["email"])
	assert.Equal(t, testName, viewer["name"])

	// The session cookie now identifies the viewer.
	status, body = at.do(http.MethodGet, "/auth/viewer", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, testEmail, data(t, body)["email"])

	status, _ = at.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = at.do(http.MethodGet, "/auth/viewer", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["data"])
}

func TestAPI_RegisterAndAdminSurface(t *testing.T) {
	at := newAPITest(t)

	// The bootstrap admin exists, so anonymous registration is closed.
	status, body := at.do(http.MethodPost, "/auth/register", map[string]string{
		"email":    "diego@example.com",
		"password": "another-long-password",
		"name":     "Diego Ortiz",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", errorCode(t, body))

	// An admin may register further accounts.
	at.login()
	status, body = at.do(http.MethodPost, "/auth/register", map[string]string{
		"email":    "diego@example.com",
		"password": "another-long-password",
		"name":     "Diego Ortiz",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Diego Ortiz", data(t, body)["name"])

	// The admin can read the event log; the new non-admin cannot.
	status, _ = at.do(http.MethodGet, "/admin/events", nil)
	require.Equal(t, http.StatusOK, status)

	diego := newAnonClient(t, at.server)
	status, _ = diego.do(http.MethodPost, "/auth/login", map[string]string{
		"email":    "diego@example.com",
		"password": "another-long-password",
	})
	require.Equal(t, http.StatusOK, status)
	status, body = diego.do(http.MethodGet, "/admin/events", nil)
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", errorCode(t, body))
}

func TestAPI_WritesRequireAuth(t *testing.T) {
	at := newAPITest(t)

	status, body := at.do(http.MethodPost, "/versions", draftPayload("locked-out"))
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", errorCode(t, body))

	status, _ = at.do(http.MethodGet, "/slug-check?slug=locked-out", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPI_DraftPublishLifecycle(t *testing.T) {
	at := newAPITest(t)
	at.login()

	// Save a draft; the post is created on first save.
	status, body := at.do(http.MethodPost, "/versions", draftPayload("spring-garden"))
	require.Equal(t, http.StatusCreated, status)
	d := data(t, body)
	postID := int64(d["post_id"].(float64))
	versionID := int64(d["version_id"].(float64))
	require.NotZero(t, postID)
	require.NotZero(t, versionID)

	// Drafts are invisible to anonymous readers.
	anon := newAnonClient(t, at.server)
	status, body = anon.do(http.MethodGet, "/posts/slug/spring-garden", nil)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", errorCode(t, body))

	// The author sees it in the listing.
	status, body = at.do(http.MethodGet, "/posts", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, dataList(t, body), 1)

	// Publish promotes the version into the live projection.
	status, body = at.do(http.MethodPost, "/versions/"+itoa(versionID)+"/publish", nil)
	require.Equal(t, http.StatusOK, status)
	published := data(t, body)
	assert.Equal(t, true, published["published"])
	assert.NotEmpty(t, published["publish_time"])

	// Now it is public.
	status, body = anon.do(http.MethodGet, "/posts/slug/spring-garden", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "A Perfectly Good Title", data(t, body)["title"])

	// And searchable.
	status, body = anon.do(http.MethodGet, "/posts/search?q=seedling", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, dataList(t, body), 1)
}

func TestAPI_RenameKeepsOldSlugResolvable(t *testing.T) {
	at := newAPITest(t)
	at.login()

	payload := draftPayload("first-title")
	payload["published"] = true
	status, body := at.do(http.MethodPost, "/versions", payload)
	require.Equal(t, http.StatusCreated, status)
	d := data(t, body)
	postID := int64(d["post_id"].(float64))
	require.NotNil(t, d["post"], "published save should return the live post")

	// Publish again under a new slug.
	rename := draftPayload("second-title")
	rename["post_id"] = postID
	rename["published"] = true
	status, _ = at.do(http.MethodPost, "/versions", rename)
	require.Equal(t, http.StatusCreated, status)

	// The old slug still reaches the post; the payload carries the
	// current slug so clients can redirect.
	anon := newAnonClient(t, at.server)
	status, body = anon.do(http.MethodGet, "/posts/slug/first-title", nil)
	require.Equal(t, http.StatusOK, status)
	detail := data(t, body)
	assert.Equal(t, "second-title", detail["slug"])

	// The historical slug is burned for other posts.
	status, body = at.do(http.MethodGet, "/slug-check?slug=first-title", nil)
	require.Equal(t, http.StatusOK, status)
	check := data(t, body)
	assert.Equal(t, true, check["taken"])

	// But not for its owner.
	status, body = at.do(http.MethodGet, "/slug-check?slug=first-title&post_id="+itoa(postID), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, data(t, body)["taken"])

	// A second post cannot claim it.
	stolen := draftPayload("first-title")
	status, body = at.do(http.MethodPost, "/versions", stolen)
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "slug_conflict", errorCode(t, body))
}

func TestAPI_History(t *testing.T) {
	at := newAPITest(t)
	at.login()

	status, body := at.do(http.MethodPost, "/versions", draftPayload("history-post"))
	require.Equal(t, http.StatusCreated, status)
	postID := int64(data(t, body)["post_id"].(float64))

	second := draftPayload("history-post")
	second["post_id"] = postID
	second["title"] = "A Perfectly Revised Title"
	status, _ = at.do(http.MethodPost, "/versions", second)
	require.Equal(t, http.StatusCreated, status)

	status, body = at.do(http.MethodGet, "/posts/"+itoa(postID)+"/history", nil)
	require.Equal(t, http.StatusOK, status)
	versions := dataList(t, body)
	require.Len(t, versions, 2)

	// Newest first, with the editor profile joined.
	newest := versions[0].(map[string]any)
	assert.Equal(t, "A Perfectly Revised Title", newest["title"])
	editor, ok := newest["editor"].(map[string]any)
	require.True(t, ok, "history entry missing editor profile")
	assert.Equal(t, testName, editor["name"])

	// History is an authenticated view.
	anon := newAnonClient(t, at.server)
	status, _ = anon.do(http.MethodGet, "/posts/"+itoa(postID)+"/history", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPI_ValidationErrors(t *testing.T) {
	at := newAPITest(t)
	at.login()

	bad := draftPayload("Bad Slug!")
	status, body := at.do(http.MethodPost, "/versions", bad)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation_error", errorCode(t, body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "slug")
}

func TestAPI_AuthorDirectory(t *testing.T) {
	at := newAPITest(t)
	at.login()

	// Claim a directory slug, then publish a post under it.
	status, body := at.do(http.MethodPost, "/users/slug", nil)
	require.Equal(t, http.StatusOK, status)
	authorSlug := data(t, body)["slug"].(string)
	require.Equal(t, "robin-writer", authorSlug)

	payload := draftPayload("by-robin")
	payload["published"] = true
	status, _ = at.do(http.MethodPost, "/versions", payload)
	require.Equal(t, http.StatusCreated, status)

	anon := newAnonClient(t, at.server)
	status, body = anon.do(http.MethodGet, "/authors/"+authorSlug, nil)
	require.Equal(t, http.StatusOK, status)
	author := data(t, body)
	assert.Equal(t, testName, author["name"])
	assert.Empty(t, author["email"], "directory profiles must not expose email")
	posts, ok := author["posts"].([]any)
	require.True(t, ok)
	require.Len(t, posts, 1)

	status, body = anon.do(http.MethodGet, "/authors", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, dataList(t, body), 1)
}

func TestAPI_ProfileUpdate(t *testing.T) {
	at := newAPITest(t)
	at.login()

	status, body := at.do(http.MethodPut, "/users/"+itoa(at.user.ID), map[string]string{
		"name":    "Robin Q. Writer",
		"email":   testEmail,
		"tagline": "Gardens, mostly.",
	})
	require.Equal(t, http.StatusOK, status)
	updated := data(t, body)
	assert.Equal(t, "Robin Q. Writer", updated["name"])
	assert.Equal(t, "Gardens, mostly.", updated["tagline"])
	assert.Equal(t, testEmail, updated["email"], "own profile includes email")
}

func TestAPI_ImageUpload(t *testing.T) {
	at := newAPITest(t)
	at.login()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "cover.jpg")
	require.NoError(t, err)
	img := image.NewRGBA(image.Rect(0, 0, 320, 200))
	for x := 0; x < 320; x++ {
		img.Set(x, 100, color.RGBA{R: uint8(x % 256), G: 80, B: 120, A: 255})
	}
	require.NoError(t, jpeg.Encode(part, img, nil))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, at.server.URL+"/api/v1/images", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := at.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	uploaded := data(t, body)
	assert.Equal(t, "cover.jpg", uploaded["name"])
	assert.Equal(t, float64(320), uploaded["width"])
	assert.Equal(t, float64(200), uploaded["height"])
	require.NotEmpty(t, uploaded["url"])
	assert.True(t, strings.Contains(uploaded["url"].(string), "/uploads/"))

	imageID := int64(uploaded["id"].(float64))
	status, body := at.do(http.MethodGet, "/images/"+itoa(imageID), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cover.jpg", data(t, body)["name"])
}

// newAnonClient returns a second client against the same server with
// its own empty cookie jar.
func newAnonClient(t *testing.T, server *httptest.Server) *apiTest {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiTest{t: t, server: server, client: &http.Client{Jar: jar}}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
