package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/config"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/cache"
	"github.com/d60-Lab/yatube/pkg/database"
)

var smallGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x02, 0x00,
	0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00,
	0x02, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x0C,
	0x0A, 0x00, 0x3B,
}

type testApp struct {
	t     *testing.T
	cfg   *config.Config
	db    *gorm.DB
	store *cache.MemoryStore
	srv   *Server
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		App:        config.AppConfig{Name: "yatube-test", AdminToken: "admin-secret"},
		Server:     config.ServerConfig{Mode: gin.TestMode},
		Database:   config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
		Cache:      config.CacheConfig{Backend: "memory", IndexTTL: 20 * time.Second, Prefix: "test"},
		Pagination: config.PaginationConfig{PostsPerPage: 10},
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret",
			SessionTTL:     time.Hour,
			CookieName:     "yatube_session",
			LoginURL:       "/auth/login/",
			LoginRateLimit: 100,
			LoginBurst:     100,
			BcryptCost:     4,
		},
		Media: config.MediaConfig{Root: t.TempDir(), URL: "/media/", MaxUploadBytes: 1 << 20},
	}
	db, err := database.InitDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	store := cache.NewMemoryStore(0)
	srv, err := NewServer(cfg, db, store, prometheus.NewRegistry())
	require.NoError(t, err)
	return &testApp{t: t, cfg: cfg, db: db, store: store, srv: srv}
}

// client 代表一个已登录（cookie 非空）或匿名的访问者
type client struct {
	app    *testApp
	cookie *http.Cookie
	user   *model.User
}

func (a *testApp) anon() *client { return &client{app: a} }

func (a *testApp) signedIn(username string) *client {
	a.t.Helper()
	u, err := a.srv.Services.Auth.SignUp(context.Background(), service.SignUpInput{
		Username: username, Password: "password123", PasswordConfirm: "password123",
	})
	require.NoError(a.t, err)
	token, err := a.srv.Services.Auth.IssueToken(u)
	require.NoError(a.t, err)
	return &client{app: a, user: u, cookie: &http.Cookie{Name: a.cfg.Auth.CookieName, Value: token}}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.app.srv.Engine.ServeHTTP(w, req)
	return w
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (c *client) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) postMultipart(target string, fields map[string]string, fileName string, file []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if fileName != "" {
		fw, _ := mw.CreateFormFile("image", fileName)
		_, _ = fw.Write(file)
	}
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func (a *testApp) group(slug string) *model.Group {
	a.t.Helper()
	g, err := a.srv.Services.Groups.Create(context.Background(), service.GroupInput{Title: "Group " + slug, Slug: slug, Description: "desc"})
	require.NoError(a.t, err)
	return g
}

func (a *testApp) post(author *model.User, text string, group *model.Group) *model.Post {
	a.t.Helper()
	in := service.PostInput{Text: text}
	if group != nil {
		in.GroupID = &group.ID
	}
	p, err := a.srv.Services.Posts.Create(context.Background(), author.ID, in)
	require.NoError(a.t, err)
	return p
}

func (a *testApp) countPosts() int64 {
	var n int64
	require.NoError(a.t, a.db.Model(&model.Post{}).Count(&n).Error)
	return n
}

func postCards(body string) int { return strings.Count(body, `class="post"`) }

func TestPublicPages(t *testing.T) {
	a := newTestApp(t)
	author := a.signedIn("auth")
	g := a.group("test-slug")
	p := a.post(author.user, "Тестовый текст поста", g)

	pages := []string{
		"/",
		"/group/test-slug/",
		"/profile/auth/",
		fmt.Sprintf("/posts/%d/", p.ID),
		"/about/author/",
		"/about/tech/",
		"/auth/login/",
		"/auth/signup/",
	}
	for _, path := range pages {
		t.Run(path, func(t *testing.T) {
			w := a.anon().get(path)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		})
	}

	w := a.anon().get(fmt.Sprintf("/posts/%d/", p.ID))
	assert.Contains(t, w.Body.String(), "Тестовый текст поста")
	assert.Contains(t, w.Body.String(), "Всего постов автора: 1")
}

func TestUnknownPagesReturnCustom404(t *testing.T) {
	a := newTestApp(t)
	for _, path := range []string{"/unexisting_page/", "/group/nope/", "/profile/nobody/", "/posts/999/", "/posts/abc/"} {
		w := a.anon().get(path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Contains(t, w.Body.String(), "Custom 404", path)
	}
}

func TestProtectedRoutesRedirectAnonymous(t *testing.T) {
	a := newTestApp(t)
	author := a.signedIn("auth")
	p := a.post(author.user, "text", nil)

	paths := []string{
		"/create/",
		fmt.Sprintf("/posts/%d/edit/", p.ID),
		fmt.Sprintf("/posts/%d/comment/", p.ID),
		"/follow/",
		"/profile/auth/follow/",
		"/profile/auth/unfollow/",
	}
	for _, path := range paths {
		w := a.anon().get(path)
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/auth/login/?next="+path, w.Header().Get("Location"))
	}
}

func TestCreatePost(t *testing.T) {
	a := newTestApp(t)
	c := a.signedIn("auth")
	g := a.group("test-slug")

	w := c.get("/create/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="text"`)

	w = c.postForm("/create/", url.Values{"text": {"Новый пост"}, "group": {fmt.Sprint(g.ID)}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/auth/", w.Header().Get("Location"))
	require.EqualValues(t, 1, a.countPosts())

	var p model.Post
	require.NoError(t, a.db.First(&p).Error)
	assert.Equal(t, "Новый пост", p.Text)
	assert.Equal(t, c.user.ID, p.AuthorID)
	assert.True(t, p.InGroup(g.ID))
}

func TestCreatePostWithImage(t *testing.T) {
	a := newTestApp(t)
	c := a.signedIn("auth")

	w := c.postMultipart("/create/", map[string]string{"text": "с картинкой"}, "small.gif", smallGIF)
	require.Equal(t, http.StatusFound, w.Code)

	var p model.Post
	require.NoError(t, a.db.First(&p).Error)
	require.NotEmpty(t, p.Image)

	w = a.anon().get(fmt.Sprintf("/posts/%d/", p.ID))
	assert.Contains(t, w.Body.String(), "/media/"+p.Image)

	w = a.anon().get("/media/" + p.Image)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, smallGIF, w.Body.Bytes())
}

func TestCreatePostInvalid(t *testing.T) {
	a := newTestApp(t)
	c := a.signedIn("auth")

	w := c.postForm("/create/", url.Values{"text": {"   "}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "This field is required.")

	w = c.postForm("/create/", url.Values{"text": {"ok"}, "group": {"999"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Select a valid choice")

	w = c.postMultipart("/create/", map[string]string{"text": "ok"}, "notes.txt", []byte("not an image at all"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Upload a valid image")

	assert.Zero(t, a.countPosts())
}

func TestEditPost(t *testing.T) {
	a := newTestApp(t)
	author := a.signedIn("auth")
	other := a.signedIn("other")
	g := a.group("g")
	p := a.post(author.user, "original", g)
	editURL := fmt.Sprintf("/posts/%d/edit/", p.ID)
	detailURL := fmt.Sprintf("/posts/%d/", p.ID)

	w := author.get(editURL)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "original")

	w = other.get(editURL)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))

	w = other.postForm(editURL, url.Values{"text": {"hijacked"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))

	w = a.anon().postForm(editURL, url.Values{"text": {"hijacked"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login/?next="+editURL, w.Header().Get("Location"))

	var got model.Post
	require.NoError(t, a.db.First(&got, p.ID).Error)
	assert.Equal(t, "original", got.Text, "non-author edits leave the post unchanged")
	assert.True(t, got.InGroup(g.ID))

	w = author.postForm(editURL, url.Values{"text": {"edited"}, "group": {""}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))

	require.NoError(t, a.db.First(&got, p.ID).Error)
	assert.Equal(t, "edited", got.Text)
	assert.Nil(t, got.GroupID)
	assert.EqualValues(t, 1, a.countPosts(), "edit does not create a post")

	w = author.postForm(editURL, url.Values{"text": {""}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "This field is required.")

	assert.Equal(t, http.StatusNotFound, author.get("/posts/999/edit/").Code)
}

func TestPaginationAcrossListings(t *testing.T) {
	a := newTestApp(t)
	author := a.signedIn("auth")
	reader := a.signedIn("reader")
	g := a.group("g")
	for i := 0; i < 11; i++ {
		a.post(author.user, fmt.Sprintf("post %d", i), g)
	}
	_, err := a.srv.Services.Rels.Follow(context.Background(), reader.user.ID, "auth")
	require.NoError(t, err)

	for _, base := range []string{"/", "/group/g/", "/profile/auth/", "/follow/"} {
		w := reader.get(base)
		require.Equal(t, http.StatusOK, w.Code, base)
		assert.Equal(t, 10, postCards(w.Body.String()), base)

		w = reader.get(base + "?page=2")
		assert.Equal(t, 1, postCards(w.Body.String()), base+"?page=2")

		w = reader.get(base + "?page=99")
		assert.Equal(t, 1, postCards(w.Body.String()), "past the end shows the last page")

		w = reader.get(base + "?page=abc")
		assert.Equal(t, 10, postCards(w.Body.String()), "garbage page shows the first page")
	}
}

func TestGroupPageExcludesOtherGroups(t *testing.T) {
	a := newTestApp(t)
	author := a.signedIn("auth")
	g1 := a.group("first")
	g2 := a.group("second")
	a.post(author.user, "belongs to second", g2)

	w := a.anon().get("/group/first/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, postCards(w.Body.String()))
	assert.Contains(t, w.Body.String(), g1.Title)

	w = a.anon().get("/group/second/")
	assert.Equal(t, 1, postCards(w.Body.String()))
}

func TestIndexCache(t *testing.T) {
	a := newTestApp(t)
	author := a.signedIn("auth")
	p := a.post(author.user, "cached post", nil)

	first := a.anon().get("/")
	require.Equal(t, http.StatusOK, first.Code)
	require.Contains(t, first.Body.String(), "cached post")

	require.NoError(t, a.db.Delete(&model.Post{}, p.ID).Error)
	second := a.anon().get("/")
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes(), "cached bytes survive the delete")

	require.NoError(t, a.store.Clear(context.Background()))
	third := a.anon().get("/")
	assert.NotEqual(t, first.Body.Bytes(), third.Body.Bytes())
	assert.NotContains(t, third.Body.String(), "cached post")
}

func TestAdminCacheClear(t *testing.T) {
	a := newTestApp(t)
	a.anon().get("/")
	require.Equal(t, 1, a.store.Len())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/clear", nil)
	assert.Equal(t, http.StatusForbidden, a.anon().do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/clear", nil)
	req.Header.Set("X-Admin-Token", "admin-secret")
	assert.Equal(t, http.StatusOK, a.anon().do(req).Code)
	assert.Zero(t, a.store.Len())
}

func TestIndexCacheBoundedUnderQueryNoise(t *testing.T) {
	a := newTestApp(t)
	for i := 0; i < 2000; i++ {
		w := a.anon().get(fmt.Sprintf("/?junk=%d", i))
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 1, a.store.Len())

	for i := 0; i < 2*cache.DefaultMaxEntries; i++ {
		a.anon().get(fmt.Sprintf("/?page=%d", i))
	}
	assert.LessOrEqual(t, a.store.Len(), cache.DefaultMaxEntries)
}

func TestFollowUnfollow(t *testing.T) {
	a := newTestApp(t)
	reader := a.signedIn("reader")
	author := a.signedIn("author")
	stranger := a.signedIn("stranger")
	a.post(author.user, "from author", nil)
	a.post(stranger.user, "from stranger", nil)

	countFollows := func() int64 {
		var n int64
		require.NoError(t, a.db.Model(&model.Follow{}).Count(&n).Error)
		return n
	}

	for i := 0; i < 2; i++ {
		w := reader.get("/profile/author/follow/")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/profile/author/", w.Header().Get("Location"))
	}
	assert.EqualValues(t, 1, countFollows(), "repeated follow creates one edge")

	w := reader.get("/profile/reader/follow/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.EqualValues(t, 1, countFollows(), "self-follow is ignored")

	assert.Equal(t, http.StatusNotFound, reader.get("/profile/ghost/follow/").Code)

	w = reader.get("/profile/author/")
	assert.Contains(t, w.Body.String(), "Отписаться")

	feed := reader.get("/follow/").Body.String()
	assert.Contains(t, feed, "from author")
	assert.NotContains(t, feed, "from stranger")

	strangerFeed := stranger.get("/follow/").Body.String()
	assert.NotContains(t, strangerFeed, "from author")

	w = reader.postForm("/profile/author/unfollow/", url.Values{})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Zero(t, countFollows())

	w = reader.get("/profile/author/unfollow/")
	assert.Equal(t, http.StatusFound, w.Code, "unfollow is idempotent")

	w = reader.get("/profile/author/")
	assert.Contains(t, w.Body.String(), "Подписаться")
	assert.NotContains(t, a.anon().get("/profile/author/").Body.String(), "Подписаться", "anonymous sees no follow button")
}

func TestAddComment(t *testing.T) {
	a := newTestApp(t)
	author := a.signedIn("auth")
	p := a.post(author.user, "post", nil)
	commentURL := fmt.Sprintf("/posts/%d/comment/", p.ID)
	detailURL := fmt.Sprintf("/posts/%d/", p.ID)

	countComments := func() int64 {
		var n int64
		require.NoError(t, a.db.Model(&model.Comment{}).Count(&n).Error)
		return n
	}

	w := author.postForm(commentURL, url.Values{"text": {"Тестовый комментарий"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))
	assert.EqualValues(t, 1, countComments())

	w = author.postForm(commentURL, url.Values{"text": {""}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))
	assert.EqualValues(t, 1, countComments())

	w = author.get(commentURL)
	assert.Equal(t, http.StatusFound, w.Code)

	assert.Equal(t, http.StatusNotFound, author.postForm("/posts/999/comment/", url.Values{"text": {"x"}}).Code)

	malformed := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader("text=broken"))
		req.Header.Set("Content-Type", "multipart/form-data")
		return author.do(req)
	}
	w = malformed(commentURL)
	assert.Equal(t, http.StatusFound, w.Code, "an unparsable body is treated as an empty comment")
	assert.Equal(t, detailURL, w.Header().Get("Location"))
	assert.EqualValues(t, 1, countComments())
	assert.Equal(t, http.StatusNotFound, malformed("/posts/999/comment/").Code)

	assert.Contains(t, a.anon().get(detailURL).Body.String(), "Тестовый комментарий")
}

func TestSignUpLoginLogout(t *testing.T) {
	a := newTestApp(t)
	anon := a.anon()

	w := anon.postForm("/auth/signup/", url.Values{
		"username": {"newbie"}, "email": {"newbie@example.com"},
		"password1": {"password123"}, "password2": {"password123"},
	})
	assert.Equal(t, http.StatusFound, w.Code)

	w = anon.postForm("/auth/signup/", url.Values{
		"username": {"newbie"}, "password1": {"password123"}, "password2": {"password123"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	w = anon.postForm("/auth/login/", url.Values{"username": {"newbie"}, "password": {"wrong-pass"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "correct username and password")

	w = anon.postForm("/auth/login/", url.Values{"username": {"newbie"}, "password": {"password123"}, "next": {"/follow/"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/follow/", w.Header().Get("Location"))

	var session *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == a.cfg.Auth.CookieName {
			session = ck
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	signed := &client{app: a, cookie: &http.Cookie{Name: session.Name, Value: session.Value}}
	assert.Equal(t, http.StatusOK, signed.get("/create/").Code)

	w = anon.postForm("/auth/login/", url.Values{"username": {"newbie"}, "password": {"password123"}, "next": {"//evil.example.com"}})
	assert.Equal(t, "/", w.Header().Get("Location"), "unsafe next falls back to index")

	w = signed.get("/auth/logout/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Войти снова")

	bad := &client{app: a, cookie: &http.Cookie{Name: session.Name, Value: "garbage"}}
	w = bad.get("/create/")
	assert.Equal(t, http.StatusFound, w.Code, "invalid token is treated as anonymous")
}

func TestJSONAPI(t *testing.T) {
	a := newTestApp(t)
	author := a.signedIn("auth")
	reader := a.signedIn("reader")
	g := a.group("g")
	p := a.post(author.user, "api post", g)
	_, err := a.srv.Services.Rels.Follow(context.Background(), reader.user.ID, "auth")
	require.NoError(t, err)

	var body struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}

	w := a.anon().get("/api/v1/posts")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Code)
	var page struct {
		Items []model.Post `json:"items"`
		Total int64        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "api post", page.Items[0].Text)
	assert.Equal(t, "auth", page.Items[0].Author.Username)

	assert.Equal(t, http.StatusOK, a.anon().get(fmt.Sprintf("/api/v1/posts/%d", p.ID)).Code)
	assert.Equal(t, http.StatusNotFound, a.anon().get("/api/v1/posts/999").Code)
	assert.Equal(t, http.StatusOK, a.anon().get("/api/v1/groups/g/posts").Code)
	assert.Equal(t, http.StatusNotFound, a.anon().get("/api/v1/groups/nope/posts").Code)

	w = a.anon().get("/api/v1/relations/reader/following")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"auth"`)
	assert.NotContains(t, w.Body.String(), "password")

	w = a.anon().get("/api/v1/relations/auth/followers")
	assert.Contains(t, w.Body.String(), `"username":"reader"`)
	assert.Equal(t, http.StatusNotFound, a.anon().get("/api/v1/relations/ghost/followers").Code)
}

func TestOperationalEndpoints(t *testing.T) {
	a := newTestApp(t)
	a.anon().get("/")

	assert.Equal(t, http.StatusOK, a.anon().get("/healthz").Code)

	w := a.anon().get("/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "yatube_http_requests_total")

	w = a.anon().get("/swagger/doc.json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/posts")
}

func TestPanicRendersServerErrorPage(t *testing.T) {
	a := newTestApp(t)
	a.srv.Engine.GET("/boom/", func(c *gin.Context) { panic("boom") })

	w := a.anon().get("/boom/")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Custom 500")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
