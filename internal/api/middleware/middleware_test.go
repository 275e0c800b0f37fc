package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/yatube/internal/metrics"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/pkg/cache"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginRedirect(t *testing.T) {
	assert.Equal(t, "/auth/login/?next=/create/", LoginRedirect("/auth/login/", "/create/"))
	assert.Equal(t, "/auth/login/?next=/posts/1/edit/", LoginRedirect("/auth/login/", "/posts/1/edit/"))
	assert.Equal(t, "/auth/login/?next=/follow/%3Fpage%3D2", LoginRedirect("/auth/login/", "/follow/?page=2"))
}

func TestSafeNext(t *testing.T) {
	cases := map[string]bool{
		"/follow/":            true,
		"/posts/1/?page=2":    true,
		"":                    false,
		"//evil.example.com":  false,
		"/\\evil.example.com": false,
		"https://evil.com/":   false,
		"relative/path":       false,
	}
	for next, want := range cases {
		_, ok := SafeNext(next)
		assert.Equal(t, want, ok, next)
	}
}

func TestLoginRequired(t *testing.T) {
	r := gin.New()
	r.GET("/create/", LoginRequired("/auth/login/"), func(c *gin.Context) { c.String(http.StatusOK, "form") })
	r.GET("/signed/", func(c *gin.Context) {
		c.Set(ctxUser, &model.User{ID: 7, Username: "auth"})
		c.Next()
	}, LoginRequired("/auth/login/"), func(c *gin.Context) { c.String(http.StatusOK, "%d", ViewerID(c)) })

	w := serve(r, http.MethodGet, "/create/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login/?next=/create/", w.Header().Get("Location"))

	w = serve(r, http.MethodGet, "/signed/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7", w.Body.String())
}

func TestCachePage(t *testing.T) {
	store := cache.NewMemoryStore(0)
	m := metrics.New(prometheus.NewRegistry())
	calls := 0

	r := gin.New()
	r.GET("/", CachePage(store, 20*time.Second, m), func(c *gin.Context) {
		calls++
		c.String(http.StatusOK, "render %d", calls)
	})
	r.GET("/missing", CachePage(store, 20*time.Second, m), func(c *gin.Context) {
		calls++
		c.String(http.StatusNotFound, "nope")
	})

	first := serve(r, http.MethodGet, "/", nil)
	second := serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, "render 1", first.Body.String())
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "hit", second.Header().Get("X-Page-Cache"))
	assert.Equal(t, first.Header().Get("Content-Type"), second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)

	other := serve(r, http.MethodGet, "/?page=2", nil)
	assert.Equal(t, "render 2", other.Body.String(), "query string is part of the key")

	require.NoError(t, store.Clear(context.Background()))
	third := serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, "render 3", third.Body.String())

	serve(r, http.MethodGet, "/missing", nil)
	serve(r, http.MethodGet, "/missing", nil)
	assert.Equal(t, 5, calls, "non-200 responses are not cached")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PageCacheHits.WithLabelValues("hit")))
}

func TestCachePage_KeyedByViewer(t *testing.T) {
	store := cache.NewMemoryStore(0)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-User") != "" {
			c.Set(ctxUser, &model.User{ID: 1, Username: c.GetHeader("X-User")})
		}
	})
	r.GET("/", CachePage(store, time.Minute, nil), func(c *gin.Context) {
		name := "anonymous"
		if u := CurrentUser(c); u != nil {
			name = u.Username
		}
		c.String(http.StatusOK, name)
	})

	assert.Equal(t, "anonymous", serve(r, http.MethodGet, "/", nil).Body.String())
	assert.Equal(t, "auth", serve(r, http.MethodGet, "/", http.Header{"X-User": {"auth"}}).Body.String())
	assert.Equal(t, "anonymous", serve(r, http.MethodGet, "/", nil).Body.String())
	assert.Equal(t, "page:GET:/?page=2:0", PageCacheKey(http.MethodGet, "/?page=2", 0))
}

func TestCachePage_IgnoresUnrelatedQuery(t *testing.T) {
	store := cache.NewMemoryStore(0)
	calls := 0
	r := gin.New()
	r.GET("/", CachePage(store, time.Minute, nil), func(c *gin.Context) {
		calls++
		c.String(http.StatusOK, "render %d", calls)
	})

	for i := 0; i < 100; i++ {
		serve(r, http.MethodGet, fmt.Sprintf("/?junk=%d", i), nil)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, store.Len())

	serve(r, http.MethodGet, "/?page=2&utm_source=x", nil)
	serve(r, http.MethodGet, "/?utm_source=y&page=2", nil)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, store.Len())

	_, err := store.Get(context.Background(), PageCacheKey(http.MethodGet, "/?page=2", 0))
	assert.NoError(t, err)
}

func TestRateLimit(t *testing.T) {
	l := NewIPRateLimiter(0.001, 2)
	r := gin.New()
	r.Any("/login/", RateLimit(l, http.MethodPost), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/login/", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/login/", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/login/", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/login/", nil).Code, "GET is not limited")
}

func TestAdminToken(t *testing.T) {
	r := gin.New()
	r.POST("/clear", AdminToken("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })
	closed := gin.New()
	closed.POST("/clear", AdminToken(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/clear", nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/clear", http.Header{"X-Admin-Token": {"wrong"}}).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/clear", http.Header{"X-Admin-Token": {"s3cret"}}).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/clear", http.Header{"Authorization": {"Bearer s3cret"}}).Code)
	assert.Equal(t, http.StatusForbidden, serve(closed, http.MethodPost, "/clear", http.Header{"X-Admin-Token": {""}}).Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := serve(r, http.MethodGet, "/", nil)
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))

	w = serve(r, http.MethodGet, "/", http.Header{HeaderRequestID: {"abc"}})
	assert.Equal(t, "abc", w.Body.String())
}

func TestAccessLogMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := gin.New()
	r.Use(RequestID(), AccessLog(m))
	r.GET("/posts/:id/", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/posts/1/", nil)
	serve(r, http.MethodGet, "/posts/2/", nil)
	serve(r, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Requests.WithLabelValues("/posts/:id/", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.WithLabelValues("unmatched", "4xx")))
}
