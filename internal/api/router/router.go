package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/yatube/config"
	_ "github.com/d60-Lab/yatube/docs"
	"github.com/d60-Lab/yatube/internal/api/handler"
	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/metrics"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/internal/web"
	"github.com/d60-Lab/yatube/pkg/cache"
)

// Options 路由依赖
type Options struct {
	Config   *config.Config
	Handler  *handler.Handler
	Auth     service.AuthService
	Cache    cache.Store
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Renderer render.HTMLRender
}

// Setup builds the engine with the full route table.
func Setup(o Options) *gin.Engine {
	cfg := o.Config
	h := o.Handler

	r := gin.New()
	r.HTMLRender = o.Renderer
	r.MaxMultipartMemory = cfg.Media.MaxUploadBytes + 1<<20

	r.Use(
		middleware.RequestID(),
		middleware.AccessLog(o.Metrics),
		middleware.Recovery(web.PageServerError),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
	)
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.App.Name))
	}
	r.Use(middleware.Session(o.Auth, cfg.Auth.CookieName))

	r.Static(strings.TrimSuffix(cfg.Media.URL, "/"), cfg.Media.Root)

	// 页面
	r.GET("/", middleware.CachePage(o.Cache, cfg.Cache.IndexTTL, o.Metrics), h.Index)
	r.GET("/group/:slug/", h.GroupPosts)
	r.GET("/profile/:username/", h.Profile)
	r.GET("/posts/:post_id/", h.PostDetail)

	both := []string{http.MethodGet, http.MethodPost}
	auth := r.Group("", middleware.LoginRequired(cfg.Auth.LoginURL))
	{
		auth.Match(both, "/create/", h.PostCreate)
		auth.Match(both, "/posts/:post_id/edit/", h.PostEdit)
		auth.Match(both, "/posts/:post_id/comment/", h.AddComment)
		auth.GET("/follow/", h.FollowIndex)
		auth.Match(both, "/profile/:username/follow/", h.ProfileFollow)
		auth.Match(both, "/profile/:username/unfollow/", h.ProfileUnfollow)
	}

	limiter := middleware.NewIPRateLimiter(cfg.Auth.LoginRateLimit, cfg.Auth.LoginBurst)
	users := r.Group("/auth")
	{
		users.Match(both, "/signup/", h.SignUp)
		users.Match(both, "/login/", middleware.RateLimit(limiter, http.MethodPost), h.Login)
		users.Match(both, "/logout/", h.Logout)
	}

	about := r.Group("/about")
	{
		about.GET("/author/", h.AboutAuthor)
		about.GET("/tech/", h.AboutTech)
	}

	api := r.Group("/api/v1")
	{
		api.GET("/posts", h.ListPosts)
		api.GET("/posts/:id", h.GetPost)
		api.GET("/groups/:slug/posts", h.ListGroupPosts)
		api.GET("/relations/:username/following", h.ListFollowing)
		api.GET("/relations/:username/followers", h.ListFollowers)

		admin := api.Group("/admin", middleware.AdminToken(cfg.App.AdminToken))
		admin.POST("/cache/clear", h.ClearPageCache)
	}

	r.GET("/healthz", h.Health)
	if o.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.NoRoute(h.NotFound)
	return r
}
