package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/config"
	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/metrics"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/internal/web"
	"github.com/d60-Lab/yatube/pkg/cache"
	"github.com/d60-Lab/yatube/pkg/logger"
)

// Handler 汇总所有 HTTP 处理函数的依赖
type Handler struct {
	cfg            *config.Config
	postService    service.PostService
	commentService service.CommentService
	relService     service.RelationshipService
	groupService   service.GroupService
	authService    service.AuthService
	pageCache      cache.Store
	metrics        *metrics.Metrics
}

type Deps struct {
	Config   *config.Config
	Posts    service.PostService
	Comments service.CommentService
	Rels     service.RelationshipService
	Groups   service.GroupService
	Auth     service.AuthService
	Cache    cache.Store
	Metrics  *metrics.Metrics
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		cfg:            d.Config,
		postService:    d.Posts,
		commentService: d.Comments,
		relService:     d.Rels,
		groupService:   d.Groups,
		authService:    d.Auth,
		pageCache:      d.Cache,
		metrics:        d.Metrics,
	}
}

// formView 表单回显：字段值与字段错误
type formView struct {
	Values   map[string]string
	Errors   map[string]string
	NonField string
}

func newFormView() formView {
	return formView{Values: map[string]string{}, Errors: map[string]string{}}
}

func (f formView) withErrors(ve *service.ValidationError) formView {
	for k, v := range ve.Fields {
		f.Errors[k] = v
	}
	return f
}

func (h *Handler) render(c *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["User"] = middleware.CurrentUser(c)
	data["Year"] = time.Now().Year()
	c.HTML(status, page, data)
}

// NotFound 自定义 404 页面，同时用作 NoRoute
func (h *Handler) NotFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, web.PageNotFound, gin.H{"Path": c.Request.URL.Path})
}

func (h *Handler) serverError(c *gin.Context, err error) {
	logger.Error("handler failed",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	middleware.CaptureError(c, err)
	_ = c.Error(err)
	h.render(c, http.StatusInternalServerError, web.PageServerError, gin.H{"RequestID": middleware.GetRequestID(c)})
}

// fail maps ErrNotFound to the 404 page and everything else to 500.
func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		h.NotFound(c)
		return
	}
	h.serverError(c, err)
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) inc(f func(*metrics.Metrics)) {
	if h.metrics != nil {
		f(h.metrics)
	}
}
