// Package app wires repositories, services and the HTTP router together.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/config"
	"github.com/d60-Lab/yatube/internal/api/handler"
	"github.com/d60-Lab/yatube/internal/api/router"
	"github.com/d60-Lab/yatube/internal/metrics"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/internal/web"
	"github.com/d60-Lab/yatube/pkg/cache"
)

// Services 业务服务集合，供 HTTP 与管理命令共用
type Services struct {
	Posts    service.PostService
	Comments service.CommentService
	Rels     service.RelationshipService
	Groups   service.GroupService
	Auth     service.AuthService
	Media    *service.MediaStorage
}

func NewServices(cfg *config.Config, db *gorm.DB) *Services {
	users := repository.NewUserRepository(db)
	groups := repository.NewGroupRepository(db)
	posts := repository.NewPostRepository(db)
	comments := repository.NewCommentRepository(db)
	follows := repository.NewFollowRepository(db)
	media := service.NewMediaStorage(cfg.Media)
	perPage := cfg.Pagination.PostsPerPage

	return &Services{
		Posts:    service.NewPostService(posts, groups, users, media, perPage),
		Comments: service.NewCommentService(posts, comments),
		Rels:     service.NewRelationshipService(users, follows, posts, perPage),
		Groups:   service.NewGroupService(groups),
		Auth:     service.NewAuthService(users, cfg.Auth),
		Media:    media,
	}
}

// NewCacheStore 按 cache.backend 选择页面缓存实现
func NewCacheStore(ctx context.Context, cfg *config.Config) (cache.Store, func() error, error) {
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
		return cache.NewRedisStore(client, cfg.Cache.Prefix), client.Close, nil
	default:
		return cache.NewMemoryStore(cfg.Cache.MaxEntries), func() error { return nil }, nil
	}
}

// Server bundles what cmd/server needs besides the engine.
type Server struct {
	Engine   *gin.Engine
	Services *Services
	Metrics  *metrics.Metrics
}

// NewServer builds the full HTTP stack. A nil reg gets a fresh registry.
func NewServer(cfg *config.Config, db *gorm.DB, store cache.Store, reg *prometheus.Registry) (*Server, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := metrics.New(reg)
	svcs := NewServices(cfg, db)

	renderer, err := web.New(cfg.Media.URL)
	if err != nil {
		return nil, err
	}
	h := handler.NewHandler(handler.Deps{
		Config:   cfg,
		Posts:    svcs.Posts,
		Comments: svcs.Comments,
		Rels:     svcs.Rels,
		Groups:   svcs.Groups,
		Auth:     svcs.Auth,
		Cache:    store,
		Metrics:  m,
	})
	engine := router.Setup(router.Options{
		Config:   cfg,
		Handler:  h,
		Auth:     svcs.Auth,
		Cache:    store,
		Metrics:  m,
		Gatherer: reg,
		Renderer: renderer,
	})
	return &Server{Engine: engine, Services: svcs, Metrics: m}, nil
}
