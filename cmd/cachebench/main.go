package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/config"
	"github.com/d60-Lab/yatube/internal/app"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/pkg/cache"
	"github.com/d60-Lab/yatube/pkg/database"
)

// 对比首页在无缓存、内存缓存、Redis 缓存下的渲染延迟
func main() {
	ctx := context.Background()
	gin.SetMode(gin.ReleaseMode)

	cfg := must(config.Load())
	if dsn := os.Getenv("BENCH_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	} else {
		cfg.Database.Driver, cfg.Database.DSN = "sqlite", "file:cachebench?mode=memory&cache=shared"
	}
	db := must(database.InitDB(cfg))
	defer database.Close(db)

	nPosts := envInt("POSTS", 5000)
	nReqs := envInt("REQS", 3000)
	mustDo(seed(ctx, db, nPosts))
	fmt.Printf("Test data ready: %d posts, %d per page\n", nPosts, cfg.Pagination.PostsPerPage)

	targets := makeRequests(nReqs, nPosts/cfg.Pagination.PostsPerPage+1)

	results := []struct {
		name string
		res  scenarioResult
	}{
		{"No cache", runScenario(cfg, db, cache.NewMemoryStore(0), 0, targets)},
		{"Memory cache", runScenario(cfg, db, cache.NewMemoryStore(0), time.Minute, targets)},
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = cfg.Redis.Addr
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		fmt.Printf("skip redis scenario: %v\n", err)
	} else {
		store := cache.NewRedisStore(client, "cachebench")
		mustDo(store.Clear(ctx))
		res := runScenario(cfg, db, store, time.Minute, targets)
		res.memoryBytes = redisMemory(ctx, client)
		results = append(results, struct {
			name string
			res  scenarioResult
		}{"Redis cache", res})
	}

	fmt.Printf("\nIndex page latency (%d requests)\n", nReqs)
	for _, r := range results {
		fmt.Printf("%-14s avg=%v p95=%v p99=%v hits=%d misses=%d redis_mem=%s\n",
			r.name, avg(r.res.durations), pct(r.res.durations, 0.95), pct(r.res.durations, 0.99),
			r.res.hits, r.res.misses, formatBytes(r.res.memoryBytes))
	}
}

type scenarioResult struct {
	durations   []time.Duration
	hits        int
	misses      int
	memoryBytes int64
}

func runScenario(cfg *config.Config, db *gorm.DB, store cache.Store, ttl time.Duration, targets []string) scenarioResult {
	local := *cfg
	local.Cache.IndexTTL = ttl
	srv := must(app.NewServer(&local, db, store, prometheus.NewRegistry()))

	out := scenarioResult{durations: make([]time.Duration, 0, len(targets))}
	for _, target := range targets {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		start := time.Now()
		srv.Engine.ServeHTTP(w, req)
		out.durations = append(out.durations, time.Since(start))
		if w.Code != http.StatusOK {
			panic(fmt.Sprintf("GET %s: status %d", target, w.Code))
		}
		if w.Header().Get("X-Page-Cache") == "hit" {
			out.hits++
		} else {
			out.misses++
		}
	}
	return out
}

func seed(ctx context.Context, db *gorm.DB, n int) error {
	author := model.User{Username: fmt.Sprintf("bench_%d", time.Now().UnixNano()), PasswordHash: "p"}
	if err := db.WithContext(ctx).Create(&author).Error; err != nil {
		return err
	}
	posts := make([]model.Post, n)
	base := time.Now()
	for i := range posts {
		posts[i] = model.Post{
			Text:      fmt.Sprintf("bench post %d", i),
			AuthorID:  author.ID,
			CreatedAt: base.Add(-time.Duration(i) * time.Second),
		}
	}
	return db.WithContext(ctx).Omit("Author", "Group").CreateInBatches(&posts, 500).Error
}

// makeRequests 多数请求落在首页，少量翻到深页
func makeRequests(n, pages int) []string {
	out := make([]string, n)
	rnd := rand.New(rand.NewSource(42))
	for i := range out {
		if rnd.Float64() > 0.72 {
			out[i] = "/?page=" + strconv.Itoa(2+rnd.Intn(pages))
			continue
		}
		out[i] = "/"
	}
	return out
}

// redisMemory extracts used_memory from INFO memory.
func redisMemory(ctx context.Context, client *redis.Client) int64 {
	info, err := client.Info(ctx, "memory").Result()
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "used_memory:"); ok {
			n, _ := strconv.ParseInt(v, 10, 64)
			return n
		}
	}
	return 0
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range vs {
		sum += v
	}
	return sum / time.Duration(len(vs))
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}
