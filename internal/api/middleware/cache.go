package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/metrics"
	"github.com/d60-Lab/yatube/pkg/cache"
	"github.com/d60-Lab/yatube/pkg/logger"
)

// cachedPage 缓存的完整响应
type cachedPage struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type bodyWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// PageCacheKey is the store key for a GET of uri by viewer (0 = anonymous).
func PageCacheKey(method, uri string, viewerID uint) string {
	return fmt.Sprintf("page:%s:%s:%d", method, uri, viewerID)
}

// cacheURI 只保留 page 参数，其余查询串不影响页面内容
func cacheURI(r *http.Request) string {
	page := r.URL.Query().Get("page")
	if page == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?page=" + url.QueryEscape(page)
}

// CachePage serves GET responses from store for ttl after the first
// successful render. Writes elsewhere do not invalidate entries.
func CachePage(store cache.Store, ttl time.Duration, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || ttl <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := PageCacheKey(c.Request.Method, cacheURI(c.Request), ViewerID(c))

		data, err := store.Get(ctx, key)
		if err == nil {
			var page cachedPage
			if uErr := json.Unmarshal(data, &page); uErr == nil {
				observeCache(m, "hit")
				c.Header("X-Page-Cache", "hit")
				c.Data(page.Status, page.ContentType, page.Body)
				c.Abort()
				return
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			logger.Warn("page cache get failed", zap.String("key", key), zap.Error(err))
		}
		observeCache(m, "miss")

		w := &bodyWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()
		c.Writer = w.ResponseWriter

		if c.IsAborted() || w.Status() != http.StatusOK || len(c.Errors) > 0 {
			return
		}
		payload, err := json.Marshal(cachedPage{
			Status:      w.Status(),
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.buf.Bytes(),
		})
		if err != nil {
			return
		}
		if err := store.Set(ctx, key, payload, ttl); err != nil {
			logger.Warn("page cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func observeCache(m *metrics.Metrics, result string) {
	if m != nil {
		m.PageCacheHits.WithLabelValues(result).Inc()
	}
}
