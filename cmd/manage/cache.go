package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/d60-Lab/yatube/config"
	"github.com/d60-Lab/yatube/internal/app"
)

const clearCachePath = "/api/v1/admin/cache/clear"

// clearPageCache 清空页面缓存。memory 后端的缓存只存在于服务进程内，
// 只能通过 serverURL 的管理接口清空；redis 后端直接操作共享存储。
func clearPageCache(ctx context.Context, cfg *config.Config, serverURL string, client *http.Client) error {
	if cfg.Cache.Backend == "redis" {
		store, closeStore, err := app.NewCacheStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		return store.Clear(ctx)
	}

	if cfg.App.AdminToken == "" {
		return errors.New("memory page cache lives inside the server process: set app.admin_token so clear-cache can call " + clearCachePath)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(serverURL, "/")+clearCachePath, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Admin-Token", cfg.App.AdminToken)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", serverURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("clear cache via %s: status %d: %s", serverURL, resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
