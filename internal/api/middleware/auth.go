package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/logger"
)

const ctxUser = "user"

// Session 从 cookie 中解析当前用户；无效令牌会被清除，请求按匿名处理
func Session(auth service.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}
		u, err := auth.UserFromToken(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(ctxUser, u)
		case errors.Is(err, service.ErrInvalidToken):
			c.SetCookie(cookieName, "", -1, "/", "", false, true)
		default:
			logger.Warn("session lookup failed", zap.Error(err))
		}
		c.Next()
	}
}

// CurrentUser returns the signed-in user or nil for anonymous requests.
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(ctxUser); ok {
		if u, ok := v.(*model.User); ok {
			return u
		}
	}
	return nil
}

// ViewerID is 0 for anonymous requests.
func ViewerID(c *gin.Context) uint {
	if u := CurrentUser(c); u != nil {
		return u.ID
	}
	return 0
}

// LoginRequired 未登录时跳转到 <loginURL>?next=<原请求地址>
func LoginRequired(loginURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) != nil {
			c.Next()
			return
		}
		c.Redirect(http.StatusFound, LoginRedirect(loginURL, c.Request.URL.RequestURI()))
		c.Abort()
	}
}

// LoginRedirect builds the login location for next, keeping "/" unescaped.
func LoginRedirect(loginURL, next string) string {
	return loginURL + "?next=" + strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
}

// SafeNext accepts only local absolute paths.
func SafeNext(next string) (string, bool) {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "", false
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "", false
	}
	return next, true
}

// ClearUser drops the signed-in user for the rest of the request.
func ClearUser(c *gin.Context) {
	c.Set(ctxUser, nil)
}
