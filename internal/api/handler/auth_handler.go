package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/internal/web"
	"github.com/d60-Lab/yatube/pkg/logger"
)

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

func (h *Handler) SignUp(c *gin.Context) {
	form := newFormView()
	if c.Request.Method == http.MethodGet {
		h.render(c, http.StatusOK, web.PageSignup, gin.H{"Form": form})
		return
	}

	var in service.SignUpInput
	if err := c.ShouldBind(&in); err != nil {
		h.fail(c, err)
		return
	}
	form.Values["first_name"] = in.FirstName
	form.Values["last_name"] = in.LastName
	form.Values["username"] = in.Username
	form.Values["email"] = in.Email

	u, err := h.authService.SignUp(c.Request.Context(), in)
	if ve, ok := service.AsValidation(err); ok {
		h.render(c, http.StatusOK, web.PageSignup, gin.H{"Form": form.withErrors(ve)})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	logger.Info("user signed up", zap.Uint("user_id", u.ID), zap.String("username", u.Username))
	c.Redirect(http.StatusFound, "/")
}

// Login 成功后写入会话 cookie，并跳转到安全的 next 或首页
func (h *Handler) Login(c *gin.Context) {
	form := newFormView()
	if c.Request.Method == http.MethodGet {
		h.render(c, http.StatusOK, web.PageLogin, gin.H{"Form": form, "Next": c.Query("next")})
		return
	}

	var in loginForm
	if err := c.ShouldBind(&in); err != nil {
		h.fail(c, err)
		return
	}
	if in.Next == "" {
		in.Next = c.Query("next")
	}
	form.Values["username"] = in.Username

	u, err := h.authService.Authenticate(c.Request.Context(), in.Username, in.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		form.NonField = "Please enter a correct username and password."
		h.render(c, http.StatusOK, web.PageLogin, gin.H{"Form": form, "Next": in.Next})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	token, err := h.authService.IssueToken(u)
	if err != nil {
		h.fail(c, err)
		return
	}

	auth := h.cfg.Auth
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(auth.SessionTTL.Seconds()), "/", "", auth.CookieSecure, true)

	target := "/"
	if next, ok := middleware.SafeNext(in.Next); ok {
		target = next
	}
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie(h.cfg.Auth.CookieName, "", -1, "/", "", h.cfg.Auth.CookieSecure, true)
	middleware.ClearUser(c)
	h.render(c, http.StatusOK, web.PageLoggedOut, gin.H{})
}

func (h *Handler) AboutAuthor(c *gin.Context) {
	h.render(c, http.StatusOK, web.PageAboutAuthor, nil)
}

func (h *Handler) AboutTech(c *gin.Context) {
	h.render(c, http.StatusOK, web.PageAboutTech, nil)
}
