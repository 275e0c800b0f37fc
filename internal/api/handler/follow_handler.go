package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/metrics"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/internal/web"
)

// FollowIndex 关注作者的帖子流
func (h *Handler) FollowIndex(c *gin.Context) {
	page, err := h.relService.Feed(c.Request.Context(), middleware.ViewerID(c), c.Query("page"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, web.PageFollow, gin.H{"Page": page})
}

// ProfileFollow 关注自己或重复关注都是空操作，随后跳回作者主页
func (h *Handler) ProfileFollow(c *gin.Context) {
	username := c.Param("username")
	_, err := h.relService.Follow(c.Request.Context(), middleware.ViewerID(c), username)
	switch {
	case err == nil:
		h.inc(func(m *metrics.Metrics) { m.Follows.Inc() })
	case errors.Is(err, service.ErrFollowSelf):
	default:
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, service.ProfileURL(username))
}

func (h *Handler) ProfileUnfollow(c *gin.Context) {
	username := c.Param("username")
	if _, err := h.relService.Unfollow(c.Request.Context(), middleware.ViewerID(c), username); err != nil {
		h.fail(c, err)
		return
	}
	h.inc(func(m *metrics.Metrics) { m.Unfollows.Inc() })
	c.Redirect(http.StatusFound, service.ProfileURL(username))
}
