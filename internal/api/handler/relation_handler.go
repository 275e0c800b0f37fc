package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/response"
)

// ListFollowing 查询某用户关注的作者
// @Summary 查询关注列表
// @Tags 关系链
// @Produce json
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/v1/relations/{username}/following [get]
func (h *Handler) ListFollowing(c *gin.Context) {
	page, err := h.relService.ListFollowing(c.Request.Context(), c.Param("username"), c.Query("page"))
	if err != nil {
		h.apiFail(c, err, "user not found")
		return
	}
	response.Success(c, page)
}

// ListFollowers 查询某作者的关注者
// @Summary 查询粉丝列表
// @Tags 关系链
// @Produce json
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/v1/relations/{username}/followers [get]
func (h *Handler) ListFollowers(c *gin.Context) {
	page, err := h.relService.ListFollowers(c.Request.Context(), c.Param("username"), c.Query("page"))
	if err != nil {
		h.apiFail(c, err, "user not found")
		return
	}
	response.Success(c, page)
}

func (h *Handler) apiFail(c *gin.Context, err error, notFoundMsg string) {
	if errors.Is(err, service.ErrNotFound) {
		response.NotFound(c, notFoundMsg)
		return
	}
	response.InternalError(c, err)
}
