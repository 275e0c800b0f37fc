package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/pkg/response"
)

// ListPosts 帖子列表（JSON）
// @Summary 帖子列表
// @Tags 帖子
// @Produce json
// @Param page query int false "页码" default(1)
// @Success 200 {object} response.Response{data=pagination.Page[model.Post]}
// @Router /api/v1/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	page, err := h.postService.Index(c.Request.Context(), c.Query("page"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, page)
}

// GetPost 帖子详情及评论
// @Summary 帖子详情
// @Tags 帖子
// @Produce json
// @Param id path int true "帖子ID"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		response.NotFound(c, "post not found")
		return
	}
	ctx := c.Request.Context()
	post, err := h.postService.Get(ctx, id)
	if err != nil {
		h.apiFail(c, err, "post not found")
		return
	}
	comments, err := h.commentService.ListByPost(ctx, id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"post": post, "comments": comments})
}

// ListGroupPosts 分组下的帖子
// @Summary 分组帖子列表
// @Tags 帖子
// @Produce json
// @Param slug path string true "分组 slug"
// @Param page query int false "页码" default(1)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/v1/groups/{slug}/posts [get]
func (h *Handler) ListGroupPosts(c *gin.Context) {
	group, page, err := h.postService.ByGroup(c.Request.Context(), c.Param("slug"), c.Query("page"))
	if err != nil {
		h.apiFail(c, err, "group not found")
		return
	}
	response.Success(c, gin.H{"group": group, "page": page})
}

// ClearPageCache 清空页面缓存
// @Summary 清空页面缓存
// @Tags 管理
// @Produce json
// @Param X-Admin-Token header string true "管理令牌"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/admin/cache/clear [post]
func (h *Handler) ClearPageCache(c *gin.Context) {
	if err := h.pageCache.Clear(c.Request.Context()); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// Health 存活检查
// @Summary 健康检查
// @Tags 管理
// @Success 200 {object} response.Response
// @Router /healthz [get]
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
