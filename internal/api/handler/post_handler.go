package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/metrics"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/internal/web"
	"github.com/d60-Lab/yatube/pkg/logger"
)

type postForm struct {
	Text  string `form:"text"`
	Group string `form:"group"`
}

// Index 首页，路由层挂载页面缓存
func (h *Handler) Index(c *gin.Context) {
	page, err := h.postService.Index(c.Request.Context(), c.Query("page"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, web.PageIndex, gin.H{"Page": page})
}

func (h *Handler) GroupPosts(c *gin.Context) {
	group, page, err := h.postService.ByGroup(c.Request.Context(), c.Param("slug"), c.Query("page"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, web.PageGroup, gin.H{"Group": group, "Page": page})
}

func (h *Handler) Profile(c *gin.Context) {
	ctx := c.Request.Context()
	author, page, err := h.postService.ByAuthor(ctx, c.Param("username"), c.Query("page"))
	if err != nil {
		h.fail(c, err)
		return
	}
	following, err := h.relService.IsFollowing(ctx, middleware.ViewerID(c), author.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, web.PageProfile, gin.H{
		"Author":     author,
		"Page":       page,
		"PostsCount": page.Total,
		"Following":  following,
	})
}

func (h *Handler) PostDetail(c *gin.Context) {
	id, ok := pathID(c, "post_id")
	if !ok {
		h.NotFound(c)
		return
	}
	ctx := c.Request.Context()
	post, err := h.postService.Get(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	comments, err := h.commentService.ListByPost(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	count, err := h.postService.CountByAuthor(ctx, post.AuthorID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, web.PagePostDetail, gin.H{
		"Post":       post,
		"Comments":   comments,
		"PostsCount": count,
		"Form":       newFormView(),
	})
}

// PostCreate GET 渲染空表单，POST 校验通过后跳转到作者主页
func (h *Handler) PostCreate(c *gin.Context) {
	user := middleware.CurrentUser(c)
	form := newFormView()
	if c.Request.Method == http.MethodGet {
		h.renderPostForm(c, form, false, 0)
		return
	}

	in, err := h.bindPost(c, &form)
	if err == nil {
		_, err = h.postService.Create(c.Request.Context(), user.ID, in)
	}
	if ve, ok := service.AsValidation(err); ok {
		h.renderPostForm(c, form.withErrors(ve), false, 0)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.inc(func(m *metrics.Metrics) { m.PostsCreated.Inc() })
	c.Redirect(http.StatusFound, service.ProfileURL(user.Username))
}

// PostEdit 非作者静默跳转到详情页
func (h *Handler) PostEdit(c *gin.Context) {
	id, ok := pathID(c, "post_id")
	if !ok {
		h.NotFound(c)
		return
	}
	ctx := c.Request.Context()
	viewer := middleware.ViewerID(c)

	access, err := h.postService.EditAccess(ctx, viewer, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !access.Authorized() {
		c.Redirect(http.StatusFound, access.RedirectTo)
		return
	}

	form := newFormView()
	if c.Request.Method == http.MethodGet {
		form.Values["text"] = access.Post.Text
		if access.Post.GroupID != nil {
			form.Values["group"] = strconv.FormatUint(uint64(*access.Post.GroupID), 10)
		}
		form.Values["image"] = access.Post.Image
		h.renderPostForm(c, form, true, id)
		return
	}

	in, err := h.bindPost(c, &form)
	if err == nil {
		access, err = h.postService.Update(ctx, viewer, id, in)
	}
	if ve, ok := service.AsValidation(err); ok {
		form.Values["image"] = access.Post.Image
		h.renderPostForm(c, form.withErrors(ve), true, id)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if !access.Authorized() {
		c.Redirect(http.StatusFound, access.RedirectTo)
		return
	}
	h.inc(func(m *metrics.Metrics) { m.PostsEdited.Inc() })
	c.Redirect(http.StatusFound, service.PostURL(id))
}

// AddComment 无论评论是否有效都跳回详情页
func (h *Handler) AddComment(c *gin.Context) {
	id, ok := pathID(c, "post_id")
	if !ok {
		h.NotFound(c)
		return
	}
	var in service.CommentInput
	if err := c.ShouldBind(&in); err != nil {
		// 无法解析的表单按空评论处理：不落库，照常跳转
		logger.Warn("comment form bind failed", zap.Uint("post_id", id), zap.Error(err))
		in = service.CommentInput{}
	}

	_, err := h.commentService.Create(c.Request.Context(), id, middleware.ViewerID(c), in)
	if _, invalid := service.AsValidation(err); err != nil && !invalid {
		h.fail(c, err)
		return
	}
	if err == nil {
		h.inc(func(m *metrics.Metrics) { m.Comments.Inc() })
	}
	c.Redirect(http.StatusFound, service.PostURL(id))
}

// bindPost reads the post form into in and echoes the raw values into form.
func (h *Handler) bindPost(c *gin.Context, form *formView) (service.PostInput, error) {
	var raw postForm
	if err := c.ShouldBind(&raw); err != nil {
		return service.PostInput{}, err
	}
	form.Values["text"] = raw.Text
	form.Values["group"] = raw.Group

	in := service.PostInput{Text: raw.Text}
	if g := strings.TrimSpace(raw.Group); g != "" {
		id, err := strconv.ParseUint(g, 10, 64)
		if err != nil {
			return in, &service.ValidationError{Fields: map[string]string{"group": "Select a valid choice."}}
		}
		gid := uint(id)
		in.GroupID = &gid
	}

	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		in.Image = fh
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return in, err
	}
	return in, nil
}

func (h *Handler) renderPostForm(c *gin.Context, form formView, isEdit bool, postID uint) {
	groups, err := h.groupService.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if groups == nil {
		groups = []*model.Group{}
	}
	h.render(c, http.StatusOK, web.PageCreatePost, gin.H{
		"Form":   form,
		"Groups": groups,
		"IsEdit": isEdit,
		"PostID": postID,
	})
}
