package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/pkg/logger"
	"github.com/d60-Lab/yatube/pkg/pagination"
)

// PostInput 创建/编辑帖子的表单数据
type PostInput struct {
	Text    string `form:"text" validate:"notblank"`
	GroupID *uint  `form:"group"`
	// Image 为 nil 时保留原图
	Image *multipart.FileHeader `form:"image" validate:"-"`
}

// Access 编辑权限判定结果
type Access int

const (
	AccessAuthorized Access = iota + 1
	AccessForbidden
)

// EditAccess is either Authorized, carrying the post, or Forbidden, carrying
// the location the caller must be sent to instead.
type EditAccess struct {
	Kind       Access
	Post       *model.Post
	RedirectTo string
}

func (a EditAccess) Authorized() bool { return a.Kind == AccessAuthorized }

type PostService interface {
	Create(ctx context.Context, authorID uint, in PostInput) (*model.Post, error)
	EditAccess(ctx context.Context, viewerID, postID uint) (EditAccess, error)
	Update(ctx context.Context, viewerID, postID uint, in PostInput) (EditAccess, error)
	Get(ctx context.Context, id uint) (*model.Post, error)
	Index(ctx context.Context, rawPage string) (pagination.Page[*model.Post], error)
	ByGroup(ctx context.Context, slug, rawPage string) (*model.Group, pagination.Page[*model.Post], error)
	ByAuthor(ctx context.Context, username, rawPage string) (*model.User, pagination.Page[*model.Post], error)
	CountByAuthor(ctx context.Context, authorID uint) (int64, error)
}

type postService struct {
	posts   repository.PostRepository
	groups  repository.GroupRepository
	users   repository.UserRepository
	media   *MediaStorage
	perPage int
}

func NewPostService(posts repository.PostRepository, groups repository.GroupRepository, users repository.UserRepository, media *MediaStorage, perPage int) PostService {
	return &postService{posts: posts, groups: groups, users: users, media: media, perPage: perPage}
}

// PostURL 帖子详情页地址
func PostURL(id uint) string { return fmt.Sprintf("/posts/%d/", id) }

// ProfileURL 用户主页地址
func ProfileURL(username string) string { return "/profile/" + username + "/" }

func (s *postService) Create(ctx context.Context, authorID uint, in PostInput) (*model.Post, error) {
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}
	p := &model.Post{Text: in.Text, AuthorID: authorID, GroupID: in.GroupID}
	if in.Image != nil {
		rel, err := s.media.SavePostImage(in.Image)
		if err != nil {
			return nil, err
		}
		p.Image = rel
	}
	if err := s.posts.Create(ctx, p); err != nil {
		_ = s.media.Remove(p.Image)
		return nil, fmt.Errorf("create post: %w", err)
	}
	return p, nil
}

func (s *postService) EditAccess(ctx context.Context, viewerID, postID uint) (EditAccess, error) {
	p, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return EditAccess{}, err
	}
	if viewerID == 0 || p.AuthorID != viewerID {
		return EditAccess{Kind: AccessForbidden, RedirectTo: PostURL(p.ID)}, nil
	}
	return EditAccess{Kind: AccessAuthorized, Post: p}, nil
}

// Update 仅作者可改；非作者得到 Forbidden，帖子保持不变
func (s *postService) Update(ctx context.Context, viewerID, postID uint, in PostInput) (EditAccess, error) {
	access, err := s.EditAccess(ctx, viewerID, postID)
	if err != nil || !access.Authorized() {
		return access, err
	}
	if err := s.validate(ctx, &in); err != nil {
		return access, err
	}

	p := access.Post
	oldImage := p.Image
	p.Text = in.Text
	p.GroupID = in.GroupID
	if in.Image != nil {
		rel, err := s.media.SavePostImage(in.Image)
		if err != nil {
			return access, err
		}
		p.Image = rel
	}
	if err := s.posts.Update(ctx, p); err != nil {
		if p.Image != oldImage {
			_ = s.media.Remove(p.Image)
		}
		return access, fmt.Errorf("update post %d: %w", p.ID, err)
	}
	if p.Image != oldImage && oldImage != "" {
		if err := s.media.Remove(oldImage); err != nil {
			logger.Warn("remove replaced image", zap.String("path", oldImage), zap.Error(err))
		}
	}
	return access, nil
}

func (s *postService) validate(ctx context.Context, in *PostInput) error {
	in.Text = strings.TrimSpace(in.Text)
	if in.GroupID != nil && *in.GroupID == 0 {
		in.GroupID = nil
	}
	if err := validateStruct(in); err != nil {
		return err
	}
	if in.GroupID != nil {
		if _, err := s.groups.GetByID(ctx, *in.GroupID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return newValidationError("group", "Select a valid choice. That choice is not one of the available choices.")
			}
			return err
		}
	}
	return nil
}

func (s *postService) Get(ctx context.Context, id uint) (*model.Post, error) {
	return s.posts.GetByID(ctx, id)
}

func (s *postService) Index(ctx context.Context, rawPage string) (pagination.Page[*model.Post], error) {
	return s.list(ctx, repository.PostFilter{}, rawPage)
}

func (s *postService) ByGroup(ctx context.Context, slug, rawPage string) (*model.Group, pagination.Page[*model.Post], error) {
	g, err := s.groups.GetBySlug(ctx, slug)
	if err != nil {
		return nil, pagination.Page[*model.Post]{}, err
	}
	page, err := s.list(ctx, repository.PostFilter{GroupID: g.ID}, rawPage)
	return g, page, err
}

func (s *postService) ByAuthor(ctx context.Context, username, rawPage string) (*model.User, pagination.Page[*model.Post], error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, pagination.Page[*model.Post]{}, err
	}
	page, err := s.list(ctx, repository.PostFilter{AuthorID: u.ID}, rawPage)
	return u, page, err
}

func (s *postService) CountByAuthor(ctx context.Context, authorID uint) (int64, error) {
	return s.posts.Count(ctx, repository.PostFilter{AuthorID: authorID})
}

func (s *postService) list(ctx context.Context, f repository.PostFilter, rawPage string) (pagination.Page[*model.Post], error) {
	return listPosts(ctx, s.posts, f, s.perPage, rawPage)
}

// listPosts 先计数再取窗口
func listPosts(ctx context.Context, repo repository.PostRepository, f repository.PostFilter, perPage int, rawPage string) (pagination.Page[*model.Post], error) {
	total, err := repo.Count(ctx, f)
	if err != nil {
		return pagination.Page[*model.Post]{}, fmt.Errorf("count posts: %w", err)
	}
	w := pagination.New(total, perPage, rawPage)
	items, err := repo.List(ctx, f, w.Offset, w.Limit)
	if err != nil {
		return pagination.Page[*model.Post]{}, fmt.Errorf("list posts: %w", err)
	}
	return pagination.NewPage(w, items), nil
}
