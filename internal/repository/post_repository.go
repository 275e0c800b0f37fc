package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/internal/model"
)

// PostFilter 列表过滤条件，零值字段不参与过滤
type PostFilter struct {
	AuthorID uint
	GroupID  uint
	// FollowerID 只保留该用户关注的作者的帖子
	FollowerID uint
}

type PostRepository interface {
	Create(ctx context.Context, p *model.Post) error
	Update(ctx context.Context, p *model.Post) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*model.Post, error)
	List(ctx context.Context, f PostFilter, offset, limit int) ([]*model.Post, error)
	Count(ctx context.Context, f PostFilter) (int64, error)
}

type postRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	return r.db.WithContext(ctx).Omit("Author", "Group").Create(p).Error
}

// Update 只写可编辑字段；group_id 为 nil 时显式置空
func (r *postRepository) Update(ctx context.Context, p *model.Post) error {
	return r.db.WithContext(ctx).
		Model(p).
		Select("text", "group_id", "image", "updated_at").
		Updates(map[string]any{
			"text":       p.Text,
			"group_id":   p.GroupID,
			"image":      p.Image,
			"updated_at": time.Now(),
		}).Error
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.Post{}, id).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*model.Post, error) {
	var p model.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Group").
		First(&p, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *postRepository) List(ctx context.Context, f PostFilter, offset, limit int) ([]*model.Post, error) {
	var res []*model.Post
	err := r.scope(ctx, f).
		Preload("Author").
		Preload("Group").
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *postRepository) Count(ctx context.Context, f PostFilter) (int64, error) {
	var cnt int64
	err := r.scope(ctx, f).Count(&cnt).Error
	return cnt, err
}

func (r *postRepository) scope(ctx context.Context, f PostFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Post{})
	if f.AuthorID != 0 {
		q = q.Where("posts.author_id = ?", f.AuthorID)
	}
	if f.GroupID != 0 {
		q = q.Where("posts.group_id = ?", f.GroupID)
	}
	if f.FollowerID != 0 {
		sub := r.db.WithContext(ctx).Model(&model.Follow{}).Select("author_id").Where("user_id = ?", f.FollowerID)
		q = q.Where("posts.author_id IN (?)", sub)
	}
	return q
}
