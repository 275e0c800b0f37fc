package service

import (
	"context"
	"fmt"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/pkg/pagination"
)

// RelationshipService 关系链服务：关注、取关、关注流
type RelationshipService interface {
	Follow(ctx context.Context, followerID uint, authorUsername string) (*model.User, error)
	Unfollow(ctx context.Context, followerID uint, authorUsername string) (*model.User, error)
	IsFollowing(ctx context.Context, followerID, authorID uint) (bool, error)
	ListFollowing(ctx context.Context, username, rawPage string) (pagination.Page[*model.User], error)
	ListFollowers(ctx context.Context, username, rawPage string) (pagination.Page[*model.User], error)
	Feed(ctx context.Context, followerID uint, rawPage string) (pagination.Page[*model.Post], error)
}

type relationshipService struct {
	users    repository.UserRepository
	follows  repository.FollowRepository
	posts    repository.PostRepository
	pageSize int
}

func NewRelationshipService(users repository.UserRepository, follows repository.FollowRepository, posts repository.PostRepository, pageSize int) RelationshipService {
	return &relationshipService{users: users, follows: follows, posts: posts, pageSize: pageSize}
}

// Follow 关注作者。关注自己返回 ErrFollowSelf，重复关注为空操作；
// 两种情况都会返回作者，便于调用方重定向
func (s *relationshipService) Follow(ctx context.Context, followerID uint, authorUsername string) (*model.User, error) {
	author, err := s.users.GetByUsername(ctx, authorUsername)
	if err != nil {
		return nil, err
	}
	if followerID == author.ID {
		return author, ErrFollowSelf
	}
	if err := s.follows.Create(ctx, followerID, author.ID); err != nil {
		return author, fmt.Errorf("follow %s: %w", authorUsername, err)
	}
	return author, nil
}

func (s *relationshipService) Unfollow(ctx context.Context, followerID uint, authorUsername string) (*model.User, error) {
	author, err := s.users.GetByUsername(ctx, authorUsername)
	if err != nil {
		return nil, err
	}
	if err := s.follows.Delete(ctx, followerID, author.ID); err != nil {
		return author, fmt.Errorf("unfollow %s: %w", authorUsername, err)
	}
	return author, nil
}

func (s *relationshipService) IsFollowing(ctx context.Context, followerID, authorID uint) (bool, error) {
	if followerID == 0 {
		return false, nil
	}
	return s.follows.Exists(ctx, followerID, authorID)
}

func (s *relationshipService) ListFollowing(ctx context.Context, username, rawPage string) (pagination.Page[*model.User], error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return pagination.Page[*model.User]{}, err
	}
	total, err := s.follows.CountFollowings(ctx, u.ID)
	if err != nil {
		return pagination.Page[*model.User]{}, err
	}
	w := pagination.New(total, s.pageSize, rawPage)
	items, err := s.follows.ListFollowings(ctx, u.ID, w.Offset, w.Limit)
	if err != nil {
		return pagination.Page[*model.User]{}, err
	}
	res := make([]*model.User, len(items))
	for i, it := range items {
		res[i] = &it.Author
	}
	return pagination.NewPage(w, res), nil
}

func (s *relationshipService) ListFollowers(ctx context.Context, username, rawPage string) (pagination.Page[*model.User], error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return pagination.Page[*model.User]{}, err
	}
	total, err := s.follows.CountFollowers(ctx, u.ID)
	if err != nil {
		return pagination.Page[*model.User]{}, err
	}
	w := pagination.New(total, s.pageSize, rawPage)
	items, err := s.follows.ListFollowers(ctx, u.ID, w.Offset, w.Limit)
	if err != nil {
		return pagination.Page[*model.User]{}, err
	}
	res := make([]*model.User, len(items))
	for i, it := range items {
		res[i] = &it.User
	}
	return pagination.NewPage(w, res), nil
}

// Feed 关注流：读时按关注关系过滤帖子
func (s *relationshipService) Feed(ctx context.Context, followerID uint, rawPage string) (pagination.Page[*model.Post], error) {
	if followerID == 0 {
		return pagination.NewPage[*model.Post](pagination.New(0, s.pageSize, rawPage), nil), nil
	}
	return listPosts(ctx, s.posts, repository.PostFilter{FollowerID: followerID}, s.pageSize, rawPage)
}
