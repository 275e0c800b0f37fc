package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
)

// CommentInput 评论表单
type CommentInput struct {
	Text string `form:"text" validate:"notblank"`
}

type CommentService interface {
	Create(ctx context.Context, postID, authorID uint, in CommentInput) (*model.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]*model.Comment, error)
}

type commentService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
}

func NewCommentService(posts repository.PostRepository, comments repository.CommentRepository) CommentService {
	return &commentService{posts: posts, comments: comments}
}

// Create returns ErrNotFound for an unknown post before looking at the text.
func (s *commentService) Create(ctx context.Context, postID, authorID uint, in CommentInput) (*model.Comment, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	in.Text = strings.TrimSpace(in.Text)
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	c := &model.Comment{PostID: postID, AuthorID: authorID, Text: in.Text}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

func (s *commentService) ListByPost(ctx context.Context, postID uint) ([]*model.Comment, error) {
	return s.comments.ListByPost(ctx, postID)
}
