package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
)

// GroupInput 分组由管理命令创建
type GroupInput struct {
	Title       string `form:"title" validate:"notblank,max=200"`
	Slug        string `form:"slug" validate:"required,max=50,slug"`
	Description string `form:"description"`
}

type GroupService interface {
	Create(ctx context.Context, in GroupInput) (*model.Group, error)
	List(ctx context.Context) ([]*model.Group, error)
	GetBySlug(ctx context.Context, slug string) (*model.Group, error)
}

type groupService struct {
	groups repository.GroupRepository
}

func NewGroupService(groups repository.GroupRepository) GroupService {
	return &groupService{groups: groups}
}

func (s *groupService) Create(ctx context.Context, in GroupInput) (*model.Group, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.TrimSpace(in.Slug)
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	if _, err := s.groups.GetBySlug(ctx, in.Slug); err == nil {
		return nil, newValidationError("slug", "Group with this slug already exists.")
	}
	g := &model.Group{Title: in.Title, Slug: in.Slug, Description: in.Description}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return g, nil
}

func (s *groupService) List(ctx context.Context) ([]*model.Group, error) {
	return s.groups.List(ctx)
}

func (s *groupService) GetBySlug(ctx context.Context, slug string) (*model.Group, error) {
	return s.groups.GetBySlug(ctx, slug)
}
