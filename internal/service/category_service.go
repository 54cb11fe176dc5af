package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/brechodofuturo/marketplace/internal/domain"
)

type CategoryInput struct {
	Name        string
	Description string
	ParentID    *int64
}

type CategoryService struct {
	store CategoryStore
}

func NewCategoryService(store CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

func (s *CategoryService) Create(ctx context.Context, actor domain.Actor, in CategoryInput) (*domain.Category, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	c := &domain.Category{
		Name:        strings.TrimSpace(in.Name),
		Slug:        domain.Slugify(in.Name),
		Description: in.Description,
		ParentID:    in.ParentID,
	}
	if c.Slug == "" {
		return nil, fmt.Errorf("%w: name produces an empty slug", ErrInvalidInput)
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*domain.Category, error) {
	return s.store.GetCategoryByID(ctx, id)
}

func (s *CategoryService) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return s.store.GetCategoryBySlug(ctx, slug)
}

// List returns the categories flat, or nested under their parents when
// tree is set.
func (s *CategoryService) List(ctx context.Context, tree bool) ([]domain.Category, error) {
	flat, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if !tree {
		return flat, nil
	}
	return domain.BuildCategoryTree(flat), nil
}

func (s *CategoryService) Update(ctx context.Context, actor domain.Actor, id int64, in CategoryInput) (*domain.Category, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	c, err := s.store.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		c.Name = name
		c.Slug = domain.Slugify(name)
	}
	c.Description = in.Description
	if in.ParentID != nil {
		if err := s.checkParent(ctx, id, *in.ParentID); err != nil {
			return nil, err
		}
	}
	c.ParentID = in.ParentID

	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CategoryService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return s.store.DeleteCategory(ctx, id)
}

// checkParent walks up from parentID and fails if it reaches id.
func (s *CategoryService) checkParent(ctx context.Context, id, parentID int64) error {
	all, err := s.store.ListCategories(ctx)
	if err != nil {
		return err
	}
	parents := make(map[int64]*int64, len(all))
	for _, c := range all {
		parents[c.ID] = c.ParentID
	}
	if _, ok := parents[parentID]; !ok {
		return ErrCategoryNotFound
	}

	seen := map[int64]bool{}
	for cur := &parentID; cur != nil; cur = parents[*cur] {
		if *cur == id {
			return ErrCategoryCycle
		}
		if seen[*cur] {
			break
		}
		seen[*cur] = true
	}
	return nil
}
