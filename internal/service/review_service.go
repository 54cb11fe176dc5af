package service

import (
	"context"
	"strings"

	"github.com/brechodofuturo/marketplace/internal/domain"
)

type ReviewPage struct {
	Reviews []*domain.Review     `json:"reviews"`
	Summary domain.ReviewSummary `json:"summary"`
	Total   int64                `json:"-"`
}

type ReviewService struct {
	store    ReviewStore
	products ProductStore
}

func NewReviewService(store ReviewStore, products ProductStore) *ReviewService {
	return &ReviewService{store: store, products: products}
}

// Create adds the actor's review of a product. A user reviews a product at
// most once.
func (s *ReviewService) Create(ctx context.Context, actor domain.Actor, productID int64, rating int, comment string) (*domain.Review, error) {
	if !domain.ValidRating(rating) {
		return nil, ErrInvalidRating
	}
	if _, err := s.products.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}

	r := &domain.Review{
		ProductID: productID,
		UserID:    actor.UserID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	}
	if err := s.store.CreateReview(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ReviewService) ListByProduct(ctx context.Context, productID int64, page domain.Page) (*ReviewPage, error) {
	if _, err := s.products.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	reviews, total, err := s.store.ListReviewsByProduct(ctx, productID, page)
	if err != nil {
		return nil, err
	}
	summary, err := s.store.ReviewSummary(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &ReviewPage{Reviews: reviews, Summary: summary, Total: total}, nil
}

func (s *ReviewService) Update(ctx context.Context, actor domain.Actor, id int64, rating int, comment string) (*domain.Review, error) {
	if !domain.ValidRating(rating) {
		return nil, ErrInvalidRating
	}
	r, err := s.store.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != actor.UserID {
		return nil, ErrForbidden
	}

	r.Rating = rating
	r.Comment = strings.TrimSpace(comment)
	if err := s.store.UpdateReview(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ReviewService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	r, err := s.store.GetReview(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanManage(r.UserID) {
		return ErrForbidden
	}
	return s.store.DeleteReview(ctx, id)
}
