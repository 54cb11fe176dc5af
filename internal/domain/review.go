package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ReviewSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}
