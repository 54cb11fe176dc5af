package shipping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/brechodofuturo/marketplace/internal/repository"
)

// Used when a product has no dimensions registered. They match the smallest
// box the carrier accepts.
const (
	defaultWidthCm  = 11
	defaultHeightCm = 2
	defaultLengthCm = 16
	defaultWeightKg = 0.3
)

var (
	ErrInvalidPostalCode = errors.New("postal code must have 8 digits")
	ErrNoItems           = errors.New("at least one item is required")
	ErrInvalidItem       = errors.New("item quantity must be at least 1")
)

type ProductReader interface {
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
}

type Calculator interface {
	Calculate(ctx context.Context, req QuoteRequest) ([]Quote, error)
}

type Item struct {
	ProductID int64
	Quantity  int
}

type Service struct {
	products ProductReader
	carrier  Calculator
	origin   string
}

func NewService(products ProductReader, carrier Calculator, originPostalCode string) *Service {
	return &Service{products: products, carrier: carrier, origin: NormalizePostalCode(originPostalCode)}
}

// Quote prices the delivery of items to the destination postal code.
// Services the carrier cannot offer come back with Error set; quotes are
// ordered cheapest first with the failed ones last.
func (s *Service) Quote(ctx context.Context, toPostalCode string, items []Item) ([]Quote, error) {
	to := NormalizePostalCode(toPostalCode)
	if !validPostalCode(to) {
		return nil, ErrInvalidPostalCode
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, ErrInvalidItem
		}
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	req := QuoteRequest{FromPostalCode: s.origin, ToPostalCode: to}
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", repository.ErrProductNotFound, it.ProductID)
		}
		req.Products = append(req.Products, packageFor(p, it.Quantity))
	}

	quotes, err := s.carrier.Calculate(ctx, req)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(quotes, func(i, j int) bool {
		if (quotes[i].Error == "") != (quotes[j].Error == "") {
			return quotes[i].Error == ""
		}
		return quotes[i].Price.LessThan(quotes[j].Price)
	})
	return quotes, nil
}

func packageFor(p *domain.Product, qty int) PackageProduct {
	return PackageProduct{
		ID:             strconv.FormatInt(p.ID, 10),
		Width:          orDefault(p.WidthCm, defaultWidthCm),
		Height:         orDefault(p.HeightCm, defaultHeightCm),
		Length:         orDefault(p.LengthCm, defaultLengthCm),
		Weight:         orDefault(p.WeightKg, defaultWeightKg),
		InsuranceValue: p.Price,
		Quantity:       qty,
	}
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// NormalizePostalCode strips the separators of a CEP ("01310-100").
func NormalizePostalCode(s string) string {
	return strings.NewReplacer("-", "", ".", "", " ", "").Replace(strings.TrimSpace(s))
}

func validPostalCode(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
