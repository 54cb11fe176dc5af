package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/brechodofuturo/marketplace/internal/config"
	"github.com/brechodofuturo/marketplace/pkg/circuitbreaker"
	"github.com/shopspring/decimal"
)

const calculatePath = "/api/v2/me/shipment/calculate"

var (
	ErrCarrierUnavailable = errors.New("carrier is unavailable")
	// ErrCarrierRejected is a 4xx reply; it does not count against the breaker.
	ErrCarrierRejected = errors.New("carrier rejected the request")

	// errCallerGone marks a call abandoned because the caller's context ended.
	// It says nothing about the carrier's health.
	errCallerGone = errors.New("shipment calculation abandoned")
)

type AccessTokenSource interface {
	Token(ctx context.Context) (string, error)
}

type PackageProduct struct {
	ID             string          `json:"id"`
	Width          float64         `json:"width"`
	Height         float64         `json:"height"`
	Length         float64         `json:"length"`
	Weight         float64         `json:"weight"`
	InsuranceValue decimal.Decimal `json:"insurance_value"`
	Quantity       int             `json:"quantity"`
}

type QuoteRequest struct {
	FromPostalCode string
	ToPostalCode   string
	Products       []PackageProduct
}

type Quote struct {
	ServiceID    int             `json:"service_id"`
	Name         string          `json:"name"`
	Company      string          `json:"company"`
	Price        decimal.Decimal `json:"price"`
	DeliveryDays int             `json:"delivery_days"`
	Error        string          `json:"error,omitempty"`
}

type postalCode struct {
	PostalCode string `json:"postal_code"`
}

type calculateRequest struct {
	From     postalCode       `json:"from"`
	To       postalCode       `json:"to"`
	Products []PackageProduct `json:"products"`
}

type carrierQuote struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	DeliveryTime int             `json:"delivery_time"`
	Error        string          `json:"error"`
	Company      struct {
		Name string `json:"name"`
	} `json:"company"`
}

type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	tokens    AccessTokenSource
	breaker   *circuitbreaker.Breaker[[]Quote]
}

func NewClient(cfg config.CarrierConfig, tokens AccessTokenSource, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	bc := circuitbreaker.DefaultConfig("carrier")
	bc.Logger = log
	bc.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrCarrierRejected) || errors.Is(err, errCallerGone)
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		http:      httpClient,
		tokens:    tokens,
		breaker:   circuitbreaker.New[[]Quote](bc),
	}
}

// Calculate asks the carrier for the services able to deliver the package
// and their prices.
func (c *Client) Calculate(ctx context.Context, req QuoteRequest) ([]Quote, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errCallerGone, err)
	}

	quotes, err := c.breaker.Execute(func() ([]Quote, error) {
		return c.calculate(ctx, token, req)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, fmt.Errorf("%w: %v", ErrCarrierUnavailable, err)
	}
	return quotes, err
}

func (c *Client) calculate(ctx context.Context, token string, req QuoteRequest) ([]Quote, error) {
	body, err := json.Marshal(calculateRequest{
		From:     postalCode{PostalCode: req.FromPostalCode},
		To:       postalCode{PostalCode: req.ToPostalCode},
		Products: req.Products,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal calculate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+calculatePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build calculate request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", errCallerGone, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrCarrierUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrCarrierUnavailable, err)
	}
	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrCarrierUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d: %s", ErrCarrierRejected, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out []carrierQuote
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrCarrierUnavailable, err)
	}

	quotes := make([]Quote, 0, len(out))
	for _, q := range out {
		quotes = append(quotes, Quote{
			ServiceID:    q.ID,
			Name:         q.Name,
			Company:      q.Company.Name,
			Price:        q.Price,
			DeliveryDays: q.DeliveryTime,
			Error:        q.Error,
		})
	}
	return quotes, nil
}
