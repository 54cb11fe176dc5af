package shipping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brechodofuturo/marketplace/internal/config"
	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/brechodofuturo/marketplace/internal/repository"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotAuthorized means no token was ever obtained; an admin has to run
	// the authorization-code flow first.
	ErrNotAuthorized = errors.New("carrier integration is not authorized")
	ErrTokenRefresh  = errors.New("could not refresh carrier token")
)

// TokenStore persists the single carrier token row.
type TokenStore interface {
	GetCarrierToken(ctx context.Context) (*domain.CarrierToken, error)
	SaveCarrierToken(ctx context.Context, t *domain.CarrierToken) error
}

// defaultTokenLifetime is assumed when the provider does not say how long
// an access token lives.
const defaultTokenLifetime = time.Hour

type TokenManager struct {
	store      TokenStore
	oauth      *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
	group      singleflight.Group
	now        func() time.Time
	log        *slog.Logger
}

func NewTokenManager(store TokenStore, cfg config.CarrierConfig, httpClient *http.Client, log *slog.Logger) *TokenManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TokenManager{
		store: store,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"shipping-calculate"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.BaseURL + "/oauth/authorize",
				TokenURL:  cfg.BaseURL + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		timeout:    timeout,
		now:        time.Now,
		log:        log,
	}
}

// AuthCodeURL is where an admin is sent to grant the marketplace access to
// the carrier account.
func (m *TokenManager) AuthCodeURL(state string) string {
	return m.oauth.AuthCodeURL(state)
}

// Exchange trades the authorization code from the carrier callback for a
// token pair and stores it.
func (m *TokenManager) Exchange(ctx context.Context, code string) (*domain.CarrierToken, error) {
	tok, err := m.oauth.Exchange(m.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	t := m.toCarrierToken(tok, "")
	if err := m.store.SaveCarrierToken(ctx, t); err != nil {
		return nil, err
	}
	m.log.InfoContext(ctx, "carrier token obtained", "expires_at", t.ExpiresAt)
	return t, nil
}

// Token returns an access token that is valid for at least the expiry
// margin. An expired token is refreshed once no matter how many callers ask
// for it at the same time.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	t, err := m.load(ctx)
	if err != nil {
		return "", err
	}
	if t.IsValid(m.now()) {
		return t.AccessToken, nil
	}

	v, err, _ := m.group.Do("refresh", func() (interface{}, error) {
		// the refresh outlives a caller that gives up
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		return m.refresh(refreshCtx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	// another caller may have refreshed between our read and the flight
	current, err := m.load(ctx)
	if err != nil {
		return "", err
	}
	if current.IsValid(m.now()) {
		return current.AccessToken, nil
	}
	if current.RefreshToken == "" {
		return "", ErrNotAuthorized
	}

	src := m.oauth.TokenSource(m.clientContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		m.log.ErrorContext(ctx, "carrier token refresh failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}

	t := m.toCarrierToken(tok, current.RefreshToken)
	if err := m.store.SaveCarrierToken(ctx, t); err != nil {
		return "", err
	}
	m.log.InfoContext(ctx, "carrier token refreshed", "expires_at", t.ExpiresAt)
	return t.AccessToken, nil
}

func (m *TokenManager) load(ctx context.Context) (*domain.CarrierToken, error) {
	t, err := m.store.GetCarrierToken(ctx)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, ErrNotAuthorized
	}
	return t, err
}

func (m *TokenManager) toCarrierToken(tok *oauth2.Token, previousRefresh string) *domain.CarrierToken {
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	expiry := tok.Expiry
	if expiry.IsZero() {
		// no expires_in in the reply
		expiry = m.now().Add(defaultTokenLifetime)
	}
	return &domain.CarrierToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    expiry,
	}
}

func (m *TokenManager) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}
