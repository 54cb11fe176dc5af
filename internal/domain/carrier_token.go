package domain

import "time"

// TokenExpiryMargin is subtracted from a token's expiry before it is used,
// so a token is never sent to the carrier in its last seconds of life.
const TokenExpiryMargin = 5 * time.Second

type CarrierToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

func (t *CarrierToken) IsValid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Add(TokenExpiryMargin).Before(t.ExpiresAt)
}
