package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueAndParse(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	token, exp, err := svc.Issue(&domain.User{ID: 15, Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	actor, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(15), actor.UserID)
	assert.True(t, actor.IsAdmin())
}

func TestTokenService_Expired(t *testing.T) {
	svc := NewTokenService("secret", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := svc.Issue(&domain.User{ID: 1, Role: domain.RoleCustomer})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_WrongSecret(t *testing.T) {
	token, _, err := NewTokenService("one", time.Hour).Issue(&domain.User{ID: 1, Role: domain.RoleCustomer})
	require.NoError(t, err)

	_, err = NewTokenService("two", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		UserID: 1,
		Role:   domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenService("secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3nha-forte")
	require.NoError(t, err)
	assert.NotEqual(t, "s3nha-forte", hash)

	assert.NoError(t, CheckPassword(hash, "s3nha-forte"))
	assert.ErrorIs(t, CheckPassword(hash, "errada"), ErrPasswordMismatch)
}

func TestHashPassword_LimitIsInBytes(t *testing.T) {
	accented := strings.Repeat("é", 40)
	_, err := HashPassword(accented)
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = HashPassword(strings.Repeat("é", 36))
	assert.NoError(t, err)
}
