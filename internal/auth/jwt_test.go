package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signingSecret = "platform-signing-secret"

// customerToken mints the kind of token the booking platform issues to a
// customer before they hit the payment endpoints.
func customerToken(t *testing.T, customerID uuid.UUID, ttl time.Duration) string {
	t.Helper()
	token, err := GenerateToken(customerID, "customer@salonova.example", signingSecret, ttl)
	require.NoError(t, err)
	return token
}

func TestGenerateAndValidateToken(t *testing.T) {
	customerID := uuid.New()

	token := customerToken(t, customerID, time.Hour)

	claims, err := ValidateToken(token, signingSecret)
	require.NoError(t, err)
	assert.Equal(t, customerID, claims.UserID)
	assert.Equal(t, "customer@salonova.example", claims.Email)
}

func TestValidateToken_Rejections(t *testing.T) {
	customerID := uuid.New()

	tests := []struct {
		name      string
		token     string
		secret    string
		wantErrIs error
	}{
		{
			name:      "expired session",
			token:     customerToken(t, customerID, -time.Minute),
			secret:    signingSecret,
			wantErrIs: jwt.ErrTokenExpired,
		},
		{
			name:      "signed by another platform",
			token:     customerToken(t, customerID, time.Hour),
			secret:    "some-other-platform",
			wantErrIs: jwt.ErrTokenSignatureInvalid,
		},
		{
			name:      "garbage bearer value",
			token:     "not.a.valid.jwt",
			secret:    signingSecret,
			wantErrIs: jwt.ErrTokenMalformed,
		},
		{
			name:      "empty bearer value",
			token:     "",
			secret:    signingSecret,
			wantErrIs: jwt.ErrTokenMalformed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateToken(tc.token, tc.secret)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErrIs)
		})
	}
}

func TestValidateToken_RejectsUnsignedAlgorithm(t *testing.T) {
	// Algorithm confusion: an unsigned "none" token must never validate.
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: uuid.NewString(),
		Email:  "customer@salonova.example",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken(signed, signingSecret)
	require.Error(t, err)
}

func TestValidateToken_RejectsNonUUIDSubject(t *testing.T) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: "customer-42",
		Email:  "customer@salonova.example",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(signingSecret))
	require.NoError(t, err)

	_, err = ValidateToken(signed, signingSecret)
	require.Error(t, err)
}
