package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulpass/cdl-backend/internal/config"
)

func testAuthService() *AuthService {
	return NewAuthService(&config.Config{
		JWTSecret: "test-secret",
		JWTExpiry: time.Hour,
	})
}

func TestRegisterDeviceMintsID(t *testing.T) {
	svc := testAuthService()

	deviceID, token, err := svc.RegisterDevice("")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = uuid.Parse(deviceID)
	assert.NoError(t, err, "minted device id should be a uuid")

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, deviceID, claims.DeviceID)
	assert.Equal(t, TokenTypeDevice, claims.TokenType)
	assert.Equal(t, deviceID, claims.Subject)
}

func TestRegisterDeviceReusesExistingID(t *testing.T) {
	svc := testAuthService()

	existing := uuid.New().String()
	deviceID, _, err := svc.RegisterDevice(existing)
	require.NoError(t, err)
	assert.Equal(t, existing, deviceID)
}

func TestRegisterDeviceRejectsMalformedID(t *testing.T) {
	svc := testAuthService()

	_, _, err := svc.RegisterDevice("not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidDeviceID)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := testAuthService()
	_, token, err := svc.RegisterDevice("")
	require.NoError(t, err)

	other := NewAuthService(&config.Config{JWTSecret: "different", JWTExpiry: time.Hour})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: -time.Minute})
	_, token, err := svc.RegisterDevice("")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsMissingDeviceID(t *testing.T) {
	svc := testAuthService()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TokenType: TokenTypeDevice,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
