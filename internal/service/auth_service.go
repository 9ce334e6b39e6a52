package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/haulpass/cdl-backend/internal/config"
)

// ErrInvalidDeviceID is returned when a re-registration carries a malformed device ID.
var ErrInvalidDeviceID = errors.New("invalid device id")

// TokenType labels the kind of bearer token issued by this service.
type TokenType string

// TokenTypeDevice is the only token type this API issues. Every client is an
// anonymous device identified by a UUID.
const TokenTypeDevice TokenType = "device"

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	DeviceID  string    `json:"device_id"`
}

// AuthService issues and validates device JWTs.
type AuthService struct {
	cfg *config.Config
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg}
}

// RegisterDevice mints a token for a device. When existingID is empty a fresh
// device ID is generated; otherwise the supplied ID is validated and reused so
// a reinstalled client keeps its stored sessions.
func (s *AuthService) RegisterDevice(existingID string) (deviceID, token string, err error) {
	deviceID = existingID
	if deviceID == "" {
		deviceID = uuid.New().String()
	} else if _, parseErr := uuid.Parse(deviceID); parseErr != nil {
		return "", "", ErrInvalidDeviceID
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: TokenTypeDevice,
		DeviceID:  deviceID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return deviceID, signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.DeviceID == "" {
		return nil, errors.New("token missing device id")
	}

	return claims, nil
}
