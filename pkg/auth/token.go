package auth

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// DeviceTokenConfig carries the shared secret and lifetime of device tokens.
type DeviceTokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

func (c DeviceTokenConfig) validate() error {
	if c.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.Issuer == "" {
		return fmt.Errorf("jwt issuer is required")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("jwt ttl must be positive")
	}
	return nil
}

// MintDeviceToken issues a signed JWT for deviceID using the configured TTL.
func MintDeviceToken(cfg DeviceTokenConfig, now time.Time, deviceID string) (string, error) {
	if err := cfg.validate(); err != nil {
		return "", err
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return "", fmt.Errorf("device id is required")
	}

	claims := DeviceTokenClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseDeviceToken validates the JWT string and returns typed claims.
func ParseDeviceToken(cfg DeviceTokenConfig, tokenString string) (*DeviceTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &DeviceTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// TokenSource caches a device token and re-mints it shortly before expiry.
type TokenSource struct {
	cfg      DeviceTokenConfig
	deviceID string
	now      func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenSource builds a TokenSource for deviceID.
func NewTokenSource(cfg DeviceTokenConfig, deviceID string) (*TokenSource, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(deviceID) == "" {
		return nil, fmt.Errorf("device id is required")
	}
	return &TokenSource{cfg: cfg, deviceID: deviceID, now: time.Now}, nil
}

// Token returns a valid bearer token, minting a new one when the cached token
// is within a tenth of its TTL from expiring.
func (s *TokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Add(s.cfg.TTL/10).Before(s.expiresAt) {
		return s.token, nil
	}
	token, err := MintDeviceToken(s.cfg, now, s.deviceID)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expiresAt = now.Add(s.cfg.TTL)
	return token, nil
}
