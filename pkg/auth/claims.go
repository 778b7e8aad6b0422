package auth

import "github.com/golang-jwt/jwt/v5"

// DeviceTokenClaims identifies a register to the remote backend.
type DeviceTokenClaims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}
