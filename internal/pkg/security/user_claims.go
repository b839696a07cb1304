package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const JWTExpirationTime = time.Hour * 24

var (
	jwtSecret = []byte("Solace")
	jwtIssuer = "Solace"
)

// IdentityClaims Token 中携带的身份信息
type IdentityClaims struct {
	IdentityID   string `json:"identity_id"`
	IdentityKind string `json:"identity_kind"`
	jwt.RegisteredClaims
}
