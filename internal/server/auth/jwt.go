// Package auth implements the credential primitives consumed by services:
// a self-contained JWT session token (issue/resolve) and a one-way password
// hash (hash/verify) over bcrypt.
package auth

import (
	"errors"
	"time"

	"github.com/aelouarti/partage/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the authenticated user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// IssueToken mints a signed HS256 session token bound to userID, valid for
// validityDuration. The token is stateless: expiry is the only invalidation.
func IssueToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	})

	return token.SignedString(secretKey)
}

// ResolveToken verifies a session token and returns the user id it is bound
// to. Malformed, forged, or expired tokens all yield ErrUnauthenticated.
func ResolveToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", errors.Join(common.ErrUnauthenticated, err)
	}

	if !token.Valid || claims.UserID == "" {
		return "", common.ErrUnauthenticated
	}

	return claims.UserID, nil
}
