// Package auth issues and validates the HS256 access tokens used by the gRPC
// transport.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the caller's identity and the
// session the token was minted for.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"uid"`
	Username  string `json:"usr"`
	SessionID string `json:"sid"`
}

// Identity is what a validated token tells the server about the caller.
type Identity struct {
	UserID    string
	Username  string
	SessionID string
}

func GenerateToken(id Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID:    id.UserID,
		Username:  id.Username,
		SessionID: id.SessionID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates tokenString and returns its identity. An expired
// token yields common.ErrTokenExpired so clients know to refresh; every
// other failure is common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, common.ErrTokenExpired
		}
		return Identity{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" || claims.SessionID == "" {
		return Identity{}, common.ErrInvalidToken
	}

	return Identity{UserID: claims.UserID, Username: claims.Username, SessionID: claims.SessionID}, nil
}
