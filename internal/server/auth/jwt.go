// Package auth signs and verifies the HS256 tokens texbridge hands to
// browsers: the session cookie and the delegated-login state parameter.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// SessionClaims carries the opaque session id in the standard jti claim.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// StateClaims binds a delegated-login round trip to the flow that started it
// and to a nonce also kept in a browser cookie.
type StateClaims struct {
	jwt.RegisteredClaims
	Flow  string `json:"flow"`
	Nonce string `json:"nonce"`
}

func GenerateSessionToken(sessionID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	return sign(&SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
	}, secretKey)
}

func GetSessionIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &SessionClaims{}
	if err := parse(tokenString, claims, secretKey); err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}

func GenerateStateToken(flow, nonce string, secretKey []byte, validityDuration time.Duration) (string, error) {
	return sign(&StateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Flow:  flow,
		Nonce: nonce,
	}, secretKey)
}

func ParseStateToken(tokenString string, secretKey []byte) (*StateClaims, error) {
	claims := &StateClaims{}
	if err := parse(tokenString, claims, secretKey); err != nil {
		return nil, err
	}
	return claims, nil
}

func sign(claims jwt.Claims, secretKey []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func parse(tokenString string, claims jwt.Claims, secretKey []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}
