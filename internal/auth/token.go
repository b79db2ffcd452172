// ABOUTME: JWT session tokens for signed-in chat users
// ABOUTME: HS256 tokens carry the user id in "sub" and the auth session id in "jti"

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Claims is what a verified token says about its bearer.
type Claims struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// Signer issues and checks HS256 session tokens.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer with the given secret
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Parse validates the signature and expiry and returns the token's claims.
func (s *Signer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return nil, fmt.Errorf("%w: jti", ErrMissingClaim)
	}

	out := &Claims{UserID: sub, SessionID: jti}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// Generate signs a token for userID bound to the auth session sessionID.
func (s *Signer) Generate(userID, sessionID string, issuedAt time.Time, expiresIn time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"jti": sessionID,
		"iat": issuedAt.Unix(),
		"exp": issuedAt.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
