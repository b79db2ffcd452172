// ABOUTME: Unit tests for session token signing and parsing
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens, and missing claims

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-for-jwt-signing")

func TestSigner_ValidToken(t *testing.T) {
	signer := NewSigner(testSecret)

	token, err := signer.Generate("user-123", "sess-9", time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := signer.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if claims.UserID != "user-123" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "user-123")
	}
	if claims.SessionID != "sess-9" {
		t.Errorf("SessionID = %q, want %q", claims.SessionID, "sess-9")
	}
	if claims.ExpiresAt.Before(time.Now()) {
		t.Errorf("ExpiresAt = %v, want a future time", claims.ExpiresAt)
	}
}

func TestSigner_InvalidToken(t *testing.T) {
	signer := NewSigner(testSecret)

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "garbage token",
			token: "not-a-jwt-token",
		},
		{
			name:  "malformed JWT",
			token: "header.payload.signature",
		},
		{
			name: "wrong secret",
			token: func() string {
				token, _ := NewSigner([]byte("different-secret")).Generate("user-123", "sess-1", time.Now(), time.Hour)
				return token
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.Parse(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestSigner_ExpiredToken(t *testing.T) {
	signer := NewSigner(testSecret)

	token, err := signer.Generate("user-123", "sess-1", time.Now().Add(-2*time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = signer.Parse(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Parse() error = %v, want ErrExpiredToken", err)
	}
}

func TestSigner_MissingSessionClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	_, err = NewSigner(testSecret).Parse(signed)
	if !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Parse() error = %v, want ErrMissingClaim", err)
	}
}

func TestSigner_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "user-123",
		"jti": "sess-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	_, err = NewSigner(testSecret).Parse(signed)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
	}
}
